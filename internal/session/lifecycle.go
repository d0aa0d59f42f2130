package session

import (
	"context"
	"fmt"
	"slices"

	"github.com/OCAP2/turnkernel/internal/sim"
	"github.com/OCAP2/turnkernel/pkg/core"
)

// SpawnEntity introduces an entity during setup or planning. The spawn's envelope
// defaults to the session envelope.
func (s *Session) SpawnEntity(spawn core.EntitySpawned) (core.EventID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.world.Phase != sim.PhaseSetup && s.world.Phase != sim.PhasePlanning {
		return 0, fmt.Errorf("%w: cannot spawn while %s", ErrWrongPhase, s.world.Phase)
	}
	if spawn.Envelope == (core.Envelope{}) {
		spawn.Envelope = s.cfg.Envelope
	}
	spawn.Subsystems = slices.Clone(spawn.Subsystems)
	return s.appendLocked(s.world.Turn, nil, spawn)
}

// StartTurn opens the next turn for planning and returns its number.
func (s *Session) StartTurn() (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.world.Phase != sim.PhaseSetup && s.world.Phase != sim.PhaseResolved {
		return 0, fmt.Errorf("%w: turn %d is still %s", ErrWrongPhase, s.world.Turn, s.world.Phase)
	}
	next := s.world.Turn + 1
	if _, err := s.appendLocked(next, nil, core.TurnStarted{}); err != nil {
		return 0, err
	}
	return next, nil
}

// BeginSimulation closes planning and opens the execution window at t=0. Whether
// every player is ready is left to the caller.
func (s *Session) BeginSimulation() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requirePhase(sim.PhasePlanning); err != nil {
		return err
	}
	if missing := s.unreadyLocked(); len(missing) > 0 {
		s.logf("session:BeginSimulation", "DEBUG", "Turn %d simulating without players %v", s.world.Turn, missing)
	}
	_, err := s.appendLocked(s.world.Turn, core.At(0), core.SimulationStarted{})
	return err
}

func (s *Session) unreadyLocked() []core.PlayerID {
	ready := s.world.Ready()
	var missing []core.PlayerID
	for _, p := range s.cfg.Players {
		if !slices.Contains(ready, p) {
			missing = append(missing, p)
		}
	}
	return missing
}

// RecordEvent appends an event produced by an external collaborator, such as the
// collision or damage model, at intra-turn time at of the current turn. Timed events
// belong to the execution window; untimed ones to planning.
func (s *Session) RecordEvent(at *float64, p core.Payload) (core.EventID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case at != nil && s.world.Phase != sim.PhaseSimulating:
		return 0, fmt.Errorf("%w: timed event while %s", ErrWrongPhase, s.world.Phase)
	case at == nil && s.world.Phase != sim.PhasePlanning && s.world.Phase != sim.PhaseSetup:
		return 0, fmt.Errorf("%w: untimed event while %s", ErrWrongPhase, s.world.Phase)
	}
	switch p.(type) {
	case core.TurnStarted, core.SimulationStarted, core.SimulationCompleted, core.TurnEnded,
		core.SessionStarted, core.SessionEnded:
		return 0, fmt.Errorf("%w: %s is recorded by the session itself", ErrWrongPhase, p.Type())
	}
	return s.appendLocked(s.world.Turn, at, p)
}

// CompleteSimulation closes the execution window: every surviving entity settles at
// the end of its curve, or stays put with no momentum when it did not move. The turn
// then ends and is snapshotted when the interval policy says so.
func (s *Session) CompleteSimulation() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requirePhase(sim.PhaseSimulating); err != nil {
		return err
	}
	turn := s.world.Turn
	end := core.At(core.TurnDuration)

	if _, err := s.appendLocked(turn, end, core.SimulationCompleted{}); err != nil {
		return err
	}
	for _, id := range s.world.EntityIDs() {
		ent, _ := s.world.Entity(id)
		if ent.Destroyed {
			continue
		}
		pu := core.PositionUpdated{Entity: id, Position: ent.Position, Rotation: ent.Rotation}
		if ent.Curve != nil {
			pu.Position = ent.Curve.Evaluate(1)
			pu.Rotation = ent.Curve.RotationAt(1)
			pu.Velocity = ent.Curve.EndingVelocity()
		}
		if _, err := s.appendLocked(turn, end, pu); err != nil {
			return err
		}
	}
	if _, err := s.appendLocked(turn, end, core.TurnEnded{}); err != nil {
		return err
	}

	s.deps.LogManager.Logger().InfoContext(s.logCtx(context.Background()), "Turn ended",
		"events", len(s.events.EventsForTurn(turn)))

	if s.deps.Snapshots.ShouldSnapshot(turn) {
		if _, err := s.snapshotLiveLocked(); err != nil {
			// The log is intact; only replay cost is affected.
			s.logf("session:CompleteSimulation", "ERROR", "Snapshot for turn %d failed: %v", turn, err)
		}
	}
	return nil
}

// EndSession records SessionEnded at the close of the current turn. No events are
// accepted afterwards.
func (s *Session) EndSession() (core.EventID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.world.Phase != sim.PhaseSetup && s.world.Phase != sim.PhaseResolved {
		return 0, fmt.Errorf("%w: cannot end while %s", ErrWrongPhase, s.world.Phase)
	}
	id, err := s.appendLocked(s.world.Turn, core.At(core.TurnDuration), core.SessionEnded{})
	if err != nil {
		return 0, err
	}
	// A snapshot of this turn no longer covers every event of the turn.
	if slices.Contains(s.deps.Snapshots.Turns(), s.world.Turn) {
		if _, err := s.snapshotLiveLocked(); err != nil {
			return id, err
		}
	}
	s.logf("session:EndSession", "INFO", "Session %s ended at turn %d", s.id, s.world.Turn)
	return id, nil
}
