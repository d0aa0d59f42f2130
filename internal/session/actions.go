package session

import (
	"fmt"
	"math"
	"slices"

	"github.com/OCAP2/turnkernel/internal/eventstore"
	"github.com/OCAP2/turnkernel/internal/movement"
	"github.com/OCAP2/turnkernel/internal/sim"
	"github.com/OCAP2/turnkernel/pkg/core"
)

// Action is a player decision submitted through AppendAction.
type Action interface {
	action()
}

// PlanMove proposes a target for the entity's move this turn. A zero Rotation keeps
// the current heading.
type PlanMove struct {
	Target   core.Vec3
	Rotation core.Quat
	Mode     core.MovementMode
}

// ConfirmMove fixes the curve for the entity's current plan.
type ConfirmMove struct{}

type CancelMove struct{}

// Fire records a shot during the execution window at intra-turn time At.
type Fire struct {
	Target core.EntityID
	Weapon string
	At     float64
}

// Ready marks a player as done planning. The entity argument is ignored.
type Ready struct {
	Player core.PlayerID
}

func (PlanMove) action()    {}
func (ConfirmMove) action() {}
func (CancelMove) action()  {}
func (Fire) action()        {}
func (Ready) action()       {}

// Receipt is the outcome of an accepted action. Planned is set for PlanMove and holds
// the accepted plan, which differs from the request when it was clamped.
type Receipt struct {
	EventID core.EventID
	Planned *core.MovementPlanned
}

// AppendAction validates action against the state of turn and appends the event
// that records it. Rejected actions never reach the log: movement rejections are
// *movement.ValidationError, and an old turn gives *eventstore.StaleAppendError.
func (s *Session) AppendAction(turn uint32, entity core.EntityID, action Action) (Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readOnly {
		return Receipt{}, ErrReadOnly
	}
	if s.world.Ended {
		return Receipt{}, ErrEnded
	}
	current := s.world.Turn
	if turn < current {
		return Receipt{}, &eventstore.StaleAppendError{Turn: turn, Current: current}
	}
	if turn > current || s.world.Phase == sim.PhaseSetup {
		return Receipt{}, fmt.Errorf("%w: turn %d", ErrTurnNotStarted, turn)
	}

	if r, ok := action.(Ready); ok {
		return s.ready(turn, r)
	}

	ent, ok := s.world.Entity(entity)
	if !ok {
		return Receipt{}, fmt.Errorf("%w: %d", ErrUnknownEntity, entity)
	}
	if ent.Destroyed {
		return Receipt{}, fmt.Errorf("%w: %d", ErrEntityDestroyed, entity)
	}

	switch a := action.(type) {
	case PlanMove:
		return s.plan(turn, ent, a)
	case ConfirmMove:
		return s.confirm(turn, ent)
	case CancelMove:
		if err := s.requirePhase(sim.PhasePlanning); err != nil {
			return Receipt{}, err
		}
		id, err := s.appendLocked(turn, nil, core.MovementCancelled{Entity: ent.ID})
		return Receipt{EventID: id}, err
	case Fire:
		return s.fire(turn, ent, a)
	}
	return Receipt{}, fmt.Errorf("%w: %T", ErrUnknownAction, action)
}

func (s *Session) request(ent sim.Entity, a PlanMove) movement.Request {
	return movement.Request{
		Entity:           ent.ID,
		Position:         ent.Position,
		Rotation:         ent.Rotation,
		Target:           a.Target,
		TargetRotation:   a.Rotation,
		Mode:             a.Mode,
		Previous:         ent.Mode,
		Chain:            ent.Chain(),
		LastDisplacement: ent.LastDisplacement,
		Envelope:         ent.Envelope,
		MidSimulation:    s.world.Simulating(),
		Clamp:            s.cfg.ClampTargets,
	}
}

func (s *Session) plan(turn uint32, ent sim.Entity, a PlanMove) (Receipt, error) {
	plan, err := movement.Validate(s.request(ent, a))
	if err != nil {
		return Receipt{}, err
	}
	if err := s.requirePhase(sim.PhasePlanning); err != nil {
		return Receipt{}, err
	}
	planned := plan.Planned()
	id, err := s.appendLocked(turn, nil, planned)
	if err != nil {
		return Receipt{}, err
	}
	if planned.Clamped {
		s.logf("session:AppendAction", "DEBUG", "Entity %d target clamped to %v", ent.ID, planned.Target)
	}
	return Receipt{EventID: id, Planned: &planned}, nil
}

// confirm builds the curve from the accepted plan and the entity's turn-start state.
func (s *Session) confirm(turn uint32, ent sim.Entity) (Receipt, error) {
	if err := s.requirePhase(sim.PhasePlanning); err != nil {
		return Receipt{}, err
	}
	if ent.Plan == nil {
		return Receipt{}, fmt.Errorf("%w: %d", ErrNoPlan, ent.ID)
	}
	p := *ent.Plan
	plan := movement.Plan{Entity: p.Entity, Target: p.Target, Rotation: p.Rotation, Mode: p.Mode, Clamped: p.Clamped}
	curve := plan.Curve(s.request(ent, PlanMove{Target: p.Target, Rotation: p.Rotation, Mode: p.Mode}))

	id, err := s.appendLocked(turn, nil, curve.Confirmed(ent.ID))
	return Receipt{EventID: id}, err
}

func (s *Session) fire(turn uint32, ent sim.Entity, a Fire) (Receipt, error) {
	if err := s.requirePhase(sim.PhaseSimulating); err != nil {
		return Receipt{}, err
	}
	if math.IsNaN(a.At) {
		return Receipt{}, fmt.Errorf("%w: time %v", eventstore.ErrMalformedEvent, a.At)
	}
	id, err := s.appendLocked(turn, core.At(a.At), core.WeaponFired{Attacker: ent.ID, Target: a.Target, Weapon: a.Weapon})
	return Receipt{EventID: id}, err
}

func (s *Session) ready(turn uint32, r Ready) (Receipt, error) {
	if err := s.requirePhase(sim.PhasePlanning); err != nil {
		return Receipt{}, err
	}
	if len(s.cfg.Players) > 0 && !slices.Contains(s.cfg.Players, r.Player) {
		return Receipt{}, fmt.Errorf("%w: %q", ErrUnknownPlayer, r.Player)
	}
	id, err := s.appendLocked(turn, nil, core.PlayerReady{Player: r.Player})
	return Receipt{EventID: id}, err
}

func (s *Session) requirePhase(want sim.Phase) error {
	if s.world.Phase != want {
		return fmt.Errorf("%w: %s, want %s", ErrWrongPhase, s.world.Phase, want)
	}
	return nil
}
