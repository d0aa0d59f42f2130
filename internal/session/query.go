package session

import (
	"context"
	"fmt"

	"github.com/OCAP2/turnkernel/internal/replay"
	"github.com/OCAP2/turnkernel/internal/sim"
	"github.com/OCAP2/turnkernel/internal/snapshot"
	"github.com/OCAP2/turnkernel/pkg/core"
)

// SeekToTime reconstructs the state at total seconds since session start. The live
// state is not affected.
func (s *Session) SeekToTime(ctx context.Context, total float64) (*sim.World, error) {
	return s.replay.SeekToTime(ctx, total)
}

// CurrentReconstructedState returns the state of the last seek or playback step, or
// the live state when nothing has been reconstructed yet.
func (s *Session) CurrentReconstructedState() *sim.World {
	if s.replay.LastStats().At.IsZero() {
		return s.Live()
	}
	return s.replay.Current()
}

// CreateSnapshotNow snapshots the latest closed turn. With a turn closed the live
// state is captured along with every registered fragment. While a turn is open the
// end of the previous turn is reconstructed and only its world fragment is captured.
func (s *Session) CreateSnapshotNow(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.world.Phase == sim.PhaseResolved {
		defer s.mu.Unlock()
		return s.snapshotLiveLocked()
	}
	turn := s.world.Turn
	s.mu.Unlock()

	// Turn 0 is setup and is never snapshotted.
	if turn < 2 {
		return "", ErrNoClosedTurn
	}
	closed := turn - 1

	world, err := s.replayEndOfTurn(ctx, closed)
	if err != nil {
		return "", err
	}
	id, err := s.deps.Snapshots.CreateSnapshot(closed, world.LastEventID, world)
	if err != nil {
		return "", fmt.Errorf("failed to snapshot turn %d: %w", closed, err)
	}
	s.logf("session:CreateSnapshotNow", "INFO", "Snapshot %s created for closed turn %d", id, closed)
	return id, nil
}

// replayEndOfTurn rebuilds the state at the end of a closed turn in a private
// controller, so the shared playback position is left alone.
func (s *Session) replayEndOfTurn(ctx context.Context, turn uint32) (*sim.World, error) {
	ctrl, err := replay.NewController(s.cfg.Replay, replay.Dependencies{
		Events:     s.events,
		Snapshots:  s.deps.Snapshots,
		LogManager: s.deps.LogManager,
	})
	if err != nil {
		return nil, err
	}
	return ctrl.SeekToTime(ctx, core.Compose(turn, core.TurnDuration))
}

func (s *Session) snapshotLiveLocked() (string, error) {
	capturers := make([]snapshot.Capturer, 0, len(s.capturers)+1)
	capturers = append(capturers, s.world)
	capturers = append(capturers, s.capturers...)

	id, err := s.deps.Snapshots.CreateSnapshot(s.world.Turn, s.world.LastEventID, capturers...)
	if err != nil {
		return "", fmt.Errorf("failed to snapshot turn %d: %w", s.world.Turn, err)
	}
	s.logf("session:snapshot", "DEBUG", "Snapshot %s created for turn %d", id, s.world.Turn)
	return id, nil
}
