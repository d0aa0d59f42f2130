package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/OCAP2/turnkernel/internal/dispatcher"
	"github.com/OCAP2/turnkernel/internal/handlers"
	"github.com/OCAP2/turnkernel/internal/influx"
	"github.com/OCAP2/turnkernel/internal/monitor"
	"github.com/OCAP2/turnkernel/internal/session"
	"github.com/OCAP2/turnkernel/internal/sim"
	"github.com/OCAP2/turnkernel/internal/util"
)

// RegisterHandlers registers all command handlers with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) error {
	type route struct {
		command string
		handler dispatcher.HandlerFunc
		opts    []dispatcher.Option
	}
	logged := []dispatcher.Option{dispatcher.Logged()}

	// Everything that touches the log stays synchronous: the caller needs the
	// event id or the rejection, and order matters.
	routes := []route{
		{":SPAWN:", m.handleSpawn, logged},
		{":TURN:START:", m.handleStartTurn, logged},
		{":ACTION:PLAN:", m.handlePlan, logged},
		{":ACTION:CONFIRM:", m.entityAction(session.ConfirmMove{}), logged},
		{":ACTION:CANCEL:", m.entityAction(session.CancelMove{}), logged},
		{":ACTION:FIRE:", m.handleFire, logged},
		{":ACTION:READY:", m.handleReady, logged},
		{":SIM:BEGIN:", m.handleBeginSimulation, logged},
		{":SIM:COMPLETE:", m.handleCompleteSimulation, logged},
		{":EVENT:", m.handleRecord, logged},
		{":SESSION:END:", m.handleEndSession, logged},
		{":SNAPSHOT:", m.handleSnapshot, logged},
		{":SAVE:", m.handleSave, logged},

		// Queries and playback control.
		{":SEEK:", m.handleSeek, logged},
		{":STATE:", m.handleState, nil},
		{":PLAY:", m.handlePlay, logged},
		{":PAUSE:", m.handlePause, logged},
		{":SPEED:", m.handleSpeed, logged},
		{":STEP:", m.handleStep, logged},
		{":ADVANCE:", m.handleAdvance, nil},
		{":STATUS:", m.handleStatus, nil},
	}
	if m.deps.Metrics != nil {
		// Front-end timings are fire-and-forget.
		routes = append(routes, route{":METRIC:", m.handleMetric, []dispatcher.Option{dispatcher.Buffered(1000), dispatcher.Logged()}})
	}

	var errs []error
	for _, r := range routes {
		errs = append(errs, d.Register(r.command, r.handler, r.opts...))
	}
	return errors.Join(errs...)
}

func (m *Manager) handleSpawn(_ context.Context, e dispatcher.Event) (any, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	spawn, err := m.deps.Parser.ParseSpawn(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse spawn: %w", err)
	}
	return s.SpawnEntity(spawn)
}

func (m *Manager) handleStartTurn(_ context.Context, _ dispatcher.Event) (any, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	return s.StartTurn()
}

func (m *Manager) handlePlan(_ context.Context, e dispatcher.Event) (any, error) {
	cmd, err := m.deps.Parser.ParsePlan(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}
	return m.appendAction(cmd)
}

func (m *Manager) entityAction(action session.Action) dispatcher.HandlerFunc {
	return func(_ context.Context, e dispatcher.Event) (any, error) {
		cmd, err := m.deps.Parser.ParseEntityAction(e.Args, action)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", e.Command, err)
		}
		return m.appendAction(cmd)
	}
}

func (m *Manager) handleFire(_ context.Context, e dispatcher.Event) (any, error) {
	cmd, err := m.deps.Parser.ParseFire(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fire: %w", err)
	}
	return m.appendAction(cmd)
}

func (m *Manager) handleReady(_ context.Context, e dispatcher.Event) (any, error) {
	cmd, err := m.deps.Parser.ParseReady(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ready: %w", err)
	}
	return m.appendAction(cmd)
}

func (m *Manager) appendAction(cmd handlers.ActionCommand) (session.Receipt, error) {
	s, err := m.current()
	if err != nil {
		return session.Receipt{}, err
	}
	return s.AppendAction(cmd.Turn, cmd.Entity, cmd.Action)
}

func (m *Manager) handleBeginSimulation(_ context.Context, _ dispatcher.Event) (any, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	return nil, s.BeginSimulation()
}

func (m *Manager) handleCompleteSimulation(_ context.Context, _ dispatcher.Event) (any, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	return nil, s.CompleteSimulation()
}

func (m *Manager) handleRecord(_ context.Context, e dispatcher.Event) (any, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	cmd, err := m.deps.Parser.ParseRecord(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse event: %w", err)
	}
	return s.RecordEvent(cmd.At, cmd.Payload)
}

func (m *Manager) handleEndSession(_ context.Context, _ dispatcher.Event) (any, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	return s.EndSession()
}

func (m *Manager) handleSnapshot(ctx context.Context, _ dispatcher.Event) (any, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	return s.CreateSnapshotNow(ctx)
}

func (m *Manager) handleSave(_ context.Context, e dispatcher.Event) (any, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	dir := m.deps.SaveDir
	if args := util.CleanArgs(e.Args); len(args) > 0 && args[0] != "" {
		dir = args[0]
	}
	if dir == "" {
		return nil, fmt.Errorf("%w: no save directory", handlers.ErrArgs)
	}
	return s.Save(dir)
}

func (m *Manager) handleSeek(ctx context.Context, e dispatcher.Event) (any, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	total, err := m.deps.Parser.ParseSeconds(e.Args, "seek")
	if err != nil {
		return nil, err
	}
	w, err := s.SeekToTime(ctx, total)
	if err != nil {
		return nil, err
	}
	return capture(w)
}

func (m *Manager) handleState(_ context.Context, _ dispatcher.Event) (any, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	return capture(s.CurrentReconstructedState())
}

func (m *Manager) handlePlay(_ context.Context, _ dispatcher.Event) (any, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	s.Replay().Play()
	return s.Replay().State().String(), nil
}

func (m *Manager) handlePause(_ context.Context, _ dispatcher.Event) (any, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	s.Replay().Pause()
	return s.Replay().State().String(), nil
}

func (m *Manager) handleSpeed(_ context.Context, e dispatcher.Event) (any, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	speed, err := m.deps.Parser.ParseSeconds(e.Args, "speed")
	if err != nil {
		return nil, err
	}
	if err := s.Replay().SetSpeed(speed); err != nil {
		return nil, err
	}
	return s.Replay().Speed(), nil
}

func (m *Manager) handleStep(ctx context.Context, e dispatcher.Event) (any, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	dir := 1
	if len(e.Args) > 0 {
		v, err := m.deps.Parser.ParseSeconds(e.Args, "step")
		if err != nil {
			return nil, err
		}
		if v < 0 {
			dir = -1
		}
	}
	w, err := s.Replay().StepFrame(ctx, dir)
	if err != nil {
		return nil, err
	}
	return capture(w)
}

func (m *Manager) handleAdvance(ctx context.Context, e dispatcher.Event) (any, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	dt, err := m.deps.Parser.ParseSeconds(e.Args, "advance")
	if err != nil {
		return nil, err
	}
	if err := s.Replay().Advance(ctx, dt); err != nil {
		return nil, err
	}
	return s.Replay().Position(), nil
}

func (m *Manager) handleStatus(_ context.Context, _ dispatcher.Event) (any, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	return monitor.Collect(s), nil
}

func (m *Manager) handleMetric(_ context.Context, e dispatcher.Event) (any, error) {
	args := util.CleanArgs(e.Args)
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: metric needs a measurement", handlers.ErrArgs)
	}
	point, err := influx.ParseMetric(args[0], args[1:])
	if err != nil {
		return nil, fmt.Errorf("failed to parse metric: %w", err)
	}
	return nil, m.deps.Metrics.WritePoint(point)
}

func capture(w *sim.World) (json.RawMessage, error) {
	data, err := w.Capture()
	if err != nil {
		return nil, fmt.Errorf("failed to capture state: %w", err)
	}
	return json.RawMessage(data), nil
}
