// Package session is the upward surface of the kernel. It validates player actions,
// drives the turn lifecycle, appends the resulting events, schedules snapshots and
// answers state queries through the replay controller.
package session

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/OCAP2/turnkernel/internal/eventstore"
	"github.com/OCAP2/turnkernel/internal/logging"
	"github.com/OCAP2/turnkernel/internal/replay"
	"github.com/OCAP2/turnkernel/internal/sim"
	"github.com/OCAP2/turnkernel/internal/snapshot"
	"github.com/OCAP2/turnkernel/internal/storage/memory"
	"github.com/OCAP2/turnkernel/pkg/core"
)

// Config describes a new session and its validation policy.
type Config struct {
	Scenario string
	Players  []core.PlayerID
	// Envelope is given to spawned entities that do not carry their own.
	Envelope core.Envelope
	// ClampTargets accepts out-of-envelope moves pulled back inside the envelope.
	ClampTargets bool
	// CompressLog gzips the event log on Save.
	CompressLog bool
	Replay      replay.Config
}

// Dependencies holds the collaborators of a Session. A nil Snapshots gets an
// in-memory manager owned by the session.
type Dependencies struct {
	Snapshots  *snapshot.Manager
	LogManager *logging.SlogManager
	Sink       replay.StatsSink
}

// Session owns one event log and the live state derived from it.
type Session struct {
	mu        sync.Mutex
	id        string
	cfg       Config
	deps      Dependencies
	events    *eventstore.Store
	world     *sim.World
	replay    *replay.Controller
	capturers []snapshot.Capturer
	// turnBase is the live world as it stood before the running turn's first event.
	turnBase  *sim.World
	ownsSnaps bool
	readOnly  bool
}

// New starts a session: it records SessionStarted and leaves the world in setup,
// ready for SpawnEntity and StartTurn.
func New(cfg Config, deps Dependencies) (*Session, error) {
	s, err := build(uuid.NewString(), cfg, deps, eventstore.New(), replay.SourceLive)
	if err != nil {
		return nil, err
	}
	if _, err := s.appendLocked(0, nil, core.SessionStarted{
		SessionID: s.id,
		Scenario:  cfg.Scenario,
		Players:   slices.Clone(cfg.Players),
	}); err != nil {
		s.Close()
		return nil, err
	}
	s.logf("session:New", "INFO", "Session %s started, scenario %q", s.id, cfg.Scenario)
	return s, nil
}

func build(id string, cfg Config, deps Dependencies, events *eventstore.Store, source replay.Source) (*Session, error) {
	if cfg.Envelope == (core.Envelope{}) {
		cfg.Envelope = core.DefaultEnvelope()
	}
	s := &Session{id: id, cfg: cfg, deps: deps, events: events, world: sim.New()}

	if s.deps.Snapshots == nil {
		mgr, err := snapshot.NewManager(snapshot.Config{Interval: 1, MaxResident: 8}, snapshot.Dependencies{
			Store:      memory.New(),
			LogManager: deps.LogManager,
		})
		if err != nil {
			return nil, err
		}
		if err := mgr.Init(); err != nil {
			return nil, err
		}
		s.deps.Snapshots = mgr
		s.ownsSnaps = true
	}

	cfg.Replay.Source = source
	ctrl, err := replay.NewController(cfg.Replay, replay.Dependencies{
		Events:     events,
		Snapshots:  s.deps.Snapshots,
		LogManager: deps.LogManager,
		Sink:       deps.Sink,
	})
	if err != nil {
		if s.ownsSnaps {
			s.deps.Snapshots.Close()
		}
		return nil, err
	}
	s.replay = ctrl
	return s, nil
}

// Close releases a snapshot manager created by the session.
func (s *Session) Close() error {
	if !s.ownsSnaps {
		return nil
	}
	s.ownsSnaps = false
	return s.deps.Snapshots.Close()
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Scenario() string {
	return s.cfg.Scenario
}

func (s *Session) Players() []core.PlayerID {
	return slices.Clone(s.cfg.Players)
}

// Turn is the current turn number.
func (s *Session) Turn() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.world.Turn
}

func (s *Session) Phase() sim.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.world.Phase
}

// Live returns a copy of the state after every appended event.
func (s *Session) Live() *sim.World {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.world.Clone()
}

// Events exposes the log for read-only queries.
func (s *Session) Events() *eventstore.Store {
	return s.events
}

func (s *Session) Replay() *replay.Controller {
	return s.replay
}

func (s *Session) Snapshots() *snapshot.Manager {
	return s.deps.Snapshots
}

func (s *Session) ReadOnly() bool {
	return s.readOnly
}

// RegisterCapturer adds a collaborator fragment to every snapshot taken from live
// state. The world fragment is always included.
func (s *Session) RegisterCapturer(c snapshot.Capturer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.Name() == core.WorldFragment {
		return fmt.Errorf("fragment name %q is reserved", core.WorldFragment)
	}
	for _, existing := range s.capturers {
		if existing.Name() == c.Name() {
			return fmt.Errorf("fragment %q already registered", c.Name())
		}
	}
	s.capturers = append(s.capturers, c)
	return nil
}

// appendLocked checks the event against the live state, stores it and applies the
// stored copy. Nothing is stored when the check fails. A timed event earlier than
// the live clock is stored in its ordered place and the running turn is refolded.
func (s *Session) appendLocked(turn uint32, at *float64, p core.Payload) (core.EventID, error) {
	if s.readOnly {
		return 0, ErrReadOnly
	}
	if s.world.Ended {
		return 0, ErrEnded
	}
	e := core.Event{Turn: turn, Time: at, Payload: p}
	late := s.world.Late(e)
	check := s.world.Check
	if late || e.Turn < s.world.Turn {
		// The store reports stale turns; late events only need their entities.
		check = s.world.CheckEntities
	}
	if err := check(e); err != nil {
		return 0, err
	}
	id, err := s.events.Append(e)
	if err != nil {
		return 0, err
	}
	if late {
		clock := s.world.Clock
		if err := s.refoldTurnLocked(); err != nil {
			return id, fmt.Errorf("stored event %d could not be applied: %w", id, err)
		}
		s.logf("session:append", "DEBUG", "Event %d at t=%v arrived after t=%v, turn %d refolded", id, *at, clock, turn)
		return id, nil
	}
	stored, _ := s.events.Get(id)
	if e.Turn > s.world.Turn {
		s.turnBase = s.world.Clone()
	}
	if err := s.world.Apply(stored); err != nil {
		return id, fmt.Errorf("stored event %d could not be applied: %w", id, err)
	}
	return id, nil
}

// refoldTurnLocked rebuilds the live world by applying the running turn's events in
// log order to the state the turn started from.
func (s *Session) refoldTurnLocked() error {
	turn := s.world.Turn
	w := sim.New()
	first := uint32(0)
	if s.turnBase != nil && s.turnBase.Turn < turn {
		w = s.turnBase.Clone()
		first = turn
	}
	for _, e := range s.events.EventsInRange(first, turn) {
		if err := w.Apply(e); err != nil {
			return err
		}
	}
	s.world = w
	return nil
}

func (s *Session) logf(function, level, format string, args ...any) {
	s.deps.LogManager.WriteLogf(function, level, format, args...)
}

// logCtx tags ctx with the session and the current turn for context-aware handlers.
func (s *Session) logCtx(ctx context.Context) context.Context {
	return logging.WithTurn(logging.WithSession(ctx, s.id), s.world.Turn)
}
