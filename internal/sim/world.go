// Package sim holds the deterministic simulation state rebuilt from the event log.
// A World is mutated only by Apply and EvaluateAt; the same events applied in the
// same order always produce bit-identical state.
package sim

import (
	"errors"
	"fmt"
	"slices"

	"github.com/OCAP2/turnkernel/internal/movement"
	"github.com/OCAP2/turnkernel/pkg/core"
)

var (
	ErrUnknownEntity = errors.New("unknown entity")
	ErrEntityExists  = errors.New("entity already exists")
	ErrOutOfOrder    = errors.New("event applied out of order")
	ErrUnhandled     = errors.New("unhandled payload")
)

// Phase is where the current turn is in its lifecycle.
type Phase uint8

const (
	PhaseSetup Phase = iota
	PhasePlanning
	PhaseSimulating
	PhaseResolved
)

func (p Phase) String() string {
	switch p {
	case PhaseSetup:
		return "setup"
	case PhasePlanning:
		return "planning"
	case PhaseSimulating:
		return "simulating"
	case PhaseResolved:
		return "resolved"
	}
	return "unknown"
}

// World is the full simulation state at one instant.
type World struct {
	SessionID   string
	Scenario    string
	Players     []core.PlayerID
	Turn        uint32
	Phase       Phase
	Clock       float64 // intra-turn seconds
	LastEventID core.EventID
	Ended       bool

	entities map[core.EntityID]*Entity
	ready    []core.PlayerID
}

// New returns the initial state: turn 0, no entities.
func New() *World {
	return &World{entities: make(map[core.EntityID]*Entity)}
}

// Entity returns a copy of the entity's state.
func (w *World) Entity(id core.EntityID) (Entity, bool) {
	e, ok := w.entities[id]
	if !ok {
		return Entity{}, false
	}
	return *e.clone(), true
}

// EntityIDs lists entities in ascending id order.
func (w *World) EntityIDs() []core.EntityID {
	ids := make([]core.EntityID, 0, len(w.entities))
	for id := range w.entities {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Ready lists players that have readied up this turn.
func (w *World) Ready() []core.PlayerID {
	return slices.Clone(w.ready)
}

// Simulating reports whether the execution window of the current turn is open.
func (w *World) Simulating() bool {
	return w.Phase == PhaseSimulating
}

// Clone returns an independent deep copy.
func (w *World) Clone() *World {
	c := *w
	c.Players = slices.Clone(w.Players)
	c.ready = slices.Clone(w.ready)
	c.entities = make(map[core.EntityID]*Entity, len(w.entities))
	for id, e := range w.entities {
		c.entities[id] = e.clone()
	}
	return &c
}

// Check reports whether e can be applied to the current state without mutating it.
func (w *World) Check(e core.Event) error {
	if e.Turn < w.Turn {
		return fmt.Errorf("%w: turn %d after turn %d", ErrOutOfOrder, e.Turn, w.Turn)
	}
	if w.Late(e) {
		return fmt.Errorf("%w: t=%v after t=%v", ErrOutOfOrder, *e.Time, w.Clock)
	}
	return w.CheckEntities(e)
}

// Late reports whether e belongs to the running simulation but is timed before the
// clock. Such an event cannot be folded in place; the turn has to be refolded.
func (w *World) Late(e core.Event) bool {
	return e.Turn == w.Turn && e.Time != nil && *e.Time < w.Clock && w.Phase == PhaseSimulating
}

// CheckEntities reports whether every entity e refers to exists, and that a spawn
// does not reuse an id.
func (w *World) CheckEntities(e core.Event) error {
	if spawn, ok := e.Payload.(core.EntitySpawned); ok {
		if _, exists := w.entities[spawn.Entity]; exists {
			return fmt.Errorf("%w: %d", ErrEntityExists, spawn.Entity)
		}
		return nil
	}
	for _, id := range e.Entities() {
		if _, ok := w.entities[id]; !ok {
			return fmt.Errorf("%w: %d", ErrUnknownEntity, id)
		}
	}
	return nil
}

// Apply folds one event into the state. Timed events first advance every in-flight
// curve to the event's instant.
func (w *World) Apply(e core.Event) error {
	if err := w.Check(e); err != nil {
		return fmt.Errorf("event %d: %w", e.ID, err)
	}

	if e.Turn > w.Turn {
		w.Turn = e.Turn
		w.Clock = 0
	}
	if e.Time != nil && w.Phase == PhaseSimulating {
		w.EvaluateAt(*e.Time)
	}

	if err := w.apply(e); err != nil {
		return fmt.Errorf("event %d: %w", e.ID, err)
	}
	if e.ID > w.LastEventID {
		w.LastEventID = e.ID
	}
	return nil
}

func (w *World) apply(e core.Event) error {
	switch p := e.Payload.(type) {
	case core.SessionStarted:
		w.SessionID = p.SessionID
		w.Scenario = p.Scenario
		w.Players = slices.Clone(p.Players)
	case core.SessionEnded:
		w.Ended = true
	case core.EntitySpawned:
		w.spawn(p)
	case core.SubsystemDisabled:
		w.entities[p.Entity].setSubsystem(p.Subsystem, true)
	case core.SubsystemRepaired:
		w.entities[p.Entity].setSubsystem(p.Subsystem, false)

	case core.TurnStarted:
		w.Phase = PhasePlanning
		w.Clock = 0
		w.ready = nil
		for _, ent := range w.entities {
			ent.Plan = nil
			ent.Curve = nil
			ent.Origin = ent.Position
			ent.TurnMode = core.ModeDefault
		}
	case core.PlayerReady:
		if !slices.Contains(w.ready, p.Player) {
			w.ready = append(w.ready, p.Player)
			slices.Sort(w.ready)
		}
	case core.SimulationStarted:
		w.Phase = PhaseSimulating
		w.Clock = 0
	case core.SimulationCompleted:
		w.EvaluateAt(core.TurnDuration)
		w.Phase = PhaseResolved
	case core.TurnEnded:
		w.Phase = PhaseResolved
		w.Clock = core.TurnDuration
		w.ready = nil

	case core.MovementPlanned:
		plan := p
		w.entities[p.Entity].Plan = &plan
	case core.MovementConfirmed:
		curve := movement.FromConfirmed(p)
		ent := w.entities[p.Entity]
		ent.Curve = &curve
		ent.Origin = p.Start
		ent.TurnMode = p.Mode
	case core.MovementCancelled:
		ent := w.entities[p.Entity]
		ent.Plan = nil
		ent.Curve = nil
		ent.TurnMode = core.ModeDefault
	case core.PositionUpdated:
		w.settle(w.entities[p.Entity], p)

	case core.WeaponFired:
		w.entities[p.Attacker].ShotsFired++
	case core.ProjectileHit:
		w.entities[p.Target].HitsTaken++
	case core.DamageDealt:
		ent := w.entities[p.Target]
		if p.Subsystem != "" {
			ent.damageSubsystem(p.Subsystem, p.Amount)
		} else {
			ent.Health = max(0, ent.Health-p.Amount)
		}
	case core.EntityDestroyed:
		ent := w.entities[p.Entity]
		ent.Destroyed = true
		ent.Curve = nil
		ent.Plan = nil
		ent.LastVelocity = core.Zero
		ent.LastDisplacement = core.Zero

	case core.CollisionDetected:
		w.entities[p.A].Collisions++
		if p.B != p.A {
			w.entities[p.B].Collisions++
		}
	case core.SubsystemDamaged:
		w.entities[p.Entity].damageSubsystem(p.Subsystem, p.Amount)
	case core.TrajectoryAltered:
		w.alter(w.entities[p.Entity], p.Velocity)

	default:
		return fmt.Errorf("%w: %T", ErrUnhandled, e.Payload)
	}
	return nil
}

func (w *World) spawn(p core.EntitySpawned) {
	health := p.Health
	if health <= 0 {
		health = FullHealth
	}
	rot := p.Rotation
	if rot == (core.Quat{}) {
		rot = core.Identity
	}
	env := p.Envelope
	if env == (core.Envelope{}) {
		env = core.DefaultEnvelope()
	}
	ent := &Entity{
		ID:        p.Entity,
		Kind:      p.Kind,
		Name:      p.Name,
		Owner:     p.Owner,
		Position:  p.Position,
		Rotation:  rot,
		Health:    health,
		MaxHealth: health,
		Envelope:  env,
		Origin:    p.Position,
	}
	if len(p.Subsystems) > 0 {
		ent.Subsystems = make(map[string]Subsystem, len(p.Subsystems))
		for _, name := range p.Subsystems {
			ent.Subsystems[name] = Subsystem{Health: FullHealth}
		}
	}
	w.entities[p.Entity] = ent
}

// settle applies the authoritative end-of-turn pose and threads momentum into the next turn.
func (w *World) settle(ent *Entity, p core.PositionUpdated) {
	mode := ent.TurnMode
	chain := movement.NextChain(ent.Chain(), mode, p.Velocity)

	ent.LastDisplacement = p.Position.Sub(ent.Origin)
	ent.Position = p.Position
	ent.Rotation = p.Rotation
	ent.LastVelocity = chain.Velocity
	ent.BoostUsed = chain.BoostUsed
	ent.Mode = mode
	ent.Origin = p.Position
	ent.TurnMode = core.ModeDefault
	ent.Curve = nil
	ent.Plan = nil
}

// alter replaces the remainder of the entity's curve with a segment seeded by velocity.
func (w *World) alter(ent *Entity, velocity core.Vec3) {
	base := ent.Curve
	if base == nil {
		base = &movement.Curve{
			Start:         ent.Position,
			End:           ent.Position,
			Control:       ent.Position,
			StartRotation: ent.Rotation,
			EndRotation:   ent.Rotation,
		}
	}
	seg := base.Segment(w.Clock/core.TurnDuration, velocity)
	ent.Curve = &seg
}

// EvaluateAt moves every in-flight entity to its curve position at intra seconds.
// Outside the execution window it only records the clock.
func (w *World) EvaluateAt(intra float64) {
	intra = max(0, min(core.TurnDuration, intra))
	w.Clock = intra
	if w.Phase != PhaseSimulating {
		return
	}
	t := intra / core.TurnDuration
	for _, ent := range w.entities {
		if ent.Curve == nil || ent.Destroyed {
			continue
		}
		ent.Position = ent.Curve.Evaluate(t)
		ent.Rotation = ent.Curve.RotationAt(t)
	}
}
