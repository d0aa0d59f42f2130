package sim

import (
	"maps"

	"github.com/OCAP2/turnkernel/internal/movement"
	"github.com/OCAP2/turnkernel/pkg/core"
)

// FullHealth is the starting health of hulls and subsystems when none is given.
const FullHealth = 100.0

// Subsystem is a damageable ship component.
type Subsystem struct {
	Health   float64 `json:"health"`
	Disabled bool    `json:"disabled"`
}

// Entity is the per-entity simulation state. LastVelocity and LastDisplacement carry
// momentum across turns and are part of every capture.
type Entity struct {
	ID         core.EntityID        `json:"id"`
	Kind       string               `json:"kind"`
	Name       string               `json:"name,omitempty"`
	Owner      core.PlayerID        `json:"owner,omitempty"`
	Position   core.Vec3            `json:"position"`
	Rotation   core.Quat            `json:"rotation"`
	Health     float64              `json:"health"`
	MaxHealth  float64              `json:"maxHealth"`
	Envelope   core.Envelope        `json:"envelope"`
	Subsystems map[string]Subsystem `json:"subsystems,omitempty"`
	Destroyed  bool                 `json:"destroyed,omitempty"`

	Mode             core.MovementMode `json:"mode"`
	LastVelocity     core.Vec3         `json:"lastVelocity"`
	LastDisplacement core.Vec3         `json:"lastDisplacement"`
	BoostUsed        bool              `json:"boostUsed,omitempty"`
	Origin           core.Vec3         `json:"origin"`   // position at turn start
	TurnMode         core.MovementMode `json:"turnMode"` // mode confirmed for the current turn

	Plan  *core.MovementPlanned `json:"plan,omitempty"`
	Curve *movement.Curve       `json:"curve,omitempty"`

	ShotsFired int `json:"shotsFired,omitempty"`
	HitsTaken  int `json:"hitsTaken,omitempty"`
	Collisions int `json:"collisions,omitempty"`
}

// Chain is the momentum state used to validate the entity's next plan.
func (e *Entity) Chain() movement.ChainState {
	return movement.ChainState{Velocity: e.LastVelocity, BoostUsed: e.BoostUsed}
}

// Moving reports whether the entity has a curve for the current turn.
func (e *Entity) Moving() bool {
	return e.Curve != nil
}

func (e *Entity) clone() *Entity {
	c := *e
	c.Subsystems = maps.Clone(e.Subsystems)
	if e.Plan != nil {
		p := *e.Plan
		c.Plan = &p
	}
	if e.Curve != nil {
		cv := *e.Curve
		c.Curve = &cv
	}
	return &c
}

func (e *Entity) damageSubsystem(name string, amount float64) {
	if e.Subsystems == nil {
		e.Subsystems = make(map[string]Subsystem)
	}
	s, ok := e.Subsystems[name]
	if !ok {
		s = Subsystem{Health: FullHealth}
	}
	s.Health -= amount
	if s.Health <= 0 {
		s.Health = 0
		s.Disabled = true
	}
	e.Subsystems[name] = s
}

func (e *Entity) setSubsystem(name string, disabled bool) {
	if e.Subsystems == nil {
		e.Subsystems = make(map[string]Subsystem)
	}
	s, ok := e.Subsystems[name]
	if !ok {
		s = Subsystem{Health: FullHealth}
	}
	s.Disabled = disabled
	if !disabled && s.Health <= 0 {
		s.Health = FullHealth
	}
	e.Subsystems[name] = s
}
