// pkg/core/events.go
package core

// EntityID identifies a simulated entity for the lifetime of a session.
type EntityID uint64

// EventID is the store-assigned, strictly increasing event identifier.
type EventID uint64

// PlayerID identifies a participant.
type PlayerID string

// PayloadType identifies an event payload variant on the wire.
type PayloadType string

// Movement events.
const (
	TypeMovementPlanned   PayloadType = "movement.planned"
	TypeMovementConfirmed PayloadType = "movement.confirmed"
	TypeMovementCancelled PayloadType = "movement.cancelled"
	TypePositionUpdated   PayloadType = "movement.position_updated"
)

// Combat events.
const (
	TypeWeaponFired     PayloadType = "combat.weapon_fired"
	TypeProjectileHit   PayloadType = "combat.projectile_hit"
	TypeDamageDealt     PayloadType = "combat.damage_dealt"
	TypeEntityDestroyed PayloadType = "combat.entity_destroyed"
)

// Collision events.
const (
	TypeCollisionDetected PayloadType = "collision.detected"
	TypeSubsystemDamaged  PayloadType = "collision.subsystem_damaged"
	TypeTrajectoryAltered PayloadType = "collision.trajectory_altered"
)

// Turn events.
const (
	TypeTurnStarted         PayloadType = "turn.started"
	TypePlayerReady         PayloadType = "turn.player_ready"
	TypeSimulationStarted   PayloadType = "turn.simulation_started"
	TypeSimulationCompleted PayloadType = "turn.simulation_completed"
	TypeTurnEnded           PayloadType = "turn.ended"
)

// System events.
const (
	TypeSessionStarted    PayloadType = "system.session_started"
	TypeSessionEnded      PayloadType = "system.session_ended"
	TypeEntitySpawned     PayloadType = "system.entity_spawned"
	TypeSubsystemDisabled PayloadType = "system.subsystem_disabled"
	TypeSubsystemRepaired PayloadType = "system.subsystem_repaired"
)

// Domain returns the prefix before the first dot (movement, combat, ...).
func (t PayloadType) Domain() string {
	for i, c := range t {
		if c == '.' {
			return string(t[:i])
		}
	}
	return string(t)
}

// Payload is the closed set of event bodies. Only types in this package implement it.
type Payload interface {
	Type() PayloadType
	// Entities lists every entity the event touches, used for the entity index.
	Entities() []EntityID
	sealed()
}

// MovementPlanned records the accepted target of a planned move.
// Clamped is set when the requested target was pulled back inside the envelope.
type MovementPlanned struct {
	Entity   EntityID     `json:"entity"`
	Target   Vec3         `json:"target"`
	Rotation Quat         `json:"rotation"`
	Mode     MovementMode `json:"mode"`
	Clamped  bool         `json:"clamped,omitempty"`
}

// MovementConfirmed fixes the turn's curve. It carries every curve parameter so a
// log can be replayed without recomputing control points.
type MovementConfirmed struct {
	Entity        EntityID     `json:"entity"`
	Start         Vec3         `json:"start"`
	End           Vec3         `json:"end"`
	Control       Vec3         `json:"control"`
	LastVelocity  Vec3         `json:"lastVelocity"`
	StartRotation Quat         `json:"startRotation"`
	EndRotation   Quat         `json:"endRotation"`
	Mode          MovementMode `json:"mode"`
}

type MovementCancelled struct {
	Entity EntityID `json:"entity"`
}

// PositionUpdated is the terminal state of an entity's movement for the turn.
// Velocity seeds the next turn's momentum.
type PositionUpdated struct {
	Entity   EntityID `json:"entity"`
	Position Vec3     `json:"position"`
	Rotation Quat     `json:"rotation"`
	Velocity Vec3     `json:"velocity"`
}

type WeaponFired struct {
	Attacker EntityID `json:"attacker"`
	Target   EntityID `json:"target"`
	Weapon   string   `json:"weapon"`
}

type ProjectileHit struct {
	Target   EntityID `json:"target"`
	Position Vec3     `json:"position"`
	Weapon   string   `json:"weapon"`
}

// DamageDealt reduces hull health, or a subsystem's health when Subsystem is set.
type DamageDealt struct {
	Target    EntityID `json:"target"`
	Source    EntityID `json:"source,omitempty"`
	Amount    float64  `json:"amount"`
	Subsystem string   `json:"subsystem,omitempty"`
}

type EntityDestroyed struct {
	Entity EntityID `json:"entity"`
}

type CollisionDetected struct {
	A        EntityID `json:"a"`
	B        EntityID `json:"b"`
	Position Vec3     `json:"position"`
}

type SubsystemDamaged struct {
	Entity    EntityID `json:"entity"`
	Subsystem string   `json:"subsystem"`
	Amount    float64  `json:"amount"`
}

// TrajectoryAltered replaces the remainder of an entity's curve with a new segment
// seeded by the collision-imparted velocity.
type TrajectoryAltered struct {
	Entity   EntityID `json:"entity"`
	Velocity Vec3     `json:"velocity"`
}

type TurnStarted struct{}

type PlayerReady struct {
	Player PlayerID `json:"player"`
}

type SimulationStarted struct{}

type SimulationCompleted struct{}

type TurnEnded struct{}

type SessionStarted struct {
	SessionID string     `json:"sessionId"`
	Scenario  string     `json:"scenario"`
	Players   []PlayerID `json:"players"`
}

type SessionEnded struct{}

// EntitySpawned introduces an entity with its initial pose and movement envelope.
type EntitySpawned struct {
	Entity     EntityID `json:"entity"`
	Kind       string   `json:"kind"`
	Name       string   `json:"name,omitempty"`
	Owner      PlayerID `json:"owner,omitempty"`
	Position   Vec3     `json:"position"`
	Rotation   Quat     `json:"rotation"`
	Health     float64  `json:"health"`
	Envelope   Envelope `json:"envelope"`
	Subsystems []string `json:"subsystems,omitempty"`
}

type SubsystemDisabled struct {
	Entity    EntityID `json:"entity"`
	Subsystem string   `json:"subsystem"`
}

type SubsystemRepaired struct {
	Entity    EntityID `json:"entity"`
	Subsystem string   `json:"subsystem"`
}

func (MovementPlanned) Type() PayloadType     { return TypeMovementPlanned }
func (MovementConfirmed) Type() PayloadType   { return TypeMovementConfirmed }
func (MovementCancelled) Type() PayloadType   { return TypeMovementCancelled }
func (PositionUpdated) Type() PayloadType     { return TypePositionUpdated }
func (WeaponFired) Type() PayloadType         { return TypeWeaponFired }
func (ProjectileHit) Type() PayloadType       { return TypeProjectileHit }
func (DamageDealt) Type() PayloadType         { return TypeDamageDealt }
func (EntityDestroyed) Type() PayloadType     { return TypeEntityDestroyed }
func (CollisionDetected) Type() PayloadType   { return TypeCollisionDetected }
func (SubsystemDamaged) Type() PayloadType    { return TypeSubsystemDamaged }
func (TrajectoryAltered) Type() PayloadType   { return TypeTrajectoryAltered }
func (TurnStarted) Type() PayloadType         { return TypeTurnStarted }
func (PlayerReady) Type() PayloadType         { return TypePlayerReady }
func (SimulationStarted) Type() PayloadType   { return TypeSimulationStarted }
func (SimulationCompleted) Type() PayloadType { return TypeSimulationCompleted }
func (TurnEnded) Type() PayloadType           { return TypeTurnEnded }
func (SessionStarted) Type() PayloadType      { return TypeSessionStarted }
func (SessionEnded) Type() PayloadType        { return TypeSessionEnded }
func (EntitySpawned) Type() PayloadType       { return TypeEntitySpawned }
func (SubsystemDisabled) Type() PayloadType   { return TypeSubsystemDisabled }
func (SubsystemRepaired) Type() PayloadType   { return TypeSubsystemRepaired }

func (p MovementPlanned) Entities() []EntityID   { return []EntityID{p.Entity} }
func (p MovementConfirmed) Entities() []EntityID { return []EntityID{p.Entity} }
func (p MovementCancelled) Entities() []EntityID { return []EntityID{p.Entity} }
func (p PositionUpdated) Entities() []EntityID   { return []EntityID{p.Entity} }
func (p WeaponFired) Entities() []EntityID       { return []EntityID{p.Attacker, p.Target} }
func (p ProjectileHit) Entities() []EntityID     { return []EntityID{p.Target} }
func (p EntityDestroyed) Entities() []EntityID   { return []EntityID{p.Entity} }
func (p CollisionDetected) Entities() []EntityID { return []EntityID{p.A, p.B} }
func (p SubsystemDamaged) Entities() []EntityID  { return []EntityID{p.Entity} }
func (p TrajectoryAltered) Entities() []EntityID { return []EntityID{p.Entity} }
func (TurnStarted) Entities() []EntityID         { return nil }
func (PlayerReady) Entities() []EntityID         { return nil }
func (SimulationStarted) Entities() []EntityID   { return nil }
func (SimulationCompleted) Entities() []EntityID { return nil }
func (TurnEnded) Entities() []EntityID           { return nil }
func (SessionStarted) Entities() []EntityID      { return nil }
func (SessionEnded) Entities() []EntityID        { return nil }
func (p EntitySpawned) Entities() []EntityID     { return []EntityID{p.Entity} }
func (p SubsystemDisabled) Entities() []EntityID { return []EntityID{p.Entity} }
func (p SubsystemRepaired) Entities() []EntityID { return []EntityID{p.Entity} }

func (p DamageDealt) Entities() []EntityID {
	if p.Source == 0 || p.Source == p.Target {
		return []EntityID{p.Target}
	}
	return []EntityID{p.Target, p.Source}
}

func (MovementPlanned) sealed()     {}
func (MovementConfirmed) sealed()   {}
func (MovementCancelled) sealed()   {}
func (PositionUpdated) sealed()     {}
func (WeaponFired) sealed()         {}
func (ProjectileHit) sealed()       {}
func (DamageDealt) sealed()         {}
func (EntityDestroyed) sealed()     {}
func (CollisionDetected) sealed()   {}
func (SubsystemDamaged) sealed()    {}
func (TrajectoryAltered) sealed()   {}
func (TurnStarted) sealed()         {}
func (PlayerReady) sealed()         {}
func (SimulationStarted) sealed()   {}
func (SimulationCompleted) sealed() {}
func (TurnEnded) sealed()           {}
func (SessionStarted) sealed()      {}
func (SessionEnded) sealed()        {}
func (EntitySpawned) sealed()       {}
func (SubsystemDisabled) sealed()   {}
func (SubsystemRepaired) sealed()   {}

// payloadFactories is the closed registry used when decoding events.
var payloadFactories = map[PayloadType]func() Payload{
	TypeMovementPlanned:     func() Payload { return &MovementPlanned{} },
	TypeMovementConfirmed:   func() Payload { return &MovementConfirmed{} },
	TypeMovementCancelled:   func() Payload { return &MovementCancelled{} },
	TypePositionUpdated:     func() Payload { return &PositionUpdated{} },
	TypeWeaponFired:         func() Payload { return &WeaponFired{} },
	TypeProjectileHit:       func() Payload { return &ProjectileHit{} },
	TypeDamageDealt:         func() Payload { return &DamageDealt{} },
	TypeEntityDestroyed:     func() Payload { return &EntityDestroyed{} },
	TypeCollisionDetected:   func() Payload { return &CollisionDetected{} },
	TypeSubsystemDamaged:    func() Payload { return &SubsystemDamaged{} },
	TypeTrajectoryAltered:   func() Payload { return &TrajectoryAltered{} },
	TypeTurnStarted:         func() Payload { return &TurnStarted{} },
	TypePlayerReady:         func() Payload { return &PlayerReady{} },
	TypeSimulationStarted:   func() Payload { return &SimulationStarted{} },
	TypeSimulationCompleted: func() Payload { return &SimulationCompleted{} },
	TypeTurnEnded:           func() Payload { return &TurnEnded{} },
	TypeSessionStarted:      func() Payload { return &SessionStarted{} },
	TypeSessionEnded:        func() Payload { return &SessionEnded{} },
	TypeEntitySpawned:       func() Payload { return &EntitySpawned{} },
	TypeSubsystemDisabled:   func() Payload { return &SubsystemDisabled{} },
	TypeSubsystemRepaired:   func() Payload { return &SubsystemRepaired{} },
}
