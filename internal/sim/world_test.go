package sim

import (
	"testing"

	"github.com/OCAP2/turnkernel/internal/movement"
	"github.com/OCAP2/turnkernel/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-9

type feed struct {
	t      *testing.T
	w      *World
	nextID core.EventID
}

func newFeed(t *testing.T) *feed {
	return &feed{t: t, w: New(), nextID: 1}
}

func (f *feed) apply(turn uint32, at *float64, p core.Payload) {
	f.t.Helper()
	require.NoError(f.t, f.w.Apply(core.Event{ID: f.nextID, Turn: turn, Time: at, Payload: p}))
	f.nextID++
}

func (f *feed) confirm(turn uint32, id core.EntityID, target core.Vec3, mode core.MovementMode) movement.Curve {
	f.t.Helper()
	ent, ok := f.w.Entity(id)
	require.True(f.t, ok)
	c := movement.NewCurve(movement.CurveInput{
		Start:            ent.Position,
		Target:           target,
		LastVelocity:     ent.LastVelocity,
		LastDisplacement: ent.LastDisplacement,
		StartRotation:    ent.Rotation,
		TargetRotation:   ent.Rotation,
		Mode:             mode,
	})
	f.apply(turn, nil, c.Confirmed(id))
	return c
}

func (f *feed) finish(turn uint32, curves map[core.EntityID]movement.Curve) {
	f.t.Helper()
	for _, id := range f.w.EntityIDs() {
		c, ok := curves[id]
		ent, _ := f.w.Entity(id)
		pu := core.PositionUpdated{Entity: id, Position: ent.Position, Rotation: ent.Rotation}
		if ok {
			pu.Position = c.Evaluate(1)
			pu.Rotation = c.RotationAt(1)
			pu.Velocity = c.EndingVelocity()
		}
		f.apply(turn, core.At(10), pu)
	}
	f.apply(turn, core.At(10), core.SimulationCompleted{})
	f.apply(turn, core.At(10), core.TurnEnded{})
}

func TestMomentumChainThroughEvents(t *testing.T) {
	f := newFeed(t)
	f.apply(0, nil, core.EntitySpawned{Entity: 1, Kind: "cruiser"})

	f.apply(1, nil, core.TurnStarted{})
	c1 := f.confirm(1, 1, core.V(10, 0, 0), core.ModeDefault)
	assert.Equal(t, core.V(4, 0, 0), c1.Control)
	f.apply(1, core.At(0), core.SimulationStarted{})
	f.finish(1, map[core.EntityID]movement.Curve{1: c1})

	ent, _ := f.w.Entity(1)
	assert.Equal(t, core.V(10, 0, 0), ent.Position)
	assert.Equal(t, core.V(6, 0, 0), ent.LastVelocity)
	assert.Equal(t, core.V(10, 0, 0), ent.LastDisplacement)
	assert.Nil(t, ent.Curve)
	assert.Equal(t, PhaseResolved, f.w.Phase)

	f.apply(2, nil, core.TurnStarted{})
	c2 := f.confirm(2, 1, core.V(20, 5, 0), core.ModeDefault)
	assert.True(t, c2.Control.ApproxEqual(core.V(12.4, 0, 0), eps))
}

func TestEvaluateAtMovesInFlightEntities(t *testing.T) {
	f := newFeed(t)
	f.apply(0, nil, core.EntitySpawned{Entity: 1})
	f.apply(1, nil, core.TurnStarted{})
	c := f.confirm(1, 1, core.V(10, 0, 0), core.ModeDefault)

	// Planning phase: curves are fixed but not yet running.
	f.w.EvaluateAt(5)
	ent, _ := f.w.Entity(1)
	assert.Equal(t, core.Zero, ent.Position)

	f.apply(1, core.At(0), core.SimulationStarted{})
	f.w.EvaluateAt(5)
	ent, _ = f.w.Entity(1)
	assert.Equal(t, c.Evaluate(0.5), ent.Position)
	assert.Equal(t, 5.0, f.w.Clock)
}

func TestDestroyedEntityFreezesAtEventTime(t *testing.T) {
	f := newFeed(t)
	f.apply(0, nil, core.EntitySpawned{Entity: 1})
	f.apply(1, nil, core.TurnStarted{})
	c := f.confirm(1, 1, core.V(10, 0, 0), core.ModeDefault)
	f.apply(1, core.At(0), core.SimulationStarted{})
	f.apply(1, core.At(4), core.EntityDestroyed{Entity: 1})

	f.w.EvaluateAt(9)
	ent, _ := f.w.Entity(1)
	assert.True(t, ent.Destroyed)
	assert.Equal(t, c.Evaluate(0.4), ent.Position)
}

func TestTrajectoryAlteredReplacesRemainder(t *testing.T) {
	f := newFeed(t)
	f.apply(0, nil, core.EntitySpawned{Entity: 1})
	f.apply(0, nil, core.EntitySpawned{Entity: 2, Position: core.V(5, 0, 1)})
	f.apply(1, nil, core.TurnStarted{})
	c := f.confirm(1, 1, core.V(10, 0, 0), core.ModeDefault)
	f.apply(1, core.At(0), core.SimulationStarted{})
	f.apply(1, core.At(5), core.CollisionDetected{A: 1, B: 2, Position: core.V(4.5, 0, 0)})
	f.apply(1, core.At(5), core.TrajectoryAltered{Entity: 1, Velocity: core.V(0, 0, -4)})

	ent, _ := f.w.Entity(1)
	require.NotNil(t, ent.Curve)
	at := c.Evaluate(0.5)
	assert.Equal(t, at, ent.Curve.Start)
	assert.Equal(t, 1, ent.Collisions)

	f.w.EvaluateAt(10)
	ent, _ = f.w.Entity(1)
	assert.True(t, ent.Position.ApproxEqual(at.Add(core.V(0, 0, -2)), eps))
}

func TestDamage(t *testing.T) {
	f := newFeed(t)
	f.apply(0, nil, core.EntitySpawned{Entity: 1, Health: 50, Subsystems: []string{"engine"}})
	f.apply(1, nil, core.TurnStarted{})
	f.apply(1, core.At(0), core.SimulationStarted{})
	f.apply(1, core.At(1), core.DamageDealt{Target: 1, Amount: 20})
	f.apply(1, core.At(2), core.DamageDealt{Target: 1, Amount: 60, Subsystem: "engine"})
	f.apply(1, core.At(3), core.SubsystemDamaged{Entity: 1, Subsystem: "sensors", Amount: 30})
	f.apply(1, core.At(4), core.DamageDealt{Target: 1, Amount: 99})

	ent, _ := f.w.Entity(1)
	assert.Equal(t, 0.0, ent.Health)
	assert.Equal(t, 50.0, ent.MaxHealth)
	assert.Equal(t, Subsystem{Health: 40}, ent.Subsystems["engine"])
	assert.Equal(t, Subsystem{Health: 70}, ent.Subsystems["sensors"])

	f.apply(1, core.At(5), core.SubsystemDisabled{Entity: 1, Subsystem: "engine"})
	ent, _ = f.w.Entity(1)
	assert.True(t, ent.Subsystems["engine"].Disabled)

	f.apply(1, core.At(6), core.SubsystemRepaired{Entity: 1, Subsystem: "engine"})
	ent, _ = f.w.Entity(1)
	assert.False(t, ent.Subsystems["engine"].Disabled)
}

func TestBoostChain(t *testing.T) {
	f := newFeed(t)
	f.apply(0, nil, core.EntitySpawned{Entity: 1})
	f.apply(1, nil, core.TurnStarted{})
	c := f.confirm(1, 1, core.V(30, 0, 0), core.ModeBoosted)
	f.apply(1, core.At(0), core.SimulationStarted{})
	f.finish(1, map[core.EntityID]movement.Curve{1: c})

	ent, _ := f.w.Entity(1)
	assert.True(t, ent.BoostUsed)
	assert.Equal(t, core.ModeBoosted, ent.Mode)
	assert.ErrorIs(t, movement.CanTransition(core.ModeDefault, core.ModeBoosted, ent.Chain()), movement.ErrIllegalTransition)
}

func TestCheckRejects(t *testing.T) {
	w := New()
	require.NoError(t, w.Apply(core.Event{ID: 1, Turn: 0, Payload: core.EntitySpawned{Entity: 1}}))

	assert.ErrorIs(t, w.Apply(core.Event{ID: 2, Turn: 0, Payload: core.EntitySpawned{Entity: 1}}), ErrEntityExists)
	assert.ErrorIs(t, w.Apply(core.Event{ID: 2, Turn: 0, Payload: core.WeaponFired{Attacker: 1, Target: 9}}), ErrUnknownEntity)

	require.NoError(t, w.Apply(core.Event{ID: 3, Turn: 2, Payload: core.TurnStarted{}}))
	assert.ErrorIs(t, w.Apply(core.Event{ID: 4, Turn: 1, Payload: core.TurnEnded{}}), ErrOutOfOrder)
}

func TestCaptureRestore(t *testing.T) {
	f := newFeed(t)
	f.apply(0, nil, core.SessionStarted{SessionID: "s", Scenario: "duel", Players: []core.PlayerID{"red", "blue"}})
	f.apply(0, nil, core.EntitySpawned{Entity: 2, Position: core.V(1.1, 2.2, 3.3), Subsystems: []string{"guns"}})
	f.apply(0, nil, core.EntitySpawned{Entity: 1})
	f.apply(1, nil, core.TurnStarted{})
	f.apply(1, nil, core.PlayerReady{Player: "red"})
	f.confirm(1, 1, core.V(3, 1, 7), core.ModeDefault)
	f.apply(1, core.At(0), core.SimulationStarted{})
	f.apply(1, core.At(3.7), core.DamageDealt{Target: 2, Amount: 0.1})

	data, err := f.w.Capture()
	require.NoError(t, err)

	restored := New()
	require.NoError(t, restored.Restore(data))
	again, err := restored.Capture()
	require.NoError(t, err)
	assert.Equal(t, data, again)
	assert.Equal(t, []core.PlayerID{"red"}, restored.Ready())
	assert.Equal(t, core.WorldFragment, restored.Name())

	assert.Error(t, restored.Restore([]byte(`{"version":99}`)))
}

func TestCloneIsIndependent(t *testing.T) {
	f := newFeed(t)
	f.apply(0, nil, core.EntitySpawned{Entity: 1, Subsystems: []string{"engine"}})

	c := f.w.Clone()
	require.NoError(t, c.Apply(core.Event{ID: 10, Turn: 0, Payload: core.DamageDealt{Target: 1, Amount: 5, Subsystem: "engine"}}))

	orig, _ := f.w.Entity(1)
	changed, _ := c.Entity(1)
	assert.Equal(t, FullHealth, orig.Subsystems["engine"].Health)
	assert.Equal(t, FullHealth-5, changed.Subsystems["engine"].Health)
}
