package movement

import (
	"fmt"

	"github.com/OCAP2/turnkernel/pkg/core"
)

// RotationUnitEpsilon is how far a target rotation's length may stray from 1.
const RotationUnitEpsilon = 1e-6

// Request is a proposed move for one entity, evaluated against its state at turn start.
type Request struct {
	Entity           core.EntityID
	Position         core.Vec3
	Rotation         core.Quat
	Target           core.Vec3
	TargetRotation   core.Quat
	Mode             core.MovementMode
	Previous         core.MovementMode // mode of the entity's last completed turn
	Chain            ChainState
	LastDisplacement core.Vec3
	Envelope         core.Envelope
	MidSimulation    bool
	// Clamp pulls out-of-envelope targets back inside instead of rejecting them.
	Clamp bool
}

// Plan is the accepted form of a Request. It may differ from what was asked for:
// sliding fixes the target, boosting fixes the rotation, and clamping moves both.
type Plan struct {
	Entity   core.EntityID
	Target   core.Vec3
	Rotation core.Quat
	Mode     core.MovementMode
	Clamped  bool
}

// Planned returns the event payload recording the accepted plan.
func (p Plan) Planned() core.MovementPlanned {
	return core.MovementPlanned{
		Entity:   p.Entity,
		Target:   p.Target,
		Rotation: p.Rotation,
		Mode:     p.Mode,
		Clamped:  p.Clamped,
	}
}

// Curve builds the turn's curve for the accepted plan.
func (p Plan) Curve(req Request) Curve {
	return NewCurve(CurveInput{
		Start:            req.Position,
		Target:           p.Target,
		LastVelocity:     req.Chain.Velocity,
		LastDisplacement: req.LastDisplacement,
		StartRotation:    req.Rotation,
		TargetRotation:   p.Rotation,
		Mode:             p.Mode,
	})
}

// Validate accepts or rejects a movement request. Rejections are *ValidationError.
func Validate(req Request) (Plan, error) {
	if req.MidSimulation {
		return Plan{}, reject(req, ErrMidSimulation)
	}
	if !finite(req.Target) {
		return Plan{}, reject(req, ErrInvalidTarget)
	}
	// A zero rotation keeps the current heading; anything else must be a unit quaternion.
	if req.TargetRotation != (core.Quat{}) && !req.TargetRotation.IsUnit(RotationUnitEpsilon) {
		return Plan{}, reject(req, fmt.Errorf("%w: rotation %v", ErrInvalidTarget, req.TargetRotation))
	}
	if err := CanTransition(req.Previous, req.Mode, req.Chain); err != nil {
		return Plan{}, reject(req, err)
	}

	plan := Plan{
		Entity:   req.Entity,
		Target:   req.Target,
		Rotation: req.TargetRotation,
		Mode:     req.Mode,
	}
	if plan.Rotation == (core.Quat{}) {
		plan.Rotation = req.Rotation
	}
	rangeFactor := 1.0
	switch req.Mode {
	case core.ModeBoosted:
		rangeFactor = BoostRangeFactor
	case core.ModeSliding:
		plan.Target = req.Position.Add(req.LastDisplacement)
	}

	if err := checkPosition(req.Envelope, req.Position, plan.Target, rangeFactor); err != nil {
		if !req.Clamp || req.Mode == core.ModeSliding {
			return Plan{}, reject(req, fmt.Errorf("%w: %v", err, plan.Target))
		}
		plan.Target = ClampPosition(req.Envelope, req.Position, plan.Target, rangeFactor)
		plan.Clamped = true
	}

	// Boosting locks orientation to the travel direction, so the requested rotation is ignored.
	if req.Mode == core.ModeBoosted {
		plan.Rotation = TravelRotation(req.Position, plan.Target, req.Rotation)
		return plan, nil
	}

	if !IsRotationValid(req.Envelope, req.Rotation, plan.Rotation) {
		if !req.Clamp {
			return Plan{}, reject(req, fmt.Errorf("%w: %.4f rad", ErrRotationArc, req.Rotation.AngleBetween(plan.Rotation)))
		}
		plan.Rotation = ClampRotation(req.Envelope, req.Rotation, plan.Rotation)
		plan.Clamped = true
	}
	return plan, nil
}
