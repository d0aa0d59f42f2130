package movement

import (
	"math"

	"github.com/OCAP2/turnkernel/pkg/core"
)

// IsPositionValid reports whether target lies inside the envelope around start.
// rangeFactor scales MaxRange (BoostRangeFactor while boosting).
func IsPositionValid(env core.Envelope, start, target core.Vec3, rangeFactor float64) bool {
	return checkPosition(env, start, target, rangeFactor) == nil
}

// IsRotationValid reports whether target is within the per-turn rotation arc of start.
func IsRotationValid(env core.Envelope, start, target core.Quat) bool {
	return start.AngleBetween(target) <= env.MaxRotation
}

func checkPosition(env core.Envelope, start, target core.Vec3, rangeFactor float64) error {
	offset := target.Sub(start)
	if offset.LengthXZ() > float64(env.MaxRange*rangeFactor) {
		return ErrOutOfRange
	}
	if math.Abs(offset.Y) > env.MaxElevation {
		return ErrOutOfElevation
	}
	return nil
}

// ClampPosition scales the horizontal offset back to the range circle and clamps
// the vertical offset to the elevation limit.
func ClampPosition(env core.Envelope, start, target core.Vec3, rangeFactor float64) core.Vec3 {
	offset := target.Sub(start)
	maxRange := float64(env.MaxRange * rangeFactor)
	if xz := offset.LengthXZ(); xz > maxRange {
		k := maxRange / xz
		offset.X = float64(offset.X * k)
		offset.Z = float64(offset.Z * k)
	}
	offset.Y = math.Max(-env.MaxElevation, math.Min(env.MaxElevation, offset.Y))
	return start.Add(offset)
}

// ClampRotation slerps toward target no further than the rotation arc allows.
func ClampRotation(env core.Envelope, start, target core.Quat) core.Quat {
	angle := start.AngleBetween(target)
	if angle <= env.MaxRotation || angle == 0 {
		return target
	}
	return start.Slerp(target, env.MaxRotation/angle).Normalize()
}

func finite(v core.Vec3) bool {
	return v.IsFinite()
}
