// Package movement implements the momentum-based quadratic Bézier movement model:
// control point placement, per-mode overrides, the mode transition table and
// movement envelope validation.
package movement

import (
	"math"

	"github.com/OCAP2/turnkernel/pkg/core"
)

const (
	// VelocityEpsilon is the magnitude below which momentum is treated as zero.
	VelocityEpsilon = 0.001
	// ControlDivisor scales the velocity or displacement into the control point offset.
	ControlDivisor = 2.5
	// BrakeFactor is the counter-thrust multiplier applied to last velocity in braking mode.
	BrakeFactor = 2.0
	// BoostRangeFactor multiplies the envelope range while boosting.
	BoostRangeFactor = 2.0
	// ArcLengthSteps is the polyline resolution used by ArcLength.
	ArcLengthSteps = 100
)

// CalculateControlPoint places the Bézier control point for a default-mode curve.
// With momentum the control point depends only on the velocity, not the target.
func CalculateControlPoint(start, end, lastVelocity core.Vec3) core.Vec3 {
	if lastVelocity.Length() < VelocityEpsilon {
		return start.Add(end.Sub(start).Div(ControlDivisor))
	}
	return start.Add(lastVelocity.Div(ControlDivisor))
}

// CurveInput is everything needed to build a turn's curve.
type CurveInput struct {
	Start            core.Vec3
	Target           core.Vec3
	LastVelocity     core.Vec3
	LastDisplacement core.Vec3 // previous turn's end - start, used by sliding
	StartRotation    core.Quat
	TargetRotation   core.Quat
	Mode             core.MovementMode
}

// Curve is an immutable quadratic Bézier trajectory for one turn.
// From is the global turn parameter at which the curve begins; it is zero except
// for replacement segments created by Segment.
type Curve struct {
	Start         core.Vec3         `json:"start"`
	End           core.Vec3         `json:"end"`
	Control       core.Vec3         `json:"control"`
	LastVelocity  core.Vec3         `json:"lastVelocity"`
	StartRotation core.Quat         `json:"startRotation"`
	EndRotation   core.Quat         `json:"endRotation"`
	Mode          core.MovementMode `json:"mode"`
	From          float64           `json:"from,omitempty"`
}

// NewCurve builds the curve for a planned move, applying the mode override.
func NewCurve(in CurveInput) Curve {
	c := Curve{
		Start:         in.Start,
		End:           in.Target,
		LastVelocity:  in.LastVelocity,
		StartRotation: in.StartRotation,
		EndRotation:   in.TargetRotation,
		Mode:          in.Mode,
	}

	switch in.Mode {
	case core.ModeBoosted:
		c.Control = CalculateControlPoint(c.Start, c.End, in.LastVelocity)
		c.EndRotation = TravelRotation(in.Start, in.Target, in.StartRotation)
	case core.ModeBraking:
		c.Control = in.Start.Sub(in.LastVelocity.Scale(BrakeFactor))
	case core.ModeSliding:
		c.End = in.Start.Add(in.LastDisplacement)
		c.Control = CalculateControlPoint(c.Start, c.End, in.LastVelocity)
	default:
		c.Control = CalculateControlPoint(c.Start, c.End, in.LastVelocity)
	}
	return c
}

// FromConfirmed rebuilds a curve from the parameters recorded on a MovementConfirmed event.
func FromConfirmed(p core.MovementConfirmed) Curve {
	return Curve{
		Start:         p.Start,
		End:           p.End,
		Control:       p.Control,
		LastVelocity:  p.LastVelocity,
		StartRotation: p.StartRotation,
		EndRotation:   p.EndRotation,
		Mode:          p.Mode,
	}
}

// Confirmed returns the event payload that fixes this curve for entity.
func (c Curve) Confirmed(entity core.EntityID) core.MovementConfirmed {
	return core.MovementConfirmed{
		Entity:        entity,
		Start:         c.Start,
		End:           c.End,
		Control:       c.Control,
		LastVelocity:  c.LastVelocity,
		StartRotation: c.StartRotation,
		EndRotation:   c.EndRotation,
		Mode:          c.Mode,
	}
}

// TravelRotation orients +Z along the direction of travel. A zero-length move keeps fallback.
func TravelRotation(start, end core.Vec3, fallback core.Quat) core.Quat {
	dir := end.Sub(start)
	if dir.Length() < VelocityEpsilon {
		return fallback
	}
	return core.QuatFromRotationArc(core.UnitZ, dir.Normalize())
}

// local maps a global turn parameter onto the curve's own [0,1] range.
func (c Curve) local(t float64) float64 {
	if t <= c.From {
		return 0
	}
	if t >= 1 || c.From >= 1 {
		return 1
	}
	if c.From == 0 {
		return t
	}
	return (t - c.From) / (1 - c.From)
}

// Evaluate returns the position at global turn fraction t in [0,1].
func (c Curve) Evaluate(t float64) core.Vec3 {
	u := c.local(t)
	v := 1 - u
	a := float64(v * v)
	b := float64(2 * float64(v*u))
	d := float64(u * u)
	return c.Start.Scale(a).Add(c.Control.Scale(b)).Add(c.End.Scale(d))
}

// VelocityAt is the derivative of the curve with respect to its own parameter.
func (c Curve) VelocityAt(t float64) core.Vec3 {
	u := c.local(t)
	return c.Control.Sub(c.Start).Scale(float64(2 * (1 - u))).Add(c.End.Sub(c.Control).Scale(float64(2 * u)))
}

// EndingVelocity seeds the next turn's momentum. Braking halves it.
func (c Curve) EndingVelocity() core.Vec3 {
	v := c.End.Sub(c.Control)
	if c.Mode == core.ModeBraking {
		return v.Scale(0.5)
	}
	return v
}

// RotationAt interpolates orientation along the curve.
func (c Curve) RotationAt(t float64) core.Quat {
	u := c.local(t)
	switch u {
	case 0:
		return c.StartRotation
	case 1:
		return c.EndRotation
	}
	return c.StartRotation.Slerp(c.EndRotation, u)
}

// Displacement is the net translation of the curve.
func (c Curve) Displacement() core.Vec3 {
	return c.End.Sub(c.Start)
}

// ArcLength approximates the path length with a fixed-step polyline.
func (c Curve) ArcLength() float64 {
	total := 0.0
	prev := c.Evaluate(c.From)
	for i := 1; i <= ArcLengthSteps; i++ {
		t := c.From + (1-c.From)*float64(i)/ArcLengthSteps
		p := c.Evaluate(t)
		total += p.Sub(prev).Length()
		prev = p
	}
	return total
}

// Sample returns n+1 evenly spaced positions across the remaining curve.
func (c Curve) Sample(n int) []core.Vec3 {
	if n < 1 {
		n = 1
	}
	out := make([]core.Vec3, 0, n+1)
	for i := 0; i <= n; i++ {
		out = append(out, c.Evaluate(c.From+(1-c.From)*float64(i)/float64(n)))
	}
	return out
}

// Segment replaces the remainder of the curve from global fraction t0 onwards with
// a new segment seeded by velocity, which is expressed per full turn. The new segment
// covers the remaining (1 - t0) of the turn.
func (c Curve) Segment(t0 float64, velocity core.Vec3) Curve {
	t0 = math.Max(c.From, math.Min(1, t0))
	start := c.Evaluate(t0)
	end := start.Add(velocity.Scale(1 - t0))
	return Curve{
		Start:         start,
		End:           end,
		Control:       CalculateControlPoint(start, end, velocity),
		LastVelocity:  velocity,
		StartRotation: c.RotationAt(t0),
		EndRotation:   c.EndRotation,
		Mode:          core.ModeDefault,
		From:          t0,
	}
}
