// pkg/core/vector.go
package core

import "math"

// Vec3 is a 64-bit position or direction in the world frame.
//
// Every product below is wrapped in an explicit float64 conversion. The Go
// compiler may otherwise fuse a multiply and an add into one FMA instruction
// on some architectures, and replays must produce bit-identical results on
// every platform.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Common vectors.
var (
	Zero  = Vec3{}
	UnitX = Vec3{X: 1}
	UnitY = Vec3{Y: 1}
	UnitZ = Vec3{Z: 1}
)

// V is shorthand for building a Vec3.
func V(x, y, z float64) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{X: float64(v.X * s), Y: float64(v.Y * s), Z: float64(v.Z * s)}
}

func (v Vec3) Div(s float64) Vec3 {
	return Vec3{X: v.X / s, Y: v.Y / s, Z: v.Z / s}
}

func (v Vec3) Neg() Vec3 {
	return Vec3{X: -v.X, Y: -v.Y, Z: -v.Z}
}

func (v Vec3) Dot(o Vec3) float64 {
	return float64(v.X*o.X) + float64(v.Y*o.Y) + float64(v.Z*o.Z)
}

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		X: float64(v.Y*o.Z) - float64(v.Z*o.Y),
		Y: float64(v.Z*o.X) - float64(v.X*o.Z),
		Z: float64(v.X*o.Y) - float64(v.Y*o.X),
	}
}

// Length returns the Euclidean norm.
func (v Vec3) Length() float64 {
	return math.Sqrt(v.Dot(v))
}

// LengthXZ returns the horizontal (XZ plane) distance.
func (v Vec3) LengthXZ() float64 {
	return math.Sqrt(float64(v.X*v.X) + float64(v.Z*v.Z))
}

// Normalize returns the unit vector, or Zero for a zero-length input.
func (v Vec3) Normalize() Vec3 {
	l := v.Length()
	if l == 0 {
		return Zero
	}
	return v.Div(l)
}

// ApproxEqual reports whether every component differs by at most eps.
func (v Vec3) ApproxEqual(o Vec3, eps float64) bool {
	return math.Abs(v.X-o.X) <= eps && math.Abs(v.Y-o.Y) <= eps && math.Abs(v.Z-o.Z) <= eps
}

// IsFinite reports whether no component is NaN or infinite.
func (v Vec3) IsFinite() bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// anyOrthonormal returns some unit vector perpendicular to v (v must be unit length).
func (v Vec3) anyOrthonormal() Vec3 {
	if math.Abs(v.X) < 0.9 {
		return UnitX.Cross(v).Normalize()
	}
	return UnitY.Cross(v).Normalize()
}

// Quat is a double-precision rotation quaternion.
type Quat struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Identity is the no-rotation quaternion.
var Identity = Quat{W: 1}

// QuatFromAxisAngle builds a rotation of angle radians around a unit axis.
func QuatFromAxisAngle(axis Vec3, angle float64) Quat {
	s, c := math.Sincos(angle / 2)
	a := axis.Scale(s)
	return Quat{X: a.X, Y: a.Y, Z: a.Z, W: c}
}

// QuatFromRotationArc returns the shortest rotation taking unit vector from to unit vector to.
func QuatFromRotationArc(from, to Vec3) Quat {
	const oneMinusEps = 1.0 - 2.0*1e-12
	d := from.Dot(to)
	switch {
	case d > oneMinusEps:
		return Identity
	case d < -oneMinusEps:
		return QuatFromAxisAngle(from.anyOrthonormal(), math.Pi)
	}
	c := from.Cross(to)
	return Quat{X: c.X, Y: c.Y, Z: c.Z, W: 1 + d}.Normalize()
}

func (q Quat) Dot(o Quat) float64 {
	return float64(q.X*o.X) + float64(q.Y*o.Y) + float64(q.Z*o.Z) + float64(q.W*o.W)
}

func (q Quat) Length() float64 {
	return math.Sqrt(q.Dot(q))
}

// IsFinite reports whether no component is NaN or infinite.
func (q Quat) IsFinite() bool {
	return isFinite(q.X) && isFinite(q.Y) && isFinite(q.Z) && isFinite(q.W)
}

// IsUnit reports whether q is a finite rotation of length 1 within eps.
func (q Quat) IsUnit(eps float64) bool {
	return q.IsFinite() && math.Abs(q.Length()-1) <= eps
}

func (q Quat) Normalize() Quat {
	l := q.Length()
	if l == 0 {
		return Identity
	}
	return Quat{X: q.X / l, Y: q.Y / l, Z: q.Z / l, W: q.W / l}
}

func (q Quat) scale(s float64) Quat {
	return Quat{X: float64(q.X * s), Y: float64(q.Y * s), Z: float64(q.Z * s), W: float64(q.W * s)}
}

func (q Quat) add(o Quat) Quat {
	return Quat{X: q.X + o.X, Y: q.Y + o.Y, Z: q.Z + o.Z, W: q.W + o.W}
}

// Mul composes two rotations (q applied after o).
func (q Quat) Mul(o Quat) Quat {
	return Quat{
		X: float64(q.W*o.X) + float64(q.X*o.W) + float64(q.Y*o.Z) - float64(q.Z*o.Y),
		Y: float64(q.W*o.Y) - float64(q.X*o.Z) + float64(q.Y*o.W) + float64(q.Z*o.X),
		Z: float64(q.W*o.Z) + float64(q.X*o.Y) - float64(q.Y*o.X) + float64(q.Z*o.W),
		W: float64(q.W*o.W) - float64(q.X*o.X) - float64(q.Y*o.Y) - float64(q.Z*o.Z),
	}
}

// Rotate applies the rotation to v.
func (q Quat) Rotate(v Vec3) Vec3 {
	u := Vec3{X: q.X, Y: q.Y, Z: q.Z}
	t := u.Cross(v).Scale(2)
	return v.Add(t.Scale(q.W)).Add(u.Cross(t))
}

// AngleBetween returns the rotation angle in radians separating q and o.
func (q Quat) AngleBetween(o Quat) float64 {
	d := math.Abs(q.Dot(o))
	if d > 1 {
		d = 1
	}
	return 2 * math.Acos(d)
}

// Slerp spherically interpolates from q to o by t in [0,1].
func (q Quat) Slerp(o Quat, t float64) Quat {
	d := q.Dot(o)
	if d < 0 {
		o = o.scale(-1)
		d = -d
	}
	if d > 1-1e-9 {
		return q.scale(1 - t).add(o.scale(t)).Normalize()
	}
	theta := math.Acos(d)
	sinTheta := math.Sin(theta)
	a := math.Sin(float64((1-t)*theta)) / sinTheta
	b := math.Sin(float64(t*theta)) / sinTheta
	return q.scale(a).add(o.scale(b))
}

// Forward returns the rotated +Z axis.
func (q Quat) Forward() Vec3 {
	return q.Rotate(UnitZ)
}
