package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

const eps = 1e-9

func TestVec3Arithmetic(t *testing.T) {
	a := V(1, 2, 3)
	b := V(4, 5, 6)

	assert.Equal(t, V(5, 7, 9), a.Add(b))
	assert.Equal(t, V(-3, -3, -3), a.Sub(b))
	assert.Equal(t, V(2, 4, 6), a.Scale(2))
	assert.Equal(t, 32.0, a.Dot(b))
	assert.Equal(t, V(-3, 6, -3), a.Cross(b))
	assert.Equal(t, 5.0, V(3, 99, 4).LengthXZ())
	assert.Equal(t, Zero, Zero.Normalize())
}

func TestQuatFromRotationArc(t *testing.T) {
	tests := []struct {
		name string
		to   Vec3
	}{
		{"same", UnitZ},
		{"right", UnitX},
		{"up", UnitY},
		{"opposite", UnitZ.Neg()},
		{"diagonal", V(1, 0, 1).Normalize()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := QuatFromRotationArc(UnitZ, tt.to)
			assert.True(t, q.Forward().ApproxEqual(tt.to, eps), "got %v", q.Forward())
			assert.InDelta(t, 1.0, q.Length(), eps)
		})
	}
}

func TestQuatAngleBetween(t *testing.T) {
	q := QuatFromAxisAngle(UnitY, math.Pi/3)
	assert.InDelta(t, math.Pi/3, Identity.AngleBetween(q), eps)
	assert.InDelta(t, 0, q.AngleBetween(q), 1e-6)
}

func TestQuatSlerp(t *testing.T) {
	q := QuatFromAxisAngle(UnitY, math.Pi/2)

	half := Identity.Slerp(q, 0.5)
	assert.InDelta(t, math.Pi/4, Identity.AngleBetween(half), 1e-6)

	end := Identity.Slerp(q, 1)
	assert.InDelta(t, 0, end.AngleBetween(q), 1e-6)
}

func TestQuatMulRotate(t *testing.T) {
	a := QuatFromAxisAngle(UnitY, math.Pi/2)
	b := a.Mul(a)
	assert.True(t, b.Rotate(UnitZ).ApproxEqual(UnitZ.Neg(), eps))
}

func TestFiniteAndUnit(t *testing.T) {
	assert.True(t, V(1, -2, 3).IsFinite())
	assert.False(t, V(math.NaN(), 0, 0).IsFinite())
	assert.False(t, V(0, math.Inf(-1), 0).IsFinite())

	assert.True(t, Identity.IsUnit(1e-9))
	assert.True(t, QuatFromAxisAngle(UnitY, 1.3).IsUnit(1e-9))
	assert.False(t, Quat{W: 2}.IsUnit(1e-6))
	assert.False(t, Quat{}.IsUnit(1e-6))
	assert.False(t, Quat{Z: math.NaN(), W: 1}.IsUnit(1e-6))
}
