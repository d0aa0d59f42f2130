package geo

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/turnkernel/internal/movement"
	"github.com/OCAP2/turnkernel/pkg/core"
)

func TestVec3FromString(t *testing.T) {
	tests := []struct {
		in   string
		want core.Vec3
		err  bool
	}{
		{"1,2,3", core.V(1, 2, 3), false},
		{" -4.5, 0 ,1e2", core.V(-4.5, 0, 100), false},
		{"6,8", core.V(6, 0, 8), false},
		{"1", core.Vec3{}, true},
		{"", core.Vec3{}, true},
		{"1,2,3,4", core.Vec3{}, true},
		{"a,2,3", core.Vec3{}, true},
	}
	for _, tt := range tests {
		got, err := Vec3FromString(tt.in)
		if tt.err {
			assert.ErrorIs(t, err, ErrInvalidCoordinates, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestPointRoundTrip(t *testing.T) {
	v := core.V(3, -2, 7)
	p, err := PointFromVec3(v)
	require.NoError(t, err)

	c, ok := p.Coordinates()
	require.True(t, ok)
	assert.Equal(t, 3.0, c.X)
	assert.Equal(t, 7.0, c.Y)
	assert.Equal(t, -2.0, c.Z)
	assert.Equal(t, v, Vec3FromPoint(p))
}

func TestPointFromVec3_NotFinite(t *testing.T) {
	_, err := PointFromVec3(core.V(math.NaN(), 0, 0))
	assert.Error(t, err)
}

func TestLineStringFromPositions_TooFew(t *testing.T) {
	_, err := LineStringFromPositions([]core.Vec3{core.Zero})
	assert.Error(t, err)
}

func TestLineStringFromPositions_NotFinite(t *testing.T) {
	_, err := LineStringFromPositions([]core.Vec3{core.Zero, core.V(0, math.Inf(1), 0)})
	assert.Error(t, err)
}

func TestTrajectory_VerticalOnly(t *testing.T) {
	c := movement.NewCurve(movement.CurveInput{
		Start:          core.V(4, 0, 5),
		Target:         core.V(4, 6, 5),
		StartRotation:  core.Identity,
		TargetRotation: core.Identity,
	})

	ls, err := Trajectory(c, 4)
	require.NoError(t, err)
	assert.Equal(t, 5, ls.Coordinates().Length())
	assert.InDelta(t, 6.0, Length3D(ls), 1e-9)
	assert.InDelta(t, 0.0, GroundLength(ls), 1e-9)
}

func TestTrajectory_StraightLine(t *testing.T) {
	c := movement.NewCurve(movement.CurveInput{
		Start:          core.Zero,
		Target:         core.V(6, 0, 8),
		StartRotation:  core.Identity,
		TargetRotation: core.Identity,
	})

	ls, err := Trajectory(c, 10)
	require.NoError(t, err)
	assert.Equal(t, 11, ls.Coordinates().Length())
	assert.InDelta(t, 10.0, Length3D(ls), 1e-9)
	assert.InDelta(t, 10.0, GroundLength(ls), 1e-9)
}

func TestTrajectory_MatchesArcLength(t *testing.T) {
	c := movement.NewCurve(movement.CurveInput{
		Start:          core.Zero,
		Target:         core.V(10, 3, 6),
		LastVelocity:   core.V(0, 0, 8),
		StartRotation:  core.Identity,
		TargetRotation: core.Identity,
	})

	ls, err := Trajectory(c, 0)
	require.NoError(t, err)
	assert.InDelta(t, c.ArcLength(), Length3D(ls), 1e-9)
	assert.Less(t, GroundLength(ls), Length3D(ls))
}

func TestTrajectoryWKT(t *testing.T) {
	c := movement.NewCurve(movement.CurveInput{
		Start:          core.V(1, 2, 3),
		Target:         core.V(1, 2, 3),
		StartRotation:  core.Identity,
		TargetRotation: core.Identity,
	})
	wkt, err := TrajectoryWKT(c, 2)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(wkt, "LINESTRING Z"), wkt)
	assert.Contains(t, wkt, "1 3 2")
	assert.False(t, math.IsNaN(c.ArcLength()))
}
