package geo

import (
	"fmt"
	"math"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/OCAP2/turnkernel/internal/movement"
	"github.com/OCAP2/turnkernel/pkg/core"
)

// DefaultSamples matches the polyline resolution used for curve arc length.
const DefaultSamples = movement.ArcLengthSteps

// LineStringFromPositions builds an XYZ line string from at least two positions.
// A stationary or purely vertical path is kept even though it has a single distinct
// ground position, so validation is limited to finite coordinates.
func LineStringFromPositions(positions []core.Vec3) (geom.LineString, error) {
	if len(positions) < 2 {
		return geom.LineString{}, fmt.Errorf("line string must have at least 2 points, got %d", len(positions))
	}
	flat := make([]float64, 0, len(positions)*3)
	for i, p := range positions {
		if !p.IsFinite() {
			return geom.LineString{}, fmt.Errorf("position %d is not finite: %v", i, p)
		}
		c := Coordinates(p)
		flat = append(flat, c.X, c.Y, c.Z)
	}
	ls, err := geom.NewLineString(geom.NewSequence(flat, geom.DimXYZ), geom.DisableAllValidations)
	if err != nil {
		return geom.LineString{}, fmt.Errorf("failed to build line string: %w", err)
	}
	return ls, nil
}

// Trajectory samples the curve into an XYZ line string.
func Trajectory(c movement.Curve, samples int) (geom.LineString, error) {
	if samples < 1 {
		samples = DefaultSamples
	}
	return LineStringFromPositions(c.Sample(samples))
}

// TrajectoryWKT renders the sampled curve as WKT, e.g. "LINESTRING Z (0 0 0,...)".
func TrajectoryWKT(c movement.Curve, samples int) (string, error) {
	ls, err := Trajectory(c, samples)
	if err != nil {
		return "", err
	}
	return ls.AsText(), nil
}

// Length3D sums segment lengths including height. simplefeatures' Length is planar.
func Length3D(ls geom.LineString) float64 {
	seq := ls.Coordinates()
	total := 0.0
	for i := 1; i < seq.Length(); i++ {
		a, b := seq.Get(i-1), seq.Get(i)
		dx, dy, dz := b.X-a.X, b.Y-a.Y, b.Z-a.Z
		total += math.Sqrt(float64(dx*dx) + float64(dy*dy) + float64(dz*dz))
	}
	return total
}

// GroundLength is the top-down distance covered.
func GroundLength(ls geom.LineString) float64 {
	return ls.Length()
}
