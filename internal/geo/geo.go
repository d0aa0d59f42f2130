// Package geo converts kernel positions to simplefeatures geometries. The kernel is
// Y-up; geometries use the ground plane (X, Z) as XY and the height as Z, so 2D
// operations see the top-down view.
package geo

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/OCAP2/turnkernel/pkg/core"
)

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Vec3FromString parses "x,y,z" into a kernel position. A missing y defaults to 0 when
// only "x,z" is given.
func Vec3FromString(coords string) (core.Vec3, error) {
	parts := strings.Split(coords, ",")
	if len(parts) < 2 || len(parts) > 3 {
		return core.Vec3{}, ErrInvalidCoordinates
	}
	vals := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return core.Vec3{}, ErrInvalidCoordinates
		}
		vals[i] = v
	}
	if len(vals) == 2 {
		return core.V(vals[0], 0, vals[1]), nil
	}
	return core.V(vals[0], vals[1], vals[2]), nil
}

// Coordinates maps a kernel position to geometry coordinates.
func Coordinates(v core.Vec3) geom.Coordinates {
	return geom.Coordinates{
		XY:   geom.XY{X: v.X, Y: v.Z},
		Z:    v.Y,
		Type: geom.DimXYZ,
	}
}

// PointFromVec3 creates an XYZ point. Non-finite positions are rejected.
func PointFromVec3(v core.Vec3) (geom.Point, error) {
	p, err := geom.NewPoint(Coordinates(v))
	if err != nil {
		return geom.Point{}, fmt.Errorf("invalid point %v: %w", v, err)
	}
	return p, nil
}

// Vec3FromPoint is the inverse of PointFromVec3. Empty points map to the origin.
func Vec3FromPoint(p geom.Point) core.Vec3 {
	c, ok := p.Coordinates()
	if !ok {
		return core.Zero
	}
	return core.V(c.X, c.Z, c.Y)
}
