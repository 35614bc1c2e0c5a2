// Package geo turns recorded vehicle positions into simple-features
// geometry. Positions are in the simulation's flat metric frame, so no
// projection is applied.
package geo

import (
	"errors"
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/trackday/vehsim/pkg/core"
)

// ErrTooFewPoints is returned when a path has fewer than two distinct
// planar positions, e.g. a vehicle that never moved.
var ErrTooFewPoints = errors.New("trajectory needs at least 2 distinct points")

// Bounds is the planar bounding box of a path.
type Bounds struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// Point converts a position into an XY point. Elevation is stored separately.
func Point(p core.Vec3) (geom.Point, error) {
	point, err := geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: p.X(), Y: p.Y()},
		Type: geom.DimXY,
	})
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXY), fmt.Errorf("invalid position %v: %w", p, err)
	}
	return point, nil
}

// Trajectory builds an XYZ LineString from positions in recording order.
// Consecutive positions sharing an XY value collapse into the first one.
func Trajectory(points []core.Vec3) (geom.LineString, error) {
	flatCoords := make([]float64, 0, len(points)*3)
	distinct := 0
	for i, p := range points {
		if i > 0 && p.X() == points[i-1].X() && p.Y() == points[i-1].Y() {
			continue
		}
		flatCoords = append(flatCoords, p.X(), p.Y(), p.Z())
		distinct++
	}
	if distinct < 2 {
		return geom.LineString{}, fmt.Errorf("%w, got %d", ErrTooFewPoints, distinct)
	}

	seq := geom.NewSequence(flatCoords, geom.DimXYZ)
	ls, err := geom.NewLineString(seq)
	if err != nil {
		return geom.LineString{}, fmt.Errorf("failed to build trajectory: %w", err)
	}
	return ls, nil
}

// Distance is the planar length of the driven path.
func Distance(ls geom.LineString) float64 {
	return ls.Length()
}

// PathBounds returns the planar envelope of ls.
func PathBounds(ls geom.LineString) (Bounds, bool) {
	lo, hi, ok := ls.Envelope().MinMaxXYs()
	if !ok {
		return Bounds{}, false
	}
	return Bounds{MinX: lo.X, MinY: lo.Y, MaxX: hi.X, MaxY: hi.Y}, true
}
