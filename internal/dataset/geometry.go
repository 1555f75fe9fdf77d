package dataset

import (
	"github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geom/xy/location"
	"go.uber.org/zap"
)

// area is one polygon record ready for containment tests.
type area struct {
	mp     *geom.MultiPolygon
	bounds *geom.Bounds
}

// shapeToArea converts a polygon shape into an area. Shapes that carry no
// polygon rings return nil and never contain a point.
func shapeToArea(shape shp.Shape, srid int) *area {
	var parts []int32
	var points []shp.Point

	switch s := shape.(type) {
	case *shp.Polygon:
		parts, points = s.Parts, s.Points
	case *shp.PolygonZ:
		parts, points = s.Parts, s.Points
	case *shp.PolygonM:
		parts, points = s.Parts, s.Points
	default:
		return nil
	}

	mp := ringsToMultiPolygon(parts, points)
	if mp == nil {
		return nil
	}
	mp.SetSRID(srid)
	return &area{mp: mp, bounds: mp.Bounds()}
}

// ringsToMultiPolygon groups shapefile rings into polygons. A clockwise ring
// opens a new polygon; a counter-clockwise ring is a hole of the polygon
// opened before it, unless it lies outside that polygon's shell bounds, in
// which case it is treated as another exterior.
func ringsToMultiPolygon(parts []int32, points []shp.Point) *geom.MultiPolygon {
	if len(parts) == 0 || len(points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	var current *geom.Polygon

	flush := func() {
		if current == nil {
			return
		}
		if err := mp.Push(current); err != nil {
			zap.L().Debug("dataset: skipping malformed polygon", zap.Error(err))
		}
		current = nil
	}

	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || end > int32(len(points)) || end-start < 4 {
			zap.L().Debug("dataset: skipping degenerate ring", zap.Int("part", i), zap.Int32("points", end-start))
			continue
		}

		flat := make([]float64, 0, (end-start)*2)
		for _, p := range points[start:end] {
			flat = append(flat, p.X, p.Y)
		}

		hole := xy.IsRingCounterClockwise(geom.XY, flat)
		ring := geom.NewLinearRingFlat(geom.XY, flat)
		if hole && current != nil && current.NumLinearRings() > 0 && !boundsWithin(ring.Bounds(), current.LinearRing(0).Bounds()) {
			zap.L().Warn("dataset: counter-clockwise ring lies outside its shell, treating as exterior",
				zap.Int("part", i))
			hole = false
		}
		if !hole || current == nil {
			flush()
			current = geom.NewPolygon(geom.XY)
		}
		if err := current.Push(ring); err != nil {
			zap.L().Debug("dataset: skipping malformed ring", zap.Int("part", i), zap.Error(err))
		}
	}
	flush()

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

func boundsWithin(inner, outer *geom.Bounds) bool {
	return inner.Min(0) >= outer.Min(0) && inner.Min(1) >= outer.Min(1) &&
		inner.Max(0) <= outer.Max(0) && inner.Max(1) <= outer.Max(1)
}

// contains reports whether c lies in the interior of the area. Points on an
// outer ring or on a hole ring are not contained.
func (a *area) contains(c geom.Coord) bool {
	if a == nil || !a.bounds.OverlapsPoint(geom.XY, c) {
		return false
	}
	for i := 0; i < a.mp.NumPolygons(); i++ {
		if polygonContains(a.mp.Polygon(i), c) {
			return true
		}
	}
	return false
}

func polygonContains(p *geom.Polygon, c geom.Coord) bool {
	if p.NumLinearRings() == 0 {
		return false
	}
	if xy.LocatePointInRing(geom.XY, c, p.LinearRing(0).FlatCoords()) != location.Interior {
		return false
	}
	for j := 1; j < p.NumLinearRings(); j++ {
		if xy.LocatePointInRing(geom.XY, c, p.LinearRing(j).FlatCoords()) != location.Exterior {
			return false
		}
	}
	return true
}
