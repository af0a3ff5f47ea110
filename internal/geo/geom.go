// Package geo holds the planar geometry used for polygon filters and grid cells.
// Coordinates are EPSG:4326 longitude/latitude in degrees.
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb/planar"
)

const SRID = 4326

type Point struct {
	X, Y float64
}

type BBox struct {
	X1, Y1 float64
	X2, Y2 float64
}

// Contains uses closed bounds; it is only ever a prefilter.
func (b BBox) Contains(p Point) bool {
	return p.X >= b.X1 && p.X <= b.X2 && p.Y >= b.Y1 && p.Y <= b.Y2
}

func (b BBox) Ring() Ring {
	return Ring{
		{X: b.X1, Y: b.Y1},
		{X: b.X2, Y: b.Y1},
		{X: b.X2, Y: b.Y2},
		{X: b.X1, Y: b.Y2},
	}
}

func emptyBBox() BBox {
	return BBox{X1: math.Inf(1), Y1: math.Inf(1), X2: math.Inf(-1), Y2: math.Inf(-1)}
}

func (b BBox) extend(p Point) BBox {
	b.X1 = math.Min(b.X1, p.X)
	b.Y1 = math.Min(b.Y1, p.Y)
	b.X2 = math.Max(b.X2, p.X)
	b.Y2 = math.Max(b.Y2, p.Y)
	return b
}

// Ring is a linear ring stored open: the closing vertex is implied.
type Ring []Point

func (r Ring) Envelope() BBox {
	bb := emptyBBox()
	for _, p := range r {
		bb = bb.extend(p)
	}
	return bb
}

// Contains treats points on an edge as inside.
func (r Ring) Contains(p Point) bool {
	return planar.RingContains(r.toOrb(), p.toOrb())
}

func (r Ring) validate() error {
	if len(r) < 3 {
		return fmt.Errorf("ring has %d distinct vertices (need >= 3)", len(r))
	}
	for i, p := range r {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return fmt.Errorf("vertex %d is not finite", i)
		}
		if p.X < -180 || p.X > 180 || p.Y < -90 || p.Y > 90 {
			return fmt.Errorf("vertex %d (%g,%g) outside lon/lat range", i, p.X, p.Y)
		}
	}
	return nil
}

type Polygon struct {
	Outer Ring
	Holes []Ring
}

func (p Polygon) Contains(pt Point) bool {
	return planar.PolygonContains(p.toOrb(), pt.toOrb())
}

// MultiPolygon is a union of named regions: a point matches when any member
// contains it.
type MultiPolygon []Polygon

var ErrEmpty = errors.New("empty geometry")

func (m MultiPolygon) IsEmpty() bool { return len(m) == 0 }

func (m MultiPolygon) Validate() error {
	if m.IsEmpty() {
		return ErrEmpty
	}
	for i, p := range m {
		if err := p.Outer.validate(); err != nil {
			return fmt.Errorf("polygon %d outer: %w", i, err)
		}
		for j, h := range p.Holes {
			if err := h.validate(); err != nil {
				return fmt.Errorf("polygon %d hole %d: %w", i, j, err)
			}
		}
	}
	return nil
}

func (m MultiPolygon) Envelope() BBox {
	bb := emptyBBox()
	for _, p := range m {
		for _, v := range p.Outer {
			bb = bb.extend(v)
		}
	}
	return bb
}

func (m MultiPolygon) Contains(pt Point) bool {
	return planar.MultiPolygonContains(m.toOrb(), pt.toOrb())
}

// Union concatenates members, dropping polygons identical to one already
// taken. Partly overlapping members are kept as they are; SQL stores dissolve
// them before testing containment.
func Union(parts ...MultiPolygon) MultiPolygon {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make(MultiPolygon, 0, n)
	seen := make(map[string]struct{}, n)
	for _, mp := range parts {
		for _, p := range mp {
			key := polygonBody(p)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

// Box is a convenience for rectangular areas.
func Box(x1, y1, x2, y2 float64) MultiPolygon {
	return MultiPolygon{{Outer: BBox{X1: x1, Y1: y1, X2: x2, Y2: y2}.Ring()}}
}
