package geo

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
)

func (p Point) toOrb() orb.Point { return orb.Point{p.X, p.Y} }

// toOrb closes the ring.
func (r Ring) toOrb() orb.Ring {
	out := make(orb.Ring, 0, len(r)+1)
	for _, p := range r {
		out = append(out, p.toOrb())
	}
	if len(r) > 0 {
		out = append(out, r[0].toOrb())
	}
	return out
}

func (p Polygon) toOrb() orb.Polygon {
	out := make(orb.Polygon, 0, 1+len(p.Holes))
	out = append(out, p.Outer.toOrb())
	for _, h := range p.Holes {
		out = append(out, h.toOrb())
	}
	return out
}

func (m MultiPolygon) toOrb() orb.MultiPolygon {
	out := make(orb.MultiPolygon, 0, len(m))
	for _, p := range m {
		out = append(out, p.toOrb())
	}
	return out
}

func fromOrbPolygon(p orb.Polygon) (Polygon, error) {
	if len(p) == 0 {
		return Polygon{}, errors.New("empty polygon")
	}
	outer, err := fromOrbRing(p[0])
	if err != nil {
		return Polygon{}, fmt.Errorf("outer ring: %w", err)
	}
	out := Polygon{Outer: outer}
	for i, r := range p[1:] {
		h, err := fromOrbRing(r)
		if err != nil {
			return Polygon{}, fmt.Errorf("hole %d: %w", i, err)
		}
		out.Holes = append(out.Holes, h)
	}
	return out, nil
}

// fromOrbRing drops the closing vertex of an explicitly closed ring.
func fromOrbRing(r orb.Ring) (Ring, error) {
	out := make(Ring, 0, len(r))
	for _, p := range r {
		out = append(out, Point{X: p[0], Y: p[1]})
	}
	if len(out) >= 2 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	if len(out) < 3 {
		return nil, errors.New("ring has < 4 vertices")
	}
	return out, nil
}
