package geo

import (
	"errors"
	"strconv"
	"strings"
)

// WKT renders the area as a MULTIPOLYGON in lon/lat order.
func (m MultiPolygon) WKT() (string, error) {
	if m.IsEmpty() {
		return "", errors.New("empty multipolygon")
	}
	parts := make([]string, 0, len(m))
	for _, p := range m {
		parts = append(parts, polygonBody(p))
	}
	return "MULTIPOLYGON(" + strings.Join(parts, ", ") + ")", nil
}

// WKT renders a single ring as a POLYGON.
func (r Ring) WKT() string {
	return Polygon{Outer: r}.WKT()
}

func (p Polygon) WKT() string {
	return "POLYGON" + polygonBody(p)
}

func polygonBody(p Polygon) string {
	rings := make([]string, 0, 1+len(p.Holes))
	rings = append(rings, ringBody(p.Outer))
	for _, h := range p.Holes {
		rings = append(rings, ringBody(h))
	}
	return "(" + strings.Join(rings, ", ") + ")"
}

func ringBody(r Ring) string {
	var b strings.Builder
	b.WriteByte('(')
	for i, p := range r {
		if i > 0 {
			b.WriteString(", ")
		}
		writePoint(&b, p)
	}
	if len(r) > 0 {
		b.WriteString(", ")
		writePoint(&b, r[0])
	}
	b.WriteByte(')')
	return b.String()
}

func writePoint(b *strings.Builder, p Point) {
	b.WriteString(strconv.FormatFloat(p.X, 'f', -1, 64))
	b.WriteByte(' ')
	b.WriteString(strconv.FormatFloat(p.Y, 'f', -1, 64))
}
