package geo

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ParseGeoJSON accepts a GeoJSON Polygon or MultiPolygon geometry object.
func ParseGeoJSON(raw []byte) (MultiPolygon, error) {
	g, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, fmt.Errorf("parse geojson: %w", err)
	}

	var out MultiPolygon
	switch geom := g.Geometry().(type) {
	case orb.Polygon:
		p, err := fromOrbPolygon(geom)
		if err != nil {
			return nil, err
		}
		out = MultiPolygon{p}

	case orb.MultiPolygon:
		if len(geom) == 0 {
			return nil, errors.New("empty multipolygon")
		}
		out = make(MultiPolygon, 0, len(geom))
		for pi, poly := range geom {
			p, err := fromOrbPolygon(poly)
			if err != nil {
				return nil, fmt.Errorf("polygon %d: %w", pi, err)
			}
			out = append(out, p)
		}

	default:
		return nil, fmt.Errorf(`unsupported GeoJSON "type": %q (must be Polygon or MultiPolygon)`, g.Type)
	}

	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// Coordinates returns the closed GeoJSON coordinate array of a ring.
func (r Ring) Coordinates() [][]float64 {
	out := make([][]float64, 0, len(r)+1)
	for _, p := range r {
		out = append(out, []float64{p.X, p.Y})
	}
	if len(r) > 0 {
		out = append(out, []float64{r[0].X, r[0].Y})
	}
	return out
}

// GeoJSON renders the ring as a Polygon geometry object.
func (r Ring) GeoJSON() json.RawMessage {
	b, _ := json.Marshal(struct {
		Type        string        `json:"type"`
		Coordinates [][][]float64 `json:"coordinates"`
	}{Type: "Polygon", Coordinates: [][][]float64{r.Coordinates()}})
	return b
}
