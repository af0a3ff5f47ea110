package composer

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/mohammed-shakir/emission-explorer/internal/core/model"
)

// encodeSeriesJSON writes {"index":[...],"columns":{name:[...]}} keeping
// column order, which a Go map would lose.
func encodeSeriesJSON(w io.Writer, s *model.Series) error {
	bw := bufio.NewWriter(w)
	idx := make([]string, len(s.Index))
	for i, d := range s.Index {
		idx[i] = d.Format(dateLayout)
	}
	b, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	_, _ = bw.WriteString(`{"index":`)
	_, _ = bw.Write(b)
	_, _ = bw.WriteString(`,"columns":{`)
	for i, c := range s.Columns {
		if i > 0 {
			_ = bw.WriteByte(',')
		}
		name, err := json.Marshal(c.Name)
		if err != nil {
			return fmt.Errorf("encode column name: %w", err)
		}
		vals, err := json.Marshal(model.Nullable(c.Values))
		if err != nil {
			return fmt.Errorf("encode column %q: %w", c.Name, err)
		}
		_, _ = bw.Write(name)
		_ = bw.WriteByte(':')
		_, _ = bw.Write(vals)
	}
	_, _ = bw.WriteString("}}\n")
	return bw.Flush()
}

type gridRowJSON struct {
	Date   string              `json:"date,omitempty"`
	Cell   string              `json:"cell"`
	Values map[string]*float64 `json:"values"`
}

func encodeGridJSON(w io.Writer, g *model.GriddedSeries) error {
	out := struct {
		Columns []string      `json:"columns"`
		Rows    []gridRowJSON `json:"rows"`
	}{Columns: g.Columns, Rows: make([]gridRowJSON, 0, len(g.Rows))}
	if out.Columns == nil {
		out.Columns = []string{}
	}
	for _, r := range g.Rows {
		row := gridRowJSON{Cell: r.Cell.ID, Values: values(g.Columns, r.Values)}
		if !r.Date.IsZero() {
			row.Date = r.Date.Format(dateLayout)
		}
		out.Rows = append(out.Rows, row)
	}
	if err := json.NewEncoder(w).Encode(out); err != nil {
		return fmt.Errorf("encode grid: %w", err)
	}
	return nil
}

type feature struct {
	Type       string          `json:"type"`
	ID         string          `json:"id"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

// encodeGeoJSON emits one Polygon feature per grid row.
func encodeGeoJSON(w io.Writer, g *model.GriddedSeries) error {
	fc := struct {
		Type     string    `json:"type"`
		Features []feature `json:"features"`
	}{Type: "FeatureCollection", Features: make([]feature, 0, len(g.Rows))}

	for _, r := range g.Rows {
		props := map[string]any{"cell": r.Cell.ID}
		id := r.Cell.ID
		if !r.Date.IsZero() {
			d := r.Date.Format(dateLayout)
			props["date"] = d
			id = d + "/" + id
		}
		for name, v := range values(g.Columns, r.Values) {
			props[name] = v
		}
		fc.Features = append(fc.Features, feature{
			Type:       "Feature",
			ID:         id,
			Geometry:   r.Cell.Boundary.GeoJSON(),
			Properties: props,
		})
	}
	if err := json.NewEncoder(w).Encode(fc); err != nil {
		return fmt.Errorf("encode feature collection: %w", err)
	}
	return nil
}

func values(cols []string, vals []float64) map[string]*float64 {
	m := make(map[string]*float64, len(cols))
	for i, c := range cols {
		if i >= len(vals) || math.IsNaN(vals[i]) || math.IsInf(vals[i], 0) {
			m[c] = nil
			continue
		}
		v := vals[i]
		m[c] = &v
	}
	return m
}
