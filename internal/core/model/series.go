package model

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/mohammed-shakir/emission-explorer/internal/aggregate"
	"github.com/mohammed-shakir/emission-explorer/internal/geo"
)

// PointRecord is one observation inside a query window and area.
type PointRecord struct {
	Date     time.Time
	Point    geo.Point
	Value    float64
	Variable Variable
}

// DailyValue is one server-side aggregated day.
type DailyValue struct {
	Date  time.Time
	Value float64
}

// Column values are aligned with the series index. NaN marks an unset cell.
type Column struct {
	Name   string
	Values []float64
}

// Series is a date-indexed table. The index is unique and ascending once
// Sort has run.
type Series struct {
	Index   []time.Time
	Columns []Column
}

func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Index)
}

func (s *Series) Empty() bool { return s.Len() == 0 }

func (s *Series) ColumnNames() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

func (s *Series) Column(name string) (Column, bool) {
	if s == nil {
		return Column{}, false
	}
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Sort orders rows chronologically, keeping columns aligned.
func (s *Series) Sort() {
	if s == nil || sort.SliceIsSorted(s.Index, func(i, j int) bool { return s.Index[i].Before(s.Index[j]) }) {
		return
	}
	perm := make([]int, len(s.Index))
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(i, j int) bool { return s.Index[perm[i]].Before(s.Index[perm[j]]) })
	idx := make([]time.Time, len(perm))
	for i, p := range perm {
		idx[i] = s.Index[p]
	}
	s.Index = idx
	for c := range s.Columns {
		vals := make([]float64, len(perm))
		for i, p := range perm {
			vals[i] = s.Columns[c].Values[p]
		}
		s.Columns[c].Values = vals
	}
}

// Validate reports index/column misalignment and duplicate dates.
func (s *Series) Validate() error {
	if s == nil {
		return nil
	}
	seen := make(map[time.Time]struct{}, len(s.Index))
	for _, t := range s.Index {
		if _, dup := seen[t]; dup {
			return fmt.Errorf("duplicate index date %s", t.Format(time.DateOnly))
		}
		seen[t] = struct{}{}
	}
	for _, c := range s.Columns {
		if len(c.Values) != len(s.Index) {
			return fmt.Errorf("column %q has %d values for %d index rows", c.Name, len(c.Values), len(s.Index))
		}
	}
	return nil
}

type GridCell struct {
	ID       string   `json:"id"`
	Boundary geo.Ring `json:"boundary"`
	BBox     geo.BBox `json:"bbox"`
}

// GridRow has a zero Date when the grid is not keyed by date.
type GridRow struct {
	Date   time.Time
	Cell   GridCell
	Values []float64
}

// GriddedSeries is sparse: absent (date, cell) combinations have no row.
type GriddedSeries struct {
	Columns []string       `json:"columns"`
	Rows    []GridRow      `json:"rows"`
	Keys    aggregate.Keys `json:"keys"`
}

func (g *GriddedSeries) Len() int {
	if g == nil {
		return 0
	}
	return len(g.Rows)
}

func (g *GriddedSeries) Empty() bool { return g.Len() == 0 }

// Result is either a scalar Series or a GriddedSeries, tagged by Mode.
type Result struct {
	Mode   Mode           `json:"mode"`
	Series *Series        `json:"series,omitempty"`
	Grid   *GriddedSeries `json:"grid,omitempty"`
}

func (r Result) Empty() bool {
	switch r.Mode {
	case ModeGridded:
		return r.Grid.Empty()
	default:
		return r.Series.Empty()
	}
}

func (r Result) Len() int {
	if r.Mode == ModeGridded {
		return r.Grid.Len()
	}
	return r.Series.Len()
}

func EmptyResult(mode Mode) Result {
	if mode == ModeGridded {
		return Result{Mode: mode, Grid: &GriddedSeries{}}
	}
	return Result{Mode: mode, Series: &Series{}}
}

// JSON keeps NaN as null.

type jsonColumn struct {
	Name   string     `json:"name"`
	Values []*float64 `json:"values"`
}

type jsonSeries struct {
	Index   []time.Time  `json:"index"`
	Columns []jsonColumn `json:"columns"`
}

func (s Series) MarshalJSON() ([]byte, error) {
	out := jsonSeries{Index: s.Index, Columns: make([]jsonColumn, len(s.Columns))}
	if out.Index == nil {
		out.Index = []time.Time{}
	}
	for i, c := range s.Columns {
		out.Columns[i] = jsonColumn{Name: c.Name, Values: Nullable(c.Values)}
	}
	return json.Marshal(out)
}

func (s *Series) UnmarshalJSON(b []byte) error {
	var in jsonSeries
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	s.Index = in.Index
	s.Columns = make([]Column, len(in.Columns))
	for i, c := range in.Columns {
		s.Columns[i] = Column{Name: c.Name, Values: FromNullable(c.Values)}
	}
	return nil
}

type jsonGridRow struct {
	Date   *time.Time `json:"date,omitempty"`
	Cell   GridCell   `json:"cell"`
	Values []*float64 `json:"values"`
}

func (r GridRow) MarshalJSON() ([]byte, error) {
	out := jsonGridRow{Cell: r.Cell, Values: Nullable(r.Values)}
	if !r.Date.IsZero() {
		d := r.Date
		out.Date = &d
	}
	return json.Marshal(out)
}

func (r *GridRow) UnmarshalJSON(b []byte) error {
	var in jsonGridRow
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*r = GridRow{Cell: in.Cell, Values: FromNullable(in.Values)}
	if in.Date != nil {
		r.Date = *in.Date
	}
	return nil
}

func Nullable(vals []float64) []*float64 {
	out := make([]*float64, len(vals))
	for i, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		v := v
		out[i] = &v
	}
	return out
}

func FromNullable(vals []*float64) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		if v == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *v
	}
	return out
}
