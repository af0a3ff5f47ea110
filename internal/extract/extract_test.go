package extract

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/mohammed-shakir/emission-explorer/internal/aggregate"
	"github.com/mohammed-shakir/emission-explorer/internal/core/model"
	"github.com/mohammed-shakir/emission-explorer/internal/geo"
	"github.com/mohammed-shakir/emission-explorer/internal/store/memstore"
)

func date(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func rec(t time.Time, x, y, v float64) model.PointRecord {
	return model.PointRecord{Date: t, Point: geo.Point{X: x, Y: y}, Value: v, Variable: model.CO2Fire}
}

func scalarReq(start, end time.Time) model.AggregationRequest {
	return model.AggregationRequest{
		Variable:          model.CO2Fire,
		Start:             start,
		End:               end,
		Area:              geo.Box(0, 0, 1, 1),
		Operator:          aggregate.Sum,
		Mode:              model.ModeScalar,
		KeepSeparateDates: true,
	}
}

func TestGridded_UnitSquareFourCells(t *testing.T) {
	st := memstore.New()
	day := date(2020, 6, 1)
	st.Add(rec(day, 0.1, 0.1, 10), rec(day, 0.6, 0.1, 10), rec(day, 0.1, 0.6, 10), rec(day, 0.6, 0.6, 10))

	req := scalarReq(day, day)
	req.Mode, req.Resolution = model.ModeGridded, 0.5
	res, err := New(st, nil).Extract(context.Background(), req)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Mode != model.ModeGridded || res.Grid.Len() != 4 {
		t.Fatalf("result=%+v", res)
	}
	seen := map[string]bool{}
	for _, r := range res.Grid.Rows {
		if r.Values[0] != 10 {
			t.Fatalf("cell %s sum=%v want 10", r.Cell.ID, r.Values[0])
		}
		if len(r.Cell.Boundary) != 4 || r.Cell.BBox.X2-r.Cell.BBox.X1 != 0.5 {
			t.Fatalf("cell %s geometry=%+v", r.Cell.ID, r.Cell)
		}
		if !r.Date.Equal(day) {
			t.Fatalf("row date=%v", r.Date)
		}
		seen[r.Cell.ID] = true
	}
	if len(seen) != 4 {
		t.Fatalf("distinct cells=%d want 4", len(seen))
	}
	if got := res.Grid.Columns[0]; got != "01/06/2020 - 01/06/2020" {
		t.Fatalf("column label=%q", got)
	}
	if st.Acquisitions() != 1 || st.Releases() != 1 || st.Fetches() != 1 {
		t.Fatalf("acquired=%d released=%d fetches=%d", st.Acquisitions(), st.Releases(), st.Fetches())
	}
}

func TestGridded_CollapsedDatesKeyedByCell(t *testing.T) {
	st := memstore.New()
	st.Add(rec(date(2020, 6, 1), 0.1, 0.1, 1), rec(date(2020, 6, 2), 0.2, 0.2, 2), rec(date(2020, 6, 2), 0.7, 0.7, 5))

	req := scalarReq(date(2020, 6, 1), date(2020, 6, 30))
	req.Mode, req.Resolution, req.KeepSeparateDates = model.ModeGridded, 0.5, false
	res, err := New(st, nil).Extract(context.Background(), req)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Grid.Len() != 2 || res.Grid.Keys.Has(aggregate.KeyDate) {
		t.Fatalf("grid=%+v", res.Grid)
	}
	if r := res.Grid.Rows[0]; r.Cell.ID != "0.0_0.0" || r.Values[0] != 3 || !r.Date.IsZero() {
		t.Fatalf("first row=%+v", r)
	}
	// label comes from observed dates, not the requested window
	if got := res.Grid.Columns[0]; got != "01/06/2020 - 02/06/2020" {
		t.Fatalf("label=%q", got)
	}
}

func TestEmptyWindow_IsEmptyResultNotError(t *testing.T) {
	st := memstore.New()
	st.Add(rec(date(2020, 1, 1), 5, 5, 1))
	for _, mode := range []model.Mode{model.ModeScalar, model.ModeGridded} {
		req := scalarReq(date(2020, 1, 1), date(2020, 1, 31))
		req.Mode, req.Resolution = mode, 0.1
		res, err := New(st, nil).Extract(context.Background(), req)
		if err != nil {
			t.Fatalf("%s: err=%v", mode, err)
		}
		if !res.Empty() || res.Mode != mode {
			t.Fatalf("%s: result=%+v", mode, res)
		}
	}
	if st.Releases() != st.Acquisitions() {
		t.Fatalf("sessions leaked: acquired=%d released=%d", st.Acquisitions(), st.Releases())
	}
}

func TestReversedWindow_FailsBeforeStoreAccess(t *testing.T) {
	st := memstore.New()
	start, _ := model.ParseDate("01-01-2020")
	end, _ := model.ParseDate("31-01-2019")
	_, err := New(st, nil).Extract(context.Background(), scalarReq(start, end))
	if !errors.Is(err, model.ErrInvalidWindow) {
		t.Fatalf("err=%v want ErrInvalidWindow", err)
	}
	if st.Acquisitions() != 0 {
		t.Fatalf("store was accessed %d times", st.Acquisitions())
	}
}

func TestConnectionFailure(t *testing.T) {
	st := memstore.New(memstore.WithAcquireError(errors.New("refused")))
	_, err := New(st, nil).Extract(context.Background(), scalarReq(date(2020, 1, 1), date(2020, 1, 2)))
	if !errors.Is(err, model.ErrConnectionFailure) {
		t.Fatalf("err=%v want ErrConnectionFailure", err)
	}
}

func TestScalar_SparseDailyWithObservedRangeLabel(t *testing.T) {
	st := memstore.New()
	st.Add(rec(date(2020, 1, 5), 0.5, 0.5, 1), rec(date(2020, 1, 5), 0.4, 0.4, 2), rec(date(2020, 1, 9), 0.5, 0.5, 4))
	res, err := New(st, nil).Extract(context.Background(), scalarReq(date(2020, 1, 1), date(2020, 1, 31)))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	s := res.Series
	if s.Len() != 2 {
		t.Fatalf("rows=%d want 2 (sparse)", s.Len())
	}
	col, ok := s.Column("05/01/2020 - 09/01/2020")
	if !ok {
		t.Fatalf("columns=%v", s.ColumnNames())
	}
	if col.Values[0] != 3 || col.Values[1] != 4 {
		t.Fatalf("values=%v", col.Values)
	}
}

func TestScalar_ClimatologyCollapse(t *testing.T) {
	st := memstore.New()
	st.Add(
		rec(date(2019, 3, 1), 0.5, 0.5, 2),
		rec(date(2020, 3, 1), 0.5, 0.5, 4),
		rec(date(2020, 2, 29), 0.5, 0.5, 7),
		rec(date(2019, 2, 28), 0.5, 0.5, 1),
	)
	req := scalarReq(date(2019, 1, 1), date(2020, 12, 31))
	req.KeepSeparateDates = false
	res, err := New(st, nil).Extract(context.Background(), req)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	s := res.Series
	want := []struct {
		t time.Time
		v float64
	}{
		{date(model.ClimatologyYear, 2, 28), 1},
		{date(model.ClimatologyYear, 2, 29), 7},
		{date(model.ClimatologyYear, 3, 1), 3},
	}
	if s.Len() != len(want) {
		t.Fatalf("rows=%d want %d: %+v", s.Len(), len(want), s)
	}
	for i, w := range want {
		if !s.Index[i].Equal(w.t) || s.Columns[0].Values[i] != w.v {
			t.Fatalf("row %d = %v %v want %v %v", i, s.Index[i], s.Columns[0].Values[i], w.t, w.v)
		}
	}
	if s.Columns[0].Name != "28/02/2019 - 01/03/2020" {
		t.Fatalf("label=%q", s.Columns[0].Name)
	}
}

func TestClimatology_SkipsNaN(t *testing.T) {
	s := &model.Series{
		Index:   []time.Time{date(2019, 1, 1), date(2020, 1, 1)},
		Columns: []model.Column{{Name: "x", Values: []float64{math.NaN(), 6}}},
	}
	out := Climatology(s)
	if out.Len() != 1 || out.Columns[0].Values[0] != 6 {
		t.Fatalf("out=%+v", out)
	}
}
