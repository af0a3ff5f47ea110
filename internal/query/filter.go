// Package query turns an extraction request into a store filter: a bounding
// box prefilter plus an exact polygon containment predicate.
package query

import (
	"fmt"
	"time"

	"github.com/mohammed-shakir/emission-explorer/internal/aggregate"
	"github.com/mohammed-shakir/emission-explorer/internal/core/model"
	"github.com/mohammed-shakir/emission-explorer/internal/geo"
)

type Filter struct {
	Variable model.Variable
	Table    string
	Field    string
	Start    time.Time
	End      time.Time
	Envelope geo.BBox
	Area     geo.MultiPolygon
	WKT      string
	Operator aggregate.Operator
}

// Build validates the window before anything else, so a reversed window never
// reaches a store.
func Build(v model.Variable, area geo.MultiPolygon, start, end time.Time, op aggregate.Operator) (Filter, error) {
	if err := (model.Window{Start: start, End: end}).Validate(); err != nil {
		return Filter{}, err
	}
	if !v.Valid() {
		return Filter{}, fmt.Errorf("%w: %d", model.ErrUnknownVariable, int(v))
	}
	if err := area.Validate(); err != nil {
		return Filter{}, fmt.Errorf("%w: %v", model.ErrInvalidGeometry, err)
	}
	op, err := aggregate.ParseOperator(string(op))
	if err != nil {
		return Filter{}, fmt.Errorf("%w: %v", model.ErrUnsupportedMode, err)
	}
	wkt, err := area.WKT()
	if err != nil {
		return Filter{}, fmt.Errorf("%w: %v", model.ErrInvalidGeometry, err)
	}
	return Filter{
		Variable: v,
		Table:    v.Table(),
		Field:    v.Field(),
		Start:    model.Day(start),
		End:      model.Day(end),
		Envelope: area.Envelope(),
		Area:     area,
		WKT:      wkt,
		Operator: op,
	}, nil
}

func FromRequest(req model.AggregationRequest) (Filter, error) {
	return Build(req.Variable, req.Area, req.Start, req.End, req.Operator)
}

// Matches applies the envelope prefilter then exact containment in any member
// polygon.
func (f Filter) Matches(p geo.Point) bool {
	return f.Envelope.Contains(p) && f.Area.Contains(p)
}

func (f Filter) InWindow(t time.Time) bool {
	d := model.Day(t)
	return !d.Before(f.Start) && !d.After(f.End)
}

func (f Filter) MatchesRecord(r model.PointRecord) bool {
	return f.InWindow(r.Date) && f.Matches(r.Point)
}
