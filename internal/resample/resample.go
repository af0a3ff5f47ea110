// Package resample down-samples daily series to weekly or monthly cadence.
package resample

import (
	"fmt"
	"slices"
	"time"

	"github.com/mohammed-shakir/emission-explorer/internal/aggregate"
	"github.com/mohammed-shakir/emission-explorer/internal/core/model"
)

// Resample applies g to a scalar result. Gridded results only pass through
// at daily granularity.
func Resample(r model.Result, g model.Granularity) (model.Result, error) {
	if g == model.Daily || g == "" {
		return r, nil
	}
	if r.Mode == model.ModeGridded {
		return model.Result{}, fmt.Errorf("%w: %s resampling of gridded output", model.ErrUnsupportedMode, g)
	}
	s, err := Series(r.Series, g)
	if err != nil {
		return model.Result{}, err
	}
	return model.Result{Mode: r.Mode, Series: s}, nil
}

// Series groups rows by calendar bucket and averages each column, skipping
// unset values. The output is sorted by bucket start.
//
// Monthly buckets start on the first of the month. Weekly buckets follow
// strftime %U (weeks start on Sunday, days before the first Sunday are week
// 0) and start on day 7*week+1 of the year; week 53 therefore starts in the
// next January, after that year's week 0.
func Series(s *model.Series, g model.Granularity) (*model.Series, error) {
	var bucket func(time.Time) time.Time
	switch g {
	case model.Daily, "":
		return s, nil
	case model.Monthly:
		bucket = MonthStart
	case model.Weekly:
		bucket = WeekStart
	default:
		return nil, fmt.Errorf("%w: granularity %q", model.ErrUnsupportedMode, g)
	}
	if s.Empty() {
		return &model.Series{Columns: emptyColumns(s)}, nil
	}

	rows := make(map[time.Time][]int)
	var keys []time.Time
	for i, t := range s.Index {
		k := bucket(t)
		if _, ok := rows[k]; !ok {
			keys = append(keys, k)
		}
		rows[k] = append(rows[k], i)
	}
	slices.SortFunc(keys, func(a, b time.Time) int { return a.Compare(b) })

	out := &model.Series{Index: keys, Columns: make([]model.Column, len(s.Columns))}
	for c, col := range s.Columns {
		vals := make([]float64, len(keys))
		for i, k := range keys {
			xs := make([]float64, 0, len(rows[k]))
			for _, r := range rows[k] {
				xs = append(xs, col.Values[r])
			}
			vals[i] = aggregate.Apply(aggregate.Mean, xs)
		}
		out.Columns[c] = model.Column{Name: col.Name, Values: vals}
	}
	return out, nil
}

func MonthStart(t time.Time) time.Time {
	y, m, _ := t.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// WeekOfYear is strftime's %U.
func WeekOfYear(t time.Time) int {
	t = t.UTC()
	return (t.YearDay() - 1 + 7 - int(t.Weekday())) / 7
}

func WeekStart(t time.Time) time.Time {
	return time.Date(t.UTC().Year(), time.January, 1+7*WeekOfYear(t), 0, 0, 0, 0, time.UTC)
}

func emptyColumns(s *model.Series) []model.Column {
	if s == nil {
		return nil
	}
	out := make([]model.Column, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = model.Column{Name: c.Name, Values: []float64{}}
	}
	return out
}
