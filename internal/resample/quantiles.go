package resample

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/mohammed-shakir/emission-explorer/internal/core/model"
)

// DefaultQuantiles are the bands of the day-of-year profile.
var DefaultQuantiles = []float64{0, 0.1, 0.25, 0.5, 0.75, 0.9, 1}

// DayOfYearQuantiles groups column by ordinal day of year and returns one
// column per quantile, named by its value. Rows are indexed at that ordinal
// day of model.ClimatologyYear. Quantiles interpolate linearly between order
// statistics.
func DayOfYearQuantiles(s *model.Series, column string, qs []float64) (*model.Series, error) {
	col, ok := s.Column(column)
	if !ok {
		return nil, fmt.Errorf("unknown column %q", column)
	}
	for _, q := range qs {
		if q < 0 || q > 1 || math.IsNaN(q) {
			return nil, fmt.Errorf("quantile %v outside [0,1]", q)
		}
	}

	byDay := make(map[int][]float64)
	for i, t := range s.Index {
		v := col.Values[i]
		if math.IsNaN(v) {
			continue
		}
		byDay[t.YearDay()] = append(byDay[t.YearDay()], v)
	}
	days := make([]int, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	slices.Sort(days)

	out := &model.Series{Index: make([]time.Time, len(days)), Columns: make([]model.Column, len(qs))}
	for i, d := range days {
		out.Index[i] = time.Date(model.ClimatologyYear, time.January, d, 0, 0, 0, 0, time.UTC)
		slices.Sort(byDay[d])
	}
	for j, q := range qs {
		vals := make([]float64, len(days))
		for i, d := range days {
			vals[i] = quantile(byDay[d], q)
		}
		out.Columns[j] = model.Column{Name: strconv.FormatFloat(q, 'g', -1, 64), Values: vals}
	}
	return out, nil
}

// quantile expects sorted, non-empty xs.
func quantile(xs []float64, q float64) float64 {
	h := q * float64(len(xs)-1)
	lo := int(math.Floor(h))
	if lo >= len(xs)-1 {
		return xs[len(xs)-1]
	}
	return xs[lo] + (h-float64(lo))*(xs[lo+1]-xs[lo])
}
