package extract

import (
	"cmp"
	"slices"
	"time"

	"github.com/mohammed-shakir/emission-explorer/internal/aggregate"
	"github.com/mohammed-shakir/emission-explorer/internal/core/model"
)

// Climatology averages rows sharing a calendar day across years and indexes
// them in model.ClimatologyYear. Feb 29 keeps its own bucket.
func Climatology(s *model.Series) *model.Series {
	type md struct {
		m time.Month
		d int
	}
	buckets := make(map[md][]int)
	var keys []md
	for i, t := range s.Index {
		k := md{t.Month(), t.Day()}
		if _, ok := buckets[k]; !ok {
			keys = append(keys, k)
		}
		buckets[k] = append(buckets[k], i)
	}
	slices.SortFunc(keys, func(a, b md) int {
		if c := cmp.Compare(a.m, b.m); c != 0 {
			return c
		}
		return cmp.Compare(a.d, b.d)
	})

	out := &model.Series{Index: make([]time.Time, len(keys)), Columns: make([]model.Column, len(s.Columns))}
	for i, k := range keys {
		out.Index[i] = time.Date(model.ClimatologyYear, k.m, k.d, 0, 0, 0, 0, time.UTC)
	}
	for c, col := range s.Columns {
		vals := make([]float64, len(keys))
		xs := make([]float64, 0, 8)
		for i, k := range keys {
			xs = xs[:0]
			for _, row := range buckets[k] {
				xs = append(xs, col.Values[row])
			}
			vals[i] = aggregate.Apply(aggregate.Mean, xs)
		}
		out.Columns[c] = model.Column{Name: col.Name, Values: vals}
	}
	return out
}
