// Package merge aligns a reference-period series with a primary series.
package merge

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/mohammed-shakir/emission-explorer/internal/core/model"
)

// ReferencePrefix marks columns that came from the reference window.
const ReferencePrefix = "REFERENCE: "

// Merge outer-joins reference and primary on their date index. Reference
// columns are prefixed and come first. Dates missing on one side are NaN
// there. Only scalar results can be merged.
func Merge(reference, primary model.Result) (model.Result, error) {
	if reference.Mode == model.ModeGridded || primary.Mode == model.ModeGridded {
		return model.Result{}, fmt.Errorf("%w: reference periods cannot be merged into gridded output", model.ErrUnsupportedMode)
	}
	s, err := Series(reference.Series, primary.Series)
	if err != nil {
		return model.Result{}, err
	}
	return model.Result{Mode: model.ModeScalar, Series: s}, nil
}

func Series(reference, primary *model.Series) (*model.Series, error) {
	if reference == nil {
		reference = &model.Series{}
	}
	if primary == nil {
		primary = &model.Series{}
	}
	if err := reference.Validate(); err != nil {
		return nil, fmt.Errorf("reference: %w", err)
	}
	if err := primary.Validate(); err != nil {
		return nil, fmt.Errorf("primary: %w", err)
	}

	index := make([]time.Time, 0, len(reference.Index)+len(primary.Index))
	index = append(index, reference.Index...)
	for _, t := range primary.Index {
		if !slices.ContainsFunc(reference.Index, t.Equal) {
			index = append(index, t)
		}
	}
	slices.SortFunc(index, func(a, b time.Time) int { return a.Compare(b) })

	pos := make(map[int64]int, len(index))
	for i, t := range index {
		pos[t.UnixNano()] = i
	}

	out := &model.Series{Index: index}
	for _, c := range reference.Columns {
		out.Columns = append(out.Columns, realign(ReferencePrefix+c.Name, reference.Index, c.Values, pos, len(index)))
	}
	for _, c := range primary.Columns {
		out.Columns = append(out.Columns, realign(c.Name, primary.Index, c.Values, pos, len(index)))
	}

	seen := make(map[string]struct{}, len(out.Columns))
	for _, c := range out.Columns {
		if _, dup := seen[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q after merge", c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	return out, nil
}

func realign(name string, idx []time.Time, vals []float64, pos map[int64]int, n int) model.Column {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	for i, t := range idx {
		out[pos[t.UnixNano()]] = vals[i]
	}
	return model.Column{Name: name, Values: out}
}
