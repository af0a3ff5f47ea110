// Package aggregate groups numeric records by explicit keys and computes
// per-group statistics.
package aggregate

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

type Operator string

const (
	Sum    Operator = "sum"
	Mean   Operator = "mean"
	Median Operator = "median"
	Std    Operator = "std"
	Min    Operator = "min"
	Max    Operator = "max"
	Count  Operator = "count"
)

var allOperators = []Operator{Sum, Mean, Median, Std, Min, Max, Count}

func Operators() []Operator { return slices.Clone(allOperators) }

func ParseOperator(s string) (Operator, error) {
	op := Operator(strings.ToLower(strings.TrimSpace(s)))
	if op == "" {
		return Sum, nil
	}
	if slices.Contains(allOperators, op) {
		return op, nil
	}
	return "", fmt.Errorf("unknown aggregation operator %q (want one of %v)", s, allOperators)
}

// ColumnName is the output column for field under op. Names are always
// qualified, even when a single field and operator are requested.
func ColumnName(field string, op Operator) string {
	return field + "_" + string(op)
}

// Apply reduces xs with op. NaN inputs are skipped. With no remaining values
// sum and count are 0 and every other operator is NaN. The standard deviation
// is the sample one (N-1), so a single-value group yields NaN.
func Apply(op Operator, xs []float64) float64 {
	vals := xs
	if slices.ContainsFunc(xs, math.IsNaN) {
		vals = make([]float64, 0, len(xs))
		for _, v := range xs {
			if !math.IsNaN(v) {
				vals = append(vals, v)
			}
		}
	}

	switch op {
	case Count:
		return float64(len(vals))
	case Sum:
		return floats.Sum(vals)
	}
	if len(vals) == 0 {
		return math.NaN()
	}

	switch op {
	case Mean:
		return stat.Mean(vals, nil)
	case Median:
		s := slices.Clone(vals)
		slices.Sort(s)
		mid := len(s) / 2
		if len(s)%2 == 1 {
			return s[mid]
		}
		return (s[mid-1] + s[mid]) / 2
	case Std:
		if len(vals) < 2 {
			return math.NaN()
		}
		return stat.StdDev(vals, nil)
	case Min:
		return floats.Min(vals)
	case Max:
		return floats.Max(vals)
	default:
		return math.NaN()
	}
}
