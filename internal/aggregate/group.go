package aggregate

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/mohammed-shakir/emission-explorer/internal/geo"
)

type Key string

const (
	KeyDate Key = "date"
	KeyCell Key = "cell"
)

// Keys is an ordered grouping key list. An empty list puts every record in a
// single group.
type Keys []Key

func (k Keys) Has(key Key) bool { return slices.Contains(k, key) }

func (k Keys) Validate() error {
	seen := map[Key]struct{}{}
	for _, key := range k {
		switch key {
		case KeyDate, KeyCell:
		default:
			return fmt.Errorf("unknown group key %q", key)
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate group key %q", key)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// Record carries one value per Input field, aligned by index.
type Record struct {
	Date   time.Time
	Cell   string
	Values []float64
}

type Input struct {
	Fields  []string
	Records []Record
}

// CellGeometry resolves a cell id to the geometry carried by grouped rows.
type CellGeometry func(cell string) (geo.Ring, error)

type Group struct {
	Date     time.Time
	Cell     string
	Geometry geo.Ring
	Size     int
	Values   []float64
}

type Table struct {
	Keys    Keys
	Columns []string
	Groups  []Group
}

func (t Table) Column(name string) ([]float64, bool) {
	i := slices.Index(t.Columns, name)
	if i < 0 {
		return nil, false
	}
	out := make([]float64, len(t.Groups))
	for g := range t.Groups {
		out[g] = t.Groups[g].Values[i]
	}
	return out, true
}

type options struct {
	cellGeom CellGeometry
}

type Option func(*options)

func WithCellGeometry(fn CellGeometry) Option {
	return func(o *options) { o.cellGeom = fn }
}

type groupKey struct {
	date int64
	cell string
}

var ErrNoOperators = errors.New("at least one operator is required")

// Aggregate groups records by keys and applies every operator to every field.
// Groups come out sorted by the keys in order (dates ascending, cell ids
// lexicographically). Output columns are ColumnName(field, op), fields outer,
// operators inner.
func Aggregate(in Input, keys Keys, ops []Operator, opts ...Option) (Table, error) {
	var o options
	for _, f := range opts {
		f(&o)
	}
	if len(ops) == 0 {
		return Table{}, ErrNoOperators
	}
	for _, op := range ops {
		if _, err := ParseOperator(string(op)); err != nil {
			return Table{}, err
		}
	}
	if err := keys.Validate(); err != nil {
		return Table{}, err
	}

	byDate, byCell := keys.Has(KeyDate), keys.Has(KeyCell)
	buckets := make(map[groupKey][][]float64)
	sizes := make(map[groupKey]int)
	order := make([]groupKey, 0)

	for i, r := range in.Records {
		if len(r.Values) != len(in.Fields) {
			return Table{}, fmt.Errorf("record %d has %d values for %d fields", i, len(r.Values), len(in.Fields))
		}
		var k groupKey
		if byDate {
			k.date = r.Date.Unix()
		}
		if byCell {
			if r.Cell == "" {
				return Table{}, fmt.Errorf("record %d has no cell id but grouping is by cell", i)
			}
			k.cell = r.Cell
		}
		b, ok := buckets[k]
		if !ok {
			b = make([][]float64, len(in.Fields))
			order = append(order, k)
		}
		for f, v := range r.Values {
			b[f] = append(b[f], v)
		}
		buckets[k] = b
		sizes[k]++
	}

	slices.SortStableFunc(order, func(a, b groupKey) int {
		for _, key := range keys {
			var c int
			switch key {
			case KeyDate:
				c = cmp.Compare(a.date, b.date)
			case KeyCell:
				c = cmp.Compare(a.cell, b.cell)
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})

	cols := make([]string, 0, len(in.Fields)*len(ops))
	for _, f := range in.Fields {
		for _, op := range ops {
			cols = append(cols, ColumnName(f, op))
		}
	}

	out := Table{Keys: slices.Clone(keys), Columns: cols, Groups: make([]Group, 0, len(order))}
	for _, k := range order {
		b := buckets[k]
		g := Group{Cell: k.cell, Size: sizes[k], Values: make([]float64, 0, len(cols))}
		if byDate {
			g.Date = time.Unix(k.date, 0).UTC()
		}
		for f := range in.Fields {
			for _, op := range ops {
				g.Values = append(g.Values, Apply(op, b[f]))
			}
		}
		if byCell && o.cellGeom != nil {
			ring, err := o.cellGeom(k.cell)
			if err != nil {
				return Table{}, fmt.Errorf("cell %q geometry: %w", k.cell, err)
			}
			g.Geometry = ring
		}
		out.Groups = append(out.Groups, g)
	}
	return out, nil
}
