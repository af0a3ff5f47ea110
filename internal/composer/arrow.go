package composer

import (
	"fmt"
	"io"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/mohammed-shakir/emission-explorer/internal/core/model"
)

// Series batches carry a date32 "date" column followed by one nullable
// float64 column per series column.
func encodeSeriesArrow(w io.Writer, s *model.Series) error {
	pool := memory.NewGoAllocator()

	fields := []arrow.Field{{Name: "date", Type: arrow.FixedWidthTypes.Date32}}
	for _, c := range s.Columns {
		fields = append(fields, arrow.Field{Name: c.Name, Type: arrow.PrimitiveTypes.Float64, Nullable: true})
	}
	schema := arrow.NewSchema(fields, nil)

	dateBuilder := array.NewDate32Builder(pool)
	defer dateBuilder.Release()
	for _, d := range s.Index {
		dateBuilder.Append(arrow.Date32FromTime(d))
	}
	cols := []arrow.Array{dateBuilder.NewArray()}
	for _, c := range s.Columns {
		cols = append(cols, float64Array(pool, c.Values))
	}
	return writeBatch(w, pool, schema, cols, int64(len(s.Index)))
}

// Grid batches carry date (null when not keyed by date), cell, geometry as
// WKT and the value columns.
func encodeGridArrow(w io.Writer, g *model.GriddedSeries) error {
	pool := memory.NewGoAllocator()

	fields := []arrow.Field{
		{Name: "date", Type: arrow.FixedWidthTypes.Date32, Nullable: true},
		{Name: "cell", Type: arrow.BinaryTypes.String},
		{Name: "geometry", Type: arrow.BinaryTypes.String},
	}
	for _, c := range g.Columns {
		fields = append(fields, arrow.Field{Name: c, Type: arrow.PrimitiveTypes.Float64, Nullable: true})
	}
	schema := arrow.NewSchema(fields, nil)

	dateBuilder := array.NewDate32Builder(pool)
	defer dateBuilder.Release()
	cellBuilder := array.NewStringBuilder(pool)
	defer cellBuilder.Release()
	geomBuilder := array.NewStringBuilder(pool)
	defer geomBuilder.Release()

	colVals := make([][]float64, len(g.Columns))
	for _, r := range g.Rows {
		if r.Date.IsZero() {
			dateBuilder.AppendNull()
		} else {
			dateBuilder.Append(arrow.Date32FromTime(r.Date))
		}
		cellBuilder.Append(r.Cell.ID)
		geomBuilder.Append(r.Cell.Boundary.WKT())
		for j := range g.Columns {
			v := math.NaN()
			if j < len(r.Values) {
				v = r.Values[j]
			}
			colVals[j] = append(colVals[j], v)
		}
	}

	cols := []arrow.Array{dateBuilder.NewArray(), cellBuilder.NewArray(), geomBuilder.NewArray()}
	for _, vals := range colVals {
		cols = append(cols, float64Array(pool, vals))
	}
	return writeBatch(w, pool, schema, cols, int64(len(g.Rows)))
}

func float64Array(pool memory.Allocator, vals []float64) arrow.Array {
	b := array.NewFloat64Builder(pool)
	defer b.Release()
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			b.AppendNull()
			continue
		}
		b.Append(v)
	}
	return b.NewArray()
}

func writeBatch(w io.Writer, pool memory.Allocator, schema *arrow.Schema, cols []arrow.Array, rows int64) error {
	rec := array.NewRecordBatch(schema, cols, rows)
	for _, c := range cols {
		c.Release()
	}
	defer rec.Release()

	iw := ipc.NewWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(pool))
	if err := iw.Write(rec); err != nil {
		_ = iw.Close()
		return fmt.Errorf("arrow write: %w", err)
	}
	if err := iw.Close(); err != nil {
		return fmt.Errorf("arrow close: %w", err)
	}
	return nil
}
