package composer

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/mohammed-shakir/emission-explorer/internal/core/model"
)

func formatValue(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func encodeSeriesCSV(w io.Writer, s *model.Series) error {
	cw := csv.NewWriter(w)
	header := append([]string{"date"}, s.ColumnNames()...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("csv header: %w", err)
	}
	row := make([]string, len(header))
	for i, d := range s.Index {
		row[0] = d.Format(dateLayout)
		for j, c := range s.Columns {
			row[j+1] = formatValue(c.Values[i])
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func encodeGridCSV(w io.Writer, g *model.GriddedSeries) error {
	cw := csv.NewWriter(w)
	header := append([]string{"date", "cell"}, g.Columns...)
	header = append(header, "geometry")
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("csv header: %w", err)
	}
	row := make([]string, len(header))
	for i, r := range g.Rows {
		row[0] = ""
		if !r.Date.IsZero() {
			row[0] = r.Date.Format(dateLayout)
		}
		row[1] = r.Cell.ID
		for j := range g.Columns {
			v := math.NaN()
			if j < len(r.Values) {
				v = r.Values[j]
			}
			row[j+2] = formatValue(v)
		}
		row[len(row)-1] = r.Cell.Boundary.WKT()
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
