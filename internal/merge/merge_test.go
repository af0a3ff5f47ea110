package merge

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammed-shakir/emission-explorer/internal/core/model"
)

func series(name string, start time.Time, n int, v float64) *model.Series {
	s := &model.Series{Columns: []model.Column{{Name: name}}}
	for i := 0; i < n; i++ {
		s.Index = append(s.Index, start.AddDate(0, 0, i))
		s.Columns[0].Values = append(s.Columns[0].Values, v+float64(i))
	}
	return s
}

func TestMerge_DisjointDatesOuterJoin(t *testing.T) {
	ref := series("01/01/2019 - 05/01/2019", time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC), 5, 100)
	pri := series("01/01/2020 - 05/01/2020", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), 5, 1)

	got, err := Merge(model.Result{Mode: model.ModeScalar, Series: ref}, model.Result{Mode: model.ModeScalar, Series: pri})
	require.NoError(t, err)
	s := got.Series
	require.Equal(t, 10, s.Len())
	require.Equal(t, []string{"REFERENCE: 01/01/2019 - 05/01/2019", "01/01/2020 - 05/01/2020"}, s.ColumnNames())

	for i := 0; i < s.Len(); i++ {
		refSet := !math.IsNaN(s.Columns[0].Values[i])
		priSet := !math.IsNaN(s.Columns[1].Values[i])
		assert.True(t, refSet != priSet, "row %d must have exactly one side populated", i)
	}
	assert.NoError(t, s.Validate())
}

func TestMerge_OverlappingDatesAligned(t *testing.T) {
	ref := series("r", time.Date(2220, 3, 1, 0, 0, 0, 0, time.UTC), 3, 10)
	pri := series("p", time.Date(2220, 3, 2, 0, 0, 0, 0, time.UTC), 3, 20)

	s, err := Series(ref, pri)
	require.NoError(t, err)
	require.Equal(t, 4, s.Len())
	assert.True(t, math.IsNaN(s.Columns[1].Values[0]))
	assert.Equal(t, 11.0, s.Columns[0].Values[1])
	assert.Equal(t, 20.0, s.Columns[1].Values[1])
	assert.True(t, math.IsNaN(s.Columns[0].Values[3]))
	assert.Equal(t, 22.0, s.Columns[1].Values[3])
}

func TestMerge_GriddedUnsupported(t *testing.T) {
	grid := model.Result{Mode: model.ModeGridded, Grid: &model.GriddedSeries{}}
	scalar := model.Result{Mode: model.ModeScalar, Series: &model.Series{}}
	_, err := Merge(grid, scalar)
	assert.ErrorIs(t, err, model.ErrUnsupportedMode)
	_, err = Merge(scalar, grid)
	assert.ErrorIs(t, err, model.ErrUnsupportedMode)
}

func TestMerge_EmptyReferenceKeepsPrimary(t *testing.T) {
	pri := series("p", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), 2, 1)
	s, err := Series(&model.Series{}, pri)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []string{"p"}, s.ColumnNames())
}
