package resample

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammed-shakir/emission-explorer/internal/core/model"
)

func date(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func dailyYear(year int) *model.Series {
	s := &model.Series{Columns: []model.Column{{Name: "v"}}}
	for t := date(year, 1, 1); t.Year() == year; t = t.AddDate(0, 0, 1) {
		s.Index = append(s.Index, t)
		s.Columns[0].Values = append(s.Columns[0].Values, float64(t.YearDay()))
	}
	return s
}

func TestMonthly_YearCollapsesToTwelveMeans(t *testing.T) {
	in := dailyYear(2019)
	require.Equal(t, 365, in.Len())

	out, err := Series(in, model.Monthly)
	require.NoError(t, err)
	require.Equal(t, 12, out.Len())

	for i, idx := range out.Index {
		assert.Equal(t, date(2019, time.Month(i+1), 1), idx)
		var sum, n float64
		for r, d := range in.Index {
			if d.Month() == idx.Month() {
				sum += in.Columns[0].Values[r]
				n++
			}
		}
		assert.InDelta(t, sum/n, out.Columns[0].Values[i], 1e-9, "month %d", i+1)
	}
}

func TestWeekly_RowCountMatchesDistinctWeeks(t *testing.T) {
	in := dailyYear(2020)
	out, err := Series(in, model.Weekly)
	require.NoError(t, err)

	weeks := map[int]bool{}
	for _, d := range in.Index {
		weeks[WeekOfYear(d)] = true
	}
	assert.Equal(t, len(weeks), out.Len())
	assert.NoError(t, out.Validate())
	for i := 1; i < out.Len(); i++ {
		assert.True(t, out.Index[i-1].Before(out.Index[i]))
	}
}

func TestWeekOfYear_StrftimeU(t *testing.T) {
	// 2020-01-01 is a Wednesday, the first Sunday is Jan 5
	assert.Equal(t, 0, WeekOfYear(date(2020, 1, 1)))
	assert.Equal(t, 0, WeekOfYear(date(2020, 1, 4)))
	assert.Equal(t, 1, WeekOfYear(date(2020, 1, 5)))
	// 2017 starts and ends on a Sunday
	assert.Equal(t, 1, WeekOfYear(date(2017, 1, 1)))
	assert.Equal(t, 53, WeekOfYear(date(2017, 12, 31)))

	assert.Equal(t, date(2020, 1, 1), WeekStart(date(2020, 1, 3)))
	assert.Equal(t, date(2020, 1, 8), WeekStart(date(2020, 1, 5)))
	assert.Equal(t, date(2018, 1, 7), WeekStart(date(2017, 12, 31)))
}

func TestWeekly_Week53DoesNotCollideAcrossYears(t *testing.T) {
	in := &model.Series{
		Index:   []time.Time{date(2017, 12, 31), date(2018, 1, 1), date(2018, 1, 7)},
		Columns: []model.Column{{Name: "v", Values: []float64{1, 2, 3}}},
	}
	out, err := Series(in, model.Weekly)
	require.NoError(t, err)
	// 2018-01-01 is a Monday (week 0) and 2018-01-07 a Sunday (week 1)
	require.Equal(t, []time.Time{date(2018, 1, 1), date(2018, 1, 7), date(2018, 1, 8)}, out.Index)
	assert.Equal(t, []float64{2, 1, 3}, out.Columns[0].Values)
}

func TestSeries_MeanSkipsUnset(t *testing.T) {
	in := &model.Series{
		Index:   []time.Time{date(2020, 3, 1), date(2020, 3, 2), date(2020, 4, 1)},
		Columns: []model.Column{{Name: "v", Values: []float64{2, math.NaN(), math.NaN()}}},
	}
	out, err := Series(in, model.Monthly)
	require.NoError(t, err)
	assert.Equal(t, 2.0, out.Columns[0].Values[0])
	assert.True(t, math.IsNaN(out.Columns[0].Values[1]))
}

func TestResample_DailyIdentityAndGriddedRejected(t *testing.T) {
	s := dailyYear(2019)
	r := model.Result{Mode: model.ModeScalar, Series: s}
	same, err := Resample(r, model.Daily)
	require.NoError(t, err)
	assert.Same(t, s, same.Series)

	g := model.Result{Mode: model.ModeGridded, Grid: &model.GriddedSeries{}}
	_, err = Resample(g, model.Weekly)
	assert.ErrorIs(t, err, model.ErrUnsupportedMode)
	passed, err := Resample(g, model.Daily)
	require.NoError(t, err)
	assert.Equal(t, g, passed)
}

func TestSeries_EmptyKeepsColumns(t *testing.T) {
	out, err := Series(&model.Series{Columns: []model.Column{{Name: "v"}}}, model.Monthly)
	require.NoError(t, err)
	assert.True(t, out.Empty())
	assert.Equal(t, []string{"v"}, out.ColumnNames())
}

func TestDayOfYearQuantiles(t *testing.T) {
	in := &model.Series{
		Index:   []time.Time{date(2018, 1, 2), date(2019, 1, 2), date(2020, 1, 2), date(2020, 1, 3)},
		Columns: []model.Column{{Name: "v", Values: []float64{3, 1, 2, 10}}},
	}
	out, err := DayOfYearQuantiles(in, "v", DefaultQuantiles)
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())
	assert.Equal(t, date(model.ClimatologyYear, 1, 2), out.Index[0])
	assert.Equal(t, []string{"0", "0.1", "0.25", "0.5", "0.75", "0.9", "1"}, out.ColumnNames())

	get := func(name string) float64 {
		c, ok := out.Column(name)
		require.True(t, ok)
		return c.Values[0]
	}
	assert.Equal(t, 1.0, get("0"))
	assert.Equal(t, 1.5, get("0.25"))
	assert.Equal(t, 2.0, get("0.5"))
	assert.Equal(t, 3.0, get("1"))

	single, _ := out.Column("0.9")
	assert.Equal(t, 10.0, single.Values[1])

	_, err = DayOfYearQuantiles(in, "missing", DefaultQuantiles)
	assert.Error(t, err)
}
