package aggregate_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/buoy-season-stats/internal/aggregate"
	"github.com/couchcryptid/buoy-season-stats/internal/domain"
)

// fold scans text for year and feeds every observation into a fresh
// accumulator, the same way the pipeline does.
func fold(t *testing.T, s aggregate.Strategy, year int, text string) aggregate.YearAccumulator {
	t.Helper()
	acc := s.NewYear(year)
	sc := domain.NewScanner(strings.NewReader(text), year, s.Required())
	for sc.Scan() {
		obs := sc.Observation()
		season, ok := domain.SeasonOf(obs.Month)
		require.True(t, ok)
		acc.Add(season, obs)
	}
	require.NoError(t, sc.Err())
	return acc
}

func mustStrategy(t *testing.T, kind aggregate.Kind, params aggregate.Params) aggregate.Strategy {
	t.Helper()
	s, err := aggregate.New(kind, params)
	require.NoError(t, err)
	return s
}

// Year A: three winter rows, year B: one winter row.
const (
	yearA = `#YY  MM DD hh mm WDIR WSPD GST
2020 01 05 00 00 100 10.0 15.0
2020 02 05 00 00 110 20.0 25.0
2020 12 05 00 00 120 30.0 35.0
`
	yearB = `#YY  MM DD hh mm WDIR WSPD GST
2021 01 05 00 00 200 5.0 5.0
`
)

func TestMean_RollupIsVolumeWeighted(t *testing.T) {
	s := mustStrategy(t, aggregate.KindMean, aggregate.Params{})
	sum := s.Rollup([]aggregate.YearAccumulator{
		fold(t, s, 2021, yearB),
		fold(t, s, 2020, yearA),
	})

	require.Len(t, sum.Years, 2)
	assert.Equal(t, 2020, sum.Years[0].Year, "years are reported ascending")
	assert.Equal(t, aggregate.Some(20), sum.Years[0].Seasons[domain.Winter][0])
	assert.Equal(t, aggregate.Some(25), sum.Years[0].Seasons[domain.Winter][1])
	assert.Equal(t, aggregate.Some(5), sum.Years[1].Seasons[domain.Winter][0])

	require.NotNil(t, sum.Rollup)
	winter := sum.Rollup[domain.Winter]
	assert.InDelta(t, 16.25, winter[0].V, 1e-9)
	assert.InDelta(t, (15.0+25+35+5)/4, winter[1].V, 1e-9)

	yearWeighted := (20.0 + 5.0) / 2
	assert.NotEqual(t, yearWeighted, winter[0].V)

	assert.False(t, sum.Rollup[domain.Summer][0].OK, "no summer samples means undefined")
	assert.Equal(t, 4, sum.Observations)
	assert.False(t, sum.Empty)
}

func TestMax_RollupAveragesYearlyMaxima(t *testing.T) {
	s := mustStrategy(t, aggregate.KindMax, aggregate.Params{})
	empty := s.NewYear(2022)
	sum := s.Rollup([]aggregate.YearAccumulator{
		fold(t, s, 2020, yearA),
		fold(t, s, 2021, yearB),
		empty,
	})

	require.Len(t, sum.Years, 3)
	assert.Equal(t, aggregate.Some(30), sum.Years[0].Seasons[domain.Winter][0])
	assert.Equal(t, aggregate.Some(35), sum.Years[0].Seasons[domain.Winter][1])
	assert.False(t, sum.Years[2].Seasons[domain.Winter][0].OK)

	// 2022 contributes nothing, not a sentinel.
	winter := sum.Rollup[domain.Winter]
	assert.InDelta(t, (30.0+5.0)/2, winter[0].V, 1e-9)
	assert.InDelta(t, (35.0+5.0)/2, winter[1].V, 1e-9)
	assert.False(t, sum.Rollup[domain.Spring][1].OK)
}

func TestMax_AllYearsEmpty(t *testing.T) {
	s := mustStrategy(t, aggregate.KindMax, aggregate.Params{})
	sum := s.Rollup([]aggregate.YearAccumulator{s.NewYear(2020)})

	assert.True(t, sum.Empty)
	for _, season := range domain.Seasons {
		for _, v := range sum.Rollup[season] {
			assert.False(t, v.OK)
		}
	}
}

func TestGustDirection_Rollup(t *testing.T) {
	s := mustStrategy(t, aggregate.KindGustDirection, aggregate.Params{})
	sum := s.Rollup([]aggregate.YearAccumulator{
		fold(t, s, 2020, yearA),
		fold(t, s, 2021, yearB),
	})

	assert.Equal(t, aggregate.Some(35), sum.Years[0].Seasons[domain.Winter][0])
	assert.Equal(t, aggregate.Some(110), sum.Years[0].Seasons[domain.Winter][1])

	winter := sum.Rollup[domain.Winter]
	// Gust: mean of yearly maxima. Direction: all readings over total count.
	assert.InDelta(t, (35.0+5.0)/2, winter[0].V, 1e-9)
	assert.InDelta(t, (100.0+110+120+200)/4, winter[1].V, 1e-9)
}

func TestGustDirection_RequiresDirection(t *testing.T) {
	s := mustStrategy(t, aggregate.KindGustDirection, aggregate.Params{})
	acc := fold(t, s, 2020, "2020 01 05 00 00 999 10.0 15.0\n2020 01 05 00 00 90 10.0 15.0\n")
	assert.Equal(t, 1, acc.Count())
}

func TestPercentile_DirectionWindowInclusive(t *testing.T) {
	s := mustStrategy(t, aggregate.KindPercentile, aggregate.Params{Direction: 120, Tolerance: 30, Percentile: 100})
	acc := fold(t, s, 2020, `2020 06 01 00 00 150 1.0 10.0
2020 06 01 00 00 151 1.0 50.0
2020 06 01 00 00 90 1.0 20.0
2020 06 01 00 00 89 1.0 70.0
`)
	sum := s.Rollup([]aggregate.YearAccumulator{acc})

	require.NotNil(t, sum.Percentile)
	assert.Equal(t, 2, sum.Percentile.Qualifying)
	assert.InDelta(t, 15.0, sum.Percentile.MeanGust.V, 1e-9)
	assert.Nil(t, sum.Years)
	assert.Nil(t, sum.Rollup)
}

func TestPercentile_TopGustsAcrossYears(t *testing.T) {
	s := mustStrategy(t, aggregate.KindPercentile, aggregate.Params{Direction: 180, Tolerance: 20, Percentile: 20})

	var b1, b2 strings.Builder
	for _, g := range []string{"1", "2", "3", "4", "5"} {
		b1.WriteString("2020 01 01 00 00 180 1.0 " + g + "\n")
	}
	for _, g := range []string{"6", "7", "8", "9", "10"} {
		b2.WriteString("2021 01 01 00 00 175 1.0 " + g + "\n")
	}

	sum := s.Rollup([]aggregate.YearAccumulator{
		fold(t, s, 2020, b1.String()),
		fold(t, s, 2021, b2.String()),
	})

	want := &aggregate.PercentileResult{
		Qualifying: 10,
		Cutoff:     2,
		MeanGust:   aggregate.Some(9.5),
	}
	if diff := cmp.Diff(want, sum.Percentile); diff != "" {
		t.Fatalf("percentile mismatch (-want +got):\n%s", diff)
	}
}

func TestPercentile_EmptyWhenNothingQualifies(t *testing.T) {
	s := mustStrategy(t, aggregate.KindPercentile, aggregate.Params{Direction: 5, Tolerance: 10, Percentile: 1})
	acc := fold(t, s, 2020, "2020 01 01 00 00 359 1.0 20.0\n")
	sum := s.Rollup([]aggregate.YearAccumulator{acc})

	assert.True(t, sum.Empty, "359 is outside 5±10, no wrap-around")
	assert.Equal(t, 1, sum.Observations)
	assert.Equal(t, 0, sum.Percentile.Qualifying)
	assert.False(t, sum.Percentile.MeanGust.OK)
}

func TestTopPercentileMean(t *testing.T) {
	tests := []struct {
		name         string
		desc         []float64
		pct          float64
		wantMean     float64
		wantCutoff   int
		wantFallback bool
	}{
		{"fallback below one element", []float64{70, 60, 50, 40, 30, 20, 10}, 10, 40, 7, true},
		{"exact one element", []float64{100, 90, 80, 70, 60, 50, 40, 30, 20, 10}, 10, 100, 1, false},
		{"floor not round", []float64{9, 8, 7, 6, 5, 4, 3, 2, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, 10, 9, 1, false},
		{"whole set", []float64{3, 2, 1}, 100, 2, 3, false},
		{"one percent of two hundred", append(repeat(50, 2), repeat(1, 198)...), 1, 50, 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			avg, cutoff, fallback := aggregate.TopPercentileMean(tt.desc, tt.pct)
			require.True(t, avg.OK)
			assert.InDelta(t, tt.wantMean, avg.V, 1e-9)
			assert.Equal(t, tt.wantCutoff, cutoff)
			assert.Equal(t, tt.wantFallback, fallback)
		})
	}

	avg, cutoff, _ := aggregate.TopPercentileMean(nil, 1)
	assert.False(t, avg.OK)
	assert.Zero(t, cutoff)
}

func TestWindow_Contains(t *testing.T) {
	w := aggregate.Window{Target: 120, Tolerance: 30}
	assert.True(t, w.Contains(150))
	assert.True(t, w.Contains(90))
	assert.True(t, w.Contains(120))
	assert.False(t, w.Contains(151))
	assert.False(t, w.Contains(89.9))
}

func TestNew_Validation(t *testing.T) {
	_, err := aggregate.New(aggregate.KindPercentile, aggregate.Params{Percentile: 0})
	require.Error(t, err)
	_, err = aggregate.New(aggregate.KindPercentile, aggregate.Params{Percentile: 101})
	require.Error(t, err)
	_, err = aggregate.New(aggregate.KindPercentile, aggregate.Params{Percentile: 1, Tolerance: -1})
	require.Error(t, err)
	_, err = aggregate.New("median", aggregate.Params{})
	require.Error(t, err)

	for _, k := range aggregate.Kinds {
		s, err := aggregate.New(k, aggregate.Params{Percentile: 1})
		require.NoError(t, err)
		assert.Equal(t, k, s.Kind())
	}
}

func TestParseKind(t *testing.T) {
	k, err := aggregate.ParseKind(" Gust-Direction ")
	require.NoError(t, err)
	assert.Equal(t, aggregate.KindGustDirection, k)

	_, err = aggregate.ParseKind("average")
	assert.Error(t, err)
}

func TestRollup_RejectsForeignAccumulator(t *testing.T) {
	mean := mustStrategy(t, aggregate.KindMean, aggregate.Params{})
	max := mustStrategy(t, aggregate.KindMax, aggregate.Params{})
	assert.Panics(t, func() {
		mean.Rollup([]aggregate.YearAccumulator{max.NewYear(2020)})
	})
}

func TestSummary_JSON(t *testing.T) {
	s := mustStrategy(t, aggregate.KindMean, aggregate.Params{})
	sum := s.Rollup([]aggregate.YearAccumulator{fold(t, s, 2021, yearB)})

	data, err := json.Marshal(sum)
	require.NoError(t, err)

	var decoded struct {
		Strategy string                        `json:"strategy"`
		Rollup   map[string][]*float64         `json:"rollup"`
		Years    []struct{ Year int }          `json:"years"`
		Metrics  []struct{ Name, Unit string } `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "mean", decoded.Strategy)
	require.NotNil(t, decoded.Rollup["Winter"][0])
	assert.Equal(t, 5.0, *decoded.Rollup["Winter"][0])
	assert.Nil(t, decoded.Rollup["Summer"][0], "undefined cells encode as null")
	assert.Equal(t, "m/s", decoded.Metrics[0].Unit)

	var back aggregate.Summary
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, sum.Rollup[domain.Winter], back.Rollup[domain.Winter])
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
