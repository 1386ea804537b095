package aggregate

import (
	"math"
	"slices"

	"github.com/couchcryptid/buoy-season-stats/internal/domain"
)

// Window is an inclusive direction band [Target-Tolerance, Target+Tolerance].
// It does not wrap around north: 359 is outside 5±10.
type Window struct {
	Target    float64
	Tolerance float64
}

// Contains reports whether deg lies inside the window, bounds included.
func (w Window) Contains(deg float64) bool {
	return deg >= w.Target-w.Tolerance && deg <= w.Target+w.Tolerance
}

// TopPercentileMean averages the strongest pct percent of desc, which must be
// sorted in descending order. The cutoff is floor(len*pct/100); when that is
// below one element the whole set is averaged instead and fallback is true.
// An empty input yields an undefined mean.
func TopPercentileMean(desc []float64, pct float64) (avg Value, cutoff int, fallback bool) {
	if len(desc) == 0 {
		return Value{}, 0, false
	}
	cutoff = int(math.Floor(float64(len(desc)) * pct / 100))
	if cutoff < 1 {
		cutoff = len(desc)
		fallback = true
	}
	if cutoff > len(desc) {
		cutoff = len(desc)
	}

	var m mean
	for _, v := range desc[:cutoff] {
		m.add(v)
	}
	return m.value(), cutoff, fallback
}

// percentileStrategy keeps every gust whose direction falls inside the
// window and averages the top percentile of the whole range. There is no
// per-year or per-season breakdown.
type percentileStrategy struct {
	params Params
}

func (percentileStrategy) Kind() Kind { return KindPercentile }

func (percentileStrategy) Required() domain.Fields {
	return domain.FieldDirection | domain.FieldGust
}

func (s percentileStrategy) NewYear(year int) YearAccumulator {
	return &percentileYear{
		year:   year,
		window: Window{Target: s.params.Direction, Tolerance: s.params.Tolerance},
	}
}

func (s percentileStrategy) Rollup(years []YearAccumulator) Summary {
	sorted := sortedYears[*percentileYear](years)

	size := 0
	for _, y := range sorted {
		size += len(y.gusts)
	}
	gusts := make([]float64, 0, size)
	for _, y := range sorted {
		gusts = append(gusts, y.gusts...)
	}
	slices.SortFunc(gusts, func(a, b float64) int {
		switch {
		case a > b:
			return -1
		case a < b:
			return 1
		default:
			return 0
		}
	})

	avg, cutoff, fallback := TopPercentileMean(gusts, s.params.Percentile)
	return Summary{
		Strategy: s.Kind(),
		Params:   s.params,
		Percentile: &PercentileResult{
			Qualifying: len(gusts),
			Cutoff:     cutoff,
			Fallback:   fallback,
			MeanGust:   avg,
		},
		Observations: totalCount(sorted),
		Empty:        len(gusts) == 0,
	}
}

type percentileYear struct {
	year   int
	count  int
	window Window
	gusts  []float64
}

func (y *percentileYear) Year() int  { return y.year }
func (y *percentileYear) Count() int { return y.count }

func (y *percentileYear) Add(_ domain.Season, obs domain.Observation) {
	y.count++
	if !obs.Direction.OK || !obs.Gust.OK || !y.window.Contains(obs.Direction.V) {
		return
	}
	y.gusts = append(y.gusts, obs.Gust.V)
}
