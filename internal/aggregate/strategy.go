// Package aggregate folds buoy observations into per-(year, season)
// accumulators and rolls them up across a year range.
//
// Every strategy keeps O(1) state per bucket except the percentile strategy,
// which has to hold all qualifying gusts of the range to rank them.
//
// Two rollup families exist and must not be confused:
//   - volume weighted: raw sums and counts are re-aggregated across years
//     (sum of sums / sum of counts), so years with more samples weigh more;
//   - year weighted: one derived value per year (e.g. that year's maximum),
//     averaged over the years that have one.
//
// Means use the first, maxima the second.
package aggregate

import (
	"fmt"
	"slices"

	"github.com/couchcryptid/buoy-season-stats/internal/domain"
)

// Strategy describes how observations are folded and rolled up.
type Strategy interface {
	Kind() Kind
	// Required lists the fields an observation must carry to be folded.
	Required() domain.Fields
	// NewYear creates an isolated accumulator for one archive year.
	NewYear(year int) YearAccumulator
	// Rollup finalizes every year and combines them. It accepts only
	// accumulators created by the same strategy.
	Rollup(years []YearAccumulator) Summary
}

// YearAccumulator is the running state of one archive year. It is not safe
// for concurrent use; concurrent years each get their own.
type YearAccumulator interface {
	Year() int
	Add(season domain.Season, obs domain.Observation)
	// Count is the number of observations folded so far.
	Count() int
}

// New returns the strategy for kind.
func New(kind Kind, params Params) (Strategy, error) {
	switch kind {
	case KindMean:
		return meanStrategy{}, nil
	case KindMax:
		return maxStrategy{}, nil
	case KindGustDirection:
		return gustDirectionStrategy{}, nil
	case KindPercentile:
		if params.Percentile <= 0 || params.Percentile > 100 {
			return nil, fmt.Errorf("percentile must be in (0, 100], got %g", params.Percentile)
		}
		if params.Tolerance < 0 {
			return nil, fmt.Errorf("tolerance must not be negative, got %g", params.Tolerance)
		}
		return percentileStrategy{params: params}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", kind)
	}
}

// sortedYears returns the accumulators ordered by year, ascending.
func sortedYears[A YearAccumulator](years []YearAccumulator) []A {
	out := make([]A, 0, len(years))
	for _, y := range years {
		a, ok := y.(A)
		if !ok {
			panic(fmt.Sprintf("aggregate: accumulator %T does not belong to this strategy", y))
		}
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b A) int { return a.Year() - b.Year() })
	return out
}

func totalCount[A YearAccumulator](years []A) int {
	n := 0
	for _, y := range years {
		n += y.Count()
	}
	return n
}

// mean is a streaming sum and count.
type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v float64) {
	m.sum += v
	m.n++
}

func (m *mean) merge(o mean) {
	m.sum += o.sum
	m.n += o.n
}

func (m mean) value() Value {
	if m.n == 0 {
		return Value{}
	}
	return Some(m.sum / float64(m.n))
}

// maximum is a running maximum with an explicit "no sample yet" state.
type maximum struct {
	v  float64
	ok bool
}

func (m *maximum) observe(v float64) {
	if !m.ok || v > m.v {
		m.v = v
		m.ok = true
	}
}

func (m maximum) value() Value {
	return Value{V: m.v, OK: m.ok}
}
