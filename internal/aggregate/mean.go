package aggregate

import "github.com/couchcryptid/buoy-season-stats/internal/domain"

var meanMetrics = []Metric{
	{Name: "mean_wspd", Unit: UnitSpeed},
	{Name: "mean_gst", Unit: UnitSpeed},
}

// meanStrategy reports seasonal mean wind speed and gust. The multi-year
// figure re-aggregates raw sums and counts (volume weighted), so it is not
// the average of the yearly means whenever years differ in sample count.
type meanStrategy struct{}

func (meanStrategy) Kind() Kind { return KindMean }

func (meanStrategy) Required() domain.Fields {
	return domain.FieldWindSpeed | domain.FieldGust
}

func (meanStrategy) NewYear(year int) YearAccumulator {
	return &meanYear{year: year}
}

func (s meanStrategy) Rollup(years []YearAccumulator) Summary {
	sorted := sortedYears[*meanYear](years)

	var total [domain.NumSeasons]struct{ wspd, gst mean }
	rows := make([]YearRow, 0, len(sorted))
	for _, y := range sorted {
		row := YearRow{Year: y.year, Count: y.count}
		for _, season := range domain.Seasons {
			b := y.buckets[season]
			row.Seasons[season] = []Value{b.wspd.value(), b.gst.value()}
			total[season].wspd.merge(b.wspd)
			total[season].gst.merge(b.gst)
		}
		rows = append(rows, row)
	}

	var rollup SeasonCells
	for _, season := range domain.Seasons {
		rollup[season] = []Value{total[season].wspd.value(), total[season].gst.value()}
	}

	n := totalCount(sorted)
	return Summary{
		Strategy:     s.Kind(),
		Metrics:      meanMetrics,
		Years:        rows,
		Rollup:       &rollup,
		Observations: n,
		Empty:        n == 0,
	}
}

type meanYear struct {
	year    int
	count   int
	buckets [domain.NumSeasons]struct{ wspd, gst mean }
}

func (y *meanYear) Year() int  { return y.year }
func (y *meanYear) Count() int { return y.count }

func (y *meanYear) Add(season domain.Season, obs domain.Observation) {
	b := &y.buckets[season]
	if obs.WindSpeed.OK {
		b.wspd.add(obs.WindSpeed.V)
	}
	if obs.Gust.OK {
		b.gst.add(obs.Gust.V)
	}
	y.count++
}
