package aggregate

import "github.com/couchcryptid/buoy-season-stats/internal/domain"

var maxMetrics = []Metric{
	{Name: "max_wspd", Unit: UnitSpeed},
	{Name: "max_gst", Unit: UnitSpeed},
}

// maxStrategy reports seasonal maxima of wind speed and gust. Maxima do not
// decompose into sums, so the multi-year figure is the mean of the yearly
// maxima, skipping years without a sample.
type maxStrategy struct{}

func (maxStrategy) Kind() Kind { return KindMax }

func (maxStrategy) Required() domain.Fields {
	return domain.FieldWindSpeed | domain.FieldGust
}

func (maxStrategy) NewYear(year int) YearAccumulator {
	return &maxYear{year: year}
}

func (s maxStrategy) Rollup(years []YearAccumulator) Summary {
	sorted := sortedYears[*maxYear](years)

	var total [domain.NumSeasons]struct{ wspd, gst mean }
	rows := make([]YearRow, 0, len(sorted))
	for _, y := range sorted {
		row := YearRow{Year: y.year, Count: y.count}
		for _, season := range domain.Seasons {
			b := y.buckets[season]
			wspd, gst := b.wspd.value(), b.gst.value()
			row.Seasons[season] = []Value{wspd, gst}
			if wspd.OK {
				total[season].wspd.add(wspd.V)
			}
			if gst.OK {
				total[season].gst.add(gst.V)
			}
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
		Metrics:      maxMetrics,
		Years:        rows,
		Rollup:       &rollup,
		Observations: n,
		Empty:        n == 0,
	}
}

type maxYear struct {
	year    int
	count   int
	buckets [domain.NumSeasons]struct{ wspd, gst maximum }
}

func (y *maxYear) Year() int  { return y.year }
func (y *maxYear) Count() int { return y.count }

func (y *maxYear) Add(season domain.Season, obs domain.Observation) {
	b := &y.buckets[season]
	if obs.WindSpeed.OK {
		b.wspd.observe(obs.WindSpeed.V)
	}
	if obs.Gust.OK {
		b.gst.observe(obs.Gust.V)
	}
	y.count++
}
