package aggregate

import "github.com/couchcryptid/buoy-season-stats/internal/domain"

var gustDirectionMetrics = []Metric{
	{Name: "max_gst", Unit: UnitSpeed},
	{Name: "mean_wdir", Unit: UnitDegrees},
}

// gustDirectionStrategy pairs the seasonal maximum gust with the seasonal
// mean direction. Across years the gust is year weighted (mean of yearly
// maxima) while the direction is volume weighted (all readings / count).
//
// Direction is averaged arithmetically, so readings either side of north
// (350 and 10) average to 180. Callers interested in northerly stations
// should read the figure with that in mind.
type gustDirectionStrategy struct{}

func (gustDirectionStrategy) Kind() Kind { return KindGustDirection }

func (gustDirectionStrategy) Required() domain.Fields {
	return domain.FieldDirection | domain.FieldGust
}

func (gustDirectionStrategy) NewYear(year int) YearAccumulator {
	return &gustDirectionYear{year: year}
}

func (s gustDirectionStrategy) Rollup(years []YearAccumulator) Summary {
	sorted := sortedYears[*gustDirectionYear](years)

	var total [domain.NumSeasons]struct{ gst, wdir mean }
	rows := make([]YearRow, 0, len(sorted))
	for _, y := range sorted {
		row := YearRow{Year: y.year, Count: y.count}
		for _, season := range domain.Seasons {
			b := y.buckets[season]
			gst := b.gst.value()
			row.Seasons[season] = []Value{gst, b.wdir.value()}
			if gst.OK {
				total[season].gst.add(gst.V)
			}
			total[season].wdir.merge(b.wdir)
		}
		rows = append(rows, row)
	}

	var rollup SeasonCells
	for _, season := range domain.Seasons {
		rollup[season] = []Value{total[season].gst.value(), total[season].wdir.value()}
	}

	n := totalCount(sorted)
	return Summary{
		Strategy:     s.Kind(),
		Metrics:      gustDirectionMetrics,
		Years:        rows,
		Rollup:       &rollup,
		Observations: n,
		Empty:        n == 0,
	}
}

type gustDirectionYear struct {
	year    int
	count   int
	buckets [domain.NumSeasons]struct {
		gst  maximum
		wdir mean
	}
}

func (y *gustDirectionYear) Year() int  { return y.year }
func (y *gustDirectionYear) Count() int { return y.count }

func (y *gustDirectionYear) Add(season domain.Season, obs domain.Observation) {
	b := &y.buckets[season]
	if obs.Gust.OK {
		b.gst.observe(obs.Gust.V)
	}
	if obs.Direction.OK {
		b.wdir.add(obs.Direction.V)
	}
	y.count++
}
