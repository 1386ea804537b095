package report

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/couchcryptid/buoy-season-stats/internal/aggregate"
	"github.com/couchcryptid/buoy-season-stats/internal/domain"
)

// NotAvailable is printed for statistics without samples.
const NotAvailable = "N/A"

// FormatValue renders one statistic: speeds with two decimals, directions
// with one, undefined values as N/A.
func FormatValue(v aggregate.Value, u aggregate.Unit) string {
	if !v.OK {
		return NotAvailable
	}
	if u == aggregate.UnitDegrees {
		return strconv.FormatFloat(v.V, 'f', 1, 64)
	}
	return strconv.FormatFloat(v.V, 'f', 2, 64)
}

// WriteText renders the report as plain text tables.
func WriteText(w io.Writer, r *Report) error {
	var buf bytes.Buffer
	s := r.Summary

	fmt.Fprintf(&buf, "Station %s  %d-%d  strategy: %s\n", r.Station, r.StartYear, r.EndYear, s.Strategy)
	fmt.Fprintf(&buf, "Rows: %d read, %d kept, %d dropped\n", r.Rows.Read, r.Rows.Kept, r.Rows.Read-r.Rows.Kept)

	switch {
	case s.Empty:
		fmt.Fprintf(&buf, "\nNo data: no qualifying observations for station %s in %d-%d.\n",
			r.Station, r.StartYear, r.EndYear)
	case s.Percentile != nil:
		writePercentile(&buf, s)
	default:
		writeTables(&buf, r)
	}

	if missing := r.Unfetched(); len(missing) > 0 {
		buf.WriteString("\nYears not included:\n")
		tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
		for _, y := range missing {
			fmt.Fprintf(tw, "  %d\t%s\t%s\n", y.Year, y.Outcome, y.Reason)
		}
		_ = tw.Flush()
	}

	_, err := w.Write(buf.Bytes())
	return err
}

func writeTables(buf *bytes.Buffer, r *Report) {
	s := r.Summary

	fmt.Fprintf(buf, "\nPer-year seasonal statistics (%s)\n", metricLegend(s.Metrics))
	tw := tabwriter.NewWriter(buf, 0, 0, 2, ' ', 0)
	writeHeader(tw, "Year")
	for _, row := range s.Years {
		writeRow(tw, strconv.Itoa(row.Year), row.Count, row.Seasons, s.Metrics)
	}
	_ = tw.Flush()

	if s.Rollup == nil {
		return
	}
	fmt.Fprintf(buf, "\nAll years (%s)\n", metricLegend(s.Metrics))
	tw = tabwriter.NewWriter(buf, 0, 0, 2, ' ', 0)
	writeHeader(tw, "Range")
	writeRow(tw, fmt.Sprintf("%d-%d", r.StartYear, r.EndYear), s.Observations, *s.Rollup, s.Metrics)
	_ = tw.Flush()
}

func writeHeader(tw *tabwriter.Writer, first string) {
	cols := []string{first, "Obs"}
	for _, season := range domain.Seasons {
		cols = append(cols, season.String())
	}
	fmt.Fprintln(tw, strings.Join(cols, "\t"))
}

func writeRow(tw *tabwriter.Writer, label string, count int, cells aggregate.SeasonCells, metrics []aggregate.Metric) {
	cols := []string{label, strconv.Itoa(count)}
	for _, season := range domain.Seasons {
		cols = append(cols, formatCell(cells[season], metrics))
	}
	fmt.Fprintln(tw, strings.Join(cols, "\t"))
}

func formatCell(values []aggregate.Value, metrics []aggregate.Metric) string {
	parts := make([]string, len(metrics))
	for i, m := range metrics {
		v := aggregate.Value{}
		if i < len(values) {
			v = values[i]
		}
		parts[i] = FormatValue(v, m.Unit)
	}
	return strings.Join(parts, " / ")
}

func metricLegend(metrics []aggregate.Metric) string {
	parts := make([]string, len(metrics))
	for i, m := range metrics {
		parts[i] = fmt.Sprintf("%s %s", m.Name, m.Unit)
	}
	return strings.Join(parts, " / ")
}

func writePercentile(buf *bytes.Buffer, s aggregate.Summary) {
	p := s.Percentile
	deg := func(v float64) string { return FormatValue(aggregate.Some(v), aggregate.UnitDegrees) }

	fmt.Fprintf(buf, "\nDirection window: %s +/- %s %s (inclusive)\n",
		deg(s.Params.Direction), deg(s.Params.Tolerance), aggregate.UnitDegrees)
	fmt.Fprintf(buf, "Qualifying gusts: %d\n", p.Qualifying)
	fmt.Fprintf(buf, "Top %s%% averaged: %d gust(s)\n", strconv.FormatFloat(s.Params.Percentile, 'f', -1, 64), p.Cutoff)
	if p.Fallback {
		buf.WriteString("Top percentile holds less than one gust; averaged every qualifying gust instead.\n")
	}
	fmt.Fprintf(buf, "Mean top gust: %s %s\n", FormatValue(p.MeanGust, aggregate.UnitSpeed), aggregate.UnitSpeed)
}
