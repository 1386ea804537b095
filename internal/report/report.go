// Package report holds the outcome of one aggregation run and renders it
// as text tables or JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/couchcryptid/buoy-season-stats/internal/aggregate"
	"github.com/couchcryptid/buoy-season-stats/internal/domain"
)

// Outcome is what happened to one archive year.
type Outcome string

const (
	OutcomeFetched Outcome = "fetched"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// YearStatus records the outcome of one archive year of the range.
type YearStatus struct {
	Year    int     `json:"year"`
	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"reason,omitempty"`
}

// RowStats sums the parser counters over every fetched year.
type RowStats struct {
	Read    int                       `json:"read"`
	Kept    int                       `json:"kept"`
	Dropped map[domain.DropReason]int `json:"dropped,omitempty"`
}

// Add folds one year's scanner counters in.
func (r *RowStats) Add(s domain.ScanStats) {
	r.Read += s.Rows
	r.Kept += s.Kept
	for reason, n := range s.Dropped {
		if n == 0 {
			continue
		}
		if r.Dropped == nil {
			r.Dropped = make(map[domain.DropReason]int)
		}
		r.Dropped[reason] += n
	}
}

// Report is the outcome of aggregating one station over a year range.
type Report struct {
	RunID       string            `json:"run_id"`
	Job         string            `json:"job,omitempty"`
	Station     string            `json:"station"`
	StartYear   int               `json:"start_year"`
	EndYear     int               `json:"end_year"`
	GeneratedAt time.Time         `json:"generated_at"`
	Years       []YearStatus      `json:"years"`
	Rows        RowStats          `json:"rows"`
	Summary     aggregate.Summary `json:"summary"`
}

// Key identifies the report on the sink topic: the job name in serve mode,
// the station otherwise.
func (r *Report) Key() string {
	if r.Job != "" {
		return r.Job
	}
	return r.Station
}

// Unfetched returns the years that were skipped or failed, in range order.
func (r *Report) Unfetched() []YearStatus {
	var out []YearStatus
	for _, y := range r.Years {
		if y.Outcome != OutcomeFetched {
			out = append(out, y)
		}
	}
	return out
}

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// Format selects a renderer.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat validates a renderer name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatText, FormatJSON:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unknown format %q (want text or json)", s)
	}
}

// Write renders the report in the given format.
func Write(w io.Writer, r *Report, f Format) error {
	if f == FormatJSON {
		return WriteJSON(w, r)
	}
	return WriteText(w, r)
}
