package domain

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// minColumns is the number of leading columns every data row must carry.
const minColumns = 8

// Column positions in a stdmet data row.
const (
	colYear = iota
	colMonth
	colDay
	colHour
	colMinute
	colDirection
	colWindSpeed
	colGust
)

// DropReason explains why a data row did not produce an observation.
type DropReason string

const (
	DropMalformed  DropReason = "malformed"
	DropMissing    DropReason = "missing_field"
	DropOutOfRange DropReason = "out_of_range"
)

// ScanStats counts what a Scanner did with the data rows it read.
// Comment and blank lines are not counted.
type ScanStats struct {
	Rows    int
	Kept    int
	Dropped map[DropReason]int
}

// DroppedTotal returns the number of rows dropped for any reason.
func (s ScanStats) DroppedTotal() int {
	n := 0
	for _, c := range s.Dropped {
		n += c
	}
	return n
}

// Scanner lazily turns a stdmet text stream into validated observations.
// Rows that lack any of the required fields, or carry them out of range,
// are dropped whole. Usage mirrors bufio.Scanner:
//
//	sc := domain.NewScanner(r, 2020, domain.FieldWindSpeed|domain.FieldGust)
//	for sc.Scan() {
//		obs := sc.Observation()
//	}
//	if err := sc.Err(); err != nil { ... }
type Scanner struct {
	lines    *bufio.Scanner
	year     int
	required Fields
	current  Observation
	stats    ScanStats
}

// NewScanner creates a Scanner over r. Every observation is attributed to
// year, the archive year the stream was fetched for.
func NewScanner(r io.Reader, year int, required Fields) *Scanner {
	lines := bufio.NewScanner(r)
	lines.Buffer(make([]byte, 0, 64*1024), 1<<20)
	return &Scanner{
		lines:    lines,
		year:     year,
		required: required,
		stats:    ScanStats{Dropped: make(map[DropReason]int)},
	}
}

// Scan advances to the next valid observation. It returns false at the end
// of input or on a read error.
func (s *Scanner) Scan() bool {
	for s.lines.Scan() {
		line := strings.TrimSpace(s.lines.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		s.stats.Rows++

		obs, reason := parseRow(line, s.year, s.required)
		if reason != "" {
			s.stats.Dropped[reason]++
			continue
		}
		s.current = obs
		s.stats.Kept++
		return true
	}
	return false
}

// Observation returns the observation produced by the last call to Scan.
func (s *Scanner) Observation() Observation {
	return s.current
}

// Err returns the first non-EOF read error.
func (s *Scanner) Err() error {
	return s.lines.Err()
}

// Stats returns row counts accumulated so far.
func (s *Scanner) Stats() ScanStats {
	return s.stats
}

// readingStatus distinguishes unparseable from out-of-range field values.
type readingStatus int

const (
	readingOK readingStatus = iota
	readingMissing
	readingOutOfRange
)

// parseRow parses one non-comment line. A non-empty DropReason means the row
// must be discarded.
func parseRow(line string, year int, required Fields) (Observation, DropReason) {
	cols := strings.Fields(line)
	if len(cols) < minColumns {
		return Observation{}, DropMalformed
	}

	month, err := strconv.Atoi(cols[colMonth])
	if err != nil || month < 1 || month > 12 {
		return Observation{}, DropMalformed
	}

	obs := Observation{Year: year, Month: month}
	fields := []struct {
		field  Fields
		col    int
		lo, hi float64
		dst    *Reading
	}{
		{FieldDirection, colDirection, MinDirection, MaxDirection, &obs.Direction},
		{FieldWindSpeed, colWindSpeed, MinSpeed, MaxSpeed, &obs.WindSpeed},
		{FieldGust, colGust, MinSpeed, MaxSpeed, &obs.Gust},
	}

	for _, f := range fields {
		r, status := parseReading(cols[f.col], f.lo, f.hi)
		if status != readingOK && required.Has(f.field) {
			if status == readingMissing {
				return Observation{}, DropMissing
			}
			return Observation{}, DropOutOfRange
		}
		*f.dst = r
	}
	return obs, ""
}

// parseReading parses a float and range checks it. Anything but readingOK
// yields an absent Reading.
func parseReading(s string, lo, hi float64) (Reading, readingStatus) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Reading{}, readingMissing
	}
	if !inRange(v, lo, hi) {
		return Reading{}, readingOutOfRange
	}
	return Reading{V: v, OK: true}, readingOK
}
