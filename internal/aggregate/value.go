package aggregate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/couchcryptid/buoy-season-stats/internal/domain"
)

// Value is an optional statistic. OK is false when the statistic is
// undefined, e.g. the mean of zero samples or the maximum of none.
type Value struct {
	V  float64
	OK bool
}

// Some wraps a defined value.
func Some(v float64) Value {
	return Value{V: v, OK: true}
}

// MarshalJSON encodes undefined values as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.OK {
		return []byte("null"), nil
	}
	return json.Marshal(v.V)
}

// UnmarshalJSON decodes null as an undefined value.
func (v *Value) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = Value{}
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*v = Some(f)
	return nil
}

// Unit tells renderers how to format a metric.
type Unit string

const (
	UnitSpeed   Unit = "m/s"
	UnitDegrees Unit = "degT"
)

// Metric names one statistic reported per season.
type Metric struct {
	Name string `json:"name"`
	Unit Unit   `json:"unit"`
}

// SeasonCells holds one value per metric for each season.
type SeasonCells [domain.NumSeasons][]Value

// MarshalJSON encodes the cells as an object keyed by season name.
func (c SeasonCells) MarshalJSON() ([]byte, error) {
	m := make(map[domain.Season][]Value, domain.NumSeasons)
	for _, s := range domain.Seasons {
		m[s] = c[s]
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes an object keyed by season name.
func (c *SeasonCells) UnmarshalJSON(b []byte) error {
	var m map[domain.Season][]Value
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	for s, vals := range m {
		c[s] = vals
	}
	return nil
}

// YearRow is the per-year derived statistics for every season.
type YearRow struct {
	Year    int         `json:"year"`
	Count   int         `json:"count"`
	Seasons SeasonCells `json:"seasons"`
}

// PercentileResult is the outcome of the top-percentile gust strategy.
type PercentileResult struct {
	Qualifying int   `json:"qualifying"`
	Cutoff     int   `json:"cutoff"`
	Fallback   bool  `json:"fallback"`
	MeanGust   Value `json:"mean_gust"`
}

// Summary is the finalized output of a strategy over a year range.
type Summary struct {
	Strategy     Kind              `json:"strategy"`
	Params       Params            `json:"params"`
	Metrics      []Metric          `json:"metrics,omitempty"`
	Years        []YearRow         `json:"years,omitempty"`
	Rollup       *SeasonCells      `json:"rollup,omitempty"`
	Percentile   *PercentileResult `json:"percentile,omitempty"`
	Observations int               `json:"observations"`
	Empty        bool              `json:"empty"`
}

// Defaults for the percentile strategy knobs.
const (
	DefaultTolerance  = 20.0
	DefaultPercentile = 1.0
)

// Params carries the strategy knobs. Only the percentile strategy reads them.
type Params struct {
	Direction  float64 `json:"direction,omitempty" validate:"gte=0,lte=360"`
	Tolerance  float64 `json:"tolerance,omitempty" validate:"gte=0,lte=180"`
	Percentile float64 `json:"percentile,omitempty" validate:"gte=0,lte=100"`
}

// Kind selects an aggregation strategy.
type Kind string

const (
	KindMean          Kind = "mean"
	KindMax           Kind = "max"
	KindGustDirection Kind = "gust-direction"
	KindPercentile    Kind = "percentile"
)

// Kinds lists every supported strategy.
var Kinds = []Kind{KindMean, KindMax, KindGustDirection, KindPercentile}

// ParseKind validates a strategy name.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown strategy %q", s)
}
