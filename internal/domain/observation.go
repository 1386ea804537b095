package domain

// Valid ranges for observation fields. Values outside are treated as absent.
const (
	MinSpeed     = 0.0
	MaxSpeed     = 90.0
	MinDirection = 0.0
	MaxDirection = 360.0
)

// Fields is a bit set of the numeric columns of an observation.
type Fields uint8

const (
	FieldDirection Fields = 1 << iota
	FieldWindSpeed
	FieldGust
)

// Has reports whether every field in other is also in s.
func (s Fields) Has(other Fields) bool {
	return s&other == other
}

func (s Fields) String() string {
	switch s {
	case FieldDirection:
		return "wdir"
	case FieldWindSpeed:
		return "wspd"
	case FieldGust:
		return "gst"
	}
	out := ""
	for _, f := range []Fields{FieldDirection, FieldWindSpeed, FieldGust} {
		if s.Has(f) {
			if out != "" {
				out += "+"
			}
			out += f.String()
		}
	}
	return out
}

// Reading is an optional numeric value. OK is false when the source value
// was missing, unparseable or out of range.
type Reading struct {
	V  float64
	OK bool
}

// Observation is one parsed and range-validated row of a stdmet file.
type Observation struct {
	Year      int
	Month     int
	Direction Reading // degrees true
	WindSpeed Reading // m/s
	Gust      Reading // m/s
}

// Get returns the reading for a single field; f must name exactly one field.
func (o Observation) Get(f Fields) Reading {
	switch f {
	case FieldDirection:
		return o.Direction
	case FieldWindSpeed:
		return o.WindSpeed
	case FieldGust:
		return o.Gust
	default:
		return Reading{}
	}
}

// Present returns the set of fields that hold a valid reading.
func (o Observation) Present() Fields {
	var s Fields
	if o.Direction.OK {
		s |= FieldDirection
	}
	if o.WindSpeed.OK {
		s |= FieldWindSpeed
	}
	if o.Gust.OK {
		s |= FieldGust
	}
	return s
}

func inRange(v, lo, hi float64) bool {
	return v >= lo && v <= hi
}
