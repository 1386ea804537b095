package domain

import "fmt"

// Season is a meteorological season.
type Season int

const (
	Winter Season = iota
	Spring
	Summer
	Fall
)

// NumSeasons is the number of seasons; Season values index [NumSeasons]T arrays.
const NumSeasons = 4

// Seasons lists all seasons in report order.
var Seasons = [NumSeasons]Season{Winter, Spring, Summer, Fall}

// SeasonOf maps a calendar month (1-12) to its meteorological season.
// It returns false for months outside 1-12.
func SeasonOf(month int) (Season, bool) {
	switch month {
	case 12, 1, 2:
		return Winter, true
	case 3, 4, 5:
		return Spring, true
	case 6, 7, 8:
		return Summer, true
	case 9, 10, 11:
		return Fall, true
	default:
		return 0, false
	}
}

func (s Season) String() string {
	switch s {
	case Winter:
		return "Winter"
	case Spring:
		return "Spring"
	case Summer:
		return "Summer"
	case Fall:
		return "Fall"
	default:
		return fmt.Sprintf("Season(%d)", int(s))
	}
}

// MarshalText encodes the season by name, so it can key JSON maps.
func (s Season) MarshalText() ([]byte, error) {
	if s < Winter || s > Fall {
		return nil, fmt.Errorf("invalid season %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a season name.
func (s *Season) UnmarshalText(b []byte) error {
	for _, c := range Seasons {
		if c.String() == string(b) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown season %q", b)
}
