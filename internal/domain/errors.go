package domain

import "errors"

// ErrYearUnavailable marks an archive year the source did not serve,
// usually a 404 for a year the station was not reporting. Runs skip such
// years and carry on with the rest of the range.
var ErrYearUnavailable = errors.New("archive year unavailable")
