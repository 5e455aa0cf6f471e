package battery

import "errors"

// ErrInvalidTable is returned when an OCV table does not have exactly
// OCVTableSize entries.
var ErrInvalidTable = errors.New("invalid ocv table")

// ErrInvalidParameter is returned for negative or non-finite circuit values
// and initial capacity percentages outside [0,100].
var ErrInvalidParameter = errors.New("invalid battery parameter")
