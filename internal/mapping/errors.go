package mapping

import "errors"

// Domain errors for the mapping package.
var (
	// ErrInvalidEntry is returned when an entry fails validation.
	ErrInvalidEntry = errors.New("mapping: invalid entry")

	// ErrDuplicateName is returned when two entries share a controller name.
	ErrDuplicateName = errors.New("mapping: duplicate name")
)
