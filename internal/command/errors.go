package command

import "errors"

// ErrInvalidValue is returned when a value cannot be represented.
var ErrInvalidValue = errors.New("command: invalid value")
