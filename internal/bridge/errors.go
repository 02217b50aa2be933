package bridge

import "errors"

// Sentinel errors returned by command handling.
var (
	// ErrNotConfigured indicates the Hue bridge address or app key is missing.
	ErrNotConfigured = errors.New("bridge: hue bridge not configured")

	// ErrUnknownTarget indicates a command for a name with no mapping.
	// The name has been recorded in the detected list.
	ErrUnknownTarget = errors.New("bridge: unknown target")

	// ErrReadOnly indicates a command for a sensor or button mapping.
	ErrReadOnly = errors.New("bridge: target is read-only")
)
