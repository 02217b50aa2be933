package logstore

import "errors"

// ErrClosed is returned by Query once the store has been closed.
var ErrClosed = errors.New("logstore: closed")
