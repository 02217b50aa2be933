// Package logstore keeps the queryable log history served by /api/logs.
//
// The store is a logging.Recorder: every record that passes level
// filtering is appended to a batch and written to the SQLite logs table by
// a background flusher. When disk history is disabled, or the database
// could not be opened, entries live in a fixed-size ring in memory instead.
//
// Usage:
//
//	store := logstore.New(db, cfg.Logging.Store)
//	defer store.Close()
//	logger := logging.NewWithRecorder(cfg.Logging, version, store)
//	entries, err := store.Query(ctx, logstore.Filter{Category: "LIGHT", Limit: 50})
package logstore
