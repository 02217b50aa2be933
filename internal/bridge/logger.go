package bridge

import "github.com/nerrad567/loxhue-core/internal/infrastructure/logging"

// Logger is the logging interface used by the engine.
// *logging.Logger satisfies it.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// nopLogger discards everything.
type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// categoryLogger files every record under one log category.
type categoryLogger struct {
	next     Logger
	category string
}

func withCategory(l Logger, category string) Logger {
	return categoryLogger{next: l, category: category}
}

func (l categoryLogger) kv(kv []any) []any {
	return append([]any{logging.CategoryKey, l.category}, kv...)
}

func (l categoryLogger) Debug(msg string, kv ...any) { l.next.Debug(msg, l.kv(kv)...) }
func (l categoryLogger) Info(msg string, kv ...any)  { l.next.Info(msg, l.kv(kv)...) }
func (l categoryLogger) Warn(msg string, kv ...any)  { l.next.Warn(msg, l.kv(kv)...) }
func (l categoryLogger) Error(msg string, kv ...any) { l.next.Error(msg, l.kv(kv)...) }
