// Package logger is the structured logging seam of the SDK. The SDK logs
// nothing unless a Logger is supplied.
package logger

// Logger takes a message and a flat set of fields. fields may be nil.
type Logger interface {
	Debug(msg string, fields map[string]any)
	Info(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
}

type NoopLogger struct{}

func (NoopLogger) Debug(string, map[string]any) {}
func (NoopLogger) Info(string, map[string]any)  {}
func (NoopLogger) Warn(string, map[string]any)  {}
func (NoopLogger) Error(string, map[string]any) {}

// With returns a Logger that adds base to every entry. Fields given per call
// win over base.
func With(l Logger, base map[string]any) Logger {
	if _, ok := l.(NoopLogger); ok || len(base) == 0 {
		return l
	}
	return fieldLogger{next: l, base: base}
}

type fieldLogger struct {
	next Logger
	base map[string]any
}

func (f fieldLogger) merge(fields map[string]any) map[string]any {
	out := make(map[string]any, len(f.base)+len(fields))
	for k, v := range f.base {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func (f fieldLogger) Debug(msg string, fields map[string]any) { f.next.Debug(msg, f.merge(fields)) }
func (f fieldLogger) Info(msg string, fields map[string]any)  { f.next.Info(msg, f.merge(fields)) }
func (f fieldLogger) Warn(msg string, fields map[string]any)  { f.next.Warn(msg, f.merge(fields)) }
func (f fieldLogger) Error(msg string, fields map[string]any) { f.next.Error(msg, f.merge(fields)) }
