// Package logging is the leveled, structured logging seam shared by the deployment libraries.
// Libraries log through Logger; binaries choose the backend (zap, the Pulumi engine, or nothing).
package logging

// Fields is the structured context of a log entry. Keys are short lowerCamelCase names and
// values must be JSON-serializable.
type Fields map[string]any

// Logger is implemented by every backend. Messages are stable event names such as
// "s3.sync.put"; variable data goes in fields, never in msg.
type Logger interface {
	Debug(msg string, ctx Fields)
	Info(msg string, ctx Fields)
	Warn(msg string, ctx Fields)
}

// NopLogger discards all logs.
type NopLogger struct{}

func (NopLogger) Debug(string, Fields) {}
func (NopLogger) Info(string, Fields)  {}
func (NopLogger) Warn(string, Fields)  {}

// OrNop returns l, or a NopLogger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return NopLogger{}
	}
	return l
}

// With returns a Logger that adds base to every entry. Fields passed per call win on conflict.
func With(l Logger, base Fields) Logger {
	if len(base) == 0 {
		return OrNop(l)
	}
	return withFields{next: OrNop(l), base: base}
}

type withFields struct {
	next Logger
	base Fields
}

func (w withFields) merge(ctx Fields) Fields {
	out := make(Fields, len(w.base)+len(ctx))
	for k, v := range w.base {
		out[k] = v
	}
	for k, v := range ctx {
		out[k] = v
	}
	return out
}

func (w withFields) Debug(msg string, ctx Fields) { w.next.Debug(msg, w.merge(ctx)) }
func (w withFields) Info(msg string, ctx Fields)  { w.next.Info(msg, w.merge(ctx)) }
func (w withFields) Warn(msg string, ctx Fields)  { w.next.Warn(msg, w.merge(ctx)) }
