package logging

import (
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Zap adapts a *zap.Logger to Logger.
type Zap struct {
	l *zap.Logger
}

// NewZap wraps l; a nil l falls back to the global zap logger.
func NewZap(l *zap.Logger) *Zap {
	if l == nil {
		l = zap.L()
	}
	return &Zap{l: l}
}

// Debug logs at debug level.
func (z *Zap) Debug(msg string, ctx Fields) { z.l.Debug(msg, fields(ctx)...) }

// Info logs at info level.
func (z *Zap) Info(msg string, ctx Fields) { z.l.Info(msg, fields(ctx)...) }

// Warn logs at warn level.
func (z *Zap) Warn(msg string, ctx Fields) { z.l.Warn(msg, fields(ctx)...) }

func fields(ctx Fields) []zap.Field {
	if len(ctx) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		out = append(out, zap.Any(k, ctx[k]))
	}
	return out
}

// NewCLILogger builds the zap logger used by the command line tools. Verbose switches to the
// development config with debug level enabled; jsonOut forces JSON encoding.
func NewCLILogger(verbose, jsonOut bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	}
	if jsonOut {
		cfg.Encoding = "json"
	}
	cfg.DisableStacktrace = !verbose
	return cfg.Build()
}

var _ Logger = (*Zap)(nil)
