// Package logger provides the structured logger injected into every
// sfu-worker component, mirroring the logger.Logger interface the
// teacher's pkg/sfu package imports but backed directly by zap, which is
// this repository's actual logging dependency.
package logger

import (
	"go.uber.org/zap"
)

// Logger is the structured logging interface accepted by every
// constructor in internal/. Key-value pairs follow zap's Sugared
// convention: alternating key, value.
type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, err error, keysAndValues ...interface{})
	Errorw(msg string, err error, keysAndValues ...interface{})

	// With returns a Logger that always includes the given key-value
	// pairs, for tagging a sub-component (e.g. a Consumer id).
	With(keysAndValues ...interface{}) Logger
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

// NewProduction builds a Logger backed by zap's production config.
func NewProduction() (Logger, error) {
	l, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return &zapLogger{sugar: l.Sugar()}, nil
}

// NewDevelopment builds a Logger backed by zap's development config
// (human-readable, caller-annotated).
func NewDevelopment() (Logger, error) {
	l, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	return &zapLogger{sugar: l.Sugar()}, nil
}

func (z *zapLogger) Debugw(msg string, keysAndValues ...interface{}) {
	z.sugar.Debugw(msg, keysAndValues...)
}

func (z *zapLogger) Infow(msg string, keysAndValues ...interface{}) {
	z.sugar.Infow(msg, keysAndValues...)
}

func (z *zapLogger) Warnw(msg string, err error, keysAndValues ...interface{}) {
	if err != nil {
		keysAndValues = append(keysAndValues, "error", err)
	}
	z.sugar.Warnw(msg, keysAndValues...)
}

func (z *zapLogger) Errorw(msg string, err error, keysAndValues ...interface{}) {
	if err != nil {
		keysAndValues = append(keysAndValues, "error", err)
	}
	z.sugar.Errorw(msg, keysAndValues...)
}

func (z *zapLogger) With(keysAndValues ...interface{}) Logger {
	return &zapLogger{sugar: z.sugar.With(keysAndValues...)}
}

// nopLogger discards everything. Used in tests that don't assert on
// log output.
type nopLogger struct{}

// Nop returns a Logger that discards all messages.
func Nop() Logger {
	return nopLogger{}
}

func (nopLogger) Debugw(string, ...interface{})        {}
func (nopLogger) Infow(string, ...interface{})         {}
func (nopLogger) Warnw(string, error, ...interface{})  {}
func (nopLogger) Errorw(string, error, ...interface{}) {}
func (nopLogger) With(...interface{}) Logger           { return nopLogger{} }
