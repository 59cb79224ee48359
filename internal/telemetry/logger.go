package telemetry

import "log"

// Logger is the printf sink used for operator-facing messages. Domain
// events go through the logging router instead.
type Logger interface {
	Printf(format string, args ...any)
}

// LoggerFunc adapts a function to Logger. A nil LoggerFunc discards.
type LoggerFunc func(format string, args ...any)

func (f LoggerFunc) Printf(format string, args ...any) {
	if f == nil {
		return
	}
	f(format, args...)
}

// Discard drops every message.
var Discard Logger = LoggerFunc(nil)

// StdLogger is a Logger backed by a standard library logger. The router
// falls back to the same logger when a sink fails.
type StdLogger struct {
	base *log.Logger
}

func WrapLogger(base *log.Logger) *StdLogger {
	return &StdLogger{base: base}
}

func (l *StdLogger) Printf(format string, args ...any) {
	if l == nil || l.base == nil {
		return
	}
	l.base.Printf(format, args...)
}

// StandardLogger returns the wrapped logger, or nil.
func (l *StdLogger) StandardLogger() *log.Logger {
	if l == nil {
		return nil
	}
	return l.base
}
