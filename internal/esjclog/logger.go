// Package esjclog provides the connection engine's structured logger: a thin
// wrapper selecting a sink, with leveled component logging, backed by
// zerolog through a logr.LogSink.
package esjclog

import (
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zerologr"
	"github.com/rs/zerolog"
)

// Level mirrors the verbosity levels the connection engine logs at.
type Level int

// Recognized levels, ordered least to most verbose.
const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// Logger is the engine's logging facade. A nil *Logger is valid and
// discards everything, so components can be constructed without requiring
// a logger.
type Logger struct {
	sink logr.Logger
}

// New builds a Logger backed by zerolog, writing to w (os.Stderr by
// default when w is nil).
func New(w *os.File) *Logger {
	if w == nil {
		w = os.Stderr
	}
	zerologr.VerbosityFieldName = ""
	zl := zerolog.New(w).With().Timestamp().Logger()
	return &Logger{sink: zerologr.New(&zl)}
}

// Discard returns a Logger that drops every message.
func Discard() *Logger {
	return &Logger{sink: logr.Discard()}
}

func (l *Logger) logger() logr.Logger {
	if l == nil {
		return logr.Discard()
	}
	return l.sink
}

// Error logs a connection-fatal or unexpected condition.
func (l *Logger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger().Error(err, msg, keysAndValues...)
}

// Warn logs a recoverable but noteworthy condition (retry, drop, timeout).
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger().V(int(LevelWarn)).Info(msg, keysAndValues...)
}

// Info logs a normal lifecycle transition (connected, reconnecting, ...).
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.logger().V(int(LevelInfo)).Info(msg, keysAndValues...)
}

// Debug logs fine-grained, high-volume detail (per-package dispatch).
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger().V(int(LevelDebug)).Info(msg, keysAndValues...)
}

// WithValues returns a Logger that always includes the given key/value
// pairs, e.g. a per-connection child logger.
func (l *Logger) WithValues(keysAndValues ...interface{}) *Logger {
	return &Logger{sink: l.logger().WithValues(keysAndValues...)}
}
