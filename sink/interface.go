// Package sink implements the delivery destinations a replication
// session can dispatch committed events to: STDOUT, HTTP, and Hook0,
// all sharing one retry envelope and JSON encoding.
package sink

import "github.com/strahe/pgreplay-sentinel/capture"

// Sink is the capability contract every destination in this package
// implements; declared in package capture to keep the dependency
// pointing one way (sink depends on capture, never the reverse).
type Sink = capture.Sink

// Logger is the capability seam sinks log through.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debugf(string, ...any) {}
func (noopLogger) Infof(string, ...any)  {}
func (noopLogger) Warnf(string, ...any)  {}
func (noopLogger) Errorf(string, ...any) {}

var NoopLogger Logger = noopLogger{}
