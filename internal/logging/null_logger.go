package logging

import "github.com/vvka-141/dynis/pkg/dynis"

// NullLogger discards all events.
type NullLogger struct{}

// NewNullLogger creates a new NullLogger.
func NewNullLogger() *NullLogger {
	return &NullLogger{}
}

func (l *NullLogger) Verbose(string, dynis.Fields) {}
func (l *NullLogger) Info(string, dynis.Fields)    {}
func (l *NullLogger) Notice(string, dynis.Fields)  {}
func (l *NullLogger) Error(string, dynis.Fields)   {}

// With returns the receiver.
func (l *NullLogger) With(dynis.Fields) dynis.Logger { return l }

var _ dynis.Logger = (*NullLogger)(nil)
