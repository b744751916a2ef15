package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/vvka-141/dynis/pkg/dynis"
)

// Output formats.
const (
	FormatAuto = "auto"
	FormatText = "text"
	FormatJSON = "json"
)

// Options configure a Logger.
type Options struct {
	// Output defaults to stderr.
	Output io.Writer

	// Format is auto, text or json. Auto picks text on a terminal.
	Format string

	// Level is a logrus level name; defaults to info.
	Level string

	// Verbose enables Verbose() output and forces the debug level.
	Verbose bool
}

// Logger writes structured events through logrus.
type Logger struct {
	entry *logrus.Entry
}

// New creates a Logger. An unknown level falls back to info.
func New(opts Options) *Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	base := logrus.New()
	base.SetOutput(out)
	base.SetFormatter(formatterFor(opts.Format, out))

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	if opts.Verbose {
		level = logrus.DebugLevel
	}
	base.SetLevel(level)

	return &Logger{entry: logrus.NewEntry(base)}
}

func formatterFor(format string, out io.Writer) logrus.Formatter {
	switch strings.ToLower(format) {
	case FormatJSON:
		return &logrus.JSONFormatter{}
	case FormatText:
		return &logrus.TextFormatter{FullTimestamp: true}
	}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return &logrus.TextFormatter{FullTimestamp: true}
	}
	return &logrus.JSONFormatter{}
}

// Verbose logs at debug level.
func (l *Logger) Verbose(message string, fields dynis.Fields) {
	l.with(fields).Debug(Interpolate(message, fields))
}

// Info logs at info level.
func (l *Logger) Info(message string, fields dynis.Fields) {
	l.with(fields).Info(Interpolate(message, fields))
}

// Notice logs at warn level with severity=notice.
func (l *Logger) Notice(message string, fields dynis.Fields) {
	l.with(fields).WithField("severity", "notice").Warn(Interpolate(message, fields))
}

// Error logs at error level.
func (l *Logger) Error(message string, fields dynis.Fields) {
	l.with(fields).Error(Interpolate(message, fields))
}

// With returns a logger adding fields to every event.
func (l *Logger) With(fields dynis.Fields) dynis.Logger {
	return &Logger{entry: l.with(fields)}
}

func (l *Logger) with(fields dynis.Fields) *logrus.Entry {
	if len(fields) == 0 {
		return l.entry
	}
	return l.entry.WithFields(logrus.Fields(fields))
}

var _ dynis.Logger = (*Logger)(nil)
