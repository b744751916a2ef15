package logging

import (
	"strings"
	"sync"

	"github.com/vvka-141/dynis/pkg/dynis"
)

// Entry is one event recorded by MemoryLogger.
type Entry struct {
	Level    string
	Template string
	Message  string
	Fields   dynis.Fields
}

type memoryRecords struct {
	mu      sync.Mutex
	entries []Entry
}

// MemoryLogger records events. Loggers derived with With share the records.
type MemoryLogger struct {
	records *memoryRecords
	fields  dynis.Fields
}

// NewMemoryLogger creates an empty MemoryLogger.
func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{records: &memoryRecords{}}
}

func (l *MemoryLogger) Verbose(message string, fields dynis.Fields) {
	l.record("verbose", message, fields)
}

func (l *MemoryLogger) Info(message string, fields dynis.Fields) {
	l.record("info", message, fields)
}

func (l *MemoryLogger) Notice(message string, fields dynis.Fields) {
	l.record("notice", message, fields)
}

func (l *MemoryLogger) Error(message string, fields dynis.Fields) {
	l.record("error", message, fields)
}

// With returns a logger sharing the records and adding fields.
func (l *MemoryLogger) With(fields dynis.Fields) dynis.Logger {
	return &MemoryLogger{records: l.records, fields: merge(l.fields, fields)}
}

func (l *MemoryLogger) record(level, message string, fields dynis.Fields) {
	all := merge(l.fields, fields)
	l.records.mu.Lock()
	defer l.records.mu.Unlock()
	l.records.entries = append(l.records.entries, Entry{
		Level:    level,
		Template: message,
		Message:  Interpolate(message, all),
		Fields:   all,
	})
}

// Entries returns a copy of the recorded events.
func (l *MemoryLogger) Entries() []Entry {
	l.records.mu.Lock()
	defer l.records.mu.Unlock()
	return append([]Entry(nil), l.records.entries...)
}

// Messages returns the interpolated messages in order.
func (l *MemoryLogger) Messages() []string {
	entries := l.Entries()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}

// Find returns the entries whose template contains substr.
func (l *MemoryLogger) Find(substr string) []Entry {
	var out []Entry
	for _, e := range l.Entries() {
		if strings.Contains(e.Template, substr) {
			out = append(out, e)
		}
	}
	return out
}

var _ dynis.Logger = (*MemoryLogger)(nil)
