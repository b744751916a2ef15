package dynis

// Logger receives operator-facing progress events. Messages use named
// placeholders such as {total} or {item_set_id} that implementations
// interpolate from fields. Logging never drives control flow.
type Logger interface {
	// Verbose logs diagnostics, only shown in verbose mode.
	Verbose(message string, fields Fields)

	// Info logs normal progress.
	Info(message string, fields Fields)

	// Notice logs normal but significant conditions, such as skipped units.
	Notice(message string, fields Fields)

	// Error logs failures.
	Error(message string, fields Fields)

	// With returns a logger that adds fields to every event.
	With(fields Fields) Logger
}
