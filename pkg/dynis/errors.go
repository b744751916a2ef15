package dynis

import (
	"errors"
	"strings"
)

// Sentinel errors. Callers distinguish them with errors.Is().
var (
	// ErrInvalidConfig indicates the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNotFound indicates a resource does not exist or is not accessible.
	ErrNotFound = errors.New("resource not found")

	// ErrConnectionFailed indicates the store connection failed.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrStoreUnavailable indicates the persistence layer failed mid-run.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrUnsupportedDriver indicates an unknown database driver name.
	ErrUnsupportedDriver = errors.New("unsupported database driver")

	// ErrLockNotObtained indicates another run holds the job lock.
	ErrLockNotObtained = errors.New("job lock not obtained")

	// ErrInvalidUsage indicates invalid command line arguments.
	ErrInvalidUsage = errors.New("invalid usage")

	// ErrStopped reports a run that ended on the stop signal. The job itself
	// never returns it; the CLI uses it to pick the exit code.
	ErrStopped = errors.New("job stopped")
)

// ExitCodeForError returns the exit code for an error.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch {
	case errors.Is(err, ErrInvalidUsage):
		return ExitUsageError
	case errors.Is(err, ErrInvalidConfig), errors.Is(err, ErrUnsupportedDriver):
		return ExitConfigError
	case errors.Is(err, ErrConnectionFailed):
		return ExitConnectionError
	case errors.Is(err, ErrLockNotObtained):
		return ExitLockNotObtained
	case errors.Is(err, ErrStopped):
		return ExitStopped
	}

	errStr := err.Error()
	if strings.Contains(errStr, "failed to connect") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") {
		return ExitConnectionError
	}

	return ExitGeneralError
}
