package db

import (
	"fmt"
	"strings"

	"github.com/vvka-141/dynis/pkg/dynis"
)

// wrapConnectionError adds operator guidance and wraps ErrConnectionFailed.
func wrapConnectionError(err error, host string, port int, database string) error {
	errStr := strings.ToLower(err.Error())
	addr := fmt.Sprintf("%s:%d", host, port)

	var hint string
	switch {
	case strings.Contains(errStr, "connection refused"):
		hint = fmt.Sprintf("connection refused to %s (is the server running, host and port correct?)", addr)
	case strings.Contains(errStr, "no such host"):
		hint = fmt.Sprintf("cannot resolve host %q", host)
	case strings.Contains(errStr, "password authentication failed"), strings.Contains(errStr, "access denied"):
		hint = fmt.Sprintf("authentication failed for database %q", database)
	case strings.Contains(errStr, "does not exist"), strings.Contains(errStr, "unknown database"):
		hint = fmt.Sprintf("database %q does not exist", database)
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "timed out"):
		hint = fmt.Sprintf("connection timed out to %s", addr)
	default:
		hint = fmt.Sprintf("failed to connect to %s", addr)
	}

	return fmt.Errorf("%s: %w: %w", hint, dynis.ErrConnectionFailed, err)
}
