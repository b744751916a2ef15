package dynis

import "time"

// ErrorClassifier decides whether a store error is worth retrying.
type ErrorClassifier interface {
	// IsTransient returns true for temporary failures such as refused
	// connections or deadlocks.
	IsTransient(err error) bool
}

// BackoffStrategy computes the wait before each retry.
type BackoffStrategy interface {
	// NextDelay returns the wait before retry number attempt (zero-indexed).
	NextDelay(attempt int) time.Duration

	// MaxAttempts returns the retry budget (0 = no retries, -1 = unlimited).
	MaxAttempts() int
}
