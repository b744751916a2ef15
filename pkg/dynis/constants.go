package dynis

import "time"

// Exit codes follow Unix/GNU conventions:
//   - 0: Success
//   - 1: General error
//   - 2: CLI usage error
//   - 3+: Application-specific errors
const (
	ExitSuccess         = 0
	ExitGeneralError    = 1
	ExitUsageError      = 2
	ExitPanic           = 3
	ExitConfigError     = 10
	ExitConnectionError = 11
	ExitLockNotObtained = 12
	ExitStopped         = 15
)

const (
	// DefaultRetryInitialDelay is the delay before the first connection retry.
	DefaultRetryInitialDelay = 100 * time.Millisecond

	// DefaultRetryMaxDelay caps the delay between connection retries.
	DefaultRetryMaxDelay = 1 * time.Minute

	// DefaultRetryMaxAttempts is the number of connection retries.
	DefaultRetryMaxAttempts = 3

	// DefaultLockTTL is the lifetime of the run lock between refreshes.
	DefaultLockTTL = 5 * time.Minute

	// ReferenceIDPrefix prefixes the reference id attached to run logs.
	ReferenceIDPrefix = "dynis/attach_to_itemset/job_"

	// DefaultStopKeyPrefix prefixes the Redis key polled as stop signal.
	DefaultStopKeyPrefix = "dynis:stop:"
)
