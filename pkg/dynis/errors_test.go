package dynis

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCodeForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"usage", fmt.Errorf("missing id: %w", ErrInvalidUsage), ExitUsageError},
		{"invalid config", fmt.Errorf("bad chunk: %w", ErrInvalidConfig), ExitConfigError},
		{"unsupported driver", fmt.Errorf("sqlite: %w", ErrUnsupportedDriver), ExitConfigError},
		{"connection", fmt.Errorf("open: %w", ErrConnectionFailed), ExitConnectionError},
		{"lock", ErrLockNotObtained, ExitLockNotObtained},
		{"stopped", fmt.Errorf("run: %w", ErrStopped), ExitStopped},
		{"refused pattern", errors.New("dial tcp: connection refused"), ExitConnectionError},
		{"other", errors.New("boom"), ExitGeneralError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCodeForError(tt.err))
		})
	}
}
