package retry

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestSQLErrorClassifier(t *testing.T) {
	c := NewSQLErrorClassifier()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"pg connection failure", &pgconn.PgError{Code: "08006"}, true},
		{"pg too many connections", &pgconn.PgError{Code: "53300"}, true},
		{"pg admin shutdown", &pgconn.PgError{Code: "57P01"}, true},
		{"pg deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"pg serialization", fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "40001"}), true},
		{"pg unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"pg undefined table", &pgconn.PgError{Code: "42P01"}, false},
		{"mysql deadlock", &mysql.MySQLError{Number: 1213}, true},
		{"mysql lock wait", &mysql.MySQLError{Number: 1205}, true},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062}, false},
		{"bad conn", fmt.Errorf("exec: %w", driver.ErrBadConn), true},
		{"mysql invalid conn", mysql.ErrInvalidConn, true},
		{"connection refused op", &net.OpError{Op: "dial", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}, true},
		{"temporary dns", &net.DNSError{IsTemporary: true}, true},
		{"permanent dns", &net.DNSError{IsNotFound: true}, false},
		{"message pattern", errors.New("read: i/o timeout"), true},
		{"plain", errors.New("permission denied for table resource"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.IsTransient(tt.err))
		})
	}
}
