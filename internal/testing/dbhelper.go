package testing

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vvka-141/dynis/internal/testinfra"
)

// Environment overrides for CI runs against existing services.
const (
	EnvTestDatabaseURL = "DYNIS_TEST_DATABASE_URL"
	EnvTestRedisAddr   = "DYNIS_TEST_REDIS_ADDRESS"
	EnvTestMySQLDSN    = "DYNIS_TEST_MYSQL_DSN"
)

type lazyService struct {
	once sync.Once
	addr string
	err  error
}

func (s *lazyService) get(start func(ctx context.Context) (string, error)) (string, error) {
	s.once.Do(func() {
		s.addr, s.err = start(context.Background())
	})
	return s.addr, s.err
}

var (
	postgresService lazyService
	redisService    lazyService
	mysqlService    lazyService
)

// SkipIfShort skips the test if running in short mode (-short flag).
func SkipIfShort(t *testing.T) {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// RequireDatabase returns a PostgreSQL connection string.
// Priority: DYNIS_TEST_DATABASE_URL > auto-started testcontainer > skip test.
func RequireDatabase(t *testing.T) string {
	t.Helper()
	SkipIfShort(t)

	if connString := os.Getenv(EnvTestDatabaseURL); connString != "" {
		return connString
	}
	connString, err := postgresService.get(func(ctx context.Context) (string, error) {
		ctr, err := testinfra.StartPostgres(ctx)
		if err != nil {
			return "", err
		}
		return ctr.ConnString, nil
	})
	if err != nil {
		t.Skipf("%s not set and Docker unavailable: %v", EnvTestDatabaseURL, err)
	}
	return connString
}

// RequireRedis returns a Redis address, starting a container if needed.
func RequireRedis(t *testing.T) string {
	t.Helper()
	SkipIfShort(t)

	if addr := os.Getenv(EnvTestRedisAddr); addr != "" {
		return addr
	}
	addr, err := redisService.get(func(ctx context.Context) (string, error) {
		ctr, err := testinfra.StartRedis(ctx)
		if err != nil {
			return "", err
		}
		return ctr.Address, nil
	})
	if err != nil {
		t.Skipf("%s not set and Docker unavailable: %v", EnvTestRedisAddr, err)
	}
	return addr
}

// RequireMySQL returns a MySQL DSN, starting a MariaDB container if needed.
func RequireMySQL(t *testing.T) string {
	t.Helper()
	SkipIfShort(t)

	if dsn := os.Getenv(EnvTestMySQLDSN); dsn != "" {
		return dsn
	}
	dsn, err := mysqlService.get(func(ctx context.Context) (string, error) {
		ctr, err := testinfra.StartMySQL(ctx)
		if err != nil {
			return "", err
		}
		return ctr.Address, nil
	})
	if err != nil {
		t.Skipf("%s not set and Docker unavailable: %v", EnvTestMySQLDSN, err)
	}
	return dsn
}

// CreateTestDB creates a fresh PostgreSQL database and returns a pool on
// it. The database is dropped when the test completes.
func CreateTestDB(t *testing.T, connString string) *pgxpool.Pool {
	t.Helper()

	ctx := context.Background()
	dbName := "dynis_" + strings.ToLower(sanitize(t.Name()))
	if len(dbName) > 63 {
		dbName = dbName[:63]
	}

	admin, err := pgxpool.New(ctx, connString)
	if err != nil {
		t.Fatalf("Failed to connect for test DB creation: %v", err)
	}
	defer admin.Close()

	ident := pgx.Identifier{dbName}.Sanitize()
	if _, err := admin.Exec(ctx, "DROP DATABASE IF EXISTS "+ident); err != nil {
		t.Fatalf("Failed to drop stale database %s: %v", dbName, err)
	}
	if _, err := admin.Exec(ctx, "CREATE DATABASE "+ident); err != nil {
		t.Fatalf("Failed to create test database %s: %v", dbName, err)
	}

	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		t.Fatalf("Failed to parse connection string: %v", err)
	}
	config.ConnConfig.Database = dbName

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		t.Fatalf("Failed to create connection pool: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		cleanupTestDB(t, connString, ident)
	})
	return pool
}

func cleanupTestDB(t *testing.T, connString, ident string) {
	t.Helper()

	ctx := context.Background()
	admin, err := pgxpool.New(ctx, connString)
	if err != nil {
		t.Logf("Warning: Failed to connect for cleanup: %v", err)
		return
	}
	defer admin.Close()

	if _, err := admin.Exec(ctx, fmt.Sprintf("DROP DATABASE IF EXISTS %s WITH (FORCE)", ident)); err != nil {
		t.Logf("Warning: Failed to drop database %s: %v", ident, err)
	}
}

func sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
