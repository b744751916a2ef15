package db

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/vvka-141/dynis/pkg/dynis"
)

// Driver names a supported database backend.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
)

// ParseDriver validates a driver name. Empty means "detect from the URL".
func ParseDriver(name string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return "", nil
	case "postgres", "postgresql", "pgx":
		return DriverPostgres, nil
	case "mysql", "mariadb":
		return DriverMySQL, nil
	default:
		return "", fmt.Errorf("driver %q: %w", name, dynis.ErrUnsupportedDriver)
	}
}

// DetectDriver infers the driver from a connection URL or DSN.
func DetectDriver(databaseURL string) (Driver, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return DriverPostgres, nil
	case strings.HasPrefix(databaseURL, "mysql://"), strings.HasPrefix(databaseURL, "mariadb://"):
		return DriverMySQL, nil
	case strings.Contains(databaseURL, "@tcp("), strings.Contains(databaseURL, "@unix("):
		return DriverMySQL, nil
	case strings.Contains(databaseURL, "host=") || strings.Contains(databaseURL, "dbname="):
		return DriverPostgres, nil
	default:
		return "", fmt.Errorf("cannot detect driver from database url: %w", dynis.ErrInvalidConfig)
	}
}

// MySQLDSN converts a mysql:// URL to a go-sql-driver DSN. Native DSNs are
// parsed and re-formatted. parseTime is always enabled.
func MySQLDSN(databaseURL string) (string, error) {
	if !strings.HasPrefix(databaseURL, "mysql://") && !strings.HasPrefix(databaseURL, "mariadb://") {
		cfg, err := mysql.ParseDSN(databaseURL)
		if err != nil {
			return "", fmt.Errorf("invalid mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		return cfg.FormatDSN(), nil
	}

	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid mysql url: %w", err)
	}

	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	if u.Port() == "" {
		cfg.Addr = u.Hostname() + ":3306"
	}
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	cfg.ParseTime = true
	if params := u.Query(); len(params) > 0 {
		cfg.Params = make(map[string]string, len(params))
		for k := range params {
			cfg.Params[k] = params.Get(k)
		}
	}
	return cfg.FormatDSN(), nil
}
