package db

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vvka-141/dynis/internal/retry"
	"github.com/vvka-141/dynis/pkg/dynis"
)

// MySQLConnector opens gorm handles on MySQL or MariaDB with retry.
type MySQLConnector struct {
	databaseURL   string
	retryExecutor *retry.Executor
}

// NewMySQLConnector creates a connector for a mysql:// URL or native DSN.
func NewMySQLConnector(databaseURL string, logger dynis.Logger) *MySQLConnector {
	return &MySQLConnector{
		databaseURL:   databaseURL,
		retryExecutor: newRetryExecutor(logger),
	}
}

// Connect opens and pings the database. Close it through DB().Close().
func (c *MySQLConnector) Connect(ctx context.Context) (*gorm.DB, error) {
	dsn, err := MySQLDSN(c.databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, dynis.ErrInvalidConfig)
	}

	var gdb *gorm.DB
	err = c.retryExecutor.Execute(ctx, func(ctx context.Context) error {
		opened, err := gorm.Open(gormmysql.Open(dsn), &gorm.Config{
			Logger:                 logger.Default.LogMode(logger.Silent),
			SkipDefaultTransaction: true,
		})
		if err != nil {
			return err
		}
		sqlDB, err := opened.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			_ = sqlDB.Close()
			return err
		}
		sqlDB.SetMaxOpenConns(DefaultMaxConns)
		sqlDB.SetConnMaxIdleTime(DefaultMaxConnIdleTime)
		gdb = opened
		return nil
	})
	if err != nil {
		host, port, database := mysqlTarget(dsn)
		return nil, wrapConnectionError(err, host, port, database)
	}
	return gdb, nil
}

func mysqlTarget(dsn string) (string, int, string) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", 0, ""
	}
	host, portStr, err := net.SplitHostPort(cfg.Addr)
	if err != nil {
		return cfg.Addr, 0, cfg.DBName
	}
	port, _ := strconv.Atoi(portStr)
	return host, port, cfg.DBName
}
