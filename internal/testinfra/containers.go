package testinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	PostgresImage    = "postgres:17-alpine"
	PostgresUser     = "postgres"
	PostgresPassword = "postgres"
	PostgresDB       = "postgres"

	RedisImage = "redis:7-alpine"

	MySQLImage    = "mariadb:11"
	MySQLUser     = "dynis"
	MySQLPassword = "dynis"
	MySQLDB       = "omeka"
)

type PostgresContainer struct {
	*postgres.PostgresContainer
	ConnString string
}

func StartPostgres(ctx context.Context) (*PostgresContainer, error) {
	ctr, err := postgres.Run(ctx,
		PostgresImage,
		postgres.WithUsername(PostgresUser),
		postgres.WithPassword(PostgresPassword),
		postgres.WithDatabase(PostgresDB),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("start postgres: %w", err)
	}

	connStr, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		ctr.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get connection string: %w", err)
	}

	return &PostgresContainer{PostgresContainer: ctr, ConnString: connStr}, nil
}

// GenericContainer is a started container and the address clients use.
type GenericContainer struct {
	testcontainers.Container
	Address string
}

func StartRedis(ctx context.Context) (*GenericContainer, error) {
	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        RedisImage,
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("start redis: %w", err)
	}

	addr, err := ctr.PortEndpoint(ctx, "6379/tcp", "")
	if err != nil {
		ctr.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get redis endpoint: %w", err)
	}

	return &GenericContainer{Container: ctr, Address: addr}, nil
}

// StartMySQL starts MariaDB and returns a go-sql-driver DSN in Address.
func StartMySQL(ctx context.Context) (*GenericContainer, error) {
	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        MySQLImage,
			ExposedPorts: []string{"3306/tcp"},
			Env: map[string]string{
				"MARIADB_ROOT_PASSWORD": MySQLPassword,
				"MARIADB_USER":          MySQLUser,
				"MARIADB_PASSWORD":      MySQLPassword,
				"MARIADB_DATABASE":      MySQLDB,
			},
			WaitingFor: wait.ForListeningPort("3306/tcp").
				WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("start mysql: %w", err)
	}

	addr, err := ctr.PortEndpoint(ctx, "3306/tcp", "")
	if err != nil {
		ctr.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get mysql endpoint: %w", err)
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true", MySQLUser, MySQLPassword, addr, MySQLDB)
	return &GenericContainer{Container: ctr, Address: dsn}, nil
}
