// Package testhelpers starts disposable PostgreSQL instances for integration tests
package testhelpers

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ajitpratap0/hybridopt/internal/db"
)

// PostgresContainer holds the testcontainer instance and connection details
type PostgresContainer struct {
	Container     *postgres.PostgresContainer
	ConnectionStr string
	DB            *db.DB
	t             *testing.T
}

// SetupTestDatabase creates a PostgreSQL testcontainer and a pool on it.
// The container is terminated when the test ends.
func SetupTestDatabase(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("hybridopt_test"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("testpassword"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("Failed to get connection string: %v", err)
	}

	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("Failed to parse connection string: %v", err)
	}
	config.MaxConns = 5
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("Failed to create connection pool: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("Failed to ping database: %v", err)
	}

	database := &db.DB{}
	database.SetPool(pool)

	tc := &PostgresContainer{
		Container:     container,
		ConnectionStr: connStr,
		DB:            database,
		t:             t,
	}
	t.Cleanup(tc.Cleanup)
	return tc
}

// ApplyMigrations runs the embedded migrations through the migrator
func (tc *PostgresContainer) ApplyMigrations() error {
	tc.t.Helper()

	m, err := db.OpenMigrator(tc.ConnectionStr)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	_, err = m.Migrate(context.Background())
	return err
}

// Cleanup closes the pool and terminates the container
func (tc *PostgresContainer) Cleanup() {
	if tc.DB != nil {
		tc.DB.Close()
	}
	if tc.Container != nil {
		if err := tc.Container.Terminate(context.Background()); err != nil {
			tc.t.Logf("Failed to terminate container: %v", err)
		}
	}
}
