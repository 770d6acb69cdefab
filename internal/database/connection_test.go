package database

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/domain"
)

func TestDSN(t *testing.T) {
	dsn := DSN(domain.DatabaseConfig{
		Host:     "db",
		Port:     5433,
		Database: "rural_health",
		Username: "asha",
		Password: "secret",
		SSLMode:  "disable",
	})
	assert.Equal(t, "host=db port=5433 dbname=rural_health user=asha password=secret sslmode=disable", dsn)
}

func TestDatabaseConnectionAndMigrations(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	}()

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	db, err := NewConnection(ctx, domain.DatabaseConfig{
		Host:            host,
		Port:            port.Int(),
		Database:        "testdb",
		Username:        "testuser",
		Password:        "testpass",
		SSLMode:         "disable",
		MaxConns:        5,
		MinConns:        1,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdle:     30 * time.Minute,
	}, logger)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Health(ctx))
	assert.NotZero(t, db.Stats().TotalConns())

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, Migrate(ctx, connStr, migrationsDir(t), logger))
	// a second run has nothing to apply
	require.NoError(t, Migrate(ctx, connStr, migrationsDir(t), logger))

	var count int
	require.NoError(t, db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM information_schema.tables WHERE table_name IN ('diagnoses','patients','reports','diagnosis_feedback')`,
	).Scan(&count))
	assert.Equal(t, 4, count)

	version, dirty, err := RunMigration(ctx, connStr, migrationsDir(t), MigrateVersion, logger)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	version, _, err = RunMigration(ctx, connStr, migrationsDir(t), MigrateDown, logger)
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)

	var exists bool
	require.NoError(t, db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'diagnoses')`,
	).Scan(&exists))
	assert.False(t, exists)

	// nothing left to roll back
	version, _, err = RunMigration(ctx, connStr, migrationsDir(t), MigrateDown, logger)
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)

	version, _, err = RunMigration(ctx, connStr, migrationsDir(t), MigrateUp, logger)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
}

func TestRunMigration_UnknownCommand(t *testing.T) {
	logger := logrus.New()
	_, _, err := RunMigration(context.Background(), "postgres://unused", "migrations", "sideways", logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown migration command")
}

func migrationsDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations")
}
