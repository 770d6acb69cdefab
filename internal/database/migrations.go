package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/sirupsen/logrus"
)

// MigrationRunner applies the SQL files under migrations/ to Postgres.
type MigrationRunner struct {
	migrate *migrate.Migrate
	log     *logrus.Logger
}

// NewMigrationRunner creates a new migration runner
func NewMigrationRunner(databaseURL, migrationsPath string, logger *logrus.Logger) (*MigrationRunner, error) {
	m, err := migrate.New(
		fmt.Sprintf("file://%s", migrationsPath),
		databaseURL,
	)
	if err != nil {
		return nil, fmt.Errorf("creating migration instance: %w", err)
	}

	return &MigrationRunner{
		migrate: m,
		log:     logger,
	}, nil
}

// Migration commands accepted by RunMigration.
const (
	MigrateUp      = "up"
	MigrateDown    = "down"
	MigrateVersion = "version"
)

// Up applies every pending migration.
func (mr *MigrationRunner) Up(ctx context.Context) error {
	return mr.step("up", mr.migrate.Up)
}

// Down rolls back the most recent migration.
func (mr *MigrationRunner) Down(ctx context.Context) error {
	version, _, err := mr.Version()
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if version == 0 {
		mr.log.Info("No migrations to roll back")
		return nil
	}
	return mr.step("down", func() error { return mr.migrate.Steps(-1) })
}

// Version reports the applied schema version. A database without any
// applied migration is at version 0.
func (mr *MigrationRunner) Version() (uint, bool, error) {
	version, dirty, err := mr.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (mr *MigrationRunner) step(direction string, apply func() error) error {
	entry := mr.log.WithField("direction", direction)
	if err := apply(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			entry.Info("Schema already up to date")
			return nil
		}
		return fmt.Errorf("migrating %s: %w", direction, err)
	}

	version, dirty, err := mr.Version()
	if err != nil {
		entry.WithError(err).Warn("Could not read schema version")
		return nil
	}
	entry.WithFields(logrus.Fields{
		"version": version,
		"dirty":   dirty,
	}).Info("Schema migrated")
	return nil
}

// Migrate applies all pending migrations from migrationsPath and closes the runner.
func Migrate(ctx context.Context, databaseURL, migrationsPath string, logger *logrus.Logger) error {
	_, _, err := RunMigration(ctx, databaseURL, migrationsPath, MigrateUp, logger)
	return err
}

// RunMigration runs one of MigrateUp, MigrateDown or MigrateVersion and
// returns the schema version afterwards.
func RunMigration(ctx context.Context, databaseURL, migrationsPath, command string, logger *logrus.Logger) (uint, bool, error) {
	switch command {
	case MigrateUp, MigrateDown, MigrateVersion:
	default:
		return 0, false, fmt.Errorf("unknown migration command %q", command)
	}

	runner, err := NewMigrationRunner(databaseURL, migrationsPath, logger)
	if err != nil {
		return 0, false, err
	}
	defer func() {
		if err := runner.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close migration runner")
		}
	}()

	switch command {
	case MigrateUp:
		err = runner.Up(ctx)
	case MigrateDown:
		err = runner.Down(ctx)
	}
	if err != nil {
		return 0, false, err
	}
	return runner.Version()
}

// Close closes the migration runner
func (mr *MigrationRunner) Close() error {
	sourceErr, dbErr := mr.migrate.Close()
	if sourceErr != nil {
		return fmt.Errorf("closing migration source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("closing migration database: %w", dbErr)
	}
	return nil
}
