package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/database"
	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/domain"
	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/feedback"
	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/repository"
	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/storage"
	"github.com/MitraaBalasubramanian/rural-health-ai-aid/pkg/external"
)

// stores are the repositories selected by the storage driver. Community data
// is always held in memory.
type stores struct {
	Diagnoses domain.DiagnosisRepository
	Patients  domain.PatientRepository
	Reports   domain.ReportRepository
	Community *repository.MemoryCommunityStore
	Feedback  feedback.Store

	closers []func() error
}

func (s *stores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// runMigrationCommand applies a schema migration command to the Postgres
// database and logs the resulting version.
func runMigrationCommand(ctx context.Context, cfg *domain.Config, databaseURL, command string, logger *logrus.Logger) error {
	if cfg.Storage.Driver != domain.StoragePostgres {
		return fmt.Errorf("migrations apply to the %s storage driver, not %s", domain.StoragePostgres, cfg.Storage.Driver)
	}
	version, dirty, err := database.RunMigration(ctx, databaseURL, cfg.Database.MigrationsPath, command, logger)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"command": command,
		"version": version,
		"dirty":   dirty,
	}).Info("Migration command finished")
	return nil
}

func openStores(ctx context.Context, cfg *domain.Config, databaseURL string, logger *logrus.Logger) (*stores, error) {
	s := &stores{Community: repository.NewMemoryCommunityStore()}

	switch cfg.Storage.Driver {
	case domain.StorageMemory:
		s.Diagnoses = repository.NewMemoryDiagnosisStore()
		s.Patients = repository.NewMemoryPatientStore()
		s.Reports = repository.NewMemoryReportStore()

		reviews, err := feedback.NewSQLiteStore(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to open feedback store: %w", err)
		}
		s.Feedback = reviews
		s.closers = append(s.closers, reviews.Close)

	case domain.StorageSQLite:
		db, err := repository.OpenSQLite(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, db.Close)
		s.Diagnoses = repository.NewSQLiteDiagnosisStore(db, logger)
		s.Patients = repository.NewSQLitePatientStore(db, logger)
		s.Reports = repository.NewSQLiteReportStore(db, logger)

		reviews, err := feedback.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to open feedback store: %w", err)
		}
		s.Feedback = reviews
		s.closers = append(s.closers, reviews.Close)

	case domain.StoragePostgres:
		if err := database.Migrate(ctx, databaseURL, cfg.Database.MigrationsPath, logger); err != nil {
			return nil, err
		}
		db, err := database.NewConnection(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() error { db.Close(); return nil })
		s.Diagnoses = repository.NewPostgresDiagnosisStore(db.Pool, logger)
		s.Patients = repository.NewPostgresPatientStore(db.Pool, logger)
		s.Reports = repository.NewPostgresReportStore(db.Pool, logger)

		reviews, err := feedback.NewPostgresStoreFromURL(databaseURL)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to open feedback store: %w", err)
		}
		s.Feedback = reviews
		s.closers = append(s.closers, reviews.Close)

	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Storage.Driver)
	}

	if cfg.Storage.SeedData {
		if err := seed(ctx, s); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to load seed data: %w", err)
		}
		logger.Info("Seed data loaded")
	}
	return s, nil
}

func seed(ctx context.Context, s *stores) error {
	if err := repository.SeedPatientStore(ctx, s.Patients); err != nil {
		return err
	}
	if err := repository.SeedReportStore(ctx, s.Reports); err != nil {
		return err
	}
	return repository.SeedCommunity(ctx, s.Community)
}

// openImageStore returns the configured image store and, for the local
// store, the directory to serve at the upload public path.
func openImageStore(ctx context.Context, cfg domain.UploadConfig, logger *logrus.Logger) (domain.ImageStore, string, error) {
	switch cfg.Store {
	case domain.ImageStoreS3:
		store, err := storage.NewS3Store(ctx, cfg, logger)
		if err != nil {
			return nil, "", err
		}
		return store, "", nil
	case domain.ImageStoreLocal, "":
		store, err := storage.NewLocalStore(cfg.Dir, cfg.PublicPath, logger)
		if err != nil {
			return nil, "", err
		}
		return store, store.Dir(), nil
	default:
		return nil, "", fmt.Errorf("unknown image store: %s", cfg.Store)
	}
}

// analyzerFor puts the analysis cache in front of the inference client when
// caching is enabled.
func analyzerFor(client *external.InferenceClient, cache *external.AnalysisCache) domain.ImageAnalyzer {
	if cache == nil {
		return client
	}
	return external.NewCachedAnalyzer(client, cache)
}
