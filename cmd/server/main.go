package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/api"
	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/config"
	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/domain"
	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/events"
	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/logging"
	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/service"
	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/upload"
	"github.com/MitraaBalasubramanian/rural-health-ai-aid/pkg/external"
)

func main() {
	migrateCmd := flag.String("migrate", "", "run a Postgres schema command (up, down, version) and exit")
	flag.Parse()

	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *migrateCmd != "" {
		if err := runMigrationCommand(ctx, cfg, configManager.GetDatabaseURL(), *migrateCmd, logger); err != nil {
			logger.WithError(err).Error("Migration failed")
			os.Exit(1)
		}
		return
	}

	if err := run(ctx, configManager, logger); err != nil {
		logger.WithError(err).Error("Server stopped with error")
		os.Exit(1)
	}
	logger.Info("Server stopped")
}

func run(ctx context.Context, configManager domain.ConfigManager, logger *logrus.Logger) error {
	cfg := configManager.GetConfig()
	logger.WithFields(logrus.Fields{
		"environment": cfg.Environment,
		"storage":     cfg.Storage.Driver,
		"image_store": cfg.Upload.Store,
		"model":       cfg.Inference.Model,
	}).Info("Starting rural health diagnostic aid")

	stores, err := openStores(ctx, cfg, configManager.GetDatabaseURL(), logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	images, uploadDir, err := openImageStore(ctx, cfg.Upload, logger)
	if err != nil {
		return err
	}

	inference := external.NewInferenceClient(cfg.Inference, logger)
	checks := map[string]func(context.Context) error{}

	var cache *external.AnalysisCache
	if cfg.Cache.Enabled {
		cache, err = external.NewAnalysisCache(cfg.Cache, logger)
		if err != nil {
			return fmt.Errorf("failed to create analysis cache: %w", err)
		}
		defer cache.Close()
		checks["cache"] = cache.Ping
	}

	publisher, err := events.NewPublisher(cfg.Events, map[string]string{
		service.EventDiagnosisReferred: cfg.Events.ReferralTopic,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create event publisher: %w", err)
	}
	defer publisher.Close()

	diagnoses := service.NewDiagnosisService(
		analyzerFor(inference, cache),
		upload.NewProcessor(cfg.Upload),
		images,
		stores.Diagnoses,
		stores.Reports,
		publisher,
		logger,
	)
	checks["storage"] = diagnoses.Ping

	server := api.NewServer(cfg, api.Services{
		Diagnoses: diagnoses,
		Patients:  service.NewPatientService(stores.Patients, stores.Diagnoses, logger),
		Community: service.NewCommunityService(stores.Community, logger),
		Reports:   service.NewReportService(stores.Reports, logger),
		Feedback:  service.NewFeedbackService(stores.Feedback, stores.Diagnoses, logger),
	}, api.Options{
		UploadDir:    uploadDir,
		Checks:       checks,
		BreakerState: inference.BreakerState,
	}, logger)

	return server.Start(ctx)
}
