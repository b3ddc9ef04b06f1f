// Command server runs the brain MRI study analysis HTTP service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/brain-mri-analysis-server/internal/api"
	"github.com/brain-mri-analysis-server/internal/config"
	"github.com/brain-mri-analysis-server/internal/database"
	"github.com/brain-mri-analysis-server/internal/domain"
	"github.com/brain-mri-analysis-server/internal/inference"
	"github.com/brain-mri-analysis-server/internal/ingest"
	"github.com/brain-mri-analysis-server/internal/repository"
	"github.com/brain-mri-analysis-server/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configManager, err := config.NewManager()
	if err != nil {
		return err
	}
	if err := configManager.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg := configManager.GetConfig()

	logger := newLogger(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := newRepository(ctx, configManager, logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	store, err := ingest.NewLocalStore(cfg.Upload.Dir, logger)
	if err != nil {
		return err
	}

	classifier, err := service.NewSequenceClassifier(logger)
	if err != nil {
		return err
	}
	assembler := service.NewStudyAssembler(logger, classifier)
	gate := service.NewValidationGate(logger)

	model := inference.NewMockModel(logger)
	orchestrator := service.NewOrchestrator(logger, repo, gate,
		service.NewClinicalRiskRuleEngine(logger),
		model, model, inference.NewResilientExplainer(model, logger), store)

	server := api.NewServer(configManager, logger, orchestrator, assembler, gate, store)

	logger.WithFields(logrus.Fields{
		"storage_driver": cfg.Storage.Driver,
		"upload_dir":     cfg.Upload.Dir,
	}).Info("Starting brain MRI analysis server")

	return server.Start(ctx)
}

func newLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if strings.EqualFold(cfg.Format, "text") {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}

// newRepository selects the study store backend from configuration. Postgres
// runs schema migrations before serving.
func newRepository(ctx context.Context, configManager *config.Manager, logger *logrus.Logger) (domain.StudyRepository, error) {
	storage := configManager.GetStorageConfig()

	switch storage.Driver {
	case "memory":
		logger.Info("Using in-memory study store")
		return repository.NewMemoryRepository(logger), nil

	case "sqlite":
		return repository.NewSQLiteRepository(storage.SQLitePath, logger)

	case "postgres":
		pg := storage.Postgres
		databaseURL := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			pg.Username, pg.Password, pg.Host, pg.Port, pg.Database, pg.SSLMode)

		if err := database.RunMigrations(databaseURL, pg.MigrationsPath, logger); err != nil {
			return nil, err
		}

		db, err := database.NewConnection(ctx, pg, logger)
		if err != nil {
			return nil, err
		}
		return repository.NewPostgresRepository(db, logger), nil

	default:
		return nil, fmt.Errorf("unknown storage driver: %s", storage.Driver)
	}
}
