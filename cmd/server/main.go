package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/oncodiag-server/internal/api"
	"github.com/oncodiag-server/internal/config"
	"github.com/oncodiag-server/internal/domain"
	"github.com/oncodiag-server/internal/pipeline"
	"github.com/oncodiag-server/internal/report"
	"github.com/oncodiag-server/internal/service"
	"github.com/oncodiag-server/internal/store"
	"github.com/oncodiag-server/pkg/prediction"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := newLogger(cfg.Logging)

	// Prediction backend with circuit breakers
	client := prediction.NewClient(cfg.Prediction)
	backend := prediction.NewResilientBackend(client, logger)

	pl := pipeline.New(backend, cfg.Cache, logger)
	orchestrator := service.NewOrchestrator(pl, backend, nil, cfg.Prediction.CallTimeout, logger)

	records := store.NewPatientRecordStore()
	factory := report.NewFactory()

	var archive service.Archiver
	if cfg.Archive.Enabled {
		a, err := store.NewConsultationArchive(cfg.Archive.Path)
		if err != nil {
			log.Fatalf("Failed to open consultation archive: %v", err)
		}
		defer a.Close()
		archive = a
	}

	submissions := service.NewSubmissionService(orchestrator, factory, records, archive, logger)
	server := api.NewServer(cfg.Server, submissions, records, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	logger.WithFields(logrus.Fields{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Starting diagnostic orchestration server")

	if err := server.Start(ctx); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
	logger.Info("Server stopped")
}

func newLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	logger.SetOutput(os.Stdout)
	return logger
}
