package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/nkapur/unipipe/internal/classify"
	"github.com/nkapur/unipipe/internal/config"
	"github.com/nkapur/unipipe/internal/db"
	"github.com/nkapur/unipipe/internal/ingestion"
	"github.com/nkapur/unipipe/internal/ledger"
	"github.com/nkapur/unipipe/internal/mapping"
	"github.com/nkapur/unipipe/internal/middleware"
	"github.com/nkapur/unipipe/internal/registry"
	"github.com/nkapur/unipipe/internal/repository"
	"github.com/nkapur/unipipe/internal/structure"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	// Storage mode is decided once at startup: a reachable database selects
	// the primary backend, anything else runs on local append-only files.
	var (
		conn         *db.Connection
		ledgerRepo   repository.LedgerRepository
		registryRepo repository.CategoryRegistryRepository
		runLogRepo   repository.IngestionRunRepository
	)
	if cfg.Database.Discoverable() {
		conn, err = db.NewConnection(ctx, cfg.Database)
		if err != nil {
			logger.Warn("database unavailable, running in local durable mode", zap.Error(err))
		}
	} else {
		logger.Warn("database configuration incomplete, running in local durable mode")
	}
	if conn != nil {
		defer conn.Close()
		if err := db.RunMigrations(cfg.Database, cfg.Storage.MigrationsPath); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
		ledgerRepo = repository.NewLedgerRepository(conn.Pool)
		registryRepo = repository.NewCategoryRegistryRepository(conn.Pool)
		runLogRepo = repository.NewIngestionRunRepository(conn.Pool)
	} else {
		registryRepo = registry.NewFileRepository(cfg.Storage.DataDir)
	}

	var capability classify.Capability = classify.Unavailable{}
	var judge structure.HeaderJudge
	if cfg.Classifier.APIKey != "" {
		anthropicSvc := classify.NewAnthropicService(cfg.Classifier.APIKey, cfg.Classifier.Model)
		capability = anthropicSvc
		judge = anthropicSvc
	} else {
		logger.Warn("no classifier api key configured, events will quarantine as UNKNOWN")
	}

	classifier := classify.NewClassifier(capability, classify.NewMemoryCache(), logger,
		classify.WithTimeout(cfg.Classifier.Timeout),
		classify.WithTurboBatchSize(cfg.Classifier.TurboBatchSize))

	detector := structure.NewDetector()
	detector.MaxScan = cfg.Pipeline.MaxHeaderScan

	store := ledger.NewStore(ledgerRepo, ledger.NewFileWriter(cfg.Storage.DataDir), cfg.Pipeline.ConfidenceThreshold, logger)
	registrySvc := registry.NewService(registryRepo, logger)

	service := ingestion.NewService(
		detector,
		mapping.NewMapper(),
		classifier,
		registrySvc,
		store,
		runLogRepo,
		judge,
		cfg.Pipeline.ConfidenceThreshold,
		logger,
	)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	logRequests := middleware.LoggingMiddleware(logger)

	mux := http.NewServeMux()
	mux.Handle("/ingest", ingestion.NewHTTPHandler(service))
	mux.Handle("/review", ingestion.NewReviewHandler(service))

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      corsHandler.Handler(logRequests(mux)),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening",
			zap.String("addr", cfg.Server.Addr),
			zap.String("storage_mode", string(store.Mode())))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	logger.Info("server stopped")
}
