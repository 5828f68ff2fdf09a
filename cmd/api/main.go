package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/trade-ledger/internal/api/handlers"
	"github.com/dvloznov/trade-ledger/internal/api/middleware"
	"github.com/dvloznov/trade-ledger/internal/config"
	"github.com/dvloznov/trade-ledger/internal/gcs"
	"github.com/dvloznov/trade-ledger/internal/gcsuploader"
	"github.com/dvloznov/trade-ledger/internal/infra"
	"github.com/dvloznov/trade-ledger/internal/jobs"
	"github.com/dvloznov/trade-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/trade-ledger/internal/logger"
	"github.com/dvloznov/trade-ledger/internal/metrics"
	"github.com/dvloznov/trade-ledger/internal/pipeline"
	"github.com/dvloznov/trade-ledger/internal/statement"
)

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	port := flag.String("port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.Bucket, "bucket", cfg.Bucket, "GCS bucket for slips and statement exports (or set GCS_BUCKET env)")
	flag.Parse()

	if lvl, err := logger.ParseLevel(cfg.LogLevel); err != nil {
		log.Warn().Err(err).Str("log_level", cfg.LogLevel).Msg("Unknown log level, using info")
	} else {
		log = log.Level(lvl)
	}
	metrics.Init()

	ctx := context.Background()

	store, closeStore, err := infra.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer closeStore()
	log.Info().Str("store", cfg.Store).Msg("Store opened")

	var storage gcs.StorageService
	if cfg.Bucket == "" {
		log.Warn().Msg("No GCS bucket configured - slip uploads and statement uploads will be disabled")
	} else {
		svc, err := gcsuploader.NewGCSStorageService(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}
		defer svc.Close()
		storage = svc
	}

	// Job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.Queue.Buffer, jobStore,
		inmemory.WithWorkers(cfg.Queue.Workers),
		inmemory.WithMaxRetries(cfg.Queue.MaxRetries),
	)

	workerCtx, cancelWorker := context.WithCancel(logger.WithContext(ctx, log))
	defer cancelWorker()

	var jobHandler jobs.JobHandler
	if storage != nil {
		parser := pipeline.NewGeminiAIParser(cfg.Gemini.Model, cfg.ProjectID, cfg.Gemini.Location)
		jobHandler = jobs.NewImportSlipHandler(store, storage, parser)
	} else {
		jobHandler = func(ctx context.Context, job jobs.Job) error {
			return jobs.Permanent(errors.New("slip storage is not configured"))
		}
	}

	if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job workers")
	}
	log.Info().Int("workers", cfg.Queue.Workers).Msg("Job workers started")

	exportOpts := statement.ExportOptions{
		CurrencySymbol: cfg.Ledger.CurrencySymbol,
		CurrencyCode:   cfg.Ledger.CurrencyCode,
	}

	mux := handlers.NewMux(handlers.Handlers{
		Transactions: handlers.NewTransactionsHandler(store),
		Contacts:     handlers.NewContactsHandler(store),
		Reports:      handlers.NewReportsHandler(store, cfg.Ledger.ProfitMonths),
		Statements:   handlers.NewStatementsHandler(store, storage, cfg.Bucket, cfg.Ledger.StatementPageSize, exportOpts),
		Imports:      handlers.NewImportsHandler(store, jobQueue, storage, cfg.Bucket),
		Jobs:         handlers.NewJobsHandler(jobStore),
	})
	mux.Handle("/metrics", metrics.Handler())

	handler := middleware.Chain(mux,
		middleware.Recovery(log),
		middleware.Logger(log),
		middleware.Metrics,
		middleware.RequestID,
		middleware.CORS,
		middleware.Owner(log, cfg.DefaultOwnerID),
	)

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Let in-flight imports finish before the store closes.
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}
