package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/trade-ledger/internal/config"
	"github.com/dvloznov/trade-ledger/internal/gcs"
	"github.com/dvloznov/trade-ledger/internal/gcsuploader"
	"github.com/dvloznov/trade-ledger/internal/infra"
	"github.com/dvloznov/trade-ledger/internal/jobs"
	"github.com/dvloznov/trade-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/trade-ledger/internal/logger"
	"github.com/dvloznov/trade-ledger/internal/pipeline"
)

// pollInterval is how often the worker checks whether the batch is done.
const pollInterval = 500 * time.Millisecond

// The worker imports a batch of slips through the job queue and exits when
// every job has completed or failed.
func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if l, err := logger.NewWithLevel(cfg.LogLevel); err == nil {
		log = l
	}

	owner := flag.String("owner", cfg.DefaultOwnerID, "Owner ID the slips belong to")
	urisFile := flag.String("uris-file", "", "File with one gs:// URI per line (in addition to arguments)")
	flag.Parse()

	uris, err := collectURIs(flag.Args(), *urisFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read URIs")
	}
	if len(uris) == 0 {
		log.Fatal().Msg("Usage: worker [-owner ID] [-uris-file PATH] gs://bucket/slip ...")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	store, closeStore, err := infra.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer closeStore()

	storage, err := gcsuploader.NewGCSStorageService(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	defer storage.Close()

	parser := pipeline.NewGeminiAIParser(cfg.Gemini.Model, cfg.ProjectID, cfg.Gemini.Location)

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(len(uris), jobStore,
		inmemory.WithWorkers(cfg.Queue.Workers),
		inmemory.WithMaxRetries(cfg.Queue.MaxRetries),
	)

	if err := jobQueue.Start(ctx, jobs.NewImportSlipHandler(store, storage, parser)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	log.Info().Int("slips", len(uris)).Int("workers", cfg.Queue.Workers).Msg("Worker started")

	ids := make([]string, 0, len(uris))
	for _, uri := range uris {
		job := &jobs.ImportSlipJob{OwnerID: *owner, GCSURI: uri}
		if err := jobQueue.PublishImportSlip(ctx, job); err != nil {
			log.Fatal().Err(err).Str("gcs_uri", uri).Msg("Failed to enqueue slip")
		}
		ids = append(ids, job.JobID)
	}

	results, err := waitForJobs(ctx, jobStore, ids)
	if err != nil {
		log.Error().Err(err).Msg("Stopped before all slips were processed")
	}

	log.Info().Msg("Shutting down worker...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	failed := 0
	for _, job := range results {
		switch job.Status {
		case jobs.JobStatusCompleted:
			fmt.Printf("OK      %s  %d transactions  (import %s)\n", job.GCSURI, job.TransactionCount, job.ImportID)
		default:
			failed++
			fmt.Printf("%-7s %s  %s\n", strings.ToUpper(string(job.Status)), job.GCSURI, job.Error)
		}
	}

	log.Info().Int("total", len(uris)).Int("failed", failed).Msg("Worker exited")
	if failed > 0 || err != nil {
		os.Exit(1)
	}
}

// collectURIs merges positional arguments with the lines of file. Blank lines
// and lines starting with # are skipped.
func collectURIs(args []string, file string) ([]string, error) {
	uris := append([]string(nil), args...)
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("collectURIs: %w", err)
		}
		defer f.Close()

		sc := bufio.NewScanner(f)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			uris = append(uris, line)
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("collectURIs: %s: %w", file, err)
		}
	}

	for _, uri := range uris {
		if _, _, err := gcs.ParseURI(uri); err != nil {
			return nil, fmt.Errorf("collectURIs: %w", err)
		}
	}
	return uris, nil
}

// waitForJobs polls the store until every job is completed or failed. On
// cancellation it returns the jobs as last seen together with ctx's error.
func waitForJobs(ctx context.Context, store jobs.JobStore, ids []string) ([]*jobs.ImportSlipJob, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		results := make([]*jobs.ImportSlipJob, 0, len(ids))
		done := true
		for _, id := range ids {
			job, err := store.GetJob(ctx, id)
			if err != nil {
				return results, fmt.Errorf("waitForJobs: %w", err)
			}
			results = append(results, job)
			if job.Status != jobs.JobStatusCompleted && job.Status != jobs.JobStatusFailed {
				done = false
			}
		}
		if done {
			return results, nil
		}

		select {
		case <-ctx.Done():
			return results, ctx.Err()
		case <-ticker.C:
		}
	}
}
