package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/dvloznov/trade-ledger/internal/config"
	"github.com/dvloznov/trade-ledger/internal/infra"
	"github.com/dvloznov/trade-ledger/internal/logger"
	"github.com/dvloznov/trade-ledger/internal/metrics"
	"github.com/dvloznov/trade-ledger/internal/notionsync"
)

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if l, err := logger.NewWithLevel(cfg.LogLevel); err == nil {
		log = l
	}

	owner := flag.String("owner", cfg.DefaultOwnerID, "Owner ID whose party balances are synced")
	notionToken := flag.String("notion-token", cfg.Notion.Token, "Notion API token (or set NOTION_TOKEN)")
	notionDBID := flag.String("notion-db-id", cfg.Notion.DatabaseID, "Notion database ID (or set NOTION_DB_ID)")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	flag.Parse()

	if *notionToken == "" {
		log.Fatal().Msg("Error: --notion-token is required")
	}
	if *notionDBID == "" {
		log.Fatal().Msg("Error: --notion-db-id is required")
	}

	metrics.Init()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, logger.ForOwner(log, *owner))

	log.Info().
		Str("owner_id", *owner).
		Str("store", cfg.Store).
		Bool("dry_run", *dryRun).
		Msg("Starting Notion sync")

	store, closeStore, err := infra.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer closeStore()

	notionClient := notionsync.NewNotionClient(*notionToken)

	result, err := notionsync.SyncPartyBalances(ctx, store, notionClient, *notionDBID, *owner, time.Now(), *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	fmt.Printf("Sync completed: %d created, %d updated, %d archived, %d failed.\n",
		result.Created, result.Updated, result.Archived, result.Failed)
}
