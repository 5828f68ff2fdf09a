package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dvloznov/trade-ledger/internal/config"
	"github.com/dvloznov/trade-ledger/internal/domain"
	"github.com/dvloznov/trade-ledger/internal/infra"
	"github.com/dvloznov/trade-ledger/internal/ledger"
	"github.com/dvloznov/trade-ledger/internal/logger"
	"github.com/dvloznov/trade-ledger/internal/pipeline"
)

// parse-slip runs a local slip through Gemini and prints the records it would
// import, with the totals they add up to. Nothing is written to the store.
func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if l, err := logger.NewWithLevel(cfg.LogLevel); err == nil {
		log = l
	}

	owner := flag.String("owner", cfg.DefaultOwnerID, "Owner ID whose contacts validate the slip")
	file := flag.String("file", "", "Path to a local slip image or PDF (required)")
	model := flag.String("model", cfg.Gemini.Model, "Gemini model")
	flag.Parse()

	if *file == "" {
		log.Fatal().Msg("Usage: parse-slip -file PATH [-owner ID] [-model NAME]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	if err := run(ctx, cfg, *owner, *file, *model); err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("Parse failed")
	}
}

func run(ctx context.Context, cfg config.Config, ownerID, path, model string) error {
	slip, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read slip at %q: %w", path, err)
	}

	store, closeStore, err := infra.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	parser := pipeline.NewGeminiAIParser(model, cfg.ProjectID, cfg.Gemini.Location)
	state, err := pipeline.PreviewSlip(ctx, ownerID, slip, store, parser)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(domain.RecordsOf(state.Transactions)); err != nil {
		return fmt.Errorf("encode records: %w", err)
	}

	summary, err := ledger.Aggregate(state.Transactions)
	if err != nil {
		return err
	}
	symbol := cfg.Ledger.CurrencySymbol
	fmt.Fprintf(os.Stderr, "%d trades, %d payments, payable %s, receivable %s, profit %s\n",
		summary.TradeCount, summary.PaymentCount,
		domain.FormatMoney(summary.TotalPayable, symbol),
		domain.FormatMoney(summary.TotalReceivable, symbol),
		domain.FormatMoney(summary.GrossProfit, symbol))
	return nil
}
