package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/dvloznov/trade-ledger/internal/config"
	"github.com/dvloznov/trade-ledger/internal/domain"
	"github.com/dvloznov/trade-ledger/internal/gcs"
	"github.com/dvloznov/trade-ledger/internal/gcsuploader"
	"github.com/dvloznov/trade-ledger/internal/infra"
	"github.com/dvloznov/trade-ledger/internal/ledger"
	"github.com/dvloznov/trade-ledger/internal/logger"
	"github.com/dvloznov/trade-ledger/internal/pipeline"
	"github.com/dvloznov/trade-ledger/internal/statement"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "aggregate":
		runAggregate(log)
	case "summary":
		runSummary(log)
	case "parties":
		runParties(log)
	case "statement":
		runStatement(log)
	case "import":
		runImport(log)
	case "imports":
		runImports(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Trade Ledger CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  aggregate  Aggregate a JSON file of transaction records")
	fmt.Println("  summary    Print the ledger summary of an owner")
	fmt.Println("  parties    Print the net balance of every contact")
	fmt.Println("  statement  Export a statement as csv, xlsx, pdf or json")
	fmt.Println("  import     Parse a weighbridge slip and store its transactions")
	fmt.Println("  imports    List imported slips")
	fmt.Println("  help       Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// loadStore opens the configured store. The caller must run the returned func.
func loadStore(ctx context.Context, log zerolog.Logger) (config.Config, infra.Store, func() error) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	store, closeStore, err := infra.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	return cfg, store, closeStore
}

func runAggregate(log zerolog.Logger) {
	fs := flag.NewFlagSet("aggregate", flag.ExitOnError)
	file := fs.String("file", "", "Path to a JSON array of transaction records")
	asJSON := fs.Bool("json", false, "Print the summary as JSON")
	fs.Parse(os.Args[2:])

	if *file == "" {
		log.Fatal().Msg("Error: --file is required")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read records")
	}
	var recs []domain.Record
	if err := json.Unmarshal(data, &recs); err != nil {
		log.Fatal().Err(err).Msg("Failed to decode records")
	}

	summary, err := ledger.AggregateRecords(recs)
	if err != nil {
		log.Fatal().Err(err).Msg("Aggregation failed")
	}
	printSummary(summary, domain.DefaultCurrencySymbol, *asJSON)
}

func runSummary(log zerolog.Logger) {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	owner := fs.String("owner", "", "Owner ID (defaults to the configured owner)")
	asJSON := fs.Bool("json", false, "Print the summary as JSON")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	cfg, store, closeStore := loadStore(ctx, log)
	defer closeStore()

	txs, err := store.ListTransactions(ctx, ownerOr(*owner, cfg))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list transactions")
	}
	summary, err := ledger.Aggregate(txs)
	if err != nil {
		log.Fatal().Err(err).Msg("Aggregation failed")
	}
	printSummary(summary, cfg.Ledger.CurrencySymbol, *asJSON)
}

func printSummary(s *ledger.Summary, symbol string, asJSON bool) {
	if asJSON {
		printJSON(s)
		return
	}
	fmt.Println("\n=== Ledger Summary ===")
	fmt.Printf("Trades:           %d\n", s.TradeCount)
	fmt.Printf("Payments:         %d\n", s.PaymentCount)
	fmt.Printf("Total payable:    %s\n", domain.FormatMoney(s.TotalPayable, symbol))
	fmt.Printf("Total receivable: %s\n", domain.FormatMoney(s.TotalReceivable, symbol))
	fmt.Printf("Net balance:      %s\n", domain.FormatMoney(s.NetBalance, symbol))
	fmt.Printf("Gross profit:     %s\n", domain.FormatMoney(s.GrossProfit, symbol))
	fmt.Println()
}

func runParties(log zerolog.Logger) {
	fs := flag.NewFlagSet("parties", flag.ExitOnError)
	owner := fs.String("owner", "", "Owner ID (defaults to the configured owner)")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	cfg, store, closeStore := loadStore(ctx, log)
	defer closeStore()
	ownerID := ownerOr(*owner, cfg)

	contacts, err := store.ListContacts(ctx, ownerID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list contacts")
	}
	txs, err := store.ListTransactions(ctx, ownerID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list transactions")
	}
	balances, err := ledger.PartyBalances(contacts, txs)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to compute party balances")
	}

	fmt.Printf("\n=== Parties (%d) ===\n", len(balances))
	for _, b := range balances {
		fmt.Printf("%-30s %-9s %20s  %s\n", b.Name, b.Type,
			statement.FormatBalance(b.Net, cfg.Ledger.CurrencySymbol), b.Status)
	}
	fmt.Println()
}

func runStatement(log zerolog.Logger) {
	fs := flag.NewFlagSet("statement", flag.ExitOnError)
	owner := fs.String("owner", "", "Owner ID (defaults to the configured owner)")
	contactID := fs.String("contact-id", "", "Contact ID (empty for the overall statement)")
	from := fs.String("from", "", "First date YYYY-MM-DD")
	to := fs.String("to", "", "Last date YYYY-MM-DD")
	format := fs.String("format", "csv", "Output format: csv, xlsx, pdf or json")
	out := fs.String("out", "", "Output path (defaults to the generated file name)")
	upload := fs.Bool("upload", false, "Upload the export to the configured bucket instead of writing a file")
	fs.Parse(os.Args[2:])

	f, err := statement.ParseFormat(*format)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid format")
	}
	filter := statement.Filter{ContactID: *contactID}
	if filter.From, err = parseDateFlag(*from); err != nil {
		log.Fatal().Err(err).Msg("Invalid --from")
	}
	if filter.To, err = parseDateFlag(*to); err != nil {
		log.Fatal().Err(err).Msg("Invalid --to")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	cfg, store, closeStore := loadStore(ctx, log)
	defer closeStore()
	ownerID := ownerOr(*owner, cfg)

	contacts, err := store.ListContacts(ctx, ownerID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list contacts")
	}
	txs, err := store.ListTransactions(ctx, ownerID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list transactions")
	}
	stmt, err := statement.Build(contacts, txs, filter)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build statement")
	}

	now := time.Now()
	var data []byte
	if f == statement.FormatJSON {
		data, err = json.MarshalIndent(stmt, "", "  ")
	} else {
		data, err = statement.Export(stmt, f, statement.ExportOptions{
			CurrencySymbol: cfg.Ledger.CurrencySymbol,
			CurrencyCode:   cfg.Ledger.CurrencyCode,
			GeneratedAt:    now,
		})
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Export failed")
	}
	name := statement.FileName(stmt, f, now)

	if *upload {
		if cfg.Bucket == "" {
			log.Fatal().Msg("Error: --upload needs a bucket (set GCS_BUCKET)")
		}
		storage, err := gcsuploader.NewGCSStorageService(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}
		defer storage.Close()

		uri, err := storage.UploadBytes(ctx, cfg.Bucket, "statements/"+ownerID+"/"+name, f.ContentType(), data)
		if err != nil {
			log.Fatal().Err(err).Msg("Upload failed")
		}
		fmt.Printf("Uploaded %s (%d items) to %s\n", name, len(stmt.Items), uri)
		return
	}

	path := *out
	if path == "" {
		path = name
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Fatal().Err(err).Msg("Failed to write statement")
	}
	fmt.Printf("Wrote %s (%d items, final balance %s)\n", path, len(stmt.Items),
		statement.FormatBalance(stmt.FinalBalance, cfg.Ledger.CurrencySymbol))
}

func runImport(log zerolog.Logger) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	owner := fs.String("owner", "", "Owner ID (defaults to the configured owner)")
	gcsURI := fs.String("gcs-uri", "", "GCS URI of the slip image or PDF")
	file := fs.String("file", "", "Local slip to upload to the configured bucket first")
	fs.Parse(os.Args[2:])

	if (*gcsURI == "") == (*file == "") {
		log.Fatal().Msg("Usage: cli import (-gcs-uri URI | -file PATH)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	cfg, store, closeStore := loadStore(ctx, log)
	defer closeStore()
	ownerID := ownerOr(*owner, cfg)

	storage, err := gcsuploader.NewGCSStorageService(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	defer storage.Close()

	uri := *gcsURI
	if *file != "" {
		if cfg.Bucket == "" {
			log.Fatal().Msg("Error: -file needs a bucket (set GCS_BUCKET)")
		}
		object := fmt.Sprintf("slips/%s/%s/%s", ownerID, time.Now().Format("2006/01/02"), filepath.Base(*file))
		if err := storage.UploadFile(ctx, cfg.Bucket, object, *file); err != nil {
			log.Fatal().Err(err).Msg("Upload failed")
		}
		uri = gcs.URI(cfg.Bucket, object)
		log.Info().Str("gcs_uri", uri).Msg("Slip uploaded")
	}

	parser := pipeline.NewGeminiAIParser(cfg.Gemini.Model, cfg.ProjectID, cfg.Gemini.Location)
	state, err := pipeline.ImportSlipFromGCSWithDeps(ctx, ownerID, uri, store, storage, parser)
	if err != nil {
		log.Fatal().Err(err).Msg("Import failed")
	}

	fmt.Printf("Imported %d transactions from %s (import %s).\n", len(state.Transactions), uri, state.ImportID)
}

func runImports(log zerolog.Logger) {
	fs := flag.NewFlagSet("imports", flag.ExitOnError)
	owner := fs.String("owner", "", "Owner ID (defaults to the configured owner)")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	cfg, store, closeStore := loadStore(ctx, log)
	defer closeStore()

	rows, err := store.ListImports(ctx, ownerOr(*owner, cfg))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list imports")
	}

	fmt.Printf("\n=== Imports (%d) ===\n", len(rows))
	for i, row := range rows {
		fmt.Printf("\n%d. %s\n", i+1, row.OriginalFilename)
		fmt.Printf("   ID:           %s\n", row.ImportID)
		fmt.Printf("   GCS URI:      %s\n", row.GCSURI)
		fmt.Printf("   Uploaded:     %s\n", row.UploadTS.Format(time.RFC3339))
		fmt.Printf("   Status:       %s\n", row.ParsingStatus)
		fmt.Printf("   Transactions: %d\n", row.TransactionCount)
	}
	fmt.Println()
}

func ownerOr(owner string, cfg config.Config) string {
	if owner != "" {
		return owner
	}
	return cfg.DefaultOwnerID
}

func parseDateFlag(s string) (civil.Date, error) {
	if s == "" {
		return civil.Date{}, nil
	}
	return civil.ParseDate(s)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "encode: %v\n", err)
	}
}
