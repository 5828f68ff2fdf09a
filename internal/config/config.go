// Package config loads service configuration from defaults, an optional YAML
// file named by LEDGER_CONFIG, and environment overrides, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreBigQuery = "bigquery"
)

// Config is the full service configuration.
type Config struct {
	ProjectID      string `yaml:"project_id"`
	DatasetID      string `yaml:"dataset_id"`
	Bucket         string `yaml:"bucket"`
	Store          string `yaml:"store"`
	Port           string `yaml:"port"`
	LogLevel       string `yaml:"log_level"`
	DefaultOwnerID string `yaml:"default_owner_id"`

	Ledger LedgerConfig `yaml:"ledger"`
	Queue  QueueConfig  `yaml:"queue"`
	Notion NotionConfig `yaml:"notion"`
	Gemini GeminiConfig `yaml:"gemini"`
}

// LedgerConfig controls presentation of ledger data.
type LedgerConfig struct {
	CurrencySymbol    string `yaml:"currency_symbol"`
	CurrencyCode      string `yaml:"currency_code"`
	StatementPageSize int    `yaml:"statement_page_size"`
	DashboardPageSize int    `yaml:"dashboard_page_size"`
	ProfitMonths      int    `yaml:"profit_months"`
}

// QueueConfig sizes the background job queue.
type QueueConfig struct {
	Buffer     int `yaml:"buffer"`
	Workers    int `yaml:"workers"`
	MaxRetries int `yaml:"max_retries"`
}

// NotionConfig points at the database party balances are mirrored to.
type NotionConfig struct {
	Token      string `yaml:"token"`
	DatabaseID string `yaml:"database_id"`
}

// GeminiConfig selects the model used for slip parsing.
type GeminiConfig struct {
	Model    string `yaml:"model"`
	Location string `yaml:"location"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DatasetID:      "ledger",
		Store:          StoreMemory,
		Port:           "8080",
		LogLevel:       "info",
		DefaultOwnerID: "default",
		Ledger: LedgerConfig{
			CurrencySymbol:    "৳",
			CurrencyCode:      "BDT",
			StatementPageSize: 25,
			DashboardPageSize: 7,
			ProfitMonths:      6,
		},
		Queue: QueueConfig{
			Buffer:     100,
			Workers:    5,
			MaxRetries: 3,
		},
		Gemini: GeminiConfig{
			Model:    "gemini-2.5-flash",
			Location: "europe-west2",
		},
	}
}

// Load builds the configuration from defaults, the LEDGER_CONFIG file and the
// environment, then validates it.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("LEDGER_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("Load: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("Load: parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.ProjectID = getenvDefault("GCP_PROJECT", cfg.ProjectID)
	cfg.DatasetID = getenvDefault("LEDGER_DATASET", cfg.DatasetID)
	cfg.Bucket = getenvDefault("GCS_BUCKET", cfg.Bucket)
	cfg.Store = getenvDefault("LEDGER_STORE", cfg.Store)
	cfg.Port = getenvDefault("PORT", cfg.Port)
	cfg.LogLevel = getenvDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.DefaultOwnerID = getenvDefault("DEFAULT_OWNER_ID", cfg.DefaultOwnerID)

	cfg.Ledger.CurrencySymbol = getenvDefault("CURRENCY_SYMBOL", cfg.Ledger.CurrencySymbol)
	cfg.Ledger.CurrencyCode = getenvDefault("CURRENCY_CODE", cfg.Ledger.CurrencyCode)
	cfg.Ledger.StatementPageSize = getenvIntDefault("STATEMENT_PAGE_SIZE", cfg.Ledger.StatementPageSize)
	cfg.Ledger.ProfitMonths = getenvIntDefault("PROFIT_MONTHS", cfg.Ledger.ProfitMonths)

	cfg.Queue.Buffer = getenvIntDefault("QUEUE_BUFFER", cfg.Queue.Buffer)
	cfg.Queue.Workers = getenvIntDefault("QUEUE_WORKERS", cfg.Queue.Workers)
	cfg.Queue.MaxRetries = getenvIntDefault("QUEUE_MAX_RETRIES", cfg.Queue.MaxRetries)

	cfg.Notion.Token = getenvDefault("NOTION_TOKEN", cfg.Notion.Token)
	cfg.Notion.DatabaseID = getenvDefault("NOTION_DB_ID", cfg.Notion.DatabaseID)

	cfg.Gemini.Model = getenvDefault("GEMINI_MODEL", cfg.Gemini.Model)
	cfg.Gemini.Location = getenvDefault("GEMINI_LOCATION", cfg.Gemini.Location)
}

// Validate rejects configurations the services cannot run with.
func (c Config) Validate() error {
	var errs []error
	switch c.Store {
	case StoreMemory:
	case StoreBigQuery:
		if c.ProjectID == "" {
			errs = append(errs, errors.New("project_id is required for the bigquery store"))
		}
		if c.DatasetID == "" {
			errs = append(errs, errors.New("dataset_id is required for the bigquery store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store %q", c.Store))
	}
	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	}
	if c.Ledger.StatementPageSize <= 0 {
		errs = append(errs, fmt.Errorf("statement_page_size must be positive, got %d", c.Ledger.StatementPageSize))
	}
	if c.Ledger.ProfitMonths <= 0 {
		errs = append(errs, fmt.Errorf("profit_months must be positive, got %d", c.Ledger.ProfitMonths))
	}
	if c.Queue.Workers <= 0 {
		errs = append(errs, fmt.Errorf("queue workers must be positive, got %d", c.Queue.Workers))
	}
	if c.Queue.Buffer < 0 || c.Queue.MaxRetries < 0 {
		errs = append(errs, errors.New("queue buffer and max_retries must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

func getenvDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
