// Package infra selects the storage backend a command runs against.
package infra

import (
	"context"
	"fmt"

	bq "github.com/dvloznov/trade-ledger/internal/bigquery"
	"github.com/dvloznov/trade-ledger/internal/config"
	infraBQ "github.com/dvloznov/trade-ledger/internal/infra/bigquery"
	"github.com/dvloznov/trade-ledger/internal/infra/memory"
)

// Store is the ledger and import storage the services share.
type Store interface {
	bq.LedgerRepository
	bq.ImportRepository
}

// OpenStore opens the backend named by cfg.Store. The returned func releases
// it and is never nil.
func OpenStore(ctx context.Context, cfg config.Config) (Store, func() error, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return memory.NewStore(), func() error { return nil }, nil
	case config.StoreBigQuery:
		repo, err := infraBQ.NewRepository(ctx, cfg.ProjectID, cfg.DatasetID)
		if err != nil {
			return nil, func() error { return nil }, fmt.Errorf("OpenStore: %w", err)
		}
		return repo, repo.Close, nil
	default:
		return nil, func() error { return nil }, fmt.Errorf("OpenStore: unknown store %q", cfg.Store)
	}
}
