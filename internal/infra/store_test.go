package infra

import (
	"context"
	"testing"

	"github.com/dvloznov/trade-ledger/internal/config"
	"github.com/dvloznov/trade-ledger/internal/infra/memory"
)

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	cfg := config.Default()
	store, closeFn, err := OpenStore(ctx, cfg)
	if err != nil {
		t.Fatalf("OpenStore(memory) error = %v", err)
	}
	if _, ok := store.(*memory.Store); !ok {
		t.Errorf("OpenStore(memory) = %T, want *memory.Store", store)
	}
	if err := closeFn(); err != nil {
		t.Errorf("close error = %v", err)
	}

	cfg.Store = "sqlite"
	if _, closeFn, err := OpenStore(ctx, cfg); err == nil || closeFn == nil {
		t.Errorf("OpenStore(sqlite) error = %v, close nil = %v", err, closeFn == nil)
	}
}
