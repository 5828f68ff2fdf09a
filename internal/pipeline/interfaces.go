package pipeline

import (
	"context"

	bq "github.com/dvloznov/trade-ledger/internal/bigquery"
	"github.com/dvloznov/trade-ledger/internal/domain"
)

// StorageService is the part of object storage the pipeline reads slips from.
type StorageService interface {
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
	ExtractFilenameFromGCSURI(uri string) string
}

// AIParser turns a slip image or PDF into raw model output. Implementations
// return {"records": [...]} where every element follows the record wire
// shape.
type AIParser interface {
	ParseSlip(ctx context.Context, slip []byte, mimeType string, contacts []*domain.Contact) (map[string]interface{}, error)
}

// Repository is what the pipeline needs from storage.
type Repository interface {
	InsertImport(ctx context.Context, row *bq.ImportRow) error
	FindImportByChecksum(ctx context.Context, ownerID, checksum string) (*bq.ImportRow, error)
	UpdateImportStatus(ctx context.Context, importID, status string, transactionCount int) error
	StartParsingRun(ctx context.Context, importID string) (string, error)
	MarkParsingRunFailed(ctx context.Context, parsingRunID string, parseErr error)
	MarkParsingRunSucceeded(ctx context.Context, parsingRunID string) error
	ListContacts(ctx context.Context, ownerID string) ([]*domain.Contact, error)
	InsertTransactions(ctx context.Context, ownerID, importID string, txs []domain.Transaction) error
}
