package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	bq "github.com/dvloznov/trade-ledger/internal/bigquery"
	"github.com/dvloznov/trade-ledger/internal/domain"
)

// Re-export interfaces from the shared package so callers only import infra.
type LedgerRepository = bq.LedgerRepository
type ImportRepository = bq.ImportRepository

// Repository implements LedgerRepository and ImportRepository on BigQuery.
// It holds one shared client for all operations.
type Repository struct {
	client    *bigquery.Client
	datasetID string
}

var (
	_ LedgerRepository = (*Repository)(nil)
	_ ImportRepository = (*Repository)(nil)
)

// NewRepository creates a Repository with its own BigQuery client.
func NewRepository(ctx context.Context, projectID, datasetID string) (*Repository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return NewRepositoryWithClient(client, datasetID), nil
}

// NewRepositoryWithClient wraps an existing client.
func NewRepositoryWithClient(client *bigquery.Client, datasetID string) *Repository {
	return &Repository{client: client, datasetID: datasetID}
}

// Close closes the BigQuery client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *Repository) ListTransactions(ctx context.Context, ownerID string) ([]domain.Transaction, error) {
	return ListTransactionsWithClient(ctx, r.client, r.datasetID, ownerID)
}

func (r *Repository) QueryTransactionsByDateRange(ctx context.Context, ownerID string, start, end civil.Date) ([]domain.Transaction, error) {
	return QueryTransactionsByDateRangeWithClient(ctx, r.client, r.datasetID, ownerID, start, end)
}

func (r *Repository) GetTransaction(ctx context.Context, ownerID, id string) (domain.Transaction, error) {
	return GetTransactionWithClient(ctx, r.client, r.datasetID, ownerID, id)
}

func (r *Repository) SaveTransaction(ctx context.Context, ownerID string, tx domain.Transaction) error {
	return SaveTransactionWithClient(ctx, r.client, r.datasetID, ownerID, "", tx)
}

func (r *Repository) AppendSubPayment(ctx context.Context, ownerID, id string, side domain.ContactType, p domain.SubPayment) (*domain.Trade, error) {
	return AppendSubPaymentWithClient(ctx, r.client, r.datasetID, ownerID, id, side, p)
}

func (r *Repository) InsertTransactions(ctx context.Context, ownerID, importID string, txs []domain.Transaction) error {
	return InsertTransactionsWithClient(ctx, r.client, r.datasetID, ownerID, importID, txs)
}

func (r *Repository) DeleteTransaction(ctx context.Context, ownerID, id string) error {
	return DeleteTransactionWithClient(ctx, r.client, r.datasetID, ownerID, id)
}

func (r *Repository) ListContacts(ctx context.Context, ownerID string) ([]*domain.Contact, error) {
	return ListContactsWithClient(ctx, r.client, r.datasetID, ownerID)
}

func (r *Repository) GetContact(ctx context.Context, ownerID, id string) (*domain.Contact, error) {
	return GetContactWithClient(ctx, r.client, r.datasetID, ownerID, id)
}

func (r *Repository) SaveContact(ctx context.Context, ownerID string, c *domain.Contact) error {
	return SaveContactWithClient(ctx, r.client, r.datasetID, ownerID, c)
}

func (r *Repository) DeleteContact(ctx context.Context, ownerID, id string) error {
	return DeleteContactWithClient(ctx, r.client, r.datasetID, ownerID, id)
}

func (r *Repository) InsertImport(ctx context.Context, row *bq.ImportRow) error {
	return InsertImportWithClient(ctx, r.client, r.datasetID, row)
}

func (r *Repository) FindImportByChecksum(ctx context.Context, ownerID, checksum string) (*bq.ImportRow, error) {
	return FindImportByChecksumWithClient(ctx, r.client, r.datasetID, ownerID, checksum)
}

func (r *Repository) ListImports(ctx context.Context, ownerID string) ([]*bq.ImportRow, error) {
	return ListImportsWithClient(ctx, r.client, r.datasetID, ownerID)
}

func (r *Repository) UpdateImportStatus(ctx context.Context, importID, status string, transactionCount int) error {
	return UpdateImportStatusWithClient(ctx, r.client, r.datasetID, importID, status, transactionCount)
}

func (r *Repository) DeleteImport(ctx context.Context, ownerID, importID string) error {
	return DeleteImportWithClient(ctx, r.client, r.datasetID, ownerID, importID)
}

func (r *Repository) StartParsingRun(ctx context.Context, importID string) (string, error) {
	return StartParsingRunWithClient(ctx, r.client, r.datasetID, importID)
}

func (r *Repository) MarkParsingRunFailed(ctx context.Context, parsingRunID string, parseErr error) {
	MarkParsingRunFailedWithClient(ctx, r.client, r.datasetID, parsingRunID, parseErr)
}

func (r *Repository) MarkParsingRunSucceeded(ctx context.Context, parsingRunID string) error {
	return MarkParsingRunSucceededWithClient(ctx, r.client, r.datasetID, parsingRunID)
}
