package bigquery

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/dvloznov/trade-ledger/internal/domain"
)

var (
	// ErrNotFound is returned when a transaction, contact or import does not
	// exist for the owner.
	ErrNotFound = errors.New("not found")

	// ErrContactInUse is returned when deleting a contact that transactions
	// still name.
	ErrContactInUse = errors.New("contact is referenced by transactions")

	// ErrDuplicate is returned when creating a record whose id already exists.
	ErrDuplicate = errors.New("already exists")

	// ErrNotTrade is returned when a trade-only operation targets a payment.
	ErrNotTrade = errors.New("transaction is not a trade")
)

// LedgerRepository stores trades, payments and contacts per owner. Reads
// return fresh copies; callers may keep and modify them without affecting
// the store.
type LedgerRepository interface {
	// ListTransactions returns every transaction of the owner ordered by date.
	ListTransactions(ctx context.Context, ownerID string) ([]domain.Transaction, error)

	// QueryTransactionsByDateRange returns transactions dated within [start, end].
	QueryTransactionsByDateRange(ctx context.Context, ownerID string, start, end civil.Date) ([]domain.Transaction, error)

	// GetTransaction returns one transaction or ErrNotFound.
	GetTransaction(ctx context.Context, ownerID, id string) (domain.Transaction, error)

	// SaveTransaction creates or replaces a transaction.
	SaveTransaction(ctx context.Context, ownerID string, tx domain.Transaction) error

	// AppendSubPayment adds p to the supplier or buyer side of a trade as one
	// store operation, so concurrent appends are never lost, and returns the
	// updated trade. It returns ErrNotFound or ErrNotTrade.
	AppendSubPayment(ctx context.Context, ownerID, id string, side domain.ContactType, p domain.SubPayment) (*domain.Trade, error)

	// InsertTransactions adds a batch of new transactions produced by an import.
	InsertTransactions(ctx context.Context, ownerID, importID string, txs []domain.Transaction) error

	// DeleteTransaction removes a transaction or returns ErrNotFound.
	DeleteTransaction(ctx context.Context, ownerID, id string) error

	// ListContacts returns every contact of the owner ordered by name.
	ListContacts(ctx context.Context, ownerID string) ([]*domain.Contact, error)

	// GetContact returns one contact or ErrNotFound.
	GetContact(ctx context.Context, ownerID, id string) (*domain.Contact, error)

	// SaveContact creates or replaces a contact.
	SaveContact(ctx context.Context, ownerID string, c *domain.Contact) error

	// DeleteContact removes a contact. It fails with ErrContactInUse while
	// transactions still name it.
	DeleteContact(ctx context.Context, ownerID, id string) error
}

// ImportRepository tracks uploaded slips and the parsing runs over them.
type ImportRepository interface {
	// InsertImport records a newly uploaded slip.
	InsertImport(ctx context.Context, row *ImportRow) error

	// FindImportByChecksum returns the owner's import with the given SHA-256,
	// or ErrNotFound.
	FindImportByChecksum(ctx context.Context, ownerID, checksum string) (*ImportRow, error)

	// ListImports returns the owner's imports, newest first.
	ListImports(ctx context.Context, ownerID string) ([]*ImportRow, error)

	// UpdateImportStatus records the outcome of processing an import.
	UpdateImportStatus(ctx context.Context, importID, status string, transactionCount int) error

	// DeleteImport removes an import together with its parsing runs and the
	// transactions it produced. It returns ErrNotFound for unknown imports.
	DeleteImport(ctx context.Context, ownerID, importID string) error

	// StartParsingRun inserts a new parsing run with status=RUNNING and returns its id.
	StartParsingRun(ctx context.Context, importID string) (string, error)

	// MarkParsingRunFailed sets status=FAILED, finished_ts and error_message.
	MarkParsingRunFailed(ctx context.Context, parsingRunID string, parseErr error)

	// MarkParsingRunSucceeded sets status=SUCCESS and finished_ts.
	MarkParsingRunSucceeded(ctx context.Context, parsingRunID string) error
}

// Parsing run and import statuses.
const (
	RunStatusPending = "PENDING"
	RunStatusRunning = "RUNNING"
	RunStatusSuccess = "SUCCESS"
	RunStatusFailed  = "FAILED"
)

// Parser identification stored on every parsing run.
const (
	ParserTypeGemini = "GEMINI_VISION"
	ParserVersion    = "v1"
)

// ImportRow represents an uploaded weighbridge or trade slip.
type ImportRow struct {
	ImportID string `bigquery:"import_id" json:"import_id"`
	OwnerID  string `bigquery:"owner_id" json:"owner_id"`
	GCSURI   string `bigquery:"gcs_uri" json:"gcs_uri"`

	OriginalFilename string `bigquery:"original_filename" json:"original_filename"`
	FileMimeType     string `bigquery:"file_mime_type" json:"file_mime_type"`
	ChecksumSHA256   string `bigquery:"checksum_sha256" json:"checksum_sha256"`

	UploadTS    time.Time              `bigquery:"upload_ts" json:"upload_ts"`
	ProcessedTS bigquery.NullTimestamp `bigquery:"processed_ts" json:"processed_ts"`

	ParsingStatus    string `bigquery:"parsing_status" json:"parsing_status"`
	TransactionCount int64  `bigquery:"transaction_count" json:"transaction_count"`
}

// ParsingRunRow represents a parsing run record in BigQuery.
type ParsingRunRow struct {
	ParsingRunID string `bigquery:"parsing_run_id"`
	ImportID     string `bigquery:"import_id"`

	StartedTS  time.Time              `bigquery:"started_ts"`
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"`

	ParserType    string `bigquery:"parser_type"`
	ParserVersion string `bigquery:"parser_version"`

	Status       string `bigquery:"status"`
	ErrorMessage string `bigquery:"error_message"`
}
