package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	bq "github.com/dvloznov/trade-ledger/internal/bigquery"
	"github.com/dvloznov/trade-ledger/internal/domain"
	"github.com/dvloznov/trade-ledger/internal/ledger"
	"github.com/dvloznov/trade-ledger/internal/logger"
)

// ErrDuplicateImport is returned when the same slip was already imported by
// the owner.
var ErrDuplicateImport = errors.New("slip already imported")

// PipelineStep represents a single step in the import pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	OwnerID        string
	GCSURI         string
	ImportID       string
	ParsingRunID   string
	SlipBytes      []byte
	MimeType       string
	Contacts       []*domain.Contact
	RawModelOutput map[string]interface{}
	Records        []domain.Record
	Transactions   []domain.Transaction
}

// FetchSlipStep downloads the slip from object storage.
type FetchSlipStep struct {
	Storage StorageService
}

func (s *FetchSlipStep) Execute(ctx context.Context, state *PipelineState) error {
	data, err := s.Storage.FetchFromGCS(ctx, state.GCSURI)
	if err != nil {
		return fmt.Errorf("fetch slip: %w", err)
	}
	state.SlipBytes = data
	state.MimeType = detectMimeType(data)
	return nil
}

// CreateImportStep records the import. A slip already imported successfully
// or still in progress is rejected with ErrDuplicateImport.
type CreateImportStep struct {
	Repo    Repository
	Storage StorageService
}

func (s *CreateImportStep) Execute(ctx context.Context, state *PipelineState) error {
	sum := sha256.Sum256(state.SlipBytes)
	checksum := hex.EncodeToString(sum[:])

	existing, err := s.Repo.FindImportByChecksum(ctx, state.OwnerID, checksum)
	switch {
	case err == nil && existing.ParsingStatus == bq.RunStatusFailed:
		// a failed import is parsed again under the same id
		state.ImportID = existing.ImportID
		return nil
	case err == nil:
		return fmt.Errorf("%w: import %s", ErrDuplicateImport, existing.ImportID)
	case !errors.Is(err, bq.ErrNotFound):
		return fmt.Errorf("check duplicate: %w", err)
	}

	row := &bq.ImportRow{
		ImportID:         uuid.NewString(),
		OwnerID:          state.OwnerID,
		GCSURI:           state.GCSURI,
		OriginalFilename: s.Storage.ExtractFilenameFromGCSURI(state.GCSURI),
		FileMimeType:     state.MimeType,
		ChecksumSHA256:   checksum,
		UploadTS:         time.Now(),
		ParsingStatus:    bq.RunStatusPending,
	}
	if err := s.Repo.InsertImport(ctx, row); err != nil {
		return fmt.Errorf("create import: %w", err)
	}
	state.ImportID = row.ImportID
	return nil
}

// StartParsingRunStep starts a parsing run (status=RUNNING).
type StartParsingRunStep struct {
	Repo Repository
}

func (s *StartParsingRunStep) Execute(ctx context.Context, state *PipelineState) error {
	parsingRunID, err := s.Repo.StartParsingRun(ctx, state.ImportID)
	if err != nil {
		return fmt.Errorf("start parsing run: %w", err)
	}
	state.ParsingRunID = parsingRunID
	return nil
}

// ParseSlipStep loads the owner's contacts and asks the model to read the slip.
type ParseSlipStep struct {
	Repo   Repository
	Parser AIParser
}

func (s *ParseSlipStep) Execute(ctx context.Context, state *PipelineState) error {
	contacts, err := s.Repo.ListContacts(ctx, state.OwnerID)
	if err != nil {
		return fmt.Errorf("list contacts: %w", err)
	}
	state.Contacts = contacts

	raw, err := s.Parser.ParseSlip(ctx, state.SlipBytes, state.MimeType, contacts)
	if err != nil {
		return fmt.Errorf("parse slip: %w", err)
	}
	state.RawModelOutput = raw
	return nil
}

// TransformRecordsStep maps raw model output to wire records.
type TransformRecordsStep struct{}

func (s *TransformRecordsStep) Execute(ctx context.Context, state *PipelineState) error {
	recs, err := transformModelOutputToRecords(state.RawModelOutput)
	if err != nil {
		return fmt.Errorf("transform: %w", err)
	}
	state.Records = recs
	return nil
}

// ValidateRecordsStep decodes every record and checks its counterparties. One
// invalid record rejects the whole slip.
type ValidateRecordsStep struct{}

func (s *ValidateRecordsStep) Execute(ctx context.Context, state *PipelineState) error {
	txs, err := ledger.DecodeAll(state.Records)
	if err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	v := NewContactValidator(state.Contacts)
	for _, tx := range txs {
		if err := v.Canonicalize(tx); err != nil {
			return fmt.Errorf("validate: %w", err)
		}
	}
	state.Transactions = txs
	return nil
}

// InsertTransactionsStep stores the decoded transactions under the import.
type InsertTransactionsStep struct {
	Repo Repository
}

func (s *InsertTransactionsStep) Execute(ctx context.Context, state *PipelineState) error {
	if err := s.Repo.InsertTransactions(ctx, state.OwnerID, state.ImportID, state.Transactions); err != nil {
		return fmt.Errorf("insert transactions: %w", err)
	}
	return nil
}

// MarkSuccessStep marks the parsing run and the import as SUCCESS.
type MarkSuccessStep struct {
	Repo Repository
}

func (s *MarkSuccessStep) Execute(ctx context.Context, state *PipelineState) error {
	if err := s.Repo.MarkParsingRunSucceeded(ctx, state.ParsingRunID); err != nil {
		return fmt.Errorf("mark success: %w", err)
	}
	if err := s.Repo.UpdateImportStatus(ctx, state.ImportID, bq.RunStatusSuccess, len(state.Transactions)); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().
			Err(err).
			Str("import_id", state.ImportID).
			Msg("import status not updated")
	}
	return nil
}
