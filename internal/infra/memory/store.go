// Package memory holds in-memory implementations of the ledger and import
// repositories. They are safe for concurrent use and lose all data on
// restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	bq "github.com/dvloznov/trade-ledger/internal/bigquery"
	"github.com/dvloznov/trade-ledger/internal/domain"
	"github.com/dvloznov/trade-ledger/internal/ledger"
)

type storedTx struct {
	tx       domain.Transaction
	importID string
	seq      int
}

type ownerData struct {
	txs      map[string]*storedTx
	contacts map[string]*domain.Contact
	imports  map[string]*bq.ImportRow
}

// Store keeps every owner's data in maps guarded by one RWMutex. Values are
// cloned on the way in and on the way out.
type Store struct {
	mu     sync.RWMutex
	owners map[string]*ownerData
	runs   map[string]*bq.ParsingRunRow
	seq    int
	now    func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		owners: make(map[string]*ownerData),
		runs:   make(map[string]*bq.ParsingRunRow),
		now:    time.Now,
	}
}

var (
	_ bq.LedgerRepository = (*Store)(nil)
	_ bq.ImportRepository = (*Store)(nil)
)

// owner returns the owner's data, creating it when create is set. Callers
// hold the lock.
func (s *Store) owner(ownerID string, create bool) *ownerData {
	d, ok := s.owners[ownerID]
	if !ok && create {
		d = &ownerData{
			txs:      make(map[string]*storedTx),
			contacts: make(map[string]*domain.Contact),
			imports:  make(map[string]*bq.ImportRow),
		}
		s.owners[ownerID] = d
	}
	return d
}

// ListTransactions returns copies of the owner's transactions ordered by date
// and then insertion order.
func (s *Store) ListTransactions(ctx context.Context, ownerID string) ([]domain.Transaction, error) {
	return s.filterTransactions(ownerID, func(domain.Transaction) bool { return true }), nil
}

// QueryTransactionsByDateRange returns copies of transactions dated within
// [start, end].
func (s *Store) QueryTransactionsByDateRange(ctx context.Context, ownerID string, start, end civil.Date) ([]domain.Transaction, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("QueryTransactionsByDateRange: end %s before start %s", end, start)
	}
	return s.filterTransactions(ownerID, func(tx domain.Transaction) bool {
		d := tx.TransactionDate()
		return !d.Before(start) && !d.After(end)
	}), nil
}

func (s *Store) filterTransactions(ownerID string, keep func(domain.Transaction) bool) []domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d := s.owner(ownerID, false)
	if d == nil {
		return []domain.Transaction{}
	}

	stored := make([]*storedTx, 0, len(d.txs))
	for _, st := range d.txs {
		if keep(st.tx) {
			stored = append(stored, st)
		}
	}
	sort.Slice(stored, func(i, j int) bool {
		di, dj := stored[i].tx.TransactionDate(), stored[j].tx.TransactionDate()
		if di != dj {
			return di.Before(dj)
		}
		return stored[i].seq < stored[j].seq
	})

	out := make([]domain.Transaction, len(stored))
	for i, st := range stored {
		out[i] = domain.CloneTransaction(st.tx)
	}
	return out
}

// GetTransaction returns a copy of one transaction.
func (s *Store) GetTransaction(ctx context.Context, ownerID, id string) (domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if d := s.owner(ownerID, false); d != nil {
		if st, ok := d.txs[id]; ok {
			return domain.CloneTransaction(st.tx), nil
		}
	}
	return nil, fmt.Errorf("GetTransaction: %s: %w", id, bq.ErrNotFound)
}

// SaveTransaction validates and stores a copy of tx, replacing any
// transaction with the same id.
func (s *Store) SaveTransaction(ctx context.Context, ownerID string, tx domain.Transaction) error {
	if err := ledger.Validate(tx); err != nil {
		return fmt.Errorf("SaveTransaction: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.put(s.owner(ownerID, true), tx, "")
	return nil
}

// AppendSubPayment adds p to one side of a trade under the write lock.
func (s *Store) AppendSubPayment(ctx context.Context, ownerID, id string, side domain.ContactType, p domain.SubPayment) (*domain.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.owner(ownerID, false)
	if d == nil || d.txs[id] == nil {
		return nil, fmt.Errorf("AppendSubPayment: %s: %w", id, bq.ErrNotFound)
	}
	trade, ok := d.txs[id].tx.(*domain.Trade)
	if !ok {
		return nil, fmt.Errorf("AppendSubPayment: %s: %w", id, bq.ErrNotTrade)
	}

	updated := trade.Clone()
	if err := updated.AddSubPayment(side, p); err != nil {
		return nil, fmt.Errorf("AppendSubPayment: %w", err)
	}
	if err := ledger.Validate(updated); err != nil {
		return nil, fmt.Errorf("AppendSubPayment: %w", err)
	}

	s.put(d, updated, "")
	return updated.Clone(), nil
}

// InsertTransactions validates the whole batch before storing any of it.
func (s *Store) InsertTransactions(ctx context.Context, ownerID, importID string, txs []domain.Transaction) error {
	for _, tx := range txs {
		if err := ledger.Validate(tx); err != nil {
			return fmt.Errorf("InsertTransactions: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.owner(ownerID, true)
	for _, tx := range txs {
		if _, exists := d.txs[tx.TransactionID()]; exists {
			return fmt.Errorf("InsertTransactions: %s: %w", tx.TransactionID(), bq.ErrDuplicate)
		}
	}
	for _, tx := range txs {
		s.put(d, tx, importID)
	}
	return nil
}

// put stores a clone of tx. A replaced transaction keeps its position and
// import. Callers hold the write lock.
func (s *Store) put(d *ownerData, tx domain.Transaction, importID string) {
	id := tx.TransactionID()
	if prev, ok := d.txs[id]; ok {
		prev.tx = domain.CloneTransaction(tx)
		return
	}
	s.seq++
	d.txs[id] = &storedTx{tx: domain.CloneTransaction(tx), importID: importID, seq: s.seq}
}

// DeleteTransaction removes a transaction.
func (s *Store) DeleteTransaction(ctx context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.owner(ownerID, false)
	if d == nil {
		return fmt.Errorf("DeleteTransaction: %s: %w", id, bq.ErrNotFound)
	}
	if _, ok := d.txs[id]; !ok {
		return fmt.Errorf("DeleteTransaction: %s: %w", id, bq.ErrNotFound)
	}
	delete(d.txs, id)
	return nil
}

// ListContacts returns copies of the owner's contacts ordered by name.
func (s *Store) ListContacts(ctx context.Context, ownerID string) ([]*domain.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*domain.Contact{}
	if d := s.owner(ownerID, false); d != nil {
		for _, c := range d.contacts {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// GetContact returns a copy of one contact.
func (s *Store) GetContact(ctx context.Context, ownerID, id string) (*domain.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if d := s.owner(ownerID, false); d != nil {
		if c, ok := d.contacts[id]; ok {
			return c.Clone(), nil
		}
	}
	return nil, fmt.Errorf("GetContact: %s: %w", id, bq.ErrNotFound)
}

// SaveContact validates and stores a copy of c.
func (s *Store) SaveContact(ctx context.Context, ownerID string, c *domain.Contact) error {
	if err := ledger.ValidateContact(c); err != nil {
		return fmt.Errorf("SaveContact: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.owner(ownerID, true).contacts[c.ID] = c.Clone()
	return nil
}

// DeleteContact removes a contact that no transaction names.
func (s *Store) DeleteContact(ctx context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.owner(ownerID, false)
	if d == nil {
		return fmt.Errorf("DeleteContact: %s: %w", id, bq.ErrNotFound)
	}
	c, ok := d.contacts[id]
	if !ok {
		return fmt.Errorf("DeleteContact: %s: %w", id, bq.ErrNotFound)
	}
	for _, st := range d.txs {
		if domain.InvolvesParty(st.tx, c.Name) {
			return fmt.Errorf("DeleteContact: %s: %w", id, bq.ErrContactInUse)
		}
	}
	delete(d.contacts, id)
	return nil
}

// InsertImport stores a copy of row.
func (s *Store) InsertImport(ctx context.Context, row *bq.ImportRow) error {
	if row.ImportID == "" {
		return fmt.Errorf("InsertImport: import ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.owner(row.OwnerID, true)
	if _, exists := d.imports[row.ImportID]; exists {
		return fmt.Errorf("InsertImport: %s: %w", row.ImportID, bq.ErrDuplicate)
	}
	cp := *row
	d.imports[row.ImportID] = &cp
	return nil
}

// FindImportByChecksum returns the owner's import with the given checksum.
func (s *Store) FindImportByChecksum(ctx context.Context, ownerID, checksum string) (*bq.ImportRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if d := s.owner(ownerID, false); d != nil {
		for _, row := range d.imports {
			if row.ChecksumSHA256 == checksum {
				cp := *row
				return &cp, nil
			}
		}
	}
	return nil, fmt.Errorf("FindImportByChecksum: %w", bq.ErrNotFound)
}

// ListImports returns the owner's imports, newest first.
func (s *Store) ListImports(ctx context.Context, ownerID string) ([]*bq.ImportRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*bq.ImportRow{}
	if d := s.owner(ownerID, false); d != nil {
		for _, row := range d.imports {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UploadTS.After(out[j].UploadTS)
	})
	return out, nil
}

// UpdateImportStatus records the outcome of processing an import.
func (s *Store) UpdateImportStatus(ctx context.Context, importID, status string, transactionCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.findImport(importID)
	if row == nil {
		return fmt.Errorf("UpdateImportStatus: %s: %w", importID, bq.ErrNotFound)
	}
	row.ParsingStatus = status
	row.TransactionCount = int64(transactionCount)
	row.ProcessedTS.Timestamp = s.now()
	row.ProcessedTS.Valid = true
	return nil
}

// DeleteImport removes an import, its parsing runs and its transactions.
func (s *Store) DeleteImport(ctx context.Context, ownerID, importID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.owner(ownerID, false)
	if d == nil || d.imports[importID] == nil {
		return fmt.Errorf("DeleteImport: %s: %w", importID, bq.ErrNotFound)
	}
	for id, st := range d.txs {
		if st.importID == importID {
			delete(d.txs, id)
		}
	}
	for id, run := range s.runs {
		if run.ImportID == importID {
			delete(s.runs, id)
		}
	}
	delete(d.imports, importID)
	return nil
}

// findImport looks an import up across owners. Callers hold the lock.
func (s *Store) findImport(importID string) *bq.ImportRow {
	for _, d := range s.owners {
		if row, ok := d.imports[importID]; ok {
			return row
		}
	}
	return nil
}

// StartParsingRun records a RUNNING parsing run for the import.
func (s *Store) StartParsingRun(ctx context.Context, importID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findImport(importID) == nil {
		return "", fmt.Errorf("StartParsingRun: import %s: %w", importID, bq.ErrNotFound)
	}
	id := uuid.NewString()
	s.runs[id] = &bq.ParsingRunRow{
		ParsingRunID:  id,
		ImportID:      importID,
		StartedTS:     s.now(),
		ParserType:    bq.ParserTypeGemini,
		ParserVersion: bq.ParserVersion,
		Status:        bq.RunStatusRunning,
	}
	return id, nil
}

// MarkParsingRunFailed sets status=FAILED. Unknown runs are ignored.
func (s *Store) MarkParsingRunFailed(ctx context.Context, parsingRunID string, parseErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[parsingRunID]
	if !ok {
		return
	}
	run.Status = bq.RunStatusFailed
	run.FinishedTS.Timestamp = s.now()
	run.FinishedTS.Valid = true
	if parseErr != nil {
		run.ErrorMessage = parseErr.Error()
	}
}

// MarkParsingRunSucceeded sets status=SUCCESS.
func (s *Store) MarkParsingRunSucceeded(ctx context.Context, parsingRunID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[parsingRunID]
	if !ok {
		return fmt.Errorf("MarkParsingRunSucceeded: %s: %w", parsingRunID, bq.ErrNotFound)
	}
	run.Status = bq.RunStatusSuccess
	run.FinishedTS.Timestamp = s.now()
	run.FinishedTS.Valid = true
	run.ErrorMessage = ""
	return nil
}

// ParsingRun returns a copy of a parsing run.
func (s *Store) ParsingRun(parsingRunID string) (*bq.ParsingRunRow, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[parsingRunID]
	if !ok {
		return nil, false
	}
	cp := *run
	return &cp, true
}
