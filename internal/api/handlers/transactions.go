package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/trade-ledger/internal/api/middleware"
	bq "github.com/dvloznov/trade-ledger/internal/bigquery"
	"github.com/dvloznov/trade-ledger/internal/domain"
	"github.com/dvloznov/trade-ledger/internal/ledger"
	"github.com/dvloznov/trade-ledger/internal/logger"
)

var errBadBody = errors.New("invalid request body")

// TransactionsHandler serves trades and standalone payments.
type TransactionsHandler struct {
	repo bq.LedgerRepository
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(repo bq.LedgerRepository) *TransactionsHandler {
	return &TransactionsHandler{repo: repo}
}

// ListTransactions handles GET /api/transactions. Without start_date and
// end_date every transaction is returned.
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := middleware.OwnerFromContext(ctx)

	query := r.URL.Query()
	var (
		txs []domain.Transaction
		err error
	)
	if query.Get("start_date") == "" && query.Get("end_date") == "" {
		txs, err = h.repo.ListTransactions(ctx, owner)
	} else {
		start, perr := dateParam(r, "start_date", civil.Date{Year: 1900, Month: 1, Day: 1})
		if perr != nil {
			middleware.WriteError(w, http.StatusBadRequest, perr.Error())
			return
		}
		end, perr := dateParam(r, "end_date", civil.Date{Year: 9999, Month: 12, Day: 31})
		if perr != nil {
			middleware.WriteError(w, http.StatusBadRequest, perr.Error())
			return
		}
		if end.Before(start) {
			middleware.WriteError(w, http.StatusBadRequest, "end_date is before start_date")
			return
		}
		txs, err = h.repo.QueryTransactionsByDateRange(ctx, owner, start, end)
	}
	if err != nil {
		writeServiceError(w, r, err, "Failed to query transactions")
		return
	}

	// Return array directly for frontend compatibility
	middleware.WriteJSON(w, http.StatusOK, domain.RecordsOf(txs))
}

// CreateTransaction handles POST /api/transactions. The body is either a
// transaction record or, with "form": true, trade form input whose totals
// are derived on the server.
func (h *TransactionsHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := middleware.OwnerFromContext(ctx)

	data, ok := readBody(w, r)
	if !ok {
		return
	}
	tx, err := parseTransaction(data, "")
	if err != nil {
		if errors.Is(err, errBadBody) {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		writeServiceError(w, r, err, "Failed to create transaction")
		return
	}

	if _, err := h.repo.GetTransaction(ctx, owner, tx.TransactionID()); err == nil {
		middleware.WriteError(w, http.StatusConflict, "Transaction already exists")
		return
	} else if !errors.Is(err, bq.ErrNotFound) {
		writeServiceError(w, r, err, "Failed to create transaction")
		return
	}

	if err := h.repo.SaveTransaction(ctx, owner, tx); err != nil {
		writeServiceError(w, r, err, "Failed to create transaction")
		return
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("transaction_id", tx.TransactionID()).
		Str("kind", string(tx.Kind())).
		Msg("Transaction created")

	middleware.WriteJSON(w, http.StatusCreated, domain.RecordOf(tx))
}

// GetTransaction handles GET /api/transactions/{id}
func (h *TransactionsHandler) GetTransaction(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()

	tx, err := h.repo.GetTransaction(ctx, middleware.OwnerFromContext(ctx), id)
	if err != nil {
		writeServiceError(w, r, err, "Failed to get transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, domain.RecordOf(tx))
}

// UpdateTransaction handles PUT /api/transactions/{id}. The id in the path
// wins over any id in the body.
func (h *TransactionsHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()
	owner := middleware.OwnerFromContext(ctx)

	data, ok := readBody(w, r)
	if !ok {
		return
	}
	tx, err := parseTransaction(data, id)
	if err != nil {
		if errors.Is(err, errBadBody) {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		writeServiceError(w, r, err, "Failed to update transaction")
		return
	}

	if _, err := h.repo.GetTransaction(ctx, owner, id); err != nil {
		writeServiceError(w, r, err, "Failed to update transaction")
		return
	}
	if err := h.repo.SaveTransaction(ctx, owner, tx); err != nil {
		writeServiceError(w, r, err, "Failed to update transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, domain.RecordOf(tx))
}

// DeleteTransaction handles DELETE /api/transactions/{id}
func (h *TransactionsHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()

	if err := h.repo.DeleteTransaction(ctx, middleware.OwnerFromContext(ctx), id); err != nil {
		writeServiceError(w, r, err, "Failed to delete transaction")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// subPaymentRequest adds one payment to a side of a trade.
type subPaymentRequest struct {
	Side   string          `json:"side"`
	Amount decimal.Decimal `json:"amount"`
	Date   string          `json:"date"`
	Method string          `json:"method"`
}

// AddPayment handles POST /api/transactions/{id}/payments
func (h *TransactionsHandler) AddPayment(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()
	owner := middleware.OwnerFromContext(ctx)

	var req subPaymentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	side := strings.ToLower(strings.TrimSpace(req.Side))
	if side != "supplier" && side != "buyer" {
		middleware.WriteError(w, http.StatusBadRequest, "side must be supplier or buyer")
		return
	}

	p := domain.SubPayment{Amount: req.Amount, Method: req.Method}
	if req.Date != "" {
		d, err := civil.ParseDate(req.Date)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "invalid date format, expected YYYY-MM-DD")
			return
		}
		p.Date = d
	}
	if p.Method == "" {
		p.Method = domain.MethodCash
	}
	if !p.Amount.IsPositive() {
		middleware.WriteError(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	trade, err := h.repo.AppendSubPayment(ctx, owner, id, domain.ContactType(side), p)
	if errors.Is(err, bq.ErrNotTrade) {
		middleware.WriteError(w, http.StatusBadRequest, "Payments can only be added to trades")
		return
	}
	if err != nil {
		writeServiceError(w, r, err, "Failed to add payment")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transaction": domain.RecordOf(trade),
		"balance":     ledger.BalanceOf(trade),
	})
}

// parseTransaction decodes a request body into a validated transaction. A
// non-empty id overrides the body's id; a body without one gets a new UUID.
func parseTransaction(data []byte, id string) (domain.Transaction, error) {
	var probe struct {
		Form bool   `json:"form"`
		ID   string `json:"id"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, errBadBody
	}

	if probe.Form {
		var in domain.TradeInput
		if err := json.Unmarshal(data, &in); err != nil {
			return nil, errBadBody
		}
		if id == "" {
			id = probe.ID
		}
		if id == "" {
			id = uuid.New().String()
		}
		t := domain.NewTrade(id, in)
		if err := ledger.Validate(t); err != nil {
			return nil, err
		}
		return t, nil
	}

	var rec domain.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errBadBody
	}
	switch {
	case id != "":
		rec.ID = id
	case rec.ID == "":
		rec.ID = uuid.New().String()
	}
	return ledger.Decode(rec)
}
