package handlers

import (
	"errors"
	"net/http"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/trade-ledger/internal/api/middleware"
	bq "github.com/dvloznov/trade-ledger/internal/bigquery"
	"github.com/dvloznov/trade-ledger/internal/ledger"
	"github.com/dvloznov/trade-ledger/internal/metrics"
)

// maxProfitMonths caps the monthly profit window.
const maxProfitMonths = 120

// ReportsHandler serves the aggregated views of a ledger.
type ReportsHandler struct {
	repo         bq.LedgerRepository
	profitMonths int
	now          func() time.Time
}

// NewReportsHandler creates a reports handler. profitMonths is the default
// window of the monthly profit report.
func NewReportsHandler(repo bq.LedgerRepository, profitMonths int) *ReportsHandler {
	return &ReportsHandler{repo: repo, profitMonths: profitMonths, now: time.Now}
}

// Summary handles GET /api/summary
func (h *ReportsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	txs, err := h.repo.ListTransactions(ctx, middleware.OwnerFromContext(ctx))
	if err != nil {
		metrics.IncAggregation(metrics.ResultError)
		writeServiceError(w, r, err, "Failed to load transactions")
		return
	}

	summary, err := ledger.Aggregate(txs)
	if err != nil {
		var verr *ledger.ValidationError
		if errors.As(err, &verr) {
			metrics.IncAggregation(metrics.ResultInvalid)
		} else {
			metrics.IncAggregation(metrics.ResultError)
		}
		writeServiceError(w, r, err, "Failed to aggregate ledger")
		return
	}
	metrics.IncAggregation(metrics.ResultSuccess)

	middleware.WriteJSON(w, http.StatusOK, summary)
}

// Parties handles GET /api/parties
func (h *ReportsHandler) Parties(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := middleware.OwnerFromContext(ctx)

	contacts, err := h.repo.ListContacts(ctx, owner)
	if err != nil {
		writeServiceError(w, r, err, "Failed to list contacts")
		return
	}
	txs, err := h.repo.ListTransactions(ctx, owner)
	if err != nil {
		writeServiceError(w, r, err, "Failed to load transactions")
		return
	}

	balances, err := ledger.PartyBalances(contacts, txs)
	if err != nil {
		writeServiceError(w, r, err, "Failed to compute party balances")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"parties": balances,
		"count":   len(balances),
	})
}

// MonthlyProfit handles GET /api/profit/monthly?months=N
func (h *ReportsHandler) MonthlyProfit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	months, err := intParam(r, "months", h.profitMonths)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if months > maxProfitMonths {
		months = maxProfitMonths
	}

	txs, err := h.repo.ListTransactions(ctx, middleware.OwnerFromContext(ctx))
	if err != nil {
		writeServiceError(w, r, err, "Failed to load transactions")
		return
	}

	profit, err := ledger.MonthlyProfit(txs, civil.DateOf(h.now()), months)
	if err != nil {
		writeServiceError(w, r, err, "Failed to compute monthly profit")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"months": profit,
		"count":  len(profit),
	})
}
