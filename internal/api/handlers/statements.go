package handlers

import (
	"fmt"
	"net/http"
	"path"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/trade-ledger/internal/api/middleware"
	bq "github.com/dvloznov/trade-ledger/internal/bigquery"
	"github.com/dvloznov/trade-ledger/internal/gcs"
	"github.com/dvloznov/trade-ledger/internal/ledger"
	"github.com/dvloznov/trade-ledger/internal/logger"
	"github.com/dvloznov/trade-ledger/internal/metrics"
	"github.com/dvloznov/trade-ledger/internal/statement"
)

// StatementsHandler serves party and overall statements and their exports.
type StatementsHandler struct {
	repo     bq.LedgerRepository
	storage  gcs.StorageService
	bucket   string
	pageSize int
	export   statement.ExportOptions
	now      func() time.Time
}

// NewStatementsHandler creates a statements handler. storage may be nil, in
// which case exports can only be downloaded.
func NewStatementsHandler(repo bq.LedgerRepository, storage gcs.StorageService, bucket string, pageSize int, export statement.ExportOptions) *StatementsHandler {
	return &StatementsHandler{
		repo:     repo,
		storage:  storage,
		bucket:   bucket,
		pageSize: pageSize,
		export:   export,
		now:      time.Now,
	}
}

// statementResponse is the JSON rendering of one statement page.
type statementResponse struct {
	Title        string             `json:"title"`
	ContactID    string             `json:"contactId,omitempty"`
	ContactName  string             `json:"contactName,omitempty"`
	From         *civil.Date        `json:"from,omitempty"`
	To           *civil.Date        `json:"to,omitempty"`
	TotalDebit   decimal.Decimal    `json:"totalDebit"`
	TotalCredit  decimal.Decimal    `json:"totalCredit"`
	FinalBalance decimal.Decimal    `json:"finalBalance"`
	BalanceText  string             `json:"balanceText"`
	Status       ledger.PartyStatus `json:"status"`
	Page         statement.Page     `json:"page"`
}

// GetStatement handles
// GET /api/statements?contact_id=&from=&to=&page=&format=json|csv|xlsx|pdf[&upload=true]
func (h *StatementsHandler) GetStatement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := middleware.OwnerFromContext(ctx)
	query := r.URL.Query()

	format, err := statement.ParseFormat(query.Get("format"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	from, err := dateParam(r, "from", civil.Date{})
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := dateParam(r, "to", civil.Date{})
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		middleware.WriteError(w, http.StatusBadRequest, "to is before from")
		return
	}
	page, err := intParam(r, "page", 1)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

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

	stmt, err := statement.Build(contacts, txs, statement.Filter{
		ContactID: query.Get("contact_id"),
		From:      from,
		To:        to,
	})
	if err != nil {
		writeServiceError(w, r, err, "Failed to build statement")
		return
	}

	if format == statement.FormatJSON {
		resp := statementResponse{
			Title:        stmt.Title,
			ContactID:    stmt.ContactID,
			ContactName:  stmt.ContactName,
			TotalDebit:   stmt.TotalDebit,
			TotalCredit:  stmt.TotalCredit,
			FinalBalance: stmt.FinalBalance,
			BalanceText:  statement.FormatBalance(stmt.FinalBalance, h.export.CurrencySymbol),
			Status:       stmt.Status,
			Page:         stmt.Page(page, h.pageSize),
		}
		if !from.IsZero() {
			resp.From = &from
		}
		if !to.IsZero() {
			resp.To = &to
		}
		middleware.WriteJSON(w, http.StatusOK, resp)
		return
	}

	h.writeExport(w, r, stmt, format, query.Get("upload") == "true")
}

func (h *StatementsHandler) writeExport(w http.ResponseWriter, r *http.Request, stmt *statement.Statement, format statement.Format, upload bool) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	now := h.now()

	start := time.Now()
	opts := h.export
	opts.GeneratedAt = now
	data, err := statement.Export(stmt, format, opts)
	if err != nil {
		metrics.ObserveStatementExport(string(format), metrics.ResultError, time.Since(start))
		writeServiceError(w, r, err, "Failed to export statement")
		return
	}
	metrics.ObserveStatementExport(string(format), metrics.ResultSuccess, time.Since(start))

	name := statement.FileName(stmt, format, now)

	if upload {
		if h.storage == nil || h.bucket == "" {
			middleware.WriteError(w, http.StatusServiceUnavailable, "Statement upload is not configured")
			return
		}
		object := path.Join("statements", middleware.OwnerFromContext(ctx), name)
		uri, err := h.storage.UploadBytes(ctx, h.bucket, object, format.ContentType(), data)
		if err != nil {
			writeServiceError(w, r, err, "Failed to upload statement")
			return
		}

		log.Info().
			Str("format", string(format)).
			Str("gcs_uri", uri).
			Int("bytes", len(data)).
			Msg("Statement uploaded")

		middleware.WriteJSON(w, http.StatusCreated, map[string]string{
			"gcs_uri":   uri,
			"file_name": name,
		})
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Warn().Err(err).Str("format", string(format)).Msg("Failed to write statement export")
	}
}
