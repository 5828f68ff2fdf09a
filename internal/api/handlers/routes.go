package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/trade-ledger/internal/api/middleware"
)

// Handlers groups every API handler for route registration.
type Handlers struct {
	Transactions *TransactionsHandler
	Contacts     *ContactsHandler
	Reports      *ReportsHandler
	Statements   *StatementsHandler
	Imports      *ImportsHandler
	Jobs         *JobsHandler
}

// NewMux registers all API routes and the health check.
func NewMux(h Handlers) *http.ServeMux {
	mux := http.NewServeMux()

	// Transactions endpoints
	mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.Transactions.ListTransactions(w, r)
		case http.MethodPost:
			h.Transactions.CreateTransaction(w, r)
		default:
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc("/api/transactions/", func(w http.ResponseWriter, r *http.Request) {
		id, sub := splitPath(r.URL.Path, "/api/transactions/")
		if id == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Transaction ID is required")
			return
		}
		switch {
		case sub == "payments" && r.Method == http.MethodPost:
			h.Transactions.AddPayment(w, r, id)
		case sub != "":
			middleware.WriteError(w, http.StatusNotFound, "Not found")
		case r.Method == http.MethodGet:
			h.Transactions.GetTransaction(w, r, id)
		case r.Method == http.MethodPut:
			h.Transactions.UpdateTransaction(w, r, id)
		case r.Method == http.MethodDelete:
			h.Transactions.DeleteTransaction(w, r, id)
		default:
			methodNotAllowed(w)
		}
	})

	// Contacts endpoints
	mux.HandleFunc("/api/contacts", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.Contacts.ListContacts(w, r)
		case http.MethodPost:
			h.Contacts.CreateContact(w, r)
		default:
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc("/api/contacts/", func(w http.ResponseWriter, r *http.Request) {
		id, sub := splitPath(r.URL.Path, "/api/contacts/")
		if id == "" || sub != "" {
			middleware.WriteError(w, http.StatusNotFound, "Not found")
			return
		}
		switch r.Method {
		case http.MethodGet:
			h.Contacts.GetContact(w, r, id)
		case http.MethodPut:
			h.Contacts.UpdateContact(w, r, id)
		case http.MethodDelete:
			h.Contacts.DeleteContact(w, r, id)
		default:
			methodNotAllowed(w)
		}
	})

	// Reports endpoints
	mux.HandleFunc("/api/summary", getOnly(h.Reports.Summary))
	mux.HandleFunc("/api/parties", getOnly(h.Reports.Parties))
	mux.HandleFunc("/api/profit/monthly", getOnly(h.Reports.MonthlyProfit))
	mux.HandleFunc("/api/statements", getOnly(h.Statements.GetStatement))

	// Imports endpoints
	mux.HandleFunc("/api/imports", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.Imports.ListImports(w, r)
		case http.MethodPost:
			h.Imports.EnqueueImport(w, r)
		default:
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc("/api/imports/upload", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		h.Imports.UploadSlip(w, r)
	})

	mux.HandleFunc("/api/imports/", func(w http.ResponseWriter, r *http.Request) {
		id, sub := splitPath(r.URL.Path, "/api/imports/")
		if id == "" || sub != "" {
			middleware.WriteError(w, http.StatusNotFound, "Not found")
			return
		}
		if r.Method != http.MethodDelete {
			methodNotAllowed(w)
			return
		}
		h.Imports.DeleteImport(w, r, id)
	})

	// Jobs endpoints
	mux.HandleFunc("/api/jobs", getOnly(h.Jobs.ListJobs))

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		jobID, _ := splitPath(r.URL.Path, "/api/jobs/")
		if jobID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
			return
		}
		h.Jobs.GetJob(w, r, jobID)
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return mux
}

func getOnly(fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		fn(w, r)
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

// splitPath returns the id segment after prefix and whatever follows it.
func splitPath(path, prefix string) (id, rest string) {
	trimmed := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	id, rest, _ = strings.Cut(trimmed, "/")
	return id, rest
}
