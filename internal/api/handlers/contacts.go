package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dvloznov/trade-ledger/internal/api/middleware"
	bq "github.com/dvloznov/trade-ledger/internal/bigquery"
	"github.com/dvloznov/trade-ledger/internal/domain"
	"github.com/dvloznov/trade-ledger/internal/ledger"
	"github.com/dvloznov/trade-ledger/internal/logger"
)

// ContactsHandler serves suppliers and buyers.
type ContactsHandler struct {
	repo bq.LedgerRepository
}

// NewContactsHandler creates a new contacts handler.
func NewContactsHandler(repo bq.LedgerRepository) *ContactsHandler {
	return &ContactsHandler{repo: repo}
}

// ListContacts handles GET /api/contacts
func (h *ContactsHandler) ListContacts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	contacts, err := h.repo.ListContacts(ctx, middleware.OwnerFromContext(ctx))
	if err != nil {
		writeServiceError(w, r, err, "Failed to list contacts")
		return
	}
	if contacts == nil {
		contacts = []*domain.Contact{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"contacts": contacts,
		"count":    len(contacts),
	})
}

// CreateContact handles POST /api/contacts. Names must be unique per owner
// because transactions refer to parties by name.
func (h *ContactsHandler) CreateContact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := middleware.OwnerFromContext(ctx)

	var c domain.Contact
	if !decodeBody(w, r, &c) {
		return
	}
	c.Name = strings.TrimSpace(c.Name)
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if err := ledger.ValidateContact(&c); err != nil {
		writeServiceError(w, r, err, "Failed to create contact")
		return
	}

	existing, err := h.repo.ListContacts(ctx, owner)
	if err != nil {
		writeServiceError(w, r, err, "Failed to create contact")
		return
	}
	for _, e := range existing {
		if e.ID == c.ID || strings.EqualFold(e.Name, c.Name) {
			middleware.WriteError(w, http.StatusConflict, "Contact already exists")
			return
		}
	}

	if err := h.repo.SaveContact(ctx, owner, &c); err != nil {
		writeServiceError(w, r, err, "Failed to create contact")
		return
	}

	log := logger.FromContext(ctx)
	log.Info().Str("contact_id", c.ID).Str("contact_type", string(c.Type)).Msg("Contact created")

	middleware.WriteJSON(w, http.StatusCreated, c)
}

// GetContact handles GET /api/contacts/{id}
func (h *ContactsHandler) GetContact(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()

	c, err := h.repo.GetContact(ctx, middleware.OwnerFromContext(ctx), id)
	if err != nil {
		writeServiceError(w, r, err, "Failed to get contact")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, c)
}

// UpdateContact handles PUT /api/contacts/{id}. Renaming a contact that
// transactions still name is refused, since those transactions would no
// longer resolve to it.
func (h *ContactsHandler) UpdateContact(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()
	owner := middleware.OwnerFromContext(ctx)

	var c domain.Contact
	if !decodeBody(w, r, &c) {
		return
	}
	c.ID = id
	c.Name = strings.TrimSpace(c.Name)
	if err := ledger.ValidateContact(&c); err != nil {
		writeServiceError(w, r, err, "Failed to update contact")
		return
	}

	current, err := h.repo.GetContact(ctx, owner, id)
	if err != nil {
		writeServiceError(w, r, err, "Failed to update contact")
		return
	}
	if current.Name != c.Name {
		txs, err := h.repo.ListTransactions(ctx, owner)
		if err != nil {
			writeServiceError(w, r, err, "Failed to update contact")
			return
		}
		for _, tx := range txs {
			if domain.InvolvesParty(tx, current.Name) {
				writeServiceError(w, r, bq.ErrContactInUse, "Failed to update contact")
				return
			}
		}
	}

	if err := h.repo.SaveContact(ctx, owner, &c); err != nil {
		writeServiceError(w, r, err, "Failed to update contact")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, c)
}

// DeleteContact handles DELETE /api/contacts/{id}
func (h *ContactsHandler) DeleteContact(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()

	if err := h.repo.DeleteContact(ctx, middleware.OwnerFromContext(ctx), id); err != nil {
		writeServiceError(w, r, err, "Failed to delete contact")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
