package pipeline

import (
	"fmt"
	"strings"

	"github.com/dvloznov/trade-ledger/internal/domain"
	"github.com/dvloznov/trade-ledger/internal/ledger"
)

// ContactValidator checks that parsed counterparties are known contacts of
// the right type and rewrites them to the stored spelling.
type ContactValidator struct {
	suppliers map[string]string // normalized -> stored name
	buyers    map[string]string
}

// NewContactValidator builds lookup maps from the owner's contacts.
func NewContactValidator(contacts []*domain.Contact) *ContactValidator {
	v := &ContactValidator{
		suppliers: make(map[string]string),
		buyers:    make(map[string]string),
	}
	for _, c := range contacts {
		switch c.Type {
		case domain.ContactSupplier:
			v.suppliers[normalizeName(c.Name)] = c.Name
		case domain.ContactBuyer:
			v.buyers[normalizeName(c.Name)] = c.Name
		}
	}
	return v
}

// Canonicalize validates the counterparties of tx and replaces them with the
// stored contact names.
func (v *ContactValidator) Canonicalize(tx domain.Transaction) error {
	switch t := tx.(type) {
	case *domain.Trade:
		supplier, ok := v.suppliers[normalizeName(t.SupplierName)]
		if !ok {
			return unknownParty(t.ID, "supplierName", t.SupplierName, "supplier")
		}
		buyer, ok := v.buyers[normalizeName(t.BuyerName)]
		if !ok {
			return unknownParty(t.ID, "buyerName", t.BuyerName, "buyer")
		}
		t.SupplierName, t.BuyerName = supplier, buyer
	case *domain.Payment:
		key := normalizeName(t.Name)
		name, ok := v.suppliers[key]
		if !ok {
			name, ok = v.buyers[key]
		}
		if !ok {
			return unknownParty(t.ID, "name", t.Name, "contact")
		}
		t.Name = name
	default:
		return fmt.Errorf("Canonicalize: unsupported transaction %T", tx)
	}
	return nil
}

func unknownParty(id, field, name, kind string) error {
	return &ledger.ValidationError{
		RecordID: id,
		Field:    field,
		Reason:   fmt.Sprintf("%q is not a known %s", name, kind),
	}
}

// normalizeName folds case and collapses inner whitespace.
func normalizeName(name string) string {
	return strings.ToUpper(strings.Join(strings.Fields(name), " "))
}
