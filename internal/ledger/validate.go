package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/trade-ledger/internal/domain"
)

// Validate checks a typed transaction against the same rules Decode applies
// to wire records.
func Validate(tx domain.Transaction) error {
	switch v := tx.(type) {
	case *domain.Trade:
		if v == nil {
			return invalid("", "type", "nil trade")
		}
		return validateTrade(v)
	case *domain.Payment:
		if v == nil {
			return invalid("", "type", "nil payment")
		}
		return validatePayment(v)
	case nil:
		return invalid("", "type", "nil transaction")
	default:
		return invalid(tx.TransactionID(), "type", fmt.Sprintf("unsupported transaction %T", tx))
	}
}

func validateTrade(t *domain.Trade) error {
	id := t.ID
	if id == "" {
		return invalid("", "id", "is required")
	}
	if t.Date.IsZero() {
		return invalid(id, "date", "is required")
	}
	if t.Item == "" {
		return invalid(id, "item", "is required")
	}
	if t.SupplierName == "" {
		return invalid(id, "supplierName", "is required")
	}
	if t.BuyerName == "" {
		return invalid(id, "buyerName", "is required")
	}
	if t.SupplierName == t.BuyerName {
		return invalid(id, "buyerName", "supplier and buyer cannot be the same party")
	}
	for _, f := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"scaleWeight", t.ScaleWeight},
		{"less", t.Less},
		{"netWeight", t.NetWeight},
		{"supplierRate", t.SupplierRate},
		{"buyerRate", t.BuyerRate},
		{"supplierTotal", t.SupplierTotal},
		{"buyerTotal", t.BuyerTotal},
	} {
		if f.value.IsNegative() {
			return invalid(id, f.name, fmt.Sprintf("must not be negative, got %s", f.value))
		}
	}
	if want := t.BuyerTotal.Sub(t.SupplierTotal); !t.Profit.Equal(want) {
		return invalid(id, "profit", fmt.Sprintf("is %s but buyerTotal - supplierTotal is %s", t.Profit, want))
	}
	if err := validateSubPayments(id, "paymentsToSupplier", t.PaymentsToSupplier); err != nil {
		return err
	}
	return validateSubPayments(id, "paymentsFromBuyer", t.PaymentsFromBuyer)
}

func validateSubPayments(id, field string, ps []domain.SubPayment) error {
	for i, p := range ps {
		if p.Amount.IsNegative() {
			return invalid(id, fmt.Sprintf("%s[%d].amount", field, i), fmt.Sprintf("must not be negative, got %s", p.Amount))
		}
	}
	return nil
}

func validatePayment(p *domain.Payment) error {
	id := p.ID
	if id == "" {
		return invalid("", "id", "is required")
	}
	if p.Date.IsZero() {
		return invalid(id, "date", "is required")
	}
	if p.Name == "" {
		return invalid(id, "name", "is required")
	}
	if p.Amount.IsNegative() {
		return invalid(id, "amount", fmt.Sprintf("must not be negative, got %s", p.Amount))
	}
	if !p.PaymentType.Valid() {
		return invalid(id, "paymentType", fmt.Sprintf("unknown payment type %q, want made or received", p.PaymentType))
	}
	return nil
}

// ValidateContact checks a contact before it is stored.
func ValidateContact(c *domain.Contact) error {
	if c == nil {
		return invalid("", "contact", "is required")
	}
	if c.ID == "" {
		return invalid("", "id", "is required")
	}
	if c.Name == "" {
		return invalid(c.ID, "name", "is required")
	}
	if !c.Type.Valid() {
		return invalid(c.ID, "type", fmt.Sprintf("unknown contact type %q, want supplier or buyer", c.Type))
	}
	if ob := c.OpeningBalance; ob != nil {
		if ob.Amount.IsNegative() {
			return invalid(c.ID, "openingBalance.amount", fmt.Sprintf("must not be negative, got %s", ob.Amount))
		}
		if !ob.Type.Valid() {
			return invalid(c.ID, "openingBalance.type", fmt.Sprintf("unknown balance type %q, want payable or receivable", ob.Type))
		}
	}
	return nil
}
