package domain

import "github.com/shopspring/decimal"

// ContactType says on which side of trades a party usually appears.
type ContactType string

const (
	ContactSupplier ContactType = "supplier"
	ContactBuyer    ContactType = "buyer"
)

func (t ContactType) Valid() bool {
	return t == ContactSupplier || t == ContactBuyer
}

// BalanceType is the direction of an opening balance.
type BalanceType string

const (
	BalancePayable    BalanceType = "payable"
	BalanceReceivable BalanceType = "receivable"
)

func (t BalanceType) Valid() bool {
	return t == BalancePayable || t == BalanceReceivable
}

// OpeningBalance is carried over from before the ledger started.
type OpeningBalance struct {
	Amount decimal.Decimal `json:"amount"`
	Type   BalanceType     `json:"type"`
}

// Signed returns the balance as seen by the ledger owner: positive when the
// party owes us, negative when we owe them.
func (b *OpeningBalance) Signed() decimal.Decimal {
	if b == nil {
		return decimal.Zero
	}
	if b.Type == BalancePayable {
		return b.Amount.Neg()
	}
	return b.Amount
}

// Contact is a supplier or buyer the owner trades with.
type Contact struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Type           ContactType     `json:"type"`
	Phone          string          `json:"phone,omitempty"`
	OpeningBalance *OpeningBalance `json:"openingBalance,omitempty"`
}

// Clone returns a deep copy of the contact.
func (c *Contact) Clone() *Contact {
	out := *c
	if c.OpeningBalance != nil {
		ob := *c.OpeningBalance
		out.OpeningBalance = &ob
	}
	return &out
}
