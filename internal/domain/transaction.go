package domain

import (
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Kind identifies the variant of a Transaction.
type Kind string

const (
	KindTrade   Kind = "trade"
	KindPayment Kind = "payment"
)

// PaymentType is the direction of a standalone payment.
type PaymentType string

const (
	PaymentMade     PaymentType = "made"
	PaymentReceived PaymentType = "received"
)

// Valid reports whether t is one of the known payment directions.
func (t PaymentType) Valid() bool {
	return t == PaymentMade || t == PaymentReceived
}

// Payment methods offered by the entry form. Any other non-empty string is
// kept as entered.
const (
	MethodCash   = "Cash"
	MethodBank   = "Bank"
	MethodBkash  = "Bkash"
	MethodRocket = "Rocket"
	MethodNagod  = "Nagod"
)

// Transaction is one ledger entry. The set of implementations is closed:
// *Trade and *Payment.
type Transaction interface {
	TransactionID() string
	TransactionDate() civil.Date
	Kind() Kind
	isTransaction()
}

// SubPayment settles part of one side of a trade.
type SubPayment struct {
	Amount decimal.Decimal `json:"amount"`
	Date   civil.Date      `json:"date"`
	Method string          `json:"method,omitempty"`
}

// Trade moves goods from a supplier to a buyer. The two settlement tracks are
// independent of each other.
type Trade struct {
	ID           string     `json:"id"`
	Date         civil.Date `json:"date"`
	Item         string     `json:"item"`
	VehicleNo    string     `json:"vehicleNo,omitempty"`
	SupplierName string     `json:"supplierName"`
	BuyerName    string     `json:"buyerName"`

	ScaleWeight  decimal.Decimal `json:"scaleWeight"`
	Less         decimal.Decimal `json:"less"`
	NetWeight    decimal.Decimal `json:"netWeight"`
	SupplierRate decimal.Decimal `json:"supplierRate"`
	BuyerRate    decimal.Decimal `json:"buyerRate"`

	SupplierTotal decimal.Decimal `json:"supplierTotal"`
	BuyerTotal    decimal.Decimal `json:"buyerTotal"`
	Profit        decimal.Decimal `json:"profit"`

	PaymentsToSupplier []SubPayment `json:"paymentsToSupplier"`
	PaymentsFromBuyer  []SubPayment `json:"paymentsFromBuyer"`
}

func (t *Trade) TransactionID() string       { return t.ID }
func (t *Trade) TransactionDate() civil.Date { return t.Date }
func (t *Trade) Kind() Kind                  { return KindTrade }
func (t *Trade) isTransaction()              {}

// PaidToSupplier is the sum of all payments made on the supplier side.
func (t *Trade) PaidToSupplier() decimal.Decimal {
	return SumSubPayments(t.PaymentsToSupplier)
}

// ReceivedFromBuyer is the sum of all payments received on the buyer side.
func (t *Trade) ReceivedFromBuyer() decimal.Decimal {
	return SumSubPayments(t.PaymentsFromBuyer)
}

// PayableBalance is what is still owed to the supplier. Negative means the
// supplier was overpaid.
func (t *Trade) PayableBalance() decimal.Decimal {
	return t.SupplierTotal.Sub(t.PaidToSupplier())
}

// ReceivableBalance is what the buyer still owes. Negative means the buyer
// overpaid.
func (t *Trade) ReceivableBalance() decimal.Decimal {
	return t.BuyerTotal.Sub(t.ReceivedFromBuyer())
}

// Clone returns a deep copy of the trade.
func (t *Trade) Clone() *Trade {
	c := *t
	c.PaymentsToSupplier = append([]SubPayment(nil), t.PaymentsToSupplier...)
	c.PaymentsFromBuyer = append([]SubPayment(nil), t.PaymentsFromBuyer...)
	return &c
}

// AddSubPayment appends p to the supplier or buyer side of the trade. An
// undated payment takes the trade date.
func (t *Trade) AddSubPayment(side ContactType, p SubPayment) error {
	if p.Date.IsZero() {
		p.Date = t.Date
	}
	switch side {
	case ContactSupplier:
		t.PaymentsToSupplier = append(t.PaymentsToSupplier, p)
	case ContactBuyer:
		t.PaymentsFromBuyer = append(t.PaymentsFromBuyer, p)
	default:
		return fmt.Errorf("AddSubPayment: unknown side %q", side)
	}
	return nil
}

// Payment is a standalone movement of money to or from a counterparty,
// recorded outside of any trade.
type Payment struct {
	ID          string          `json:"id"`
	Date        civil.Date      `json:"date"`
	Description string          `json:"description"`
	Name        string          `json:"name"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentType PaymentType     `json:"paymentType"`
}

func (p *Payment) TransactionID() string       { return p.ID }
func (p *Payment) TransactionDate() civil.Date { return p.Date }
func (p *Payment) Kind() Kind                  { return KindPayment }
func (p *Payment) isTransaction()              {}

// Clone returns a copy of the payment.
func (p *Payment) Clone() *Payment {
	c := *p
	return &c
}

// SumSubPayments adds up the amounts of ps.
func SumSubPayments(ps []SubPayment) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range ps {
		sum = sum.Add(p.Amount)
	}
	return sum
}

// CloneTransaction returns a deep copy of tx.
func CloneTransaction(tx Transaction) Transaction {
	switch v := tx.(type) {
	case *Trade:
		return v.Clone()
	case *Payment:
		return v.Clone()
	default:
		return tx
	}
}

// InvolvesParty reports whether name appears as a counterparty of tx.
func InvolvesParty(tx Transaction, name string) bool {
	switch v := tx.(type) {
	case *Trade:
		return v.SupplierName == name || v.BuyerName == name
	case *Payment:
		return v.Name == name
	default:
		return false
	}
}
