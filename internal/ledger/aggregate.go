// Package ledger computes balances and totals over snapshots of trades and
// payments. Every function here is pure: it reads its arguments, never
// mutates them, and keeps no state between calls.
package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/dvloznov/trade-ledger/internal/domain"
)

// TradeBalance is the outstanding position of a single trade. Negative
// balances mean the side was overpaid.
type TradeBalance struct {
	ID                string          `json:"id"`
	PaidToSupplier    decimal.Decimal `json:"paidToSupplier"`
	ReceivedFromBuyer decimal.Decimal `json:"receivedFromBuyer"`
	PayableBalance    decimal.Decimal `json:"payableBalance"`
	ReceivableBalance decimal.Decimal `json:"receivableBalance"`
}

// Summary is the result of aggregating a ledger snapshot.
//
// TotalPayable and TotalReceivable add up per-trade balances clamped at
// zero, so an overpaid trade never offsets another trade's debt.
// NetBalance is TotalReceivable - TotalPayable. GrossProfit is the plain sum
// of trade profits and is reported separately.
//
// Standalone payments are settlement records between the owner and a party.
// They do not change any trade's balance and are not part of the totals.
type Summary struct {
	TotalPayable    decimal.Decimal `json:"totalPayable"`
	TotalReceivable decimal.Decimal `json:"totalReceivable"`
	NetBalance      decimal.Decimal `json:"netBalance"`
	GrossProfit     decimal.Decimal `json:"grossProfit"`
	TradeCount      int             `json:"tradeCount"`
	PaymentCount    int             `json:"paymentCount"`
	Balances        []TradeBalance  `json:"balances"`
}

// Aggregate computes a Summary in one pass over txs. The first invalid
// transaction aborts the computation with a *ValidationError and no summary.
func Aggregate(txs []domain.Transaction) (*Summary, error) {
	s := &Summary{
		TotalPayable:    decimal.Zero,
		TotalReceivable: decimal.Zero,
		GrossProfit:     decimal.Zero,
		Balances:        make([]TradeBalance, 0, len(txs)),
	}

	for _, tx := range txs {
		if err := Validate(tx); err != nil {
			return nil, err
		}
		switch v := tx.(type) {
		case *domain.Trade:
			b := BalanceOf(v)
			s.Balances = append(s.Balances, b)
			s.TotalPayable = s.TotalPayable.Add(domain.ClampZero(b.PayableBalance))
			s.TotalReceivable = s.TotalReceivable.Add(domain.ClampZero(b.ReceivableBalance))
			s.GrossProfit = s.GrossProfit.Add(v.Profit)
			s.TradeCount++
		case *domain.Payment:
			s.PaymentCount++
		}
	}

	s.NetBalance = s.TotalReceivable.Sub(s.TotalPayable)
	return s, nil
}

// AggregateRecords decodes recs and aggregates them.
func AggregateRecords(recs []domain.Record) (*Summary, error) {
	txs, err := DecodeAll(recs)
	if err != nil {
		return nil, err
	}
	return Aggregate(txs)
}

// BalanceOf returns the outstanding balances of a single trade.
func BalanceOf(t *domain.Trade) TradeBalance {
	paid := t.PaidToSupplier()
	received := t.ReceivedFromBuyer()
	return TradeBalance{
		ID:                t.ID,
		PaidToSupplier:    paid,
		ReceivedFromBuyer: received,
		PayableBalance:    t.SupplierTotal.Sub(paid),
		ReceivableBalance: t.BuyerTotal.Sub(received),
	}
}

// BalanceByID returns the balance for the trade with the given id.
func (s *Summary) BalanceByID(id string) (TradeBalance, bool) {
	for _, b := range s.Balances {
		if b.ID == id {
			return b, true
		}
	}
	return TradeBalance{}, false
}
