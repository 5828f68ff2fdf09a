package domain

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// TradeInput is what the trade entry form collects. Totals and profit are
// derived from it by NewTrade.
type TradeInput struct {
	Date         civil.Date `json:"date"`
	Item         string     `json:"item"`
	VehicleNo    string     `json:"vehicleNo,omitempty"`
	SupplierName string     `json:"supplierName"`
	BuyerName    string     `json:"buyerName"`

	ScaleWeight decimal.Decimal `json:"scaleWeight"`
	Less        decimal.Decimal `json:"less"`
	// NetWeight overrides ScaleWeight - Less when non-zero.
	NetWeight    decimal.Decimal `json:"netWeight"`
	SupplierRate decimal.Decimal `json:"supplierRate"`
	BuyerRate    decimal.Decimal `json:"buyerRate"`

	PaymentToSupplier       decimal.Decimal `json:"paymentToSupplier"`
	PaymentToSupplierMethod string          `json:"paymentToSupplierMethod,omitempty"`
	PaymentFromBuyer        decimal.Decimal `json:"paymentFromBuyer"`
	PaymentFromBuyerMethod  string          `json:"paymentFromBuyerMethod,omitempty"`
}

// NetWeightOf returns scale weight minus the deduction, never below zero.
func NetWeightOf(scale, less decimal.Decimal) decimal.Decimal {
	return ClampZero(scale.Sub(less))
}

// NewTrade derives a Trade from form input. The result is not validated;
// pass it through ledger.Validate before storing it.
func NewTrade(id string, in TradeInput) *Trade {
	net := in.NetWeight
	if net.IsZero() {
		net = NetWeightOf(in.ScaleWeight, in.Less)
	}
	supplierTotal := net.Mul(in.SupplierRate)
	buyerTotal := net.Mul(in.BuyerRate)

	t := &Trade{
		ID:            id,
		Date:          in.Date,
		Item:          in.Item,
		VehicleNo:     in.VehicleNo,
		SupplierName:  in.SupplierName,
		BuyerName:     in.BuyerName,
		ScaleWeight:   in.ScaleWeight,
		Less:          in.Less,
		NetWeight:     net,
		SupplierRate:  in.SupplierRate,
		BuyerRate:     in.BuyerRate,
		SupplierTotal: supplierTotal,
		BuyerTotal:    buyerTotal,
		Profit:        buyerTotal.Sub(supplierTotal),
	}
	if in.PaymentToSupplier.IsPositive() {
		t.PaymentsToSupplier = []SubPayment{{
			Amount: in.PaymentToSupplier,
			Date:   in.Date,
			Method: methodOrCash(in.PaymentToSupplierMethod),
		}}
	}
	if in.PaymentFromBuyer.IsPositive() {
		t.PaymentsFromBuyer = []SubPayment{{
			Amount: in.PaymentFromBuyer,
			Date:   in.Date,
			Method: methodOrCash(in.PaymentFromBuyerMethod),
		}}
	}
	return t
}

func methodOrCash(m string) string {
	if m == "" {
		return MethodCash
	}
	return m
}
