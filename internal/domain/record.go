package domain

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Record is the loosely typed, JSON-compatible shape of a transaction as it
// arrives from clients, imports and storage. Every field is optional here;
// ledger.Decode enforces the per-kind requirements and produces a
// Transaction.
type Record struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Date string `json:"date,omitempty"`

	// trade
	Item               string             `json:"item,omitempty"`
	VehicleNo          string             `json:"vehicleNo,omitempty"`
	SupplierName       string             `json:"supplierName,omitempty"`
	BuyerName          string             `json:"buyerName,omitempty"`
	ScaleWeight        *decimal.Decimal   `json:"scaleWeight,omitempty"`
	Less               *decimal.Decimal   `json:"less,omitempty"`
	NetWeight          *decimal.Decimal   `json:"netWeight,omitempty"`
	SupplierRate       *decimal.Decimal   `json:"supplierRate,omitempty"`
	BuyerRate          *decimal.Decimal   `json:"buyerRate,omitempty"`
	SupplierTotal      *decimal.Decimal   `json:"supplierTotal,omitempty"`
	BuyerTotal         *decimal.Decimal   `json:"buyerTotal,omitempty"`
	Profit             *decimal.Decimal   `json:"profit,omitempty"`
	PaymentsToSupplier []SubPaymentRecord `json:"paymentsToSupplier,omitempty"`
	PaymentsFromBuyer  []SubPaymentRecord `json:"paymentsFromBuyer,omitempty"`

	// payment
	Description string           `json:"description,omitempty"`
	Name        string           `json:"name,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	PaymentType string           `json:"paymentType,omitempty"`
}

// SubPaymentRecord is the wire shape of a SubPayment.
type SubPaymentRecord struct {
	Amount *decimal.Decimal `json:"amount,omitempty"`
	Date   string           `json:"date,omitempty"`
	Method string           `json:"method,omitempty"`
}

// RecordOf converts a typed transaction back into its wire shape.
func RecordOf(tx Transaction) Record {
	switch v := tx.(type) {
	case *Trade:
		return Record{
			ID:                 v.ID,
			Type:               string(KindTrade),
			Date:               formatDate(v.Date),
			Item:               v.Item,
			VehicleNo:          v.VehicleNo,
			SupplierName:       v.SupplierName,
			BuyerName:          v.BuyerName,
			ScaleWeight:        ptr(v.ScaleWeight),
			Less:               ptr(v.Less),
			NetWeight:          ptr(v.NetWeight),
			SupplierRate:       ptr(v.SupplierRate),
			BuyerRate:          ptr(v.BuyerRate),
			SupplierTotal:      ptr(v.SupplierTotal),
			BuyerTotal:         ptr(v.BuyerTotal),
			Profit:             ptr(v.Profit),
			PaymentsToSupplier: subPaymentRecords(v.PaymentsToSupplier),
			PaymentsFromBuyer:  subPaymentRecords(v.PaymentsFromBuyer),
		}
	case *Payment:
		return Record{
			ID:          v.ID,
			Type:        string(KindPayment),
			Date:        formatDate(v.Date),
			Description: v.Description,
			Name:        v.Name,
			Amount:      ptr(v.Amount),
			PaymentType: string(v.PaymentType),
		}
	default:
		return Record{}
	}
}

// RecordsOf converts a slice of transactions.
func RecordsOf(txs []Transaction) []Record {
	out := make([]Record, 0, len(txs))
	for _, tx := range txs {
		out = append(out, RecordOf(tx))
	}
	return out
}

func subPaymentRecords(ps []SubPayment) []SubPaymentRecord {
	if len(ps) == 0 {
		return nil
	}
	out := make([]SubPaymentRecord, len(ps))
	for i, p := range ps {
		out[i] = SubPaymentRecord{Amount: ptr(p.Amount), Date: formatDate(p.Date), Method: p.Method}
	}
	return out
}

func formatDate(d civil.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}

func ptr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
