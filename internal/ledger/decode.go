package ledger

import (
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/trade-ledger/internal/domain"
)

// Decode converts a wire record into a typed transaction. It fails with a
// *ValidationError when a required field is missing, a field that does not
// belong to the record's kind is present, or a value is out of range.
func Decode(rec domain.Record) (domain.Transaction, error) {
	if rec.ID == "" {
		return nil, invalid("", "id", "is required")
	}
	switch domain.Kind(rec.Type) {
	case domain.KindTrade:
		t, err := decodeTrade(rec)
		if err != nil {
			return nil, err
		}
		return t, nil
	case domain.KindPayment:
		p, err := decodePayment(rec)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "":
		return nil, invalid(rec.ID, "type", "is required")
	default:
		return nil, invalid(rec.ID, "type", fmt.Sprintf("unknown transaction type %q", rec.Type))
	}
}

// DecodeAll decodes every record, stopping at the first invalid one.
func DecodeAll(recs []domain.Record) ([]domain.Transaction, error) {
	out := make([]domain.Transaction, 0, len(recs))
	for _, rec := range recs {
		tx, err := Decode(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

func decodeTrade(rec domain.Record) (*domain.Trade, error) {
	id := rec.ID
	switch {
	case rec.Amount != nil:
		return nil, invalid(id, "amount", "must not be set on a trade")
	case rec.PaymentType != "":
		return nil, invalid(id, "paymentType", "must not be set on a trade")
	case rec.Name != "":
		return nil, invalid(id, "name", "must not be set on a trade")
	case rec.Description != "":
		return nil, invalid(id, "description", "must not be set on a trade")
	}

	date, err := requireDate(id, "date", rec.Date)
	if err != nil {
		return nil, err
	}
	for _, f := range []struct{ name, value string }{
		{"item", rec.Item},
		{"supplierName", rec.SupplierName},
		{"buyerName", rec.BuyerName},
	} {
		if f.value == "" {
			return nil, invalid(id, f.name, "is required")
		}
	}

	t := &domain.Trade{
		ID:           id,
		Date:         date,
		Item:         rec.Item,
		VehicleNo:    rec.VehicleNo,
		SupplierName: rec.SupplierName,
		BuyerName:    rec.BuyerName,
		ScaleWeight:  orZero(rec.ScaleWeight),
		Less:         orZero(rec.Less),
		SupplierRate: orZero(rec.SupplierRate),
		BuyerRate:    orZero(rec.BuyerRate),
	}

	net := rec.NetWeight
	if net == nil && rec.ScaleWeight != nil {
		n := domain.NetWeightOf(t.ScaleWeight, t.Less)
		net = &n
	}
	t.NetWeight = orZero(net)

	t.SupplierTotal, err = totalOf(id, "supplierTotal", rec.SupplierTotal, rec.SupplierRate, net)
	if err != nil {
		return nil, err
	}
	t.BuyerTotal, err = totalOf(id, "buyerTotal", rec.BuyerTotal, rec.BuyerRate, net)
	if err != nil {
		return nil, err
	}
	t.Profit = t.BuyerTotal.Sub(t.SupplierTotal)
	if rec.Profit != nil && !rec.Profit.Equal(t.Profit) {
		return nil, invalid(id, "profit", fmt.Sprintf("is %s but buyerTotal - supplierTotal is %s", rec.Profit, t.Profit))
	}

	if t.PaymentsToSupplier, err = decodeSubPayments(id, "paymentsToSupplier", rec.PaymentsToSupplier, date); err != nil {
		return nil, err
	}
	if t.PaymentsFromBuyer, err = decodeSubPayments(id, "paymentsFromBuyer", rec.PaymentsFromBuyer, date); err != nil {
		return nil, err
	}

	if err := validateTrade(t); err != nil {
		return nil, err
	}
	return t, nil
}

func decodePayment(rec domain.Record) (*domain.Payment, error) {
	id := rec.ID
	switch {
	case rec.Item != "":
		return nil, invalid(id, "item", "must not be set on a payment")
	case rec.Profit != nil:
		return nil, invalid(id, "profit", "must not be set on a payment")
	case rec.SupplierTotal != nil:
		return nil, invalid(id, "supplierTotal", "must not be set on a payment")
	case rec.BuyerTotal != nil:
		return nil, invalid(id, "buyerTotal", "must not be set on a payment")
	case len(rec.PaymentsToSupplier) > 0:
		return nil, invalid(id, "paymentsToSupplier", "must not be set on a payment")
	case len(rec.PaymentsFromBuyer) > 0:
		return nil, invalid(id, "paymentsFromBuyer", "must not be set on a payment")
	}

	date, err := requireDate(id, "date", rec.Date)
	if err != nil {
		return nil, err
	}
	if rec.Name == "" {
		return nil, invalid(id, "name", "is required")
	}
	if rec.Amount == nil {
		return nil, invalid(id, "amount", "is required")
	}
	if rec.PaymentType == "" {
		return nil, invalid(id, "paymentType", "is required")
	}

	p := &domain.Payment{
		ID:          id,
		Date:        date,
		Description: rec.Description,
		Name:        rec.Name,
		Amount:      *rec.Amount,
		PaymentType: domain.PaymentType(rec.PaymentType),
	}
	if err := validatePayment(p); err != nil {
		return nil, err
	}
	return p, nil
}

func decodeSubPayments(id, field string, recs []domain.SubPaymentRecord, tradeDate civil.Date) ([]domain.SubPayment, error) {
	if len(recs) == 0 {
		return nil, nil
	}
	out := make([]domain.SubPayment, len(recs))
	for i, r := range recs {
		name := fmt.Sprintf("%s[%d]", field, i)
		if r.Amount == nil {
			return nil, invalid(id, name+".amount", "is required")
		}
		date := tradeDate
		if r.Date != "" {
			d, err := civil.ParseDate(r.Date)
			if err != nil {
				return nil, invalid(id, name+".date", fmt.Sprintf("invalid date %q", r.Date))
			}
			date = d
		}
		out[i] = domain.SubPayment{Amount: *r.Amount, Date: date, Method: r.Method}
	}
	return out, nil
}

func totalOf(id, field string, total, rate, net *decimal.Decimal) (decimal.Decimal, error) {
	if total != nil {
		return *total, nil
	}
	if rate != nil && net != nil {
		return rate.Mul(*net), nil
	}
	return decimal.Zero, invalid(id, field, "is required")
}

func requireDate(id, field, s string) (civil.Date, error) {
	if s == "" {
		return civil.Date{}, invalid(id, field, "is required")
	}
	d, err := civil.ParseDate(s)
	if err != nil || !d.IsValid() {
		return civil.Date{}, invalid(id, field, fmt.Sprintf("invalid date %q, want YYYY-MM-DD", s))
	}
	return d, nil
}

func orZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
