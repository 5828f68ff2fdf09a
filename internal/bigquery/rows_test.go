package bigquery

import (
	"math/big"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/trade-ledger/internal/domain"
	"github.com/dvloznov/trade-ledger/internal/ledger"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestTransactionRowRoundTrip(t *testing.T) {
	date := civil.Date{Year: 2024, Month: 7, Day: 1}
	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		tx   domain.Transaction
	}{
		{
			name: "trade",
			tx: domain.NewTrade("t1", domain.TradeInput{
				Date: date, Item: "Paddy", VehicleNo: "DHA-11", SupplierName: "A", BuyerName: "B",
				ScaleWeight: dec("1020.125"), Less: dec("20.125"),
				SupplierRate: dec("31.5"), BuyerRate: dec("33.25"),
				PaymentToSupplier: dec("5000"), PaymentFromBuyer: dec("0.01"),
			}),
		},
		{
			name: "payment",
			tx: &domain.Payment{ID: "p1", Date: date, Name: "A", Description: "advance",
				Amount: dec("123.456789"), PaymentType: domain.PaymentReceived},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row, err := NewTransactionRow("owner", tt.tx, now)
			if err != nil {
				t.Fatalf("NewTransactionRow() error = %v", err)
			}
			if row.OwnerID != "owner" || row.Kind != string(tt.tx.Kind()) {
				t.Errorf("row = %+v", row)
			}
			rec, err := row.Record()
			if err != nil {
				t.Fatalf("Record() error = %v", err)
			}
			got, err := ledger.Decode(rec)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			want := domain.RecordOf(tt.tx)
			have := domain.RecordOf(got)
			if !sameDecimal(want.SupplierTotal, have.SupplierTotal) ||
				!sameDecimal(want.BuyerTotal, have.BuyerTotal) ||
				!sameDecimal(want.Amount, have.Amount) ||
				len(want.PaymentsToSupplier) != len(have.PaymentsToSupplier) ||
				want.Name != have.Name || want.Item != have.Item || want.Date != have.Date {
				t.Errorf("round trip mismatch:\nwant %+v\ngot  %+v", want, have)
			}
		})
	}
}

func TestTradeRowHasNoPaymentColumns(t *testing.T) {
	tr := &domain.Trade{ID: "t1", Date: civil.Date{Year: 2024, Month: 1, Day: 1}, Item: "x", SupplierName: "A", BuyerName: "B",
		PaymentsToSupplier: []domain.SubPayment{{Amount: dec("1")}}}
	row, err := NewTransactionRow("o", tr, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if row.Amount != nil || row.PaymentType.Valid || row.Name.Valid {
		t.Errorf("trade row carries payment columns: %+v", row)
	}
	if row.PaymentsToSupplier[0].PaymentDate != tr.Date {
		t.Errorf("undated sub-payment stored as %s, want trade date", row.PaymentsToSupplier[0].PaymentDate)
	}
}

func TestContactRowRoundTrip(t *testing.T) {
	c := &domain.Contact{ID: "c1", Name: "Karim", Type: domain.ContactSupplier, Phone: "017",
		OpeningBalance: &domain.OpeningBalance{Amount: dec("250.5"), Type: domain.BalancePayable}}
	got, err := NewContactRow("o", c, time.Now()).Contact()
	if err != nil {
		t.Fatalf("Contact() error = %v", err)
	}
	if got.Name != c.Name || got.Type != c.Type || got.Phone != c.Phone {
		t.Errorf("Contact() = %+v", got)
	}
	if got.OpeningBalance == nil || !got.OpeningBalance.Amount.Equal(dec("250.5")) || got.OpeningBalance.Type != domain.BalancePayable {
		t.Errorf("OpeningBalance = %+v", got.OpeningBalance)
	}

	plain, err := NewContactRow("o", &domain.Contact{ID: "c2", Name: "B", Type: domain.ContactBuyer}, time.Now()).Contact()
	if err != nil || plain.OpeningBalance != nil {
		t.Errorf("contact without opening balance = %+v, %v", plain, err)
	}
}

func TestRatToDecimal(t *testing.T) {
	r := new(big.Rat).SetFrac64(1, 8)
	d, err := RatToDecimal(r)
	if err != nil || !d.Equal(dec("0.125")) {
		t.Errorf("RatToDecimal(1/8) = %s, %v", d, err)
	}
	z, err := RatToDecimal(nil)
	if err != nil || !z.IsZero() {
		t.Errorf("RatToDecimal(nil) = %s, %v", z, err)
	}
}

func sameDecimal(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
