package ledger

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/dvloznov/trade-ledger/internal/domain"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name      string
		json      string
		wantKind  domain.Kind
		wantErr   bool
		wantField string
	}{
		{
			name:     "trade with totals",
			json:     `{"id":"t1","type":"trade","date":"2024-05-01","item":"Rice","supplierName":"A","buyerName":"B","supplierTotal":100,"buyerTotal":150,"paymentsToSupplier":[{"amount":40}]}`,
			wantKind: domain.KindTrade,
		},
		{
			name:     "trade derives totals from rates",
			json:     `{"id":"t1","type":"trade","date":"2024-05-01","item":"Rice","supplierName":"A","buyerName":"B","netWeight":"10","supplierRate":"4.5","buyerRate":"5"}`,
			wantKind: domain.KindTrade,
		},
		{
			name:     "trade derives net weight from scale",
			json:     `{"id":"t1","type":"trade","date":"2024-05-01","item":"Rice","supplierName":"A","buyerName":"B","scaleWeight":12,"less":2,"supplierRate":4,"buyerRate":5}`,
			wantKind: domain.KindTrade,
		},
		{
			name:     "payment",
			json:     `{"id":"p1","type":"payment","date":"2024-05-01","name":"A","description":"advance","amount":"50.25","paymentType":"made"}`,
			wantKind: domain.KindPayment,
		},
		{
			name:      "missing id",
			json:      `{"type":"payment"}`,
			wantErr:   true,
			wantField: "id",
		},
		{
			name:      "missing type",
			json:      `{"id":"x"}`,
			wantErr:   true,
			wantField: "type",
		},
		{
			name:      "unknown type",
			json:      `{"id":"x","type":"transfer"}`,
			wantErr:   true,
			wantField: "type",
		},
		{
			name:      "trade missing supplierTotal",
			json:      `{"id":"t1","type":"trade","date":"2024-05-01","item":"Rice","supplierName":"A","buyerName":"B","buyerTotal":150}`,
			wantErr:   true,
			wantField: "supplierTotal",
		},
		{
			name:      "trade with payment fields",
			json:      `{"id":"t1","type":"trade","date":"2024-05-01","item":"Rice","supplierName":"A","buyerName":"B","supplierTotal":1,"buyerTotal":2,"amount":5}`,
			wantErr:   true,
			wantField: "amount",
		},
		{
			name:      "trade with same parties",
			json:      `{"id":"t1","type":"trade","date":"2024-05-01","item":"Rice","supplierName":"A","buyerName":"A","supplierTotal":1,"buyerTotal":2}`,
			wantErr:   true,
			wantField: "buyerName",
		},
		{
			name:      "trade with wrong profit",
			json:      `{"id":"t1","type":"trade","date":"2024-05-01","item":"Rice","supplierName":"A","buyerName":"B","supplierTotal":100,"buyerTotal":150,"profit":60}`,
			wantErr:   true,
			wantField: "profit",
		},
		{
			name:      "trade with negative total",
			json:      `{"id":"t1","type":"trade","date":"2024-05-01","item":"Rice","supplierName":"A","buyerName":"B","supplierTotal":-1,"buyerTotal":2}`,
			wantErr:   true,
			wantField: "supplierTotal",
		},
		{
			name:      "sub-payment without amount",
			json:      `{"id":"t1","type":"trade","date":"2024-05-01","item":"Rice","supplierName":"A","buyerName":"B","supplierTotal":1,"buyerTotal":2,"paymentsFromBuyer":[{"method":"Cash"}]}`,
			wantErr:   true,
			wantField: "paymentsFromBuyer[0].amount",
		},
		{
			name:      "bad date",
			json:      `{"id":"t1","type":"trade","date":"05/01/2024","item":"Rice","supplierName":"A","buyerName":"B","supplierTotal":1,"buyerTotal":2}`,
			wantErr:   true,
			wantField: "date",
		},
		{
			name:      "payment with item",
			json:      `{"id":"p1","type":"payment","date":"2024-05-01","name":"A","amount":1,"paymentType":"made","item":"Rice"}`,
			wantErr:   true,
			wantField: "item",
		},
		{
			name:      "payment with negative amount",
			json:      `{"id":"p1","type":"payment","date":"2024-05-01","name":"A","amount":-1,"paymentType":"made"}`,
			wantErr:   true,
			wantField: "amount",
		},
		{
			name:      "payment with unknown type",
			json:      `{"id":"p1","type":"payment","date":"2024-05-01","name":"A","amount":1,"paymentType":"refund"}`,
			wantErr:   true,
			wantField: "paymentType",
		},
		{
			name:      "payment missing amount",
			json:      `{"id":"p1","type":"payment","date":"2024-05-01","name":"A","paymentType":"received"}`,
			wantErr:   true,
			wantField: "amount",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec domain.Record
			if err := json.Unmarshal([]byte(tt.json), &rec); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			tx, err := Decode(rec)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("Decode() error = %T, want *ValidationError", err)
				}
				if verr.Field != tt.wantField {
					t.Errorf("Field = %q, want %q", verr.Field, tt.wantField)
				}
				if tx != nil {
					t.Errorf("Decode() returned %v alongside an error", tx)
				}
				return
			}
			if tx.Kind() != tt.wantKind {
				t.Errorf("Kind() = %s, want %s", tx.Kind(), tt.wantKind)
			}
		})
	}
}

func TestDecodeDerivedValues(t *testing.T) {
	var rec domain.Record
	raw := `{"id":"t1","type":"trade","date":"2024-05-01","item":"Rice","supplierName":"A","buyerName":"B","scaleWeight":12,"less":2,"supplierRate":"4.10","buyerRate":5,"paymentsToSupplier":[{"amount":1,"method":"Bkash"}]}`
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	tx, err := Decode(rec)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	tr := tx.(*domain.Trade)
	checkDec(t, "NetWeight", tr.NetWeight, "10")
	checkDec(t, "SupplierTotal", tr.SupplierTotal, "41")
	checkDec(t, "BuyerTotal", tr.BuyerTotal, "50")
	checkDec(t, "Profit", tr.Profit, "9")
	if got := tr.PaymentsToSupplier[0]; got.Date != tr.Date || got.Method != "Bkash" {
		t.Errorf("sub-payment = %+v, want trade date and Bkash", got)
	}
}

func TestDecodeRecordOfRoundTrip(t *testing.T) {
	orig := trade("t1", "100", "150", []string{"40"}, []string{"150"})
	tx, err := Decode(domain.RecordOf(orig))
	if err != nil {
		t.Fatalf("Decode(RecordOf()) error = %v", err)
	}
	got := tx.(*domain.Trade)
	if !got.PayableBalance().Equal(orig.PayableBalance()) || !got.ReceivableBalance().Equal(orig.ReceivableBalance()) {
		t.Errorf("round trip changed balances: %+v", got)
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{RecordID: "t9", Field: "supplierTotal", Reason: "is required"}
	want := "record t9: field supplierTotal: is required"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestValidateContact(t *testing.T) {
	tests := []struct {
		name    string
		c       *domain.Contact
		wantErr bool
	}{
		{"valid", &domain.Contact{ID: "c1", Name: "A", Type: domain.ContactSupplier}, false},
		{"with opening", &domain.Contact{ID: "c1", Name: "A", Type: domain.ContactBuyer,
			OpeningBalance: &domain.OpeningBalance{Amount: dec("10"), Type: domain.BalanceReceivable}}, false},
		{"missing name", &domain.Contact{ID: "c1", Type: domain.ContactSupplier}, true},
		{"bad type", &domain.Contact{ID: "c1", Name: "A", Type: "broker"}, true},
		{"negative opening", &domain.Contact{ID: "c1", Name: "A", Type: domain.ContactBuyer,
			OpeningBalance: &domain.OpeningBalance{Amount: dec("-10"), Type: domain.BalancePayable}}, true},
		{"nil", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateContact(tt.c); (err != nil) != tt.wantErr {
				t.Errorf("ValidateContact() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
