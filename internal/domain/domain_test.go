package domain

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestTradeBalances(t *testing.T) {
	trade := &Trade{
		ID:                 "t1",
		SupplierTotal:      dec("100"),
		BuyerTotal:         dec("150"),
		PaymentsToSupplier: []SubPayment{{Amount: dec("40")}},
	}

	if got := trade.PayableBalance(); !got.Equal(dec("60")) {
		t.Errorf("PayableBalance() = %s, want 60", got)
	}
	if got := trade.ReceivableBalance(); !got.Equal(dec("150")) {
		t.Errorf("ReceivableBalance() = %s, want 150", got)
	}

	trade.PaymentsFromBuyer = []SubPayment{{Amount: dec("100")}, {Amount: dec("60")}}
	if got := trade.ReceivableBalance(); !got.Equal(dec("-10")) {
		t.Errorf("overpaid ReceivableBalance() = %s, want -10", got)
	}
}

func TestTradeCloneIsDeep(t *testing.T) {
	orig := &Trade{ID: "t1", PaymentsToSupplier: []SubPayment{{Amount: dec("1")}}}
	c := orig.Clone()
	c.PaymentsToSupplier[0].Amount = dec("99")
	if !orig.PaymentsToSupplier[0].Amount.Equal(dec("1")) {
		t.Error("Clone shares sub-payment storage with the original")
	}
}

func TestNewTrade(t *testing.T) {
	date := civil.Date{Year: 2024, Month: 3, Day: 9}
	tests := []struct {
		name             string
		in               TradeInput
		wantNet          string
		wantSupplier     string
		wantBuyer        string
		wantProfit       string
		wantSupplierPays int
		wantBuyerPays    int
	}{
		{
			name: "scale minus less",
			in: TradeInput{
				Date: date, Item: "Rice", SupplierName: "A", BuyerName: "B",
				ScaleWeight: dec("1050.5"), Less: dec("50.5"),
				SupplierRate: dec("42.10"), BuyerRate: dec("45"),
			},
			wantNet: "1000", wantSupplier: "42100", wantBuyer: "45000", wantProfit: "2900",
		},
		{
			name: "less larger than scale clamps to zero",
			in: TradeInput{
				Date: date, Item: "Rice", SupplierName: "A", BuyerName: "B",
				ScaleWeight: dec("10"), Less: dec("20"),
				SupplierRate: dec("5"), BuyerRate: dec("6"),
			},
			wantNet: "0", wantSupplier: "0", wantBuyer: "0", wantProfit: "0",
		},
		{
			name: "explicit net weight and initial payments",
			in: TradeInput{
				Date: date, Item: "Wheat", SupplierName: "A", BuyerName: "B",
				NetWeight:    dec("10"),
				SupplierRate: dec("3"), BuyerRate: dec("2"),
				PaymentToSupplier: dec("5"), PaymentFromBuyer: dec("1"), PaymentFromBuyerMethod: MethodBkash,
			},
			wantNet: "10", wantSupplier: "30", wantBuyer: "20", wantProfit: "-10",
			wantSupplierPays: 1, wantBuyerPays: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewTrade("id", tt.in)
			if !got.NetWeight.Equal(dec(tt.wantNet)) {
				t.Errorf("NetWeight = %s, want %s", got.NetWeight, tt.wantNet)
			}
			if !got.SupplierTotal.Equal(dec(tt.wantSupplier)) {
				t.Errorf("SupplierTotal = %s, want %s", got.SupplierTotal, tt.wantSupplier)
			}
			if !got.BuyerTotal.Equal(dec(tt.wantBuyer)) {
				t.Errorf("BuyerTotal = %s, want %s", got.BuyerTotal, tt.wantBuyer)
			}
			if !got.Profit.Equal(dec(tt.wantProfit)) {
				t.Errorf("Profit = %s, want %s", got.Profit, tt.wantProfit)
			}
			if len(got.PaymentsToSupplier) != tt.wantSupplierPays {
				t.Errorf("len(PaymentsToSupplier) = %d, want %d", len(got.PaymentsToSupplier), tt.wantSupplierPays)
			}
			if len(got.PaymentsFromBuyer) != tt.wantBuyerPays {
				t.Errorf("len(PaymentsFromBuyer) = %d, want %d", len(got.PaymentsFromBuyer), tt.wantBuyerPays)
			}
			for _, p := range got.PaymentsToSupplier {
				if p.Method != MethodCash || p.Date != date {
					t.Errorf("supplier payment = %+v, want Cash on %s", p, date)
				}
			}
			for _, p := range got.PaymentsFromBuyer {
				if p.Method != MethodBkash {
					t.Errorf("buyer payment method = %q, want %q", p.Method, MethodBkash)
				}
			}
		})
	}
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "৳0.00"},
		{"1234567.891", "৳1,234,567.89"},
		{"-950.5", "-৳950.50"},
		{"-0.001", "৳0.00"},
		{"100", "৳100.00"},
	}
	for _, tt := range tests {
		if got := FormatMoney(dec(tt.in), DefaultCurrencySymbol); got != tt.want {
			t.Errorf("FormatMoney(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOpeningBalanceSigned(t *testing.T) {
	var none *OpeningBalance
	if !none.Signed().IsZero() {
		t.Error("nil opening balance should be zero")
	}
	pay := &OpeningBalance{Amount: dec("500"), Type: BalancePayable}
	if !pay.Signed().Equal(dec("-500")) {
		t.Errorf("payable Signed() = %s, want -500", pay.Signed())
	}
	rec := &OpeningBalance{Amount: dec("500"), Type: BalanceReceivable}
	if !rec.Signed().Equal(dec("500")) {
		t.Errorf("receivable Signed() = %s, want 500", rec.Signed())
	}
}

func TestRecordOfRoundTripsKind(t *testing.T) {
	p := &Payment{ID: "p1", Date: civil.Date{Year: 2024, Month: 1, Day: 2}, Name: "A", Amount: dec("50"), PaymentType: PaymentMade}
	r := RecordOf(p)
	if r.Type != "payment" || r.Date != "2024-01-02" || r.Amount == nil || !r.Amount.Equal(dec("50")) {
		t.Errorf("RecordOf(payment) = %+v", r)
	}
	if r.Item != "" || r.Profit != nil {
		t.Error("payment record carries trade fields")
	}
}

func TestTradeAddSubPayment(t *testing.T) {
	date := civil.Date{Year: 2024, Month: 5, Day: 2}
	trade := &Trade{ID: "t1", Date: date}

	if err := trade.AddSubPayment(ContactSupplier, SubPayment{Amount: dec("10"), Method: MethodCash}); err != nil {
		t.Fatalf("AddSubPayment(supplier) error = %v", err)
	}
	later := civil.Date{Year: 2024, Month: 5, Day: 9}
	if err := trade.AddSubPayment(ContactBuyer, SubPayment{Amount: dec("20"), Date: later}); err != nil {
		t.Fatalf("AddSubPayment(buyer) error = %v", err)
	}
	if err := trade.AddSubPayment(ContactType("broker"), SubPayment{Amount: dec("1")}); err == nil {
		t.Error("AddSubPayment(broker) should fail")
	}

	if len(trade.PaymentsToSupplier) != 1 || trade.PaymentsToSupplier[0].Date != date {
		t.Errorf("PaymentsToSupplier = %+v, want one payment dated %s", trade.PaymentsToSupplier, date)
	}
	if len(trade.PaymentsFromBuyer) != 1 || trade.PaymentsFromBuyer[0].Date != later {
		t.Errorf("PaymentsFromBuyer = %+v, want one payment dated %s", trade.PaymentsFromBuyer, later)
	}
}
