package ledger

import (
	"errors"
	"math/rand"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/trade-ledger/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(d int) civil.Date {
	return civil.Date{Year: 2024, Month: 5, Day: d}
}

func trade(id string, supplierTotal, buyerTotal string, toSupplier, fromBuyer []string) *domain.Trade {
	t := &domain.Trade{
		ID:            id,
		Date:          day(1),
		Item:          "Rice",
		SupplierName:  "Karim Traders",
		BuyerName:     "Rahim Store",
		SupplierTotal: dec(supplierTotal),
		BuyerTotal:    dec(buyerTotal),
	}
	t.Profit = t.BuyerTotal.Sub(t.SupplierTotal)
	for _, a := range toSupplier {
		t.PaymentsToSupplier = append(t.PaymentsToSupplier, domain.SubPayment{Amount: dec(a), Date: day(2)})
	}
	for _, a := range fromBuyer {
		t.PaymentsFromBuyer = append(t.PaymentsFromBuyer, domain.SubPayment{Amount: dec(a), Date: day(2)})
	}
	return t
}

func payment(id, name, amount string, typ domain.PaymentType) *domain.Payment {
	return &domain.Payment{ID: id, Date: day(3), Name: name, Amount: dec(amount), PaymentType: typ}
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name           string
		txs            []domain.Transaction
		wantPayable    string
		wantReceivable string
		wantNet        string
		wantProfit     string
		wantTrades     int
		wantPayments   int
	}{
		{
			name:           "empty ledger",
			txs:            nil,
			wantPayable:    "0",
			wantReceivable: "0",
			wantNet:        "0",
			wantProfit:     "0",
		},
		{
			name:           "single partially paid trade",
			txs:            []domain.Transaction{trade("t1", "100", "150", []string{"40"}, nil)},
			wantPayable:    "60",
			wantReceivable: "150",
			wantNet:        "90",
			wantProfit:     "50",
			wantTrades:     1,
		},
		{
			name: "standalone payment does not touch totals",
			txs: []domain.Transaction{
				trade("t1", "100", "150", []string{"40"}, nil),
				payment("p1", "Karim Traders", "50", domain.PaymentMade),
			},
			wantPayable:    "60",
			wantReceivable: "150",
			wantNet:        "90",
			wantProfit:     "50",
			wantTrades:     1,
			wantPayments:   1,
		},
		{
			name: "overpaid trade is clamped and does not offset others",
			txs: []domain.Transaction{
				trade("t1", "100", "150", []string{"120"}, []string{"200"}),
				trade("t2", "80", "90", nil, []string{"10"}),
			},
			wantPayable:    "80",
			wantReceivable: "80",
			wantNet:        "0",
			wantProfit:     "60",
			wantTrades:     2,
		},
		{
			name: "fractional amounts stay exact",
			txs: []domain.Transaction{
				trade("t1", "0.3", "0.6", []string{"0.1", "0.1", "0.1"}, []string{"0.2", "0.2"}),
			},
			wantPayable:    "0",
			wantReceivable: "0.2",
			wantNet:        "0.2",
			wantProfit:     "0.3",
			wantTrades:     1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Aggregate(tt.txs)
			if err != nil {
				t.Fatalf("Aggregate() error = %v", err)
			}
			checkDec(t, "TotalPayable", got.TotalPayable, tt.wantPayable)
			checkDec(t, "TotalReceivable", got.TotalReceivable, tt.wantReceivable)
			checkDec(t, "NetBalance", got.NetBalance, tt.wantNet)
			checkDec(t, "GrossProfit", got.GrossProfit, tt.wantProfit)
			if got.TradeCount != tt.wantTrades || got.PaymentCount != tt.wantPayments {
				t.Errorf("counts = %d trades, %d payments, want %d, %d",
					got.TradeCount, got.PaymentCount, tt.wantTrades, tt.wantPayments)
			}
			if len(got.Balances) != tt.wantTrades {
				t.Errorf("len(Balances) = %d, want %d", len(got.Balances), tt.wantTrades)
			}
		})
	}
}

func TestAggregatePerTradeBalances(t *testing.T) {
	tr := trade("t1", "100", "150", []string{"40"}, nil)
	got, err := Aggregate([]domain.Transaction{tr})
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	b, ok := got.BalanceByID("t1")
	if !ok {
		t.Fatal("no balance for t1")
	}
	checkDec(t, "PayableBalance", b.PayableBalance, "60")
	checkDec(t, "ReceivableBalance", b.ReceivableBalance, "150")

	// payable + paid reconstructs the supplier total exactly
	if !b.PayableBalance.Add(b.PaidToSupplier).Equal(tr.SupplierTotal) {
		t.Errorf("payable %s + paid %s != supplierTotal %s", b.PayableBalance, b.PaidToSupplier, tr.SupplierTotal)
	}
}

func TestAggregateKeepsNegativeBalancePerTrade(t *testing.T) {
	got, err := Aggregate([]domain.Transaction{trade("t1", "100", "150", []string{"130"}, nil)})
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	checkDec(t, "PayableBalance", got.Balances[0].PayableBalance, "-30")
	checkDec(t, "TotalPayable", got.TotalPayable, "0")
}

func TestAggregateOrderIndependent(t *testing.T) {
	txs := []domain.Transaction{
		trade("t1", "100", "150", []string{"40"}, nil),
		trade("t2", "1000.25", "1100.75", []string{"500", "500.25"}, []string{"1100.75"}),
		trade("t3", "10", "12", nil, []string{"20"}),
		payment("p1", "Karim Traders", "50", domain.PaymentMade),
		payment("p2", "Rahim Store", "75.5", domain.PaymentReceived),
	}
	want, err := Aggregate(txs)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := append([]domain.Transaction(nil), txs...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		got, err := Aggregate(shuffled)
		if err != nil {
			t.Fatalf("Aggregate() error = %v", err)
		}
		if !got.TotalPayable.Equal(want.TotalPayable) ||
			!got.TotalReceivable.Equal(want.TotalReceivable) ||
			!got.NetBalance.Equal(want.NetBalance) ||
			!got.GrossProfit.Equal(want.GrossProfit) {
			t.Fatalf("permutation %d changed totals: got %+v, want %+v", i, got, want)
		}
	}
}

func TestAggregateIdempotentAndPure(t *testing.T) {
	tr := trade("t1", "100", "150", []string{"40"}, []string{"10"})
	txs := []domain.Transaction{tr}

	first, err := Aggregate(txs)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	second, err := Aggregate(txs)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if !first.TotalPayable.Equal(second.TotalPayable) || !first.TotalReceivable.Equal(second.TotalReceivable) {
		t.Errorf("repeated Aggregate() differs: %+v vs %+v", first, second)
	}
	if len(tr.PaymentsToSupplier) != 1 || !tr.SupplierTotal.Equal(dec("100")) {
		t.Error("Aggregate() mutated its input")
	}

	// results are independent values
	first.Balances[0].PayableBalance = dec("999")
	if second.Balances[0].PayableBalance.Equal(dec("999")) {
		t.Error("summaries share balance storage")
	}
}

func TestAggregateFailsFast(t *testing.T) {
	tests := []struct {
		name      string
		txs       []domain.Transaction
		wantID    string
		wantField string
	}{
		{
			name: "negative sub-payment",
			txs: []domain.Transaction{
				trade("t1", "100", "150", nil, nil),
				trade("t2", "100", "150", []string{"-5"}, nil),
			},
			wantID:    "t2",
			wantField: "paymentsToSupplier[0].amount",
		},
		{
			name:      "negative payment amount",
			txs:       []domain.Transaction{payment("p1", "A", "-1", domain.PaymentMade)},
			wantID:    "p1",
			wantField: "amount",
		},
		{
			name:      "unknown payment type",
			txs:       []domain.Transaction{payment("p1", "A", "1", "refund")},
			wantID:    "p1",
			wantField: "paymentType",
		},
		{
			name:      "nil transaction",
			txs:       []domain.Transaction{nil},
			wantField: "type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Aggregate(tt.txs)
			if got != nil {
				t.Errorf("Aggregate() returned partial summary %+v", got)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Aggregate() error = %v, want *ValidationError", err)
			}
			if verr.RecordID != tt.wantID || verr.Field != tt.wantField {
				t.Errorf("ValidationError = {%q, %q}, want {%q, %q}", verr.RecordID, verr.Field, tt.wantID, tt.wantField)
			}
		})
	}
}

func TestAggregateRecordsMissingSupplierTotal(t *testing.T) {
	recs := []domain.Record{
		{
			ID: "t1", Type: "trade", Date: "2024-05-01", Item: "Rice",
			SupplierName: "A", BuyerName: "B", BuyerTotal: decPtr("150"),
		},
	}
	got, err := AggregateRecords(recs)
	if got != nil {
		t.Errorf("AggregateRecords() returned partial summary %+v", got)
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("AggregateRecords() error = %v, want *ValidationError", err)
	}
	if verr.RecordID != "t1" || verr.Field != "supplierTotal" {
		t.Errorf("ValidationError = %+v, want t1/supplierTotal", verr)
	}
}

func checkDec(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Errorf("%s = %s, want %s", name, got, want)
	}
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}
