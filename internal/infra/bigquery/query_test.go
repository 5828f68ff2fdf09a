package bigquery

import (
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	bq "github.com/dvloznov/trade-ledger/internal/bigquery"
	"github.com/dvloznov/trade-ledger/internal/domain"
)

func TestBuildMerge(t *testing.T) {
	sql, params := buildMerge("`p.d.contacts`",
		[]column{{"owner_id", "o1"}, {"contact_id", "c1"}},
		[]column{
			{"name", "Karim"},
			{"opening_amount", sqlNull},
			{"created_ts", "ts"},
		},
	)

	for _, want := range []string{
		"MERGE `p.d.contacts` T",
		"USING (SELECT @owner_id AS owner_id, @contact_id AS contact_id) S",
		"ON T.owner_id = S.owner_id AND T.contact_id = S.contact_id",
		"UPDATE SET name = @name, opening_amount = NULL",
		"INSERT (owner_id, contact_id, name, opening_amount, created_ts) VALUES (S.owner_id, S.contact_id, @name, NULL, @created_ts)",
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("buildMerge() SQL missing %q:\n%s", want, sql)
		}
	}
	if strings.Contains(sql, "created_ts = ") {
		t.Errorf("created_ts must not be updated on match:\n%s", sql)
	}

	var names []string
	for _, p := range params {
		names = append(names, p.Name)
	}
	if got := strings.Join(names, ","); got != "owner_id,contact_id,name,created_ts" {
		t.Errorf("params = %s", got)
	}
}

func TestTransactionAssignmentsByKind(t *testing.T) {
	tests := []struct {
		name      string
		kind      string
		nullCols  []string
		boundCols []string
	}{
		{
			name:      "trade",
			kind:      "trade",
			nullCols:  []string{"amount"},
			boundCols: []string{"supplier_total", "payments_to_supplier"},
		},
		{
			name:      "payment",
			kind:      "payment",
			nullCols:  []string{"supplier_total", "profit"},
			boundCols: []string{"amount"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cols := map[string]interface{}{}
			for _, c := range transactionAssignments(rowOfKind(tt.kind)) {
				cols[c.name] = c.value
			}
			for _, n := range tt.nullCols {
				if cols[n] != sqlNull {
					t.Errorf("%s = %v, want NULL", n, cols[n])
				}
			}
			for _, n := range tt.boundCols {
				if _, ok := cols[n].(literal); ok {
					t.Errorf("%s is a literal, want a bound parameter", n)
				}
			}
		})
	}
}

func rowOfKind(kind string) *bq.TransactionRow {
	date := civil.Date{Year: 2024, Month: 3, Day: 1}
	var tx domain.Transaction = &domain.Payment{ID: "p1", Date: date, Name: "A",
		Amount: decimal.NewFromInt(10), PaymentType: domain.PaymentMade}
	if kind == "trade" {
		tx = &domain.Trade{ID: "t1", Date: date, Item: "Rice", SupplierName: "A", BuyerName: "B",
			SupplierTotal: decimal.NewFromInt(100), BuyerTotal: decimal.NewFromInt(120), Profit: decimal.NewFromInt(20)}
	}
	row, err := bq.NewTransactionRow("o1", tx, time.Now())
	if err != nil {
		panic(err)
	}
	return row
}

func TestBuildAppendSubPayment(t *testing.T) {
	tests := []struct {
		side    domain.ContactType
		wantCol string
	}{
		{domain.ContactSupplier, "payments_to_supplier"},
		{domain.ContactBuyer, "payments_from_buyer"},
	}
	for _, tt := range tests {
		t.Run(string(tt.side), func(t *testing.T) {
			col, err := subPaymentColumn(tt.side)
			if err != nil || col != tt.wantCol {
				t.Fatalf("subPaymentColumn(%s) = %q, %v; want %q", tt.side, col, err, tt.wantCol)
			}

			row := bq.SubPaymentRow{Amount: decimal.NewFromInt(500).Rat(), PaymentDate: civil.Date{Year: 2024, Month: 5, Day: 2}, Method: "Bkash"}
			sql, params := buildAppendSubPayment("`p.d.transactions`", col, "o1", "t1", row)

			for _, want := range []string{
				"UPDATE `p.d.transactions`",
				"SET " + col + " = ARRAY_CONCAT(" + col + ", [STRUCT(@amount AS amount, @payment_date AS payment_date, @method AS method)])",
				"WHERE owner_id = @owner_id AND transaction_id = @transaction_id AND kind = @kind",
			} {
				if !strings.Contains(sql, want) {
					t.Errorf("SQL missing %q:\n%s", want, sql)
				}
			}

			got := map[string]interface{}{}
			for _, p := range params {
				got[p.Name] = p.Value
			}
			if got["kind"] != "trade" || got["owner_id"] != "o1" || got["transaction_id"] != "t1" || got["method"] != "Bkash" {
				t.Errorf("params = %v", got)
			}
		})
	}

	if _, err := subPaymentColumn(domain.ContactType("broker")); err == nil {
		t.Error("subPaymentColumn(broker) should fail")
	}
}
