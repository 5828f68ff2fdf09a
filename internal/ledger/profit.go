package ledger

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/trade-ledger/internal/domain"
)

// MonthProfit is the summed trade profit for one calendar month.
type MonthProfit struct {
	Month  string          `json:"month"` // YYYY-MM
	Profit decimal.Decimal `json:"profit"`
}

// MonthlyProfit returns one entry per calendar month for the last months
// months up to and including the month of now, oldest first. Months without
// trades report zero. Trades dated after now are ignored.
func MonthlyProfit(txs []domain.Transaction, now civil.Date, months int) ([]MonthProfit, error) {
	if months <= 0 {
		return nil, fmt.Errorf("MonthlyProfit: months must be positive, got %d", months)
	}

	first := time.Date(now.Year, now.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(months - 1), 0)
	out := make([]MonthProfit, months)
	index := make(map[string]int, months)
	for i := range out {
		key := first.AddDate(0, i, 0).Format("2006-01")
		out[i] = MonthProfit{Month: key, Profit: decimal.Zero}
		index[key] = i
	}

	for _, tx := range txs {
		if err := Validate(tx); err != nil {
			return nil, err
		}
		t, ok := tx.(*domain.Trade)
		if !ok || t.Date.After(now) {
			continue
		}
		if i, ok := index[monthKey(t.Date)]; ok {
			out[i].Profit = out[i].Profit.Add(t.Profit)
		}
	}
	return out, nil
}

func monthKey(d civil.Date) string {
	return fmt.Sprintf("%04d-%02d", d.Year, int(d.Month))
}
