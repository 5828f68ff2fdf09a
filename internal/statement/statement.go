// Package statement builds running-balance ledgers over trades and payments,
// either for a single party or for the whole book.
package statement

import (
	"errors"
	"fmt"
	"sort"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/trade-ledger/internal/domain"
	"github.com/dvloznov/trade-ledger/internal/ledger"
)

// ErrUnknownContact is returned when a party statement is requested for a
// contact that is not in the snapshot.
var ErrUnknownContact = errors.New("statement: unknown contact")

// DefaultPageSize is the number of items per statement page.
const DefaultPageSize = 25

// Item is one line of a statement. Debit increases what the party owes the
// owner; credit decreases it.
type Item struct {
	Date          civil.Date      `json:"date"`
	Opening       bool            `json:"opening,omitempty"`
	TransactionID string          `json:"transactionId,omitempty"`
	Party         string          `json:"party,omitempty"`
	Description   string          `json:"description"`
	Debit         decimal.Decimal `json:"debit"`
	Credit        decimal.Decimal `json:"credit"`
	Balance       decimal.Decimal `json:"balance"`
}

// DateLabel renders the item date, or "Initial" for opening rows.
func (it Item) DateLabel() string {
	if it.Opening {
		return "Initial"
	}
	return it.Date.String()
}

// Statement is a chronologically ordered ledger with a running balance.
type Statement struct {
	Title        string             `json:"title"`
	ContactID    string             `json:"contactId,omitempty"`
	ContactName  string             `json:"contactName,omitempty"`
	From         civil.Date         `json:"from"`
	To           civil.Date         `json:"to"`
	Items        []Item             `json:"items"`
	TotalDebit   decimal.Decimal    `json:"totalDebit"`
	TotalCredit  decimal.Decimal    `json:"totalCredit"`
	FinalBalance decimal.Decimal    `json:"finalBalance"`
	Status       ledger.PartyStatus `json:"status"`
}

// Filter narrows a statement. An empty ContactID builds the overall
// statement. Items before From are carried into a single brought-forward
// row; items after To are dropped.
type Filter struct {
	ContactID string
	From      civil.Date
	To        civil.Date
}

// Build assembles a statement from a contacts and transactions snapshot.
func Build(contacts []*domain.Contact, txs []domain.Transaction, f Filter) (*Statement, error) {
	stmt := &Statement{Title: "Overall Statement", From: f.From, To: f.To}

	var party *domain.Contact
	if f.ContactID != "" {
		for _, c := range contacts {
			if c.ID == f.ContactID {
				party = c
				break
			}
		}
		if party == nil {
			return nil, fmt.Errorf("Build: contact %s: %w", f.ContactID, ErrUnknownContact)
		}
		stmt.Title = "Party Ledger: " + party.Name
		stmt.ContactID = party.ID
		stmt.ContactName = party.Name
	}

	var items []Item
	for _, c := range contacts {
		if party != nil && c.ID != party.ID {
			continue
		}
		if ob := c.OpeningBalance; ob != nil && !ob.Amount.IsZero() {
			it := Item{Opening: true, Party: c.Name, Description: "Opening Balance"}
			if ob.Type == domain.BalancePayable {
				it.Credit = ob.Amount
			} else {
				it.Debit = ob.Amount
			}
			items = append(items, it)
		}
	}

	for _, tx := range txs {
		if err := ledger.Validate(tx); err != nil {
			return nil, err
		}
		name := ""
		if party != nil {
			name = party.Name
			if !domain.InvolvesParty(tx, name) {
				continue
			}
		}
		items = append(items, itemsFor(tx, name)...)
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Opening != items[j].Opening {
			return items[i].Opening
		}
		return items[i].Date.Before(items[j].Date)
	})

	items = applyRange(items, f)

	running := decimal.Zero
	stmt.TotalDebit = decimal.Zero
	stmt.TotalCredit = decimal.Zero
	for i := range items {
		running = running.Add(items[i].Debit).Sub(items[i].Credit)
		items[i].Balance = running
		stmt.TotalDebit = stmt.TotalDebit.Add(items[i].Debit)
		stmt.TotalCredit = stmt.TotalCredit.Add(items[i].Credit)
	}
	if items == nil {
		items = []Item{}
	}
	stmt.Items = items
	stmt.FinalBalance = running
	stmt.Status = ledger.StatusOf(running)
	return stmt, nil
}

// itemsFor expands a transaction into statement lines. When party is set
// only the sides of a trade that party is on are included.
func itemsFor(tx domain.Transaction, party string) []Item {
	switch v := tx.(type) {
	case *domain.Trade:
		var out []Item
		if party == "" || v.SupplierName == party {
			out = append(out, Item{
				Date: v.Date, TransactionID: v.ID, Party: v.SupplierName,
				Description: "Purchase: " + v.Item, Credit: v.SupplierTotal,
			})
			for _, p := range v.PaymentsToSupplier {
				out = append(out, Item{
					Date: p.Date, TransactionID: v.ID, Party: v.SupplierName,
					Description: withMethod("Payment Made", p.Method), Debit: p.Amount,
				})
			}
		}
		if party == "" || v.BuyerName == party {
			out = append(out, Item{
				Date: v.Date, TransactionID: v.ID, Party: v.BuyerName,
				Description: "Sale: " + v.Item, Debit: v.BuyerTotal,
			})
			for _, p := range v.PaymentsFromBuyer {
				out = append(out, Item{
					Date: p.Date, TransactionID: v.ID, Party: v.BuyerName,
					Description: withMethod("Payment Received", p.Method), Credit: p.Amount,
				})
			}
		}
		return out
	case *domain.Payment:
		it := Item{Date: v.Date, TransactionID: v.ID, Party: v.Name, Description: "Direct Payment"}
		if v.Description != "" {
			it.Description += ": " + v.Description
		}
		if v.PaymentType == domain.PaymentMade {
			it.Debit = v.Amount
		} else {
			it.Credit = v.Amount
		}
		return []Item{it}
	default:
		return nil
	}
}

func applyRange(items []Item, f Filter) []Item {
	if f.From.IsZero() && f.To.IsZero() {
		return items
	}
	var (
		out     []Item
		carried bool
		forward = Item{Opening: true, Description: "Balance Brought Forward"}
	)
	for _, it := range items {
		switch {
		case !f.To.IsZero() && !it.Opening && it.Date.After(f.To):
			continue
		case !f.From.IsZero() && (it.Opening || it.Date.Before(f.From)):
			forward.Debit = forward.Debit.Add(it.Debit)
			forward.Credit = forward.Credit.Add(it.Credit)
			carried = true
		default:
			out = append(out, it)
		}
	}
	if !carried {
		return out
	}
	net := forward.Debit.Sub(forward.Credit)
	forward.Debit, forward.Credit = decimal.Zero, decimal.Zero
	if net.IsNegative() {
		forward.Credit = net.Neg()
	} else {
		forward.Debit = net
	}
	return append([]Item{forward}, out...)
}

func withMethod(label, method string) string {
	if method == "" {
		return label
	}
	return fmt.Sprintf("%s (%s)", label, method)
}

// BalanceLabel returns "Dr" for a positive balance, "Cr" for a negative one
// and "" when settled.
func BalanceLabel(d decimal.Decimal) string {
	switch d.Sign() {
	case 1:
		return "Dr"
	case -1:
		return "Cr"
	default:
		return ""
	}
}

// FormatBalance renders an unsigned amount followed by its Dr/Cr label, or
// "Settled" for zero.
func FormatBalance(d decimal.Decimal, symbol string) string {
	if d.Round(2).IsZero() {
		return "Settled"
	}
	return domain.FormatMoney(d.Abs(), symbol) + " " + BalanceLabel(d)
}
