package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/trade-ledger/internal/domain"
)

// PartyStatus describes who owes whom after netting a party's activity.
type PartyStatus string

const (
	StatusReceivable PartyStatus = "receivable"
	StatusPayable    PartyStatus = "payable"
	StatusSettled    PartyStatus = "settled"
)

// StatusOf classifies a signed balance as seen by the ledger owner.
func StatusOf(net decimal.Decimal) PartyStatus {
	switch net.Sign() {
	case 1:
		return StatusReceivable
	case -1:
		return StatusPayable
	default:
		return StatusSettled
	}
}

// PartyBalance is the net position of one contact. Positive Net means the
// party owes the ledger owner.
type PartyBalance struct {
	ContactID string             `json:"contactId"`
	Name      string             `json:"name"`
	Type      domain.ContactType `json:"type"`
	Opening   decimal.Decimal    `json:"opening"`
	Net       decimal.Decimal    `json:"net"`
	Status    PartyStatus        `json:"status"`
}

// PartyBalances nets every contact's opening balance, unsettled trade sides
// and standalone payments. Transactions naming unknown parties are ignored.
// The result is sorted by contact name.
func PartyBalances(contacts []*domain.Contact, txs []domain.Transaction) ([]PartyBalance, error) {
	out := make([]PartyBalance, len(contacts))
	byName := make(map[string]int, len(contacts))
	for i, c := range contacts {
		if err := ValidateContact(c); err != nil {
			return nil, err
		}
		opening := c.OpeningBalance.Signed()
		out[i] = PartyBalance{ContactID: c.ID, Name: c.Name, Type: c.Type, Opening: opening, Net: opening}
		byName[c.Name] = i
	}

	add := func(name string, d decimal.Decimal) {
		if i, ok := byName[name]; ok {
			out[i].Net = out[i].Net.Add(d)
		}
	}

	for _, tx := range txs {
		if err := Validate(tx); err != nil {
			return nil, err
		}
		switch v := tx.(type) {
		case *domain.Trade:
			add(v.SupplierName, v.PayableBalance().Neg())
			add(v.BuyerName, v.ReceivableBalance())
		case *domain.Payment:
			// made: the party now owes us that amount.
			if v.PaymentType == domain.PaymentMade {
				add(v.Name, v.Amount)
			} else {
				add(v.Name, v.Amount.Neg())
			}
		}
	}

	for i := range out {
		out[i].Status = StatusOf(out[i].Net)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
