package notionsync

import (
	"time"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/trade-ledger/internal/ledger"
)

// Property names of the party balances database.
const (
	PropName       = "Name"
	PropContactID  = "Contact ID"
	PropType       = "Type"
	PropNetBalance = "Net Balance"
	PropStatus     = "Status"
	PropSyncedAt   = "Synced At"
)

// PartyBalanceToNotionProperties maps one party balance to page properties.
func PartyBalanceToNotionProperties(b ledger.PartyBalance, syncedAt time.Time) notionapi.Properties {
	net, _ := b.Net.Round(2).Float64()
	synced := notionapi.Date(syncedAt.UTC())

	return notionapi.Properties{
		PropName: notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{Content: b.Name},
				},
			},
		},
		PropContactID: notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{Content: b.ContactID},
				},
			},
		},
		PropType: notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(b.Type)},
		},
		PropNetBalance: notionapi.NumberProperty{
			Number: net,
		},
		PropStatus: notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(b.Status)},
		},
		PropSyncedAt: notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &synced},
		},
	}
}

// extractContactID reads the Contact ID property of a queried page. Pages
// returned by the API carry pointer property values.
func extractContactID(page notionapi.Page) string {
	prop, ok := page.Properties[PropContactID]
	if !ok {
		return ""
	}

	var texts []notionapi.RichText
	switch p := prop.(type) {
	case *notionapi.RichTextProperty:
		texts = p.RichText
	case notionapi.RichTextProperty:
		texts = p.RichText
	}
	if len(texts) == 0 {
		return ""
	}
	if texts[0].PlainText != "" {
		return texts[0].PlainText
	}
	if texts[0].Text != nil {
		return texts[0].Text.Content
	}
	return ""
}
