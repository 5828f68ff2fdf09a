package notionsync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/trade-ledger/internal/domain"
	"github.com/dvloznov/trade-ledger/internal/infra/memory"
	"github.com/dvloznov/trade-ledger/internal/ledger"
)

// MockNotionService serves a fixed set of pages two at a time and records
// every mutating call.
type MockNotionService struct {
	Pages      []notionapi.Page
	ArchiveErr error

	created  []notionapi.Properties
	updated  map[string]notionapi.Properties
	archived []string
	queries  int
}

func (m *MockNotionService) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	m.created = append(m.created, properties)
	return &notionapi.Page{ID: notionapi.ObjectID(fmt.Sprintf("new-%d", len(m.created)))}, nil
}

func (m *MockNotionService) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	if m.updated == nil {
		m.updated = make(map[string]notionapi.Properties)
	}
	m.updated[pageID] = properties
	return &notionapi.Page{ID: notionapi.ObjectID(pageID)}, nil
}

func (m *MockNotionService) ArchivePage(ctx context.Context, pageID string) error {
	if m.ArchiveErr != nil {
		return m.ArchiveErr
	}
	m.archived = append(m.archived, pageID)
	return nil
}

func (m *MockNotionService) QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	m.queries++
	start := 0
	if filter.StartCursor != "" {
		fmt.Sscanf(string(filter.StartCursor), "%d", &start)
	}
	end := start + 2
	if end > len(m.Pages) {
		end = len(m.Pages)
	}
	resp := &notionapi.DatabaseQueryResponse{Results: m.Pages[start:end]}
	if end < len(m.Pages) {
		resp.HasMore = true
		resp.NextCursor = notionapi.Cursor(fmt.Sprintf("%d", end))
	}
	return resp, nil
}

func partyPage(pageID, contactID string) notionapi.Page {
	props := notionapi.Properties{}
	if contactID != "" {
		props[PropContactID] = &notionapi.RichTextProperty{
			RichText: []notionapi.RichText{{PlainText: contactID}},
		}
	}
	return notionapi.Page{ID: notionapi.ObjectID(pageID), Properties: props}
}

func seedStore(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	s := memory.NewStore()

	for _, c := range []*domain.Contact{
		{ID: "c1", Name: "Karim Traders", Type: domain.ContactSupplier},
		{ID: "c2", Name: "Rahim Mills", Type: domain.ContactBuyer},
		{ID: "c3", Name: "Jamal", Type: domain.ContactBuyer,
			OpeningBalance: &domain.OpeningBalance{Amount: decimal.NewFromInt(50), Type: domain.BalancePayable}},
	} {
		if err := s.SaveContact(ctx, "owner", c); err != nil {
			t.Fatalf("SaveContact(%s) error = %v", c.ID, err)
		}
	}

	trade := domain.NewTrade("t1", domain.TradeInput{
		Date: civil.Date{Year: 2024, Month: 5, Day: 2}, Item: "Paddy",
		SupplierName: "Karim Traders", BuyerName: "Rahim Mills",
		ScaleWeight: decimal.NewFromInt(100), SupplierRate: decimal.NewFromInt(10), BuyerRate: decimal.NewFromInt(12),
	})
	if err := s.SaveTransaction(ctx, "owner", trade); err != nil {
		t.Fatalf("SaveTransaction() error = %v", err)
	}
	return s
}

func TestSyncPartyBalances(t *testing.T) {
	store := seedStore(t)
	notion := &MockNotionService{Pages: []notionapi.Page{
		partyPage("p-karim", "c1"),
		partyPage("p-gone", "c9"),
		partyPage("p-blank", ""),
		partyPage("p-karim-dup", "c1"),
	}}
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	res, err := SyncPartyBalances(context.Background(), store, notion, "db", "owner", now, false)
	if err != nil {
		t.Fatalf("SyncPartyBalances() error = %v", err)
	}

	want := SyncResult{Created: 2, Updated: 1, Archived: 3}
	if *res != want {
		t.Errorf("result = %+v, want %+v", *res, want)
	}
	if notion.queries != 2 {
		t.Errorf("QueryDatabase called %d times, want 2 (pagination)", notion.queries)
	}
	if len(notion.archived) != 3 || notion.archived[0] != "p-gone" || notion.archived[1] != "p-blank" || notion.archived[2] != "p-karim-dup" {
		t.Errorf("archived = %v", notion.archived)
	}

	karim, ok := notion.updated["p-karim"]
	if !ok {
		t.Fatalf("p-karim not updated, updated = %v", notion.updated)
	}
	if n := karim[PropNetBalance].(notionapi.NumberProperty).Number; n != -1000 {
		t.Errorf("Karim net balance = %v, want -1000", n)
	}
	if s := karim[PropStatus].(notionapi.SelectProperty).Select.Name; s != string(ledger.StatusPayable) {
		t.Errorf("Karim status = %q, want payable", s)
	}

	// Created pages follow the name order of the balances: Jamal, Rahim Mills.
	jamal := notion.created[0]
	if title := jamal[PropName].(notionapi.TitleProperty).Title[0].Text.Content; title != "Jamal" {
		t.Errorf("first created page = %q, want Jamal", title)
	}
	if n := jamal[PropNetBalance].(notionapi.NumberProperty).Number; n != -50 {
		t.Errorf("Jamal net balance = %v, want -50", n)
	}
	rahim := notion.created[1]
	if n := rahim[PropNetBalance].(notionapi.NumberProperty).Number; n != 1200 {
		t.Errorf("Rahim net balance = %v, want 1200", n)
	}
	synced := rahim[PropSyncedAt].(notionapi.DateProperty).Date.Start
	if !time.Time(*synced).Equal(now) {
		t.Errorf("Synced At = %v, want %v", time.Time(*synced), now)
	}
}

func TestSyncPartyBalancesDryRun(t *testing.T) {
	store := seedStore(t)
	notion := &MockNotionService{Pages: []notionapi.Page{
		partyPage("p-karim", "c1"),
		partyPage("p-gone", "c9"),
	}}

	res, err := SyncPartyBalances(context.Background(), store, notion, "db", "owner", time.Now(), true)
	if err != nil {
		t.Fatalf("SyncPartyBalances() error = %v", err)
	}
	want := SyncResult{Created: 2, Updated: 1, Archived: 1}
	if *res != want {
		t.Errorf("result = %+v, want %+v", *res, want)
	}
	if len(notion.created) != 0 || len(notion.updated) != 0 || len(notion.archived) != 0 {
		t.Errorf("dry run mutated Notion: created=%d updated=%d archived=%d",
			len(notion.created), len(notion.updated), len(notion.archived))
	}
}

func TestSyncPartyBalancesCountsFailures(t *testing.T) {
	store := seedStore(t)
	notion := &MockNotionService{
		Pages:      []notionapi.Page{partyPage("p-gone", "c9")},
		ArchiveErr: errors.New("rate limited"),
	}

	res, err := SyncPartyBalances(context.Background(), store, notion, "db", "owner", time.Now(), false)
	if err != nil {
		t.Fatalf("SyncPartyBalances() error = %v", err)
	}
	if res.Failed != 1 || res.Archived != 0 || res.Created != 3 {
		t.Errorf("result = %+v, want 1 failed, 0 archived, 3 created", *res)
	}
}

func TestExtractContactID(t *testing.T) {
	tests := []struct {
		name string
		page notionapi.Page
		want string
	}{
		{"pointer plain text", partyPage("p", "c1"), "c1"},
		{"value text content", notionapi.Page{Properties: notionapi.Properties{
			PropContactID: notionapi.RichTextProperty{RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: "c2"}}}},
		}}, "c2"},
		{"missing", partyPage("p", ""), ""},
		{"wrong type", notionapi.Page{Properties: notionapi.Properties{
			PropContactID: &notionapi.NumberProperty{Number: 3},
		}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractContactID(tt.page); got != tt.want {
				t.Errorf("extractContactID() = %q, want %q", got, tt.want)
			}
		})
	}
}
