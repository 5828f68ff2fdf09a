package notionsync

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"
	"golang.org/x/time/rate"
)

// DefaultRequestsPerSecond is Notion's average request limit per integration.
const DefaultRequestsPerSecond = 3

// NotionClient implements NotionService over the Notion REST API. Calls are
// paced by a shared limiter so large syncs stay under the API rate limit.
type NotionClient struct {
	client  *notionapi.Client
	limiter *rate.Limiter
}

// ClientOption configures a NotionClient.
type ClientOption func(*NotionClient)

// WithRequestsPerSecond overrides the request pace. Zero or less disables
// pacing.
func WithRequestsPerSecond(rps float64) ClientOption {
	return func(n *NotionClient) {
		if rps <= 0 {
			n.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		n.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// NewNotionClient creates a NotionClient authenticated with an integration token.
func NewNotionClient(token string, opts ...ClientOption) *NotionClient {
	n := &NotionClient{
		client:  notionapi.NewClient(notionapi.Token(token)),
		limiter: rate.NewLimiter(DefaultRequestsPerSecond, 1),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// CreatePage adds a page to the database databaseID.
func (n *NotionClient) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("CreatePage: %w", err)
	}

	page, err := n.client.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: properties,
	})
	if err != nil {
		return nil, fmt.Errorf("CreatePage: %w", err)
	}
	return page, nil
}

// UpdatePage overwrites the given properties; others are left untouched.
func (n *NotionClient) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("UpdatePage: %w", err)
	}

	page, err := n.client.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{
		Properties: properties,
	})
	if err != nil {
		return nil, fmt.Errorf("UpdatePage: %s: %w", pageID, err)
	}
	return page, nil
}

// ArchivePage moves a page to the trash.
func (n *NotionClient) ArchivePage(ctx context.Context, pageID string) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("ArchivePage: %w", err)
	}

	if _, err := n.client.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{
		Archived: true,
	}); err != nil {
		return fmt.Errorf("ArchivePage: %s: %w", pageID, err)
	}
	return nil
}

// QueryDatabase returns one page of database rows.
func (n *NotionClient) QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("QueryDatabase: %w", err)
	}

	resp, err := n.client.Database.Query(ctx, notionapi.DatabaseID(databaseID), req)
	if err != nil {
		return nil, fmt.Errorf("QueryDatabase: %s: %w", databaseID, err)
	}
	return resp, nil
}
