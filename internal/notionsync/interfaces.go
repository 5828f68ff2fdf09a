package notionsync

import (
	"context"

	"github.com/jomei/notionapi"
)

// NotionService is what the balance sync needs from Notion. NotionClient is
// the live implementation; tests substitute a recorder.
type NotionService interface {
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)
	UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error)
	ArchivePage(ctx context.Context, pageID string) error

	// QueryDatabase returns one page of results; callers follow NextCursor.
	QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
}
