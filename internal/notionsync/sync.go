// Package notionsync mirrors party balances into a Notion database so they
// can be browsed and shared outside the API.
package notionsync

import (
	"context"
	"fmt"
	"time"

	"github.com/jomei/notionapi"
	"golang.org/x/sync/errgroup"

	bq "github.com/dvloznov/trade-ledger/internal/bigquery"
	"github.com/dvloznov/trade-ledger/internal/domain"
	"github.com/dvloznov/trade-ledger/internal/ledger"
	"github.com/dvloznov/trade-ledger/internal/logger"
	"github.com/dvloznov/trade-ledger/internal/metrics"
)

// QueryPageSize is the page size used when listing the Notion database.
const QueryPageSize = 100

// SyncResult counts what a sync did, or would do in dry-run mode.
type SyncResult struct {
	Created  int
	Updated  int
	Archived int
	Failed   int
}

// SyncPartyBalances computes the owner's party balances and mirrors them into
// the Notion database dbID:
//  1. pages whose Contact ID is no longer a contact (or is missing) are archived
//  2. duplicate pages for one contact are archived, keeping the first
//  3. existing pages are updated with the current balance
//  4. contacts without a page get a new one
//
// Individual page failures are logged and counted; they do not abort the sync.
func SyncPartyBalances(ctx context.Context, repo bq.LedgerRepository, notion NotionService, dbID, ownerID string, now time.Time, dryRun bool) (*SyncResult, error) {
	log := logger.ForOwner(logger.FromContext(ctx), ownerID)

	log.Info().
		Bool("dry_run", dryRun).
		Str("database_id", dbID).
		Msg("Starting party balance sync to Notion")

	var (
		contacts []*domain.Contact
		txs      []domain.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if contacts, err = repo.ListContacts(gctx, ownerID); err != nil {
			return fmt.Errorf("list contacts: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if txs, err = repo.ListTransactions(gctx, ownerID); err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("SyncPartyBalances: %w", err)
	}

	balances, err := ledger.PartyBalances(contacts, txs)
	if err != nil {
		return nil, fmt.Errorf("SyncPartyBalances: %w", err)
	}

	log.Info().Int("party_count", len(balances)).Msg("Computed party balances")

	pages, err := queryAllNotionPages(ctx, notion, dbID)
	if err != nil {
		return nil, fmt.Errorf("SyncPartyBalances: %w", err)
	}

	log.Info().Int("notion_page_count", len(pages)).Msg("Retrieved existing Notion pages")

	valid := make(map[string]bool, len(balances))
	for _, b := range balances {
		valid[b.ContactID] = true
	}

	res := &SyncResult{}
	existing := make(map[string]string, len(pages))
	for _, page := range pages {
		contactID := extractContactID(page)
		pageID := string(page.ID)

		_, dup := existing[contactID]
		if contactID != "" && valid[contactID] && !dup {
			existing[contactID] = pageID
			continue
		}

		if dryRun {
			log.Info().
				Str("contact_id", contactID).
				Str("page_id", pageID).
				Msg("[DRY RUN] Would archive stale Notion page")
			res.Archived++
			continue
		}
		if err := notion.ArchivePage(ctx, pageID); err != nil {
			log.Warn().
				Err(err).
				Str("contact_id", contactID).
				Str("page_id", pageID).
				Msg("Failed to archive stale Notion page")
			res.Failed++
			continue
		}
		log.Info().
			Str("contact_id", contactID).
			Str("page_id", pageID).
			Msg("Archived stale Notion page")
		res.Archived++
	}

	for _, b := range balances {
		pageID, ok := existing[b.ContactID]

		if dryRun {
			if ok {
				log.Info().
					Str("contact_id", b.ContactID).
					Str("page_id", pageID).
					Msg("[DRY RUN] Would update Notion page")
				res.Updated++
			} else {
				log.Info().
					Str("contact_id", b.ContactID).
					Msg("[DRY RUN] Would create Notion page")
				res.Created++
			}
			continue
		}

		props := PartyBalanceToNotionProperties(b, now)

		if ok {
			if _, err := notion.UpdatePage(ctx, pageID, props); err != nil {
				log.Warn().
					Err(err).
					Str("contact_id", b.ContactID).
					Str("page_id", pageID).
					Msg("Failed to update Notion page")
				res.Failed++
				continue
			}
			res.Updated++
			continue
		}

		page, err := notion.CreatePage(ctx, dbID, props)
		if err != nil {
			log.Warn().
				Err(err).
				Str("contact_id", b.ContactID).
				Msg("Failed to create Notion page")
			res.Failed++
			continue
		}
		log.Info().
			Str("contact_id", b.ContactID).
			Str("page_id", string(page.ID)).
			Msg("Created Notion page")
		res.Created++
	}

	if !dryRun {
		metrics.AddNotionSync("created", res.Created)
		metrics.AddNotionSync("updated", res.Updated)
		metrics.AddNotionSync("archived", res.Archived)
		metrics.AddNotionSync("failed", res.Failed)
	}

	log.Info().
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("archived", res.Archived).
		Int("failed", res.Failed).
		Msg("Party balance sync completed")

	return res, nil
}

// queryAllNotionPages follows the query cursor until every page is read.
func queryAllNotionPages(ctx context.Context, notion NotionService, databaseID string) ([]notionapi.Page, error) {
	var all []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: QueryPageSize,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notion.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		all = append(all, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}
	return all, nil
}
