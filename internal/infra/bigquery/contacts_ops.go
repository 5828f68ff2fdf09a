package bigquery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	bq "github.com/dvloznov/trade-ledger/internal/bigquery"
	"github.com/dvloznov/trade-ledger/internal/domain"
	"github.com/dvloznov/trade-ledger/internal/ledger"
)

const contactColumns = `
	contact_id,
	owner_id,
	name,
	contact_type,
	phone,
	opening_amount,
	opening_type,
	created_ts,
	updated_ts`

// ListContactsWithClient returns the owner's contacts ordered by name.
func ListContactsWithClient(ctx context.Context, client *bigquery.Client, datasetID, ownerID string) ([]*domain.Contact, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE owner_id = @owner_id
		ORDER BY name
	`, contactColumns, tableRef(client, datasetID, contactsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
	}

	contacts, err := readContacts(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ListContacts: %w", err)
	}
	return contacts, nil
}

// GetContactWithClient returns one contact or bq.ErrNotFound.
func GetContactWithClient(ctx context.Context, client *bigquery.Client, datasetID, ownerID, id string) (*domain.Contact, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE owner_id = @owner_id AND contact_id = @contact_id
		LIMIT 1
	`, contactColumns, tableRef(client, datasetID, contactsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
		{Name: "contact_id", Value: id},
	}

	contacts, err := readContacts(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("GetContact: %w", err)
	}
	if len(contacts) == 0 {
		return nil, fmt.Errorf("GetContact: %s: %w", id, bq.ErrNotFound)
	}
	return contacts[0], nil
}

// SaveContactWithClient creates or replaces a contact.
func SaveContactWithClient(ctx context.Context, client *bigquery.Client, datasetID, ownerID string, c *domain.Contact) error {
	if err := ledger.ValidateContact(c); err != nil {
		return fmt.Errorf("SaveContact: %w", err)
	}
	row := bq.NewContactRow(ownerID, c, time.Now())

	cols := []column{
		{"name", row.Name},
		{"contact_type", row.ContactType},
		{"phone", row.Phone},
		{"opening_type", row.OpeningType},
		{"created_ts", row.CreatedTS},
		{"updated_ts", row.UpdatedTS},
	}
	if row.OpeningAmount != nil {
		cols = append(cols, column{"opening_amount", row.OpeningAmount})
	} else {
		cols = append(cols, column{"opening_amount", sqlNull})
	}

	sql, params := buildMerge(
		tableRef(client, datasetID, contactsTable),
		[]column{
			{"owner_id", row.OwnerID},
			{"contact_id", row.ContactID},
		},
		cols,
	)
	q := client.Query(sql)
	q.Parameters = params

	if _, err := runDML(ctx, q); err != nil {
		return fmt.Errorf("SaveContact: %s: %w", row.ContactID, err)
	}
	return nil
}

// DeleteContactWithClient removes a contact. A contact still named by a
// trade or payment is kept and bq.ErrContactInUse is returned.
func DeleteContactWithClient(ctx context.Context, client *bigquery.Client, datasetID, ownerID, id string) error {
	c, err := GetContactWithClient(ctx, client, datasetID, ownerID, id)
	if err != nil {
		return fmt.Errorf("DeleteContact: %w", err)
	}

	refs, err := countReferences(ctx, client, datasetID, ownerID, c.Name)
	if err != nil {
		return fmt.Errorf("DeleteContact: %s: %w", id, err)
	}
	if refs > 0 {
		return fmt.Errorf("DeleteContact: %s named by %d transactions: %w", id, refs, bq.ErrContactInUse)
	}

	q := client.Query(fmt.Sprintf(`
		DELETE FROM %s
		WHERE owner_id = @owner_id AND contact_id = @contact_id
	`, tableRef(client, datasetID, contactsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
		{Name: "contact_id", Value: id},
	}

	if _, err := runDML(ctx, q); err != nil {
		return fmt.Errorf("DeleteContact: %s: %w", id, err)
	}
	return nil
}

func countReferences(ctx context.Context, client *bigquery.Client, datasetID, ownerID, name string) (int64, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT COUNT(*) AS refs
		FROM %s
		WHERE owner_id = @owner_id
		  AND (supplier_name = @name OR buyer_name = @name OR name = @name)
	`, tableRef(client, datasetID, transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
		{Name: "name", Value: name},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("query read: %w", err)
	}
	var row struct {
		Refs int64 `bigquery:"refs"`
	}
	if err := it.Next(&row); err != nil {
		return 0, fmt.Errorf("iter next: %w", err)
	}
	return row.Refs, nil
}

func readContacts(ctx context.Context, q *bigquery.Query) ([]*domain.Contact, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query read: %w", err)
	}

	var contacts []*domain.Contact
	for {
		var r bq.ContactRow
		err := it.Next(&r)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iter next: %w", err)
		}
		c, err := r.Contact()
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, nil
}
