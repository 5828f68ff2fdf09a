package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"

	bq "github.com/dvloznov/trade-ledger/internal/bigquery"
)

// DeleteImportWithClient deletes an import and everything derived from it.
func DeleteImportWithClient(ctx context.Context, client *bigquery.Client, datasetID, ownerID, importID string) error {
	if err := requireImport(ctx, client, datasetID, ownerID, importID); err != nil {
		return fmt.Errorf("DeleteImport: %w", err)
	}

	// transactions first so a partial failure never leaves rows pointing at a
	// missing import
	if _, err := deleteWhere(ctx, client, datasetID, transactionsTable, "import_id", importID, ownerID); err != nil {
		return fmt.Errorf("DeleteImport: deleting transactions: %w", err)
	}

	if _, err := deleteWhere(ctx, client, datasetID, parsingRunsTable, "import_id", importID, ""); err != nil {
		return fmt.Errorf("DeleteImport: deleting parsing runs: %w", err)
	}

	if _, err := deleteWhere(ctx, client, datasetID, importsTable, "import_id", importID, ownerID); err != nil {
		return fmt.Errorf("DeleteImport: deleting import: %w", err)
	}
	return nil
}

func requireImport(ctx context.Context, client *bigquery.Client, datasetID, ownerID, importID string) error {
	q := client.Query(fmt.Sprintf(`
		SELECT COUNT(*) AS n
		FROM %s
		WHERE owner_id = @owner_id AND import_id = @import_id
	`, tableRef(client, datasetID, importsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
		{Name: "import_id", Value: importID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return fmt.Errorf("query read: %w", err)
	}
	var row struct {
		N int64 `bigquery:"n"`
	}
	if err := it.Next(&row); err != nil {
		return fmt.Errorf("iter next: %w", err)
	}
	if row.N == 0 {
		return fmt.Errorf("%s: %w", importID, bq.ErrNotFound)
	}
	return nil
}

// deleteWhere deletes rows of table whose key column equals value. A non-empty
// ownerID further restricts the delete to that owner.
func deleteWhere(ctx context.Context, client *bigquery.Client, datasetID, table, key, value, ownerID string) (int64, error) {
	where := fmt.Sprintf("%s = @value", key)
	params := []bigquery.QueryParameter{
		{Name: "value", Value: value},
	}
	if ownerID != "" {
		where += " AND owner_id = @owner_id"
		params = append(params, bigquery.QueryParameter{Name: "owner_id", Value: ownerID})
	}

	q := client.Query(fmt.Sprintf(`
		DELETE FROM %s
		WHERE %s
	`, tableRef(client, datasetID, table), where))
	q.Parameters = params

	return runDML(ctx, q)
}
