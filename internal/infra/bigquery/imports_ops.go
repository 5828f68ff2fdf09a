package bigquery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	bq "github.com/dvloznov/trade-ledger/internal/bigquery"
)

const importColumns = `
	import_id,
	owner_id,
	gcs_uri,
	original_filename,
	file_mime_type,
	checksum_sha256,
	upload_ts,
	processed_ts,
	parsing_status,
	transaction_count`

// InsertImportWithClient records a newly uploaded slip.
func InsertImportWithClient(ctx context.Context, client *bigquery.Client, datasetID string, row *bq.ImportRow) error {
	q := client.Query(fmt.Sprintf(`
		INSERT %s (
			import_id,
			owner_id,
			gcs_uri,
			original_filename,
			file_mime_type,
			checksum_sha256,
			upload_ts,
			parsing_status,
			transaction_count
		)
		VALUES (
			@import_id,
			@owner_id,
			@gcs_uri,
			@original_filename,
			@file_mime_type,
			@checksum_sha256,
			@upload_ts,
			@parsing_status,
			@transaction_count
		)
	`, tableRef(client, datasetID, importsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "import_id", Value: row.ImportID},
		{Name: "owner_id", Value: row.OwnerID},
		{Name: "gcs_uri", Value: row.GCSURI},
		{Name: "original_filename", Value: row.OriginalFilename},
		{Name: "file_mime_type", Value: row.FileMimeType},
		{Name: "checksum_sha256", Value: row.ChecksumSHA256},
		{Name: "upload_ts", Value: row.UploadTS},
		{Name: "parsing_status", Value: row.ParsingStatus},
		{Name: "transaction_count", Value: row.TransactionCount},
	}

	if _, err := runDML(ctx, q); err != nil {
		return fmt.Errorf("InsertImport: %s: %w", row.ImportID, err)
	}
	return nil
}

// FindImportByChecksumWithClient returns the owner's import with the given
// checksum or bq.ErrNotFound.
func FindImportByChecksumWithClient(ctx context.Context, client *bigquery.Client, datasetID, ownerID, checksum string) (*bq.ImportRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE owner_id = @owner_id AND checksum_sha256 = @checksum
		LIMIT 1
	`, importColumns, tableRef(client, datasetID, importsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
		{Name: "checksum", Value: checksum},
	}

	rows, err := readImports(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("FindImportByChecksum: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("FindImportByChecksum: %w", bq.ErrNotFound)
	}
	return rows[0], nil
}

// ListImportsWithClient returns the owner's imports, newest first.
func ListImportsWithClient(ctx context.Context, client *bigquery.Client, datasetID, ownerID string) ([]*bq.ImportRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE owner_id = @owner_id
		ORDER BY upload_ts DESC
	`, importColumns, tableRef(client, datasetID, importsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
	}

	rows, err := readImports(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ListImports: %w", err)
	}
	return rows, nil
}

// UpdateImportStatusWithClient sets parsing_status, processed_ts and the
// number of transactions the import produced.
func UpdateImportStatusWithClient(ctx context.Context, client *bigquery.Client, datasetID, importID, status string, transactionCount int) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET parsing_status = @parsing_status,
		    processed_ts = @processed_ts,
		    transaction_count = @transaction_count
		WHERE import_id = @import_id
	`, tableRef(client, datasetID, importsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "parsing_status", Value: status},
		{Name: "processed_ts", Value: time.Now()},
		{Name: "transaction_count", Value: int64(transactionCount)},
		{Name: "import_id", Value: importID},
	}

	n, err := runDML(ctx, q)
	if err != nil {
		return fmt.Errorf("UpdateImportStatus: %s: %w", importID, err)
	}
	if n == 0 {
		return fmt.Errorf("UpdateImportStatus: %s: %w", importID, bq.ErrNotFound)
	}
	return nil
}

func readImports(ctx context.Context, q *bigquery.Query) ([]*bq.ImportRow, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query read: %w", err)
	}

	var rows []*bq.ImportRow
	for {
		var row bq.ImportRow
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iter next: %w", err)
		}
		rows = append(rows, &row)
	}
	return rows, nil
}
