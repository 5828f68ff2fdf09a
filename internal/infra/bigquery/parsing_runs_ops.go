package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"

	bq "github.com/dvloznov/trade-ledger/internal/bigquery"
	"github.com/dvloznov/trade-ledger/internal/logger"
)

// maxErrorMessageLen bounds error_message on failed runs.
const maxErrorMessageLen = 2000

// StartParsingRunWithClient inserts a parsing run with status=RUNNING for the
// import and returns the generated parsing_run_id.
func StartParsingRunWithClient(ctx context.Context, client *bigquery.Client, datasetID, importID string) (string, error) {
	parsingRunID := uuid.NewString()

	q := client.Query(fmt.Sprintf(`
		INSERT %s (
			parsing_run_id,
			import_id,
			started_ts,
			parser_type,
			parser_version,
			status
		)
		VALUES (
			@parsing_run_id,
			@import_id,
			@started_ts,
			@parser_type,
			@parser_version,
			@status
		)
	`, tableRef(client, datasetID, parsingRunsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "parsing_run_id", Value: parsingRunID},
		{Name: "import_id", Value: importID},
		{Name: "started_ts", Value: time.Now()},
		{Name: "parser_type", Value: bq.ParserTypeGemini},
		{Name: "parser_version", Value: bq.ParserVersion},
		{Name: "status", Value: bq.RunStatusRunning},
	}

	if _, err := runDML(ctx, q); err != nil {
		return "", fmt.Errorf("StartParsingRun: %w", err)
	}
	return parsingRunID, nil
}

// MarkParsingRunFailedWithClient sets status=FAILED, finished_ts and
// error_message. Failures are logged rather than returned so the caller can
// keep reporting the original error.
func MarkParsingRunFailedWithClient(ctx context.Context, client *bigquery.Client, datasetID, parsingRunID string, parseErr error) {
	log := logger.FromContext(ctx)

	errMsg := ""
	if parseErr != nil {
		errMsg = parseErr.Error()
		if len(errMsg) > maxErrorMessageLen {
			errMsg = errMsg[:maxErrorMessageLen]
		}
	}

	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = @error_message
		WHERE parsing_run_id = @parsing_run_id
	`, tableRef(client, datasetID, parsingRunsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: bq.RunStatusFailed},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "error_message", Value: errMsg},
		{Name: "parsing_run_id", Value: parsingRunID},
	}

	if _, err := runDML(ctx, q); err != nil {
		log.Error().
			Err(err).
			Str("parsing_run_id", parsingRunID).
			Msg("MarkParsingRunFailed: update failed")
	}
}

// MarkParsingRunSucceededWithClient sets status=SUCCESS and finished_ts and
// clears error_message.
func MarkParsingRunSucceededWithClient(ctx context.Context, client *bigquery.Client, datasetID, parsingRunID string) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = ""
		WHERE parsing_run_id = @parsing_run_id
	`, tableRef(client, datasetID, parsingRunsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: bq.RunStatusSuccess},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "parsing_run_id", Value: parsingRunID},
	}

	if _, err := runDML(ctx, q); err != nil {
		return fmt.Errorf("MarkParsingRunSucceeded: %w", err)
	}
	return nil
}
