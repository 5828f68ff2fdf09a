package bigquery

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
)

const (
	transactionsTable = "transactions"
	contactsTable     = "contacts"
	importsTable      = "imports"
	parsingRunsTable  = "parsing_runs"
)

// tableRef returns the fully qualified, backtick-quoted table name.
func tableRef(client *bigquery.Client, datasetID, table string) string {
	return fmt.Sprintf("`%s.%s.%s`", client.Project(), datasetID, table)
}

// literal is spliced into SQL verbatim instead of being bound as a parameter.
type literal string

const (
	sqlNull       literal = "NULL"
	sqlEmptyArray literal = "[]"
)

// column is one assignment in a MERGE statement.
type column struct {
	name  string
	value interface{}
}

// buildMerge writes an upsert keyed on keys. Columns whose value is a literal
// are inlined; the rest become named parameters.
func buildMerge(table string, keys, cols []column) (string, []bigquery.QueryParameter) {
	var (
		params  []bigquery.QueryParameter
		on      []string
		sets    []string
		names   []string
		values  []string
		sources []string
	)
	ref := func(c column) string {
		if lit, ok := c.value.(literal); ok {
			return string(lit)
		}
		params = append(params, bigquery.QueryParameter{Name: c.name, Value: c.value})
		return "@" + c.name
	}

	for _, k := range keys {
		sources = append(sources, fmt.Sprintf("%s AS %s", ref(k), k.name))
		on = append(on, fmt.Sprintf("T.%s = S.%s", k.name, k.name))
		names = append(names, k.name)
		values = append(values, "S."+k.name)
	}
	for _, c := range cols {
		r := ref(c)
		if c.name != "created_ts" {
			sets = append(sets, fmt.Sprintf("%s = %s", c.name, r))
		}
		names = append(names, c.name)
		values = append(values, r)
	}

	sql := fmt.Sprintf(`
		MERGE %s T
		USING (SELECT %s) S
		ON %s
		WHEN MATCHED THEN
		  UPDATE SET %s
		WHEN NOT MATCHED THEN
		  INSERT (%s) VALUES (%s)
	`,
		table,
		strings.Join(sources, ", "),
		strings.Join(on, " AND "),
		strings.Join(sets, ", "),
		strings.Join(names, ", "),
		strings.Join(values, ", "),
	)
	return sql, params
}

// runDML runs a DML statement and returns the number of affected rows.
func runDML(ctx context.Context, q *bigquery.Query) (int64, error) {
	job, err := q.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("run query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("wait for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("job error: %w", err)
	}

	if status.Statistics != nil {
		if qs, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
			return qs.NumDMLAffectedRows, nil
		}
	}
	return 0, nil
}
