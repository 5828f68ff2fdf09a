package bigquery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"

	bq "github.com/dvloznov/trade-ledger/internal/bigquery"
	"github.com/dvloznov/trade-ledger/internal/domain"
	"github.com/dvloznov/trade-ledger/internal/ledger"
)

const transactionColumns = `
	transaction_id,
	owner_id,
	kind,
	transaction_date,
	item,
	vehicle_no,
	supplier_name,
	buyer_name,
	scale_weight,
	less,
	net_weight,
	supplier_rate,
	buyer_rate,
	supplier_total,
	buyer_total,
	profit,
	payments_to_supplier,
	payments_from_buyer,
	description,
	name,
	amount,
	payment_type,
	import_id,
	created_ts,
	updated_ts`

// ListTransactionsWithClient returns every transaction of the owner ordered
// by date.
func ListTransactionsWithClient(ctx context.Context, client *bigquery.Client, datasetID, ownerID string) ([]domain.Transaction, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE owner_id = @owner_id
		ORDER BY transaction_date, created_ts
	`, transactionColumns, tableRef(client, datasetID, transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
	}

	txs, err := readTransactions(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}
	return txs, nil
}

// QueryTransactionsByDateRangeWithClient returns the owner's transactions
// dated within [start, end].
func QueryTransactionsByDateRangeWithClient(ctx context.Context, client *bigquery.Client, datasetID, ownerID string, start, end civil.Date) ([]domain.Transaction, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE owner_id = @owner_id
		  AND transaction_date >= @start_date
		  AND transaction_date <= @end_date
		ORDER BY transaction_date, created_ts
	`, transactionColumns, tableRef(client, datasetID, transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
		{Name: "start_date", Value: start},
		{Name: "end_date", Value: end},
	}

	txs, err := readTransactions(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("QueryTransactionsByDateRange: %w", err)
	}
	return txs, nil
}

// GetTransactionWithClient returns one transaction or bq.ErrNotFound.
func GetTransactionWithClient(ctx context.Context, client *bigquery.Client, datasetID, ownerID, id string) (domain.Transaction, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE owner_id = @owner_id AND transaction_id = @transaction_id
		LIMIT 1
	`, transactionColumns, tableRef(client, datasetID, transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
		{Name: "transaction_id", Value: id},
	}

	txs, err := readTransactions(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: %w", err)
	}
	if len(txs) == 0 {
		return nil, fmt.Errorf("GetTransaction: %s: %w", id, bq.ErrNotFound)
	}
	return txs[0], nil
}

// SaveTransactionWithClient creates or replaces a transaction.
func SaveTransactionWithClient(ctx context.Context, client *bigquery.Client, datasetID, ownerID, importID string, tx domain.Transaction) error {
	if err := ledger.Validate(tx); err != nil {
		return fmt.Errorf("SaveTransaction: %w", err)
	}
	row, err := bq.NewTransactionRow(ownerID, tx, time.Now())
	if err != nil {
		return fmt.Errorf("SaveTransaction: %w", err)
	}
	if importID != "" {
		row.ImportID = bigquery.NullString{StringVal: importID, Valid: true}
	}

	sql, params := buildMerge(
		tableRef(client, datasetID, transactionsTable),
		[]column{
			{"owner_id", row.OwnerID},
			{"transaction_id", row.TransactionID},
		},
		transactionAssignments(row),
	)
	q := client.Query(sql)
	q.Parameters = params

	if _, err := runDML(ctx, q); err != nil {
		return fmt.Errorf("SaveTransaction: %s: %w", row.TransactionID, err)
	}
	return nil
}

// AppendSubPaymentWithClient appends p to one side of a trade with a single
// UPDATE and reads the trade back. Payments appended concurrently by other
// callers are kept.
func AppendSubPaymentWithClient(ctx context.Context, client *bigquery.Client, datasetID, ownerID, id string, side domain.ContactType, p domain.SubPayment) (*domain.Trade, error) {
	col, err := subPaymentColumn(side)
	if err != nil {
		return nil, fmt.Errorf("AppendSubPayment: %w", err)
	}

	current, err := GetTransactionWithClient(ctx, client, datasetID, ownerID, id)
	if err != nil {
		return nil, fmt.Errorf("AppendSubPayment: %w", err)
	}
	trade, ok := current.(*domain.Trade)
	if !ok {
		return nil, fmt.Errorf("AppendSubPayment: %s: %w", id, bq.ErrNotTrade)
	}
	preview := trade.Clone()
	if err := preview.AddSubPayment(side, p); err != nil {
		return nil, fmt.Errorf("AppendSubPayment: %w", err)
	}
	if err := ledger.Validate(preview); err != nil {
		return nil, fmt.Errorf("AppendSubPayment: %w", err)
	}
	if p.Date.IsZero() {
		p.Date = trade.Date
	}

	sql, params := buildAppendSubPayment(tableRef(client, datasetID, transactionsTable), col, ownerID, id,
		bq.SubPaymentRow{Amount: p.Amount.Rat(), PaymentDate: p.Date, Method: p.Method})
	q := client.Query(sql)
	q.Parameters = params

	n, err := runDML(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("AppendSubPayment: %s: %w", id, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("AppendSubPayment: %s: %w", id, bq.ErrNotFound)
	}

	updated, err := GetTransactionWithClient(ctx, client, datasetID, ownerID, id)
	if err != nil {
		return nil, fmt.Errorf("AppendSubPayment: %w", err)
	}
	if trade, ok = updated.(*domain.Trade); !ok {
		return nil, fmt.Errorf("AppendSubPayment: %s: %w", id, bq.ErrNotTrade)
	}
	return trade, nil
}

// subPaymentColumn maps a trade side to its repeated payments column.
func subPaymentColumn(side domain.ContactType) (string, error) {
	switch side {
	case domain.ContactSupplier:
		return "payments_to_supplier", nil
	case domain.ContactBuyer:
		return "payments_from_buyer", nil
	default:
		return "", fmt.Errorf("unknown side %q", side)
	}
}

// buildAppendSubPayment writes an UPDATE that adds one element to a trade's
// payments array. Only trade rows match.
func buildAppendSubPayment(table, col, ownerID, id string, p bq.SubPaymentRow) (string, []bigquery.QueryParameter) {
	sql := fmt.Sprintf(`
		UPDATE %s
		SET %s = ARRAY_CONCAT(%s, [STRUCT(@amount AS amount, @payment_date AS payment_date, @method AS method)]),
		    updated_ts = CURRENT_TIMESTAMP()
		WHERE owner_id = @owner_id AND transaction_id = @transaction_id AND kind = @kind
	`, table, col, col)
	return sql, []bigquery.QueryParameter{
		{Name: "amount", Value: p.Amount},
		{Name: "payment_date", Value: p.PaymentDate},
		{Name: "method", Value: p.Method},
		{Name: "owner_id", Value: ownerID},
		{Name: "transaction_id", Value: id},
		{Name: "kind", Value: string(domain.KindTrade)},
	}
}

// InsertTransactionsWithClient stores a batch of imported transactions.
func InsertTransactionsWithClient(ctx context.Context, client *bigquery.Client, datasetID, ownerID, importID string, txs []domain.Transaction) error {
	for _, tx := range txs {
		if err := SaveTransactionWithClient(ctx, client, datasetID, ownerID, importID, tx); err != nil {
			return fmt.Errorf("InsertTransactions: %w", err)
		}
	}
	return nil
}

// DeleteTransactionWithClient removes a transaction or returns bq.ErrNotFound.
func DeleteTransactionWithClient(ctx context.Context, client *bigquery.Client, datasetID, ownerID, id string) error {
	q := client.Query(fmt.Sprintf(`
		DELETE FROM %s
		WHERE owner_id = @owner_id AND transaction_id = @transaction_id
	`, tableRef(client, datasetID, transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
		{Name: "transaction_id", Value: id},
	}

	n, err := runDML(ctx, q)
	if err != nil {
		return fmt.Errorf("DeleteTransaction: %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("DeleteTransaction: %s: %w", id, bq.ErrNotFound)
	}
	return nil
}

// transactionAssignments lists every non-key column of a row. Columns that
// do not apply to the row's kind are written as NULL or an empty array.
func transactionAssignments(row *bq.TransactionRow) []column {
	cols := []column{
		{"kind", row.Kind},
		{"transaction_date", row.TransactionDate},
		{"item", row.Item},
		{"vehicle_no", row.VehicleNo},
		{"supplier_name", row.SupplierName},
		{"buyer_name", row.BuyerName},
		{"description", row.Description},
		{"name", row.Name},
		{"payment_type", row.PaymentType},
		{"import_id", row.ImportID},
		{"created_ts", row.CreatedTS},
		{"updated_ts", row.UpdatedTS},
	}

	if domain.Kind(row.Kind) == domain.KindTrade {
		cols = append(cols,
			column{"scale_weight", row.ScaleWeight},
			column{"less", row.Less},
			column{"net_weight", row.NetWeight},
			column{"supplier_rate", row.SupplierRate},
			column{"buyer_rate", row.BuyerRate},
			column{"supplier_total", row.SupplierTotal},
			column{"buyer_total", row.BuyerTotal},
			column{"profit", row.Profit},
			column{"payments_to_supplier", row.PaymentsToSupplier},
			column{"payments_from_buyer", row.PaymentsFromBuyer},
			column{"amount", sqlNull},
		)
		return cols
	}

	return append(cols,
		column{"scale_weight", sqlNull},
		column{"less", sqlNull},
		column{"net_weight", sqlNull},
		column{"supplier_rate", sqlNull},
		column{"buyer_rate", sqlNull},
		column{"supplier_total", sqlNull},
		column{"buyer_total", sqlNull},
		column{"profit", sqlNull},
		column{"payments_to_supplier", sqlEmptyArray},
		column{"payments_from_buyer", sqlEmptyArray},
		column{"amount", row.Amount},
	)
}

// readTransactions iterates a query result and decodes every row. A stored
// row that no longer passes validation fails the whole read.
func readTransactions(ctx context.Context, q *bigquery.Query) ([]domain.Transaction, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query read: %w", err)
	}

	var txs []domain.Transaction
	for {
		var r bq.TransactionRow
		err := it.Next(&r)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iter next: %w", err)
		}
		rec, err := r.Record()
		if err != nil {
			return nil, err
		}
		tx, err := ledger.Decode(rec)
		if err != nil {
			return nil, fmt.Errorf("stored row %s: %w", r.TransactionID, err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}
