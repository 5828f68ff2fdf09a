package bigquery

import (
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/trade-ledger/internal/domain"
)

// SubPaymentRow is one element of the repeated payments columns.
type SubPaymentRow struct {
	Amount      *big.Rat   `bigquery:"amount"`       // REQUIRED NUMERIC
	PaymentDate civil.Date `bigquery:"payment_date"` // REQUIRED
	Method      string     `bigquery:"method"`       // NULLABLE
}

// TransactionRow represents a trade or payment in ledger.transactions. Trade
// columns are NULL on payment rows and the other way round.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	OwnerID       string `bigquery:"owner_id"`       // REQUIRED
	Kind          string `bigquery:"kind"`           // REQUIRED: trade | payment

	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED

	Item         bigquery.NullString `bigquery:"item"`
	VehicleNo    bigquery.NullString `bigquery:"vehicle_no"`
	SupplierName bigquery.NullString `bigquery:"supplier_name"`
	BuyerName    bigquery.NullString `bigquery:"buyer_name"`

	ScaleWeight   *big.Rat `bigquery:"scale_weight"`   // NULLABLE NUMERIC
	Less          *big.Rat `bigquery:"less"`           // NULLABLE NUMERIC
	NetWeight     *big.Rat `bigquery:"net_weight"`     // NULLABLE NUMERIC
	SupplierRate  *big.Rat `bigquery:"supplier_rate"`  // NULLABLE NUMERIC
	BuyerRate     *big.Rat `bigquery:"buyer_rate"`     // NULLABLE NUMERIC
	SupplierTotal *big.Rat `bigquery:"supplier_total"` // NULLABLE NUMERIC
	BuyerTotal    *big.Rat `bigquery:"buyer_total"`    // NULLABLE NUMERIC
	Profit        *big.Rat `bigquery:"profit"`         // NULLABLE NUMERIC

	PaymentsToSupplier []SubPaymentRow `bigquery:"payments_to_supplier"` // REPEATED RECORD
	PaymentsFromBuyer  []SubPaymentRow `bigquery:"payments_from_buyer"`  // REPEATED RECORD

	Description bigquery.NullString `bigquery:"description"`
	Name        bigquery.NullString `bigquery:"name"`
	Amount      *big.Rat            `bigquery:"amount"` // NULLABLE NUMERIC
	PaymentType bigquery.NullString `bigquery:"payment_type"`

	ImportID bigquery.NullString `bigquery:"import_id"`

	CreatedTS time.Time              `bigquery:"created_ts"`
	UpdatedTS bigquery.NullTimestamp `bigquery:"updated_ts"`
}

// ContactRow represents a party in ledger.contacts.
type ContactRow struct {
	ContactID   string              `bigquery:"contact_id"`
	OwnerID     string              `bigquery:"owner_id"`
	Name        string              `bigquery:"name"`
	ContactType string              `bigquery:"contact_type"`
	Phone       bigquery.NullString `bigquery:"phone"`

	OpeningAmount *big.Rat            `bigquery:"opening_amount"` // NULLABLE NUMERIC
	OpeningType   bigquery.NullString `bigquery:"opening_type"`

	CreatedTS time.Time              `bigquery:"created_ts"`
	UpdatedTS bigquery.NullTimestamp `bigquery:"updated_ts"`
}

// NewTransactionRow maps a domain transaction to its row.
func NewTransactionRow(ownerID string, tx domain.Transaction, now time.Time) (*TransactionRow, error) {
	row := &TransactionRow{
		TransactionID:   tx.TransactionID(),
		OwnerID:         ownerID,
		Kind:            string(tx.Kind()),
		TransactionDate: tx.TransactionDate(),
		CreatedTS:       now,
		UpdatedTS:       bigquery.NullTimestamp{Timestamp: now, Valid: true},
	}
	switch v := tx.(type) {
	case *domain.Trade:
		row.Item = nullString(v.Item)
		row.VehicleNo = nullString(v.VehicleNo)
		row.SupplierName = nullString(v.SupplierName)
		row.BuyerName = nullString(v.BuyerName)
		row.ScaleWeight = v.ScaleWeight.Rat()
		row.Less = v.Less.Rat()
		row.NetWeight = v.NetWeight.Rat()
		row.SupplierRate = v.SupplierRate.Rat()
		row.BuyerRate = v.BuyerRate.Rat()
		row.SupplierTotal = v.SupplierTotal.Rat()
		row.BuyerTotal = v.BuyerTotal.Rat()
		row.Profit = v.Profit.Rat()
		row.PaymentsToSupplier = subPaymentRows(v.PaymentsToSupplier, v.Date)
		row.PaymentsFromBuyer = subPaymentRows(v.PaymentsFromBuyer, v.Date)
	case *domain.Payment:
		row.Description = nullString(v.Description)
		row.Name = nullString(v.Name)
		row.Amount = v.Amount.Rat()
		row.PaymentType = nullString(string(v.PaymentType))
	default:
		return nil, fmt.Errorf("NewTransactionRow: unsupported transaction %T", tx)
	}
	return row, nil
}

// Record maps the row back to the wire shape. Callers decode it with
// ledger.Decode so stored rows go through the same validation as input.
func (r *TransactionRow) Record() (domain.Record, error) {
	rec := domain.Record{
		ID:   r.TransactionID,
		Type: r.Kind,
		Date: r.TransactionDate.String(),
	}
	if domain.Kind(r.Kind) == domain.KindPayment {
		rec.Description = r.Description.StringVal
		rec.Name = r.Name.StringVal
		rec.PaymentType = r.PaymentType.StringVal
		amount, err := ratPtr(r.Amount)
		if err != nil {
			return rec, fmt.Errorf("Record: %s amount: %w", r.TransactionID, err)
		}
		rec.Amount = amount
		return rec, nil
	}

	rec.Item = r.Item.StringVal
	rec.VehicleNo = r.VehicleNo.StringVal
	rec.SupplierName = r.SupplierName.StringVal
	rec.BuyerName = r.BuyerName.StringVal
	for _, f := range []struct {
		dst **decimal.Decimal
		src *big.Rat
	}{
		{&rec.ScaleWeight, r.ScaleWeight},
		{&rec.Less, r.Less},
		{&rec.NetWeight, r.NetWeight},
		{&rec.SupplierRate, r.SupplierRate},
		{&rec.BuyerRate, r.BuyerRate},
		{&rec.SupplierTotal, r.SupplierTotal},
		{&rec.BuyerTotal, r.BuyerTotal},
		{&rec.Profit, r.Profit},
	} {
		d, err := ratPtr(f.src)
		if err != nil {
			return rec, fmt.Errorf("Record: %s: %w", r.TransactionID, err)
		}
		*f.dst = d
	}
	var err error
	if rec.PaymentsToSupplier, err = subPaymentRecords(r.PaymentsToSupplier); err != nil {
		return rec, fmt.Errorf("Record: %s payments_to_supplier: %w", r.TransactionID, err)
	}
	if rec.PaymentsFromBuyer, err = subPaymentRecords(r.PaymentsFromBuyer); err != nil {
		return rec, fmt.Errorf("Record: %s payments_from_buyer: %w", r.TransactionID, err)
	}
	return rec, nil
}

// NewContactRow maps a contact to its row.
func NewContactRow(ownerID string, c *domain.Contact, now time.Time) *ContactRow {
	row := &ContactRow{
		ContactID:   c.ID,
		OwnerID:     ownerID,
		Name:        c.Name,
		ContactType: string(c.Type),
		Phone:       nullString(c.Phone),
		CreatedTS:   now,
		UpdatedTS:   bigquery.NullTimestamp{Timestamp: now, Valid: true},
	}
	if ob := c.OpeningBalance; ob != nil {
		row.OpeningAmount = ob.Amount.Rat()
		row.OpeningType = nullString(string(ob.Type))
	}
	return row
}

// Contact maps the row back to a domain contact.
func (r *ContactRow) Contact() (*domain.Contact, error) {
	c := &domain.Contact{
		ID:    r.ContactID,
		Name:  r.Name,
		Type:  domain.ContactType(r.ContactType),
		Phone: r.Phone.StringVal,
	}
	if r.OpeningAmount != nil && r.OpeningType.Valid {
		amount, err := RatToDecimal(r.OpeningAmount)
		if err != nil {
			return nil, fmt.Errorf("Contact: %s opening_amount: %w", r.ContactID, err)
		}
		c.OpeningBalance = &domain.OpeningBalance{Amount: amount, Type: domain.BalanceType(r.OpeningType.StringVal)}
	}
	return c, nil
}

// RatToDecimal converts a NUMERIC value. NUMERIC has nine fractional digits
// so the conversion is exact.
func RatToDecimal(r *big.Rat) (decimal.Decimal, error) {
	if r == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(r.FloatString(9))
}

func ratPtr(r *big.Rat) (*decimal.Decimal, error) {
	if r == nil {
		return nil, nil
	}
	d, err := RatToDecimal(r)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// subPaymentRows defaults undated payments to the trade date.
func subPaymentRows(ps []domain.SubPayment, tradeDate civil.Date) []SubPaymentRow {
	out := make([]SubPaymentRow, len(ps))
	for i, p := range ps {
		date := p.Date
		if date.IsZero() {
			date = tradeDate
		}
		out[i] = SubPaymentRow{Amount: p.Amount.Rat(), PaymentDate: date, Method: p.Method}
	}
	return out
}

func subPaymentRecords(rows []SubPaymentRow) ([]domain.SubPaymentRecord, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	out := make([]domain.SubPaymentRecord, len(rows))
	for i, r := range rows {
		amount, err := ratPtr(r.Amount)
		if err != nil {
			return nil, err
		}
		out[i] = domain.SubPaymentRecord{Amount: amount, Date: r.PaymentDate.String(), Method: r.Method}
	}
	return out, nil
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}
