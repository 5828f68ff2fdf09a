package statement

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/dvloznov/trade-ledger/internal/domain"
)

// Format is an export file format.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// ParseFormat accepts a case-insensitive format name. An empty string means
// JSON.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatCSV, FormatXLSX, FormatPDF:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported statement format %q", s)
	}
}

// ContentType is the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/json"
	}
}

// ExportOptions controls how amounts are rendered.
type ExportOptions struct {
	CurrencySymbol string
	// CurrencyCode replaces the symbol in PDFs, whose core fonts cannot draw
	// most currency signs.
	CurrencyCode string
	GeneratedAt  time.Time
}

func (o ExportOptions) withDefaults() ExportOptions {
	if o.CurrencySymbol == "" {
		o.CurrencySymbol = domain.DefaultCurrencySymbol
	}
	if o.CurrencyCode == "" {
		o.CurrencyCode = "BDT"
	}
	if o.GeneratedAt.IsZero() {
		o.GeneratedAt = time.Now()
	}
	return o
}

// Export renders the statement in one of the file formats.
func Export(stmt *Statement, f Format, opts ExportOptions) ([]byte, error) {
	opts = opts.withDefaults()
	switch f {
	case FormatCSV:
		return BuildCSV(stmt, opts)
	case FormatXLSX:
		return BuildXLSX(stmt, opts)
	case FormatPDF:
		return BuildPDF(stmt, opts)
	default:
		return nil, fmt.Errorf("Export: format %q is not a file format", f)
	}
}

// FileName is the download name for an exported statement.
func FileName(stmt *Statement, f Format, now time.Time) string {
	name := "Overall"
	if stmt.ContactName != "" {
		name = strings.Join(strings.Fields(stmt.ContactName), "_")
	}
	return fmt.Sprintf("Statement-%s-%s.%s", name, now.Format("2006-01-02"), f)
}

var header = []string{"Date", "Party", "Description", "Debit", "Credit", "Balance"}

// BuildCSV renders the statement as CSV with a trailing final balance row.
func BuildCSV(stmt *Statement, opts ExportOptions) ([]byte, error) {
	opts = opts.withDefaults()
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	rows := [][]string{header}
	for _, it := range stmt.Items {
		rows = append(rows, []string{
			it.DateLabel(),
			it.Party,
			it.Description,
			domain.FormatAmount(it.Debit),
			domain.FormatAmount(it.Credit),
			FormatBalance(it.Balance, opts.CurrencySymbol),
		})
	}
	rows = append(rows, []string{
		"", "", "Final Balance",
		domain.FormatAmount(stmt.TotalDebit),
		domain.FormatAmount(stmt.TotalCredit),
		FormatBalance(stmt.FinalBalance, opts.CurrencySymbol),
	})

	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("BuildCSV: %w", err)
	}
	return buf.Bytes(), nil
}

// BuildXLSX renders a workbook with a summary sheet and an items sheet.
func BuildXLSX(stmt *Statement, opts ExportOptions) ([]byte, error) {
	opts = opts.withDefaults()
	f := excelize.NewFile()
	defer f.Close()

	summarySheet := "summary"
	itemsSheet := "items"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("BuildXLSX: rename sheet: %w", err)
	}
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return nil, fmt.Errorf("BuildXLSX: add sheet: %w", err)
	}

	party := stmt.ContactName
	if party == "" {
		party = "All parties"
	}
	summary := [][2]interface{}{
		{"Statement", stmt.Title},
		{"Party", party},
		{"Generated", opts.GeneratedAt.Format(time.RFC3339)},
		{"Total Debit", stmt.TotalDebit.StringFixed(2)},
		{"Total Credit", stmt.TotalCredit.StringFixed(2)},
		{"Final Balance", FormatBalance(stmt.FinalBalance, opts.CurrencySymbol)},
		{"Status", string(stmt.Status)},
	}
	for i, kv := range summary {
		row := i + 1
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), kv[0])
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), kv[1])
	}

	for col, h := range header {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(itemsSheet, cell, h)
	}
	for i, it := range stmt.Items {
		row := i + 2
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("A%d", row), it.DateLabel())
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("B%d", row), it.Party)
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("C%d", row), it.Description)
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("D%d", row), it.Debit.StringFixed(2))
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("E%d", row), it.Credit.StringFixed(2))
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("F%d", row), FormatBalance(it.Balance, opts.CurrencySymbol))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("BuildXLSX: write: %w", err)
	}
	return buf.Bytes(), nil
}

// BuildPDF renders the statement as an A4 table.
func BuildPDF(stmt *Statement, opts ExportOptions) ([]byte, error) {
	opts = opts.withDefaults()
	code := opts.CurrencyCode + " "

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFont("Arial", "B", 14)
	pdf.AddPage()

	pdf.Cell(0, 8, tr(stmt.Title))
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", opts.GeneratedAt.Format("2006-01-02 15:04")))
	pdf.Ln(5)
	if !stmt.From.IsZero() || !stmt.To.IsZero() {
		pdf.Cell(0, 6, fmt.Sprintf("Period: %s to %s", dateOrDash(stmt.From), dateOrDash(stmt.To)))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	widths := []float64{22, 36, 52, 26, 26, 30}
	pdf.SetFont("Arial", "B", 9)
	for i, h := range header {
		pdf.CellFormat(widths[i], 6, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, it := range stmt.Items {
		pdf.CellFormat(widths[0], 6, it.DateLabel(), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[1], 6, tr(truncate(it.Party, 22)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 6, tr(truncate(it.Description, 32)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[3], 6, amountOrBlank(it.Debit), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], 6, amountOrBlank(it.Credit), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[5], 6, FormatBalance(it.Balance, code), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(widths[0]+widths[1]+widths[2], 6, "Final Balance", "1", 0, "R", false, 0, "")
	pdf.CellFormat(widths[3], 6, domain.FormatAmount(stmt.TotalDebit), "1", 0, "R", false, 0, "")
	pdf.CellFormat(widths[4], 6, domain.FormatAmount(stmt.TotalCredit), "1", 0, "R", false, 0, "")
	pdf.CellFormat(widths[5], 6, FormatBalance(stmt.FinalBalance, code), "1", 0, "R", false, 0, "")
	pdf.Ln(-1)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("BuildPDF: %w", err)
	}
	return buf.Bytes(), nil
}

func amountOrBlank(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return d.StringFixed(2)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func dateOrDash(d civil.Date) string {
	if d.IsZero() {
		return "-"
	}
	return d.String()
}
