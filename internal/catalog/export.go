package catalog

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/zombor/invoicer/internal/invoice"
)

const (
	lineItemSheet = "Line Items"
	categorySheet = "Categories"
)

// ExportLineItems renders a record's line items as an XLSX workbook with a
// per-category summary sheet. It returns the workbook and a download name.
func (s *Service) ExportLineItems(id string) ([]byte, string, error) {
	start := s.timeSource.Now()

	record, err := s.db.GetInvoice(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting invoice: %w", err)
	}
	result := record.Result
	if result == nil {
		result = invoice.New()
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", lineItemSheet); err != nil {
		return nil, "", fmt.Errorf("naming sheet: %w", err)
	}
	if _, err := f.NewSheet(categorySheet); err != nil {
		return nil, "", fmt.Errorf("creating sheet: %w", err)
	}

	if err := writeRow(f, lineItemSheet, 1, "#", "Description", "Category", "Quantity", "Unit Price", "Subtotal", "Tax Rate", "Tax Amount", "Needs Review"); err != nil {
		return nil, "", err
	}
	for i, item := range result.LineItems {
		err := writeRow(f, lineItemSheet, i+2,
			i+1,
			item.Description,
			string(item.Category),
			numberCell(item.Quantity),
			moneyCell(item.UnitPrice),
			moneyCell(item.Subtotal),
			numberCell(item.TaxRate),
			moneyCell(item.TaxAmount),
			item.NeedsReview,
		)
		if err != nil {
			return nil, "", err
		}
	}
	if err := setColWidths(f, lineItemSheet, colWidth{"A", "A", 6}, colWidth{"B", "B", 48}, colWidth{"C", "I", 14}); err != nil {
		return nil, "", err
	}

	if err := writeRow(f, categorySheet, 1, "Category", "Items", "Total"); err != nil {
		return nil, "", err
	}
	for i, c := range summarizeCategories(result.LineItems) {
		if err := writeRow(f, categorySheet, i+2, string(c.Category), c.Count, moneyCell(c.Total)); err != nil {
			return nil, "", err
		}
	}
	if err := setColWidths(f, categorySheet, colWidth{"A", "C", 16}); err != nil {
		return nil, "", err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("Exported line items",
		"id", id,
		"rows", len(result.LineItems),
		"elapsed_ms", s.timeSource.Now().Sub(start).Milliseconds(),
	)
	return buf.Bytes(), fmt.Sprintf("invoice_%s_line_items.xlsx", id), nil
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return fmt.Errorf("locating cell %d,%d on %s: %w", i+1, row, sheet, err)
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("writing cell %s on %s: %w", cell, sheet, err)
		}
	}
	return nil
}

type colWidth struct {
	from, to string
	width    float64
}

func setColWidths(f *excelize.File, sheet string, widths ...colWidth) error {
	for _, w := range widths {
		if err := f.SetColWidth(sheet, w.from, w.to, w.width); err != nil {
			return fmt.Errorf("sizing columns %s:%s on %s: %w", w.from, w.to, sheet, err)
		}
	}
	return nil
}

// moneyCell writes found amounts as numbers and missing ones as the sentinel.
func moneyCell(m invoice.Money) any {
	if !m.Valid() {
		return invoice.NotFound
	}
	return m.Decimal().InexactFloat64()
}

func numberCell(n invoice.Number) any {
	if !n.Valid() {
		return invoice.NotFound
	}
	return n.Decimal().InexactFloat64()
}

// CategoryTotal counts and sums the line items of one category.
type CategoryTotal struct {
	Category invoice.Category `json:"category"`
	Count    int              `json:"count"`
	Total    invoice.Money    `json:"total"`
}

func summarizeCategories(items []invoice.LineItem) []CategoryTotal {
	byCategory := map[invoice.Category]*CategoryTotal{}
	for _, item := range items {
		c := item.Category
		if c == "" {
			c = invoice.CategoryOther
		}
		t, ok := byCategory[c]
		if !ok {
			t = &CategoryTotal{Category: c}
			byCategory[c] = t
		}
		t.Count++
		t.Total = t.Total.Add(item.Subtotal)
	}

	totals := make([]CategoryTotal, 0, len(byCategory))
	for _, t := range byCategory {
		totals = append(totals, *t)
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].Category < totals[j].Category })
	return totals
}

// Ledger account codes per line item category.
var accountCodes = map[invoice.Category]string{
	invoice.CategoryProduct:  "4000",
	invoice.CategoryService:  "4100",
	invoice.CategoryTax:      "2200",
	invoice.CategoryDiscount: "4900",
	invoice.CategoryShipping: "4200",
	invoice.CategoryOther:    "4999",
}

func accountCode(c invoice.Category) string {
	if code, ok := accountCodes[c]; ok {
		return code
	}
	return accountCodes[invoice.CategoryOther]
}

func taxCode(description string) string {
	d := strings.ToLower(description)
	switch {
	case strings.Contains(d, "gst"), strings.Contains(d, "vat"):
		return "GST"
	case strings.Contains(d, "sales tax"):
		return "ST"
	default:
		return "TAX"
	}
}

// AccountingEntry maps one line item onto a ledger account.
type AccountingEntry struct {
	LineItemIndex int              `json:"line_item_index"`
	Type          invoice.Category `json:"type"`
	Description   string           `json:"description"`
	Quantity      invoice.Number   `json:"quantity"`
	UnitPrice     invoice.Money    `json:"unit_price"`
	Amount        invoice.Money    `json:"amount"`
	AccountCode   string           `json:"account_code"`
	TaxCode       string           `json:"tax_code,omitempty"`
}

// Accounting is the accounting view of one record.
type Accounting struct {
	InvoiceID     string            `json:"invoice_id"`
	InvoiceNumber string            `json:"invoice_number"`
	Vendor        string            `json:"vendor"`
	InvoiceDate   string            `json:"invoice_date"`
	Currency      string            `json:"currency"`
	GeneratedAt   time.Time         `json:"generated_at"`
	Entries       []AccountingEntry `json:"accounting_entries"`
	Categories    []CategoryTotal   `json:"categories"`
	GrandTotal    invoice.Money     `json:"grand_total"`
}

// AccountingEntries maps a record's line items onto ledger accounts.
func (s *Service) AccountingEntries(id string) (*Accounting, error) {
	record, err := s.db.GetInvoice(id)
	if err != nil {
		return nil, fmt.Errorf("getting invoice: %w", err)
	}
	result := record.Result
	if result == nil {
		result = invoice.New()
	}

	entries := make([]AccountingEntry, 0, len(result.LineItems))
	for i, item := range result.LineItems {
		category := item.Category
		if category == "" {
			category = invoice.CategoryOther
		}
		entry := AccountingEntry{
			LineItemIndex: i,
			Type:          category,
			Description:   item.Description,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			Amount:        item.Subtotal,
			AccountCode:   accountCode(category),
		}
		if category == invoice.CategoryTax {
			entry.TaxCode = taxCode(item.Description)
		}
		entries = append(entries, entry)
	}

	return &Accounting{
		InvoiceID:     record.ID,
		InvoiceNumber: result.InvoiceMetadata.InvoiceNumber,
		Vendor:        result.VendorDetails.Name,
		InvoiceDate:   result.InvoiceMetadata.InvoiceDate,
		Currency:      result.InvoiceMetadata.Currency,
		GeneratedAt:   s.timeSource.Now().UTC(),
		Entries:       entries,
		Categories:    summarizeCategories(result.LineItems),
		GrandTotal:    result.Summary.GrandTotal,
	}, nil
}
