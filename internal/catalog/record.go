package catalog

import (
	"time"

	"github.com/zombor/invoicer/internal/invoice"
)

// Record is a processed invoice together with its stored upload.
type Record struct {
	ID               string          `json:"id"`
	OriginalFilename string          `json:"original_filename"`
	Filename         string          `json:"filename"`
	ContentType      string          `json:"content_type"`
	Result           *invoice.Result `json:"result"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Summary is the list view of a Record.
type Summary struct {
	ID               string             `json:"id"`
	OriginalFilename string             `json:"original_filename"`
	InvoiceNumber    string             `json:"invoice_number"`
	Vendor           string             `json:"vendor"`
	InvoiceDate      string             `json:"invoice_date"`
	GrandTotal       invoice.Money      `json:"grand_total"`
	Currency         string             `json:"currency"`
	ExtractionMethod invoice.Method     `json:"extraction_method"`
	Confidence       invoice.Confidence `json:"confidence"`
	ProcessedAt      time.Time          `json:"processed_at"`
	CreatedAt        time.Time          `json:"created_at"`
}

// Summarize builds the list view of r.
func (r *Record) Summarize() Summary {
	s := Summary{
		ID:               r.ID,
		OriginalFilename: r.OriginalFilename,
		InvoiceNumber:    invoice.NotFound,
		Vendor:           invoice.NotFound,
		InvoiceDate:      invoice.NotFound,
		Currency:         invoice.NotFound,
		CreatedAt:        r.CreatedAt,
	}
	if res := r.Result; res != nil {
		s.InvoiceNumber = res.InvoiceMetadata.InvoiceNumber
		s.Vendor = res.VendorDetails.Name
		s.InvoiceDate = res.InvoiceMetadata.InvoiceDate
		s.GrandTotal = res.Summary.GrandTotal
		s.Currency = res.InvoiceMetadata.Currency
		s.ExtractionMethod = res.ExtractionMethod
		s.Confidence = res.Confidence
		s.ProcessedAt = res.ProcessedAt
	}
	return s
}
