package invoice

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// NotFound marks a field that extraction attempted but could not find.
const NotFound = "Not Found"

// Method identifies the extractor that produced a Result.
type Method string

const (
	MethodAI    Method = "ai"
	MethodRegex Method = "regex"
	// MethodHybrid is reserved; results are never merged across extractors.
	MethodHybrid Method = "hybrid"
)

// Confidence is a coarse quality indicator derived from field completeness.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Category classifies a line item.
type Category string

const (
	CategoryProduct  Category = "product"
	CategoryService  Category = "service"
	CategoryTax      Category = "tax"
	CategoryDiscount Category = "discount"
	CategoryShipping Category = "shipping"
	CategoryOther    Category = "other"
)

// Metadata holds invoice-level identifiers.
type Metadata struct {
	InvoiceNumber string `json:"invoice_number"`
	InvoiceDate   string `json:"invoice_date"`
	DueDate       string `json:"due_date"`
	PONumber      string `json:"po_number"`
	Currency      string `json:"currency"`
	Language      string `json:"language"`
}

// Address is kept as separate components so each can be edited on its own.
type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Party describes the vendor or the customer.
type Party struct {
	Name    string  `json:"name"`
	Address Address `json:"address"`
	Phone   string  `json:"phone"`
	Email   string  `json:"email"`
	Website string  `json:"website"`
	TaxID   string  `json:"tax_id"`
}

// LineItem is a single billed line.
type LineItem struct {
	Description string   `json:"description"`
	Quantity    Number   `json:"quantity"`
	UnitPrice   Money    `json:"unit_price"`
	Subtotal    Money    `json:"subtotal"`
	TaxRate     Number   `json:"tax_rate"`
	TaxAmount   Money    `json:"tax_amount"`
	Category    Category `json:"category"`
	NeedsReview bool     `json:"needs_review"`
}

// Summary holds the document totals.
type Summary struct {
	Subtotal     Money            `json:"subtotal"`
	TaxBreakdown map[string]Money `json:"tax_breakdown"`
	Discount     Money            `json:"discount"`
	Shipping     Money            `json:"shipping"`
	GrandTotal   Money            `json:"grand_total"`
}

// TaxTotal sums the tax breakdown. It is not found when the breakdown is empty.
func (s Summary) TaxTotal() Money {
	var total Money
	for _, m := range s.TaxBreakdown {
		total = total.Add(m)
	}
	return total
}

// BankDetails is optional; a nil pointer means none were found.
type BankDetails struct {
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	RoutingNumber string `json:"routing_number"`
	IBAN          string `json:"iban"`
	SwiftCode     string `json:"swift_code"`
}

// PaymentInfo describes how the invoice is to be paid.
type PaymentInfo struct {
	Terms       string       `json:"terms"`
	Methods     []string     `json:"methods"`
	BankDetails *BankDetails `json:"bank_details"`
}

// AdditionalInfo carries free text that does not fit elsewhere.
type AdditionalInfo struct {
	Notes            string   `json:"notes"`
	TermsConditions  string   `json:"terms_conditions"`
	ReferenceNumbers []string `json:"reference_numbers"`
}

// Warning is a non-fatal finding attached to a Result.
type Warning struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result is the canonical structured record produced for one file.
type Result struct {
	InvoiceMetadata  Metadata          `json:"invoice_metadata"`
	VendorDetails    Party             `json:"vendor_details"`
	CustomerDetails  Party             `json:"customer_details"`
	LineItems        []LineItem        `json:"line_items"`
	Summary          Summary           `json:"summary"`
	PaymentInfo      PaymentInfo       `json:"payment_info"`
	AdditionalInfo   AdditionalInfo    `json:"additional_info"`
	ExtractionMethod Method            `json:"extraction_method"`
	AIModel          string            `json:"ai_model"`
	Confidence       Confidence        `json:"confidence"`
	ConfidenceScore  float64           `json:"confidence_score"`
	ProcessedAt      time.Time         `json:"processed_at"`
	Warnings         []Warning         `json:"warnings"`
	Notes            map[string]string `json:"notes"`
	RawText          string            `json:"raw_text"`
}

// New returns a Result with every text field set to NotFound and every
// collection empty rather than nil.
func New() *Result {
	r := &Result{
		InvoiceMetadata: Metadata{
			InvoiceNumber: NotFound,
			InvoiceDate:   NotFound,
			DueDate:       NotFound,
			PONumber:      NotFound,
			Currency:      NotFound,
			Language:      NotFound,
		},
		VendorDetails:   emptyParty(),
		CustomerDetails: emptyParty(),
		PaymentInfo:     PaymentInfo{Terms: NotFound},
		AdditionalInfo:  AdditionalInfo{Notes: NotFound, TermsConditions: NotFound},
		AIModel:         NotFound,
		Confidence:      ConfidenceLow,
	}
	r.ensureCollections()
	return r
}

func emptyParty() Party {
	return Party{
		Name: NotFound,
		Address: Address{
			Street:     NotFound,
			City:       NotFound,
			Region:     NotFound,
			PostalCode: NotFound,
			Country:    NotFound,
		},
		Phone:   NotFound,
		Email:   NotFound,
		Website: NotFound,
		TaxID:   NotFound,
	}
}

func (r *Result) ensureCollections() {
	if r.LineItems == nil {
		r.LineItems = []LineItem{}
	}
	if r.Summary.TaxBreakdown == nil {
		r.Summary.TaxBreakdown = map[string]Money{}
	}
	if r.PaymentInfo.Methods == nil {
		r.PaymentInfo.Methods = []string{}
	}
	if r.AdditionalInfo.ReferenceNumbers == nil {
		r.AdditionalInfo.ReferenceNumbers = []string{}
	}
	if r.Warnings == nil {
		r.Warnings = []Warning{}
	}
	if r.Notes == nil {
		r.Notes = map[string]string{}
	}
}

// MarshalJSON guarantees every collection serializes as [] or {} and never null.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	p := plain(r)
	(*Result)(&p).ensureCollections()
	return json.Marshal(p)
}

// AddNote records original source text for a field whose value was replaced.
func (r *Result) AddNote(field, original string) {
	if r.Notes == nil {
		r.Notes = map[string]string{}
	}
	r.Notes[field] = original
}

// AddWarning appends a warning unless an identical one is already present.
func (r *Result) AddWarning(w Warning) {
	for _, existing := range r.Warnings {
		if existing == w {
			return
		}
	}
	r.Warnings = append(r.Warnings, w)
}

// LineItemTotal sums the subtotals of billable items, excluding tax,
// discount and shipping lines.
func (r *Result) LineItemTotal() Money {
	var total Money
	for _, item := range r.LineItems {
		switch item.Category {
		case CategoryTax, CategoryDiscount, CategoryShipping:
			continue
		}
		total = total.Add(item.Subtotal)
	}
	return total
}

func roundScore(f float64) float64 {
	d, _ := decimal.NewFromFloat(f).Round(2).Float64()
	return d
}
