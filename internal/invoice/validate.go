package invoice

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Warning codes produced by Validate. Validate owns these codes: it drops and
// recomputes them on every run so that repeated runs converge.
const (
	WarnSubtotalMismatch = "line_item_subtotal_mismatch"
	WarnSummaryMismatch  = "summary_total_mismatch"
	WarnInvalidEmail     = "invalid_email"
	WarnUnrecognized     = "unrecognized_value"
)

var validationCodes = map[string]bool{
	WarnSubtotalMismatch: true,
	WarnSummaryMismatch:  true,
	WarnInvalidEmail:     true,
	WarnUnrecognized:     true,
}

var (
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
	whitespace      = regexp.MustCompile(`\s+`)

	emptyMarkers = map[string]bool{
		"":          true,
		"null":      true,
		"none":      true,
		"n/a":       true,
		"-":         true,
		"not found": true,
		"unknown":   true,
	}

	currencySymbols = map[string]string{
		"₹":   "INR",
		"RS":  "INR",
		"RS.": "INR",
		"$":   "USD",
		"US$": "USD",
		"€":   "EUR",
		"£":   "GBP",
		"¥":   "JPY",
	}

	categorySynonyms = map[string]Category{
		"product":   CategoryProduct,
		"products":  CategoryProduct,
		"goods":     CategoryProduct,
		"item":      CategoryProduct,
		"material":  CategoryProduct,
		"service":   CategoryService,
		"services":  CategoryService,
		"labor":     CategoryService,
		"labour":    CategoryService,
		"fee":       CategoryService,
		"tax":       CategoryTax,
		"taxes":     CategoryTax,
		"discount":  CategoryDiscount,
		"discounts": CategoryDiscount,
		"shipping":  CategoryShipping,
		"delivery":  CategoryShipping,
		"freight":   CategoryShipping,
		"other":     CategoryOther,
	}

	taxWords      = []string{"gst", "vat", "tax", "cgst", "sgst", "igst", "utgst"}
	discountWords = []string{"discount", "rebate", "promo"}
	shippingWords = []string{"shipping", "freight", "delivery", "postage", "courier"}
)

// Validate normalizes r in place and returns the complete warning set, which
// is also stored in r.Warnings. It never fails: unusable values become
// NotFound and arithmetic mismatches become warnings. Running Validate on its
// own output changes nothing.
func Validate(r *Result) []Warning {
	r.ensureCollections()

	kept := make([]Warning, 0, len(r.Warnings))
	for _, w := range r.Warnings {
		if !validationCodes[w.Code] {
			kept = append(kept, w)
		}
	}
	r.Warnings = kept

	normalizeMetadata(r)
	normalizeParty(r, "vendor_details", &r.VendorDetails)
	normalizeParty(r, "customer_details", &r.CustomerDetails)
	normalizeLineItems(r)
	normalizeSummary(r)
	normalizePayment(r)
	normalizeAdditional(r)

	if strings.TrimSpace(r.AIModel) == "" {
		r.AIModel = NotFound
	}
	if r.Confidence == "" {
		r.Confidence = ConfidenceLow
	}

	fields := make([]string, 0, len(r.Notes))
	for field := range r.Notes {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		r.AddWarning(Warning{
			Code:    WarnUnrecognized,
			Field:   field,
			Message: fmt.Sprintf("could not interpret %q", r.Notes[field]),
		})
	}

	return r.Warnings
}

// NormalizeText trims and collapses whitespace, mapping empty markers to NotFound.
func NormalizeText(s string) string {
	s = strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
	if emptyMarkers[strings.ToLower(s)] {
		return NotFound
	}
	return s
}

// Found reports whether a text field holds a real value.
func Found(s string) bool {
	return s != "" && s != NotFound
}

func normalizeMetadata(r *Result) {
	m := &r.InvoiceMetadata
	m.InvoiceNumber = NormalizeText(m.InvoiceNumber)
	m.PONumber = NormalizeText(m.PONumber)
	m.InvoiceDate = normalizeDateField(r, "invoice_metadata.invoice_date", m.InvoiceDate)
	m.DueDate = normalizeDateField(r, "invoice_metadata.due_date", m.DueDate)
	m.Currency = normalizeCurrency(r, m.Currency)

	m.Language = NormalizeText(m.Language)
	if Found(m.Language) {
		m.Language = strings.ToLower(m.Language)
	}
}

func normalizeDateField(r *Result, field, value string) string {
	value = NormalizeText(value)
	if !Found(value) {
		return NotFound
	}
	if d, ok := NormalizeDate(value); ok {
		return d
	}
	r.AddNote(field, value)
	return NotFound
}

// NormalizeCurrency maps symbols to ISO 4217 codes and upper-cases codes.
// It reports false when the value is neither.
func NormalizeCurrency(value string) (string, bool) {
	value = NormalizeText(value)
	if !Found(value) {
		return NotFound, true
	}
	upper := strings.ToUpper(value)
	if code, ok := currencySymbols[upper]; ok {
		return code, true
	}
	if currencyPattern.MatchString(upper) {
		return upper, true
	}
	return NotFound, false
}

func normalizeCurrency(r *Result, value string) string {
	code, ok := NormalizeCurrency(value)
	if !ok {
		r.AddNote("invoice_metadata.currency", NormalizeText(value))
	}
	return code
}

func normalizeParty(r *Result, prefix string, p *Party) {
	p.Name = NormalizeText(p.Name)
	p.Address.Street = NormalizeText(p.Address.Street)
	p.Address.City = NormalizeText(p.Address.City)
	p.Address.Region = NormalizeText(p.Address.Region)
	p.Address.PostalCode = NormalizeText(p.Address.PostalCode)
	p.Address.Country = NormalizeText(p.Address.Country)
	p.Phone = NormalizeText(p.Phone)
	p.Website = NormalizeText(p.Website)
	p.TaxID = NormalizeText(p.TaxID)

	p.Email = NormalizeText(p.Email)
	if Found(p.Email) && !emailPattern.MatchString(p.Email) {
		r.AddWarning(Warning{
			Code:    WarnInvalidEmail,
			Field:   prefix + ".email",
			Message: fmt.Sprintf("%q is not a valid email address", p.Email),
		})
	}
}

func normalizeLineItems(r *Result) {
	for i := range r.LineItems {
		item := &r.LineItems[i]
		field := fmt.Sprintf("line_items[%d]", i)

		item.Description = NormalizeText(item.Description)
		item.Category = NormalizeCategory(string(item.Category), item.Description)

		if !item.Quantity.Valid() && (item.UnitPrice.Valid() || item.Subtotal.Valid()) {
			item.Quantity = NewNumber(decimal.NewFromInt(1))
		}
		if !item.Subtotal.Valid() && item.Quantity.Valid() && item.UnitPrice.Valid() {
			item.Subtotal = NewMoney(item.Quantity.Decimal().Mul(item.UnitPrice.Decimal()))
		}
		if !item.TaxAmount.Valid() && item.TaxRate.Valid() && item.Subtotal.Valid() {
			item.TaxAmount = NewMoney(item.Subtotal.Decimal().Mul(rateFraction(item.TaxRate)))
		}

		item.NeedsReview = false
		if item.Quantity.Valid() && item.UnitPrice.Valid() && item.Subtotal.Valid() {
			expected := item.Quantity.Decimal().Mul(item.UnitPrice.Decimal())
			if item.Subtotal.Decimal().Sub(expected).Abs().GreaterThan(tolerance) {
				item.NeedsReview = true
				r.AddWarning(Warning{
					Code:  WarnSubtotalMismatch,
					Field: field + ".subtotal",
					Message: fmt.Sprintf("subtotal %s does not equal %s x %s",
						item.Subtotal, item.Quantity, item.UnitPrice),
				})
			}
		}
	}
}

// rateFraction accepts rates written either as a fraction (0.18) or a percentage (18).
func rateFraction(rate Number) decimal.Decimal {
	d := rate.Decimal()
	if d.GreaterThan(decimal.NewFromInt(1)) {
		return d.Div(decimal.NewFromInt(100))
	}
	return d
}

// NormalizeCategory maps free-form labels onto the fixed category set. An
// empty label is inferred from the description.
func NormalizeCategory(label, description string) Category {
	label = strings.ToLower(strings.TrimSpace(label))
	if label != "" && label != strings.ToLower(NotFound) {
		if c, ok := categorySynonyms[label]; ok {
			return c
		}
		return CategoryOther
	}

	desc := strings.ToLower(description)
	switch {
	case containsWord(desc, taxWords):
		return CategoryTax
	case containsWord(desc, discountWords):
		return CategoryDiscount
	case containsWord(desc, shippingWords):
		return CategoryShipping
	}
	return CategoryOther
}

func containsWord(s string, words []string) bool {
	for _, field := range strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		for _, w := range words {
			if field == w {
				return true
			}
		}
	}
	return false
}

func normalizeSummary(r *Result) {
	s := &r.Summary

	cleaned := make(map[string]Money, len(s.TaxBreakdown))
	for label, amount := range s.TaxBreakdown {
		if !amount.Valid() {
			continue
		}
		label = NormalizeText(label)
		if !Found(label) {
			label = "TAX"
		}
		cleaned[label] = cleaned[label].Add(amount)
	}
	s.TaxBreakdown = cleaned

	if !s.Subtotal.Valid() {
		s.Subtotal = r.LineItemTotal()
	}
	if !s.GrandTotal.Valid() && s.Subtotal.Valid() {
		s.GrandTotal = expectedGrandTotal(s)
		return
	}

	if s.GrandTotal.Valid() && s.Subtotal.Valid() {
		expected := expectedGrandTotal(s)
		if s.GrandTotal.Decimal().Sub(expected.Decimal()).Abs().GreaterThan(tolerance) {
			r.AddWarning(Warning{
				Code:  WarnSummaryMismatch,
				Field: "summary.grand_total",
				Message: fmt.Sprintf("grand total %s does not equal subtotal - discount + tax + shipping (%s)",
					s.GrandTotal, expected),
			})
		}
	}
}

func expectedGrandTotal(s *Summary) Money {
	total := s.Subtotal.Decimal().
		Sub(s.Discount.Decimal().Abs()).
		Add(s.TaxTotal().Decimal()).
		Add(s.Shipping.Decimal())
	return NewMoney(total)
}

func normalizePayment(r *Result) {
	p := &r.PaymentInfo
	p.Terms = NormalizeText(p.Terms)
	p.Methods = dedupe(p.Methods)

	if b := p.BankDetails; b != nil {
		b.AccountName = NormalizeText(b.AccountName)
		b.AccountNumber = NormalizeText(b.AccountNumber)
		b.RoutingNumber = NormalizeText(b.RoutingNumber)
		b.IBAN = NormalizeText(b.IBAN)
		b.SwiftCode = NormalizeText(b.SwiftCode)
		if !Found(b.AccountName) && !Found(b.AccountNumber) && !Found(b.RoutingNumber) &&
			!Found(b.IBAN) && !Found(b.SwiftCode) {
			p.BankDetails = nil
		}
	}
}

func normalizeAdditional(r *Result) {
	a := &r.AdditionalInfo
	a.Notes = NormalizeText(a.Notes)
	a.TermsConditions = NormalizeText(a.TermsConditions)
	a.ReferenceNumbers = dedupe(a.ReferenceNumbers)
}

// dedupe trims values and removes case-insensitive duplicates, keeping the
// first spelling seen.
func dedupe(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = NormalizeText(v)
		if !Found(v) {
			continue
		}
		key := strings.ToLower(v)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}
