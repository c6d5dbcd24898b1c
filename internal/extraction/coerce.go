package extraction

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/zombor/invoicer/internal/invoice"
)

// Warning codes produced while mapping an AI reply onto the record.
const (
	WarnSectionMissing  = "section_missing"
	WarnSectionInvalid  = "section_invalid"
	WarnLineItemInvalid = "line_item_invalid"
)

// coercer maps a loosely typed JSON document onto an invoice.Result. Values it
// cannot interpret become NotFound and their source text is kept in notes.
type coercer struct {
	result *invoice.Result
}

func resultFromDocument(doc map[string]any) *invoice.Result {
	c := &coercer{result: invoice.New()}
	invalid := invalidSections(doc)

	// Accept the alternate section names some models prefer.
	alias(doc, "payment_info", "payment_terms", "payment")
	alias(doc, "vendor_details", "vendor", "supplier")
	alias(doc, "customer_details", "customer", "bill_to")

	for _, s := range sections {
		raw, present := doc[s.name]
		switch {
		case invalid[s.name]:
			c.result.AddWarning(invoice.Warning{
				Code:    WarnSectionInvalid,
				Field:   s.name,
				Message: fmt.Sprintf("%s must be a JSON %s; using an empty default", s.name, s.jsonType),
			})
			continue
		case !present || raw == nil:
			c.result.AddWarning(invoice.Warning{
				Code:    WarnSectionMissing,
				Field:   s.name,
				Message: fmt.Sprintf("%s was missing from the response; using an empty default", s.name),
			})
			continue
		}

		switch s.name {
		case "invoice_metadata":
			c.metadata(raw.(map[string]any))
		case "vendor_details":
			c.result.VendorDetails = c.party(raw.(map[string]any))
		case "customer_details":
			c.result.CustomerDetails = c.party(raw.(map[string]any))
		case "line_items":
			c.lineItems(raw.([]any))
		case "summary":
			c.summary(raw.(map[string]any))
		case "payment_info":
			c.payment(raw.(map[string]any))
		case "additional_info":
			c.additional(raw.(map[string]any))
		}
	}
	return c.result
}

func alias(doc map[string]any, canonical string, alternates ...string) {
	if _, ok := doc[canonical]; ok {
		return
	}
	for _, alt := range alternates {
		if v, ok := doc[alt]; ok {
			if _, isObject := v.(map[string]any); isObject {
				doc[canonical] = v
				return
			}
		}
	}
}

// lookup returns the first present, non-null value among keys.
func lookup(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func (c *coercer) text(m map[string]any, keys ...string) string {
	v, ok := lookup(m, keys...)
	if !ok {
		return invoice.NotFound
	}
	switch t := v.(type) {
	case string:
		return invoice.NormalizeText(t)
	case json.Number:
		return t.String()
	case bool:
		return invoice.NotFound
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			if s, ok := p.(string); ok {
				parts = append(parts, s)
			}
		}
		return invoice.NormalizeText(strings.Join(parts, ", "))
	}
	return invoice.NotFound
}

func (c *coercer) decimal(path string, m map[string]any, keys ...string) (decimal.Decimal, bool) {
	v, ok := lookup(m, keys...)
	if !ok {
		return decimal.Zero, false
	}
	switch t := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			c.result.AddNote(path, t.String())
			return decimal.Zero, false
		}
		return d, true
	case string:
		if !invoice.Found(invoice.NormalizeText(t)) {
			return decimal.Zero, false
		}
		if d, ok := invoice.ParseDecimal(t); ok {
			return d, true
		}
		c.result.AddNote(path, t)
		return decimal.Zero, false
	default:
		c.result.AddNote(path, fmt.Sprint(t))
		return decimal.Zero, false
	}
}

func (c *coercer) money(path string, m map[string]any, keys ...string) invoice.Money {
	if d, ok := c.decimal(path, m, keys...); ok {
		return invoice.NewMoney(d)
	}
	return invoice.Money{}
}

func (c *coercer) number(path string, m map[string]any, keys ...string) invoice.Number {
	if d, ok := c.decimal(path, m, keys...); ok {
		return invoice.NewNumber(d)
	}
	return invoice.Number{}
}

func (c *coercer) list(m map[string]any, keys ...string) []string {
	v, ok := lookup(m, keys...)
	if !ok {
		return []string{}
	}
	switch t := v.(type) {
	case string:
		out := []string{}
		for _, part := range strings.Split(t, ",") {
			out = append(out, strings.TrimSpace(part))
		}
		return out
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			switch s := item.(type) {
			case string:
				out = append(out, s)
			case json.Number:
				out = append(out, s.String())
			}
		}
		return out
	}
	return []string{}
}

func object(m map[string]any, keys ...string) map[string]any {
	v, ok := lookup(m, keys...)
	if !ok {
		return nil
	}
	obj, _ := v.(map[string]any)
	return obj
}

func (c *coercer) metadata(m map[string]any) {
	md := &c.result.InvoiceMetadata
	md.InvoiceNumber = c.text(m, "invoice_number", "number", "invoice_no")
	md.InvoiceDate = c.text(m, "invoice_date", "date", "issue_date")
	md.DueDate = c.text(m, "due_date")
	md.PONumber = c.text(m, "po_number", "purchase_order")
	md.Currency = c.text(m, "currency", "currency_code")
	md.Language = c.text(m, "language")
}

func (c *coercer) party(m map[string]any) invoice.Party {
	p := invoice.New().VendorDetails
	p.Name = c.text(m, "name", "company_name")

	if addr := object(m, "address"); addr != nil {
		p.Address = invoice.Address{
			Street:     c.text(addr, "street", "line1", "address_line"),
			City:       c.text(addr, "city"),
			Region:     c.text(addr, "region", "state", "province"),
			PostalCode: c.text(addr, "postal_code", "zip", "zip_code", "postcode"),
			Country:    c.text(addr, "country"),
		}
	} else if s := c.text(m, "address"); invoice.Found(s) {
		p.Address.Street = s
	}

	contact := object(m, "contact")
	if contact == nil {
		contact = m
	}
	p.Phone = firstFound(c.text(m, "phone"), c.text(contact, "phone", "telephone", "mobile"))
	p.Email = firstFound(c.text(m, "email"), c.text(contact, "email"))
	p.Website = firstFound(c.text(m, "website"), c.text(contact, "website", "url"))
	p.TaxID = c.text(m, "tax_id", "gstin", "vat_number", "vat_id", "gst_number")
	return p
}

func firstFound(values ...string) string {
	for _, v := range values {
		if invoice.Found(v) {
			return v
		}
	}
	return invoice.NotFound
}

func (c *coercer) lineItems(items []any) {
	for i, raw := range items {
		m, ok := raw.(map[string]any)
		if !ok {
			c.result.AddWarning(invoice.Warning{
				Code:    WarnLineItemInvalid,
				Field:   fmt.Sprintf("line_items[%d]", i),
				Message: fmt.Sprintf("line item is a JSON %T, not an object; skipped", raw),
			})
			continue
		}
		path := fmt.Sprintf("line_items[%d]", len(c.result.LineItems))
		c.result.LineItems = append(c.result.LineItems, invoice.LineItem{
			Description: c.text(m, "description", "name", "item"),
			Quantity:    c.number(path+".quantity", m, "quantity", "qty"),
			UnitPrice:   c.money(path+".unit_price", m, "unit_price", "price", "rate"),
			Subtotal:    c.money(path+".subtotal", m, "subtotal", "amount", "line_total", "total"),
			TaxRate:     c.number(path+".tax_rate", m, "tax_rate"),
			TaxAmount:   c.money(path+".tax_amount", m, "tax_amount", "tax"),
			Category:    invoice.Category(strings.ToLower(c.text(m, "category", "type", "item_type"))),
		})
	}
}

func (c *coercer) summary(m map[string]any) {
	s := &c.result.Summary
	s.Subtotal = c.money("summary.subtotal", m, "subtotal")
	s.Discount = c.money("summary.discount", m, "discount", "discounts", "total_discount")
	s.Shipping = c.money("summary.shipping", m, "shipping", "shipping_cost", "freight")
	s.GrandTotal = c.money("summary.grand_total", m, "grand_total", "total", "amount_due", "total_amount")

	if breakdown := object(m, "tax_breakdown", "taxes"); breakdown != nil {
		for label := range breakdown {
			amount := c.money("summary.tax_breakdown."+label, breakdown, label)
			if amount.Valid() {
				s.TaxBreakdown[label] = amount
			}
		}
	}
	if len(s.TaxBreakdown) == 0 {
		if total := c.money("summary.total_tax", m, "total_tax", "tax_total", "tax"); total.Valid() {
			s.TaxBreakdown["TAX"] = total
		}
	}
}

func (c *coercer) payment(m map[string]any) {
	p := &c.result.PaymentInfo
	p.Terms = c.text(m, "terms", "payment_terms")
	p.Methods = c.list(m, "methods", "payment_methods")

	if bank := object(m, "bank_details", "bank"); bank != nil {
		p.BankDetails = &invoice.BankDetails{
			AccountName:   c.text(bank, "account_name"),
			AccountNumber: c.text(bank, "account_number"),
			RoutingNumber: c.text(bank, "routing_number", "sort_code", "ifsc"),
			IBAN:          c.text(bank, "iban"),
			SwiftCode:     c.text(bank, "swift_code", "swift", "bic"),
		}
	}
}

func (c *coercer) additional(m map[string]any) {
	a := &c.result.AdditionalInfo
	a.Notes = c.text(m, "notes")
	a.TermsConditions = c.text(m, "terms_conditions", "terms_and_conditions")
	a.ReferenceNumbers = c.list(m, "reference_numbers", "references")
}
