package extraction

import "fmt"

// invoicePrompt is the fixed extraction template. The raw text is appended
// verbatim at the end.
const invoicePrompt = `You are an expert invoice data extraction assistant. Extract ALL available information from the invoice text below with maximum accuracy.

Instructions:
1. The vendor (supplier) is usually at the top of the invoice; extract the complete business name, address and contact details.
2. The customer is usually labelled "Bill To", "Customer" or "Ship To".
3. Extract every line item with its description, quantity, unit price and subtotal.
4. Report tax amounts per tax type (for example GST, CGST, SGST, VAT, Sales Tax) in tax_breakdown.
5. Dates must be YYYY-MM-DD. Amounts must be JSON numbers without currency symbols.
6. Use null for anything you cannot find. Do not guess.
7. category must be one of: product, service, tax, discount, shipping, other.

Return ONLY a JSON object with exactly this structure:

{
  "invoice_metadata": {
    "invoice_number": "string",
    "invoice_date": "YYYY-MM-DD",
    "due_date": "YYYY-MM-DD",
    "po_number": "string",
    "currency": "ISO 4217 code such as USD, EUR, GBP, INR",
    "language": "ISO 639-1 code such as en"
  },
  "vendor_details": {
    "name": "string",
    "address": {"street": "string", "city": "string", "region": "state or province", "postal_code": "string", "country": "string"},
    "phone": "string",
    "email": "string",
    "website": "string",
    "tax_id": "tax, GST or VAT identifier"
  },
  "customer_details": {
    "name": "string",
    "address": {"street": "string", "city": "string", "region": "string", "postal_code": "string", "country": "string"},
    "phone": "string",
    "email": "string",
    "website": "string",
    "tax_id": "string"
  },
  "line_items": [
    {
      "description": "string",
      "quantity": 1,
      "unit_price": 0.00,
      "subtotal": 0.00,
      "tax_rate": 0.18,
      "tax_amount": 0.00,
      "category": "product"
    }
  ],
  "summary": {
    "subtotal": 0.00,
    "tax_breakdown": {"GST": 0.00},
    "discount": 0.00,
    "shipping": 0.00,
    "grand_total": 0.00
  },
  "payment_info": {
    "terms": "string",
    "methods": ["bank transfer"],
    "bank_details": {"account_name": "string", "account_number": "string", "routing_number": "string", "iban": "string", "swift_code": "string"}
  },
  "additional_info": {
    "notes": "string",
    "terms_conditions": "string",
    "reference_numbers": ["string"]
  }
}

INVOICE TEXT:
%s

JSON:`

// BuildPrompt embeds raw invoice text into the extraction template.
func BuildPrompt(rawText string) string {
	return fmt.Sprintf(invoicePrompt, rawText)
}
