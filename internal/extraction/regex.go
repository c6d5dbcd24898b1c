package extraction

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/zombor/invoicer/internal/invoice"
)

// rule is one labeled pattern for a field. Group 1 of re is the value.
// Lines matching reject are skipped, and a value is only taken when valid
// accepts it. Rules are tried in order and the first accepted value wins.
type rule struct {
	re     *regexp.Regexp
	reject *regexp.Regexp
	valid  func(string) bool
}

func (r rule) find(lines []string) (string, int) {
	for i, line := range lines {
		if r.reject != nil && r.reject.MatchString(line) {
			continue
		}
		for _, m := range r.re.FindAllStringSubmatch(line, -1) {
			v := cleanValue(m[1])
			if v == "" || (r.valid != nil && !r.valid(v)) {
				continue
			}
			return v, i
		}
	}
	return "", -1
}

func firstOf(lines []string, rules []rule) string {
	for _, r := range rules {
		if v, i := r.find(lines); i >= 0 {
			return v
		}
	}
	return invoice.NotFound
}

func cleanValue(s string) string {
	return strings.Trim(strings.TrimSpace(s), " \t:;,|-")
}

const datePattern = `(\d{4}-\d{1,2}-\d{1,2}|\d{1,2}[/.\-]\d{1,2}[/.\-]\d{2,4}|\d{1,2}(?:st|nd|rd|th)?[ \t]+[A-Za-z]{3,9}\.?,?[ \t]+\d{4}|[A-Za-z]{3,9}\.?[ \t]+\d{1,2}(?:st|nd|rd|th)?,?[ \t]+\d{4})`

var (
	hasDigit   = regexp.MustCompile(`\d`)
	dateLike   = regexp.MustCompile(`^(?:\d{4}-\d{1,2}-\d{1,2}|\d{1,2}[/.]\d{1,2}[/.]\d{2,4})$`)
	notDueLine = regexp.MustCompile(`(?i)\b(?:due|delivery|ship(?:ping|ped)?|order|payment|expir\w*)[ \t]*date\b|\bdue\b`)

	invoiceNumberRules = []rule{
		{re: regexp.MustCompile(`\b(INV[-#/]?\d[A-Z0-9\-/]*)`)},
		{
			re:    regexp.MustCompile(`(?i)\b(?:invoice|inv|bill|receipt)[ \t]*(?:no\.?|number|num|#)?[ \t]*[:#]?[ \t]*([A-Z0-9][A-Z0-9\-/]*)`),
			valid: identifier,
		},
	}

	invoiceDateRules = []rule{
		{re: regexp.MustCompile(`(?i)\b(?:invoice|inv|bill|issue)[ \t]*date[ \t]*:?[ \t]*` + datePattern)},
		{re: regexp.MustCompile(`(?i)\bdated?[ \t]*(?:of[ \t]+issue)?[ \t]*:?[ \t]*` + datePattern), reject: notDueLine},
		{re: regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`), reject: notDueLine},
		{re: regexp.MustCompile(`\b(\d{1,2}[/.\-]\d{1,2}[/.\-]\d{2,4})\b`), reject: notDueLine},
	}

	dueDateRules = []rule{
		{re: regexp.MustCompile(`(?i)\b(?:payment[ \t]+)?due[ \t]*(?:date|on|by)?[ \t]*:?[ \t]*` + datePattern)},
	}

	poNumberRules = []rule{
		{
			re:    regexp.MustCompile(`(?i)(?:\bp\.o\.|\bpo\b|\bpurchase[ \t]+order)[ \t]*(?:no\.?|number|#)?[ \t]*[:#]?[ \t]*([A-Z0-9][A-Z0-9\-/]*)`),
			valid: identifier,
		},
	}

	currencyRules = []rule{
		{re: regexp.MustCompile(`(?i)\bcurrency(?:[ \t]*code)?[ \t]*:?[ \t]*([A-Z]{3}|[₹$€£¥])`)},
		{re: regexp.MustCompile(`\b(USD|EUR|GBP|INR|JPY|CAD|AUD|CHF|CNY|SGD|AED|NZD|ZAR|SEK|NOK|DKK|HKD|MXN|BRL)\b`)},
		{re: regexp.MustCompile(`(₹|€|£|¥|\$|\bRs\b)`)},
	}

	emailRules   = []rule{{re: regexp.MustCompile(`([a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,})`)}}
	websiteRules = []rule{{re: regexp.MustCompile(`(?i)\b((?:https?://)?www\.[a-z0-9\-]+(?:\.[a-z0-9\-]+)+(?:/\S*)?|https?://[a-z0-9\-.]+(?:/\S*)?)`)}}
	phoneRules   = []rule{
		{
			re:    regexp.MustCompile(`(?i)\b(?:phone|tel|telephone|mobile|ph|cell|contact)\.?[ \t]*(?:no\.?|#)?[ \t]*:?[ \t]*(\+?[\d(][\d \-().]{8,18}\d)`),
			valid: phoneNumber,
		},
		{
			re:     regexp.MustCompile(`(\+?\(?\d[\d \-().]{8,18}\d)`),
			reject: regexp.MustCompile(`(?i)\b(?:account|acct|a/c|iban|routing|swift|ifsc|sort|gstin|vat|tax|invoice|inv|po|order|ref|fax)\b`),
			valid:  phoneNumber,
		},
	}
	taxIDRules = []rule{
		{
			re:    regexp.MustCompile(`(?i)\b(?:gstin|gst[ \t]*(?:no\.?|number|#|id|reg(?:istration)?)|vat[ \t]*(?:no\.?|number|reg(?:istration)?(?:[ \t]*no\.?)?|id|#)|tax[ \t]*(?:id|no\.?|number)|tin|ein|abn)[ \t]*:?[ \t]*([A-Z0-9][A-Z0-9\-]{4,20})`),
			valid: identifier,
		},
	}

	streetRules = []rule{
		{re: regexp.MustCompile(`(?i)^(\d+[A-Za-z]?[ \t]+[A-Za-z0-9 .,'\-]*?\b(?:street|st|avenue|ave|road|rd|lane|ln|drive|dr|boulevard|blvd|way|court|ct|place|pl|highway|hwy|parkway|pkwy|square|sq|terrace)\b\.?(?:[ \t,]+(?:suite|ste|unit|apt|floor|#)[ \t.#]*\w+)?)`)},
		{re: regexp.MustCompile(`(?i)\b(p\.?[ \t]?o\.?[ \t]*box[ \t]+\d+)`)},
	}
	cityLine = regexp.MustCompile(`^([A-Za-z][A-Za-z .'\-]+),[ \t]*([A-Za-z][A-Za-z .]*?)[ \t]+(\d{5}(?:-\d{4})?|\d{6}|[A-Z]\d[A-Z][ ]?\d[A-Z]\d)$`)

	billToLabel = regexp.MustCompile(`(?i)^(?:bill(?:ed)?[ \t]*to|invoice[ \t]+to|customer|client|sold[ \t]+to)\b[ \t]*:?[ \t]*(.*)$`)
	shipToLabel = regexp.MustCompile(`(?i)^(?:ship(?:ped)?[ \t]*to|deliver(?:ed)?[ \t]*to)\b[ \t]*:?[ \t]*(.*)$`)
	nextLabel   = regexp.MustCompile(`(?i)\b(?:ship(?:ped)?|deliver(?:ed)?)[ \t]*to\b`)

	vendorLabelRules = []rule{
		{
			re:    regexp.MustCompile(`(?i)^(?:from|bill(?:ed)?[ \t]*from|vendor|supplier|seller|sold[ \t]+by)[ \t]*:[ \t]*(\S.*)$`),
			valid: hasLetter,
		},
	}
	headerSkipWords = regexp.MustCompile(`(?i)\b(?:invoice|bill|receipt|tax|date|number|page|statement|quote|estimate|original|copy)\b`)
	companySuffix   = regexp.MustCompile(`(?i)\b(?:inc|llc|corp|corporation|ltd|limited|co|company|pvt|private|llp|plc|gmbh|partnership|enterprises|solutions|services|group)\b\.?`)
	properName      = regexp.MustCompile(`^[A-Z][A-Za-z &.,'\-]{2,59}$`)

	termsRules = []rule{
		{re: regexp.MustCompile(`(?i)\b(net[ \t]*\d{1,3})\b`)},
		{re: regexp.MustCompile(`(?i)^(?:payment[ \t]+)?terms[ \t]*(?:of[ \t]+payment)?[ \t]*:[ \t]*(\S.*)$`)},
		{re: regexp.MustCompile(`(?i)\b(due[ \t]+(?:on|upon)[ \t]+receipt)\b`)},
	}
	termsConditionsRules = []rule{
		{re: regexp.MustCompile(`(?i)^terms[ \t]*(?:&|and)[ \t]*conditions[ \t]*:?[ \t]*(\S.*)$`)},
	}
	notesRules = []rule{
		{re: regexp.MustCompile(`(?i)^(?:notes?|remarks?|memo)[ \t]*:[ \t]*(\S.*)$`)},
	}

	paymentLine    = regexp.MustCompile(`(?i)\b(?:pay|paid|payment|payments|method|methods|accepted|accept|remit)\b`)
	paymentMethods = []struct {
		name string
		re   *regexp.Regexp
	}{
		{"Bank Transfer", regexp.MustCompile(`(?i)\bbank[ \t]+transfer\b|\bdirect[ \t]+deposit\b`)},
		{"Wire Transfer", regexp.MustCompile(`(?i)\bwire(?:[ \t]+transfer)?\b`)},
		{"ACH", regexp.MustCompile(`\bACH\b`)},
		{"Credit Card", regexp.MustCompile(`(?i)\bcredit[ \t]+card\b`)},
		{"Debit Card", regexp.MustCompile(`(?i)\bdebit[ \t]+card\b`)},
		{"Visa", regexp.MustCompile(`(?i)\bvisa\b`)},
		{"Mastercard", regexp.MustCompile(`(?i)\bmaster[ \t]?card\b`)},
		{"American Express", regexp.MustCompile(`(?i)\bamex\b|\bamerican[ \t]+express\b`)},
		{"PayPal", regexp.MustCompile(`(?i)\bpaypal\b`)},
		{"Check", regexp.MustCompile(`(?i)\bche(?:ck|que)s?\b`)},
		{"Cash", regexp.MustCompile(`(?i)\bcash\b`)},
		{"UPI", regexp.MustCompile(`\bUPI\b`)},
		{"NEFT", regexp.MustCompile(`\bNEFT\b`)},
		{"RTGS", regexp.MustCompile(`\bRTGS\b`)},
		{"Zelle", regexp.MustCompile(`(?i)\bzelle\b`)},
		{"Venmo", regexp.MustCompile(`(?i)\bvenmo\b`)},
	}

	ibanRules          = []rule{{re: regexp.MustCompile(`(?i)\biban[ \t]*:?[ \t]*([A-Z]{2}\d{2}[A-Z0-9 ]{10,32})`)}}
	swiftRules         = []rule{{re: regexp.MustCompile(`(?i)\b(?:swift|bic)(?:[ \t]*/[ \t]*bic)?(?:[ \t]*code)?[ \t]*:?[ \t]*([A-Z]{6}[A-Z0-9]{2}(?:[A-Z0-9]{3})?)\b`)}}
	accountNumberRules = []rule{{re: regexp.MustCompile(`(?i)\b(?:account|acct|a/c)[ \t]*(?:no\.?|number|#)[ \t]*:?[ \t]*(\d[\d\- ]{3,30}\d)`)}}
	accountNameRules   = []rule{{re: regexp.MustCompile(`(?i)\b(?:account|acct|a/c)[ \t]*(?:holder[ \t]*)?name[ \t]*:?[ \t]*(\S.*)$`)}}
	routingRules       = []rule{
		{
			re:    regexp.MustCompile(`(?i)\b(?:routing|aba|sort[ \t]*code|ifsc)(?:[ \t]*(?:no\.?|number|code|#))?[ \t]*:?[ \t]*([A-Z0-9][A-Z0-9\-]{4,14})`),
			valid: identifier,
		},
	}
	referenceRule = regexp.MustCompile(`(?i)\b(?:ref(?:erence)?|order|transaction|txn)[ \t]*(?:no\.?|number|#|id)?[ \t]*[:#][ \t]*([A-Z0-9][A-Z0-9\-/]{2,})`)
)

// Summary labels. Each entry is tried in order and the first line with an
// amount wins. The amount is the last number on the line.
var (
	grandTotalLabels = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:grand[ \t]*total|amount[ \t]*due|balance[ \t]*due|total[ \t]*due|amount[ \t]*payable|net[ \t]*payable|total[ \t]*amount|invoice[ \t]*total|net[ \t]*amount)\b`),
		regexp.MustCompile(`(?i)^total\b`),
		regexp.MustCompile(`(?i)\btotal\b`),
	}
	notGrandTotal = regexp.MustCompile(`(?i)sub[ \t\-]*total|total[ \t]*(?:tax|vat|gst|discount|qty|quantity|items?|units|weight|hours)\b|\btotal[ \t]+before\b`)

	subtotalLabels = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bsub[ \t\-]*total\b`),
		regexp.MustCompile(`(?i)\btotal[ \t]+before[ \t]+tax\b`),
		regexp.MustCompile(`(?i)\b(?:net[ \t]+total|taxable[ \t]+(?:value|amount))\b`),
	}

	taxLabel     = regexp.MustCompile(`(?i)^(?:(?:add|plus)[ \t]*:?[ \t]*)?(cgst|sgst|igst|utgst|gst|hst|pst|qst|vat|sales[ \t]+tax|tax)\b`)
	taxTotalLine = regexp.MustCompile(`(?i)\b(?:total[ \t]+tax|tax[ \t]+total|tax[ \t]+amount)\b`)
	notTaxLine   = regexp.MustCompile(`(?i)\b(?:id|no\.?|number|gstin|invoice|reg(?:istration)?|incl(?:uding|\.)?|excl(?:uding|\.)?|exempt)\b|#`)

	discountLabel = regexp.MustCompile(`(?i)^(?:less[ \t]*:?[ \t]*)?(?:total[ \t]+)?(?:discount|rebate|promo(?:tion)?)\b`)
	shippingLabel = regexp.MustCompile(`(?i)^(?:shipping|freight|delivery|postage|s&h|carriage)\b`)

	percentage  = regexp.MustCompile(`\d+(?:[.,]\d+)?[ \t]*%`)
	amountToken = regexp.MustCompile(`\(?-?(?:[₹$€£¥]|Rs\.?)?[ \t]?\d(?:[\d.,]*\d)?\)?`)
)

// Line item patterns, most specific first. amount requires two decimals so
// that quantities, years and postal codes are not read as prices.
const lineAmount = `(?:[₹$€£¥][ \t]?|Rs\.?[ \t]?)?(-?\d[\d,]*\.\d{2})`

type linePattern struct {
	re     *regexp.Regexp
	layout string
}

const (
	layoutQtyDescUnitTotal = "qty_desc_unit_total"
	layoutDescQtyUnitTotal = "desc_qty_unit_total"
	layoutCodeDescQtyTotal = "code_desc_qty_total"
	layoutQtyDescTotal     = "qty_desc_total"
	layoutTax              = "tax"
	layoutCharge           = "charge"
	layoutDescTotal        = "desc_total"
)

var (
	linePatterns = []linePattern{
		{regexp.MustCompile(`^(\d+(?:\.\d+)?)[ \t]+(.+?)[ \t]+` + lineAmount + `[ \t]+` + lineAmount + `$`), layoutQtyDescUnitTotal},
		{regexp.MustCompile(`^(.+?)[ \t]+(\d+(?:\.\d+)?)[ \t]+` + lineAmount + `[ \t]+` + lineAmount + `$`), layoutDescQtyUnitTotal},
		{regexp.MustCompile(`^([A-Z0-9\-]*[A-Z][A-Z0-9\-]*\d[A-Z0-9\-]*|[A-Z0-9\-]*\d[A-Z0-9\-]*[A-Z][A-Z0-9\-]*)[ \t]+(.+?)[ \t]+(\d+(?:\.\d+)?)[ \t]+` + lineAmount + `$`), layoutCodeDescQtyTotal},
		{regexp.MustCompile(`^(\d+(?:\.\d+)?)[ \t]+(.+?)[ \t]+` + lineAmount + `$`), layoutQtyDescTotal},
		{regexp.MustCompile(`(?i)^(.*?(?:gst|vat|tax|cgst|sgst|igst|utgst).*?)[ \t]+` + lineAmount + `$`), layoutTax},
		{regexp.MustCompile(`(?i)^(.*?(?:charge|fee|discount|shipping|handling|delivery|freight).*?)[ \t]+` + lineAmount + `$`), layoutCharge},
		{regexp.MustCompile(`^(.+?)[ \t]+` + lineAmount + `$`), layoutDescTotal},
	}

	lineSkip = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^(?:qty|quantity|description|unit[ \t]+price|price|rate|hsn|sac|s\.?no)\b`),
		regexp.MustCompile(`(?i)^(?:sub[ \t\-]?total|total|grand[ \t]+total|amount|balance|net[ \t]+amount|invoice[ \t]+total)\b`),
		regexp.MustCompile(`(?i)\b(?:sub[ \t\-]?total|grand[ \t]+total|amount[ \t]+due|balance[ \t]+due|total[ \t]+due|amount[ \t]+payable)\b`),
		regexp.MustCompile(`(?i)^(?:invoice|bill|receipt|order)\b`),
		regexp.MustCompile(`(?i)^(?:page|continued|terms|conditions)\b`),
		regexp.MustCompile(`(?i)^(?:thank[ \t]+you|thanks|signature|authori[sz]ed)\b`),
		regexp.MustCompile(`^[-=_*\s]+$`),
		regexp.MustCompile(`^\s*\d+\s*$`),
		regexp.MustCompile(`(?i)^(?:date|due|po|p\.o\.|phone|tel|fax|e-?mail|website|gstin|vat[ \t]+no|tax[ \t]+id|account|acct|iban|swift|routing|ifsc|reference|ref|currency|customer|client|ship[ \t]+to|sold[ \t]+to|from|vendor|supplier|payment|notes?)\b[^:]*:`),
	}

	itemPrefix = regexp.MustCompile(`(?i)^(?:item|product|service)[ \t]*:[ \t]*`)
	spaces     = regexp.MustCompile(`\s+`)

	maxItemAmount   = decimal.NewFromInt(999999)
	maxItemQuantity = decimal.NewFromInt(10000)
)

// RegexExtractor pulls invoice fields out of raw text with ordered pattern
// rules. It never fails: fields it cannot find are NotFound.
type RegexExtractor struct {
	logger *slog.Logger
}

// NewRegexExtractor creates a regex extractor.
func NewRegexExtractor(logger *slog.Logger) *RegexExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RegexExtractor{logger: logger}
}

// Extract builds a validated Result from raw text. Confidence is capped at
// medium because pattern matching cannot confirm what it found.
func (e *RegexExtractor) Extract(rawText string) *invoice.Result {
	r := invoice.New()
	r.ExtractionMethod = invoice.MethodRegex
	r.RawText = rawText

	lines := splitLines(rawText)
	custStart, custEnd := customerBlock(lines)
	vendorScope, customerScope := lines, []string(nil)
	if custStart >= 0 {
		vendorScope = make([]string, 0, len(lines))
		vendorScope = append(vendorScope, lines[:custStart]...)
		vendorScope = append(vendorScope, lines[custEnd:]...)
		customerScope = lines[custStart:custEnd]
	}

	md := &r.InvoiceMetadata
	md.InvoiceNumber = firstOf(lines, invoiceNumberRules)
	md.InvoiceDate = firstOf(lines, invoiceDateRules)
	md.DueDate = firstOf(lines, dueDateRules)
	md.PONumber = firstOf(lines, poNumberRules)
	if symbol := firstOf(lines, currencyRules); invoice.Found(symbol) {
		if code, ok := invoice.NormalizeCurrency(symbol); ok {
			md.Currency = code
		}
	}

	header := lines
	if custStart >= 0 {
		header = lines[:custStart]
	}
	r.VendorDetails.Name = vendorName(header, vendorScope)
	r.VendorDetails.Email = firstOf(vendorScope, emailRules)
	r.VendorDetails.Phone = firstOf(vendorScope, phoneRules)
	r.VendorDetails.Website = firstOf(vendorScope, websiteRules)
	r.VendorDetails.TaxID = firstOf(vendorScope, taxIDRules)
	r.VendorDetails.Address = address(vendorScope)

	if customerScope != nil {
		r.CustomerDetails.Name = customerName(customerScope)
		r.CustomerDetails.Email = firstOf(customerScope, emailRules)
		r.CustomerDetails.Phone = firstOf(customerScope, phoneRules)
		r.CustomerDetails.TaxID = firstOf(customerScope, taxIDRules)
		r.CustomerDetails.Address = address(customerScope)
	}

	r.LineItems = lineItems(lines)
	extractSummary(lines, &r.Summary)

	r.PaymentInfo.Terms = firstOf(lines, termsRules)
	r.PaymentInfo.Methods = methods(lines)
	r.PaymentInfo.BankDetails = &invoice.BankDetails{
		AccountName:   firstOf(lines, accountNameRules),
		AccountNumber: firstOf(lines, accountNumberRules),
		RoutingNumber: firstOf(lines, routingRules),
		IBAN:          compactUpper(firstOf(lines, ibanRules)),
		SwiftCode:     compactUpper(firstOf(lines, swiftRules)),
	}

	r.AdditionalInfo.Notes = firstOf(lines, notesRules)
	r.AdditionalInfo.TermsConditions = firstOf(lines, termsConditionsRules)
	r.AdditionalInfo.ReferenceNumbers = references(lines)

	invoice.Validate(r)
	r.ConfidenceScore = invoice.Score(r)
	r.Confidence = invoice.CapAt(invoice.LevelFor(r.ConfidenceScore), invoice.ConfidenceMedium)

	e.logger.Debug("Regex extraction complete",
		"invoice_number", md.InvoiceNumber,
		"line_items", len(r.LineItems),
		"score", r.ConfidenceScore)
	return r
}

func splitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, len(raw))
	for i, l := range raw {
		lines[i] = strings.TrimSpace(l)
	}
	return lines
}

// customerBlock locates the bill-to (or else ship-to) label and the lines
// that follow it up to the next blank line. It returns -1 when there is none.
func customerBlock(lines []string) (int, int) {
	for _, label := range []*regexp.Regexp{billToLabel, shipToLabel} {
		for i, line := range lines {
			if !label.MatchString(line) {
				continue
			}
			end := i + 1
			for end < len(lines) && end-i < 7 {
				if lines[end] == "" && end > i+1 {
					break
				}
				end++
			}
			return i, end
		}
	}
	return -1, -1
}

func customerName(block []string) string {
	m := billToLabel.FindStringSubmatch(block[0])
	if m == nil {
		m = shipToLabel.FindStringSubmatch(block[0])
	}
	if m != nil {
		name := m[1]
		if loc := nextLabel.FindStringIndex(name); loc != nil {
			name = name[:loc[0]]
		}
		if name = cleanValue(name); hasLetter(name) && !strings.Contains(name, ":") {
			return name
		}
	}
	for _, line := range block[1:] {
		if line == "" || strings.Contains(line, "@") || !hasLetter(line) {
			continue
		}
		if first, _ := utf8.DecodeRuneInString(line); unicode.IsDigit(first) {
			continue
		}
		if loc := nextLabel.FindStringIndex(line); loc != nil && loc[0] > 0 {
			line = line[:loc[0]]
		}
		return cleanValue(spaces.ReplaceAllString(line, " "))
	}
	return invoice.NotFound
}

// vendorName looks for a company-like line in the first ten header lines and
// falls back to an explicit vendor label.
func vendorName(header, scope []string) string {
	var candidates []string
	for _, line := range header {
		if line == "" {
			continue
		}
		if len(candidates) == 10 {
			break
		}
		if strings.ContainsAny(line, ":@") || hasDigit.MatchString(line) || headerSkipWords.MatchString(line) {
			continue
		}
		if n := len(line); n < 3 || n > 60 {
			continue
		}
		candidates = append(candidates, line)
	}
	for _, c := range candidates {
		if companySuffix.MatchString(c) {
			return cleanValue(c)
		}
	}
	for _, c := range candidates {
		if properName.MatchString(c) {
			return cleanValue(c)
		}
	}
	return firstOf(scope, vendorLabelRules)
}

func address(scope []string) invoice.Address {
	addr := invoice.New().VendorDetails.Address
	search := scope
	for _, r := range streetRules {
		if v, at := r.find(scope); at >= 0 {
			addr.Street = v
			// The city line usually follows the street.
			search = append(append([]string{}, scope[at+1:]...), scope[:at+1]...)
			break
		}
	}
	for _, line := range search {
		if m := cityLine.FindStringSubmatch(line); m != nil {
			addr.City = cleanValue(m[1])
			addr.Region = cleanValue(m[2])
			addr.PostalCode = m[3]
			break
		}
	}
	return addr
}

// lastAmount returns the last number on a line after removing percentages,
// so "CGST 9% 45.00" yields 45.00.
func lastAmount(line string) (decimal.Decimal, bool) {
	tokens := amountToken.FindAllString(percentage.ReplaceAllString(line, ""), -1)
	if len(tokens) == 0 {
		return decimal.Zero, false
	}
	return invoice.ParseDecimal(tokens[len(tokens)-1])
}

func labeledAmount(lines []string, labels []*regexp.Regexp, reject *regexp.Regexp) invoice.Money {
	for _, label := range labels {
		for _, line := range lines {
			if !label.MatchString(line) || (reject != nil && reject.MatchString(line)) {
				continue
			}
			if d, ok := lastAmount(line); ok {
				return invoice.NewMoney(d)
			}
		}
	}
	return invoice.Money{}
}

func extractSummary(lines []string, s *invoice.Summary) {
	s.GrandTotal = labeledAmount(lines, grandTotalLabels, notGrandTotal)
	s.Subtotal = labeledAmount(lines, subtotalLabels, nil)

	if d := labeledAmount(lines, []*regexp.Regexp{discountLabel}, nil); d.Valid() {
		s.Discount = invoice.NewMoney(d.Decimal().Abs())
	}
	s.Shipping = labeledAmount(lines, []*regexp.Regexp{shippingLabel}, nil)

	for _, line := range lines {
		m := taxLabel.FindStringSubmatch(line)
		if m == nil || notTaxLine.MatchString(line) || taxTotalLine.MatchString(line) {
			continue
		}
		d, ok := lastAmount(strings.TrimPrefix(line, m[0]))
		if !ok {
			continue
		}
		label := strings.ToUpper(spaces.ReplaceAllString(m[1], " "))
		s.TaxBreakdown[label] = s.TaxBreakdown[label].Add(invoice.NewMoney(d))
	}
	if len(s.TaxBreakdown) == 0 {
		if total := labeledAmount(lines, []*regexp.Regexp{taxTotalLine}, nil); total.Valid() {
			s.TaxBreakdown["TAX"] = total
		}
	}
}

func methods(lines []string) []string {
	found := map[string]bool{}
	for _, line := range lines {
		if !paymentLine.MatchString(line) {
			continue
		}
		for _, m := range paymentMethods {
			if m.re.MatchString(line) {
				found[m.name] = true
			}
		}
	}
	out := []string{}
	for _, m := range paymentMethods {
		if found[m.name] {
			out = append(out, m.name)
		}
	}
	return out
}

func references(lines []string) []string {
	out := []string{}
	for _, line := range lines {
		for _, m := range referenceRule.FindAllStringSubmatch(line, -1) {
			if v := cleanValue(m[1]); identifier(v) {
				out = append(out, v)
			}
		}
	}
	return out
}

func lineItems(lines []string) []invoice.LineItem {
	items := []invoice.LineItem{}
	for _, line := range lines {
		if line == "" || skipLine(line) {
			continue
		}
		line = spaces.ReplaceAllString(line, " ")
		for _, p := range linePatterns {
			m := p.re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			if item, ok := buildItem(p.layout, m); ok {
				items = append(items, item)
			}
			break
		}
	}
	return items
}

func skipLine(line string) bool {
	for _, re := range lineSkip {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

func buildItem(layout string, m []string) (invoice.LineItem, bool) {
	var (
		desc            string
		qty, unit, sub  string
		category        invoice.Category
		defaultCategory = invoice.CategoryOther
	)
	switch layout {
	case layoutQtyDescUnitTotal:
		qty, desc, unit, sub = m[1], m[2], m[3], m[4]
		defaultCategory = invoice.CategoryProduct
	case layoutDescQtyUnitTotal:
		desc, qty, unit, sub = m[1], m[2], m[3], m[4]
		defaultCategory = invoice.CategoryProduct
	case layoutCodeDescQtyTotal:
		desc, qty, sub = m[1]+" "+m[2], m[3], m[4]
		defaultCategory = invoice.CategoryProduct
	case layoutQtyDescTotal:
		qty, desc, sub = m[1], m[2], m[3]
		defaultCategory = invoice.CategoryProduct
	case layoutTax:
		desc, sub = m[1], m[2]
		category = invoice.CategoryTax
	case layoutCharge:
		desc, sub = m[1], m[2]
		category = invoice.NormalizeCategory("", desc)
		if category == invoice.CategoryOther {
			category = invoice.CategoryService
		}
	default:
		desc, sub = m[1], m[2]
	}

	desc = cleanDescription(desc)
	if len([]rune(desc)) < 3 || !hasLetter(desc) {
		return invoice.LineItem{}, false
	}

	subtotal, ok := invoice.ParseDecimal(sub)
	if !ok || subtotal.Abs().GreaterThan(maxItemAmount) {
		return invoice.LineItem{}, false
	}
	item := invoice.LineItem{
		Description: desc,
		Subtotal:    invoice.NewMoney(subtotal),
	}
	if unit != "" {
		if u, ok := invoice.ParseDecimal(unit); ok && !u.Abs().GreaterThan(maxItemAmount) {
			item.UnitPrice = invoice.NewMoney(u)
		}
	}
	if qty != "" {
		q, ok := invoice.ParseDecimal(qty)
		if !ok || !q.IsPositive() || q.GreaterThan(maxItemQuantity) {
			return invoice.LineItem{}, false
		}
		item.Quantity = invoice.NewNumber(q)
	}

	if category == "" {
		category = invoice.NormalizeCategory("", desc)
		if category == invoice.CategoryOther {
			category = defaultCategory
		}
	}
	item.Category = category
	return item, true
}

func cleanDescription(desc string) string {
	desc = itemPrefix.ReplaceAllString(spaces.ReplaceAllString(strings.TrimSpace(desc), " "), "")
	desc = strings.Trim(desc, " \t-:|.")
	if desc == "" {
		return desc
	}
	runes := []rune(desc)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func compactUpper(v string) string {
	if !invoice.Found(v) {
		return v
	}
	return strings.ToUpper(strings.ReplaceAll(v, " ", ""))
}

func identifier(v string) bool {
	return hasDigit.MatchString(v) && !dateLike.MatchString(v)
}

func phoneNumber(v string) bool {
	digits := 0
	for _, r := range v {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	return digits >= 10 && digits <= 15
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
