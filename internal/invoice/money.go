package invoice

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// tolerance is the rounding tolerance used by arithmetic checks.
var tolerance = decimal.New(1, -2)

// Money is a fixed-point amount rounded to two decimal places.
// The zero value is "not found" and serializes as the sentinel string.
type Money struct {
	amount decimal.Decimal
	valid  bool
}

// NewMoney returns a present Money value rounded to two decimals.
func NewMoney(d decimal.Decimal) Money {
	return Money{amount: d.Round(2), valid: true}
}

// MoneyFromFloat is a convenience for tests and literal amounts.
func MoneyFromFloat(f float64) Money {
	return NewMoney(decimal.NewFromFloat(f))
}

// ParseMoney parses a human-formatted amount such as "$1,234.50" or "(12.00)".
// It returns a not-found Money and false when the text holds no number.
func ParseMoney(s string) (Money, bool) {
	d, ok := ParseDecimal(s)
	if !ok {
		return Money{}, false
	}
	return NewMoney(d), true
}

// Valid reports whether the amount was found.
func (m Money) Valid() bool { return m.valid }

// Decimal returns the amount, or zero when not found.
func (m Money) Decimal() decimal.Decimal {
	if !m.valid {
		return decimal.Zero
	}
	return m.amount
}

// IsPositive reports whether the amount was found and is greater than zero.
func (m Money) IsPositive() bool { return m.valid && m.amount.IsPositive() }

// Add returns m+o, treating a missing operand as zero. The sum is present if either side is.
func (m Money) Add(o Money) Money {
	if !m.valid && !o.valid {
		return Money{}
	}
	return NewMoney(m.Decimal().Add(o.Decimal()))
}

func (m Money) String() string {
	if !m.valid {
		return NotFound
	}
	return m.amount.StringFixed(2)
}

func (m Money) MarshalJSON() ([]byte, error) {
	if !m.valid {
		return json.Marshal(NotFound)
	}
	return []byte(m.amount.StringFixed(2)), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	d, ok, err := decodeNumeric(b)
	if err != nil {
		return fmt.Errorf("decoding money: %w", err)
	}
	if !ok {
		*m = Money{}
		return nil
	}
	*m = NewMoney(d)
	return nil
}

// Number is a free-precision quantity or rate, rounded to four decimals.
type Number struct {
	value decimal.Decimal
	valid bool
}

// NewNumber returns a present Number.
func NewNumber(d decimal.Decimal) Number {
	return Number{value: d.Round(4), valid: true}
}

// NumberFromFloat is a convenience for tests and literal values.
func NumberFromFloat(f float64) Number {
	return NewNumber(decimal.NewFromFloat(f))
}

// ParseNumber parses a numeric string, ignoring currency and percent signs.
func ParseNumber(s string) (Number, bool) {
	d, ok := ParseDecimal(s)
	if !ok {
		return Number{}, false
	}
	return NewNumber(d), true
}

func (n Number) Valid() bool { return n.valid }

func (n Number) Decimal() decimal.Decimal {
	if !n.valid {
		return decimal.Zero
	}
	return n.value
}

func (n Number) String() string {
	if !n.valid {
		return NotFound
	}
	return n.value.String()
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.valid {
		return json.Marshal(NotFound)
	}
	return []byte(n.value.String()), nil
}

func (n *Number) UnmarshalJSON(b []byte) error {
	d, ok, err := decodeNumeric(b)
	if err != nil {
		return fmt.Errorf("decoding number: %w", err)
	}
	if !ok {
		*n = Number{}
		return nil
	}
	*n = NewNumber(d)
	return nil
}

// decodeNumeric accepts a JSON number, a numeric string, null or the sentinel.
func decodeNumeric(b []byte) (decimal.Decimal, bool, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return decimal.Zero, false, nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return decimal.Zero, false, err
		}
		d, ok := ParseDecimal(s)
		return d, ok, nil
	}
	d, err := decimal.NewFromString(string(b))
	if err != nil {
		return decimal.Zero, false, err
	}
	return d, true, nil
}

var (
	numericToken   = regexp.MustCompile(`-?\d[\d.,' ]*`)
	currencyTokens = strings.NewReplacer("₹", "", "$", "", "€", "", "£", "", "¥", "", "%", "")
)

// ParseDecimal extracts a decimal from loosely formatted text. It accepts
// thousands separators, a trailing or leading currency, accounting-style
// parentheses for negatives and European "1.234,56" notation.
func ParseDecimal(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(currencyTokens.Replace(s))
	if s == "" || strings.EqualFold(s, NotFound) {
		return decimal.Zero, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.Trim(s, "()")
	}

	tok := numericToken.FindString(s)
	if tok == "" {
		return decimal.Zero, false
	}
	if strings.HasPrefix(tok, "-") {
		negative = !negative
		tok = tok[1:]
	}
	tok = strings.NewReplacer(" ", "", "'", "").Replace(strings.TrimRight(tok, "., '"))

	lastComma := strings.LastIndex(tok, ",")
	lastDot := strings.LastIndex(tok, ".")
	switch {
	case lastComma > lastDot && (lastDot >= 0 || len(tok)-lastComma-1 != 3):
		// Comma is the decimal separator.
		tok = strings.ReplaceAll(tok, ".", "")
		tok = strings.Replace(tok, ",", ".", 1)
	default:
		tok = strings.ReplaceAll(tok, ",", "")
	}
	if strings.Count(tok, ".") > 1 {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(tok)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}
