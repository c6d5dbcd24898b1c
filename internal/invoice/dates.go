package invoice

import (
	"regexp"
	"strings"
	"time"
)

// DateLayout is the canonical output format for every date field.
const DateLayout = "2006-01-02"

// dateLayouts are tried in order. Slash and dash dates are read month-first
// and then day-first; dotted dates are read day-first.
var dateLayouts = []string{
	DateLayout,
	"2006-1-2",
	"2006/1/2",
	"2006.1.2",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"1/2/2006",
	"2/1/2006",
	"1-2-2006",
	"2-1-2006",
	"2.1.2006",
	"1.2.2006",
	"1/2/06",
	"2/1/06",
	"1-2-06",
	"2-1-06",
	"2.1.06",
	"Jan 2 2006",
	"January 2 2006",
	"2 Jan 2006",
	"2 January 2006",
	"2-Jan-2006",
	"2-January-2006",
	"2-Jan-06",
	"Mon Jan 2 2006",
	"Monday January 2 2006",
	"Monday 2 January 2006",
}

var (
	dateSpaces    = regexp.MustCompile(`\s+`)
	ordinalSuffix = regexp.MustCompile(`(?i)\b(\d{1,2})(st|nd|rd|th)\b`)
)

// NormalizeDate converts a recognizable date to DateLayout. It reports false
// for text that matches none of the accepted formats.
func NormalizeDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == NotFound {
		return "", false
	}
	cleaned := strings.NewReplacer(",", " ", ". ", " ").Replace(s)
	cleaned = ordinalSuffix.ReplaceAllString(cleaned, "$1")
	cleaned = strings.TrimSuffix(dateSpaces.ReplaceAllString(cleaned, " "), ".")
	cleaned = strings.TrimSpace(cleaned)

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return t.Format(DateLayout), true
		}
	}
	return "", false
}
