package normalizer

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"tradeimport/internal/models"
)

// Number parses a locale-formatted decimal. Thousands separators, spacing,
// a leading plus, a trailing percent sign and leading currency symbols are
// dropped; accounting negatives in parentheses are negated.
func Number(raw string) (decimal.Decimal, bool) {
	s := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r):
			return -1
		case r == ',', r == '\'', r == '_', r == '’':
			return -1
		case r == '−':
			return '-'
		}
		return r
	}, raw)

	negative := false
	if len(s) >= 2 && strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
		// "(-5)" is ambiguous; a bracketed value carries no sign of its own.
		if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
			return decimal.Zero, false
		}
	}

	s = strings.TrimSuffix(s, "%")
	s = strings.TrimPrefix(s, "+")

	sign := ""
	if strings.HasPrefix(s, "-") {
		sign = "-"
		s = s[1:]
	}
	s = strings.TrimLeft(s, "$€£¥")
	if s == "" {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(sign + s)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

var isoLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04",
	"2006-1-2",
	"2006-1-2T15:04:05",
	"2006-1-2 15:04:05",
	"2006-1-2 15:04",
	"2-Jan-2006",
	"02-Jan-2006",
	"2-Jan-06",
}

var localeLayouts = []string{
	"2006.01.02",
	"2006.01.02 15:04",
	"2006.01.02 15:04:05",
	"02.01.2006",
	"02.01.2006 15:04",
	"02.01.2006 15:04:05",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"2 Jan 2006",
	"02 January 2006",
	"20060102",
	"2006年1月2日",
	"2006年1月2日 15:04",
	"2006年1月2日 15:04:05",
}

// Date parses a date cell and returns it as YYYY-MM-DD. Slash dates are
// day/month/year unless the first part has four digits; dash dates are ISO.
func Date(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}

	switch {
	case strings.Contains(s, "/"):
		return slashDate(s)
	case strings.Contains(s, "-"):
		if t, ok := parseLayouts(s, isoLayouts); ok {
			return t.Format(models.DateLayout), true
		}
		// Tolerate unusual time suffixes after a valid ISO date.
		if len(s) > 10 && (s[10] == 'T' || s[10] == ' ') {
			if t, err := time.Parse(models.DateLayout, s[:10]); err == nil {
				return t.Format(models.DateLayout), true
			}
		}
		return "", false
	default:
		if t, ok := parseLayouts(s, localeLayouts); ok {
			return t.Format(models.DateLayout), true
		}
		return "", false
	}
}

func parseLayouts(s string, layouts []string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func slashDate(s string) (string, bool) {
	datePart := strings.Fields(s)[0]
	parts := strings.Split(datePart, "/")
	if len(parts) != 3 {
		return "", false
	}

	nums := make([]int, 3)
	for i, p := range parts {
		if p == "" || len(p) > 4 {
			return "", false
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return "", false
		}
		nums[i] = n
	}

	var year, month, day int
	if len(parts[0]) == 4 {
		year, month, day = nums[0], nums[1], nums[2]
	} else {
		day, month, year = nums[0], nums[1], nums[2]
		if len(parts[2]) <= 2 {
			year += 2000
		}
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return "", false
	}
	return t.Format(models.DateLayout), true
}

var (
	longKeywords  = []string{"buy", "long", "bought", "买", "多"}
	shortKeywords = []string{"sell", "short", "sold", "卖", "空"}
)

// Side infers the trade direction from free text. Long keywords are checked
// before short ones.
func Side(raw string) (models.Side, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", false
	}
	for _, kw := range longKeywords {
		if strings.Contains(s, kw) {
			return models.SideLong, true
		}
	}
	for _, kw := range shortKeywords {
		if strings.Contains(s, kw) {
			return models.SideShort, true
		}
	}
	return "", false
}

// Symbol canonicalises a ticker: upper-cased, pair separators and broker
// suffixes removed, bare metal or quote-capable currency codes completed with
// the quote currency. Applying it twice gives the same result.
func (n *Normalizer) Symbol(raw string) (string, bool) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return "", false
	}

	s = n.joinPair(s)
	if i := strings.Index(s, "."); i > 0 {
		if base := n.joinPair(s[:i]); n.isPair(base) {
			s = base
		}
	}

	switch {
	case n.metals[s]:
		return s + n.quote, true
	case n.quotable[s] && s != n.quote:
		return s + n.quote, true
	}
	return s, true
}

// joinPair turns "EUR/USD" or "EUR USD" into "EURUSD".
func (n *Normalizer) joinPair(s string) string {
	legs := strings.FieldsFunc(s, func(r rune) bool {
		return r == '/' || unicode.IsSpace(r)
	})
	if len(legs) == 2 && n.isPairLeg(legs[0]) && n.isPairLeg(legs[1]) {
		return legs[0] + legs[1]
	}
	return s
}

func (n *Normalizer) isPair(s string) bool {
	return len(s) == 6 && n.isPairLeg(s[:3]) && n.isPairLeg(s[3:])
}
