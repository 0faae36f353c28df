// Package normalizer converts raw spreadsheet cells into typed trade values.
package normalizer

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"tradeimport/internal/models"
)

// Config controls symbol canonicalisation.
type Config struct {
	// QuoteCurrency is appended to bare metal and currency tickers.
	QuoteCurrency string `mapstructure:"quote_currency" json:"quote_currency"`

	// MetalTickers are precious-metal codes treated as the base of a pair.
	MetalTickers []string `mapstructure:"metal_tickers" json:"metal_tickers"`

	// ExtraCurrencies are codes recognised as currencies on top of ISO 4217.
	ExtraCurrencies []string `mapstructure:"extra_currencies" json:"extra_currencies"`

	// QuoteCurrencies are the bare currency codes that get QuoteCurrency
	// appended. Other ISO codes are left as written.
	QuoteCurrencies []string `mapstructure:"quote_currencies" json:"quote_currencies"`
}

var majorCurrencies = []string{"EUR", "GBP", "USD", "JPY", "CHF", "AUD", "NZD", "CAD", "CNH"}

// DefaultConfig returns the normalizer defaults.
func DefaultConfig() *Config {
	return &Config{
		QuoteCurrency:   "USD",
		MetalTickers:    []string{"XAU", "XAG", "XPT", "XPD"},
		ExtraCurrencies: []string{"CNH"},
		QuoteCurrencies: append([]string(nil), majorCurrencies...),
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	quote := strings.ToUpper(strings.TrimSpace(c.QuoteCurrency))
	if len(quote) != 3 {
		return fmt.Errorf("quote currency must be a three-letter code, got %q", c.QuoteCurrency)
	}
	for _, m := range c.MetalTickers {
		if len(strings.TrimSpace(m)) != 3 {
			return fmt.Errorf("metal ticker must be three letters, got %q", m)
		}
	}

	extra := make(map[string]bool, len(c.ExtraCurrencies))
	for _, code := range c.ExtraCurrencies {
		extra[strings.ToUpper(strings.TrimSpace(code))] = true
	}
	for _, q := range c.QuoteCurrencies {
		code := strings.ToUpper(strings.TrimSpace(q))
		if len(code) != 3 || (!extra[code] && money.GetCurrency(code) == nil) {
			return fmt.Errorf("quote currency list entry %q is not a currency code", q)
		}
	}
	return nil
}

// Value is a normalised cell. Only the member matching the field kind is set.
type Value struct {
	Field  models.Field
	Text   string
	Number decimal.Decimal
	Side   models.Side
}

// String renders the value for previews and logs.
func (v Value) String() string {
	switch {
	case v.Field.IsNumeric():
		return v.Number.String()
	case v.Field == models.FieldSide:
		return v.Side.String()
	default:
		return v.Text
	}
}

// Normalizer turns raw cells into typed values. It holds no mutable state
// and is safe for concurrent use.
type Normalizer struct {
	quote    string
	metals   map[string]bool
	extra    map[string]bool
	quotable map[string]bool
}

// NewNormalizer creates a normalizer; a nil config uses the defaults.
func NewNormalizer(config *Config) *Normalizer {
	if config == nil {
		config = DefaultConfig()
	}

	n := &Normalizer{
		quote:    strings.ToUpper(strings.TrimSpace(config.QuoteCurrency)),
		metals:   make(map[string]bool),
		extra:    make(map[string]bool),
		quotable: make(map[string]bool),
	}
	if n.quote == "" {
		n.quote = "USD"
	}
	for _, m := range config.MetalTickers {
		n.metals[strings.ToUpper(strings.TrimSpace(m))] = true
	}
	for _, c := range config.ExtraCurrencies {
		n.extra[strings.ToUpper(strings.TrimSpace(c))] = true
	}

	quotable := config.QuoteCurrencies
	if len(quotable) == 0 {
		quotable = majorCurrencies
	}
	for _, c := range quotable {
		n.quotable[strings.ToUpper(strings.TrimSpace(c))] = true
	}
	return n
}

// QuoteCurrency returns the configured quote currency.
func (n *Normalizer) QuoteCurrency() string {
	return n.quote
}

// Normalize converts raw for field. A false result means the field is absent
// for this row; malformed input is never an error.
func (n *Normalizer) Normalize(field models.Field, raw string) (Value, bool) {
	v := Value{Field: field}

	switch {
	case field == models.FieldUnmapped:
		return v, false
	case field.IsNumeric():
		d, ok := Number(raw)
		if !ok {
			return v, false
		}
		v.Number = d
	case field == models.FieldDate:
		date, ok := Date(raw)
		if !ok {
			return v, false
		}
		v.Text = date
	case field == models.FieldSide:
		side, ok := Side(raw)
		if !ok {
			return v, false
		}
		v.Side = side
	case field == models.FieldSymbol:
		symbol, ok := n.Symbol(raw)
		if !ok {
			return v, false
		}
		v.Text = symbol
	default:
		text, ok := Text(raw)
		if !ok {
			return v, false
		}
		v.Text = text
	}
	return v, true
}

// Text trims free text; empty text is absent.
func Text(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	return s, s != ""
}

// isCurrency reports whether code is an ISO 4217 code or a configured extra.
func (n *Normalizer) isCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	if n.extra[code] {
		return true
	}
	return money.GetCurrency(code) != nil
}

func (n *Normalizer) isPairLeg(code string) bool {
	return n.metals[code] || n.isCurrency(code)
}
