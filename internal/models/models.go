package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the only date representation stored on a CanonicalTrade.
const DateLayout = "2006-01-02"

// Side represents the direction of a trade
type Side string

const (
	// SideLong represents a buy / long position
	SideLong Side = "LONG"
	// SideShort represents a sell / short position
	SideShort Side = "SHORT"
)

// String returns the string representation of Side
func (s Side) String() string {
	return string(s)
}

// IsValid checks if the side is one of the enumerated values
func (s Side) IsValid() bool {
	return s == SideLong || s == SideShort
}

// Status represents whether a trade is still open
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsValid checks if the status is one of the enumerated values
func (s Status) IsValid() bool {
	return s == StatusOpen || s == StatusClosed
}

// CanonicalTrade is the persisted trade record produced by an import.
type CanonicalTrade struct {
	ID         string          `json:"id"`
	Symbol     string          `json:"symbol"`
	Date       string          `json:"date"`
	Side       Side            `json:"side"`
	Type       string          `json:"type"`
	EntryPrice decimal.Decimal `json:"entryPrice"`

	ExitPrice     decimal.NullDecimal `json:"exitPrice"`
	Quantity      decimal.NullDecimal `json:"quantity"`
	LotSize       decimal.NullDecimal `json:"lotSize"`
	Leverage      decimal.NullDecimal `json:"leverage"`
	PnL           decimal.NullDecimal `json:"pnl"`
	PnLPercentage decimal.NullDecimal `json:"pnlPercentage"`
	Commission    decimal.NullDecimal `json:"commission"`
	Swap          decimal.NullDecimal `json:"swap"`

	Status   Status   `json:"status"`
	Strategy string   `json:"strategy,omitempty"`
	Notes    string   `json:"notes,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// DeriveStatus returns CLOSED when an exit price or a realised pnl is known.
func (t *CanonicalTrade) DeriveStatus() Status {
	if t.ExitPrice.Valid || t.PnL.Valid {
		return StatusClosed
	}
	return StatusOpen
}

// Validate checks the invariants every stored trade must satisfy.
func (t *CanonicalTrade) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("trade ID cannot be empty")
	}

	if t.Symbol == "" {
		return fmt.Errorf("trade symbol cannot be empty")
	}
	if t.Symbol != strings.ToUpper(t.Symbol) {
		return fmt.Errorf("trade symbol must be upper-case: %s", t.Symbol)
	}

	if !IsCalendarDate(t.Date) {
		return fmt.Errorf("invalid trade date: %q", t.Date)
	}

	if !t.Side.IsValid() {
		return fmt.Errorf("invalid trade side: %s", t.Side)
	}

	if !t.EntryPrice.IsPositive() {
		return fmt.Errorf("entry price must be positive, got %s", t.EntryPrice)
	}

	if !t.Status.IsValid() {
		return fmt.Errorf("invalid trade status: %s", t.Status)
	}
	if t.Status != t.DeriveStatus() {
		return fmt.Errorf("status %s inconsistent with exit price / pnl presence", t.Status)
	}

	return nil
}

// AddTags merges tags into the trade's tag set, keeping it sorted.
func (t *CanonicalTrade) AddTags(tags ...string) {
	t.Tags = NormalizeTags(append(append([]string{}, t.Tags...), tags...))
}

// String returns a string representation of the trade
func (t *CanonicalTrade) String() string {
	return fmt.Sprintf("Trade{ID: %s, Symbol: %s, Date: %s, Side: %s, Entry: %s, Status: %s}",
		t.ID, t.Symbol, t.Date, t.Side, t.EntryPrice.String(), t.Status)
}

// Clone returns a deep copy of the trade.
func (t *CanonicalTrade) Clone() *CanonicalTrade {
	c := *t
	if t.Tags != nil {
		c.Tags = append([]string(nil), t.Tags...)
	}
	return &c
}

// IsCalendarDate reports whether s is a valid YYYY-MM-DD date.
func IsCalendarDate(s string) bool {
	if len(s) != len(DateLayout) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// NormalizeTags trims, de-duplicates and sorts a tag list.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	var out []string
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}
