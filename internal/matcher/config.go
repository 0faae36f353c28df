// Package matcher detects imported trades that duplicate already stored ones.
//
// Two trades are the same real-world trade when they share a symbol and a
// date and their entry prices differ by less than the configured tolerance.
// Existing trades are indexed by symbol and date, so each candidate is only
// compared with the handful of stored trades from the same day.
//
// Example usage:
//
//	config := matcher.DefaultConfig()
//	detector := matcher.NewDetector(config)
//	toInsert, conflicts := detector.Partition(existing, candidates)
package matcher

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultPriceTolerance is the strict upper bound on entry price difference.
var DefaultPriceTolerance = decimal.RequireFromString("0.01")

// Config holds conflict detection parameters.
type Config struct {
	// PriceTolerance is the exclusive bound on |entry_a - entry_b|.
	PriceTolerance decimal.Decimal `json:"price_tolerance" mapstructure:"price_tolerance"`

	// FlagAmbiguous records how many further stored trades matched a
	// candidate besides the one it is paired with.
	FlagAmbiguous bool `json:"flag_ambiguous" mapstructure:"flag_ambiguous"`
}

// DefaultConfig returns the detection defaults.
func DefaultConfig() *Config {
	return &Config{
		PriceTolerance: DefaultPriceTolerance,
		FlagAmbiguous:  true,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.PriceTolerance.IsNegative() {
		return fmt.Errorf("price tolerance cannot be negative: %s", c.PriceTolerance)
	}
	return nil
}

// Clone creates a copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// WithinTolerance reports whether two entry prices are close enough to be
// the same fill.
func (c *Config) WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(c.PriceTolerance)
}

// String returns a human-readable description of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{PriceTolerance: %s, FlagAmbiguous: %t}", c.PriceTolerance, c.FlagAmbiguous)
}
