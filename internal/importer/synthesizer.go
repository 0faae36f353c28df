// Package importer turns mapped source rows into canonical trades and decides
// which of them are new.
//
// The pipeline for one batch is:
//
//	rows -> Synthesizer (normalise + defaults + derivations + required gate)
//	     -> matcher.Detector (split into new trades and conflicts)
//	     -> ImportResult
//
// Run is pure over in-memory rows; Commit is the only step that writes to a
// store. A Session tracks where an interactive import currently is.
package importer

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradeimport/internal/models"
	"tradeimport/internal/normalizer"
)

const (
	// DefaultStrategy is assigned to trades whose source has no strategy column.
	DefaultStrategy = "Imported"
	// DefaultType is assigned to trades whose source has no type column.
	DefaultType = "CFD"

	// derivedPriceScale is the number of decimal places kept when an exit
	// price is derived from pnl and quantity.
	derivedPriceScale = 8
)

// Options are the per-import defaults applied before any column.
type Options struct {
	Strategy string   `mapstructure:"strategy"`
	Type     string   `mapstructure:"type"`
	Tags     []string `mapstructure:"tags"`

	// NewID generates trade identifiers. Defaults to random UUIDs.
	NewID func() string `mapstructure:"-"`
}

// DefaultOptions returns the standard import defaults
func DefaultOptions() *Options {
	return &Options{
		Strategy: DefaultStrategy,
		Type:     DefaultType,
	}
}

// Synthesizer builds one CanonicalTrade from one source row.
type Synthesizer struct {
	normalizer *normalizer.Normalizer
	options    Options
}

// NewSynthesizer creates a synthesizer. Nil arguments use the defaults.
func NewSynthesizer(n *normalizer.Normalizer, options *Options) *Synthesizer {
	if n == nil {
		n = normalizer.NewNormalizer(nil)
	}
	if options == nil {
		options = DefaultOptions()
	}

	opts := *options
	if strings.TrimSpace(opts.Strategy) == "" {
		opts.Strategy = DefaultStrategy
	}
	if strings.TrimSpace(opts.Type) == "" {
		opts.Type = DefaultType
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.NewString() }
	}
	opts.Tags = models.NormalizeTags(opts.Tags)

	return &Synthesizer{normalizer: n, options: opts}
}

// Normalizer returns the value normalizer used for cells.
func (s *Synthesizer) Normalizer() *normalizer.Normalizer {
	return s.normalizer
}

// Synthesize builds a trade from row. Exactly one of the results is non-nil:
// the trade, or a diagnostic explaining why the row cannot become one.
//
// Columns are applied in source order, so when several columns feed the same
// field the last one with a usable value wins. Unmapped columns are ignored.
func (s *Synthesizer) Synthesize(row models.SourceRow, mapping models.FieldMapping) (*models.CanonicalTrade, *models.RowDiagnostic) {
	if rowIsBlank(row, mapping) {
		return nil, &models.RowDiagnostic{Line: row.Line, Reason: models.SkipEmptyRow}
	}

	trade := &models.CanonicalTrade{
		ID:       s.options.NewID(),
		Status:   models.StatusClosed,
		Strategy: s.options.Strategy,
		Type:     s.options.Type,
		Tags:     append([]string(nil), s.options.Tags...),
	}
	present := make(map[models.Field]bool)

	for _, label := range mapping.Columns() {
		field := mapping.FieldFor(label)
		if field == models.FieldUnmapped {
			continue
		}
		value, ok := s.normalizer.Normalize(field, row.Get(label))
		if !ok {
			continue
		}
		apply(trade, value)
		present[field] = true
	}

	var missing []models.Field
	for _, f := range models.RequiredFields {
		if !present[f] {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return nil, &models.RowDiagnostic{Line: row.Line, Reason: models.SkipMissingRequired, Missing: missing}
	}
	if !trade.EntryPrice.IsPositive() {
		return nil, &models.RowDiagnostic{
			Line:   row.Line,
			Reason: models.SkipInvalidEntry,
			Detail: trade.EntryPrice.String(),
		}
	}

	if exit, ok := DeriveExitPrice(trade); ok {
		trade.ExitPrice = decimal.NewNullDecimal(exit)
	}
	trade.Status = trade.DeriveStatus()

	return trade, nil
}

// DeriveExitPrice computes entry +/- pnl/quantity (plus for LONG, minus for
// SHORT) when the exit price is absent. It reports false when any input is
// missing or the quantity is zero.
func DeriveExitPrice(t *models.CanonicalTrade) (decimal.Decimal, bool) {
	if t.ExitPrice.Valid || !t.PnL.Valid || !t.Quantity.Valid || t.Quantity.Decimal.IsZero() {
		return decimal.Decimal{}, false
	}

	move := t.PnL.Decimal.DivRound(t.Quantity.Decimal, derivedPriceScale)
	switch t.Side {
	case models.SideLong:
		return t.EntryPrice.Add(move), true
	case models.SideShort:
		return t.EntryPrice.Sub(move), true
	default:
		return decimal.Decimal{}, false
	}
}

func apply(t *models.CanonicalTrade, v normalizer.Value) {
	switch v.Field {
	case models.FieldSymbol:
		t.Symbol = v.Text
	case models.FieldDate:
		t.Date = v.Text
	case models.FieldSide:
		t.Side = v.Side
	case models.FieldType:
		t.Type = v.Text
	case models.FieldEntryPrice:
		t.EntryPrice = v.Number
	case models.FieldExitPrice:
		t.ExitPrice = decimal.NewNullDecimal(v.Number)
	case models.FieldQuantity:
		t.Quantity = decimal.NewNullDecimal(v.Number)
	case models.FieldLotSize:
		t.LotSize = decimal.NewNullDecimal(v.Number)
	case models.FieldLeverage:
		t.Leverage = decimal.NewNullDecimal(v.Number)
	case models.FieldPnL:
		t.PnL = decimal.NewNullDecimal(v.Number)
	case models.FieldPnLPercentage:
		t.PnLPercentage = decimal.NewNullDecimal(v.Number)
	case models.FieldCommission:
		t.Commission = decimal.NewNullDecimal(v.Number)
	case models.FieldSwap:
		t.Swap = decimal.NewNullDecimal(v.Number)
	case models.FieldStrategy:
		t.Strategy = v.Text
	case models.FieldNotes:
		t.Notes = v.Text
	case models.FieldStatus:
		// status is always derived from exit price / pnl
	}
}

func rowIsBlank(row models.SourceRow, mapping models.FieldMapping) bool {
	for _, label := range mapping.Columns() {
		if strings.TrimSpace(row.Get(label)) != "" {
			return false
		}
	}
	return true
}
