package matcher

import (
	"tradeimport/internal/models"
)

// Index groups stored trades by symbol and date, preserving store order
// within each group.
type Index struct {
	bySymbolDate map[string][]*models.CanonicalTrade
	all          []*models.CanonicalTrade
}

// NewIndex builds an index over trades. The slice is not copied or mutated.
func NewIndex(trades []*models.CanonicalTrade) *Index {
	idx := &Index{
		bySymbolDate: make(map[string][]*models.CanonicalTrade),
		all:          trades,
	}
	for _, t := range trades {
		if t == nil {
			continue
		}
		key := Key(t.Symbol, t.Date)
		idx.bySymbolDate[key] = append(idx.bySymbolDate[key], t)
	}
	return idx
}

// Key builds the grouping key. Symbols compare case-sensitively.
func Key(symbol, date string) string {
	return symbol + "|" + date
}

// Candidates returns the stored trades sharing symbol and date, in store order.
func (idx *Index) Candidates(symbol, date string) []*models.CanonicalTrade {
	return idx.bySymbolDate[Key(symbol, date)]
}

// Len returns the number of indexed trades.
func (idx *Index) Len() int {
	return len(idx.all)
}

// Groups returns the number of distinct symbol/date groups.
func (idx *Index) Groups() int {
	return len(idx.bySymbolDate)
}
