package matcher

import (
	"fmt"

	"tradeimport/internal/models"
)

// DuplicateGroup is a set of candidates from one import that match each
// other under the conflict rule.
type DuplicateGroup struct {
	Trades []*models.CanonicalTrade
	Reason string
}

// DetectDuplicates finds candidates in the same batch that look like the
// same trade. It only reports; Partition still treats each candidate on its
// own.
func (d *Detector) DetectDuplicates(candidates []*models.CanonicalTrade) []DuplicateGroup {
	var groups []DuplicateGroup
	processed := make(map[int]bool)
	idx := NewIndex(nil)

	positions := make(map[*models.CanonicalTrade]int, len(candidates))
	for i, c := range candidates {
		positions[c] = i
		key := Key(c.Symbol, c.Date)
		idx.bySymbolDate[key] = append(idx.bySymbolDate[key], c)
	}

	for i, first := range candidates {
		if processed[i] {
			continue
		}
		processed[i] = true

		group := []*models.CanonicalTrade{first}
		for _, other := range idx.Candidates(first.Symbol, first.Date) {
			j := positions[other]
			if processed[j] {
				continue
			}
			if d.Config.WithinTolerance(first.EntryPrice, other.EntryPrice) {
				group = append(group, other)
				processed[j] = true
			}
		}

		if len(group) > 1 {
			groups = append(groups, DuplicateGroup{
				Trades: group,
				Reason: fmt.Sprintf("%d rows share %s on %s at entry %s",
					len(group), first.Symbol, first.Date, first.EntryPrice),
			})
		}
	}

	return groups
}
