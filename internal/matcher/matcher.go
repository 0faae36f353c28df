package matcher

import (
	"tradeimport/internal/models"
)

// Detector partitions imported candidates into new trades and conflicts.
type Detector struct {
	Config *Config
}

// NewDetector creates a detector; a nil config uses the defaults.
func NewDetector(config *Config) *Detector {
	if config == nil {
		config = DefaultConfig()
	}
	return &Detector{Config: config}
}

// Match returns the stored trades the candidate duplicates, in store order.
func (d *Detector) Match(idx *Index, candidate *models.CanonicalTrade) []*models.CanonicalTrade {
	var matches []*models.CanonicalTrade
	for _, existing := range idx.Candidates(candidate.Symbol, candidate.Date) {
		if d.Config.WithinTolerance(existing.EntryPrice, candidate.EntryPrice) {
			matches = append(matches, existing)
		}
	}
	return matches
}

// Partition splits candidates into those to insert and those that duplicate
// a stored trade. Each conflict is paired with the first stored match.
// Stored trades are only read. Candidates are compared against the store
// only, never against each other.
func (d *Detector) Partition(existing, candidates []*models.CanonicalTrade) ([]*models.CanonicalTrade, []models.ConflictPair) {
	idx := NewIndex(existing)
	return d.PartitionIndexed(idx, candidates)
}

// PartitionIndexed is Partition over a prebuilt index.
func (d *Detector) PartitionIndexed(idx *Index, candidates []*models.CanonicalTrade) ([]*models.CanonicalTrade, []models.ConflictPair) {
	var toInsert []*models.CanonicalTrade
	var conflicts []models.ConflictPair

	for _, candidate := range candidates {
		matches := d.Match(idx, candidate)
		if len(matches) == 0 {
			toInsert = append(toInsert, candidate)
			continue
		}

		pair := models.ConflictPair{Existing: matches[0], Candidate: candidate}
		if d.Config.FlagAmbiguous {
			pair.AdditionalMatches = len(matches) - 1
		}
		conflicts = append(conflicts, pair)
	}

	return toInsert, conflicts
}
