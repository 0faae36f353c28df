package models

import (
	"fmt"
	"strings"
)

// ConflictPair associates a stored trade with a candidate judged to be the
// same real-world trade.
type ConflictPair struct {
	Existing  *CanonicalTrade `json:"existing"`
	Candidate *CanonicalTrade `json:"candidate"`

	// AdditionalMatches counts other stored trades that also matched the
	// candidate. The pair always uses the first match in store order.
	AdditionalMatches int `json:"additionalMatches,omitempty"`
}

// Ambiguous reports whether more than one stored trade matched.
func (c ConflictPair) Ambiguous() bool {
	return c.AdditionalMatches > 0
}

// SkipReason classifies why a row did not produce a trade.
type SkipReason string

const (
	SkipMissingRequired SkipReason = "missing_required"
	SkipInvalidEntry    SkipReason = "invalid_entry_price"
	SkipEmptyRow        SkipReason = "empty_row"
)

// RowDiagnostic records why one source row was skipped.
type RowDiagnostic struct {
	Line    int        `json:"line"`
	Reason  SkipReason `json:"reason"`
	Missing []Field    `json:"missing,omitempty"`
	Detail  string     `json:"detail,omitempty"`
}

// String returns a one-line description of the diagnostic
func (d RowDiagnostic) String() string {
	switch d.Reason {
	case SkipMissingRequired:
		names := make([]string, len(d.Missing))
		for i, f := range d.Missing {
			names[i] = f.String()
		}
		return fmt.Sprintf("line %d: missing %s", d.Line, strings.Join(names, ", "))
	case SkipInvalidEntry:
		return fmt.Sprintf("line %d: entry price must be positive (%s)", d.Line, d.Detail)
	default:
		if d.Detail != "" {
			return fmt.Sprintf("line %d: %s (%s)", d.Line, d.Reason, d.Detail)
		}
		return fmt.Sprintf("line %d: %s", d.Line, d.Reason)
	}
}

// ImportResult is the outcome of one import run. Every source row lands in
// exactly one of Inserted, Conflicts or the skipped count.
type ImportResult struct {
	Inserted     []*CanonicalTrade `json:"inserted"`
	Conflicts    []ConflictPair    `json:"conflicts"`
	SkippedCount int               `json:"skippedCount"`
	Skipped      []RowDiagnostic   `json:"skipped,omitempty"`
	TotalRows    int               `json:"totalRows"`

	// Warnings carries non-fatal observations, such as rows in the batch
	// that look like the same trade.
	Warnings []string `json:"warnings,omitempty"`
}

// Accounted reports whether the row-accounting invariant holds.
func (r *ImportResult) Accounted() bool {
	return len(r.Inserted)+len(r.Conflicts)+r.SkippedCount == r.TotalRows
}

// AmbiguousConflicts counts conflicts that matched more than one stored trade.
func (r *ImportResult) AmbiguousConflicts() int {
	n := 0
	for _, c := range r.Conflicts {
		if c.Ambiguous() {
			n++
		}
	}
	return n
}

// Summary renders the one-line import outcome shown to users.
func (r *ImportResult) Summary() string {
	return fmt.Sprintf("%d imported, %d duplicates skipped, %d rows unusable",
		len(r.Inserted), len(r.Conflicts), r.SkippedCount)
}
