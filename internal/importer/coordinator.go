package importer

import (
	"context"
	"fmt"
	"strings"

	"tradeimport/internal/matcher"
	"tradeimport/internal/models"
	"tradeimport/internal/store"
	"tradeimport/pkg/errors"
	"tradeimport/pkg/logger"
)

// ConflictPolicy decides what Commit does with candidates that duplicate a
// stored trade.
type ConflictPolicy string

const (
	// PolicySkip leaves the stored trade untouched and drops the candidate.
	PolicySkip ConflictPolicy = "skip"
	// PolicyOverwrite replaces the stored trade's fields with the
	// candidate's, keeping the stored id.
	PolicyOverwrite ConflictPolicy = "overwrite"
)

// ParseConflictPolicy resolves a policy name; empty means skip.
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch ConflictPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicySkip:
		return PolicySkip, nil
	case PolicyOverwrite:
		return PolicyOverwrite, nil
	default:
		return "", errors.ConfigurationError(errors.CodeInvalidConfig, "on_conflict", s, nil).
			WithSuggestion("use 'skip' or 'overwrite'")
	}
}

// Progress describes how far a Run has got.
type Progress struct {
	Step      string  `json:"step"`
	Processed int     `json:"processed"`
	Total     int     `json:"total"`
	Percent   float64 `json:"percent"`
}

// ProgressCallback is called as a Run advances.
type ProgressCallback func(Progress)

// Coordinator runs the synthesize -> detect pipeline over a batch of rows.
type Coordinator struct {
	synthesizer *Synthesizer
	detector    *matcher.Detector
	logger      logger.Logger

	progressInterval  int
	progressCallbacks []ProgressCallback
}

// NewCoordinator creates a coordinator. Nil arguments use the defaults.
func NewCoordinator(synthesizer *Synthesizer, detector *matcher.Detector) *Coordinator {
	if synthesizer == nil {
		synthesizer = NewSynthesizer(nil, nil)
	}
	if detector == nil {
		detector = matcher.NewDetector(nil)
	}
	return &Coordinator{
		synthesizer:      synthesizer,
		detector:         detector,
		logger:           logger.WithComponent("import_coordinator"),
		progressInterval: 500,
	}
}

// SetLogger replaces the coordinator's logger.
func (c *Coordinator) SetLogger(l logger.Logger) {
	c.logger = l.WithComponent("import_coordinator")
}

// SetProgressInterval sets how many rows pass between progress reports.
func (c *Coordinator) SetProgressInterval(rows int) {
	c.progressInterval = rows
}

// AddProgressCallback registers a progress observer.
func (c *Coordinator) AddProgressCallback(callback ProgressCallback) {
	c.progressCallbacks = append(c.progressCallbacks, callback)
}

// Run synthesizes a trade from every row and partitions the trades against
// the existing ones. Only an empty source is an error: rows that cannot
// become trades are counted in SkippedCount with a diagnostic. The existing
// trades are never modified.
//
// The context is checked between rows. A cancelled run returns the context
// error and no result.
func (c *Coordinator) Run(
	ctx context.Context,
	rows []models.SourceRow,
	mapping models.FieldMapping,
	existing []*models.CanonicalTrade,
) (*models.ImportResult, error) {
	if mapping.Len() == 0 {
		return nil, errors.ImportFailure(errors.CodeEmptySource, "import", fmt.Errorf("source has no columns"))
	}
	if len(rows) == 0 {
		return nil, errors.ImportFailure(errors.CodeEmptySource, "import", fmt.Errorf("source has no rows"))
	}

	op := logger.NewOperationLogger("import", c.logger).
		WithField("rows", len(rows)).
		WithField("existing", len(existing))

	result := &models.ImportResult{TotalRows: len(rows)}
	progress := logger.NewRowProgress("synthesize", len(rows), c.progressInterval, c.logger)
	candidates := make([]*models.CanonicalTrade, 0, len(rows))

	op.Step("synthesize")
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			op.Error(err, "Import cancelled")
			return nil, errors.ImportFailure(errors.CodeCancelled, "import", err)
		}

		trade, diag := c.synthesizer.Synthesize(row, mapping)
		if diag != nil {
			result.SkippedCount++
			result.Skipped = append(result.Skipped, *diag)
			c.logger.WithFields(logger.Fields{
				"line":   diag.Line,
				"reason": diag.Reason,
			}).Debug("Row skipped")
		} else {
			candidates = append(candidates, trade)
		}

		progress.Increment()
		if c.progressInterval > 0 && progress.Current()%c.progressInterval == 0 {
			c.notify("synthesize", progress, len(rows))
		}
	}
	c.notify("synthesize", progress, len(rows))

	op.Step("detect_conflicts")
	result.Inserted, result.Conflicts = c.detector.Partition(existing, candidates)
	if result.Inserted == nil {
		result.Inserted = []*models.CanonicalTrade{}
	}
	if result.Conflicts == nil {
		result.Conflicts = []models.ConflictPair{}
	}

	for _, group := range c.detector.DetectDuplicates(candidates) {
		result.Warnings = append(result.Warnings, group.Reason)
		c.logger.WithField("rows", len(group.Trades)).Warnf("Possible duplicate rows within the import: %s", group.Reason)
	}
	if n := result.AmbiguousConflicts(); n > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%d imported rows matched more than one stored trade", n))
	}

	if !result.Accounted() {
		err := fmt.Errorf("%d inserted + %d conflicts + %d skipped != %d rows",
			len(result.Inserted), len(result.Conflicts), result.SkippedCount, result.TotalRows)
		op.Error(err, "Row accounting failed")
		return nil, errors.InternalError(errors.CodeUnexpectedError, "import", err)
	}

	op.WithField("inserted", len(result.Inserted)).
		WithField("conflicts", len(result.Conflicts)).
		WithField("skipped", result.SkippedCount).
		Success(result.Summary())

	return result, nil
}

func (c *Coordinator) notify(step string, progress *logger.RowProgress, total int) {
	if len(c.progressCallbacks) == 0 {
		return
	}
	p := Progress{Step: step, Processed: progress.Current(), Total: total, Percent: progress.Percentage()}
	for _, callback := range c.progressCallbacks {
		callback(p)
	}
}

// CommitSummary counts what Commit wrote.
type CommitSummary struct {
	Appended    int `json:"appended"`
	Overwritten int `json:"overwritten"`
	Skipped     int `json:"skipped"`
}

// Commit persists a run's result: new trades are appended and conflicts are
// handled according to policy.
func (c *Coordinator) Commit(
	ctx context.Context,
	s store.TradeStore,
	result *models.ImportResult,
	policy ConflictPolicy,
) (*CommitSummary, error) {
	if result == nil {
		return nil, errors.InternalError(errors.CodeUnexpectedError, "commit", fmt.Errorf("nil import result"))
	}
	if policy == "" {
		policy = PolicySkip
	}

	summary := &CommitSummary{}
	err := logger.TimedOperation("commit", c.logger, func() error {
		if err := ctx.Err(); err != nil {
			return errors.ImportFailure(errors.CodeCancelled, "commit", err)
		}

		if len(result.Inserted) > 0 {
			if err := s.Append(ctx, result.Inserted); err != nil {
				return err
			}
			summary.Appended = len(result.Inserted)
		}

		switch policy {
		case PolicyOverwrite:
			for _, pair := range result.Conflicts {
				if err := ctx.Err(); err != nil {
					return errors.ImportFailure(errors.CodeCancelled, "commit", err)
				}
				if err := s.Update(ctx, Overwrite(pair)); err != nil {
					return err
				}
				summary.Overwritten++
			}
		case PolicySkip:
			summary.Skipped = len(result.Conflicts)
		default:
			return errors.ConfigurationError(errors.CodeInvalidConfig, "on_conflict", policy, nil)
		}
		return nil
	})
	if err != nil {
		return summary, err
	}

	c.logger.WithFields(logger.Fields{
		"appended":    summary.Appended,
		"overwritten": summary.Overwritten,
		"skipped":     summary.Skipped,
		"policy":      policy,
	}).Info("Import committed")

	return summary, nil
}

// Overwrite returns the candidate's fields under the existing trade's id.
func Overwrite(pair models.ConflictPair) *models.CanonicalTrade {
	updated := pair.Candidate.Clone()
	updated.ID = pair.Existing.ID
	return updated
}
