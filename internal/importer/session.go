package importer

import (
	"context"
	"sync"

	"tradeimport/internal/mapper"
	"tradeimport/internal/models"
	"tradeimport/internal/store"
	"tradeimport/pkg/errors"
)

// Stage is a step of an interactive import.
type Stage string

const (
	StageUpload     Stage = "upload"
	StagePreview    Stage = "preview"
	StageMapping    Stage = "mapping"
	StageValidating Stage = "validating"
	StageCommitting Stage = "committing"
	StageDone       Stage = "done"
)

var transitions = map[Stage][]Stage{
	StageUpload:     {StagePreview},
	StagePreview:    {StageMapping},
	StageMapping:    {StageValidating, StagePreview},
	StageValidating: {StageCommitting, StageMapping},
	StageCommitting: {StageDone},
}

// CanTransition reports whether an import may move from s to next.
func (s Stage) CanTransition(next Stage) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Session walks one import through upload, preview, mapping, validating,
// committing and done. It is safe for concurrent use.
type Session struct {
	mu          sync.Mutex
	coordinator *Coordinator
	stage       Stage
	history     []Stage

	rows    []models.SourceRow
	mapping models.FieldMapping
	result  *models.ImportResult
}

// NewSession starts a session at the upload stage.
func NewSession(coordinator *Coordinator) *Session {
	if coordinator == nil {
		coordinator = NewCoordinator(nil, nil)
	}
	return &Session{
		coordinator: coordinator,
		stage:       StageUpload,
		history:     []Stage{StageUpload},
	}
}

// Stage returns the current stage.
func (s *Session) Stage() Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// History returns every stage visited, in order.
func (s *Session) History() []Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Stage(nil), s.history...)
}

// Mapping returns the current column mapping.
func (s *Session) Mapping() models.FieldMapping {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapping
}

// Result returns the last validation result, or nil.
func (s *Session) Result() *models.ImportResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Transition moves the session to next, or fails if that step is not
// allowed from the current stage.
func (s *Session) Transition(next Stage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition(next)
}

func (s *Session) transition(next Stage) error {
	if !s.stage.CanTransition(next) {
		return errors.ValidationError(errors.CodeInvalidStage, string(s.stage)+" -> "+string(next), next, nil)
	}
	s.stage = next
	s.history = append(s.history, next)
	return nil
}

// Upload stores the source rows with their suggested mapping and moves to
// preview.
func (s *Session) Upload(rows []models.SourceRow, mapping models.FieldMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.transition(StagePreview); err != nil {
		return err
	}
	s.rows = rows
	s.mapping = mapping
	return nil
}

// Preview returns the mapping with up to n sample values per column.
func (s *Session) Preview(n int) []mapper.PreviewRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return mapper.Preview(s.mapping, s.rows, n)
}

// EditMapping applies label -> field overrides. From preview it moves the
// session to mapping; in mapping it stays there.
func (s *Session) EditMapping(overrides map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stage != StageMapping && !s.stage.CanTransition(StageMapping) {
		return errors.ValidationError(errors.CodeInvalidStage, string(s.stage)+" -> "+string(StageMapping), StageMapping, nil)
	}

	updated, err := mapper.Remap(s.mapping, overrides)
	if err != nil {
		return err
	}
	if s.stage != StageMapping {
		if err := s.transition(StageMapping); err != nil {
			return err
		}
	}
	s.mapping = updated
	return nil
}

// Validate runs the import against existing trades and moves to
// validating. On failure the session stays in mapping.
func (s *Session) Validate(ctx context.Context, existing []*models.CanonicalTrade) (*models.ImportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.stage.CanTransition(StageValidating) {
		return nil, errors.ValidationError(errors.CodeInvalidStage, string(s.stage)+" -> "+string(StageValidating), StageValidating, nil)
	}

	result, err := s.coordinator.Run(ctx, s.rows, s.mapping, existing)
	if err != nil {
		return nil, err
	}
	if err := s.transition(StageValidating); err != nil {
		return nil, err
	}
	s.result = result
	return result, nil
}

// Commit writes the validated result and finishes the session. If the
// store fails the session returns to validating so the commit can be
// retried.
func (s *Session) Commit(ctx context.Context, st store.TradeStore, policy ConflictPolicy) (*CommitSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.transition(StageCommitting); err != nil {
		return nil, err
	}

	summary, err := s.coordinator.Commit(ctx, st, s.result, policy)
	if err != nil {
		s.stage = StageValidating
		s.history = append(s.history, StageValidating)
		return summary, err
	}

	if err := s.transition(StageDone); err != nil {
		return summary, err
	}
	return summary, nil
}

// Back returns to the previous editable stage: mapping -> preview or
// validating -> mapping. Going back from validating discards the result.
func (s *Session) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.stage {
	case StageMapping:
		return s.transition(StagePreview)
	case StageValidating:
		s.result = nil
		return s.transition(StageMapping)
	default:
		return errors.ValidationError(errors.CodeInvalidStage, string(s.stage)+" -> back", s.stage, nil)
	}
}
