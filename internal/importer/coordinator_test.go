package importer

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"tradeimport/internal/mapper"
	"tradeimport/internal/matcher"
	"tradeimport/internal/models"
	"tradeimport/internal/store"
	"tradeimport/pkg/errors"
	"tradeimport/pkg/logger"
)

var journalLabels = []string{"Date", "Symbol", "Side", "Entry", "Exit", "Qty", "Random Notes Field"}

func journalMapping() models.FieldMapping {
	return mapper.Map(journalLabels, mapper.NewAliasTable(mapper.DefaultProfile))
}

func newTestCoordinator() *Coordinator {
	c := NewCoordinator(newTestSynthesizer(), nil)
	c.SetLogger(logger.Discard())
	return c
}

func storedTrade(id, symbol, date, entry string) *models.CanonicalTrade {
	return &models.CanonicalTrade{
		ID:         id,
		Symbol:     symbol,
		Date:       date,
		Side:       models.SideLong,
		Type:       DefaultType,
		EntryPrice: decimal.RequireFromString(entry),
		Status:     models.StatusOpen,
		Strategy:   DefaultStrategy,
	}
}

func TestCoordinator_Run_RowAccounting(t *testing.T) {
	rows := []models.SourceRow{
		row(2, journalLabels, "15/01/2024", "eurusd", "Buy", "1.0950", "1.1020", "1", "first"),
		row(3, journalLabels, "2024-01-16", "GBP/USD", "Sell", "1.2700", "", "2", ""),
		row(4, journalLabels, "2024-01-16", "", "Sell", "1.2700", "", "2", "no symbol"),
		row(5, journalLabels, "", "", "", "", "", "", ""),
		row(6, journalLabels, "2024-01-17", "USDJPY", "Buy", "0", "", "", ""),
	}
	existing := []*models.CanonicalTrade{storedTrade("S1", "GBPUSD", "2024-01-16", "1.2705")}

	result, err := newTestCoordinator().Run(context.Background(), rows, journalMapping(), existing)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if result.TotalRows != 5 {
		t.Errorf("Expected 5 total rows, got %d", result.TotalRows)
	}
	if len(result.Inserted) != 1 || result.Inserted[0].Symbol != "EURUSD" {
		t.Errorf("Expected EURUSD to be inserted, got %v", result.Inserted)
	}
	if len(result.Conflicts) != 1 || result.Conflicts[0].Existing.ID != "S1" {
		t.Errorf("Expected GBPUSD to conflict with S1, got %v", result.Conflicts)
	}
	if result.SkippedCount != 3 || len(result.Skipped) != 3 {
		t.Errorf("Expected 3 skipped rows, got %d (%d diagnostics)", result.SkippedCount, len(result.Skipped))
	}
	if !result.Accounted() {
		t.Error("Expected every row to be accounted for")
	}

	wantReasons := []models.SkipReason{models.SkipMissingRequired, models.SkipEmptyRow, models.SkipInvalidEntry}
	for i, want := range wantReasons {
		if result.Skipped[i].Reason != want {
			t.Errorf("Expected diagnostic %d reason %s, got %s", i, want, result.Skipped[i].Reason)
		}
	}
	if result.Summary() != "1 imported, 1 duplicates skipped, 3 rows unusable" {
		t.Errorf("Unexpected summary: %s", result.Summary())
	}
}

func TestCoordinator_Run_ToleranceBoundary(t *testing.T) {
	existing := []*models.CanonicalTrade{storedTrade("S1", "AAPLUSD", "2024-02-01", "100.000")}
	labels := []string{"Symbol", "Date", "Side", "Entry"}
	mapping := mapper.Map(labels, mapper.NewAliasTable(mapper.DefaultProfile))

	tests := []struct {
		name         string
		entry        string
		wantConflict bool
	}{
		{"inside tolerance", "100.009", true},
		{"outside tolerance", "100.02", false},
		{"exactly tolerance", "100.01", false},
		{"below inside tolerance", "99.991", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := []models.SourceRow{row(2, labels, "AAPLUSD", "2024-02-01", "Buy", tt.entry)}
			result, err := newTestCoordinator().Run(context.Background(), rows, mapping, existing)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got := len(result.Conflicts) == 1; got != tt.wantConflict {
				t.Errorf("Expected conflict=%v for entry %s, got %v", tt.wantConflict, tt.entry, got)
			}
			if !result.Accounted() {
				t.Error("Expected every row to be accounted for")
			}
		})
	}
}

func TestCoordinator_Run_AmbiguousConflict(t *testing.T) {
	existing := []*models.CanonicalTrade{
		storedTrade("S1", "EURUSD", "2024-01-15", "1.1000"),
		storedTrade("S2", "EURUSD", "2024-01-15", "1.1050"),
	}
	rows := []models.SourceRow{row(2, journalLabels, "2024-01-15", "EURUSD", "Buy", "1.1020", "", "", "")}

	result, err := newTestCoordinator().Run(context.Background(), rows, journalMapping(), existing)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(result.Conflicts) != 1 {
		t.Fatalf("Expected 1 conflict, got %d", len(result.Conflicts))
	}
	pair := result.Conflicts[0]
	if pair.Existing.ID != "S1" {
		t.Errorf("Expected the first stored match S1, got %s", pair.Existing.ID)
	}
	if pair.AdditionalMatches != 1 {
		t.Errorf("Expected 1 additional match, got %d", pair.AdditionalMatches)
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "more than one stored trade") {
		t.Errorf("Expected an ambiguity warning, got %v", result.Warnings)
	}
}

func TestCoordinator_Run_ExistingUntouched(t *testing.T) {
	existing := []*models.CanonicalTrade{storedTrade("S1", "EURUSD", "2024-01-15", "1.1000")}
	before := *existing[0]

	rows := []models.SourceRow{row(2, journalLabels, "2024-01-15", "EURUSD", "Sell", "1.1001", "1.0900", "1", "changed")}
	if _, err := newTestCoordinator().Run(context.Background(), rows, journalMapping(), existing); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	after := existing[0]
	if after.Side != before.Side || after.ExitPrice.Valid || after.Notes != before.Notes || after.Status != before.Status {
		t.Errorf("Expected stored trade to be unchanged, got %s", after)
	}
}

func TestCoordinator_Run_BatchDuplicatesWarned(t *testing.T) {
	rows := []models.SourceRow{
		row(2, journalLabels, "2024-01-15", "EURUSD", "Buy", "1.1000", "", "", ""),
		row(3, journalLabels, "2024-01-15", "EURUSD", "Buy", "1.1001", "", "", ""),
	}

	result, err := newTestCoordinator().Run(context.Background(), rows, journalMapping(), nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(result.Inserted) != 2 {
		t.Errorf("Expected both rows to be inserted, got %d", len(result.Inserted))
	}
	if len(result.Warnings) != 1 {
		t.Errorf("Expected one duplicate warning, got %v", result.Warnings)
	}
}

func TestCoordinator_Run_StructuralErrors(t *testing.T) {
	c := newTestCoordinator()

	_, err := c.Run(context.Background(), nil, journalMapping(), nil)
	if !errors.HasCode(err, errors.CodeEmptySource) {
		t.Errorf("Expected empty source error for zero rows, got %v", err)
	}

	rows := []models.SourceRow{row(2, nil)}
	_, err = c.Run(context.Background(), rows, models.NewFieldMapping(nil), nil)
	if !errors.HasCode(err, errors.CodeEmptySource) {
		t.Errorf("Expected empty source error for zero columns, got %v", err)
	}
}

func TestCoordinator_Run_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rows := []models.SourceRow{row(2, journalLabels, "2024-01-15", "EURUSD", "Buy", "1.1", "", "", "")}
	result, err := newTestCoordinator().Run(ctx, rows, journalMapping(), nil)
	if result != nil {
		t.Error("Expected no result from a cancelled run")
	}
	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if !errors.HasCode(err, errors.CodeCancelled) {
		t.Errorf("Expected cancelled code, got %v", err)
	}
}

func TestCoordinator_Run_Progress(t *testing.T) {
	c := newTestCoordinator()
	c.SetProgressInterval(2)

	var updates []Progress
	c.AddProgressCallback(func(p Progress) {
		updates = append(updates, p)
	})

	rows := make([]models.SourceRow, 5)
	for i := range rows {
		rows[i] = row(i+2, journalLabels, "2024-01-15", "EURUSD", "Buy", "1.1", "", "", "")
	}
	if _, err := c.Run(context.Background(), rows, journalMapping(), nil); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(updates) != 3 {
		t.Fatalf("Expected 3 progress updates, got %d", len(updates))
	}
	if updates[0].Processed != 2 || updates[0].Percent != 40 {
		t.Errorf("Expected first update at 40%%, got %+v", updates[0])
	}
	last := updates[len(updates)-1]
	if last.Processed != 5 || last.Percent != 100 {
		t.Errorf("Expected final update at 100%%, got %+v", last)
	}
}

func TestCoordinator_Run_TolerancePerConfig(t *testing.T) {
	config := matcher.DefaultConfig()
	config.PriceTolerance = decimal.RequireFromString("0.5")
	c := NewCoordinator(newTestSynthesizer(), matcher.NewDetector(config))
	c.SetLogger(logger.Discard())

	existing := []*models.CanonicalTrade{storedTrade("S1", "EURUSD", "2024-01-15", "1.1")}
	rows := []models.SourceRow{row(2, journalLabels, "2024-01-15", "EURUSD", "Buy", "1.4", "", "", "")}

	result, err := c.Run(context.Background(), rows, journalMapping(), existing)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(result.Conflicts) != 1 {
		t.Errorf("Expected a conflict with a wider tolerance, got %d", len(result.Conflicts))
	}
}

func TestCoordinator_Commit(t *testing.T) {
	ctx := context.Background()
	rows := []models.SourceRow{
		row(2, journalLabels, "2024-01-15", "EURUSD", "Buy", "1.1002", "1.1100", "1", "updated"),
		row(3, journalLabels, "2024-01-16", "USDJPY", "Sell", "148.20", "", "", ""),
	}

	tests := []struct {
		name      string
		policy    ConflictPolicy
		wantEntry string
		want      CommitSummary
	}{
		{"skip", PolicySkip, "1.1", CommitSummary{Appended: 1, Skipped: 1}},
		{"default", "", "1.1", CommitSummary{Appended: 1, Skipped: 1}},
		{"overwrite", PolicyOverwrite, "1.1002", CommitSummary{Appended: 1, Overwritten: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := store.NewMemoryStore(storedTrade("S1", "EURUSD", "2024-01-15", "1.1"))
			existing, _ := s.List(ctx)

			c := newTestCoordinator()
			result, err := c.Run(ctx, rows, journalMapping(), existing)
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}

			summary, err := c.Commit(ctx, s, result, tt.policy)
			if err != nil {
				t.Fatalf("Commit failed: %v", err)
			}
			if *summary != tt.want {
				t.Errorf("Expected summary %+v, got %+v", tt.want, *summary)
			}

			trades, _ := s.List(ctx)
			if len(trades) != 2 {
				t.Fatalf("Expected 2 stored trades, got %d", len(trades))
			}
			if trades[0].ID != "S1" {
				t.Errorf("Expected stored id S1 to be kept, got %s", trades[0].ID)
			}
			if !trades[0].EntryPrice.Equal(decimal.RequireFromString(tt.wantEntry)) {
				t.Errorf("Expected S1 entry %s, got %s", tt.wantEntry, trades[0].EntryPrice)
			}
			if trades[1].Symbol != "USDJPY" {
				t.Errorf("Expected USDJPY to be appended, got %s", trades[1].Symbol)
			}
		})
	}
}

func TestCoordinator_Commit_OverwriteKeepsCandidateFields(t *testing.T) {
	pair := models.ConflictPair{
		Existing:  storedTrade("S1", "EURUSD", "2024-01-15", "1.1"),
		Candidate: storedTrade("T9", "EURUSD", "2024-01-15", "1.1004"),
	}
	pair.Candidate.Notes = "from import"

	updated := Overwrite(pair)
	if updated.ID != "S1" || updated.Notes != "from import" {
		t.Errorf("Expected candidate fields under id S1, got %s notes=%q", updated.ID, updated.Notes)
	}
	if pair.Candidate.ID != "T9" {
		t.Error("Expected the candidate itself to be left alone")
	}
}

func TestParseConflictPolicy(t *testing.T) {
	tests := []struct {
		input   string
		want    ConflictPolicy
		wantErr bool
	}{
		{"", PolicySkip, false},
		{"skip", PolicySkip, false},
		{" Overwrite ", PolicyOverwrite, false},
		{"merge", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseConflictPolicy(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error=%v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}
