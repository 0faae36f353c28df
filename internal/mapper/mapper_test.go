package mapper

import (
	"testing"

	"tradeimport/internal/models"
	"tradeimport/pkg/errors"
)

func TestMap_DefaultProfile(t *testing.T) {
	table := NewAliasTable(DefaultProfile)
	labels := []string{"Date", "Pair", "Direction", "Entry", "Random Notes Field"}

	mapping := Map(labels, table)

	expected := map[string]models.Field{
		"Date":               models.FieldDate,
		"Pair":               models.FieldSymbol,
		"Direction":          models.FieldSide,
		"Entry":              models.FieldEntryPrice,
		"Random Notes Field": models.FieldUnmapped,
	}

	if mapping.Len() != len(labels) {
		t.Fatalf("expected %d columns, got %d", len(labels), mapping.Len())
	}
	for label, want := range expected {
		if got := mapping.FieldFor(label); got != want {
			t.Errorf("expected %q -> %s, got %s", label, want, got)
		}
	}
	if missing := mapping.MissingRequired(); len(missing) != 0 {
		t.Errorf("expected no missing required fields, got %v", missing)
	}
}

func TestMap_LabelCleaning(t *testing.T) {
	table := NewAliasTable(DefaultProfile)

	tests := []struct {
		label string
		want  models.Field
	}{
		{"\uFEFFSymbol", models.FieldSymbol},
		{"  Entry Price ", models.FieldEntryPrice},
		{"ENTRY PRICE", models.FieldUnmapped},
		{"Entry_Price", models.FieldUnmapped},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			mapping := Map([]string{tt.label}, table)
			if got := mapping.FieldFor(tt.label); got != tt.want {
				t.Errorf("expected %q -> %s, got %s", tt.label, tt.want, got)
			}
		})
	}
}

func TestMap_ChineseProfile(t *testing.T) {
	registry := NewRegistry()
	table, err := registry.Table("zh", "default")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	labels := []string{"品种", "方向", "开仓价", "平仓价", "手数", "盈亏", "手续费", "库存费", "开仓时间"}
	mapping := Map(labels, table)

	expected := []models.Field{
		models.FieldSymbol, models.FieldSide, models.FieldEntryPrice, models.FieldExitPrice,
		models.FieldLotSize, models.FieldPnL, models.FieldCommission, models.FieldSwap, models.FieldDate,
	}
	for i, label := range labels {
		if got := mapping.FieldFor(label); got != expected[i] {
			t.Errorf("expected %s -> %s, got %s", label, expected[i], got)
		}
	}
}

func TestAliasTable_FirstProfileWins(t *testing.T) {
	mt5First := NewAliasTable(MT5Profile, DefaultProfile)
	defaultFirst := NewAliasTable(DefaultProfile, MT5Profile)

	if f, _ := mt5First.Lookup("Type"); f != models.FieldSide {
		t.Errorf("expected mt5 to map Type -> side, got %s", f)
	}
	if f, _ := defaultFirst.Lookup("Type"); f != models.FieldType {
		t.Errorf("expected default to map Type -> type, got %s", f)
	}
	if got := mt5First.Profiles(); len(got) != 2 || got[0] != "mt5" {
		t.Errorf("unexpected merge order: %v", got)
	}
}

func TestMap_DuplicateFieldAliases(t *testing.T) {
	mapping := Map([]string{"Comment", "Notes"}, NewAliasTable(DefaultProfile))

	if mapping.FieldFor("Comment") != models.FieldNotes || mapping.FieldFor("Notes") != models.FieldNotes {
		t.Error("expected both columns to keep their notes mapping")
	}
}

func TestRemap(t *testing.T) {
	base := Map([]string{"Pair", "When", "Px"}, NewAliasTable(DefaultProfile))

	tests := []struct {
		name      string
		overrides map[string]string
		wantCode  errors.ErrorCode
		check     func(t *testing.T, m models.FieldMapping)
	}{
		{
			name:      "assign unknown columns",
			overrides: map[string]string{"When": "date", "Px": "EntryPrice"},
			check: func(t *testing.T, m models.FieldMapping) {
				if m.FieldFor("When") != models.FieldDate || m.FieldFor("Px") != models.FieldEntryPrice {
					t.Errorf("unexpected mapping: when=%s px=%s", m.FieldFor("When"), m.FieldFor("Px"))
				}
			},
		},
		{
			name:      "unmap a column",
			overrides: map[string]string{"Pair": "unmapped"},
			check: func(t *testing.T, m models.FieldMapping) {
				if m.FieldFor("Pair") != models.FieldUnmapped {
					t.Errorf("expected Pair to be unmapped, got %s", m.FieldFor("Pair"))
				}
			},
		},
		{
			name:      "unknown label",
			overrides: map[string]string{"Ticker": "symbol"},
			wantCode:  errors.CodeUnknownLabel,
		},
		{
			name:      "unknown field",
			overrides: map[string]string{"Px": "price"},
			wantCode:  errors.CodeInvalidField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Remap(base, tt.overrides)
			if tt.wantCode != "" {
				if !errors.HasCode(err, tt.wantCode) {
					t.Fatalf("expected error code %s, got %v", tt.wantCode, err)
				}
				if base.FieldFor("Pair") != models.FieldSymbol {
					t.Error("expected failed remap to leave the mapping untouched")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, got)
		})
	}
}

func TestParseOverrides(t *testing.T) {
	overrides, err := ParseOverrides([]string{"Pair=symbol", " Buy/Sell = side "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if overrides["Pair"] != "symbol" || overrides["Buy/Sell"] != "side" {
		t.Errorf("unexpected overrides: %v", overrides)
	}

	if _, err := ParseOverrides([]string{"=symbol"}); err == nil {
		t.Error("expected error for empty label")
	}
	if _, err := ParseOverrides([]string{"symbol"}); err == nil {
		t.Error("expected error for missing separator")
	}
}

func TestPreview(t *testing.T) {
	labels := []string{"Pair", "Notes"}
	mapping := Map(labels, NewAliasTable(DefaultProfile))
	rows := []models.SourceRow{
		models.NewSourceRow(2, labels, []string{"EUR/USD", ""}),
		models.NewSourceRow(3, labels, []string{"GBPUSD", "breakout"}),
		models.NewSourceRow(4, labels, []string{"XAU", "late"}),
	}

	preview := Preview(mapping, rows, 2)
	if len(preview) != 2 {
		t.Fatalf("expected 2 preview rows, got %d", len(preview))
	}
	if preview[0].Sample != "EUR/USD" || preview[0].Field != models.FieldSymbol {
		t.Errorf("unexpected first preview row: %+v", preview[0])
	}
	if preview[1].Sample != "breakout" {
		t.Errorf("expected first non-empty sample, got %q", preview[1].Sample)
	}

	if got := Preview(mapping, rows, 1); got[1].Sample != "" {
		t.Errorf("expected empty sample within first row, got %q", got[1].Sample)
	}
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()

	if names := registry.Names(); len(names) != 3 {
		t.Errorf("expected 3 built-in profiles, got %v", names)
	}

	custom, err := ProfileFromStrings("acme", "Acme broker", map[string]string{
		"Instrument Code": "symbol",
		"Trade Px":        "entryPrice",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := registry.Register(custom); err != nil {
		t.Fatalf("unexpected register error: %v", err)
	}

	table, err := registry.Table("ACME")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f, ok := table.Lookup("Trade Px"); !ok || f != models.FieldEntryPrice {
		t.Errorf("expected custom alias, got %s", f)
	}

	if _, err := registry.Table("nope"); !errors.HasCode(err, errors.CodeUnknownProfile) {
		t.Errorf("expected unknown profile error, got %v", err)
	}
	if _, err := ProfileFromStrings("bad", "", map[string]string{"X": "price"}); err == nil {
		t.Error("expected error for unknown field name")
	}
	if err := registry.Register(&Profile{Name: ""}); err == nil {
		t.Error("expected error for unnamed profile")
	}
}
