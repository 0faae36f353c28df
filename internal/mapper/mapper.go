// Package mapper assigns canonical trade fields to source column labels.
package mapper

import (
	"fmt"
	"sort"
	"strings"

	"tradeimport/internal/models"
	"tradeimport/pkg/errors"
)

const utf8BOM = "\uFEFF"

// AliasTable is an immutable label -> field lookup built from profiles.
type AliasTable struct {
	aliases map[string]models.Field
	sources []string
}

// NewAliasTable merges profiles in order. The first profile to alias a label
// keeps it.
func NewAliasTable(profiles ...*Profile) AliasTable {
	t := AliasTable{aliases: make(map[string]models.Field)}
	for _, p := range profiles {
		if p == nil {
			continue
		}
		t.sources = append(t.sources, p.Name)
		for label, field := range p.Aliases {
			key := CleanLabel(label)
			if _, exists := t.aliases[key]; exists {
				continue
			}
			t.aliases[key] = field
		}
	}
	return t
}

// Lookup returns the field aliased by label, or FieldUnmapped.
func (t AliasTable) Lookup(label string) (models.Field, bool) {
	f, ok := t.aliases[CleanLabel(label)]
	return f, ok
}

// Len returns the number of aliases in the table.
func (t AliasTable) Len() int {
	return len(t.aliases)
}

// Profiles returns the names of the merged profiles in merge order.
func (t AliasTable) Profiles() []string {
	return append([]string(nil), t.sources...)
}

// CleanLabel strips a leading BOM and surrounding whitespace from a header.
func CleanLabel(label string) string {
	return strings.TrimSpace(strings.TrimPrefix(label, utf8BOM))
}

// Map builds a mapping covering every label exactly once. Labels the table
// does not know stay unmapped.
func Map(labels []string, table AliasTable) models.FieldMapping {
	mapping := models.NewFieldMapping(labels)
	for _, label := range mapping.Columns() {
		if field, ok := table.Lookup(label); ok {
			mapping = mapping.With(label, field)
		}
	}
	return mapping
}

// Remap applies user overrides of the form label -> field name on top of a
// mapping. Every override is checked before any is applied.
func Remap(mapping models.FieldMapping, overrides map[string]string) (models.FieldMapping, error) {
	labels := make([]string, 0, len(overrides))
	for label := range overrides {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	resolved := make(map[string]models.Field, len(overrides))
	for _, label := range labels {
		if !mapping.Has(label) {
			return mapping, errors.ValidationError(errors.CodeUnknownLabel, "mapping", label, nil).
				WithSuggestion(fmt.Sprintf("known columns: %s", strings.Join(mapping.Columns(), ", ")))
		}
		field, ok := models.ParseField(overrides[label])
		if !ok {
			return mapping, errors.ValidationError(errors.CodeInvalidField, label, overrides[label], nil).
				WithSuggestion(fmt.Sprintf("valid fields: %s", fieldNames()))
		}
		resolved[label] = field
	}

	for _, label := range labels {
		mapping = mapping.With(label, resolved[label])
	}
	return mapping, nil
}

// ParseOverrides parses "label=field" pairs as given on the command line.
func ParseOverrides(pairs []string) (map[string]string, error) {
	overrides := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		idx := strings.LastIndex(pair, "=")
		if idx <= 0 {
			return nil, errors.ValidationError(errors.CodeInvalidField, "map", pair, nil).
				WithSuggestion("use label=field, e.g. --map \"Pair=symbol\"")
		}
		overrides[CleanLabel(pair[:idx])] = strings.TrimSpace(pair[idx+1:])
	}
	return overrides, nil
}

// PreviewRow is one line of a mapping preview.
type PreviewRow struct {
	Label  string       `json:"label"`
	Field  models.Field `json:"field"`
	Sample string       `json:"sample"`
}

// Preview pairs each column with its field and a sample value: the first
// non-empty cell among the first n rows.
func Preview(mapping models.FieldMapping, rows []models.SourceRow, n int) []PreviewRow {
	if n <= 0 || n > len(rows) {
		n = len(rows)
	}

	out := make([]PreviewRow, 0, mapping.Len())
	for _, label := range mapping.Columns() {
		row := PreviewRow{Label: label, Field: mapping.FieldFor(label)}
		for _, r := range rows[:n] {
			if v := strings.TrimSpace(r.Get(label)); v != "" {
				row.Sample = v
				break
			}
		}
		out = append(out, row)
	}
	return out
}

func fieldNames() string {
	names := make([]string, len(models.AllFields))
	for i, f := range models.AllFields {
		names[i] = f.String()
	}
	return strings.Join(names, ", ")
}
