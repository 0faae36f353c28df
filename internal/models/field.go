package models

import "strings"

// Field identifies a canonical trade attribute a source column can feed.
type Field string

const (
	// FieldUnmapped marks a column that feeds no canonical field
	FieldUnmapped Field = ""

	FieldSymbol        Field = "symbol"
	FieldDate          Field = "date"
	FieldSide          Field = "side"
	FieldType          Field = "type"
	FieldEntryPrice    Field = "entryPrice"
	FieldExitPrice     Field = "exitPrice"
	FieldQuantity      Field = "quantity"
	FieldLotSize       Field = "lotSize"
	FieldLeverage      Field = "leverage"
	FieldPnL           Field = "pnl"
	FieldPnLPercentage Field = "pnlPercentage"
	FieldStatus        Field = "status"
	FieldStrategy      Field = "strategy"
	FieldCommission    Field = "commission"
	FieldSwap          Field = "swap"
	FieldNotes         Field = "notes"
)

// AllFields lists every mappable field in display order.
var AllFields = []Field{
	FieldSymbol, FieldDate, FieldSide, FieldType,
	FieldEntryPrice, FieldExitPrice, FieldQuantity, FieldLotSize, FieldLeverage,
	FieldPnL, FieldPnLPercentage, FieldStatus, FieldStrategy,
	FieldCommission, FieldSwap, FieldNotes,
}

// RequiredFields must be present for a row to become a trade.
var RequiredFields = []Field{FieldSymbol, FieldDate, FieldSide, FieldEntryPrice}

// String returns the field identifier, or "unmapped".
func (f Field) String() string {
	if f == FieldUnmapped {
		return "unmapped"
	}
	return string(f)
}

// IsValid reports whether f is a known field or FieldUnmapped.
func (f Field) IsValid() bool {
	if f == FieldUnmapped {
		return true
	}
	for _, known := range AllFields {
		if f == known {
			return true
		}
	}
	return false
}

// IsNumeric reports whether values for f are decimals.
func (f Field) IsNumeric() bool {
	switch f {
	case FieldEntryPrice, FieldExitPrice, FieldQuantity, FieldLotSize, FieldLeverage,
		FieldPnL, FieldPnLPercentage, FieldCommission, FieldSwap:
		return true
	default:
		return false
	}
}

// ParseField resolves a field identifier case-insensitively. "unmapped",
// "none", "-" and the empty string resolve to FieldUnmapped.
func ParseField(s string) (Field, bool) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "unmapped", "none", "-":
		return FieldUnmapped, true
	}
	for _, f := range AllFields {
		if strings.EqualFold(string(f), s) {
			return f, true
		}
	}
	return FieldUnmapped, false
}

// SourceRow is one imported line: an ordered label -> raw cell mapping.
type SourceRow struct {
	Line   int
	Labels []string
	Values map[string]string
}

// NewSourceRow pairs labels with cells. Missing trailing cells become "".
func NewSourceRow(line int, labels, cells []string) SourceRow {
	values := make(map[string]string, len(labels))
	for i, label := range labels {
		if i < len(cells) {
			values[label] = cells[i]
		} else {
			values[label] = ""
		}
	}
	return SourceRow{Line: line, Labels: labels, Values: values}
}

// Get returns the raw cell for label, or "" when absent.
func (r SourceRow) Get(label string) string {
	return r.Values[label]
}

// FieldMapping assigns exactly one Field (possibly unmapped) to every column
// label. The zero value is an empty mapping. Mutating helpers return copies.
type FieldMapping struct {
	labels []string
	fields map[string]Field
}

// NewFieldMapping creates a mapping with every label unmapped. Duplicate
// labels are kept once, in first-seen order.
func NewFieldMapping(labels []string) FieldMapping {
	m := FieldMapping{fields: make(map[string]Field, len(labels))}
	for _, label := range labels {
		if _, exists := m.fields[label]; exists {
			continue
		}
		m.labels = append(m.labels, label)
		m.fields[label] = FieldUnmapped
	}
	return m
}

// Columns returns the labels in source order.
func (m FieldMapping) Columns() []string {
	return append([]string(nil), m.labels...)
}

// Len returns the number of columns covered.
func (m FieldMapping) Len() int {
	return len(m.labels)
}

// Has reports whether label is covered by the mapping.
func (m FieldMapping) Has(label string) bool {
	_, ok := m.fields[label]
	return ok
}

// FieldFor returns the field label maps to; unknown labels are unmapped.
func (m FieldMapping) FieldFor(label string) Field {
	return m.fields[label]
}

// With returns a copy of the mapping with label mapped to field. Labels not
// already covered are appended.
func (m FieldMapping) With(label string, field Field) FieldMapping {
	c := FieldMapping{
		labels: append([]string(nil), m.labels...),
		fields: make(map[string]Field, len(m.fields)+1),
	}
	for k, v := range m.fields {
		c.fields[k] = v
	}
	if _, exists := c.fields[label]; !exists {
		c.labels = append(c.labels, label)
	}
	c.fields[label] = field
	return c
}

// MappedColumns returns the labels mapped to a field, in source order.
func (m FieldMapping) MappedColumns() []string {
	var out []string
	for _, label := range m.labels {
		if m.fields[label] != FieldUnmapped {
			out = append(out, label)
		}
	}
	return out
}

// UnmappedColumns returns the labels left unmapped, in source order.
func (m FieldMapping) UnmappedColumns() []string {
	var out []string
	for _, label := range m.labels {
		if m.fields[label] == FieldUnmapped {
			out = append(out, label)
		}
	}
	return out
}

// Covers reports whether at least one column maps to field.
func (m FieldMapping) Covers(field Field) bool {
	for _, label := range m.labels {
		if m.fields[label] == field {
			return true
		}
	}
	return false
}

// MissingRequired lists required fields no column maps to.
func (m FieldMapping) MissingRequired() []Field {
	var missing []Field
	for _, f := range RequiredFields {
		if !m.Covers(f) {
			missing = append(missing, f)
		}
	}
	return missing
}
