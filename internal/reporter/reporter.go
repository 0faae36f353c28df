// Package reporter renders import results and mapping previews.
//
// Supported output formats:
//   - Console: human-readable tables for terminal display
//   - JSON: structured data for programmatic consumption
//   - CSV: one line per source outcome for spreadsheet review
//   - Markdown: tables suitable for notes, optionally rendered for the
//     terminal with glamour
//
// Example usage:
//
//	generator, err := reporter.NewReportGenerator(nil)
//	err = generator.GenerateReport(result, os.Stdout)
//	err = generator.GenerateMapping(mapper.Preview(mapping, rows, 3), os.Stdout)
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/glamour"
	"github.com/shopspring/decimal"

	"tradeimport/internal/mapper"
	"tradeimport/internal/models"
)

// OutputFormat represents the supported report output formats.
type OutputFormat string

const (
	FormatConsole  OutputFormat = "console"
	FormatJSON     OutputFormat = "json"
	FormatCSV      OutputFormat = "csv"
	FormatMarkdown OutputFormat = "markdown"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV, FormatMarkdown:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	// Detail level options
	IncludeInserted  bool `json:"include_inserted"`
	IncludeConflicts bool `json:"include_conflicts"`
	IncludeSkipped   bool `json:"include_skipped"`
	IncludeWarnings  bool `json:"include_warnings"`

	// MaxItems caps each console/markdown list; 0 means no limit.
	MaxItems int `json:"max_items"`

	// RenderMarkdown styles markdown output for a terminal.
	RenderMarkdown bool   `json:"render_markdown"`
	MarkdownStyle  string `json:"markdown_style"`
	TableMaxWidth  int    `json:"table_max_width"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:           FormatConsole,
		IncludeInserted:  false,
		IncludeConflicts: true,
		IncludeSkipped:   true,
		IncludeWarnings:  true,
		MaxItems:         20,
		RenderMarkdown:   false,
		MarkdownStyle:    "auto",
		TableMaxWidth:    120,
		CSVDelimiter:     ',',
		CSVHeaders:       true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	if c.TableMaxWidth < 50 {
		return fmt.Errorf("table max width must be at least 50 characters, got %d", c.TableMaxWidth)
	}
	if c.MaxItems < 0 {
		return fmt.Errorf("max items cannot be negative, got %d", c.MaxItems)
	}
	if c.Format == FormatCSV && c.CSVDelimiter == 0 {
		return fmt.Errorf("csv delimiter cannot be empty")
	}
	return nil
}

// ReportGenerator generates import reports in various formats
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}
	return &ReportGenerator{config: config}, nil
}

// GetConfiguration returns the current configuration
func (rg *ReportGenerator) GetConfiguration() *ReportConfig {
	return rg.config
}

// GenerateReport writes a report of result to writer.
func (rg *ReportGenerator) GenerateReport(result *models.ImportResult, writer io.Writer) error {
	if result == nil {
		return fmt.Errorf("import result cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(result, writer)
	case FormatJSON:
		return rg.generateJSONReport(result, writer)
	case FormatCSV:
		return rg.generateCSVReport(result, writer)
	case FormatMarkdown:
		return rg.writeMarkdown(rg.markdownReport(result), writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

// GenerateMapping writes a mapping preview: one line per source column with
// the field it feeds and a sample value.
func (rg *ReportGenerator) GenerateMapping(preview []mapper.PreviewRow, writer io.Writer) error {
	switch rg.config.Format {
	case FormatConsole:
		tw := tabwriter.NewWriter(writer, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "COLUMN\tFIELD\tSAMPLE")
		for _, row := range preview {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", row.Label, row.Field, rg.truncate(row.Sample))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		if missing := missingRequired(preview); len(missing) > 0 {
			fmt.Fprintf(writer, "\nRequired fields not mapped: %s\n", strings.Join(missing, ", "))
		}
		return nil

	case FormatJSON:
		encoder := json.NewEncoder(writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(map[string]interface{}{
			"columns":          preview,
			"missing_required": missingRequired(preview),
		})

	case FormatCSV:
		w := csv.NewWriter(writer)
		w.Comma = rg.config.CSVDelimiter
		if rg.config.CSVHeaders {
			if err := w.Write([]string{"Column", "Field", "Sample"}); err != nil {
				return fmt.Errorf("failed to write CSV headers: %w", err)
			}
		}
		for _, row := range preview {
			if err := w.Write([]string{row.Label, row.Field.String(), row.Sample}); err != nil {
				return fmt.Errorf("failed to write mapping record: %w", err)
			}
		}
		w.Flush()
		return w.Error()

	case FormatMarkdown:
		var b strings.Builder
		b.WriteString("| Column | Field | Sample |\n|---|---|---|\n")
		for _, row := range preview {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", escapeCell(row.Label), row.Field, escapeCell(rg.truncate(row.Sample)))
		}
		if missing := missingRequired(preview); len(missing) > 0 {
			fmt.Fprintf(&b, "\n**Required fields not mapped:** %s\n", strings.Join(missing, ", "))
		}
		return rg.writeMarkdown(b.String(), writer)

	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

// generateConsoleReport generates a human-readable console report
func (rg *ReportGenerator) generateConsoleReport(result *models.ImportResult, writer io.Writer) error {
	fmt.Fprintf(writer, "IMPORT REPORT\n")
	fmt.Fprintf(writer, "Rows read: %d\n\n", result.TotalRows)

	fmt.Fprintf(writer, "=== SUMMARY ===\n")
	fmt.Fprintf(writer, "%s\n", result.Summary())
	if n := result.AmbiguousConflicts(); n > 0 {
		fmt.Fprintf(writer, "Ambiguous duplicates: %d\n", n)
	}
	fmt.Fprintf(writer, "\n")

	if rg.config.IncludeInserted && len(result.Inserted) > 0 {
		fmt.Fprintf(writer, "=== IMPORTED TRADES ===\n")
		if err := rg.printTrades(result.Inserted, writer); err != nil {
			return err
		}
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeConflicts && len(result.Conflicts) > 0 {
		fmt.Fprintf(writer, "=== DUPLICATES OF STORED TRADES ===\n")
		if err := rg.printConflicts(result.Conflicts, writer); err != nil {
			return err
		}
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeSkipped && len(result.Skipped) > 0 {
		fmt.Fprintf(writer, "=== UNUSABLE ROWS ===\n")
		for _, i := range rg.limit(len(result.Skipped)) {
			fmt.Fprintf(writer, "  - %s\n", result.Skipped[i])
		}
		rg.printOverflow(len(result.Skipped), writer)
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeWarnings && len(result.Warnings) > 0 {
		fmt.Fprintf(writer, "=== WARNINGS ===\n")
		for _, warning := range result.Warnings {
			fmt.Fprintf(writer, "  ! %s\n", warning)
		}
	}

	return nil
}

func (rg *ReportGenerator) printTrades(trades []*models.CanonicalTrade, writer io.Writer) error {
	tw := tabwriter.NewWriter(writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  ID\tSYMBOL\tDATE\tSIDE\tENTRY\tEXIT\tSTATUS")
	for _, i := range rg.limit(len(trades)) {
		t := trades[i]
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Symbol, t.Date, t.Side, t.EntryPrice, nullString(t.ExitPrice), t.Status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	rg.printOverflow(len(trades), writer)
	return nil
}

func (rg *ReportGenerator) printConflicts(conflicts []models.ConflictPair, writer io.Writer) error {
	tw := tabwriter.NewWriter(writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  SYMBOL\tDATE\tIMPORTED ENTRY\tSTORED ENTRY\tSTORED ID\tOTHER MATCHES")
	for _, i := range rg.limit(len(conflicts)) {
		c := conflicts[i]
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\t%d\n",
			c.Candidate.Symbol, c.Candidate.Date, c.Candidate.EntryPrice,
			c.Existing.EntryPrice, c.Existing.ID, c.AdditionalMatches)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	rg.printOverflow(len(conflicts), writer)
	return nil
}

// generateJSONReport generates a structured JSON report
func (rg *ReportGenerator) generateJSONReport(result *models.ImportResult, writer io.Writer) error {
	output := map[string]interface{}{
		"summary": map[string]interface{}{
			"total_rows": result.TotalRows,
			"imported":   len(result.Inserted),
			"duplicates": len(result.Conflicts),
			"ambiguous":  result.AmbiguousConflicts(),
			"unusable":   result.SkippedCount,
			"message":    result.Summary(),
		},
	}
	if rg.config.IncludeInserted {
		output["inserted"] = result.Inserted
	}
	if rg.config.IncludeConflicts {
		output["conflicts"] = result.Conflicts
	}
	if rg.config.IncludeSkipped {
		output["skipped"] = result.Skipped
	}
	if rg.config.IncludeWarnings && len(result.Warnings) > 0 {
		output["warnings"] = result.Warnings
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

// generateCSVReport writes one record per inserted trade, conflict and
// skipped row.
func (rg *ReportGenerator) generateCSVReport(result *models.ImportResult, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter
	defer csvWriter.Flush()

	if rg.config.CSVHeaders {
		headers := []string{
			"Outcome",
			"Line",
			"ID",
			"Symbol",
			"Date",
			"Side",
			"Entry_Price",
			"Exit_Price",
			"Status",
			"Stored_ID",
			"Notes",
		}
		if err := csvWriter.Write(headers); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	if rg.config.IncludeInserted {
		for _, t := range result.Inserted {
			if err := csvWriter.Write(tradeRecord("imported", t, "", "")); err != nil {
				return fmt.Errorf("failed to write imported trade record: %w", err)
			}
		}
	}

	if rg.config.IncludeConflicts {
		for _, c := range result.Conflicts {
			note := fmt.Sprintf("stored entry %s", c.Existing.EntryPrice)
			if c.Ambiguous() {
				note += fmt.Sprintf("; %d other matches", c.AdditionalMatches)
			}
			if err := csvWriter.Write(tradeRecord("duplicate", c.Candidate, c.Existing.ID, note)); err != nil {
				return fmt.Errorf("failed to write conflict record: %w", err)
			}
		}
	}

	if rg.config.IncludeSkipped {
		for _, d := range result.Skipped {
			record := []string{"unusable", fmt.Sprintf("%d", d.Line), "", "", "", "", "", "", "", "", d.String()}
			if err := csvWriter.Write(record); err != nil {
				return fmt.Errorf("failed to write skipped row record: %w", err)
			}
		}
	}

	return nil
}

func tradeRecord(outcome string, t *models.CanonicalTrade, storedID, notes string) []string {
	return []string{
		outcome,
		"",
		t.ID,
		t.Symbol,
		t.Date,
		t.Side.String(),
		t.EntryPrice.String(),
		nullString(t.ExitPrice),
		t.Status.String(),
		storedID,
		notes,
	}
}

func (rg *ReportGenerator) markdownReport(result *models.ImportResult) string {
	var b strings.Builder
	b.WriteString("# Import report\n\n")
	fmt.Fprintf(&b, "**%s** (%d rows read)\n\n", result.Summary(), result.TotalRows)

	if rg.config.IncludeInserted && len(result.Inserted) > 0 {
		b.WriteString("## Imported trades\n\n| ID | Symbol | Date | Side | Entry | Exit | Status |\n|---|---|---|---|---|---|---|\n")
		for _, i := range rg.limit(len(result.Inserted)) {
			t := result.Inserted[i]
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s |\n",
				t.ID, t.Symbol, t.Date, t.Side, t.EntryPrice, nullString(t.ExitPrice), t.Status)
		}
		b.WriteString("\n")
	}

	if rg.config.IncludeConflicts && len(result.Conflicts) > 0 {
		b.WriteString("## Duplicates of stored trades\n\n| Symbol | Date | Imported entry | Stored entry | Stored ID |\n|---|---|---|---|---|\n")
		for _, i := range rg.limit(len(result.Conflicts)) {
			c := result.Conflicts[i]
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
				c.Candidate.Symbol, c.Candidate.Date, c.Candidate.EntryPrice, c.Existing.EntryPrice, c.Existing.ID)
		}
		b.WriteString("\n")
	}

	if rg.config.IncludeSkipped && len(result.Skipped) > 0 {
		b.WriteString("## Unusable rows\n\n")
		for _, i := range rg.limit(len(result.Skipped)) {
			fmt.Fprintf(&b, "- %s\n", escapeCell(result.Skipped[i].String()))
		}
		b.WriteString("\n")
	}

	if rg.config.IncludeWarnings && len(result.Warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, w := range result.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}

	return b.String()
}

// writeMarkdown writes md as is, or styled for a terminal when configured.
func (rg *ReportGenerator) writeMarkdown(md string, writer io.Writer) error {
	if !rg.config.RenderMarkdown {
		_, err := io.WriteString(writer, md)
		return err
	}

	style := rg.config.MarkdownStyle
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(rg.config.TableMaxWidth)}
	if style == "" || style == "auto" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}

	renderer, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	out, err := renderer.Render(md)
	if err != nil {
		return fmt.Errorf("failed to render markdown: %w", err)
	}

	_, err = io.WriteString(writer, out)
	return err
}

// limit returns the indexes to print for a list of n items.
func (rg *ReportGenerator) limit(n int) []int {
	if rg.config.MaxItems > 0 && n > rg.config.MaxItems {
		n = rg.config.MaxItems
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func (rg *ReportGenerator) printOverflow(n int, writer io.Writer) {
	if rg.config.MaxItems > 0 && n > rg.config.MaxItems {
		fmt.Fprintf(writer, "  ... and %d more\n", n-rg.config.MaxItems)
	}
}

func (rg *ReportGenerator) truncate(s string) string {
	width := rg.config.TableMaxWidth / 3
	if r := []rune(s); len(r) > width {
		return string(r[:width-3]) + "..."
	}
	return s
}

func missingRequired(preview []mapper.PreviewRow) []string {
	covered := make(map[models.Field]bool)
	for _, row := range preview {
		covered[row.Field] = true
	}
	var missing []string
	for _, f := range models.RequiredFields {
		if !covered[f] {
			missing = append(missing, f.String())
		}
	}
	return missing
}

func nullString(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
