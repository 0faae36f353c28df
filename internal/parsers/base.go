// Package parsers reads trade exports into labelled tables.
//
// Broker and journal exports arrive as CSV or XLSX files with whatever
// headers, delimiters and encodings the exporting tool chose. The readers in
// this package only deal with file structure: they find the header row,
// decode the text and hand back raw cells. Interpreting the cells is left to
// the mapper and normalizer packages.
//
// Handled variations:
//   - UTF-8 with or without a byte-order mark, GB18030 and Windows-1252
//   - comma, semicolon, tab and pipe delimiters, sniffed from the header
//   - blank lines, ragged rows and repeated header labels
//   - XLSX workbooks, first or named sheet
//
// Example usage:
//
//	reader := parsers.NewReader(parsers.DefaultReadConfig())
//	table, err := reader.ReadFile(ctx, "history.csv")
//	rows := table.SourceRows()
package parsers

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"

	"tradeimport/internal/models"
	"tradeimport/pkg/errors"
	"tradeimport/pkg/logger"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Table is a decoded export: header labels plus raw data rows.
type Table struct {
	Source string
	Labels []string
	Rows   [][]string
	// Lines holds the 1-based source line (or sheet row) of each data row.
	Lines []int
}

// SourceRows pairs every data row with the labels.
func (t *Table) SourceRows() []models.SourceRow {
	rows := make([]models.SourceRow, len(t.Rows))
	for i, cells := range t.Rows {
		line := i + 2
		if i < len(t.Lines) {
			line = t.Lines[i]
		}
		rows[i] = models.NewSourceRow(line, t.Labels, cells)
	}
	return rows
}

// CSVReader decodes delimited text exports.
type CSVReader struct {
	config *ReadConfig
	logger logger.Logger
}

// NewCSVReader creates a CSV reader with the given configuration
func NewCSVReader(config *ReadConfig) *CSVReader {
	if config == nil {
		config = DefaultReadConfig()
	}

	log := logger.WithComponent("csv_reader")
	log.WithFields(logger.Fields{
		"charset":   config.Charset,
		"delimiter": delimiterName(config.Delimiter),
	}).Debug("Created CSV reader")

	return &CSVReader{config: config, logger: log}
}

// Read decodes the whole input into a table. name is used in errors only.
func (r *CSVReader) Read(ctx context.Context, in io.Reader, name string) (*Table, error) {
	raw, err := io.ReadAll(in)
	if err != nil {
		return nil, errors.FileError(errors.CodeFileCorrupted, name, err)
	}

	text, charset, err := decode(raw, r.config.Charset)
	if err != nil {
		return nil, errors.ParseError(errors.CodeEncodingError, name, 0, err).
			WithSuggestion("Set --charset to the encoding the file was saved with")
	}

	delimiter := r.config.Delimiter
	if delimiter == 0 {
		delimiter = sniffDelimiter(text)
	}

	r.logger.WithFields(logger.Fields{
		"file":      name,
		"charset":   charset,
		"delimiter": delimiterName(delimiter),
		"bytes":     len(raw),
	}).Debug("Decoded CSV input")

	reader := csv.NewReader(bytes.NewReader(text))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = r.config.TrimLeadingSpace

	var header []string
	var records [][]string
	var lines []int

	for {
		if err := ctx.Err(); err != nil {
			return nil, errors.ImportFailure(errors.CodeCancelled, "csv_read", err)
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			line := 0
			if pe, ok := err.(*csv.ParseError); ok {
				line = pe.Line
			}
			r.logger.WithError(err).WithField("line_number", line).Warn("Failed to read CSV record")
			return nil, errors.ParseError(errors.CodeInvalidFormat, name, line, err).
				WithSuggestion("Check quoting and the delimiter used by the file")
		}
		line, _ := reader.FieldPos(0)

		if isEmptyRecord(record) {
			if header == nil || r.config.SkipEmptyRows {
				continue
			}
		}

		if header == nil {
			header = record
			continue
		}
		records = append(records, record)
		lines = append(lines, line)
	}

	return buildTable(name, header, records, lines)
}

// buildTable validates the header and normalises row widths.
func buildTable(name string, header []string, records [][]string, lines []int) (*Table, error) {
	labels := cleanHeaders(header)
	if len(labels) == 0 {
		return nil, errors.ParseError(errors.CodeNoColumns, name, 1, fmt.Errorf("no header row found")).
			WithSuggestion("The first non-empty row must contain column names")
	}
	if len(records) == 0 {
		return nil, errors.ParseError(errors.CodeNoRows, name, 0, fmt.Errorf("no data rows after the header")).
			WithSuggestion("Ensure the file contains at least one trade row")
	}

	rows := make([][]string, len(records))
	for i, record := range records {
		row := make([]string, len(labels))
		copy(row, record)
		rows[i] = row
	}

	return &Table{Source: name, Labels: labels, Rows: rows, Lines: lines}, nil
}

// cleanHeaders trims labels, strips a BOM, names blank labels "Column N" and
// suffixes repeated labels with ".1", ".2", ... Trailing blank columns are
// dropped.
func cleanHeaders(header []string) []string {
	end := len(header)
	for end > 0 && strings.TrimSpace(header[end-1]) == "" {
		end--
	}

	labels := make([]string, end)
	used := make(map[string]bool, end)
	for i := 0; i < end; i++ {
		label := strings.TrimSpace(strings.TrimPrefix(header[i], "\uFEFF"))
		if label == "" {
			label = "Column " + strconv.Itoa(i+1)
		}
		unique := label
		for n := 1; used[unique]; n++ {
			unique = label + "." + strconv.Itoa(n)
		}
		used[unique] = true
		labels[i] = unique
	}
	return labels
}

// sniffDelimiter picks the candidate delimiter occurring most often, outside
// quotes, on the first non-empty line. Ties keep the earlier candidate; no
// occurrence at all means comma.
func sniffDelimiter(text []byte) rune {
	var line []byte
	for _, l := range bytes.Split(text, []byte("\n")) {
		if len(bytes.TrimSpace(l)) > 0 {
			line = l
			break
		}
	}

	counts := make(map[rune]int, len(CandidateDelimiters))
	inQuotes := false
	for _, r := range string(line) {
		if r == '"' {
			inQuotes = !inQuotes
			continue
		}
		if !inQuotes {
			counts[r]++
		}
	}

	best, bestCount := ',', 0
	for _, d := range CandidateDelimiters {
		if counts[d] > bestCount {
			best, bestCount = d, counts[d]
		}
	}
	return best
}

// decode strips a BOM and converts the input to UTF-8.
func decode(raw []byte, charset string) ([]byte, string, error) {
	if bytes.HasPrefix(raw, utf8BOM) {
		return raw[len(utf8BOM):], CharsetUTF8, nil
	}

	var enc encoding.Encoding
	name := strings.ToLower(strings.TrimSpace(charset))
	switch name {
	case "", CharsetAuto:
		if utf8.Valid(raw) {
			return raw, CharsetUTF8, nil
		}
		enc, name = simplifiedchinese.GB18030, CharsetGB18030
	case CharsetUTF8, "utf8":
		if !utf8.Valid(raw) {
			return nil, name, fmt.Errorf("input is not valid UTF-8")
		}
		return raw, CharsetUTF8, nil
	case CharsetGB18030, "gbk":
		enc, name = simplifiedchinese.GB18030, CharsetGB18030
	case CharsetWindows1252, "cp1252":
		enc, name = charmap.Windows1252, CharsetWindows1252
	default:
		return nil, name, fmt.Errorf("unsupported charset %q", charset)
	}

	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, name, err
	}
	return out, name, nil
}

// isEmptyRecord checks if all fields in a record are empty or whitespace
func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

func delimiterName(d rune) string {
	switch d {
	case 0:
		return "auto"
	case '\t':
		return "tab"
	default:
		return string(d)
	}
}
