package parsers

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"tradeimport/pkg/errors"
	"tradeimport/pkg/logger"
)

// XLSXReader reads one worksheet of an Excel workbook.
type XLSXReader struct {
	config *ReadConfig
	logger logger.Logger
}

// NewXLSXReader creates a workbook reader with the given configuration
func NewXLSXReader(config *ReadConfig) *XLSXReader {
	if config == nil {
		config = DefaultReadConfig()
	}
	return &XLSXReader{config: config, logger: logger.WithComponent("xlsx_reader")}
}

// Read loads the configured sheet, or the first one, into a table. The first
// non-empty row is the header.
func (r *XLSXReader) Read(ctx context.Context, in io.Reader, name string) (*Table, error) {
	f, err := excelize.OpenReader(in)
	if err != nil {
		return nil, errors.FileError(errors.CodeFileCorrupted, name, err).
			WithSuggestion("Ensure the file is a valid .xlsx workbook")
	}
	defer f.Close()

	sheet := r.config.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.ParseError(errors.CodeInvalidFormat, name, 0, fmt.Errorf("sheet %q: %w", sheet, err)).
			WithSuggestion(fmt.Sprintf("Available sheets: %v", f.GetSheetList()))
	}

	r.logger.WithFields(logger.Fields{
		"file":  name,
		"sheet": sheet,
		"rows":  len(rows),
	}).Debug("Loaded worksheet")

	var header []string
	var records [][]string
	var lines []int

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, errors.ImportFailure(errors.CodeCancelled, "xlsx_read", err)
		}
		if isEmptyRecord(row) {
			if header == nil || r.config.SkipEmptyRows {
				continue
			}
		}
		if header == nil {
			header = row
			continue
		}
		records = append(records, row)
		lines = append(lines, i+1)
	}

	return buildTable(name, header, records, lines)
}
