package parsers

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"tradeimport/pkg/errors"
	"tradeimport/pkg/logger"
)

// TableReader decodes one export format.
type TableReader interface {
	Read(ctx context.Context, in io.Reader, name string) (*Table, error)
}

// Reader opens export files and dispatches on their extension.
type Reader struct {
	config *ReadConfig
	csv    TableReader
	xlsx   TableReader
	logger logger.Logger
}

// NewReader creates a file reader; a nil config uses the defaults.
func NewReader(config *ReadConfig) *Reader {
	if config == nil {
		config = DefaultReadConfig()
	}
	return &Reader{
		config: config,
		csv:    NewCSVReader(config),
		xlsx:   NewXLSXReader(config),
		logger: logger.WithComponent("file_reader"),
	}
}

// ReaderFor returns the format reader for path, by extension.
func (r *Reader) ReaderFor(path string) (TableReader, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt", ".tsv":
		return r.csv, nil
	case ".xlsx", ".xlsm":
		return r.xlsx, nil
	default:
		return nil, errors.FileError(errors.CodeUnsupportedType, path, nil).
			WithSuggestion("Supported formats: .csv, .tsv, .txt, .xlsx, .xlsm")
	}
}

// ReadFile reads one export into a table.
func (r *Reader) ReadFile(ctx context.Context, path string) (*Table, error) {
	format, err := r.ReaderFor(path)
	if err != nil {
		return nil, err
	}

	r.logger.WithField("file_path", path).Debug("Opening export file")

	file, err := os.Open(path)
	if err != nil {
		r.logger.WithError(err).WithField("file_path", path).Error("Failed to open export file")
		if os.IsNotExist(err) {
			return nil, errors.FileError(errors.CodeFileNotFound, path, err)
		}
		if os.IsPermission(err) {
			return nil, errors.FileError(errors.CodeFilePermission, path, err)
		}
		return nil, errors.FileError(errors.CodeFileCorrupted, path, err)
	}
	defer file.Close()

	table, err := format.Read(ctx, file, path)
	if err != nil {
		return nil, err
	}

	r.logger.WithFields(logger.Fields{
		"file_path": path,
		"columns":   len(table.Labels),
		"rows":      len(table.Rows),
	}).Info("Read export file")

	return table, nil
}

// FileResult is the outcome of reading one file with ReadFiles.
type FileResult struct {
	Path  string
	Table *Table
	Err   error
}

// ReadFiles reads several exports concurrently, bounded by MaxConcurrency.
// Results are returned in the order of paths.
func (r *Reader) ReadFiles(ctx context.Context, paths []string) []FileResult {
	limit := r.config.MaxConcurrency
	if limit <= 0 {
		limit = 4
	}
	semaphore := make(chan struct{}, limit)
	results := make([]FileResult, len(paths))

	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			result := FileResult{Path: path}
			if err := ctx.Err(); err != nil {
				result.Err = errors.ImportFailure(errors.CodeCancelled, fmt.Sprintf("read %s", path), err)
			} else {
				result.Table, result.Err = r.ReadFile(ctx, path)
			}
			results[i] = result
		}(i, path)
	}
	wg.Wait()

	return results
}
