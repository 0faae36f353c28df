// Package errors defines the categorised error type shared by the import
// pipeline, the file readers, the trade store and the CLI.
//
// Row-level problems (an unparsable price, a missing required field) are not
// errors in this sense: they are recorded as diagnostics on the import result.
// An ImportError is reserved for conditions that stop a whole operation, such
// as an unreadable file, a file without rows, an invalid configuration or a
// failing store.
package errors

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryFile          ErrorCategory = "file"
	CategoryParse         ErrorCategory = "parse"
	CategoryValidation    ErrorCategory = "validation"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryImport        ErrorCategory = "import"
	CategoryStore         ErrorCategory = "store"
	CategoryInternal      ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// File errors
	CodeFileNotFound    ErrorCode = "file_not_found"
	CodeFilePermission  ErrorCode = "file_permission"
	CodeFileCorrupted   ErrorCode = "file_corrupted"
	CodeUnsupportedType ErrorCode = "unsupported_type"

	// Parse errors
	CodeInvalidFormat ErrorCode = "invalid_format"
	CodeNoColumns     ErrorCode = "no_columns"
	CodeNoRows        ErrorCode = "no_rows"
	CodeEncodingError ErrorCode = "encoding_error"

	// Validation errors
	CodeInvalidField ErrorCode = "invalid_field"
	CodeUnknownLabel ErrorCode = "unknown_label"
	CodeMissingField ErrorCode = "missing_field"
	CodeInvalidStage ErrorCode = "invalid_stage"

	// Configuration errors
	CodeInvalidConfig ErrorCode = "invalid_config"
	CodeUnknownProfile ErrorCode = "unknown_profile"

	// Import errors
	CodeEmptySource ErrorCode = "empty_source"
	CodeCancelled   ErrorCode = "cancelled"

	// Store errors
	CodeStoreUnavailable ErrorCode = "store_unavailable"
	CodeStoreWrite       ErrorCode = "store_write"
	CodeStoreRead        ErrorCode = "store_read"
	CodeRecordNotFound   ErrorCode = "record_not_found"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// ImportError is the base error type for all application errors
type ImportError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *ImportError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *ImportError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns an appropriate exit code for the error
func (e *ImportError) GetExitCode() int {
	switch e.Category {
	case CategoryFile:
		return 2
	case CategoryParse, CategoryValidation:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryImport, CategoryInternal:
		return 5
	case CategoryStore:
		return 6
	default:
		return 1
	}
}

// WithContext adds context information to the error
func (e *ImportError) WithContext(key string, value interface{}) *ImportError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *ImportError) WithSuggestion(suggestion string) *ImportError {
	e.Suggestion = suggestion
	return e
}

// New creates a new ImportError
func New(category ErrorCategory, code ErrorCode, message string) *ImportError {
	return &ImportError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with ImportError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *ImportError {
	if err == nil {
		return nil
	}

	return &ImportError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

func build(category ErrorCategory, code ErrorCode, message string, err error) *ImportError {
	if err != nil {
		return Wrap(err, category, code, message)
	}
	return New(category, code, message)
}

// FileError creates a file-related error
func FileError(code ErrorCode, path string, err error) *ImportError {
	var message, suggestion string

	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("file not found: %s", path)
		suggestion = "check if the file path is correct and the file exists"
	case CodeFilePermission:
		message = fmt.Sprintf("permission denied accessing file: %s", path)
		suggestion = "check file permissions and ensure you have read access"
	case CodeFileCorrupted:
		message = fmt.Sprintf("file could not be read: %s", path)
		suggestion = "open the file in its source application and export it again"
	case CodeUnsupportedType:
		message = fmt.Sprintf("unsupported file type: %s", path)
		suggestion = "export the journal as .csv or .xlsx"
	default:
		message = fmt.Sprintf("file error: %s", path)
		suggestion = "check the file and try again"
	}

	return build(CategoryFile, code, message, err).
		WithSuggestion(suggestion).
		WithContext("file_path", path)
}

// ParseError creates a structural parsing error for a whole source file.
func ParseError(code ErrorCode, file string, line int, err error) *ImportError {
	var message, suggestion string

	switch code {
	case CodeInvalidFormat:
		message = fmt.Sprintf("invalid format in file %s at line %d", file, line)
		suggestion = "check that the file is a well-formed CSV or spreadsheet"
	case CodeNoColumns:
		message = fmt.Sprintf("no header columns found in file %s", file)
		suggestion = "the first non-empty row must contain the column labels"
	case CodeNoRows:
		message = fmt.Sprintf("no data rows found in file %s", file)
		suggestion = "the file must contain at least one row below the header"
	case CodeEncodingError:
		message = fmt.Sprintf("encoding error in file %s at line %d", file, line)
		suggestion = "save the file as UTF-8 or set the charset option"
	default:
		message = fmt.Sprintf("parse error in file %s at line %d", file, line)
		suggestion = "check the file format and data integrity"
	}

	return build(CategoryParse, code, message, err).
		WithSuggestion(suggestion).
		WithContext("file", file).
		WithContext("line", line)
}

// ValidationError creates a validation-related error
func ValidationError(code ErrorCode, field string, value interface{}, err error) *ImportError {
	var message, suggestion string

	switch code {
	case CodeInvalidField:
		message = fmt.Sprintf("unknown canonical field '%s': %v", field, value)
		suggestion = "use one of: symbol, date, side, type, entryPrice, exitPrice, quantity, lotSize, leverage, pnl, pnlPercentage, status, strategy, commission, swap, notes"
	case CodeUnknownLabel:
		message = fmt.Sprintf("column '%s' does not exist in the source file", field)
		suggestion = "run the mapping command to list the available column labels"
	case CodeMissingField:
		message = fmt.Sprintf("required field '%s' is missing or empty", field)
		suggestion = "provide a value for this required field"
	case CodeInvalidStage:
		message = fmt.Sprintf("invalid import stage transition '%s': %v", field, value)
		suggestion = "follow upload, preview, mapping, validating, committing, done"
	default:
		message = fmt.Sprintf("validation error in field '%s': %v", field, value)
		suggestion = "check the field value and format"
	}

	return build(CategoryValidation, code, message, err).
		WithSuggestion(suggestion).
		WithContext("field", field).
		WithContext("value", value)
}

// ConfigurationError creates a configuration-related error
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *ImportError {
	var message, suggestion string

	switch code {
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
		suggestion = "check the configuration documentation for valid values"
	case CodeUnknownProfile:
		message = fmt.Sprintf("unknown alias profile '%v'", value)
		suggestion = "run 'tradeimport profiles' to list the available profiles"
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
		suggestion = "check your configuration and try again"
	}

	return build(CategoryConfiguration, code, message, err).
		WithSuggestion(suggestion).
		WithContext("setting", setting).
		WithContext("value", value)
}

// ImportFailure creates an error that aborts a whole import batch.
func ImportFailure(code ErrorCode, operation string, err error) *ImportError {
	var message, suggestion string

	switch code {
	case CodeEmptySource:
		message = fmt.Sprintf("nothing to import during %s", operation)
		suggestion = "the source must contain at least one column and one row"
	case CodeCancelled:
		message = fmt.Sprintf("%s was cancelled", operation)
		suggestion = "run the import again; no records were written"
	default:
		message = fmt.Sprintf("import error during %s", operation)
		suggestion = "review the data and configuration"
	}

	return build(CategoryImport, code, message, err).
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// StoreError creates a persistence-related error
func StoreError(code ErrorCode, operation string, err error) *ImportError {
	var message, suggestion string

	switch code {
	case CodeStoreUnavailable:
		message = fmt.Sprintf("trade store unavailable during %s", operation)
		suggestion = "check the store DSN and that the database file is writable"
	case CodeStoreWrite:
		message = fmt.Sprintf("failed to write trades during %s", operation)
		suggestion = "check disk space and database permissions"
	case CodeStoreRead:
		message = fmt.Sprintf("failed to read trades during %s", operation)
		suggestion = "the database may be corrupted; try a backup copy"
	case CodeRecordNotFound:
		message = fmt.Sprintf("trade not found during %s", operation)
		suggestion = "the trade may have been deleted; reload and retry"
	default:
		message = fmt.Sprintf("store error during %s", operation)
		suggestion = "check the store configuration"
	}

	return build(CategoryStore, code, message, err).
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// InternalError creates an internal error
func InternalError(code ErrorCode, operation string, err error) *ImportError {
	message := fmt.Sprintf("internal error during %s", operation)
	suggestion := "try again or report the problem with the error details"
	if code == CodeUnexpectedError {
		message = fmt.Sprintf("unexpected error during %s", operation)
		suggestion = "this is likely a bug - please report it with the error details"
	}

	return build(CategoryInternal, code, message, err).
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// ErrorSummary provides a summary of multiple errors
type ErrorSummary struct {
	Total      int                   `json:"total"`
	ByCategory map[ErrorCategory]int `json:"by_category"`
	ByCode     map[ErrorCode]int     `json:"by_code"`
	Errors     []*ImportError        `json:"errors"`
}

// NewErrorSummary creates a new error summary
func NewErrorSummary(errs []*ImportError) *ErrorSummary {
	summary := &ErrorSummary{
		Total:      len(errs),
		ByCategory: make(map[ErrorCategory]int),
		ByCode:     make(map[ErrorCode]int),
		Errors:     errs,
	}
	for _, err := range errs {
		summary.ByCategory[err.Category]++
		summary.ByCode[err.Code]++
	}
	return summary
}

// Error returns a formatted error message for the summary
func (es *ErrorSummary) Error() string {
	if es.Total == 0 {
		return "no errors"
	}
	if es.Total == 1 {
		return es.Errors[0].Error()
	}

	var categories []string
	for category, count := range es.ByCategory {
		categories = append(categories, fmt.Sprintf("%s: %d", category, count))
	}
	sort.Strings(categories)

	return fmt.Sprintf("%d errors occurred (%s)", es.Total, strings.Join(categories, ", "))
}

// GetExitCode returns the highest priority exit code from all errors
func (es *ErrorSummary) GetExitCode() int {
	if es.Total == 0 {
		return 0
	}

	maxCode := 1
	for _, err := range es.Errors {
		if code := err.GetExitCode(); code > maxCode {
			maxCode = code
		}
	}
	return maxCode
}

// AsImportError extracts an ImportError from an error chain
func AsImportError(err error) (*ImportError, bool) {
	var importErr *ImportError
	if errors.As(err, &importErr) {
		return importErr, true
	}
	return nil, false
}

// HasCode reports whether err carries an ImportError with the given code.
func HasCode(err error, code ErrorCode) bool {
	importErr, ok := AsImportError(err)
	return ok && importErr.Code == code
}

// WrapIfNeeded wraps an error if it's not already an ImportError
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *ImportError {
	if err == nil {
		return nil
	}
	if importErr, ok := AsImportError(err); ok {
		return importErr
	}
	return Wrap(err, category, code, message)
}
