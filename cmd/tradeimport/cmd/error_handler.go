package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/viper"

	"tradeimport/pkg/errors"
	"tradeimport/pkg/logger"
)

// CLIErrorHandler turns command errors into messages and exit codes
type CLIErrorHandler struct {
	logger  logger.Logger
	out     io.Writer
	verbose bool
}

// NewCLIErrorHandler creates a new CLI error handler
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		out:     os.Stderr,
		verbose: viper.GetBool("verbose"),
	}
}

// HandleError prints err and returns the process exit code
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Debug("Command failed")

	if summary, ok := err.(*errors.ErrorSummary); ok {
		return h.handleErrorSummary(summary)
	}
	if importErr, ok := errors.AsImportError(err); ok {
		return h.handleImportError(importErr)
	}
	return h.handleGenericError(err)
}

func (h *CLIErrorHandler) handleImportError(err *errors.ImportError) int {
	fmt.Fprintf(h.out, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		keys := make([]string, 0, len(err.Context))
		for key := range err.Context {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		fmt.Fprintf(h.out, "\nContext:\n")
		for _, key := range keys {
			fmt.Fprintf(h.out, "  %s: %v\n", key, err.Context[key])
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(h.out, "\nSuggestion: %s\n", err.Suggestion)
	}

	if help := getCategoryHelp(err.Category); help != "" {
		fmt.Fprintf(h.out, "\n%s\n", help)
	}

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(h.out, "\nUnderlying error: %+v\n", err.Cause)
	}

	return err.GetExitCode()
}

func (h *CLIErrorHandler) handleErrorSummary(summary *errors.ErrorSummary) int {
	fmt.Fprintf(h.out, "Error: %s\n", summary.Error())
	for i, err := range summary.Errors {
		fmt.Fprintf(h.out, "  %d. %s\n", i+1, err.Error())
		if err.Suggestion != "" {
			fmt.Fprintf(h.out, "     Suggestion: %s\n", err.Suggestion)
		}
	}
	return summary.GetExitCode()
}

// handleGenericError handles errors that are not ImportErrors, such as
// flag parsing failures reported by cobra.
func (h *CLIErrorHandler) handleGenericError(err error) int {
	if isFileNotFoundError(err) {
		fmt.Fprintf(h.out, "Error: File not found\n")
		fmt.Fprintf(h.out, "Suggestion: Check if the file path is correct and the file exists\n")
		return 2
	}

	if isPermissionError(err) {
		fmt.Fprintf(h.out, "Error: Permission denied\n")
		fmt.Fprintf(h.out, "Suggestion: Check file permissions and ensure you have read access\n")
		return 2
	}

	if isDiskFullError(err) {
		fmt.Fprintf(h.out, "Error: Insufficient disk space\n")
		fmt.Fprintf(h.out, "Suggestion: Free up disk space and try again\n")
		return 2
	}

	fmt.Fprintf(h.out, "Error: %v\n", err)
	fmt.Fprintf(h.out, "Run 'tradeimport --help' for usage.\n")
	return 1
}

// getCategoryHelp returns category-specific help text
func getCategoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryFile:
		return `File error help:
• Check if the file exists and is readable
• Supported formats are .csv, .tsv, .txt, .xlsx and .xlsm
• Ensure you have permission to read inputs and write the report`

	case errors.CategoryParse:
		return `Parse error help:
• Check that the first row holds the column headers
• Try --charset gb18030 or --charset windows-1252 for non UTF-8 CSV files
• Try --delimiter if columns are not split correctly
• Use --sheet to pick the worksheet of an XLSX workbook`

	case errors.CategoryValidation:
		return `Validation error help:
• Run 'tradeimport mapping FILE' to see the column labels and their fields
• Overrides take the form --map "Column Label=field"
• Valid fields include symbol, date, side, entryPrice, exitPrice, quantity and pnl`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and arguments
• Verify configuration file syntax if using --config
• Run 'tradeimport profiles' to list the available profiles
• Use 'tradeimport import --help' to see all available options`

	case errors.CategoryStore:
		return `Store error help:
• Check that the --store path is writable
• A store path is a SQLite database file; use :memory: for a throwaway store`

	case errors.CategoryImport:
		return `Import error help:
• Check that the export has a header row and at least one data row
• Re-run the command if it was interrupted`

	default:
		return ""
	}
}

func isFileNotFoundError(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file or directory")
}

func isPermissionError(err error) bool {
	return os.IsPermission(err) ||
		strings.Contains(err.Error(), "permission denied") ||
		strings.Contains(err.Error(), "access denied")
}

func isDiskFullError(err error) bool {
	if err == syscall.ENOSPC {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "no space left") ||
		strings.Contains(errStr, "disk full") ||
		strings.Contains(errStr, "device full")
}
