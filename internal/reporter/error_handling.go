package reporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"tradeimport/internal/models"
	"tradeimport/pkg/errors"
	"tradeimport/pkg/logger"
)

// SafeReportGenerator wraps ReportGenerator with input checks, logging and
// fallbacks for failed formats or unwritable outputs.
type SafeReportGenerator struct {
	*ReportGenerator
	logger logger.Logger
}

// NewSafeReportGenerator creates a new safe report generator with error handling
func NewSafeReportGenerator(config *ReportConfig, log logger.Logger) (*SafeReportGenerator, error) {
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	generator, err := NewReportGenerator(config)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "report_config", config, err).
			WithSuggestion("Check the report format and width settings")
	}

	return &SafeReportGenerator{
		ReportGenerator: generator,
		logger:          log.WithComponent("reporter"),
	}, nil
}

// GenerateReportSafely writes the report, falling back to the console
// format when a structured format fails.
func (srg *SafeReportGenerator) GenerateReportSafely(result *models.ImportResult, writer io.Writer) error {
	srg.logger.WithFields(logger.Fields{
		"format": srg.config.Format,
		"output": getWriterDescription(writer),
	}).Debug("Starting report generation")

	if err := srg.validateInputs(result, writer); err != nil {
		srg.logger.WithError(err).Error("Report generation failed: input validation")
		return err
	}

	err := srg.GenerateReport(result, writer)
	if err == nil {
		return nil
	}
	srg.logger.WithError(err).Warn("Primary report generation failed, attempting fallback")

	if srg.config.Format == FormatConsole {
		return srg.wrapGenerationError(err)
	}
	return srg.generateWithFormatFallback(result, writer, err)
}

// WriteReportFile writes the report to path. If path cannot be created the
// report goes to a backup file next to it, then to the temp directory; the
// path actually written is returned.
func (srg *SafeReportGenerator) WriteReportFile(result *models.ImportResult, path string) (string, error) {
	candidates := []string{path, generateBackupPath(path), filepath.Join(os.TempDir(), filepath.Base(generateBackupPath(path)))}

	var firstErr error
	for _, candidate := range candidates {
		file, err := os.Create(candidate)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			srg.logger.WithError(err).WithField("file", candidate).Warn("Cannot create report file")
			continue
		}

		genErr := srg.GenerateReportSafely(result, file)
		closeErr := file.Close()
		if genErr != nil {
			return candidate, genErr
		}
		if closeErr != nil {
			return candidate, errors.FileError(errors.CodeFilePermission, candidate, closeErr)
		}

		if candidate != path {
			srg.logger.WithFields(logger.Fields{
				"original_file": path,
				"backup_file":   candidate,
			}).Warn("Report saved to backup location")
		}
		return candidate, nil
	}

	code := errors.CodeFilePermission
	if isSpaceError(firstErr) {
		code = errors.CodeFileCorrupted
	}
	return "", errors.FileError(code, path, firstErr).
		WithSuggestion("Check the output directory exists and is writable")
}

func (srg *SafeReportGenerator) validateInputs(result *models.ImportResult, writer io.Writer) error {
	if result == nil {
		return errors.ValidationError(errors.CodeMissingField, "result", nil, nil).
			WithSuggestion("Run an import before generating a report")
	}
	if writer == nil {
		return errors.ValidationError(errors.CodeMissingField, "writer", nil, nil).
			WithSuggestion("Provide a valid output writer")
	}
	return nil
}

func (srg *SafeReportGenerator) generateWithFormatFallback(result *models.ImportResult, writer io.Writer, originalErr error) error {
	fallbackConfig := *srg.config
	fallbackConfig.Format = FormatConsole

	srg.logger.Infof("Attempting fallback to %s format", FormatConsole)

	fallbackGenerator, err := NewReportGenerator(&fallbackConfig)
	if err != nil {
		return srg.wrapGenerationError(originalErr)
	}

	fmt.Fprintf(writer, "NOTE: Report generated in fallback format due to error with requested format\n")
	fmt.Fprintf(writer, "Original error: %v\n\n", originalErr)

	if err := fallbackGenerator.GenerateReport(result, writer); err != nil {
		return errors.InternalError(
			errors.CodeUnexpectedError,
			"report_fallback",
			fmt.Errorf("both primary and fallback generation failed: primary=%v, fallback=%v", originalErr, err),
		)
	}
	return nil
}

func (srg *SafeReportGenerator) wrapGenerationError(err error) error {
	if importErr, ok := errors.AsImportError(err); ok {
		return importErr
	}
	return errors.InternalError(errors.CodeUnexpectedError, "report_generation", err).
		WithSuggestion("Check the output destination and report format settings")
}

func generateBackupPath(originalPath string) string {
	dir := filepath.Dir(originalPath)
	base := filepath.Base(originalPath)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)

	return filepath.Join(dir, fmt.Sprintf("%s_backup%s", name, ext))
}

func getWriterDescription(writer io.Writer) string {
	switch w := writer.(type) {
	case *os.File:
		if w.Name() != "" {
			return fmt.Sprintf("file:%s", w.Name())
		}
		return "file:unnamed"
	default:
		return fmt.Sprintf("writer:%T", writer)
	}
}

func isSpaceError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "no space left") ||
		strings.Contains(msg, "disk full") ||
		strings.Contains(msg, "device full")
}
