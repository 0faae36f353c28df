package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tradeimport/internal/importer"
	"tradeimport/internal/mapper"
	"tradeimport/internal/matcher"
	"tradeimport/internal/models"
	"tradeimport/internal/normalizer"
	"tradeimport/internal/parsers"
	"tradeimport/internal/reporter"
	"tradeimport/internal/store"
	"tradeimport/pkg/errors"
	"tradeimport/pkg/logger"
)

// Flags for the import command
var (
	mapOverrides []string
	outputFile   string
	dryRun       bool
	showProgress bool
)

// flagKeys binds command flags to configuration keys. Binding happens for the
// command being executed only, so commands sharing a flag name do not steal
// each other's values.
var flagKeys = map[string]string{
	"profile":         "profiles",
	"quote-currency":  "quote_currency",
	"price-tolerance": "price_tolerance",
	"on-conflict":     "on_conflict",
	"store":           "store.dsn",
	"charset":         "input.charset",
	"delimiter":       "input.delimiter",
	"sheet":           "input.sheet",
	"strategy":        "defaults.strategy",
	"tag":             "defaults.tags",
	"output-format":   "report.format",
	"max-items":       "report.max_items",
	"show-imported":   "report.show_imported",
	"render-markdown": "report.render_markdown",
}

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import [flags] FILE...",
	Short: "Import trades from CSV or XLSX exports",
	Long: `Import reads one or more exports, maps their columns onto trade fields,
normalizes the values and appends every trade that is not already stored.

A row is a duplicate of a stored trade when the symbol and date are equal and
the entry prices differ by less than the price tolerance (default 0.01).
Duplicates are skipped unless --on-conflict=overwrite is given.

Examples:
  # Import a journal into the default in-memory store and show what happened
  tradeimport import journal.csv

  # Persist to SQLite and use the MetaTrader profile
  tradeimport import --store trades.db --profile mt5 history.xlsx

  # Fix an unrecognised column and preview without writing
  tradeimport import --map "Random Notes Field=notes" --dry-run journal.csv

  # JSON report to a file
  tradeimport import -f json -o report.json journal.csv`,
	Args:    cobra.MinimumNArgs(1),
	PreRunE: validateImportFlags,
	RunE:    runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	addSourceFlags(importCmd)

	importCmd.Flags().String("quote-currency", "", "quote currency appended to bare tickers (default USD)")
	importCmd.Flags().String("price-tolerance", "", "entry price tolerance for duplicates (default 0.01)")
	importCmd.Flags().String("on-conflict", "", "what to do with duplicates of stored trades: skip, overwrite")
	importCmd.Flags().String("store", "", "trade store: :memory: or a SQLite file path")
	importCmd.Flags().String("strategy", "", "strategy for rows without a strategy column")
	importCmd.Flags().StringSlice("tag", nil, "tag added to every imported trade (repeatable)")

	importCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")
	importCmd.Flags().StringP("output-format", "f", "", "output format: console, json, csv, markdown")
	importCmd.Flags().Int("max-items", 0, "maximum entries listed per report section")
	importCmd.Flags().Bool("show-imported", false, "list imported trades in console and markdown reports")
	importCmd.Flags().Bool("render-markdown", false, "style markdown reports for the terminal")

	importCmd.Flags().BoolVar(&dryRun, "dry-run", false, "detect duplicates without writing to the store")
	importCmd.Flags().BoolVar(&showProgress, "progress", false, "show progress indicators")
}

// addSourceFlags registers the flags that control how exports are read and
// mapped. They are shared by import and mapping.
func addSourceFlags(c *cobra.Command) {
	c.Flags().StringSliceP("profile", "p", nil, "column profiles to merge, in priority order (default: default)")
	c.Flags().StringArrayVarP(&mapOverrides, "map", "m", nil, "override a column mapping as label=field; field '-' unmaps (repeatable)")
	c.Flags().String("charset", "", "CSV charset: auto, utf-8, gb18030, windows-1252")
	c.Flags().String("delimiter", "", "CSV delimiter: auto, comma, semicolon, tab, pipe")
	c.Flags().String("sheet", "", "XLSX worksheet (default: first sheet)")
}

// bindCommandFlags binds the flags of the executing command to viper.
func bindCommandFlags(c *cobra.Command) error {
	for name, key := range flagKeys {
		if flag := c.Flags().Lookup(name); flag != nil {
			if err := viper.BindPFlag(key, flag); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateImportFlags(cmd *cobra.Command, args []string) error {
	for i, path := range args {
		if err := validateFileExists(path, fmt.Sprintf("input file %d", i+1)); err != nil {
			return err
		}
	}

	if _, err := mapper.ParseOverrides(mapOverrides); err != nil {
		return err
	}

	if outputFile != "" {
		dir := filepath.Dir(outputFile)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return errors.FileError(errors.CodeFileNotFound, dir, err).
					WithSuggestion("Create the output directory first")
			}
		}
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return errors.ValidationError(errors.CodeMissingField, description, filePath, fmt.Errorf("%s path cannot be empty", description))
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return errors.FileError(errors.CodeFileNotFound, filePath, err)
	}
	if err != nil {
		return errors.FileError(errors.CodeFilePermission, filePath, err)
	}

	if info.IsDir() {
		return errors.FileError(errors.CodeUnsupportedType, filePath, fmt.Errorf("%s is a directory, expected a file", description))
	}

	file, err := os.Open(filePath)
	if err != nil {
		return errors.FileError(errors.CodeFilePermission, filePath, err)
	}
	file.Close()

	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.WithComponent("cli")

	tables, err := readSources(ctx, args)
	if err != nil {
		return err
	}

	aliasTable, err := cfg.AliasTable()
	if err != nil {
		return err
	}
	overrides, err := mapper.ParseOverrides(mapOverrides)
	if err != nil {
		return err
	}
	if err := checkOverrideLabels(overrides, tables); err != nil {
		return err
	}

	coordinator, err := newCoordinator()
	if err != nil {
		return err
	}
	if showProgress {
		coordinator.AddProgressCallback(func(p importer.Progress) {
			fmt.Fprintf(os.Stderr, "\r[%d/%d] %s (%.1f%% complete)", p.Processed, p.Total, p.Step, p.Percent)
			if p.Processed == p.Total {
				fmt.Fprintln(os.Stderr)
			}
		})
	}

	policy, err := cfg.ConflictPolicy()
	if err != nil {
		return err
	}
	reportConfig, err := cfg.ReportConfig()
	if err != nil {
		return err
	}
	generator, err := reporter.NewSafeReportGenerator(reportConfig, log)
	if err != nil {
		return err
	}

	st, err := store.Open(ctx, cfg.Store.DSN)
	if err != nil {
		return err
	}
	defer st.Close()

	existing, err := st.List(ctx)
	if err != nil {
		return err
	}

	log.WithFields(logger.Fields{
		"files":    len(tables),
		"profiles": strings.Join(aliasTable.Profiles(), ","),
		"store":    cfg.Store.DSN,
		"stored":   len(existing),
		"dry_run":  dryRun,
	}).Info("Starting import")

	var failures []*errors.ImportError
	for i, table := range tables {
		session := importer.NewSession(coordinator)
		if err := session.Upload(table.SourceRows(), mapper.Map(table.Labels, aliasTable)); err != nil {
			return err
		}
		if err := session.EditMapping(applicableOverrides(overrides, table.Labels)); err != nil {
			return err
		}

		result, err := session.Validate(ctx, existing)
		if err != nil {
			if errors.HasCode(err, errors.CodeCancelled) {
				return err
			}
			failures = append(failures, errors.WrapIfNeeded(err, errors.CategoryImport, errors.CodeUnexpectedError, table.Source))
			log.WithError(err).Errorf("Import of %s failed", table.Source)
			continue
		}

		if !dryRun {
			summary, err := session.Commit(ctx, st, policy)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "%s: %d appended, %d overwritten, %d duplicates skipped\n",
				table.Source, summary.Appended, summary.Overwritten, summary.Skipped)
		}
		existing = refreshExisting(existing, result, policy)

		if err := writeReport(generator, reportConfig, result, table.Source, i, len(tables)); err != nil {
			return err
		}
	}

	if dryRun {
		fmt.Fprintln(os.Stderr, "Dry run: nothing was written to the store")
	}

	switch len(failures) {
	case 0:
		return nil
	case 1:
		return failures[0]
	default:
		return errors.NewErrorSummary(failures)
	}
}

// refreshExisting returns the stored trades as later files should see them:
// inserts appended and, under the overwrite policy, conflicting trades
// replaced by their overwritten form.
func refreshExisting(existing []*models.CanonicalTrade, result *models.ImportResult, policy importer.ConflictPolicy) []*models.CanonicalTrade {
	if policy == importer.PolicyOverwrite {
		for _, pair := range result.Conflicts {
			for i, trade := range existing {
				if trade.ID == pair.Existing.ID {
					existing[i] = importer.Overwrite(pair)
					break
				}
			}
		}
	}
	return append(existing, result.Inserted...)
}

// readSources reads every input concurrently. Any unreadable file aborts the
// import before the store is touched.
func readSources(ctx context.Context, paths []string) ([]*parsers.Table, error) {
	readConfig, err := cfg.ReadConfig()
	if err != nil {
		return nil, err
	}

	results := parsers.NewReader(readConfig).ReadFiles(ctx, paths)
	tables := make([]*parsers.Table, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			return nil, r.Err
		}
		tables = append(tables, r.Table)
	}
	return tables, nil
}

func newCoordinator() (*importer.Coordinator, error) {
	normalizerConfig, err := cfg.NormalizerConfig()
	if err != nil {
		return nil, err
	}
	matcherConfig, err := cfg.MatcherConfig()
	if err != nil {
		return nil, err
	}

	synthesizer := importer.NewSynthesizer(normalizer.NewNormalizer(normalizerConfig), cfg.ImportOptions())
	return importer.NewCoordinator(synthesizer, matcher.NewDetector(matcherConfig)), nil
}

// checkOverrideLabels fails when an override names a column that no input has.
func checkOverrideLabels(overrides map[string]string, tables []*parsers.Table) error {
	for label := range overrides {
		found := false
		for _, table := range tables {
			if hasLabel(table.Labels, label) {
				found = true
				break
			}
		}
		if !found {
			return errors.ValidationError(errors.CodeUnknownLabel, "map", label, nil).
				WithSuggestion("Run 'tradeimport mapping' to list the column labels of the input")
		}
	}
	return nil
}

// applicableOverrides keeps the overrides whose label is a column of labels.
func applicableOverrides(overrides map[string]string, labels []string) map[string]string {
	out := make(map[string]string, len(overrides))
	for label, field := range overrides {
		if hasLabel(labels, label) {
			out[label] = field
		}
	}
	return out
}

func hasLabel(labels []string, label string) bool {
	for _, l := range labels {
		if mapper.CleanLabel(l) == label {
			return true
		}
	}
	return false
}

func writeReport(generator *reporter.SafeReportGenerator, config *reporter.ReportConfig, result *models.ImportResult, source string, index, count int) error {
	if outputFile != "" {
		path := reportPath(outputFile, source, count)
		written, err := generator.WriteReportFile(result, path)
		if err != nil {
			return err
		}
		if written != path {
			fmt.Fprintf(os.Stderr, "Report written to %s\n", written)
		}
		return nil
	}

	var out io.Writer = os.Stdout
	if count > 1 && (config.Format == reporter.FormatConsole || config.Format == reporter.FormatMarkdown) {
		if index > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "File: %s\n", source)
	}
	return generator.GenerateReportSafely(result, out)
}

// reportPath returns the report file for one input. With several inputs each
// report gets the input's base name inserted before the extension.
func reportPath(output, source string, count int) string {
	if count <= 1 {
		return output
	}
	ext := filepath.Ext(output)
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	return strings.TrimSuffix(output, ext) + "." + base + ext
}
