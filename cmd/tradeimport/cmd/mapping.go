package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"tradeimport/internal/importer"
	"tradeimport/internal/mapper"
	"tradeimport/internal/parsers"
	"tradeimport/internal/reporter"
	"tradeimport/pkg/errors"
)

var previewRows int

// mappingCmd shows how the columns of an export would be mapped.
var mappingCmd = &cobra.Command{
	Use:   "mapping [flags] FILE",
	Short: "Preview the column mapping of an export",
	Long: `Mapping reads an export and prints, for every column, the trade field it
feeds and a sample value. Nothing is imported. Use it to find the labels to
pass to --map before running an import.

Examples:
  tradeimport mapping journal.csv
  tradeimport mapping --profile mt5,default -f json history.xlsx
  tradeimport mapping --map "Random Notes Field=notes" journal.csv`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFileExists(args[0], "input file")
	},
	RunE: runMapping,
}

func init() {
	rootCmd.AddCommand(mappingCmd)

	addSourceFlags(mappingCmd)
	mappingCmd.Flags().StringP("output-format", "f", "", "output format: console, json, csv, markdown")
	mappingCmd.Flags().IntVarP(&previewRows, "rows", "n", 5, "number of rows searched for sample values")
}

func runMapping(cmd *cobra.Command, args []string) error {
	readConfig, err := cfg.ReadConfig()
	if err != nil {
		return err
	}
	table, err := parsers.NewReader(readConfig).ReadFile(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	preview, err := previewMapping(table, mapOverrides, previewRows)
	if err != nil {
		return err
	}

	reportConfig, err := cfg.ReportConfig()
	if err != nil {
		return err
	}
	generator, err := reporter.NewReportGenerator(reportConfig)
	if err != nil {
		return err
	}
	if err := generator.GenerateMapping(preview, os.Stdout); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, errors.CodeUnexpectedError, "failed to write mapping preview")
	}
	return nil
}

// previewMapping maps a table with the configured profiles and the given
// overrides and returns the per-column preview.
func previewMapping(table *parsers.Table, overridePairs []string, rows int) ([]mapper.PreviewRow, error) {
	aliasTable, err := cfg.AliasTable()
	if err != nil {
		return nil, err
	}
	overrides, err := mapper.ParseOverrides(overridePairs)
	if err != nil {
		return nil, err
	}

	session := importer.NewSession(nil)
	if err := session.Upload(table.SourceRows(), mapper.Map(table.Labels, aliasTable)); err != nil {
		return nil, err
	}
	if len(overrides) > 0 {
		if err := session.EditMapping(overrides); err != nil {
			return nil, err
		}
	}
	return session.Preview(rows), nil
}
