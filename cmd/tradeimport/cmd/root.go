package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tradeimport/cmd/tradeimport/config"
	"tradeimport/pkg/errors"
	"tradeimport/pkg/logger"
)

var (
	cfgFile string
	verbose bool
	version = "dev"
	commit  = "unknown"
	date    = "unknown"

	// cfg is resolved once per invocation, before any subcommand runs.
	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tradeimport",
	Short: "Import trading journal exports without duplicating stored trades",
	Long: `tradeimport reads CSV and XLSX exports from trading platforms and
spreadsheets, maps their columns onto canonical trade fields, normalizes the
values and imports the trades that are not already stored.

Examples:
  tradeimport import journal.csv
  tradeimport import --profile mt5 --store trades.db history.xlsx
  tradeimport import --map "Random Notes Field=notes" --dry-run journal.csv
  tradeimport mapping --profile zh 交易记录.csv
  tradeimport profiles`,
	Version:           getVersionString(),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		return NewCLIErrorHandler().HandleError(err)
	}
	return 0
}

func init() {
	cobra.OnInitialize(initConfig)
	config.SetDefaults(viper.GetViper())

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress log output")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text, json")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig reads in a .env file, the config file and ENV variables.
func initConfig() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: could not read .env file: %s\n", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if env := os.Getenv("TRADEIMPORT_CONFIG"); env != "" {
		viper.SetConfigFile(env)
	}

	viper.SetEnvPrefix("TRADEIMPORT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

// loadConfig reads the config file if one was named, resolves the settings
// and installs the global logger.
func loadConfig(cmd *cobra.Command, args []string) error {
	if err := bindCommandFlags(cmd); err != nil {
		return errors.InternalError(errors.CodeUnexpectedError, "bind_flags", err)
	}

	if viper.ConfigFileUsed() != "" {
		if err := viper.ReadInConfig(); err != nil {
			return errors.ConfigurationError(errors.CodeInvalidConfig, "config", viper.ConfigFileUsed(), err).
				WithSuggestion("Check that the config file exists and is valid YAML, JSON or TOML")
		}
	}

	loaded, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	cfg = loaded

	log, err := newCLILogger(cfg, viper.GetBool("verbose"), viper.GetBool("quiet"))
	if err != nil {
		return err
	}
	logger.SetGlobalLogger(log)

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debugf("Using config file %s", used)
	}
	return nil
}

// newCLILogger builds the process logger. Quiet wins over verbose.
func newCLILogger(c *config.Config, verbose, quiet bool) (logger.Logger, error) {
	if quiet {
		return logger.Discard(), nil
	}
	log, err := logger.NewLogger(c.LoggerConfig(verbose))
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "log", c.Log, err).
			WithSuggestion("Valid log levels: debug, info, warn, error; formats: text, json")
	}
	return log, nil
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
