package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"tradeimport/internal/importer"
	"tradeimport/internal/mapper"
	"tradeimport/internal/matcher"
	"tradeimport/internal/normalizer"
	"tradeimport/internal/parsers"
	"tradeimport/internal/reporter"
	"tradeimport/internal/store"
	"tradeimport/pkg/errors"
	"tradeimport/pkg/logger"
)

// ProfileConfig is a user-defined column profile. Aliases are "label=field"
// pairs so that header spellings keep their case.
type ProfileConfig struct {
	Name        string   `mapstructure:"name"`
	Description string   `mapstructure:"description"`
	Aliases     []string `mapstructure:"aliases"`
}

// Config is the resolved CLI configuration: defaults, then config file,
// then TRADEIMPORT_* environment, then flags.
type Config struct {
	Profiles       []string        `mapstructure:"profiles"`
	CustomProfiles []ProfileConfig `mapstructure:"custom_profiles"`

	QuoteCurrency   string   `mapstructure:"quote_currency"`
	QuoteCurrencies []string `mapstructure:"quote_currencies"`
	PriceTolerance  string   `mapstructure:"price_tolerance"`
	OnConflict      string   `mapstructure:"on_conflict"`

	Store struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"store"`

	Input struct {
		Charset        string `mapstructure:"charset"`
		Delimiter      string `mapstructure:"delimiter"`
		Sheet          string `mapstructure:"sheet"`
		MaxConcurrency int    `mapstructure:"max_concurrency"`
	} `mapstructure:"input"`

	Defaults struct {
		Strategy string   `mapstructure:"strategy"`
		Type     string   `mapstructure:"type"`
		Tags     []string `mapstructure:"tags"`
	} `mapstructure:"defaults"`

	Report struct {
		Format         string `mapstructure:"format"`
		MaxItems       int    `mapstructure:"max_items"`
		ShowImported   bool   `mapstructure:"show_imported"`
		RenderMarkdown bool   `mapstructure:"render_markdown"`
		MarkdownStyle  string `mapstructure:"markdown_style"`
	} `mapstructure:"report"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
}

// SetDefaults registers the default value of every setting on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("profiles", []string{mapper.DefaultProfile.Name})
	v.SetDefault("quote_currency", normalizer.DefaultConfig().QuoteCurrency)
	v.SetDefault("quote_currencies", normalizer.DefaultConfig().QuoteCurrencies)
	v.SetDefault("price_tolerance", matcher.DefaultPriceTolerance.String())
	v.SetDefault("on_conflict", string(importer.PolicySkip))
	v.SetDefault("store.dsn", store.MemoryDSN)
	v.SetDefault("input.charset", parsers.CharsetAuto)
	v.SetDefault("input.delimiter", "auto")
	v.SetDefault("input.max_concurrency", parsers.DefaultReadConfig().MaxConcurrency)
	v.SetDefault("defaults.strategy", importer.DefaultStrategy)
	v.SetDefault("defaults.type", importer.DefaultType)
	v.SetDefault("report.format", string(reporter.FormatConsole))
	v.SetDefault("report.max_items", reporter.DefaultReportConfig().MaxItems)
	v.SetDefault("report.markdown_style", "auto")
	v.SetDefault("log.level", string(logger.WarnLevel))
	v.SetDefault("log.format", string(logger.TextFormat))
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "config", v.ConfigFileUsed(), err).
			WithSuggestion("Check the configuration file syntax")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every setting that can be checked without reading input.
func (c *Config) Validate() error {
	if len(c.Profiles) == 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "profiles", c.Profiles, fmt.Errorf("at least one profile is required"))
	}
	if _, err := c.NormalizerConfig(); err != nil {
		return err
	}
	if _, err := c.MatcherConfig(); err != nil {
		return err
	}
	if _, err := c.ReadConfig(); err != nil {
		return err
	}
	if _, err := c.ConflictPolicy(); err != nil {
		return err
	}
	if _, err := c.ReportConfig(); err != nil {
		return err
	}
	if _, err := c.Registry(); err != nil {
		return err
	}
	return nil
}

// Registry returns the built-in profiles plus the configured custom ones.
func (c *Config) Registry() (*mapper.Registry, error) {
	registry := mapper.NewRegistry()
	for _, pc := range c.CustomProfiles {
		if strings.TrimSpace(pc.Name) == "" {
			return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "custom_profiles.name", pc.Name, fmt.Errorf("profile name is required"))
		}
		aliases, err := mapper.ParseOverrides(pc.Aliases)
		if err != nil {
			return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "custom_profiles."+pc.Name+".aliases", pc.Aliases, err)
		}
		profile, err := mapper.ProfileFromStrings(pc.Name, pc.Description, aliases)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(profile); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// AliasTable merges the active profiles.
func (c *Config) AliasTable() (mapper.AliasTable, error) {
	registry, err := c.Registry()
	if err != nil {
		return mapper.AliasTable{}, err
	}
	table, err := registry.Table(c.Profiles...)
	if err != nil {
		if importErr, ok := errors.AsImportError(err); ok {
			return mapper.AliasTable{}, importErr.WithSuggestion(
				fmt.Sprintf("Available profiles: %s", strings.Join(registry.Names(), ", ")))
		}
		return mapper.AliasTable{}, err
	}
	return table, nil
}

// NormalizerConfig creates the value normalizer configuration
func (c *Config) NormalizerConfig() (*normalizer.Config, error) {
	config := normalizer.DefaultConfig()
	if strings.TrimSpace(c.QuoteCurrency) != "" {
		config.QuoteCurrency = strings.ToUpper(strings.TrimSpace(c.QuoteCurrency))
	}
	if len(c.QuoteCurrencies) > 0 {
		config.QuoteCurrencies = c.QuoteCurrencies
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "quote_currency", c.QuoteCurrency, err).
			WithSuggestion("Use ISO 4217 codes for quote_currency and quote_currencies")
	}
	return config, nil
}

// MatcherConfig creates the conflict detection configuration
func (c *Config) MatcherConfig() (*matcher.Config, error) {
	config := matcher.DefaultConfig()
	if strings.TrimSpace(c.PriceTolerance) != "" {
		tolerance, err := decimal.NewFromString(strings.TrimSpace(c.PriceTolerance))
		if err != nil {
			return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "price_tolerance", c.PriceTolerance, err).
				WithSuggestion("Use a decimal number such as 0.01")
		}
		config.PriceTolerance = tolerance
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "price_tolerance", c.PriceTolerance, err)
	}
	return config, nil
}

// ReadConfig creates the file reader configuration
func (c *Config) ReadConfig() (*parsers.ReadConfig, error) {
	config := parsers.DefaultReadConfig()
	if c.Input.Charset != "" {
		config.Charset = c.Input.Charset
	}
	delimiter, err := parsers.ParseDelimiter(c.Input.Delimiter)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "input.delimiter", c.Input.Delimiter, err).
			WithSuggestion("Use one of: auto, comma, semicolon, tab, pipe")
	}
	config.Delimiter = delimiter
	config.Sheet = c.Input.Sheet
	if c.Input.MaxConcurrency > 0 {
		config.MaxConcurrency = c.Input.MaxConcurrency
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "input", c.Input, err)
	}
	return config, nil
}

// ImportOptions returns the defaults applied to every synthesized trade.
func (c *Config) ImportOptions() *importer.Options {
	options := importer.DefaultOptions()
	if c.Defaults.Strategy != "" {
		options.Strategy = c.Defaults.Strategy
	}
	if c.Defaults.Type != "" {
		options.Type = c.Defaults.Type
	}
	options.Tags = append([]string(nil), c.Defaults.Tags...)
	return options
}

// ConflictPolicy parses the on_conflict setting.
func (c *Config) ConflictPolicy() (importer.ConflictPolicy, error) {
	return importer.ParseConflictPolicy(c.OnConflict)
}

// ReportConfig creates a report configuration for the configured format.
func (c *Config) ReportConfig() (*reporter.ReportConfig, error) {
	config := CreateReportConfig(c.Report.Format)
	if c.Report.MaxItems > 0 {
		config.MaxItems = c.Report.MaxItems
	}
	if c.Report.ShowImported {
		config.IncludeInserted = true
	}
	config.RenderMarkdown = c.Report.RenderMarkdown
	if c.Report.MarkdownStyle != "" {
		config.MarkdownStyle = c.Report.MarkdownStyle
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "report.format", c.Report.Format, err).
			WithSuggestion("Valid formats: console, json, csv, markdown")
	}
	return config, nil
}

// LoggerConfig creates the logger configuration; verbose forces debug.
func (c *Config) LoggerConfig(verbose bool) *logger.Config {
	config := logger.DefaultConfig()
	if verbose {
		config = logger.DebugConfig()
	} else if c.Log.Level != "" {
		config.Level = logger.Level(strings.ToLower(c.Log.Level))
	}
	config.Output = logger.StderrOutput
	if c.Log.Format != "" {
		config.Format = logger.Format(strings.ToLower(c.Log.Format))
	}
	return config
}

// CreateReportConfig creates a report configuration for the specified output format
func CreateReportConfig(format string) *reporter.ReportConfig {
	config := reporter.DefaultReportConfig()

	switch strings.ToLower(format) {
	case "", "console":
		config.Format = reporter.FormatConsole
	case "json":
		config.Format = reporter.FormatJSON
		config.IncludeInserted = true
		config.MaxItems = 0
	case "csv":
		config.Format = reporter.FormatCSV
		config.CSVHeaders = true
		config.CSVDelimiter = ','
		config.IncludeInserted = true
		config.IncludeWarnings = false
		config.MaxItems = 0
	case "markdown", "md":
		config.Format = reporter.FormatMarkdown
	default:
		config.Format = reporter.OutputFormat(format)
	}

	return config
}
