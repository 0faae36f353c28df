package parsers

import (
	"fmt"
	"strings"
)

// Charset names accepted by ReadConfig.
const (
	CharsetAuto        = "auto"
	CharsetUTF8        = "utf-8"
	CharsetGB18030     = "gb18030"
	CharsetWindows1252 = "windows-1252"
)

// CandidateDelimiters are tried, in order, when sniffing a CSV header line.
var CandidateDelimiters = []rune{',', ';', '\t', '|'}

// ReadConfig holds configuration for reading tabular exports
type ReadConfig struct {
	// Charset of CSV input. "auto" keeps valid UTF-8 and decodes anything
	// else as GB18030.
	Charset string `json:"charset" mapstructure:"charset"`

	// Delimiter for CSV input; zero means sniff it from the header line.
	Delimiter rune `json:"delimiter" mapstructure:"delimiter"`

	// Sheet selects the XLSX worksheet; empty means the first sheet.
	Sheet string `json:"sheet" mapstructure:"sheet"`

	TrimLeadingSpace bool `json:"trim_leading_space" mapstructure:"trim_leading_space"`
	SkipEmptyRows    bool `json:"skip_empty_rows" mapstructure:"skip_empty_rows"`

	// MaxConcurrency bounds the number of files read at once by ReadFiles.
	MaxConcurrency int `json:"max_concurrency" mapstructure:"max_concurrency"`
}

// DefaultReadConfig returns a configuration with sensible defaults
func DefaultReadConfig() *ReadConfig {
	return &ReadConfig{
		Charset:          CharsetAuto,
		Delimiter:        0,
		TrimLeadingSpace: true,
		SkipEmptyRows:    true,
		MaxConcurrency:   4,
	}
}

// Validate checks if the read configuration is valid
func (c *ReadConfig) Validate() error {
	switch strings.ToLower(c.Charset) {
	case "", CharsetAuto, CharsetUTF8, "utf8", CharsetGB18030, "gbk", CharsetWindows1252, "cp1252":
	default:
		return fmt.Errorf("unsupported charset: %s", c.Charset)
	}

	if c.Delimiter != 0 {
		valid := false
		for _, d := range CandidateDelimiters {
			if c.Delimiter == d {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("unsupported delimiter: %q", c.Delimiter)
		}
	}

	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max concurrency cannot be negative, got %d", c.MaxConcurrency)
	}

	return nil
}

// ParseDelimiter converts a configured delimiter name to a rune. The empty
// string and "auto" mean sniffing.
func ParseDelimiter(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return 0, nil
	case ",", "comma":
		return ',', nil
	case ";", "semicolon":
		return ';', nil
	case "\t", "\\t", "tab":
		return '\t', nil
	case "|", "pipe":
		return '|', nil
	default:
		return 0, fmt.Errorf("unsupported delimiter: %q", s)
	}
}
