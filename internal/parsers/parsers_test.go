package parsers

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"

	"tradeimport/pkg/errors"
)

func createTempFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	return path
}

func TestReadConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *ReadConfig
		wantErr bool
	}{
		{"default", DefaultReadConfig(), false},
		{"gbk alias", &ReadConfig{Charset: "GBK"}, false},
		{"unknown charset", &ReadConfig{Charset: "ebcdic"}, true},
		{"semicolon", &ReadConfig{Delimiter: ';'}, false},
		{"colon", &ReadConfig{Delimiter: ':'}, true},
		{"negative concurrency", &ReadConfig{MaxConcurrency: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseDelimiter(t *testing.T) {
	tests := []struct {
		in   string
		want rune
		err  bool
	}{
		{"", 0, false},
		{"auto", 0, false},
		{";", ';', false},
		{"tab", '\t', false},
		{`\t`, '\t', false},
		{"pipe", '|', false},
		{"#", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseDelimiter(tt.in)
		if (err != nil) != tt.err || got != tt.want {
			t.Errorf("ParseDelimiter(%q) = (%q, %v), want (%q, err=%v)", tt.in, got, err, tt.want, tt.err)
		}
	}
}

func TestSniffDelimiter(t *testing.T) {
	tests := []struct {
		name string
		text string
		want rune
	}{
		{"comma", "Date,Pair,Entry\n", ','},
		{"semicolon", "Date;Pair;Entry\n1;2;3\n", ';'},
		{"tab", "Date\tPair\tEntry\n", '\t'},
		{"pipe", "Date|Pair|Entry\n", '|'},
		{"quoted commas ignored", "\"a,b,c\";\"d\";\"e\"\n", ';'},
		{"leading blank lines", "\n\nDate;Pair\n", ';'},
		{"single column", "Symbol\nEURUSD\n", ','},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sniffDelimiter([]byte(tt.text)); got != tt.want {
				t.Errorf("sniffDelimiter() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCleanHeaders(t *testing.T) {
	got := cleanHeaders([]string{"\uFEFF Time", "Price", "", "Price", "Time", " ", ""})
	want := []string{"Time", "Price", "Column 3", "Price.1", "Time.1"}

	if len(got) != len(want) {
		t.Fatalf("Expected %d labels, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("label %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestCSVReader_Read(t *testing.T) {
	content := "\xEF\xBB\xBFDate;Pair;Direction;Entry\n" +
		"15/01/2024;EUR/USD;Buy;1,0950\n" +
		";;;\n" +
		"\n" +
		"16/01/2024;GBPUSD;Sell\n"

	reader := NewCSVReader(nil)
	table, err := reader.Read(context.Background(), strings.NewReader(content), "journal.csv")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(table.Labels) != 4 || table.Labels[0] != "Date" {
		t.Errorf("Expected BOM-free labels, got %v", table.Labels)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("Expected 2 data rows (blank rows skipped), got %d", len(table.Rows))
	}
	if table.Rows[0][3] != "1,0950" {
		t.Errorf("Expected raw cell to be preserved, got %q", table.Rows[0][3])
	}
	if len(table.Rows[1]) != 4 || table.Rows[1][3] != "" {
		t.Errorf("Expected short row to be padded, got %v", table.Rows[1])
	}
	if table.Lines[1] != 5 {
		t.Errorf("Expected second row on line 5, got %d", table.Lines[1])
	}

	rows := table.SourceRows()
	if rows[0].Get("Pair") != "EUR/USD" || rows[0].Line != 2 {
		t.Errorf("Unexpected source row: %+v", rows[0])
	}
}

func TestCSVReader_Charsets(t *testing.T) {
	utf8Text := "品种,方向,开仓价\nEURUSD,买入,1.0950\n"
	gb, err := simplifiedchinese.GB18030.NewEncoder().Bytes([]byte(utf8Text))
	if err != nil {
		t.Fatalf("Failed to encode fixture: %v", err)
	}

	tests := []struct {
		name    string
		charset string
		input   []byte
		wantErr bool
	}{
		{"auto utf-8", CharsetAuto, []byte(utf8Text), false},
		{"auto gb18030", CharsetAuto, gb, false},
		{"explicit gb18030", CharsetGB18030, gb, false},
		{"utf-8 rejects gb18030", CharsetUTF8, gb, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultReadConfig()
			config.Charset = tt.charset
			table, err := NewCSVReader(config).Read(context.Background(), strings.NewReader(string(tt.input)), "zh.csv")
			if tt.wantErr {
				if !errors.HasCode(err, errors.CodeEncodingError) {
					t.Errorf("Expected encoding error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if table.Labels[0] != "品种" || table.Rows[0][1] != "买入" {
				t.Errorf("Expected decoded Chinese text, got %v / %v", table.Labels, table.Rows[0])
			}
		})
	}
}

func TestCSVReader_Windows1252(t *testing.T) {
	input := []byte("Symbol,Notes\nEURUSD,caf\xe9\n")
	config := DefaultReadConfig()
	config.Charset = CharsetWindows1252

	table, err := NewCSVReader(config).Read(context.Background(), strings.NewReader(string(input)), "latin.csv")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if table.Rows[0][1] != "café" {
		t.Errorf("Expected café, got %q", table.Rows[0][1])
	}
}

func TestCSVReader_StructuralErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		code    errors.ErrorCode
	}{
		{"empty file", "", errors.CodeNoColumns},
		{"only blank lines", "\n\n  \n", errors.CodeNoColumns},
		{"header only", "Date,Pair\n", errors.CodeNoRows},
		{"blank rows above header", ",,\n1,2,3\n", errors.CodeNoRows},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCSVReader(nil).Read(context.Background(), strings.NewReader(tt.content), "bad.csv")
			if !errors.HasCode(err, tt.code) {
				t.Errorf("Expected %s, got %v", tt.code, err)
			}
		})
	}
}

func TestCSVReader_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCSVReader(nil).Read(ctx, strings.NewReader("a,b\n1,2\n"), "x.csv")
	if !errors.HasCode(err, errors.CodeCancelled) {
		t.Errorf("Expected cancellation error, got %v", err)
	}
}

func createTestWorkbook(t *testing.T, sheet string, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		if _, err := f.NewSheet(sheet); err != nil {
			t.Fatalf("Failed to create sheet: %v", err)
		}
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("Failed to build cell name: %v", err)
		}
		row := row
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("Failed to write row: %v", err)
		}
	}

	path := filepath.Join(t.TempDir(), "journal.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("Failed to save workbook: %v", err)
	}
	return path
}

func TestXLSXReader(t *testing.T) {
	path := createTestWorkbook(t, "Sheet1", [][]interface{}{
		{},
		{"Date", "Pair", "Direction", "Entry"},
		{"2024-01-15", "EURUSD", "Buy", "1.0950"},
		{"2024-01-16", "GBPUSD", "Sell"},
	})

	table, err := NewReader(nil).ReadFile(context.Background(), path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(table.Labels) != 4 || table.Labels[1] != "Pair" {
		t.Errorf("Unexpected labels: %v", table.Labels)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(table.Rows))
	}
	if table.Rows[1][3] != "" {
		t.Errorf("Expected padded cell, got %q", table.Rows[1][3])
	}
	if table.Lines[0] != 3 {
		t.Errorf("Expected first data row on sheet row 3, got %d", table.Lines[0])
	}
}

func TestXLSXReader_NamedSheet(t *testing.T) {
	path := createTestWorkbook(t, "Trades", [][]interface{}{
		{"Symbol", "Entry"},
		{"XAUUSD", "2030.5"},
	})

	config := DefaultReadConfig()
	config.Sheet = "Trades"
	table, err := NewReader(config).ReadFile(context.Background(), path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if table.Rows[0][0] != "XAUUSD" {
		t.Errorf("Unexpected row: %v", table.Rows[0])
	}

	config.Sheet = "Missing"
	if _, err := NewReader(config).ReadFile(context.Background(), path); err == nil {
		t.Error("Expected error for missing sheet")
	}
}

func TestReader_ReadFile_Errors(t *testing.T) {
	reader := NewReader(nil)

	_, err := reader.ReadFile(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	if !errors.HasCode(err, errors.CodeFileNotFound) {
		t.Errorf("Expected file not found, got %v", err)
	}

	_, err = reader.ReadFile(context.Background(), "journal.pdf")
	if !errors.HasCode(err, errors.CodeUnsupportedType) {
		t.Errorf("Expected unsupported type, got %v", err)
	}

	bogus := createTempFile(t, "broken.xlsx", []byte("not a zip"))
	_, err = reader.ReadFile(context.Background(), bogus)
	if !errors.HasCode(err, errors.CodeFileCorrupted) {
		t.Errorf("Expected corrupted file, got %v", err)
	}
}

func TestReader_ReadFiles(t *testing.T) {
	first := createTempFile(t, "a.csv", []byte("Symbol,Entry\nEURUSD,1.09\n"))
	second := createTempFile(t, "b.tsv", []byte("Symbol\tEntry\nGBPUSD\t1.27\nUSDJPY\t148.2\n"))
	missing := filepath.Join(t.TempDir(), "c.csv")

	results := NewReader(nil).ReadFiles(context.Background(), []string{first, second, missing})
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}

	if results[0].Err != nil || len(results[0].Table.Rows) != 1 {
		t.Errorf("Unexpected first result: %+v", results[0])
	}
	if results[1].Err != nil || len(results[1].Table.Rows) != 2 {
		t.Errorf("Unexpected second result: %+v", results[1])
	}
	if results[2].Path != missing || results[2].Err == nil {
		t.Errorf("Expected error for missing file, got %+v", results[2])
	}
}
