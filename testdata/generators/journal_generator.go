package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// JournalGenerator writes synthetic trading journal exports for manual and
// load testing of the importer.
type JournalGenerator struct {
	Count          int
	StartDate      time.Time
	Layout         string
	DuplicateRatio float64
	InvalidRatio   float64
	rng            *rand.Rand
}

// TradeTemplate is one generated journal line before formatting.
type TradeTemplate struct {
	Date     time.Time
	Symbol   string
	Long     bool
	Entry    decimal.Decimal
	Exit     decimal.Decimal
	Quantity decimal.Decimal
	Notes    string
	Invalid  bool
}

type instrument struct {
	symbol string
	price  float64
	places int32
}

var instruments = []instrument{
	{"EURUSD", 1.09, 5},
	{"GBPUSD", 1.27, 5},
	{"USDJPY", 148.2, 3},
	{"XAUUSD", 2030, 2},
	{"AUDUSD", 0.66, 5},
	{"BTCUSD", 42000, 1},
}

// headers per layout, in column order: date, symbol, side, entry, exit,
// quantity, notes.
var layouts = map[string][]string{
	"default": {"Date", "Symbol", "Side", "Entry Price", "Exit Price", "Quantity", "Notes"},
	"mt5":     {"Time", "Symbol", "Type", "Price", "Price", "Volume", "Comment"},
	"zh":      {"日期", "品种", "方向", "开仓价", "平仓价", "数量", "备注"},
}

func main() {
	var (
		output         = flag.String("output", "generated_journal.csv", "Output file path (.csv or .xlsx)")
		count          = flag.Int("count", 1000, "Number of trades to generate")
		startDate      = flag.String("start-date", "2024-01-01", "First trade date (YYYY-MM-DD)")
		layout         = flag.String("layout", "default", "Header layout: default, mt5, zh")
		charset        = flag.String("charset", "utf-8", "CSV charset: utf-8, gb18030")
		duplicateRatio = flag.Float64("duplicate-ratio", 0.05, "Share of rows repeated with a sub-tolerance price jitter")
		invalidRatio   = flag.Float64("invalid-ratio", 0.02, "Share of rows missing a required value")
		seed           = flag.Int64("seed", time.Now().UnixNano(), "Random seed for reproducible generation")
	)
	flag.Parse()

	start, err := time.Parse("2006-01-02", *startDate)
	if err != nil {
		log.Fatalf("Invalid start date: %v", err)
	}
	if _, ok := layouts[*layout]; !ok {
		log.Fatalf("Unknown layout: %s", *layout)
	}

	generator := &JournalGenerator{
		Count:          *count,
		StartDate:      start,
		Layout:         *layout,
		DuplicateRatio: *duplicateRatio,
		InvalidRatio:   *invalidRatio,
		rng:            rand.New(rand.NewSource(*seed)),
	}

	trades := generator.Generate()
	rows := generator.Rows(trades)

	switch strings.ToLower(filepath.Ext(*output)) {
	case ".xlsx":
		err = writeXLSX(*output, rows)
	default:
		err = writeCSV(*output, rows, *charset)
	}
	if err != nil {
		log.Fatalf("Failed to write %s: %v", *output, err)
	}

	fmt.Printf("Generated %d rows (%s layout, seed %d) in %s\n", len(rows)-1, *layout, *seed, *output)
}

// Generate produces Count trades plus the configured share of near-duplicates.
func (g *JournalGenerator) Generate() []TradeTemplate {
	trades := make([]TradeTemplate, 0, g.Count)
	for i := 0; i < g.Count; i++ {
		inst := instruments[g.rng.Intn(len(instruments))]
		entry := decimal.NewFromFloat(inst.price * (0.95 + g.rng.Float64()*0.1)).Round(inst.places)
		move := entry.Mul(decimal.NewFromFloat((g.rng.Float64() - 0.5) * 0.02)).Round(inst.places)

		t := TradeTemplate{
			Date:     g.StartDate.AddDate(0, 0, i/10),
			Symbol:   inst.symbol,
			Long:     g.rng.Intn(2) == 0,
			Entry:    entry,
			Exit:     entry.Add(move),
			Quantity: decimal.NewFromInt(int64(1 + g.rng.Intn(10))),
			Notes:    fmt.Sprintf("generated trade %d", i+1),
			Invalid:  g.rng.Float64() < g.InvalidRatio,
		}
		trades = append(trades, t)

		if g.rng.Float64() < g.DuplicateRatio {
			dup := t
			dup.Entry = t.Entry.Add(decimal.New(int64(g.rng.Intn(9)), -3))
			dup.Notes = fmt.Sprintf("near-duplicate of trade %d", i+1)
			dup.Invalid = false
			trades = append(trades, dup)
		}
	}
	return trades
}

// Rows formats trades for the layout, header row first.
func (g *JournalGenerator) Rows(trades []TradeTemplate) [][]string {
	rows := [][]string{layouts[g.Layout]}
	for _, t := range trades {
		rows = append(rows, g.format(t))
	}
	return rows
}

func (g *JournalGenerator) format(t TradeTemplate) []string {
	var date, side string
	switch g.Layout {
	case "mt5":
		date = t.Date.Add(9 * time.Hour).Format("2006.01.02 15:04:05")
		side = map[bool]string{true: "buy", false: "sell"}[t.Long]
	case "zh":
		date = t.Date.Format("2006/01/02")
		side = map[bool]string{true: "买入", false: "卖出"}[t.Long]
	default:
		date = t.Date.Format("02/01/2006")
		side = map[bool]string{true: "Buy", false: "Sell"}[t.Long]
	}

	symbol := t.Symbol
	if g.Layout == "default" && g.rng.Intn(4) == 0 {
		symbol = strings.ToLower(symbol[:3] + "/" + symbol[3:])
	}
	if t.Invalid {
		symbol = ""
	}

	return []string{date, symbol, side, t.Entry.String(), t.Exit.String(), t.Quantity.String(), t.Notes}
}

func writeCSV(path string, rows [][]string, charset string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	var out io.Writer = file
	switch strings.ToLower(charset) {
	case "utf-8", "utf8", "":
	case "gb18030", "gbk":
		out = transform.NewWriter(file, simplifiedchinese.GB18030.NewEncoder())
	default:
		return fmt.Errorf("unsupported charset: %s", charset)
	}

	writer := csv.NewWriter(out)
	if err := writer.WriteAll(rows); err != nil {
		return err
	}
	if tw, ok := out.(*transform.Writer); ok {
		if err := tw.Close(); err != nil {
			return err
		}
	}
	return file.Sync()
}

func writeXLSX(path string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Trades"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}

	return f.SaveAs(path)
}
