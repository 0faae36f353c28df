package mapper

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"tradeimport/internal/models"
	"tradeimport/pkg/errors"
)

// Profile is a named alias table for one export format.
type Profile struct {
	Name        string                  `json:"name" mapstructure:"name"`
	Description string                  `json:"description,omitempty" mapstructure:"description"`
	Aliases     map[string]models.Field `json:"aliases" mapstructure:"aliases"`
}

// Validate checks that every alias targets a known canonical field.
func (p *Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("profile name cannot be empty")
	}
	for label, field := range p.Aliases {
		if strings.TrimSpace(label) == "" {
			return fmt.Errorf("profile %s: alias label cannot be empty", p.Name)
		}
		if field == models.FieldUnmapped || !field.IsValid() {
			return fmt.Errorf("profile %s: alias %q targets unknown field %q", p.Name, label, string(field))
		}
	}
	return nil
}

// ProfileFromStrings builds a profile from a label -> field-name table, as
// read from configuration files.
func ProfileFromStrings(name, description string, aliases map[string]string) (*Profile, error) {
	p := &Profile{Name: name, Description: description, Aliases: make(map[string]models.Field, len(aliases))}
	for label, raw := range aliases {
		field, ok := models.ParseField(raw)
		if !ok || field == models.FieldUnmapped {
			return nil, errors.ConfigurationError(
				errors.CodeInvalidConfig,
				fmt.Sprintf("profiles.%s.aliases.%s", name, label),
				raw,
				nil,
			).WithSuggestion("alias targets must be canonical field names such as symbol, date, side or entryPrice")
		}
		p.Aliases[label] = field
	}
	return p, nil
}

// Built-in profiles. Header spellings are matched exactly.
var (
	// DefaultProfile covers English headers of generic journal exports.
	DefaultProfile = &Profile{
		Name:        "default",
		Description: "Generic English trading journal export",
		Aliases: map[string]models.Field{
			"Symbol": models.FieldSymbol, "symbol": models.FieldSymbol, "Ticker": models.FieldSymbol,
			"Instrument": models.FieldSymbol, "Pair": models.FieldSymbol, "Asset": models.FieldSymbol,

			"Date": models.FieldDate, "date": models.FieldDate, "Trade Date": models.FieldDate,
			"Open Date": models.FieldDate, "Entry Date": models.FieldDate, "Open Time": models.FieldDate,

			"Side": models.FieldSide, "side": models.FieldSide, "Direction": models.FieldSide,
			"Action": models.FieldSide, "Buy/Sell": models.FieldSide, "Position": models.FieldSide,

			"Type": models.FieldType, "type": models.FieldType, "Asset Type": models.FieldType,
			"Market": models.FieldType,

			"Entry": models.FieldEntryPrice, "entry": models.FieldEntryPrice, "Entry Price": models.FieldEntryPrice,
			"Open Price": models.FieldEntryPrice, "Open": models.FieldEntryPrice, "Price In": models.FieldEntryPrice,

			"Exit": models.FieldExitPrice, "exit": models.FieldExitPrice, "Exit Price": models.FieldExitPrice,
			"Close Price": models.FieldExitPrice, "Close": models.FieldExitPrice, "Price Out": models.FieldExitPrice,

			"Quantity": models.FieldQuantity, "qty": models.FieldQuantity, "Qty": models.FieldQuantity,
			"Size": models.FieldQuantity, "Shares": models.FieldQuantity, "Units": models.FieldQuantity,

			"Lots": models.FieldLotSize, "Lot Size": models.FieldLotSize, "Lot": models.FieldLotSize,

			"Leverage": models.FieldLeverage,

			"P&L": models.FieldPnL, "PnL": models.FieldPnL, "Profit": models.FieldPnL,
			"Net P&L": models.FieldPnL, "Profit/Loss": models.FieldPnL, "Realized P&L": models.FieldPnL,

			"P&L %": models.FieldPnLPercentage, "PnL %": models.FieldPnLPercentage,
			"Return %": models.FieldPnLPercentage, "ROI": models.FieldPnLPercentage,

			"Status": models.FieldStatus,
			"Strategy": models.FieldStrategy, "Setup": models.FieldStrategy, "Playbook": models.FieldStrategy,

			"Commission": models.FieldCommission, "Fees": models.FieldCommission, "Fee": models.FieldCommission,
			"Commissions": models.FieldCommission,

			"Swap": models.FieldSwap, "Rollover": models.FieldSwap, "Financing": models.FieldSwap,

			"Notes": models.FieldNotes, "Comment": models.FieldNotes, "Comments": models.FieldNotes,
		},
	}

	// MT5Profile covers the MetaTrader 5 position history export. The export
	// repeats the Time and Price headers for the closing leg; readers suffix
	// repeated headers with ".1".
	MT5Profile = &Profile{
		Name:        "mt5",
		Description: "MetaTrader 5 position history export",
		Aliases: map[string]models.Field{
			"Time":       models.FieldDate,
			"Symbol":     models.FieldSymbol,
			"Type":       models.FieldSide,
			"Volume":     models.FieldLotSize,
			"Price":      models.FieldEntryPrice,
			"Price.1":    models.FieldExitPrice,
			"Commission": models.FieldCommission,
			"Swap":       models.FieldSwap,
			"Profit":     models.FieldPnL,
			"Comment":    models.FieldNotes,
		},
	}

	// ChineseProfile is the bilingual alias table for Chinese broker exports.
	// Both the Chinese header and the English label some brokers print next
	// to it are recognised.
	ChineseProfile = &Profile{
		Name:        "zh",
		Description: "Bilingual Chinese/English broker export",
		Aliases: map[string]models.Field{
			"品种": models.FieldSymbol, "交易品种": models.FieldSymbol, "代码": models.FieldSymbol,
			"品种/Symbol": models.FieldSymbol, "合约": models.FieldSymbol,

			"日期": models.FieldDate, "开仓时间": models.FieldDate, "交易日期": models.FieldDate,
			"开仓时间/Open Time": models.FieldDate, "成交时间": models.FieldDate,

			"方向": models.FieldSide, "买卖": models.FieldSide, "买/卖": models.FieldSide,
			"方向/Side": models.FieldSide, "交易方向": models.FieldSide,

			"类型": models.FieldType, "品种类型": models.FieldType,

			"开仓价": models.FieldEntryPrice, "开仓价格": models.FieldEntryPrice, "入场价": models.FieldEntryPrice,
			"开仓价/Open Price": models.FieldEntryPrice, "成交价": models.FieldEntryPrice,

			"平仓价": models.FieldExitPrice, "平仓价格": models.FieldExitPrice, "出场价": models.FieldExitPrice,
			"平仓价/Close Price": models.FieldExitPrice,

			"数量": models.FieldQuantity, "成交量": models.FieldQuantity, "股数": models.FieldQuantity,

			"手数": models.FieldLotSize, "手数/Lots": models.FieldLotSize,

			"杠杆": models.FieldLeverage, "杠杆倍数": models.FieldLeverage,

			"盈亏": models.FieldPnL, "盈亏/Profit": models.FieldPnL, "平仓盈亏": models.FieldPnL,
			"净盈亏": models.FieldPnL,

			"盈亏比例": models.FieldPnLPercentage, "收益率": models.FieldPnLPercentage,

			"状态": models.FieldStatus,
			"策略": models.FieldStrategy,

			"手续费": models.FieldCommission, "佣金": models.FieldCommission, "手续费/Commission": models.FieldCommission,

			"库存费": models.FieldSwap, "隔夜利息": models.FieldSwap, "库存费/Swap": models.FieldSwap,

			"备注": models.FieldNotes, "注释": models.FieldNotes, "备注/Comment": models.FieldNotes,
		},
	}
)

// Registry holds named profiles. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

// NewRegistry creates a registry preloaded with the built-in profiles.
func NewRegistry() *Registry {
	r := &Registry{profiles: make(map[string]*Profile)}
	for _, p := range []*Profile{DefaultProfile, MT5Profile, ChineseProfile} {
		r.profiles[p.Name] = p
	}
	return r
}

// Register adds or replaces a profile after validating it.
func (r *Registry) Register(p *Profile) error {
	if err := p.Validate(); err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "profiles", p.Name, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[strings.ToLower(p.Name)] = p
	return nil
}

// Get returns a profile by case-insensitive name.
func (r *Registry) Get(name string) (*Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// Names returns the registered profile names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Table merges the named profiles into one alias table. Earlier profiles win
// when two profiles alias the same label.
func (r *Registry) Table(names ...string) (AliasTable, error) {
	var profiles []*Profile
	for _, name := range names {
		p, ok := r.Get(name)
		if !ok {
			return AliasTable{}, errors.ConfigurationError(errors.CodeUnknownProfile, "profile", name, nil)
		}
		profiles = append(profiles, p)
	}
	return NewAliasTable(profiles...), nil
}
