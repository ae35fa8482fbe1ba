// Package catalog holds the static asset reference data for the simulation:
// tradable synthetic assets, per-class fee rates and minimums, and the
// fixed-deposit tenure→rate table. Pure lookup, no state.
package catalog

import (
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/finquest/invest-engine/internal/model"
)

var (
	// ErrEmptyCatalog is returned when a catalog is constructed with no assets.
	ErrEmptyCatalog = errors.New("catalog: no assets defined")

	// ErrDuplicateAsset is returned when two assets share an id.
	ErrDuplicateAsset = errors.New("catalog: duplicate asset id")

	// FundMinimum is the minimum buy amount for fund-class assets.
	FundMinimum = decimal.NewFromInt(1000)

	// DepositMinimum is the minimum principal for a fixed deposit.
	DepositMinimum = decimal.NewFromInt(5000)

	// FixedIncomeSector is the synthetic sector attributed to deposits in
	// diversification scoring.
	FixedIncomeSector = "Fixed Income"
)

// Per-class trading fee rates, applied to the gross trade amount.
var feeRates = map[string]decimal.Decimal{
	model.ClassEquity: decimal.NewFromFloat(0.002),
	model.ClassFund:   decimal.Zero,
	model.ClassETF:    decimal.NewFromFloat(0.001),
}

// Deposit rates by tenure. 12 and 36 months are the only supported tenures.
var depositRates = map[int]decimal.Decimal{
	12: decimal.NewFromFloat(0.06),
	36: decimal.NewFromFloat(0.07),
}

// Catalog is an ordered, immutable set of assets. Order matters: the market
// engine uses the asset's ordinal for parity-based regimes.
type Catalog struct {
	assets []model.Asset
	byID   map[string]int
}

// New builds a catalog from an ordered asset list.
func New(assets []model.Asset) (*Catalog, error) {
	if len(assets) == 0 {
		return nil, ErrEmptyCatalog
	}
	byID := make(map[string]int, len(assets))
	for i, a := range assets {
		if _, dup := byID[a.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAsset, a.ID)
		}
		byID[a.ID] = i
	}
	return &Catalog{assets: assets, byID: byID}, nil
}

// Default returns the built-in synthetic asset catalog.
func Default() *Catalog {
	d := decimal.NewFromFloat
	assets := []model.Asset{
		{ID: "BLUE", Name: "BlueChip Industrials", Class: model.ClassEquity, Sector: "Industrials", BasePrice: d(240), Volatility: d(0.03)},
		{ID: "NOVA", Name: "NovaTech Systems", Class: model.ClassEquity, Sector: "Technology", BasePrice: d(850), Volatility: d(0.08)},
		{ID: "CURA", Name: "Curative Health", Class: model.ClassEquity, Sector: "Healthcare", BasePrice: d(320), Volatility: d(0.045)},
		{ID: "VOLT", Name: "Voltaic Energy", Class: model.ClassEquity, Sector: "Energy", BasePrice: d(145), Volatility: d(0.07)},
		{ID: "INDX", Name: "Total Market Index ETF", Class: model.ClassETF, Sector: "Diversified", BasePrice: d(180), Volatility: d(0.04)},
		{ID: "AURM", Name: "Gold Bullion ETF", Class: model.ClassETF, Sector: "Commodities", BasePrice: d(95), Volatility: d(0.025)},
		{ID: "GRWF", Name: "Horizon Growth Fund", Class: model.ClassFund, Sector: "Technology", BasePrice: d(52), Volatility: d(0.055)},
		{ID: "BALF", Name: "Steady Balanced Fund", Class: model.ClassFund, Sector: "Diversified", BasePrice: d(34), Volatility: d(0.02)},
		{ID: "FD", Name: "Fixed Deposit", Class: model.ClassFixedDeposit, Sector: FixedIncomeSector},
	}
	c, err := New(assets)
	if err != nil {
		panic(err) // built-in catalog is known good
	}
	return c
}

// assetDoc is the YAML shape of one catalog entry.
type assetDoc struct {
	ID           string  `yaml:"id"`
	Name         string  `yaml:"name"`
	Class        string  `yaml:"class"`
	Sector       string  `yaml:"sector"`
	BasePrice    float64 `yaml:"base_price"`
	Volatility   float64 `yaml:"volatility"`
	Rate         float64 `yaml:"rate"`
	TenureMonths int     `yaml:"tenure_months"`
}

// LoadFile reads a catalog from a YAML file: a top-level `assets` list.
// Used to swap the built-in synthetic universe without a rebuild.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var doc struct {
		Assets []assetDoc `yaml:"assets"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	assets := make([]model.Asset, 0, len(doc.Assets))
	for _, a := range doc.Assets {
		assets = append(assets, model.Asset{
			ID:           a.ID,
			Name:         a.Name,
			Class:        a.Class,
			Sector:       a.Sector,
			BasePrice:    decimal.NewFromFloat(a.BasePrice),
			Volatility:   decimal.NewFromFloat(a.Volatility),
			Rate:         decimal.NewFromFloat(a.Rate),
			TenureMonths: a.TenureMonths,
		})
	}
	return New(assets)
}

// Get returns the asset with the given id.
func (c *Catalog) Get(id string) (model.Asset, bool) {
	i, ok := c.byID[id]
	if !ok {
		return model.Asset{}, false
	}
	return c.assets[i], true
}

// Index returns the asset's ordinal in catalog order.
func (c *Catalog) Index(id string) (int, bool) {
	i, ok := c.byID[id]
	return i, ok
}

// All returns the assets in catalog order.
func (c *Catalog) All() []model.Asset {
	out := make([]model.Asset, len(c.assets))
	copy(out, c.assets)
	return out
}

// FeeRate returns the trading fee rate for an asset class. Unknown classes
// (including fixed deposits, which carry no trading fee) return zero.
func FeeRate(class string) decimal.Decimal {
	return feeRates[class]
}

// DepositRate returns the annual rate for a deposit tenure, or false when
// the tenure is unsupported.
func DepositRate(tenureMonths int) (decimal.Decimal, bool) {
	r, ok := depositRates[tenureMonths]
	return r, ok
}
