// Package market implements the synthetic market state engine: once per
// simulated month, every tradable asset's price drifts according to the
// selected regime and the asset's own volatility tier.
//
// The engine is deterministic — the same seed prices and regime sequence
// always reproduce the same price path. All monetary values use
// shopspring/decimal; prices are rounded to 2 decimal places at every
// repricing step to avoid unbounded drift across repeated operations.
package market

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/finquest/invest-engine/internal/catalog"
	"github.com/finquest/invest-engine/internal/model"
)

// ErrUnknownRegime is returned when AdvanceMonth is handed a regime outside
// bull/bear/volatile/flat.
var ErrUnknownRegime = errors.New("market: unknown regime")

// lowVolThreshold splits assets into the low/high volatility drift tiers.
var lowVolThreshold = decimal.NewFromFloat(0.05)

var one = decimal.NewFromInt(1)

// AssetChange describes one held asset's move during a monthly repricing.
// Returned only for assets the caller currently holds.
type AssetChange struct {
	AssetID      string          `json:"asset_id"`
	Name         string          `json:"name"`
	Sector       string          `json:"sector"`
	DriftPercent decimal.Decimal `json:"drift_percent"` // scaled drift, in %
	PnLDelta     decimal.Decimal `json:"pnl_delta"`     // price delta × held quantity
}

// Engine reprices assets monthly. It is stateless — market state is passed
// in, not stored.
type Engine struct {
	catalog *catalog.Catalog
}

// NewEngine creates a market engine over the given asset catalog.
func NewEngine(cat *catalog.Catalog) *Engine {
	return &Engine{catalog: cat}
}

// NewState seeds a fresh market state with each asset's base price.
// Fixed-deposit assets carry no price.
func NewState(cat *catalog.Catalog) *model.MarketState {
	prices := make(map[string]decimal.Decimal)
	for _, a := range cat.All() {
		if a.Class == model.ClassFixedDeposit {
			continue
		}
		prices[a.ID] = a.BasePrice
	}
	return &model.MarketState{Prices: prices}
}

// AdvanceMonth reprices every non-fixed-deposit asset for the given regime,
// syncs the current price of every open holding in p, and returns a change
// record for exactly the assets the portfolio currently holds.
//
// Drift per tier:
//
//	bull:     +3% low volatility, +6% high
//	bear:     −3% low volatility, −6% high
//	volatile: alternating +8%/−6% by asset index parity
//	flat:     alternating +0.5%/−0.5% by asset index parity
//
// The tier drift is then scaled by (1 + volatility): higher-volatility
// assets move proportionally more within their regime tier.
func (e *Engine) AdvanceMonth(state *model.MarketState, p *model.Portfolio, regime string) ([]AssetChange, error) {
	switch regime {
	case model.RegimeBull, model.RegimeBear, model.RegimeVolatile, model.RegimeFlat:
	default:
		return nil, ErrUnknownRegime
	}

	var changes []AssetChange
	for idx, a := range e.catalog.All() {
		if a.Class == model.ClassFixedDeposit {
			continue
		}

		oldPrice, ok := state.Prices[a.ID]
		if !ok {
			// Stale state from an older catalog: reseed from base price.
			oldPrice = a.BasePrice
		}

		drift := regimeDrift(regime, a.Volatility, idx)
		scaled := drift.Mul(one.Add(a.Volatility))
		newPrice := oldPrice.Mul(one.Add(scaled)).Round(2)
		state.Prices[a.ID] = newPrice

		h, held := p.Holdings[a.ID]
		if !held {
			continue
		}
		h.CurrentPrice = newPrice

		changes = append(changes, AssetChange{
			AssetID:      a.ID,
			Name:         a.Name,
			Sector:       a.Sector,
			DriftPercent: scaled.Mul(decimal.NewFromInt(100)).Round(2),
			PnLDelta:     newPrice.Sub(oldPrice).Mul(h.Quantity).Round(2),
		})
	}
	return changes, nil
}

// regimeDrift returns the unscaled drift fraction for one asset.
func regimeDrift(regime string, volatility decimal.Decimal, idx int) decimal.Decimal {
	d := decimal.NewFromFloat
	lowVol := volatility.LessThan(lowVolThreshold)

	switch regime {
	case model.RegimeBull:
		if lowVol {
			return d(0.03)
		}
		return d(0.06)
	case model.RegimeBear:
		if lowVol {
			return d(-0.03)
		}
		return d(-0.06)
	case model.RegimeVolatile:
		if idx%2 == 0 {
			return d(0.08)
		}
		return d(-0.06)
	case model.RegimeFlat:
		if idx%2 == 0 {
			return d(0.005)
		}
		return d(-0.005)
	}
	return decimal.Zero
}
