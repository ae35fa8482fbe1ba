// Package ledger implements the portfolio ledger: cash, open positions, and
// the append-only transaction log, with the buy/sell/deposit lifecycle.
//
// Every operation validates first and mutates second — a rejected operation
// leaves the portfolio untouched. Validation failures are ordinary declined
// actions returned as sentinel errors, never faults. All monetary values use
// shopspring/decimal; currency is rounded to 2 decimal places and unit
// quantities to 4 at every mutation boundary.
package ledger

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finquest/invest-engine/internal/catalog"
	"github.com/finquest/invest-engine/internal/model"
)

// The five-way validation taxonomy. All are user-actionable declines.
var (
	ErrInvalidAsset     = errors.New("ledger: invalid asset")
	ErrBelowMinimum     = errors.New("ledger: amount below minimum")
	ErrInsufficientCash = errors.New("ledger: insufficient cash")
	ErrPositionNotFound = errors.New("ledger: position not found")
	ErrExceedsHoldings  = errors.New("ledger: units exceed holdings")
)

// DustThreshold: a tradable position whose residual quantity falls below
// this is removed from the ledger entirely.
var DustThreshold = decimal.NewFromFloat(0.0001)

var monthsPerYear = decimal.NewFromInt(12)

// Ledger executes portfolio operations against passed-in state. It is
// stateless apart from the asset catalog.
type Ledger struct {
	catalog *catalog.Catalog
}

// New creates a ledger over the given asset catalog.
func New(cat *catalog.Catalog) *Ledger {
	return &Ledger{catalog: cat}
}

// NewPortfolio creates a portfolio seeded with the profile's starting cash.
func NewPortfolio(cash decimal.Decimal, scenario string, startMonth int) *model.Portfolio {
	return &model.Portfolio{
		Cash:           cash.Round(2),
		Holdings:       make(map[string]*model.Holding),
		MarketScenario: scenario,
		StartMonth:     startMonth,
	}
}

// BuyResult reports a completed buy.
type BuyResult struct {
	AssetID   string          `json:"asset_id"`
	Name      string          `json:"name"`
	Units     decimal.Decimal `json:"units"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Fee       decimal.Decimal `json:"fee"`
	TotalCost decimal.Decimal `json:"total_cost"`
}

// Buy spends cashAmount on a tradable asset at its current market price.
// The fee is charged on top of the amount; purchased units are the amount
// divided by price. An existing position is merged by weighted-average cost
// basis, keeping the original acquisition month.
func (l *Ledger) Buy(p *model.Portfolio, m *model.MarketState, assetID string, amount decimal.Decimal, currentMonth int) (*BuyResult, error) {
	asset, ok := l.catalog.Get(assetID)
	if !ok {
		return nil, fmt.Errorf("%w: unknown asset %s", ErrInvalidAsset, assetID)
	}
	if asset.Class == model.ClassFixedDeposit {
		return nil, fmt.Errorf("%w: %s is a fixed deposit, open a deposit instead", ErrInvalidAsset, assetID)
	}

	amount = amount.Round(2)
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: amount must be positive", ErrBelowMinimum)
	}
	if asset.Class == model.ClassFund && amount.LessThan(catalog.FundMinimum) {
		return nil, fmt.Errorf("%w: fund minimum is %s", ErrBelowMinimum, catalog.FundMinimum)
	}

	fee := amount.Mul(catalog.FeeRate(asset.Class)).Round(2)
	totalCost := amount.Add(fee)
	if totalCost.GreaterThan(p.Cash) {
		return nil, fmt.Errorf("%w: need %s, have %s", ErrInsufficientCash, totalCost, p.Cash)
	}

	price, ok := m.Prices[assetID]
	if !ok || price.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: no market price for %s", ErrInvalidAsset, assetID)
	}
	units := amount.Div(price).Round(4)
	if units.LessThan(DustThreshold) {
		return nil, fmt.Errorf("%w: amount too small to purchase any units of %s", ErrBelowMinimum, assetID)
	}

	p.Cash = p.Cash.Sub(totalCost).Round(2)

	if h, held := p.Holdings[assetID]; held {
		newQty := h.Quantity.Add(units).Round(4)
		// Weighted-average cost basis across the merged lots.
		totalBasis := h.AvgCost.Mul(h.Quantity).Add(amount)
		h.AvgCost = totalBasis.Div(newQty).Round(2)
		h.Quantity = newQty
		h.CurrentPrice = price
	} else {
		p.Holdings[assetID] = &model.Holding{
			AssetID:       assetID,
			Class:         asset.Class,
			Quantity:      units,
			AvgCost:       amount.Div(units).Round(2),
			CurrentPrice:  price,
			MonthAcquired: currentMonth,
		}
	}

	l.appendTx(p, model.Transaction{
		Kind:      model.TxBuy,
		AssetID:   assetID,
		Class:     asset.Class,
		Quantity:  units,
		UnitPrice: price,
		CashDelta: totalCost.Neg(),
	}, currentMonth)

	return &BuyResult{
		AssetID:   assetID,
		Name:      asset.Name,
		Units:     units,
		UnitPrice: price,
		Fee:       fee,
		TotalCost: totalCost,
	}, nil
}

// SellResult reports a completed sell. SameMonthLoss signals the achievement
// engine's recurring loss penalty: the sale realized a loss on a position
// opened in the same simulated month.
type SellResult struct {
	AssetID       string          `json:"asset_id"`
	Name          string          `json:"name"`
	Units         decimal.Decimal `json:"units"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Fee           decimal.Decimal `json:"fee"`
	Proceeds      decimal.Decimal `json:"proceeds"` // net of fee
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	SameMonthLoss bool            `json:"same_month_loss"`
}

// Sell disposes of units at the current market price, crediting net proceeds
// to cash. A residual position below DustThreshold is removed.
func (l *Ledger) Sell(p *model.Portfolio, m *model.MarketState, assetID string, units decimal.Decimal, currentMonth int) (*SellResult, error) {
	asset, ok := l.catalog.Get(assetID)
	if !ok {
		return nil, fmt.Errorf("%w: unknown asset %s", ErrPositionNotFound, assetID)
	}
	h, held := p.Holdings[assetID]
	if !held {
		return nil, fmt.Errorf("%w: no open position in %s", ErrPositionNotFound, assetID)
	}

	units = units.Round(4)
	if units.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: units must be positive", ErrBelowMinimum)
	}
	if units.GreaterThan(h.Quantity) {
		return nil, fmt.Errorf("%w: selling %s of %s held", ErrExceedsHoldings, units, h.Quantity)
	}

	price, ok := m.Prices[assetID]
	if !ok || price.LessThanOrEqual(decimal.Zero) {
		price = h.CurrentPrice
	}

	value := units.Mul(price).Round(2)
	fee := value.Mul(catalog.FeeRate(asset.Class)).Round(2)
	proceeds := value.Sub(fee)
	realized := value.Sub(units.Mul(h.AvgCost)).Round(2)
	sameMonthLoss := realized.IsNegative() && h.MonthAcquired == currentMonth

	p.Cash = p.Cash.Add(proceeds).Round(2)
	h.Quantity = h.Quantity.Sub(units).Round(4)
	h.CurrentPrice = price
	if h.Quantity.LessThan(DustThreshold) {
		delete(p.Holdings, assetID)
	}

	l.appendTx(p, model.Transaction{
		Kind:        model.TxSell,
		AssetID:     assetID,
		Class:       asset.Class,
		Quantity:    units,
		UnitPrice:   price,
		CashDelta:   proceeds,
		RealizedPnL: realized,
	}, currentMonth)

	return &SellResult{
		AssetID:       assetID,
		Name:          asset.Name,
		Units:         units,
		UnitPrice:     price,
		Fee:           fee,
		Proceeds:      proceeds,
		RealizedPnL:   realized,
		SameMonthLoss: sameMonthLoss,
	}, nil
}

// OpenDeposit locks principal into a fixed deposit. The rate is determined
// solely by tenure; 12 and 36 months are the only supported tenures.
func (l *Ledger) OpenDeposit(p *model.Portfolio, tenureMonths int, amount decimal.Decimal, currentMonth int) (*model.Deposit, error) {
	rate, ok := catalog.DepositRate(tenureMonths)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported tenure %d months", ErrInvalidAsset, tenureMonths)
	}

	amount = amount.Round(2)
	if amount.LessThan(catalog.DepositMinimum) {
		return nil, fmt.Errorf("%w: deposit minimum is %s", ErrBelowMinimum, catalog.DepositMinimum)
	}
	if amount.GreaterThan(p.Cash) {
		return nil, fmt.Errorf("%w: need %s, have %s", ErrInsufficientCash, amount, p.Cash)
	}

	p.Cash = p.Cash.Sub(amount).Round(2)
	dep := &model.Deposit{
		ID:            uuid.New().String(),
		AssetID:       "FD",
		Name:          fmt.Sprintf("%d-Month Fixed Deposit", tenureMonths),
		Principal:     amount,
		Rate:          rate,
		TenureMonths:  tenureMonths,
		OpenedMonth:   currentMonth,
		MaturityMonth: currentMonth + tenureMonths,
	}
	p.Deposits = append(p.Deposits, dep)

	l.appendTx(p, model.Transaction{
		Kind:      model.TxDepositOpen,
		AssetID:   dep.AssetID,
		Class:     model.ClassFixedDeposit,
		Quantity:  decimal.Zero,
		UnitPrice: decimal.Zero,
		CashDelta: amount.Neg(),
	}, currentMonth)

	return dep, nil
}

// MaturedDeposit summarizes one settled deposit for display.
type MaturedDeposit struct {
	Name      string          `json:"name"`
	Principal decimal.Decimal `json:"principal"`
	Interest  decimal.Decimal `json:"interest"`
	Total     decimal.Decimal `json:"total"`
}

// ProcessMaturities settles every deposit whose maturity month has been
// reached: interest = principal × rate × (tenure/12), principal + interest
// credited to cash, position removed. Idempotent per call given unchanged
// input — a settled deposit no longer exists, so it cannot mature twice.
func (l *Ledger) ProcessMaturities(p *model.Portfolio, currentMonth int) []MaturedDeposit {
	var matured []MaturedDeposit
	var remaining []*model.Deposit

	for _, dep := range p.Deposits {
		if dep.MaturityMonth > currentMonth {
			remaining = append(remaining, dep)
			continue
		}

		years := decimal.NewFromInt(int64(dep.TenureMonths)).Div(monthsPerYear)
		interest := dep.Principal.Mul(dep.Rate).Mul(years).Round(2)
		total := dep.Principal.Add(interest)
		p.Cash = p.Cash.Add(total).Round(2)

		l.appendTx(p, model.Transaction{
			Kind:      model.TxDepositMature,
			AssetID:   dep.AssetID,
			Class:     model.ClassFixedDeposit,
			Quantity:  decimal.Zero,
			UnitPrice: decimal.Zero,
			CashDelta: total,
		}, currentMonth)

		matured = append(matured, MaturedDeposit{
			Name:      dep.Name,
			Principal: dep.Principal,
			Interest:  interest,
			Total:     total,
		})
	}

	p.Deposits = remaining
	return matured
}

// Metrics is the derived portfolio view re-rendered after every mutation.
type Metrics struct {
	Cash          decimal.Decimal `json:"cash"`
	InvestedValue decimal.Decimal `json:"invested_value"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	RiskScore     decimal.Decimal `json:"risk_score"` // value-weighted volatility, in %
	TotalValue    decimal.Decimal `json:"total_value"`
}

// ComputeMetrics derives the portfolio view: invested value (deposits at
// principal), unrealized P&L on tradable positions, and the value-weighted
// volatility score. A position whose asset is no longer in the catalog is
// treated as stale and skipped in the volatility aggregation.
func (l *Ledger) ComputeMetrics(p *model.Portfolio) Metrics {
	invested := decimal.Zero
	unrealized := decimal.Zero
	weightedVol := decimal.Zero
	tradableValue := decimal.Zero

	for _, h := range p.Holdings {
		value := h.Quantity.Mul(h.CurrentPrice).Round(2)
		basis := h.Quantity.Mul(h.AvgCost).Round(2)
		invested = invested.Add(value)
		unrealized = unrealized.Add(value.Sub(basis))
		tradableValue = tradableValue.Add(value)

		if asset, ok := l.catalog.Get(h.AssetID); ok {
			weightedVol = weightedVol.Add(value.Mul(asset.Volatility))
		}
	}
	for _, dep := range p.Deposits {
		invested = invested.Add(dep.Principal)
	}

	risk := decimal.Zero
	if tradableValue.IsPositive() {
		risk = weightedVol.Div(tradableValue).Mul(decimal.NewFromInt(100)).Round(2)
	}

	return Metrics{
		Cash:          p.Cash,
		InvestedValue: invested,
		UnrealizedPnL: unrealized,
		RiskScore:     risk,
		TotalValue:    p.Cash.Add(invested),
	}
}

// SectorsHeld returns the distinct sectors across open tradable positions.
// Stale asset references are skipped.
func (l *Ledger) SectorsHeld(p *model.Portfolio) []string {
	seen := make(map[string]bool)
	var sectors []string
	for id := range p.Holdings {
		asset, ok := l.catalog.Get(id)
		if !ok || seen[asset.Sector] {
			continue
		}
		seen[asset.Sector] = true
		sectors = append(sectors, asset.Sector)
	}
	return sectors
}

// appendTx prepends a transaction: newest-first is the display contract.
func (l *Ledger) appendTx(p *model.Portfolio, tx model.Transaction, currentMonth int) {
	tx.ID = uuid.New().String()
	tx.MonthLabel = fmt.Sprintf("Month %d", currentMonth)
	p.Transactions = append([]model.Transaction{tx}, p.Transactions...)
}
