// Package model defines the core domain types shared across the invest engine.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"github.com/shopspring/decimal"
)

// Asset classes.
const (
	ClassEquity       = "equity"
	ClassFund         = "fund"
	ClassETF          = "etf"
	ClassFixedDeposit = "fixed_deposit"
)

// Market regimes selectable by the player.
const (
	RegimeBull     = "bull"
	RegimeBear     = "bear"
	RegimeVolatile = "volatile"
	RegimeFlat     = "flat"
)

// Transaction kinds.
const (
	TxBuy           = "buy"
	TxSell          = "sell"
	TxDepositOpen   = "deposit_open"
	TxDepositMature = "deposit_mature"
)

// Life stages used by the risk-balance scoring component.
const (
	LifeStageStudent     = "student"
	LifeStageAdult       = "adult"
	LifeStageIndependent = "independent_adult"
)

// Asset is static reference data. Immutable for the process lifetime.
// Fixed-deposit assets carry a rate/tenure and a zero base price/volatility.
type Asset struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Class        string          `json:"class"`
	Sector       string          `json:"sector"`
	BasePrice    decimal.Decimal `json:"base_price"`
	Volatility   decimal.Decimal `json:"volatility"` // fraction, e.g. 0.06 = 6%
	Rate         decimal.Decimal `json:"rate,omitempty"`
	TenureMonths int             `json:"tenure_months,omitempty"`
}

// MarketState maps asset id → current price. Mutated only by the monthly
// repricing step. One instance per user session.
type MarketState struct {
	Prices map[string]decimal.Decimal `json:"prices"`
}

// Holding is an open tradable position (equity/fund/ETF).
// Quantity is never negative; a holding below the dust threshold is removed
// from the ledger entirely.
type Holding struct {
	AssetID       string          `json:"asset_id"`
	Class         string          `json:"class"`
	Quantity      decimal.Decimal `json:"quantity"`      // units, 4 dp
	AvgCost       decimal.Decimal `json:"avg_cost"`      // per-unit cost basis
	CurrentPrice  decimal.Decimal `json:"current_price"` // synced from MarketState
	MonthAcquired int             `json:"month_acquired"`
}

// Deposit is an open fixed-deposit position. Removed exactly once its
// maturity month is reached, converting principal+interest to cash.
type Deposit struct {
	ID            string          `json:"id"`
	AssetID       string          `json:"asset_id"`
	Name          string          `json:"name"`
	Principal     decimal.Decimal `json:"principal"`
	Rate          decimal.Decimal `json:"rate"` // annual fraction
	TenureMonths  int             `json:"tenure_months"`
	OpenedMonth   int             `json:"opened_month"`
	MaturityMonth int             `json:"maturity_month"`
}

// Transaction is an immutable record of a ledger mutation. Newest-first
// ordering is a display convenience computed at insert time; ordering has no
// effect on ledger correctness.
type Transaction struct {
	ID          string          `json:"id"`
	MonthLabel  string          `json:"month_label"`
	Kind        string          `json:"kind"`
	AssetID     string          `json:"asset_id"`
	Class       string          `json:"class"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	CashDelta   decimal.Decimal `json:"cash_delta"`   // signed net cash effect
	RealizedPnL decimal.Decimal `json:"realized_pnl"` // sells only, zero otherwise
}

// AchievementFlags are one-shot milestones. Each transitions false→true at
// most once and never reverts.
type AchievementFlags struct {
	FirstTrade     bool `json:"first_trade"`
	Diversified    bool `json:"diversified"`
	DepositMatured bool `json:"deposit_matured"`
	YearHeld       bool `json:"year_held"`
}

// Portfolio holds cash, open positions, and the append-only transaction log
// for one user session. Cash is ≥ 0 after every operation; operations that
// would drive it negative are rejected.
type Portfolio struct {
	Cash           decimal.Decimal     `json:"cash"`
	Holdings       map[string]*Holding `json:"holdings"`
	Deposits       []*Deposit          `json:"deposits"`
	Transactions   []Transaction       `json:"transactions"` // newest first
	MarketScenario string              `json:"market_scenario"`
	StartMonth     int                 `json:"start_month"`
	Flags          AchievementFlags    `json:"flags"`
	XP             int64               `json:"xp"`
}

// Level derives the player level from total XP: floor(xp/100)+1.
func (p *Portfolio) Level() int {
	return int(p.XP/100) + 1
}

// HasPositions reports whether any tradable holding or deposit is open.
func (p *Portfolio) HasPositions() bool {
	return len(p.Holdings) > 0 || len(p.Deposits) > 0
}

// Allocation is the player's current-month budget split.
type Allocation struct {
	Needs   decimal.Decimal `json:"needs"`
	Wants   decimal.Decimal `json:"wants"`
	Savings decimal.Decimal `json:"savings"`
}

// MonthRecord is one completed month appended by the budget collaborator.
type MonthRecord struct {
	Month      int             `json:"month"`
	Needs      decimal.Decimal `json:"needs"`
	Wants      decimal.Decimal `json:"wants"`
	Savings    decimal.Decimal `json:"savings"`
	TotalSaved decimal.Decimal `json:"totalSaved"`
	XPEarned   int64           `json:"xpEarned"`
}

// Budget is owned by the budget collaborator; the invest core only reads it.
type Budget struct {
	Month        int           `json:"month"` // current simulated month, starts at 1
	Allocation   *Allocation   `json:"allocation,omitempty"`
	MonthHistory []MonthRecord `json:"monthHistory"`
}

// FutureWallet is the future-savings commitment device sub-record.
type FutureWallet struct {
	Balance decimal.Decimal `json:"balance"`
}

// TemptationLocks tracks resisted vs. total temptation events.
type TemptationLocks struct {
	Resisted int `json:"resisted"`
	Total    int `json:"total"`
}

// GoalWallets tracks goal-wallet lifecycle counts.
type GoalWallets struct {
	Completed        int `json:"completed"`
	Active           int `json:"active"`
	EarlyWithdrawals int `json:"early_withdrawals"`
}

// Features are optional behavioral sub-records. Older profiles may lack any
// of them; nil means the feature was never used. Resolve through the
// accessors below rather than chasing pointers at every read site.
type Features struct {
	FutureWallet    *FutureWallet    `json:"future_wallet,omitempty"`
	TemptationLocks *TemptationLocks `json:"temptation_locks,omitempty"`
	GoalWallets     *GoalWallets     `json:"goal_wallets,omitempty"`
}

// Profile is the player record. The invest core consumes it read-only,
// except for seeding the portfolio's starting cash from Balance.
type Profile struct {
	Income    decimal.Decimal `json:"income"`
	Balance   decimal.Decimal `json:"balance"`
	LifeStage string          `json:"life_stage"`
	Budget    Budget          `json:"budget"`
	Features  *Features       `json:"features,omitempty"`
}

// FutureWalletBalance resolves the optional future-wallet balance.
func (p *Profile) FutureWalletBalance() (decimal.Decimal, bool) {
	if p.Features == nil || p.Features.FutureWallet == nil {
		return decimal.Zero, false
	}
	return p.Features.FutureWallet.Balance, true
}

// TemptationStats resolves the optional temptation-lock counters.
func (p *Profile) TemptationStats() (resisted, total int, ok bool) {
	if p.Features == nil || p.Features.TemptationLocks == nil {
		return 0, 0, false
	}
	tl := p.Features.TemptationLocks
	return tl.Resisted, tl.Total, true
}

// GoalWalletStats resolves the optional goal-wallet counters.
func (p *Profile) GoalWalletStats() (*GoalWallets, bool) {
	if p.Features == nil || p.Features.GoalWallets == nil {
		return nil, false
	}
	return p.Features.GoalWallets, true
}

// GameState is the per-user persisted record: profile + portfolio + market,
// saved and loaded as one unit with last-write-wins semantics.
type GameState struct {
	Profile   *Profile     `json:"profile"`
	Portfolio *Portfolio   `json:"portfolio"`
	Market    *MarketState `json:"market"`
}
