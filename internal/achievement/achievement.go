// Package achievement grants one-shot experience rewards for portfolio
// milestones. Each flag transitions false→true exactly once and never
// reverts; triggering a flag is the sole condition for granting its XP.
// The same-month-loss penalty is the one recurring, non-flag-gated reward.
package achievement

import (
	"github.com/finquest/invest-engine/internal/ledger"
	"github.com/finquest/invest-engine/internal/model"
)

// XP rewards per milestone.
const (
	FirstTradeXP         int64 = 25
	DiversifiedXP        int64 = 15
	DepositMaturedXP     int64 = 20
	YearHeldXP           int64 = 50
	SameMonthLossPenalty int64 = -10
)

// Milestone thresholds.
const (
	DiversifiedSectors = 3
	YearHeldMonths     = 12
)

// Reward names.
const (
	RewardFirstTrade     = "first_trade"
	RewardDiversified    = "diversified"
	RewardDepositMatured = "deposit_matured"
	RewardYearHeld       = "year_held"
	RewardSameMonthLoss  = "same_month_loss"
)

// Reward is one granted XP adjustment.
type Reward struct {
	Name string `json:"name"`
	XP   int64  `json:"xp"`
}

// Engine checks milestone conditions against ledger state transitions.
type Engine struct {
	ledger *ledger.Ledger
}

// NewEngine creates an achievement engine sharing the ledger's catalog view.
func NewEngine(l *ledger.Ledger) *Engine {
	return &Engine{ledger: l}
}

// OnBuy runs after every buy: first-trade, then the diversification check.
func (e *Engine) OnBuy(p *model.Portfolio) []Reward {
	var rewards []Reward
	if r := e.firstTrade(p); r != nil {
		rewards = append(rewards, *r)
	}
	if !p.Flags.Diversified && len(e.ledger.SectorsHeld(p)) >= DiversifiedSectors {
		p.Flags.Diversified = true
		rewards = append(rewards, e.grant(p, RewardDiversified, DiversifiedXP))
	}
	return rewards
}

// OnDepositOpen runs after every deposit open: a deposit counts as the
// first trade too.
func (e *Engine) OnDepositOpen(p *model.Portfolio) []Reward {
	if r := e.firstTrade(p); r != nil {
		return []Reward{*r}
	}
	return nil
}

// OnDepositMatured runs after maturities settle; rewards the first only.
func (e *Engine) OnDepositMatured(p *model.Portfolio) []Reward {
	if p.Flags.DepositMatured {
		return nil
	}
	p.Flags.DepositMatured = true
	return []Reward{e.grant(p, RewardDepositMatured, DepositMaturedXP)}
}

// OnMonthAdvance runs after every month advance: the year-held milestone
// requires twelve elapsed months and at least one open position.
func (e *Engine) OnMonthAdvance(p *model.Portfolio, currentMonth int) []Reward {
	if p.Flags.YearHeld {
		return nil
	}
	if currentMonth-p.StartMonth < YearHeldMonths || !p.HasPositions() {
		return nil
	}
	p.Flags.YearHeld = true
	return []Reward{e.grant(p, RewardYearHeld, YearHeldXP)}
}

// OnSameMonthLoss applies the recurring penalty for realizing a loss on a
// position opened in the same simulated month. Not one-shot.
func (e *Engine) OnSameMonthLoss(p *model.Portfolio) Reward {
	return e.grant(p, RewardSameMonthLoss, SameMonthLossPenalty)
}

func (e *Engine) firstTrade(p *model.Portfolio) *Reward {
	if p.Flags.FirstTrade {
		return nil
	}
	p.Flags.FirstTrade = true
	r := e.grant(p, RewardFirstTrade, FirstTradeXP)
	return &r
}

// grant adjusts the XP total, clamped at zero.
func (e *Engine) grant(p *model.Portfolio, name string, xp int64) Reward {
	p.XP += xp
	if p.XP < 0 {
		p.XP = 0
	}
	return Reward{Name: name, XP: xp}
}
