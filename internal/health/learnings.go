package health

import (
	"github.com/shopspring/decimal"

	"github.com/finquest/invest-engine/internal/model"
)

// Learning is one fixed pedagogical statement with its unlock state.
// Unlock conditions are recomputed on every call, never persisted.
type Learning struct {
	ID        string `json:"id"`
	Statement string `json:"statement"`
	Unlocked  bool   `json:"unlocked"`
}

// Learnings evaluates the six fixed lessons against current state.
func (e *Engine) Learnings(profile *model.Profile, p *model.Portfolio) []Learning {
	months := len(profile.Budget.MonthHistory)
	rate := savingsRate(profile)

	sectors := len(e.ledger.SectorsHeld(p))

	holdsFund := false
	for _, h := range p.Holdings {
		if h.Class == model.ClassFund {
			holdsFund = true
			break
		}
	}
	holdsDeposit := len(p.Deposits) > 0

	investingMonths := 0
	if p.StartMonth > 0 {
		investingMonths = profile.Budget.Month - p.StartMonth
	}

	return []Learning{
		{
			ID:        "pay_yourself_first",
			Statement: "Pay yourself first: move savings aside before spending, not after.",
			Unlocked:  rate.GreaterThanOrEqual(decimal.NewFromInt(10)) || months >= 2,
		},
		{
			ID:        "diversification",
			Statement: "Diversification is the only free lunch — spreading across sectors lowers risk without lowering expected return.",
			Unlocked:  sectors >= 3,
		},
		{
			ID:        "compounding",
			Statement: "Compounding rewards patience: steady instruments grow quietly while you sleep.",
			Unlocked:  holdsDeposit || holdsFund || months >= 6,
		},
		{
			ID:        "liquidity_tradeoff",
			Statement: "Locked money earns more, liquid money rescues you — a healthy plan holds both.",
			Unlocked:  holdsDeposit && len(p.Holdings) > 0,
		},
		{
			ID:        "budget_is_a_mirror",
			Statement: "A budget is a mirror: it shows what you value, not what you earn.",
			Unlocked:  months >= 1,
		},
		{
			ID:        "time_in_market",
			Statement: "Time in the market beats timing the market.",
			Unlocked:  investingMonths >= 4,
		},
	}
}
