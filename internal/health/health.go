// Package health derives the financial-health report from budget history and
// the portfolio snapshot: a weighted composite score, a per-component
// breakdown, and natural-language insight/decision/lesson records.
//
// Everything here is a pure function of (profile, portfolio) — nothing is
// persisted, so every call reflects current state exactly.
package health

import (
	"github.com/shopspring/decimal"

	"github.com/finquest/invest-engine/internal/catalog"
	"github.com/finquest/invest-engine/internal/ledger"
	"github.com/finquest/invest-engine/internal/model"
)

// Component weights. Must sum to 1.
var (
	weightSavings         = decimal.NewFromFloat(0.30)
	weightDiscipline      = decimal.NewFromFloat(0.20)
	weightDiversification = decimal.NewFromFloat(0.25)
	weightRisk            = decimal.NewFromFloat(0.15)
	weightConsistency     = decimal.NewFromFloat(0.10)
)

var hundred = decimal.NewFromInt(100)

// Risk labels.
const (
	RiskConservative = "Conservative"
	RiskBalanced     = "Balanced"
	RiskAggressive   = "Aggressive"
)

// Sentiment tags on insight records.
const (
	SentimentPositive = "positive"
	SentimentWarning  = "warning"
	SentimentNeutral  = "neutral"
)

// Components is the per-component score breakdown, each on a 0–100 scale
// before weighting.
type Components struct {
	SavingsRate     decimal.Decimal `json:"savings_rate"`
	Discipline      decimal.Decimal `json:"discipline"`
	Diversification decimal.Decimal `json:"diversification"`
	RiskBalance     decimal.Decimal `json:"risk_balance"`
	Consistency     decimal.Decimal `json:"consistency"`
}

// Report is the full health output consumed by the UI driver.
type Report struct {
	Score          int             `json:"score"` // weighted composite, 0–100
	Components     Components      `json:"components"`
	SavingsPercent decimal.Decimal `json:"savings_percent"` // raw mean savings rate
	RiskLabel      string          `json:"risk_label"`
	Insights       []Insight       `json:"insights"`
	Decisions      []Decision      `json:"decisions"`
	Learnings      []Learning      `json:"learnings"`
}

// Engine scores profiles against portfolio snapshots.
type Engine struct {
	catalog *catalog.Catalog
	ledger  *ledger.Ledger
}

// NewEngine creates a health engine over the shared catalog and ledger view.
func NewEngine(cat *catalog.Catalog, l *ledger.Ledger) *Engine {
	return &Engine{catalog: cat, ledger: l}
}

// Score computes the full health report.
func (e *Engine) Score(profile *model.Profile, p *model.Portfolio) *Report {
	rate := savingsRate(profile)

	comp := Components{
		SavingsRate:     normalizeSavings(rate),
		Discipline:      disciplineScore(profile),
		Diversification: e.diversificationScore(p),
		RiskBalance:     e.riskScore(profile, p),
		Consistency:     consistencyScore(profile),
	}

	total := comp.SavingsRate.Mul(weightSavings).
		Add(comp.Discipline.Mul(weightDiscipline)).
		Add(comp.Diversification.Mul(weightDiversification)).
		Add(comp.RiskBalance.Mul(weightRisk)).
		Add(comp.Consistency.Mul(weightConsistency))

	return &Report{
		Score:          int(total.Round(0).IntPart()),
		Components:     comp,
		SavingsPercent: rate.Round(2),
		RiskLabel:      e.riskLabel(p),
		Insights:       e.Insights(profile, p),
		Decisions:      e.Decisions(profile, p),
		Learnings:      e.Learnings(profile, p),
	}
}

// savingsRate returns the mean monthly savings rate in percent: the average
// over month history of savings/income, or the single current-month
// allocation rate when no history exists yet.
func savingsRate(profile *model.Profile) decimal.Decimal {
	if profile.Income.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}

	history := profile.Budget.MonthHistory
	if len(history) == 0 {
		if alloc := profile.Budget.Allocation; alloc != nil {
			return alloc.Savings.Div(profile.Income).Mul(hundred)
		}
		return decimal.Zero
	}

	sum := decimal.Zero
	for _, m := range history {
		sum = sum.Add(m.Savings.Div(profile.Income).Mul(hundred))
	}
	return sum.Div(decimal.NewFromInt(int64(len(history))))
}

// normalizeSavings maps a savings rate to 0–100: 25% saved is a full score.
func normalizeSavings(rate decimal.Decimal) decimal.Decimal {
	score := rate.Div(decimal.NewFromInt(25)).Mul(hundred)
	return clamp(score, decimal.Zero, hundred)
}

// disciplineScore is a constant 100 per recorded month. Placeholder signal
// carried over from the original product behavior: it yields 100 whether or
// not any month is recorded.
func disciplineScore(_ *model.Profile) decimal.Decimal {
	return hundred
}

// diversificationScore awards up to 50 points for distinct asset classes
// (full at 4) and up to 50 for distinct sectors (full at 5). Deposits count
// as a fixed-deposit class and a synthetic "Fixed Income" sector.
func (e *Engine) diversificationScore(p *model.Portfolio) decimal.Decimal {
	classes := make(map[string]bool)
	for _, h := range p.Holdings {
		classes[h.Class] = true
	}
	if len(p.Deposits) > 0 {
		classes[model.ClassFixedDeposit] = true
	}

	sectors := len(e.ledger.SectorsHeld(p))
	if len(p.Deposits) > 0 {
		sectors++ // synthetic Fixed Income sector
	}

	classCount := len(classes)
	if classCount > 4 {
		classCount = 4
	}
	if sectors > 5 {
		sectors = 5
	}

	fifty := decimal.NewFromInt(50)
	classScore := decimal.NewFromInt(int64(classCount)).Div(decimal.NewFromInt(4)).Mul(fifty)
	sectorScore := decimal.NewFromInt(int64(sectors)).Div(decimal.NewFromInt(5)).Mul(fifty)
	return classScore.Add(sectorScore)
}

// riskScore compares the portfolio's value-weighted volatility against a
// life-stage-dependent ideal, plus a bonus for the fixed-deposit share of
// total value (one bonus point per percentage point of share, capped at 30).
func (e *Engine) riskScore(profile *model.Profile, p *model.Portfolio) decimal.Decimal {
	metrics := e.ledger.ComputeMetrics(p)

	ideal := decimal.NewFromInt(5)
	switch profile.LifeStage {
	case model.LifeStageStudent:
		ideal = decimal.NewFromInt(4)
	case model.LifeStageIndependent:
		ideal = decimal.NewFromInt(6)
	}

	diff := metrics.RiskScore.Sub(ideal).Abs()
	base := hundred.Sub(diff.Mul(decimal.NewFromInt(15)))
	if base.IsNegative() {
		base = decimal.Zero
	}
	base = base.Mul(decimal.NewFromFloat(0.7))

	bonus := decimal.Zero
	if metrics.TotalValue.IsPositive() {
		depositValue := decimal.Zero
		for _, dep := range p.Deposits {
			depositValue = depositValue.Add(dep.Principal)
		}
		bonus = depositValue.Div(metrics.TotalValue).Mul(hundred)
		if bonus.GreaterThan(decimal.NewFromInt(30)) {
			bonus = decimal.NewFromInt(30)
		}
	}

	return clamp(base.Add(bonus), decimal.Zero, hundred)
}

// riskLabel classifies the portfolio's weighted volatility.
func (e *Engine) riskLabel(p *model.Portfolio) string {
	vol := e.ledger.ComputeMetrics(p).RiskScore
	switch {
	case vol.LessThan(decimal.NewFromInt(3)):
		return RiskConservative
	case vol.GreaterThan(decimal.NewFromInt(6)):
		return RiskAggressive
	default:
		return RiskBalanced
	}
}

// consistencyScore counts consecutive most-recent months with non-negative
// total saved, scanning backward; six straight months is a full score.
func consistencyScore(profile *model.Profile) decimal.Decimal {
	months := consecutiveSavedMonths(profile)
	score := decimal.NewFromInt(int64(months)).Div(decimal.NewFromInt(6)).Mul(hundred)
	return clamp(score, decimal.Zero, hundred)
}

func consecutiveSavedMonths(profile *model.Profile) int {
	history := profile.Budget.MonthHistory
	count := 0
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].TotalSaved.IsNegative() {
			break
		}
		count++
	}
	return count
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}
