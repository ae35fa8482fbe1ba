package health

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/finquest/invest-engine/internal/model"
)

// balanceBaseline is the starting-balance growth threshold for the
// balance-growth insight.
var balanceBaseline = decimal.NewFromInt(100000)

// Insight is one natural-language observation with a sentiment tag.
type Insight struct {
	Icon      string `json:"icon"`
	Text      string `json:"text"`
	Sentiment string `json:"sentiment"`
}

// Insights runs the independent rule checks in a fixed order. Each rule
// either contributes one record or is silently omitted when its triggering
// data is absent — never an error.
func (e *Engine) Insights(profile *model.Profile, p *model.Portfolio) []Insight {
	var out []Insight

	// Savings rate thresholds.
	rate := savingsRate(profile)
	switch {
	case rate.GreaterThanOrEqual(decimal.NewFromInt(20)):
		out = append(out, Insight{
			Icon:      "💰",
			Text:      fmt.Sprintf("Strong saver — you set aside %s%% of your income on average.", rate.Round(1)),
			Sentiment: SentimentPositive,
		})
	case rate.IsPositive():
		out = append(out, Insight{
			Icon:      "💰",
			Text:      fmt.Sprintf("You save %s%% of income. Pushing toward 20%% builds a faster cushion.", rate.Round(1)),
			Sentiment: SentimentWarning,
		})
	default:
		out = append(out, Insight{
			Icon:      "💰",
			Text:      "No savings recorded yet. Even a small monthly amount compounds.",
			Sentiment: SentimentNeutral,
		})
	}

	// Diversification.
	sectors := len(e.ledger.SectorsHeld(p))
	if len(p.Deposits) > 0 {
		sectors++
	}
	if sectors >= 3 {
		out = append(out, Insight{
			Icon:      "📊",
			Text:      fmt.Sprintf("Your investments span %d sectors — a well-spread portfolio.", sectors),
			Sentiment: SentimentPositive,
		})
	} else if p.HasPositions() {
		out = append(out, Insight{
			Icon:      "📊",
			Text:      "Your holdings are concentrated. Spreading across sectors softens single-sector shocks.",
			Sentiment: SentimentWarning,
		})
	}

	// Consistency streak.
	if streak := consecutiveSavedMonths(profile); streak >= 3 {
		out = append(out, Insight{
			Icon:      "🔥",
			Text:      fmt.Sprintf("%d consecutive months of positive savings. Consistency beats timing.", streak),
			Sentiment: SentimentPositive,
		})
	}

	// Fixed deposit presence.
	if len(p.Deposits) > 0 {
		out = append(out, Insight{
			Icon:      "🏦",
			Text:      "A fixed deposit anchors your portfolio with guaranteed returns.",
			Sentiment: SentimentPositive,
		})
	}

	// Month-over-month savings-allocation improvement.
	if history := profile.Budget.MonthHistory; len(history) >= 2 {
		last, prev := history[len(history)-1], history[len(history)-2]
		if last.Savings.GreaterThan(prev.Savings) {
			out = append(out, Insight{
				Icon:      "📈",
				Text:      fmt.Sprintf("You raised your savings allocation from %s to %s last month.", prev.Savings, last.Savings),
				Sentiment: SentimentPositive,
			})
		}
	}

	// Balance growth above the starting baseline.
	if profile.Balance.GreaterThan(balanceBaseline) {
		out = append(out, Insight{
			Icon:      "🌱",
			Text:      fmt.Sprintf("Your balance has grown past the %s starting point.", balanceBaseline),
			Sentiment: SentimentPositive,
		})
	}

	// Behavioral features — optional sub-records, omitted when absent.
	if balance, ok := profile.FutureWalletBalance(); ok && balance.IsPositive() {
		out = append(out, Insight{
			Icon:      "✉️",
			Text:      fmt.Sprintf("Your future-self wallet holds %s — money your future self will thank you for.", balance),
			Sentiment: SentimentPositive,
		})
	}

	if resisted, total, ok := profile.TemptationStats(); ok && total > 0 {
		pct := decimal.NewFromInt(int64(resisted)).Div(decimal.NewFromInt(int64(total))).Mul(hundred).Round(0)
		sentiment := SentimentWarning
		if resisted*2 >= total {
			sentiment = SentimentPositive
		}
		out = append(out, Insight{
			Icon:      "🔒",
			Text:      fmt.Sprintf("You resisted %d of %d temptations (%s%%).", resisted, total, pct),
			Sentiment: sentiment,
		})
	}

	if gw, ok := profile.GoalWalletStats(); ok {
		if gw.Completed > 0 {
			out = append(out, Insight{
				Icon:      "🎯",
				Text:      fmt.Sprintf("%d goal wallet(s) completed, %d still active.", gw.Completed, gw.Active),
				Sentiment: SentimentPositive,
			})
		}
		if gw.EarlyWithdrawals > 0 {
			out = append(out, Insight{
				Icon:      "🎯",
				Text:      fmt.Sprintf("%d early goal withdrawal(s) — breaking a goal early usually costs momentum.", gw.EarlyWithdrawals),
				Sentiment: SentimentWarning,
			})
		}
	}

	return out
}
