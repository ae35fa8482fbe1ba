package health

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/finquest/invest-engine/internal/model"
)

// Decision is one narrated notable decision the player made.
type Decision struct {
	Icon  string `json:"icon"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Decisions scans budget history and the transaction log for the player's
// notable moments: the single best and worst savings months, the single
// largest-gain sale, and total deposit-maturity proceeds. Categories with no
// qualifying data are skipped; if nothing qualifies a single neutral
// "Getting Started" record is returned.
func (e *Engine) Decisions(profile *model.Profile, p *model.Portfolio) []Decision {
	var out []Decision

	history := profile.Budget.MonthHistory
	if len(history) > 0 {
		best := history[0]
		worst := history[0]
		for _, m := range history[1:] {
			if m.TotalSaved.GreaterThan(best.TotalSaved) {
				best = m
			}
			if m.TotalSaved.LessThan(worst.TotalSaved) {
				worst = m
			}
		}
		out = append(out, Decision{
			Icon:  "🏆",
			Title: "Best month",
			Text:  fmt.Sprintf("Month %d — you saved %s, your strongest month so far.", best.Month, best.TotalSaved),
		})
		if len(history) > 1 && worst.Month != best.Month {
			out = append(out, Decision{
				Icon:  "📉",
				Title: "Toughest month",
				Text:  fmt.Sprintf("Month %d — saving %s. Every budget has a hard month.", worst.Month, worst.TotalSaved),
			})
		}
	}

	// Largest-gain sale across the transaction log.
	var bestSale *model.Transaction
	for i := range p.Transactions {
		tx := &p.Transactions[i]
		if tx.Kind != model.TxSell || !tx.RealizedPnL.IsPositive() {
			continue
		}
		if bestSale == nil || tx.RealizedPnL.GreaterThan(bestSale.RealizedPnL) {
			bestSale = tx
		}
	}
	if bestSale != nil {
		name := bestSale.AssetID
		if asset, ok := e.catalog.Get(bestSale.AssetID); ok {
			name = asset.Name
		}
		out = append(out, Decision{
			Icon:  "💹",
			Title: "Best sale",
			Text:  fmt.Sprintf("Selling %s in %s locked in a %s gain.", name, bestSale.MonthLabel, bestSale.RealizedPnL),
		})
	}

	// Total proceeds from matured deposits.
	maturityTotal := decimal.Zero
	for _, tx := range p.Transactions {
		if tx.Kind == model.TxDepositMature {
			maturityTotal = maturityTotal.Add(tx.CashDelta)
		}
	}
	if maturityTotal.IsPositive() {
		out = append(out, Decision{
			Icon:  "🏦",
			Title: "Deposits matured",
			Text:  fmt.Sprintf("Your fixed deposits have returned %s in principal and interest.", maturityTotal),
		})
	}

	if len(out) == 0 {
		out = append(out, Decision{
			Icon:  "🌟",
			Title: "Getting Started",
			Text:  "Your financial story begins here. Allocate a budget and make your first investment.",
		})
	}
	return out
}
