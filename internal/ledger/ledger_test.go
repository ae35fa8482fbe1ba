package ledger_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/finquest/invest-engine/internal/catalog"
	"github.com/finquest/invest-engine/internal/ledger"
	"github.com/finquest/invest-engine/internal/market"
	"github.com/finquest/invest-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// newTestLedger creates a ledger with the default catalog, a portfolio
// seeded with 100000 cash at month 1, and a fresh market state.
func newTestLedger(t *testing.T) (*ledger.Ledger, *model.Portfolio, *model.MarketState) {
	t.Helper()
	cat := catalog.Default()
	l := ledger.New(cat)
	p := ledger.NewPortfolio(d(100000), model.RegimeFlat, 1)
	m := market.NewState(cat)
	return l, p, m
}

func assertDecimal(t *testing.T, got, want decimal.Decimal, what string) {
	t.Helper()
	if !got.Equal(want) {
		t.Errorf("%s: got %s, want %s", what, got, want)
	}
}

// --- Buy ---

func TestBuy_EquityWithFee(t *testing.T) {
	l, p, m := newTestLedger(t)

	// BLUE trades at its base price of 240 with a 0.2% equity fee.
	result, err := l.Buy(p, m, "BLUE", d(10000), 1)
	if err != nil {
		t.Fatalf("buy failed: %v", err)
	}

	assertDecimal(t, result.Fee, d(20), "fee")
	assertDecimal(t, result.TotalCost, d(10020), "total cost")
	assertDecimal(t, result.Units, d(41.6667), "units")
	assertDecimal(t, p.Cash, d(89980), "cash after buy")

	h, ok := p.Holdings["BLUE"]
	if !ok {
		t.Fatal("expected BLUE holding")
	}
	assertDecimal(t, h.Quantity, d(41.6667), "holding quantity")
	assertDecimal(t, h.AvgCost, d(240), "avg cost")
	if h.MonthAcquired != 1 {
		t.Errorf("expected month acquired 1, got %d", h.MonthAcquired)
	}

	if len(p.Transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(p.Transactions))
	}
	tx := p.Transactions[0]
	if tx.Kind != model.TxBuy {
		t.Errorf("expected buy transaction, got %s", tx.Kind)
	}
	if tx.MonthLabel != "Month 1" {
		t.Errorf("unexpected month label %q", tx.MonthLabel)
	}
	assertDecimal(t, tx.CashDelta, d(-10020), "transaction cash delta")
}

func TestBuy_MergesWeightedAverage(t *testing.T) {
	l, p, m := newTestLedger(t)

	if _, err := l.Buy(p, m, "BLUE", d(10000), 1); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Buy(p, m, "BLUE", d(5000), 3); err != nil {
		t.Fatal(err)
	}

	h := p.Holdings["BLUE"]
	assertDecimal(t, h.Quantity, d(62.5), "merged quantity")
	assertDecimal(t, h.AvgCost, d(240), "merged avg cost")
	if h.MonthAcquired != 1 {
		t.Errorf("merge should keep the original acquisition month, got %d", h.MonthAcquired)
	}
}

func TestBuy_UnknownAsset(t *testing.T) {
	l, p, m := newTestLedger(t)
	if _, err := l.Buy(p, m, "NOPE", d(1000), 1); !errors.Is(err, ledger.ErrInvalidAsset) {
		t.Errorf("expected ErrInvalidAsset, got %v", err)
	}
}

func TestBuy_FixedDepositClassRejected(t *testing.T) {
	l, p, m := newTestLedger(t)
	if _, err := l.Buy(p, m, "FD", d(5000), 1); !errors.Is(err, ledger.ErrInvalidAsset) {
		t.Errorf("expected ErrInvalidAsset for fixed-deposit buy, got %v", err)
	}
}

func TestBuy_FundBelowMinimum(t *testing.T) {
	l, p, m := newTestLedger(t)
	if _, err := l.Buy(p, m, "GRWF", d(500), 1); !errors.Is(err, ledger.ErrBelowMinimum) {
		t.Errorf("expected ErrBelowMinimum, got %v", err)
	}
	// At the minimum it goes through (funds charge no fee).
	result, err := l.Buy(p, m, "GRWF", d(1000), 1)
	if err != nil {
		t.Fatalf("buy at fund minimum failed: %v", err)
	}
	assertDecimal(t, result.Fee, d(0), "fund fee")
}

func TestBuy_AmountTooSmallForAnyUnits(t *testing.T) {
	l, p, m := newTestLedger(t)

	// 0.04 on an 850-priced asset rounds to 0.0000 units at 4 dp; the buy
	// must be declined before any cash or ledger mutation.
	_, err := l.Buy(p, m, "NOVA", d(0.04), 1)
	if !errors.Is(err, ledger.ErrBelowMinimum) {
		t.Fatalf("expected ErrBelowMinimum, got %v", err)
	}
	assertDecimal(t, p.Cash, d(100000), "cash must be untouched")
	if len(p.Holdings) != 0 || len(p.Transactions) != 0 {
		t.Error("zero-unit buy must not mutate holdings or transactions")
	}
}

func TestBuy_InsufficientCashLeavesStateUnchanged(t *testing.T) {
	l, _, m := newTestLedger(t)
	p := ledger.NewPortfolio(d(100), model.RegimeFlat, 1)

	_, err := l.Buy(p, m, "BLUE", d(10000), 1)
	if !errors.Is(err, ledger.ErrInsufficientCash) {
		t.Fatalf("expected ErrInsufficientCash, got %v", err)
	}
	assertDecimal(t, p.Cash, d(100), "cash must be untouched")
	if len(p.Holdings) != 0 || len(p.Transactions) != 0 {
		t.Error("rejected buy must not mutate holdings or transactions")
	}
}

// --- Sell ---

func TestSell_CreditsNetProceeds(t *testing.T) {
	l, p, m := newTestLedger(t)
	if _, err := l.Buy(p, m, "BLUE", d(10000), 1); err != nil {
		t.Fatal(err)
	}

	result, err := l.Sell(p, m, "BLUE", d(20), 1)
	if err != nil {
		t.Fatalf("sell failed: %v", err)
	}

	// 20 × 240 = 4800, fee 0.2% = 9.60.
	assertDecimal(t, result.Fee, d(9.60), "sell fee")
	assertDecimal(t, result.Proceeds, d(4790.40), "net proceeds")
	assertDecimal(t, result.RealizedPnL, d(0), "realized pnl at flat price")
	if result.SameMonthLoss {
		t.Error("flat sale must not flag a same-month loss")
	}
	assertDecimal(t, p.Cash, d(94770.40), "cash after sell")
	assertDecimal(t, p.Holdings["BLUE"].Quantity, d(21.6667), "residual quantity")
}

func TestSell_SameMonthLossSignal(t *testing.T) {
	l, p, m := newTestLedger(t)
	if _, err := l.Buy(p, m, "BLUE", d(10000), 4); err != nil {
		t.Fatal(err)
	}

	m.Prices["BLUE"] = d(200) // price dropped since the buy
	result, err := l.Sell(p, m, "BLUE", d(10), 4)
	if err != nil {
		t.Fatal(err)
	}
	assertDecimal(t, result.RealizedPnL, d(-400), "realized loss")
	if !result.SameMonthLoss {
		t.Error("loss on a position opened this month must signal SameMonthLoss")
	}

	// Same loss realized in a later month is not flagged.
	result, err = l.Sell(p, m, "BLUE", d(10), 7)
	if err != nil {
		t.Fatal(err)
	}
	if result.SameMonthLoss {
		t.Error("loss in a later month must not signal SameMonthLoss")
	}
}

func TestSell_RemovesDustPosition(t *testing.T) {
	l, p, m := newTestLedger(t)
	if _, err := l.Buy(p, m, "BLUE", d(10000), 1); err != nil {
		t.Fatal(err)
	}

	h := p.Holdings["BLUE"]
	if _, err := l.Sell(p, m, "BLUE", h.Quantity, 1); err != nil {
		t.Fatal(err)
	}
	if _, still := p.Holdings["BLUE"]; still {
		t.Error("fully sold position must be removed from the ledger")
	}
}

func TestSell_PositionNotFound(t *testing.T) {
	l, p, m := newTestLedger(t)
	if _, err := l.Sell(p, m, "BLUE", d(1), 1); !errors.Is(err, ledger.ErrPositionNotFound) {
		t.Errorf("expected ErrPositionNotFound, got %v", err)
	}
	if _, err := l.Sell(p, m, "NOPE", d(1), 1); !errors.Is(err, ledger.ErrPositionNotFound) {
		t.Errorf("expected ErrPositionNotFound for unknown asset, got %v", err)
	}
}

func TestSell_ExceedsHoldings(t *testing.T) {
	l, p, m := newTestLedger(t)
	if _, err := l.Buy(p, m, "BLUE", d(1000), 1); err != nil {
		t.Fatal(err)
	}
	cashBefore := p.Cash
	if _, err := l.Sell(p, m, "BLUE", d(100), 1); !errors.Is(err, ledger.ErrExceedsHoldings) {
		t.Errorf("expected ErrExceedsHoldings, got %v", err)
	}
	assertDecimal(t, p.Cash, cashBefore, "rejected sell must not move cash")
}

// --- Deposits ---

func TestOpenDeposit_TwelveMonth(t *testing.T) {
	l, p, _ := newTestLedger(t)

	dep, err := l.OpenDeposit(p, 12, d(5000), 1)
	if err != nil {
		t.Fatalf("open deposit failed: %v", err)
	}
	if dep.MaturityMonth != 13 {
		t.Errorf("expected maturity month 13, got %d", dep.MaturityMonth)
	}
	assertDecimal(t, dep.Rate, d(0.06), "12-month rate")
	assertDecimal(t, p.Cash, d(95000), "cash after deposit")
}

func TestOpenDeposit_Validation(t *testing.T) {
	l, p, _ := newTestLedger(t)

	if _, err := l.OpenDeposit(p, 24, d(5000), 1); !errors.Is(err, ledger.ErrInvalidAsset) {
		t.Errorf("expected ErrInvalidAsset for unsupported tenure, got %v", err)
	}
	if _, err := l.OpenDeposit(p, 12, d(4999), 1); !errors.Is(err, ledger.ErrBelowMinimum) {
		t.Errorf("expected ErrBelowMinimum, got %v", err)
	}

	poor := ledger.NewPortfolio(d(1000), model.RegimeFlat, 1)
	if _, err := l.OpenDeposit(poor, 12, d(5000), 1); !errors.Is(err, ledger.ErrInsufficientCash) {
		t.Errorf("expected ErrInsufficientCash, got %v", err)
	}
	assertDecimal(t, poor.Cash, d(1000), "rejected deposit must not move cash")
}

func TestProcessMaturities_CreditsPrincipalPlusInterest(t *testing.T) {
	l, p, _ := newTestLedger(t)
	if _, err := l.OpenDeposit(p, 12, d(5000), 1); err != nil {
		t.Fatal(err)
	}

	// Not yet mature.
	if matured := l.ProcessMaturities(p, 12); len(matured) != 0 {
		t.Fatalf("nothing should mature at month 12, got %d", len(matured))
	}

	matured := l.ProcessMaturities(p, 13)
	if len(matured) != 1 {
		t.Fatalf("expected 1 matured deposit, got %d", len(matured))
	}
	// 5000 × 0.06 × (12/12) = 300.
	assertDecimal(t, matured[0].Interest, d(300), "interest")
	assertDecimal(t, matured[0].Total, d(5300), "total payout")
	assertDecimal(t, p.Cash, d(100300), "cash after maturity")
	if len(p.Deposits) != 0 {
		t.Error("matured deposit must be removed")
	}
}

func TestProcessMaturities_Idempotent(t *testing.T) {
	l, p, _ := newTestLedger(t)
	if _, err := l.OpenDeposit(p, 12, d(5000), 1); err != nil {
		t.Fatal(err)
	}

	first := l.ProcessMaturities(p, 13)
	second := l.ProcessMaturities(p, 13)
	if len(first) != 1 || len(second) != 0 {
		t.Errorf("maturity must settle exactly once: first=%d second=%d", len(first), len(second))
	}
	assertDecimal(t, p.Cash, d(100300), "cash after repeated settlement")
}

func TestProcessMaturities_ThirtySixMonthInterest(t *testing.T) {
	l, p, _ := newTestLedger(t)
	if _, err := l.OpenDeposit(p, 36, d(10000), 2); err != nil {
		t.Fatal(err)
	}

	matured := l.ProcessMaturities(p, 38)
	if len(matured) != 1 {
		t.Fatalf("expected maturity at month 38, got %d", len(matured))
	}
	// 10000 × 0.07 × 3 years = 2100.
	assertDecimal(t, matured[0].Interest, d(2100), "36-month interest")
}

// --- Metrics ---

func TestComputeMetrics_EmptyPortfolio(t *testing.T) {
	l, p, _ := newTestLedger(t)

	m := l.ComputeMetrics(p)
	assertDecimal(t, m.Cash, d(100000), "cash")
	assertDecimal(t, m.InvestedValue, d(0), "invested value")
	assertDecimal(t, m.UnrealizedPnL, d(0), "unrealized pnl")
	assertDecimal(t, m.RiskScore, d(0), "risk score")
	assertDecimal(t, m.TotalValue, d(100000), "total value")
}

func TestComputeMetrics_WithPositions(t *testing.T) {
	l, p, ms := newTestLedger(t)
	if _, err := l.Buy(p, ms, "BLUE", d(10000), 1); err != nil {
		t.Fatal(err)
	}
	if _, err := l.OpenDeposit(p, 12, d(5000), 1); err != nil {
		t.Fatal(err)
	}

	m := l.ComputeMetrics(p)
	// 41.6667 units × 240 = 10000.01 (2 dp), plus 5000 deposit principal.
	assertDecimal(t, m.InvestedValue, d(15000.01), "invested value")
	assertDecimal(t, m.UnrealizedPnL, d(0), "unrealized pnl at cost")
	// Only BLUE is tradable: weighted volatility = 3%.
	assertDecimal(t, m.RiskScore, d(3), "risk score")
	assertDecimal(t, m.TotalValue, p.Cash.Add(d(15000.01)), "total value")
}

func TestSectorsHeld(t *testing.T) {
	l, p, m := newTestLedger(t)
	for _, id := range []string{"BLUE", "NOVA", "CURA"} {
		if _, err := l.Buy(p, m, id, d(2000), 1); err != nil {
			t.Fatal(err)
		}
	}
	if got := len(l.SectorsHeld(p)); got != 3 {
		t.Errorf("expected 3 distinct sectors, got %d", got)
	}
}

func TestTransactions_NewestFirst(t *testing.T) {
	l, p, m := newTestLedger(t)
	if _, err := l.Buy(p, m, "BLUE", d(1000), 1); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Buy(p, m, "NOVA", d(1000), 2); err != nil {
		t.Fatal(err)
	}

	if p.Transactions[0].AssetID != "NOVA" || p.Transactions[1].AssetID != "BLUE" {
		t.Error("transactions must be ordered newest first")
	}
}
