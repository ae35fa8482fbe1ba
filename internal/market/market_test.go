package market_test

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

func TestNewState_SeedsBasePrices(t *testing.T) {
	cat := catalog.Default()
	state := market.NewState(cat)

	if !state.Prices["BLUE"].Equal(d(240)) {
		t.Errorf("BLUE seeded at %s, want 240", state.Prices["BLUE"])
	}
	if _, ok := state.Prices["FD"]; ok {
		t.Error("fixed-deposit asset must not carry a price")
	}
}

func TestAdvanceMonth_BullCompounding(t *testing.T) {
	cat := catalog.Default()
	e := market.NewEngine(cat)
	state := market.NewState(cat)
	p := ledger.NewPortfolio(d(100000), model.RegimeBull, 1)

	// BLUE: 3% volatility → low tier, drift 3% scaled by 1.03 = 3.09%/month.
	want := []string{"247.42", "255.07", "262.95"}
	for i, w := range want {
		if _, err := e.AdvanceMonth(state, p, model.RegimeBull); err != nil {
			t.Fatal(err)
		}
		if got := state.Prices["BLUE"].StringFixed(2); got != w {
			t.Errorf("month %d: BLUE at %s, want %s", i+1, got, w)
		}
	}
}

func TestAdvanceMonth_BearHighVolatility(t *testing.T) {
	cat := catalog.Default()
	e := market.NewEngine(cat)
	state := market.NewState(cat)
	p := ledger.NewPortfolio(d(100000), model.RegimeBear, 1)

	if _, err := e.AdvanceMonth(state, p, model.RegimeBear); err != nil {
		t.Fatal(err)
	}
	// NOVA: 8% volatility → high tier, drift −6% scaled by 1.08 = −6.48%.
	if !state.Prices["NOVA"].Equal(d(794.92)) {
		t.Errorf("NOVA at %s, want 794.92", state.Prices["NOVA"])
	}
	// BLUE: low tier, drift −3% scaled by 1.03 = −3.09%.
	if !state.Prices["BLUE"].Equal(d(232.58)) {
		t.Errorf("BLUE at %s, want 232.58", state.Prices["BLUE"])
	}
}

func TestAdvanceMonth_VolatileAlternatesByIndex(t *testing.T) {
	cat := catalog.Default()
	e := market.NewEngine(cat)
	state := market.NewState(cat)
	p := ledger.NewPortfolio(d(100000), model.RegimeVolatile, 1)

	if _, err := e.AdvanceMonth(state, p, model.RegimeVolatile); err != nil {
		t.Fatal(err)
	}
	// Even-index BLUE gains, odd-index NOVA loses.
	if !state.Prices["BLUE"].GreaterThan(d(240)) {
		t.Errorf("even-index asset should gain, BLUE at %s", state.Prices["BLUE"])
	}
	if !state.Prices["NOVA"].LessThan(d(850)) {
		t.Errorf("odd-index asset should lose, NOVA at %s", state.Prices["NOVA"])
	}
}

func TestAdvanceMonth_FlatSmallDrift(t *testing.T) {
	cat := catalog.Default()
	e := market.NewEngine(cat)
	state := market.NewState(cat)
	p := ledger.NewPortfolio(d(100000), model.RegimeFlat, 1)

	if _, err := e.AdvanceMonth(state, p, model.RegimeFlat); err != nil {
		t.Fatal(err)
	}
	// ±0.5% scaled by (1 + volatility).
	if !state.Prices["BLUE"].Equal(d(241.24)) {
		t.Errorf("BLUE at %s, want 241.24", state.Prices["BLUE"])
	}
	if !state.Prices["NOVA"].Equal(d(845.41)) {
		t.Errorf("NOVA at %s, want 845.41", state.Prices["NOVA"])
	}
}

func TestAdvanceMonth_UnknownRegime(t *testing.T) {
	cat := catalog.Default()
	e := market.NewEngine(cat)
	state := market.NewState(cat)
	p := ledger.NewPortfolio(d(100000), model.RegimeFlat, 1)

	before := state.Prices["BLUE"]
	if _, err := e.AdvanceMonth(state, p, "sideways"); !errors.Is(err, market.ErrUnknownRegime) {
		t.Fatalf("expected ErrUnknownRegime, got %v", err)
	}
	if !state.Prices["BLUE"].Equal(before) {
		t.Error("rejected regime must not reprice assets")
	}
}

func TestAdvanceMonth_ChangesOnlyForHeldAssets(t *testing.T) {
	cat := catalog.Default()
	e := market.NewEngine(cat)
	state := market.NewState(cat)
	l := ledger.New(cat)
	p := ledger.NewPortfolio(d(100000), model.RegimeBull, 1)

	if _, err := l.Buy(p, state, "BLUE", d(10000), 1); err != nil {
		t.Fatal(err)
	}

	changes, err := e.AdvanceMonth(state, p, model.RegimeBull)
	if err != nil {
		t.Fatal(err)
	}
	if len(changes) != 1 {
		t.Fatalf("expected change record for the single held asset, got %d", len(changes))
	}

	c := changes[0]
	if c.AssetID != "BLUE" {
		t.Errorf("unexpected asset %s", c.AssetID)
	}
	if !c.DriftPercent.Equal(d(3.09)) {
		t.Errorf("drift %s%%, want 3.09%%", c.DriftPercent)
	}
	// (247.42 − 240) × 41.6667 units = 309.17.
	if !c.PnLDelta.Equal(d(309.17)) {
		t.Errorf("pnl delta %s, want 309.17", c.PnLDelta)
	}
	if !p.Holdings["BLUE"].CurrentPrice.Equal(d(247.42)) {
		t.Errorf("holding price not synced: %s", p.Holdings["BLUE"].CurrentPrice)
	}
}

func TestAdvanceMonth_Deterministic(t *testing.T) {
	cat := catalog.Default()
	e := market.NewEngine(cat)
	regimes := []string{
		model.RegimeBull, model.RegimeVolatile, model.RegimeBear,
		model.RegimeFlat, model.RegimeBull,
	}

	run := func() map[string]decimal.Decimal {
		state := market.NewState(cat)
		p := ledger.NewPortfolio(d(100000), model.RegimeFlat, 1)
		for _, r := range regimes {
			if _, err := e.AdvanceMonth(state, p, r); err != nil {
				t.Fatal(err)
			}
		}
		return state.Prices
	}

	first, second := run(), run()
	for id, price := range first {
		if !second[id].Equal(price) {
			t.Errorf("%s diverged: %s vs %s", id, price, second[id])
		}
	}
}

func TestAdvanceMonth_ReseedsMissingPrice(t *testing.T) {
	cat := catalog.Default()
	e := market.NewEngine(cat)
	state := &model.MarketState{Prices: map[string]decimal.Decimal{}}
	p := ledger.NewPortfolio(d(100000), model.RegimeFlat, 1)

	if _, err := e.AdvanceMonth(state, p, model.RegimeFlat); err != nil {
		t.Fatal(err)
	}
	if state.Prices["BLUE"].IsZero() {
		t.Error("missing price must be reseeded from the base price")
	}
}
