package catalog_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/finquest/invest-engine/internal/catalog"
	"github.com/finquest/invest-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestDefault_ShapeAndOrder(t *testing.T) {
	cat := catalog.Default()
	assets := cat.All()

	if len(assets) != 9 {
		t.Fatalf("catalog size %d, want 9", len(assets))
	}
	if assets[0].ID != "BLUE" {
		t.Errorf("first asset %s, want BLUE — catalog order drives regime parity", assets[0].ID)
	}
	if assets[len(assets)-1].Class != model.ClassFixedDeposit {
		t.Error("fixed deposit must close the catalog")
	}

	if idx, ok := cat.Index("NOVA"); !ok || idx != 1 {
		t.Errorf("NOVA index %d, want 1", idx)
	}
	if _, ok := cat.Get("NOPE"); ok {
		t.Error("unknown id must not resolve")
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := catalog.New(nil); !errors.Is(err, catalog.ErrEmptyCatalog) {
		t.Errorf("expected ErrEmptyCatalog, got %v", err)
	}

	dup := []model.Asset{
		{ID: "X", Class: model.ClassEquity},
		{ID: "X", Class: model.ClassETF},
	}
	if _, err := catalog.New(dup); !errors.Is(err, catalog.ErrDuplicateAsset) {
		t.Errorf("expected ErrDuplicateAsset, got %v", err)
	}
}

func TestFeeRates(t *testing.T) {
	cases := []struct {
		class string
		rate  decimal.Decimal
	}{
		{model.ClassEquity, d(0.002)},
		{model.ClassFund, decimal.Zero},
		{model.ClassETF, d(0.001)},
		{model.ClassFixedDeposit, decimal.Zero},
	}
	for _, c := range cases {
		if got := catalog.FeeRate(c.class); !got.Equal(c.rate) {
			t.Errorf("fee rate for %s = %s, want %s", c.class, got, c.rate)
		}
	}
}

func TestDepositRates(t *testing.T) {
	if r, ok := catalog.DepositRate(12); !ok || !r.Equal(d(0.06)) {
		t.Errorf("12-month rate %s ok=%v, want 0.06", r, ok)
	}
	if r, ok := catalog.DepositRate(36); !ok || !r.Equal(d(0.07)) {
		t.Errorf("36-month rate %s ok=%v, want 0.07", r, ok)
	}
	if _, ok := catalog.DepositRate(24); ok {
		t.Error("24-month tenure must be unsupported")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	doc := `assets:
  - id: AAA
    name: Alpha Corp
    class: equity
    sector: Technology
    base_price: 100
    volatility: 0.04
  - id: BBB
    name: Beta Fund
    class: fund
    sector: Diversified
    base_price: 50
    volatility: 0.02
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cat, err := catalog.LoadFile(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	a, ok := cat.Get("AAA")
	if !ok {
		t.Fatal("AAA missing from loaded catalog")
	}
	if !a.BasePrice.Equal(d(100)) || a.Sector != "Technology" {
		t.Errorf("unexpected asset %+v", a)
	}

	if _, err := catalog.LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("missing file must error")
	}
}
