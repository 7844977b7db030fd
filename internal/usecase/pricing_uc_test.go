//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"

	"vpn-key-subscription/internal/domain"
	"vpn-key-subscription/internal/usecase"
)

func newPricing(rates *MockRates) usecase.PricingUseCase {
	opts := usecase.PricingOptions{
		FiatCurrency: "RUB",
		FiatUSDRate:  0.01,
		Plans: map[string]map[int]int64{
			"pro":   {1: 900, 12: 9000},
			"basic": {1: 500},
		},
		FallbackUSD: map[string]float64{"ETH": 2000, "usdt_trc20": 1},
	}
	if rates == nil {
		return usecase.NewPricingUseCase(nil, opts, newTestLogger())
	}
	return usecase.NewPricingUseCase(rates, opts, newTestLogger())
}

func TestPricingUseCase_Quote(t *testing.T) {
	ctx := context.Background()

	t.Run("should use the live rate", func(t *testing.T) {
		p := newPricing(&MockRates{USDPriceFunc: func(ctx context.Context, c string) (float64, error) {
			if c != "eth" {
				t.Errorf("expected normalized code, got %q", c)
			}
			return 3000, nil
		}})
		got, err := p.Quote(ctx, "ETH", 9000)
		if err != nil {
			t.Fatal(err)
		}
		// 90 USD / 3000
		if got != 0.03 {
			t.Errorf("expected 0.03, got %v", got)
		}
	})

	t.Run("should fall back when the rate source fails", func(t *testing.T) {
		p := newPricing(&MockRates{USDPriceFunc: func(ctx context.Context, c string) (float64, error) {
			return 0, errors.New("429 too many requests")
		}})
		got, err := p.Quote(ctx, "eth", 9000)
		if err != nil {
			t.Fatal(err)
		}
		if got != 0.045 {
			t.Errorf("expected fallback quote 0.045, got %v", got)
		}
	})

	t.Run("should round to 8 decimal places", func(t *testing.T) {
		p := newPricing(&MockRates{USDPriceFunc: func(ctx context.Context, c string) (float64, error) {
			return 3, nil
		}})
		got, err := p.Quote(ctx, "eth", 100)
		if err != nil {
			t.Fatal(err)
		}
		if got != 0.33333333 {
			t.Errorf("expected 0.33333333, got %v", got)
		}
	})

	t.Run("should report a transient error without any rate", func(t *testing.T) {
		p := newPricing(nil)
		if _, err := p.Quote(ctx, "btc", 100); !errors.Is(err, domain.ErrTransient) {
			t.Errorf("expected transient, got %v", err)
		}
	})
}

func TestPricingUseCase_Price(t *testing.T) {
	p := newPricing(nil)

	if got, err := p.Price("pro", 12); err != nil || got != 9000 {
		t.Errorf("expected 9000, got %d (%v)", got, err)
	}
	if _, err := p.Price("pro", 3); !errors.Is(err, domain.ErrUnsupportedPlan) {
		t.Errorf("expected unsupported plan, got %v", err)
	}

	cat := p.Catalogue()
	if len(cat) != 3 {
		t.Fatalf("expected 3 catalogue rows, got %d", len(cat))
	}
	if cat[0].Plan != "basic" || cat[1].Plan != "pro" || cat[1].PeriodMonths != 1 || cat[2].PeriodMonths != 12 {
		t.Errorf("catalogue is not sorted: %+v", cat)
	}
}
