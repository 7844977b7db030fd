package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"vpn-key-subscription/internal/domain"
	"vpn-key-subscription/internal/domain/ports/adapter"
)

var _ PricingUseCase = (*pricingUC)(nil)

// PricingUseCase answers "what does this plan cost" and "how much of a
// currency settles it".
type PricingUseCase interface {
	FiatCurrency() string
	Price(plan string, periodMonths int) (int64, error)
	// Quote converts a fiat amount to units of currency, rounded to 8
	// decimal places.
	Quote(ctx context.Context, currency string, fiat int64) (float64, error)
	Catalogue() []PlanPrice
}

type PlanPrice struct {
	Plan         string `json:"plan"`
	PeriodMonths int    `json:"periodMonths"`
	Price        int64  `json:"price"`
	Currency     string `json:"currency"`
}

type PricingOptions struct {
	FiatCurrency string
	// FiatUSDRate is USD per one unit of the fiat currency.
	FiatUSDRate float64
	Plans       map[string]map[int]int64
	// FallbackUSD is USD per unit of a settlement currency, used when the
	// rate source fails or is not configured.
	FallbackUSD map[string]float64
	RateTimeout time.Duration
}

type pricingUC struct {
	rates adapter.RateSource // nil means fallback rates only
	opts  PricingOptions
	log   *zerolog.Logger
}

func NewPricingUseCase(rates adapter.RateSource, opts PricingOptions, logger *zerolog.Logger) *pricingUC {
	if opts.RateTimeout <= 0 {
		opts.RateTimeout = 5 * time.Second
	}
	fb := make(map[string]float64, len(opts.FallbackUSD))
	for k, v := range opts.FallbackUSD {
		fb[strings.ToLower(k)] = v
	}
	opts.FallbackUSD = fb
	l := logger.With().Str("component", "PricingUseCase").Logger()
	return &pricingUC{rates: rates, opts: opts, log: &l}
}

func (p *pricingUC) FiatCurrency() string { return p.opts.FiatCurrency }

func (p *pricingUC) Price(plan string, periodMonths int) (int64, error) {
	periods, ok := p.opts.Plans[plan]
	if !ok {
		return 0, fmt.Errorf("%w: plan %q", domain.ErrUnsupportedPlan, plan)
	}
	price, ok := periods[periodMonths]
	if !ok || price <= 0 {
		return 0, fmt.Errorf("%w: %s for %d month(s)", domain.ErrUnsupportedPlan, plan, periodMonths)
	}
	return price, nil
}

func (p *pricingUC) Quote(ctx context.Context, currency string, fiat int64) (float64, error) {
	code := strings.ToLower(currency)
	usd := float64(fiat) * p.opts.FiatUSDRate
	if usd <= 0 {
		return 0, fmt.Errorf("%w: fiat amount converts to %v USD", domain.ErrInvalidArgument, usd)
	}

	perUnit := p.usdPerUnit(ctx, code)
	if perUnit <= 0 {
		return 0, fmt.Errorf("%w: no rate available for %s", domain.ErrTransient, code)
	}
	return round8(usd / perUnit), nil
}

// usdPerUnit prefers the live source and falls back to the configured rate.
// It returns 0 when neither has one.
func (p *pricingUC) usdPerUnit(ctx context.Context, code string) float64 {
	if p.rates != nil {
		rctx, cancel := context.WithTimeout(ctx, p.opts.RateTimeout)
		defer cancel()
		v, err := p.rates.USDPrice(rctx, code)
		if err == nil && v > 0 {
			return v
		}
		p.log.Warn().Err(err).Str("currency", code).Msg("rate lookup failed; using fallback")
	}
	return p.opts.FallbackUSD[code]
}

func (p *pricingUC) Catalogue() []PlanPrice {
	var out []PlanPrice
	for plan, periods := range p.opts.Plans {
		for months, price := range periods {
			out = append(out, PlanPrice{Plan: plan, PeriodMonths: months, Price: price, Currency: p.opts.FiatCurrency})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Plan != out[j].Plan {
			return out[i].Plan < out[j].Plan
		}
		return out[i].PeriodMonths < out[j].PeriodMonths
	})
	return out
}

func round8(v float64) float64 { return math.Round(v*1e8) / 1e8 }
