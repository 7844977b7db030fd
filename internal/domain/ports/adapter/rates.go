package adapter

import "context"

// RateSource returns the USD price of one unit of a settlement currency.
type RateSource interface {
	USDPrice(ctx context.Context, currency string) (float64, error)
}
