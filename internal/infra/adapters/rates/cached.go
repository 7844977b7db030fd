package rates

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"vpn-key-subscription/internal/domain/ports/adapter"
	"vpn-key-subscription/internal/infra/metrics"
)

var _ adapter.RateSource = (*Cached)(nil)

// Cached keeps recent quotes for ttl and collapses concurrent lookups for
// the same currency into one upstream call.
type Cached struct {
	inner adapter.RateSource
	cache *expirable.LRU[string, float64]
	group singleflight.Group
}

func NewCached(inner adapter.RateSource, size int, ttl time.Duration) *Cached {
	if size <= 0 {
		size = 64
	}
	return &Cached{
		inner: inner,
		cache: expirable.NewLRU[string, float64](size, nil, ttl),
	}
}

func (c *Cached) USDPrice(ctx context.Context, currency string) (float64, error) {
	if v, ok := c.cache.Get(currency); ok {
		metrics.IncCacheRequest("rates", "hit")
		return v, nil
	}
	metrics.IncCacheRequest("rates", "miss")

	v, err, _ := c.group.Do(currency, func() (interface{}, error) {
		price, err := c.inner.USDPrice(ctx, currency)
		if err != nil {
			return 0.0, err
		}
		c.cache.Add(currency, price)
		return price, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}
