package redis

import (
	"context"
	"encoding/json"
	"time"

	"vpn-key-subscription/internal/domain/model"
	"vpn-key-subscription/internal/domain/ports/repository"
	"vpn-key-subscription/internal/infra/metrics"
)

var _ repository.OwnerRepository = (*ownerRepoCacheDecorator)(nil)

// ownerRepoCacheDecorator caches owner lookups, which run on every payment
// creation, trial grant and notification.
type ownerRepoCacheDecorator struct {
	inner repository.OwnerRepository
	cache RedisClient
	ttl   time.Duration
}

func NewOwnerRepoCache(inner repository.OwnerRepository, cache RedisClient, ttl time.Duration) repository.OwnerRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ownerRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

func ownerKey(id string) string { return "owner:id:" + id }

func (d *ownerRepoCacheDecorator) Save(ctx context.Context, qx any, o *model.Owner) error {
	_ = d.cache.Del(ctx, ownerKey(o.ID))
	return d.inner.Save(ctx, qx, o)
}

func (d *ownerRepoCacheDecorator) FindByID(ctx context.Context, qx any, id string) (*model.Owner, error) {
	key := ownerKey(id)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var o model.Owner
		if json.Unmarshal([]byte(val), &o) == nil {
			metrics.IncCacheRequest("owner", "hit")
			return &o, nil
		}
	}

	metrics.IncCacheRequest("owner", "miss")
	o, err := d.inner.FindByID(ctx, qx, id)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(o); err == nil {
		_ = d.cache.Set(ctx, key, b, d.ttl)
	}
	return o, nil
}
