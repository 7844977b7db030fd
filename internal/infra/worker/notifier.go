package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"vpn-key-subscription/internal/domain/ports/adapter"
	"vpn-key-subscription/internal/infra/metrics"
)

var _ adapter.Notifier = (*AsyncNotifier)(nil)

// AsyncNotifier hands notifications to the pool so that a slow or failing
// delivery channel never holds up a state transition. Delivery is best
// effort: failures are logged and counted, never returned.
type AsyncNotifier struct {
	pool    *Pool
	inner   adapter.Notifier
	timeout time.Duration
	log     *zerolog.Logger
}

func NewAsyncNotifier(pool *Pool, inner adapter.Notifier, timeout time.Duration, logger *zerolog.Logger) *AsyncNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	l := logger.With().Str("component", "AsyncNotifier").Logger()
	return &AsyncNotifier{pool: pool, inner: inner, timeout: timeout, log: &l}
}

func (a *AsyncNotifier) Notify(_ context.Context, n adapter.Notification) error {
	kind := string(n.Outcome)
	err := a.pool.Submit(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()
		if err := a.inner.Notify(ctx, n); err != nil {
			metrics.IncNotification(kind, "failed")
			a.log.Warn().Err(err).Str("owner_id", n.OwnerID).Str("outcome", kind).Msg("notification delivery failed")
			return nil
		}
		metrics.IncNotification(kind, "sent")
		return nil
	})
	if err != nil {
		metrics.IncNotification(kind, "dropped")
		a.log.Warn().Err(err).Str("owner_id", n.OwnerID).Str("outcome", kind).Msg("notification dropped")
	}
	return nil
}
