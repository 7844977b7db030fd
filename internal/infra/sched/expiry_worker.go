package sched

import (
	"context"
	"time"

	"vpn-key-subscription/internal/infra/redis"
	"vpn-key-subscription/internal/usecase"

	"github.com/rs/zerolog"
)

// ExpiryWorker periodically deactivates expired credentials and expires
// overdue pending payments.
type ExpiryWorker struct {
	job periodicJob
}

func NewExpiryWorker(interval time.Duration, uc usecase.ReconcilerUseCase, locker redis.Locker, logger *zerolog.Logger) *ExpiryWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	l := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{job: periodicJob{
		name:     "expiry_sweep",
		interval: interval,
		locker:   locker,
		lockTTL:  time.Minute,
		log:      &l,
		fn: func(ctx context.Context) error {
			_, err := uc.Sweep(ctx)
			return err
		},
	}}
}

func (w *ExpiryWorker) Run(ctx context.Context) error { return w.job.run(ctx) }

// RetentionWorker deletes stale trial credentials once per interval.
type RetentionWorker struct {
	job periodicJob
}

func NewRetentionWorker(interval time.Duration, uc usecase.ReconcilerUseCase, locker redis.Locker, logger *zerolog.Logger) *RetentionWorker {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	l := logger.With().Str("component", "RetentionWorker").Logger()
	return &RetentionWorker{job: periodicJob{
		name:     "trial_cleanup",
		interval: interval,
		locker:   locker,
		lockTTL:  5 * time.Minute,
		log:      &l,
		fn: func(ctx context.Context) error {
			_, err := uc.Cleanup(ctx)
			return err
		},
	}}
}

func (w *RetentionWorker) Run(ctx context.Context) error { return w.job.run(ctx) }
