package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"vpn-key-subscription/internal/infra/metrics"
	red "vpn-key-subscription/internal/infra/redis"
)

// periodicJob runs fn once at start and then every interval. With a locker
// set, a run is skipped while another replica holds the job's lock.
type periodicJob struct {
	name     string
	interval time.Duration
	locker   red.Locker
	lockTTL  time.Duration
	log      *zerolog.Logger
	fn       func(ctx context.Context) error
}

func (j *periodicJob) run(ctx context.Context) error {
	j.log.Info().Dur("interval", j.interval).Msg("starting")
	j.once(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			j.log.Info().Msg("stopping")
			return nil
		case <-ticker.C:
			j.once(ctx)
		}
	}
}

func (j *periodicJob) once(ctx context.Context) {
	if j.locker != nil {
		key := "lock:job:" + j.name
		token, err := j.locker.TryLock(ctx, key, j.lockTTL)
		if errors.Is(err, red.ErrLockHeld) {
			metrics.IncJobRun(j.name, "skipped")
			j.log.Debug().Msg("another replica holds the lock; skipping run")
			return
		}
		if err != nil {
			// redis unavailable: run unlocked
			j.log.Warn().Err(err).Msg("lock unavailable")
		} else {
			defer func() {
				if err := j.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
					j.log.Warn().Err(err).Msg("unlock failed")
				}
			}()
		}
	}

	if err := j.fn(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		metrics.IncJobRun(j.name, "error")
		j.log.Error().Err(err).Msg("run failed")
		return
	}
	metrics.IncJobRun(j.name, "ok")
}
