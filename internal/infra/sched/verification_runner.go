package sched

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"vpn-key-subscription/internal/domain"
	"vpn-key-subscription/internal/infra/metrics"
)

// Ticker runs one verification step. done stops polling for that payment.
type Ticker interface {
	VerifyTick(ctx context.Context, paymentID string) (done bool, err error)
}

// VerificationRunner polls each scheduled payment on its own goroutine.
// The task map only prevents duplicate pollers; the store's pending set is
// the source of truth and is re-read at boot.
type VerificationRunner struct {
	interval time.Duration
	log      *zerolog.Logger

	mu     sync.Mutex
	ctx    context.Context
	ticker Ticker
	tasks  map[string]context.CancelFunc
	queued []string
	wg     sync.WaitGroup
}

func NewVerificationRunner(interval time.Duration, logger *zerolog.Logger) *VerificationRunner {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	l := logger.With().Str("component", "VerificationRunner").Logger()
	return &VerificationRunner{
		interval: interval,
		log:      &l,
		tasks:    make(map[string]context.CancelFunc),
	}
}

// Start binds the runner to ctx and launches every id scheduled so far.
// Ids scheduled before Start are queued.
func (r *VerificationRunner) Start(ctx context.Context, t Ticker) {
	r.mu.Lock()
	r.ctx = ctx
	r.ticker = t
	queued := r.queued
	r.queued = nil
	r.mu.Unlock()

	for _, id := range queued {
		r.Schedule(id)
	}
	r.log.Info().Dur("interval", r.interval).Int("queued", len(queued)).Msg("verification runner started")
}

// Run starts the runner and blocks until ctx is done and every poller has
// returned.
func (r *VerificationRunner) Run(ctx context.Context, t Ticker) error {
	r.Start(ctx, t)
	<-ctx.Done()
	r.wg.Wait()
	r.log.Info().Msg("verification runner stopped")
	return nil
}

func (r *VerificationRunner) Schedule(paymentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ctx == nil {
		r.queued = append(r.queued, paymentID)
		return
	}
	if r.ctx.Err() != nil {
		return
	}
	if _, ok := r.tasks[paymentID]; ok {
		return
	}
	ctx, cancel := context.WithCancel(r.ctx)
	r.tasks[paymentID] = cancel
	metrics.SetVerificationTasks(len(r.tasks))

	r.wg.Add(1)
	go r.poll(ctx, paymentID)
}

// active returns the number of payments currently being polled.
func (r *VerificationRunner) active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

func (r *VerificationRunner) poll(ctx context.Context, id string) {
	defer r.wg.Done()
	defer r.remove(id)

	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			done, err := r.ticker.VerifyTick(ctx, id)
			if err != nil && ctx.Err() == nil {
				ev := r.log.Warn()
				if !errors.Is(err, domain.ErrTransient) {
					ev = r.log.Error()
				}
				ev.Err(err).Str("payment_id", id).Bool("done", done).Msg("verification tick failed")
			}
			if done {
				return
			}
		}
	}
}

func (r *VerificationRunner) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cancel, ok := r.tasks[id]; ok {
		cancel()
		delete(r.tasks, id)
	}
	metrics.SetVerificationTasks(len(r.tasks))
}
