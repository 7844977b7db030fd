package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"vpn-key-subscription/internal/domain/model"
	"vpn-key-subscription/internal/domain/ports/repository"
	"vpn-key-subscription/internal/infra/metrics"
)

var _ ReconcilerUseCase = (*reconcilerUC)(nil)

// ReconcilerUseCase holds the set-based maintenance operations: expiry sweep,
// retention cleanup and status statistics.
type ReconcilerUseCase interface {
	Sweep(ctx context.Context) (SweepResult, error)
	Cleanup(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (*Stats, error)
}

type SweepResult struct {
	CredentialsDeactivated int64 `json:"credentialsDeactivated"`
	PaymentsExpired        int64 `json:"paymentsExpired"`
}

type Stats struct {
	Credentials model.CredentialStats `json:"credentials"`
	Payments    model.PaymentStats    `json:"payments"`
}

type reconcilerUC struct {
	creds     repository.CredentialRepository
	payments  repository.PaymentRepository
	retention time.Duration
	now       Clock
	log       *zerolog.Logger
}

func NewReconcilerUseCase(creds repository.CredentialRepository, payments repository.PaymentRepository, retention time.Duration, clock Clock, logger *zerolog.Logger) *reconcilerUC {
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	l := logger.With().Str("component", "ReconcilerUseCase").Logger()
	return &reconcilerUC{creds: creds, payments: payments, retention: retention, now: orSystemClock(clock), log: &l}
}

// Sweep deactivates every expired credential and expires every overdue
// pending payment. Safe to run concurrently with lazy checks.
func (u *reconcilerUC) Sweep(ctx context.Context) (SweepResult, error) {
	now := u.now()
	var res SweepResult

	n, err := u.creds.DeactivateExpired(ctx, repository.NoTX, now)
	if err != nil {
		return res, err
	}
	res.CredentialsDeactivated = n
	metrics.AddCredentialsExpired("sweep", n)

	n, err = u.payments.ExpireOverdue(ctx, repository.NoTX, now)
	if err != nil {
		return res, err
	}
	res.PaymentsExpired = n
	metrics.AddPaymentsExpired("sweep", n)

	if res.CredentialsDeactivated > 0 || res.PaymentsExpired > 0 {
		u.log.Info().
			Int64("credentials", res.CredentialsDeactivated).
			Int64("payments", res.PaymentsExpired).
			Msg("expiry sweep")
	}
	return res, nil
}

// Cleanup deletes inactive trial credentials that expired more than the
// retention period ago and are not referenced by a payment.
func (u *reconcilerUC) Cleanup(ctx context.Context) (int64, error) {
	cutoff := u.now().Add(-u.retention)
	n, err := u.creds.DeleteStaleTrials(ctx, repository.NoTX, cutoff)
	if err != nil {
		return 0, err
	}
	metrics.AddTrialsCleaned(n)
	if n > 0 {
		u.log.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("stale trials removed")
	}
	return n, nil
}

func (u *reconcilerUC) Stats(ctx context.Context) (*Stats, error) {
	cs, err := u.creds.Stats(ctx, repository.NoTX, u.now())
	if err != nil {
		return nil, err
	}
	ps, err := u.payments.CountByStatus(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}

	metrics.SetCredentialCounts(cs.Total, cs.Active, cs.ExpiredActive, cs.Trial, cs.ActiveTrial)
	byStatus := make(map[string]int, len(ps))
	for s, n := range ps {
		byStatus[string(s)] = n
	}
	metrics.SetPaymentsByStatus(byStatus)

	return &Stats{Credentials: cs, Payments: ps}, nil
}
