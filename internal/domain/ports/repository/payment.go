package repository

import (
	"context"
	"time"

	"vpn-key-subscription/internal/domain/model"
)

// PaymentRepository persists payments. Every status change is a conditional
// update keyed on the expected current status; the bool result reports
// whether this caller won the transition.
type PaymentRepository interface {
	Save(ctx context.Context, qx any, p *model.Payment) error
	FindByID(ctx context.Context, qx any, id string) (*model.Payment, error)
	ListByOwner(ctx context.Context, qx any, ownerID string) ([]*model.Payment, error)
	ListPending(ctx context.Context, qx any, method model.PaymentMethod) ([]*model.Payment, error)

	TransitionStatus(ctx context.Context, qx any, id string, from, to model.PaymentStatus, at time.Time) (bool, error)
	// Complete fails with domain.ErrSettlementTxUsed when txID already
	// settled another payment in the same currency.
	Complete(ctx context.Context, qx any, id string, from model.PaymentStatus, txID, credentialID string, at time.Time) (bool, error)
	// SettlementTxIDs lists the transaction ids of currency that completed a
	// payment at or after since.
	SettlementTxIDs(ctx context.Context, qx any, currency string, since time.Time) ([]string, error)

	// ExpireOverdue moves every pending payment whose window closed before
	// now to expired in one statement.
	ExpireOverdue(ctx context.Context, qx any, now time.Time) (int64, error)
	CountByStatus(ctx context.Context, qx any) (model.PaymentStats, error)
}
