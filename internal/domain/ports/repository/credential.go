package repository

import (
	"context"
	"time"

	"vpn-key-subscription/internal/domain/model"
)

type CredentialRepository interface {
	// Save inserts a new credential. A second active trial for the same owner
	// fails with domain.ErrAlreadyHasTrial.
	Save(ctx context.Context, qx any, c *model.Credential) error
	FindByUUID(ctx context.Context, qx any, uuid string) (*model.Credential, error)
	ListByOwner(ctx context.Context, qx any, ownerID string) ([]*model.Credential, error)
	FindActiveTrial(ctx context.Context, qx any, ownerID string) (*model.Credential, error)

	// DeactivateIfExpired is the lazy check: it flips one row only while it is
	// still active and expired at now.
	DeactivateIfExpired(ctx context.Context, qx any, uuid string, now time.Time) (bool, error)
	DeactivateExpiredByOwner(ctx context.Context, qx any, ownerID string, now time.Time) (int64, error)
	DeactivateExpired(ctx context.Context, qx any, now time.Time) (int64, error)
	Deactivate(ctx context.Context, qx any, uuid string) (bool, error)

	// DeleteStaleTrials removes inactive trial rows that expired before
	// cutoff and are not referenced by a payment.
	DeleteStaleTrials(ctx context.Context, qx any, cutoff time.Time) (int64, error)
	Stats(ctx context.Context, qx any, now time.Time) (model.CredentialStats, error)
}
