package repository

import (
	"context"

	"vpn-key-subscription/internal/domain/model"
)

type OwnerRepository interface {
	Save(ctx context.Context, qx any, o *model.Owner) error
	FindByID(ctx context.Context, qx any, id string) (*model.Owner, error)
}
