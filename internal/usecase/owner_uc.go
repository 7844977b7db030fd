package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"vpn-key-subscription/internal/domain"
	"vpn-key-subscription/internal/domain/model"
	"vpn-key-subscription/internal/domain/ports/repository"
)

var _ OwnerUseCase = (*ownerUC)(nil)

// OwnerUseCase maintains the owner directory. The payment core only checks
// existence and resolves chat ids through it.
type OwnerUseCase interface {
	Register(ctx context.Context, id string, telegramID int64, username string) (*model.Owner, error)
	Get(ctx context.Context, id string) (*model.Owner, error)
}

type ownerUC struct {
	owners repository.OwnerRepository
	log    *zerolog.Logger
}

func NewOwnerUseCase(owners repository.OwnerRepository, logger *zerolog.Logger) *ownerUC {
	l := logger.With().Str("component", "OwnerUseCase").Logger()
	return &ownerUC{owners: owners, log: &l}
}

func (u *ownerUC) Register(ctx context.Context, id string, telegramID int64, username string) (*model.Owner, error) {
	o, err := model.NewOwner(strings.TrimSpace(id), telegramID, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if err := u.owners.Save(ctx, repository.NoTX, o); err != nil {
		return nil, err
	}
	u.log.Info().Str("owner_id", o.ID).Int64("telegram_id", o.TelegramID).Msg("owner registered")
	return o, nil
}

func (u *ownerUC) Get(ctx context.Context, id string) (*model.Owner, error) {
	return findOwner(ctx, u.owners, id)
}

// findOwner maps a missing row to ErrUnknownOwner so callers report a
// validation failure instead of a 404 on the resource they were creating.
func findOwner(ctx context.Context, owners repository.OwnerRepository, id string) (*model.Owner, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.ErrUnknownOwner
	}
	o, err := owners.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnknownOwner
		}
		return nil, err
	}
	return o, nil
}
