package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"vpn-key-subscription/internal/domain"
	"vpn-key-subscription/internal/domain/model"
	"vpn-key-subscription/internal/domain/ports/repository"
)

var _ repository.OwnerRepository = (*ownerRepo)(nil)

type ownerRepo struct{ pool *pgxpool.Pool }

func NewOwnerRepo(pool *pgxpool.Pool) *ownerRepo {
	return &ownerRepo{pool: pool}
}

func (r *ownerRepo) Save(ctx context.Context, tx repository.Tx, o *model.Owner) error {
	const q = `
INSERT INTO owners (id, telegram_id, username, created_at) VALUES ($1,$2,$3,$4)
ON CONFLICT (id) DO UPDATE SET telegram_id=EXCLUDED.telegram_id, username=EXCLUDED.username;`
	_, err := execSQL(ctx, r.pool, tx, q, o.ID, o.TelegramID, o.Username, o.CreatedAt)
	return wrapErr(err)
}

func (r *ownerRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Owner, error) {
	const q = `SELECT id, telegram_id, username, created_at FROM owners WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	o := &model.Owner{}
	if err := row.Scan(&o.ID, &o.TelegramID, &o.Username, &o.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	return o, nil
}
