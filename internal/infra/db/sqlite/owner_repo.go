package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vpn-key-subscription/internal/domain"
	"vpn-key-subscription/internal/domain/model"
	"vpn-key-subscription/internal/domain/ports/repository"
)

var _ repository.OwnerRepository = (*ownerRepo)(nil)

type ownerRepo struct{ s *Store }

func NewOwnerRepo(s *Store) *ownerRepo { return &ownerRepo{s: s} }

func (r *ownerRepo) Save(ctx context.Context, qx any, o *model.Owner) error {
	const q = `INSERT INTO owners (id, telegram_id, username, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET telegram_id = excluded.telegram_id, username = excluded.username`
	_, err := r.s.exec(ctx, qx, q, o.ID, o.TelegramID, o.Username, ts(o.CreatedAt))
	return wrapErr(err)
}

func (r *ownerRepo) FindByID(ctx context.Context, qx any, id string) (*model.Owner, error) {
	row, err := r.s.queryRow(ctx, qx, `SELECT id, telegram_id, username, created_at FROM owners WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	var (
		o       model.Owner
		created int64
	)
	if err := row.Scan(&o.ID, &o.TelegramID, &o.Username, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	o.CreatedAt = fromTS(created)
	return &o, nil
}
