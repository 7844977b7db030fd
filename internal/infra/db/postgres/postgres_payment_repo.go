package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"vpn-key-subscription/internal/domain"
	"vpn-key-subscription/internal/domain/model"
	"vpn-key-subscription/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, owner_id, status, method, fiat_amount, fiat_currency, currency_code, settlement_address, settlement_amount, plan, period_months, expiry_time, created_at, updated_at, completed_at, settlement_tx_id, issued_credential_id`

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (` + paymentColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17);`

	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.OwnerID, string(p.Status), string(p.Method), p.FiatAmount, p.FiatCurrency, p.CurrencyCode,
		p.SettlementAddress, p.SettlementAmount, p.Plan, p.PeriodMonths, p.ExpiryTime, p.CreatedAt, p.UpdatedAt,
		p.CompletedAt, p.SettlementTxID, p.IssuedCredentialID)
	if err != nil {
		if isUniqueViolation(err, "payments_pkey") {
			return domain.ErrAlreadyExists
		}
		return wrapErr(err)
	}
	return nil
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", id)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID string) ([]*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE owner_id=$1 ORDER BY created_at DESC;`
	return r.list(ctx, tx, q, ownerID)
}

func (r *paymentRepo) ListPending(ctx context.Context, tx repository.Tx, method model.PaymentMethod) ([]*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE status='pending' AND method=$1 ORDER BY created_at ASC;`
	return r.list(ctx, tx, q, string(method))
}

func (r *paymentRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Payment, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if rows.Err() != nil {
		return nil, domain.ErrOperationFailed
	}
	return out, nil
}

func (r *paymentRepo) TransitionStatus(ctx context.Context, tx repository.Tx, id string, from, to model.PaymentStatus, at time.Time) (bool, error) {
	if !from.CanTransitionTo(to) || to == model.PaymentStatusCompleted {
		return false, domain.ErrInvalidTransition
	}
	const q = `UPDATE payments SET status=$3, updated_at=$4 WHERE id=$1 AND status=$2;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(from), string(to), at)
	if err != nil {
		return false, wrapErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *paymentRepo) Complete(ctx context.Context, tx repository.Tx, id string, from model.PaymentStatus, txID, credentialID string, at time.Time) (bool, error) {
	if !from.CanTransitionTo(model.PaymentStatusCompleted) {
		return false, domain.ErrInvalidTransition
	}
	const q = `
UPDATE payments
SET status='completed', completed_at=$3, updated_at=$3, settlement_tx_id=$4, issued_credential_id=$5
WHERE id=$1 AND status=$2;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(from), at, txID, credentialID)
	if err != nil {
		if isUniqueViolation(err, "idx_payments_settlement_tx") {
			return false, domain.ErrSettlementTxUsed
		}
		return false, wrapErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *paymentRepo) SettlementTxIDs(ctx context.Context, tx repository.Tx, currency string, since time.Time) ([]string, error) {
	const q = `
SELECT settlement_tx_id FROM payments
WHERE currency_code=$1 AND settlement_tx_id IS NOT NULL AND completed_at >= $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, currency, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
		}
		out = append(out, id)
	}
	if rows.Err() != nil {
		return nil, domain.ErrOperationFailed
	}
	return out, nil
}

func (r *paymentRepo) ExpireOverdue(ctx context.Context, tx repository.Tx, now time.Time) (int64, error) {
	const q = `UPDATE payments SET status='expired', updated_at=$1 WHERE status='pending' AND expiry_time < $1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, now)
	if err != nil {
		return 0, wrapErr(err)
	}
	return cmd.RowsAffected(), nil
}

func (r *paymentRepo) CountByStatus(ctx context.Context, tx repository.Tx) (model.PaymentStats, error) {
	rows, err := queryRows(ctx, r.pool, tx, `SELECT status, COUNT(*) FROM payments GROUP BY status;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := model.PaymentStats{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
		}
		stats[model.PaymentStatus(status)] = n
	}
	if rows.Err() != nil {
		return nil, domain.ErrOperationFailed
	}
	return stats, nil
}

func scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	var status, method string
	err := row.Scan(&p.ID, &p.OwnerID, &status, &method, &p.FiatAmount, &p.FiatCurrency, &p.CurrencyCode,
		&p.SettlementAddress, &p.SettlementAmount, &p.Plan, &p.PeriodMonths, &p.ExpiryTime, &p.CreatedAt, &p.UpdatedAt,
		&p.CompletedAt, &p.SettlementTxID, &p.IssuedCredentialID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	p.Status = model.PaymentStatus(status)
	p.Method = model.PaymentMethod(method)
	return p, nil
}
