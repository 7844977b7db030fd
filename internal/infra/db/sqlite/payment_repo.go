package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"vpn-key-subscription/internal/domain"
	"vpn-key-subscription/internal/domain/model"
	"vpn-key-subscription/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ s *Store }

func NewPaymentRepo(s *Store) *paymentRepo { return &paymentRepo{s: s} }

const paymentColumns = `id, owner_id, status, method, fiat_amount, fiat_currency, currency_code, settlement_address, settlement_amount, plan, period_months, expiry_time, created_at, updated_at, completed_at, settlement_tx_id, issued_credential_id`

func (r *paymentRepo) Save(ctx context.Context, qx any, p *model.Payment) error {
	const q = `INSERT INTO payments (` + paymentColumns + `) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`
	_, err := r.s.exec(ctx, qx, q,
		p.ID, p.OwnerID, string(p.Status), string(p.Method), p.FiatAmount, p.FiatCurrency, p.CurrencyCode,
		p.SettlementAddress, p.SettlementAmount, p.Plan, p.PeriodMonths, ts(p.ExpiryTime), ts(p.CreatedAt), ts(p.UpdatedAt),
		nullTS(p.CompletedAt), p.SettlementTxID, p.IssuedCredentialID)
	if err != nil {
		if uniqueViolation(err, "payments.id") {
			return domain.ErrAlreadyExists
		}
		return wrapErr(err)
	}
	return nil
}

func (r *paymentRepo) FindByID(ctx context.Context, qx any, id string) (*model.Payment, error) {
	row, err := r.s.queryRow(ctx, qx, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) ListByOwner(ctx context.Context, qx any, ownerID string) ([]*model.Payment, error) {
	return r.list(ctx, qx, `SELECT `+paymentColumns+` FROM payments WHERE owner_id = ? ORDER BY created_at DESC, id DESC`, ownerID)
}

func (r *paymentRepo) ListPending(ctx context.Context, qx any, method model.PaymentMethod) ([]*model.Payment, error) {
	return r.list(ctx, qx, `SELECT `+paymentColumns+` FROM payments WHERE status = 'pending' AND method = ? ORDER BY created_at ASC`, string(method))
}

func (r *paymentRepo) list(ctx context.Context, qx any, q string, args ...any) ([]*model.Payment, error) {
	rows, err := r.s.query(ctx, qx, q, args...)
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
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err)
	}
	return out, nil
}

func (r *paymentRepo) TransitionStatus(ctx context.Context, qx any, id string, from, to model.PaymentStatus, at time.Time) (bool, error) {
	if !from.CanTransitionTo(to) || to == model.PaymentStatusCompleted {
		return false, domain.ErrInvalidTransition
	}
	n, err := r.s.exec(ctx, qx, `UPDATE payments SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), ts(at), id, string(from))
	if err != nil {
		return false, wrapErr(err)
	}
	return n == 1, nil
}

func (r *paymentRepo) Complete(ctx context.Context, qx any, id string, from model.PaymentStatus, txID, credentialID string, at time.Time) (bool, error) {
	if !from.CanTransitionTo(model.PaymentStatusCompleted) {
		return false, domain.ErrInvalidTransition
	}
	const q = `UPDATE payments
		SET status = 'completed', completed_at = ?, updated_at = ?, settlement_tx_id = ?, issued_credential_id = ?
		WHERE id = ? AND status = ?`
	n, err := r.s.exec(ctx, qx, q, ts(at), ts(at), txID, credentialID, id, string(from))
	if err != nil {
		if uniqueViolation(err, "payments.settlement_tx_id") {
			return false, domain.ErrSettlementTxUsed
		}
		return false, wrapErr(err)
	}
	return n == 1, nil
}

func (r *paymentRepo) SettlementTxIDs(ctx context.Context, qx any, currency string, since time.Time) ([]string, error) {
	rows, err := r.s.query(ctx, qx, `SELECT settlement_tx_id FROM payments
		WHERE currency_code = ? AND settlement_tx_id IS NOT NULL AND completed_at >= ?`, currency, ts(since))
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
	return out, wrapErr(rows.Err())
}

func (r *paymentRepo) ExpireOverdue(ctx context.Context, qx any, now time.Time) (int64, error) {
	n, err := r.s.exec(ctx, qx, `UPDATE payments SET status = 'expired', updated_at = ? WHERE status = 'pending' AND expiry_time < ?`,
		ts(now), ts(now))
	if err != nil {
		return 0, wrapErr(err)
	}
	return n, nil
}

func (r *paymentRepo) CountByStatus(ctx context.Context, qx any) (model.PaymentStats, error) {
	rows, err := r.s.query(ctx, qx, `SELECT status, COUNT(*) FROM payments GROUP BY status`)
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
	return stats, wrapErr(rows.Err())
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPayment(row scanner) (*model.Payment, error) {
	var (
		p                        model.Payment
		status, method           string
		expiry, created, updated int64
		completed                sql.NullInt64
		txID, credentialID       sql.NullString
	)
	err := row.Scan(&p.ID, &p.OwnerID, &status, &method, &p.FiatAmount, &p.FiatCurrency, &p.CurrencyCode,
		&p.SettlementAddress, &p.SettlementAmount, &p.Plan, &p.PeriodMonths, &expiry, &created, &updated,
		&completed, &txID, &credentialID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	p.Status = model.PaymentStatus(status)
	p.Method = model.PaymentMethod(method)
	p.ExpiryTime, p.CreatedAt, p.UpdatedAt = fromTS(expiry), fromTS(created), fromTS(updated)
	if completed.Valid {
		t := fromTS(completed.Int64)
		p.CompletedAt = &t
	}
	if txID.Valid {
		p.SettlementTxID = &txID.String
	}
	if credentialID.Valid {
		p.IssuedCredentialID = &credentialID.String
	}
	return &p, nil
}
