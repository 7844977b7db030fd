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

var _ repository.CredentialRepository = (*credentialRepo)(nil)

type credentialRepo struct{ s *Store }

func NewCredentialRepo(s *Store) *credentialRepo { return &credentialRepo{s: s} }

const credentialColumns = `uuid, owner_id, plan, period_months, created_at, expires_at, is_active, is_trial, config_blob`

func (r *credentialRepo) Save(ctx context.Context, qx any, c *model.Credential) error {
	const q = `INSERT INTO credentials (` + credentialColumns + `) VALUES (?,?,?,?,?,?,?,?,?)`
	_, err := r.s.exec(ctx, qx, q, c.UUID, c.OwnerID, c.Plan, c.PeriodMonths, ts(c.CreatedAt), ts(c.ExpiresAt),
		boolInt(c.IsActive), boolInt(c.IsTrial), c.ConfigBlob)
	switch {
	case err == nil:
		return nil
	case uniqueViolation(err, "credentials.owner_id"):
		return domain.ErrAlreadyHasTrial
	case uniqueViolation(err, ""):
		return domain.ErrAlreadyExists
	default:
		return wrapErr(err)
	}
}

func (r *credentialRepo) FindByUUID(ctx context.Context, qx any, uuid string) (*model.Credential, error) {
	row, err := r.s.queryRow(ctx, qx, `SELECT `+credentialColumns+` FROM credentials WHERE uuid = ?`, uuid)
	if err != nil {
		return nil, err
	}
	return scanCredential(row)
}

func (r *credentialRepo) FindActiveTrial(ctx context.Context, qx any, ownerID string) (*model.Credential, error) {
	row, err := r.s.queryRow(ctx, qx,
		`SELECT `+credentialColumns+` FROM credentials WHERE owner_id = ? AND is_trial = 1 AND is_active = 1 LIMIT 1`, ownerID)
	if err != nil {
		return nil, err
	}
	return scanCredential(row)
}

func (r *credentialRepo) ListByOwner(ctx context.Context, qx any, ownerID string) ([]*model.Credential, error) {
	rows, err := r.s.query(ctx, qx, `SELECT `+credentialColumns+` FROM credentials WHERE owner_id = ? ORDER BY created_at DESC, uuid`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, wrapErr(rows.Err())
}

func (r *credentialRepo) DeactivateIfExpired(ctx context.Context, qx any, uuid string, now time.Time) (bool, error) {
	n, err := r.s.exec(ctx, qx, `UPDATE credentials SET is_active = 0 WHERE uuid = ? AND is_active = 1 AND expires_at <= ?`, uuid, ts(now))
	return n == 1, wrapErr(err)
}

func (r *credentialRepo) DeactivateExpiredByOwner(ctx context.Context, qx any, ownerID string, now time.Time) (int64, error) {
	n, err := r.s.exec(ctx, qx, `UPDATE credentials SET is_active = 0 WHERE owner_id = ? AND is_active = 1 AND expires_at <= ?`, ownerID, ts(now))
	return n, wrapErr(err)
}

func (r *credentialRepo) DeactivateExpired(ctx context.Context, qx any, now time.Time) (int64, error) {
	n, err := r.s.exec(ctx, qx, `UPDATE credentials SET is_active = 0 WHERE is_active = 1 AND expires_at <= ?`, ts(now))
	return n, wrapErr(err)
}

func (r *credentialRepo) Deactivate(ctx context.Context, qx any, uuid string) (bool, error) {
	n, err := r.s.exec(ctx, qx, `UPDATE credentials SET is_active = 0 WHERE uuid = ? AND is_active = 1`, uuid)
	return n == 1, wrapErr(err)
}

func (r *credentialRepo) DeleteStaleTrials(ctx context.Context, qx any, cutoff time.Time) (int64, error) {
	const q = `DELETE FROM credentials
		WHERE is_trial = 1 AND is_active = 0 AND expires_at < ?
		  AND NOT EXISTS (SELECT 1 FROM payments p WHERE p.issued_credential_id = credentials.uuid)`
	n, err := r.s.exec(ctx, qx, q, ts(cutoff))
	return n, wrapErr(err)
}

func (r *credentialRepo) Stats(ctx context.Context, qx any, now time.Time) (model.CredentialStats, error) {
	const q = `SELECT
		COUNT(*),
		COALESCE(SUM(is_active), 0),
		COALESCE(SUM(CASE WHEN is_active = 1 AND expires_at <= ? THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(is_trial), 0),
		COALESCE(SUM(CASE WHEN is_trial = 1 AND is_active = 1 THEN 1 ELSE 0 END), 0)
		FROM credentials`
	var s model.CredentialStats
	row, err := r.s.queryRow(ctx, qx, q, ts(now))
	if err != nil {
		return s, err
	}
	if err := row.Scan(&s.Total, &s.Active, &s.ExpiredActive, &s.Trial, &s.ActiveTrial); err != nil {
		return s, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	s.Inactive = s.Total - s.Active
	return s, nil
}

func scanCredential(row scanner) (*model.Credential, error) {
	var (
		c                model.Credential
		created, expires int64
	)
	err := row.Scan(&c.UUID, &c.OwnerID, &c.Plan, &c.PeriodMonths, &created, &expires, &c.IsActive, &c.IsTrial, &c.ConfigBlob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCredentialMissing
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	c.CreatedAt, c.ExpiresAt = fromTS(created), fromTS(expires)
	return &c, nil
}
