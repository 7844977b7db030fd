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

// Ensure credentialRepo implements repository.CredentialRepository
var _ repository.CredentialRepository = (*credentialRepo)(nil)

type credentialRepo struct{ pool *pgxpool.Pool }

func NewCredentialRepo(pool *pgxpool.Pool) *credentialRepo {
	return &credentialRepo{pool: pool}
}

const credentialColumns = `uuid, owner_id, plan, period_months, created_at, expires_at, is_active, is_trial, config_blob`

func (r *credentialRepo) Save(ctx context.Context, tx repository.Tx, c *model.Credential) error {
	const q = `INSERT INTO credentials (` + credentialColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9);`
	_, err := execSQL(ctx, r.pool, tx, q,
		c.UUID, c.OwnerID, c.Plan, c.PeriodMonths, c.CreatedAt, c.ExpiresAt, c.IsActive, c.IsTrial, c.ConfigBlob)
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err, "idx_credentials_one_active_trial"):
		return domain.ErrAlreadyHasTrial
	case isUniqueViolation(err, ""):
		return domain.ErrAlreadyExists
	default:
		return wrapErr(err)
	}
}

func (r *credentialRepo) FindByUUID(ctx context.Context, tx repository.Tx, uuid string) (*model.Credential, error) {
	const q = `SELECT ` + credentialColumns + ` FROM credentials WHERE uuid=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, uuid)
	if err != nil {
		return nil, err
	}
	return scanCredential(row)
}

func (r *credentialRepo) FindActiveTrial(ctx context.Context, tx repository.Tx, ownerID string) (*model.Credential, error) {
	const q = `SELECT ` + credentialColumns + ` FROM credentials WHERE owner_id=$1 AND is_trial AND is_active LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, ownerID)
	if err != nil {
		return nil, err
	}
	return scanCredential(row)
}

func (r *credentialRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID string) ([]*model.Credential, error) {
	const q = `SELECT ` + credentialColumns + ` FROM credentials WHERE owner_id=$1 ORDER BY created_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, ownerID)
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
	if rows.Err() != nil {
		return nil, domain.ErrOperationFailed
	}
	return out, nil
}

func (r *credentialRepo) DeactivateIfExpired(ctx context.Context, tx repository.Tx, uuid string, now time.Time) (bool, error) {
	const q = `UPDATE credentials SET is_active=FALSE WHERE uuid=$1 AND is_active AND expires_at <= $2;`
	return r.affectedOne(ctx, tx, q, uuid, now)
}

func (r *credentialRepo) DeactivateExpiredByOwner(ctx context.Context, tx repository.Tx, ownerID string, now time.Time) (int64, error) {
	const q = `UPDATE credentials SET is_active=FALSE WHERE owner_id=$1 AND is_active AND expires_at <= $2;`
	return r.affected(ctx, tx, q, ownerID, now)
}

func (r *credentialRepo) DeactivateExpired(ctx context.Context, tx repository.Tx, now time.Time) (int64, error) {
	const q = `UPDATE credentials SET is_active=FALSE WHERE is_active AND expires_at <= $1;`
	return r.affected(ctx, tx, q, now)
}

func (r *credentialRepo) Deactivate(ctx context.Context, tx repository.Tx, uuid string) (bool, error) {
	const q = `UPDATE credentials SET is_active=FALSE WHERE uuid=$1 AND is_active;`
	return r.affectedOne(ctx, tx, q, uuid)
}

func (r *credentialRepo) DeleteStaleTrials(ctx context.Context, tx repository.Tx, cutoff time.Time) (int64, error) {
	const q = `
DELETE FROM credentials c
WHERE c.is_trial AND NOT c.is_active AND c.expires_at < $1
  AND NOT EXISTS (SELECT 1 FROM payments p WHERE p.issued_credential_id = c.uuid);`
	return r.affected(ctx, tx, q, cutoff)
}

func (r *credentialRepo) Stats(ctx context.Context, tx repository.Tx, now time.Time) (model.CredentialStats, error) {
	const q = `
SELECT
  COUNT(*),
  COUNT(*) FILTER (WHERE is_active),
  COUNT(*) FILTER (WHERE is_active AND expires_at <= $1),
  COUNT(*) FILTER (WHERE is_trial),
  COUNT(*) FILTER (WHERE is_trial AND is_active)
FROM credentials;`
	var s model.CredentialStats
	row, err := pickRow(ctx, r.pool, tx, q, now)
	if err != nil {
		return s, err
	}
	if err := row.Scan(&s.Total, &s.Active, &s.ExpiredActive, &s.Trial, &s.ActiveTrial); err != nil {
		return s, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	s.Inactive = s.Total - s.Active
	return s, nil
}

func (r *credentialRepo) affected(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (int64, error) {
	cmd, err := execSQL(ctx, r.pool, tx, q, args...)
	if err != nil {
		return 0, wrapErr(err)
	}
	return cmd.RowsAffected(), nil
}

func (r *credentialRepo) affectedOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (bool, error) {
	n, err := r.affected(ctx, tx, q, args...)
	return n == 1, err
}

func scanCredential(row pgx.Row) (*model.Credential, error) {
	c := &model.Credential{}
	err := row.Scan(&c.UUID, &c.OwnerID, &c.Plan, &c.PeriodMonths, &c.CreatedAt, &c.ExpiresAt, &c.IsActive, &c.IsTrial, &c.ConfigBlob)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCredentialMissing
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	return c, nil
}
