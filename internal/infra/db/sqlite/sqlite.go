package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"vpn-key-subscription/internal/domain"
	"vpn-key-subscription/internal/domain/ports/repository"
	"vpn-key-subscription/internal/infra/metrics"
)

// Store is a single-writer SQLite ledger. All access goes through one
// connection, so statements and transactions are serialized by database/sql.
type Store struct {
	db *sql.DB
}

var _ repository.TransactionManager = (*Store)(nil)

// Open opens (or creates) the database at dsn and applies the schema.
// ":memory:" gives a private in-memory database.
func Open(dsn string) (*Store, error) {
	memory := dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
	if dsn == ":memory:" {
		dsn = "file::memory:"
	}
	db, err := sql.Open("sqlite", withPragmas(dsn))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A second connection to an in-memory database would see an empty
	// database, and SQLite allows one writer anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if !memory {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func withPragmas(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// ReportStats publishes connection gauges until ctx is done.
func (s *Store) ReportStats(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			st := s.db.Stats()
			metrics.SetLedgerConnections("sqlite", st.OpenConnections, st.Idle, st.InUse)
		}
	}
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS owners (
			id TEXT PRIMARY KEY,
			telegram_id INTEGER NOT NULL DEFAULT 0,
			username TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS credentials (
			uuid TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL REFERENCES owners(id),
			plan TEXT NOT NULL,
			period_months INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1,
			is_trial INTEGER NOT NULL DEFAULT 0,
			config_blob TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_credentials_owner ON credentials(owner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_credentials_active_expiry ON credentials(expires_at) WHERE is_active = 1`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_credentials_one_active_trial
			ON credentials(owner_id) WHERE is_trial = 1 AND is_active = 1`,
		`CREATE TABLE IF NOT EXISTS payments (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL REFERENCES owners(id),
			status TEXT NOT NULL,
			method TEXT NOT NULL,
			fiat_amount INTEGER NOT NULL,
			fiat_currency TEXT NOT NULL,
			currency_code TEXT NOT NULL,
			settlement_address TEXT NOT NULL,
			settlement_amount REAL NOT NULL,
			plan TEXT NOT NULL,
			period_months INTEGER NOT NULL,
			expiry_time INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			completed_at INTEGER,
			settlement_tx_id TEXT,
			issued_credential_id TEXT REFERENCES credentials(uuid),
			CHECK (
				(status = 'completed' AND completed_at IS NOT NULL AND settlement_tx_id IS NOT NULL AND issued_credential_id IS NOT NULL)
				OR (status <> 'completed' AND completed_at IS NULL AND settlement_tx_id IS NULL AND issued_credential_id IS NULL)
			)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_owner ON payments(owner_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_pending ON payments(expiry_time) WHERE status = 'pending'`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_settlement_tx
			ON payments(currency_code, settlement_tx_id) WHERE settlement_tx_id IS NOT NULL`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// WithTx runs fn inside one transaction; the handle passed on is *sql.Tx.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) executor(tx repository.Tx) (executor, error) {
	switch v := tx.(type) {
	case *sql.Tx:
		return v, nil
	case nil:
		return s.db, nil
	default:
		return nil, domain.ErrInvalidExecContext
	}
}

func (s *Store) exec(ctx context.Context, tx repository.Tx, q string, args ...any) (int64, error) {
	ex, err := s.executor(tx)
	if err != nil {
		return 0, err
	}
	res, err := ex.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) queryRow(ctx context.Context, tx repository.Tx, q string, args ...any) (*sql.Row, error) {
	ex, err := s.executor(tx)
	if err != nil {
		return nil, err
	}
	return ex.QueryRowContext(ctx, q, args...), nil
}

func (s *Store) query(ctx context.Context, tx repository.Tx, q string, args ...any) (*sql.Rows, error) {
	ex, err := s.executor(tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, wrapErr(err)
	}
	return rows, nil
}

func wrapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrInvalidExecContext):
		return err
	default:
		return fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
	}
}

// uniqueViolation reports a UNIQUE failure whose message names target
// ("table.column"), or any UNIQUE failure when target is empty.
func uniqueViolation(err error, target string) bool {
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	if se.Code() != sqlite3.SQLITE_CONSTRAINT_UNIQUE && se.Code() != sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
		return false
	}
	return target == "" || strings.Contains(se.Error(), target)
}

// Timestamps are stored as unix milliseconds so range predicates compare
// numerically.
func ts(t time.Time) int64 { return t.UnixMilli() }

func fromTS(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func nullTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
