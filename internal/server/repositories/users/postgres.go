package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/dumpvault/internal/common"
	"github.com/dmitrijs2005/dumpvault/internal/dbx"
	"github.com/dmitrijs2005/dumpvault/internal/server/models"
)

const accountColumns = `id, email, password_hash, password_set, failed_login_attempts, lockout_until, last_password_change, last_login, created_at`

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanAccount(row *sql.Row) (*models.Account, error) {
	a := &models.Account{}
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.PasswordSet, &a.FailedAttempts,
		&a.LockoutUntil, &a.LastPasswordChange, &a.LastLogin, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM users WHERE email = $1`
	return scanAccount(r.db.QueryRowContext(ctx, query, email))
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM users WHERE id = $1`
	return scanAccount(r.db.QueryRowContext(ctx, query, id))
}

// CompleteSignup upserts by email. The conflict branch only fires for rows
// without a password, so a second signup for the same email affects no row.
func (r *PostgresRepository) CompleteSignup(ctx context.Context, id, email, passwordHash string, now time.Time) (*models.Account, error) {
	query := `
		INSERT INTO users (id, email, password_hash, password_set, failed_login_attempts, lockout_until, last_password_change, last_login)
		VALUES ($1, $2, $3, TRUE, 0, NULL, $4, $4)
		ON CONFLICT (email) DO UPDATE SET
			password_hash = EXCLUDED.password_hash,
			password_set = TRUE,
			failed_login_attempts = 0,
			lockout_until = NULL,
			last_password_change = EXCLUDED.last_password_change,
			last_login = EXCLUDED.last_login
		WHERE users.password_set = FALSE
		RETURNING ` + accountColumns

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, id, email, passwordHash, now))
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrorAlreadyExists
	}
	return a, err
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id, passwordHash string, now time.Time) error {
	query := `
		UPDATE users
		SET password_hash = $2, password_set = TRUE, last_password_change = $3, failed_login_attempts = 0
		WHERE id = $1`
	return r.execOne(ctx, query, id, passwordHash, now)
}

func (r *PostgresRepository) TouchLastLogin(ctx context.Context, id string, now time.Time) error {
	return r.execOne(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, id, now)
}

// RecordFailedAttempt locks the row, increments and applies the threshold in
// one statement, so concurrent failures for the same account never lose an
// increment. An account still locked at now is left untouched and reported
// with zero attempts and its current lockout_until.
func (r *PostgresRepository) RecordFailedAttempt(ctx context.Context, id string, threshold int, now, lockUntil time.Time) (int, *time.Time, error) {
	query := `
		WITH cur AS (
			SELECT id, failed_login_attempts + 1 AS attempts, lockout_until
			FROM users
			WHERE id = $1
			FOR UPDATE
		), upd AS (
			UPDATE users u SET
				failed_login_attempts = CASE WHEN cur.attempts >= $2::int THEN 0 ELSE cur.attempts END,
				lockout_until = CASE WHEN cur.attempts >= $2::int THEN $3::timestamptz ELSE NULL END
			FROM cur
			WHERE u.id = cur.id AND (cur.lockout_until IS NULL OR cur.lockout_until <= $4::timestamptz)
			RETURNING cur.attempts, u.lockout_until
		)
		SELECT attempts, lockout_until FROM upd
		UNION ALL
		SELECT 0, lockout_until FROM cur WHERE lockout_until > $4::timestamptz`

	var attempts int
	var lockedUntil *time.Time
	err := r.db.QueryRowContext(ctx, query, id, threshold, lockUntil, now).Scan(&attempts, &lockedUntil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil, common.ErrorNotFound
		}
		return 0, nil, fmt.Errorf("db error: %w", err)
	}

	return attempts, lockedUntil, nil
}

func (r *PostgresRepository) ResetFailedAttempts(ctx context.Context, id string) error {
	return r.execOne(ctx, `UPDATE users SET failed_login_attempts = 0, lockout_until = NULL WHERE id = $1`, id)
}

func (r *PostgresRepository) GetLockoutUntil(ctx context.Context, id string) (*time.Time, error) {
	var until *time.Time
	err := r.db.QueryRowContext(ctx, `SELECT lockout_until FROM users WHERE id = $1`, id).Scan(&until)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return until, nil
}

// ClearExpiredLockout is conditional on the lockout having elapsed, so a
// lockout set concurrently by another request is never wiped.
func (r *PostgresRepository) ClearExpiredLockout(ctx context.Context, id string, now time.Time) error {
	query := `
		UPDATE users SET failed_login_attempts = 0, lockout_until = NULL
		WHERE id = $1 AND lockout_until IS NOT NULL AND lockout_until <= $2`
	if _, err := r.db.ExecContext(ctx, query, id, now); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
