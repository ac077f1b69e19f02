package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sparelink/parts-marketplace/internal/auth"
	"github.com/sparelink/parts-marketplace/internal/model"
)

// AccountRepo reads and mutates the three account tables (admins, suppliers,
// app_users).  The table name is always derived from model.AccountClass, a
// closed enum, never from request input.  Counter mutations run inside a
// transaction with a row lock and commit together with their login-log row,
// so two concurrent failures cannot double-apply a lockout and no counter
// change is ever visible without its audit record.
type AccountRepo struct{ DB *sql.DB }

func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{DB: db} }

const accountCols = "id, email, password_hash, role_id, is_active, failed_attempts, locked_until, created_at, updated_at"

func scanAccount(row *sql.Row, class model.AccountClass) (model.Account, error) {
	var (
		a           model.Account
		roleID      sql.NullInt64
		lockedUntil sql.NullTime
	)
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &roleID, &a.IsActive,
		&a.FailedAttempts, &lockedUntil, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return model.Account{}, err
	}
	a.Class = class
	if roleID.Valid {
		a.RoleID = uint64(roleID.Int64)
	}
	if lockedUntil.Valid {
		t := lockedUntil.Time
		a.LockedUntil = &t
	}
	return a, nil
}

// GetByEmail fetches an account by normalized email within one class.
func (r *AccountRepo) GetByEmail(ctx context.Context, class model.AccountClass, email string) (model.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	q := fmt.Sprintf("SELECT %s FROM %s WHERE email=? LIMIT 1", accountCols, class.Table())
	return scanAccount(r.DB.QueryRowContext(ctx, q, email), class)
}

// GetByID fetches an account by id within one class.
func (r *AccountRepo) GetByID(ctx context.Context, class model.AccountClass, id uint64) (model.Account, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE id=? LIMIT 1", accountCols, class.Table())
	return scanAccount(r.DB.QueryRowContext(ctx, q, id), class)
}

// RecordFailure applies the lockout failure transition for one wrong
// password and writes the attempt's login-log row in the same transaction.
// The row is locked while the counter is re-read so concurrent failures
// serialize instead of both deciding the lockout independently.  Returns the
// new counter value and lock expiry (nil while still unlocked).
func (r *AccountRepo) RecordFailure(ctx context.Context, class model.AccountClass, id uint64, policy auth.LockoutPolicy, logRow model.LoginLog) (int, *time.Time, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var failed int
	q := fmt.Sprintf("SELECT failed_attempts FROM %s WHERE id=? FOR UPDATE", class.Table())
	if err := tx.QueryRowContext(ctx, q, id).Scan(&failed); err != nil {
		return 0, nil, err
	}

	newFailed, lockedUntil := policy.OnFailure(failed, time.Now().UTC())
	upd := fmt.Sprintf("UPDATE %s SET failed_attempts=?, locked_until=? WHERE id=?", class.Table())
	if _, err := tx.ExecContext(ctx, upd, newFailed, lockedUntil, id); err != nil {
		return 0, nil, err
	}

	if err := insertLoginLog(ctx, tx, logRow); err != nil {
		return 0, nil, err
	}
	if err := tx.Commit(); err != nil {
		return 0, nil, err
	}
	return newFailed, lockedUntil, nil
}

// RecordSuccess resets the counters after a correct password and writes the
// successful login-log row atomically with the reset.
func (r *AccountRepo) RecordSuccess(ctx context.Context, class model.AccountClass, id uint64, logRow model.LoginLog) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	q := fmt.Sprintf("UPDATE %s SET failed_attempts=0, locked_until=NULL WHERE id=?", class.Table())
	if _, err := tx.ExecContext(ctx, q, id); err != nil {
		return err
	}
	if err := insertLoginLog(ctx, tx, logRow); err != nil {
		return err
	}
	return tx.Commit()
}

// ClearExpiredLock resets the counters of an account whose lock has elapsed
// (lazy expiry).  The WHERE guard makes the reset a no-op if another request
// already cleared it or the lock is still running.
func (r *AccountRepo) ClearExpiredLock(ctx context.Context, class model.AccountClass, id uint64) error {
	q := fmt.Sprintf("UPDATE %s SET failed_attempts=0, locked_until=NULL WHERE id=? AND locked_until IS NOT NULL AND locked_until <= UTC_TIMESTAMP()", class.Table())
	_, err := r.DB.ExecContext(ctx, q, id)
	return err
}

// Unlock forces an account back to the unlocked state regardless of its
// current counters.  Used by support tooling.
func (r *AccountRepo) Unlock(ctx context.Context, class model.AccountClass, id uint64) error {
	q := fmt.Sprintf("UPDATE %s SET failed_attempts=0, locked_until=NULL WHERE id=?", class.Table())
	res, err := r.DB.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdatePassword replaces the stored hash and, per the reset invariant,
// clears the lockout counters in the same statement.
func (r *AccountRepo) UpdatePassword(ctx context.Context, class model.AccountClass, id uint64, hash string) error {
	q := fmt.Sprintf("UPDATE %s SET password_hash=?, failed_attempts=0, locked_until=NULL WHERE id=?", class.Table())
	res, err := r.DB.ExecContext(ctx, q, hash, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetActive flips the is_active flag.  Callers revoke the account's refresh
// tokens when deactivating so no session survives the flag.
func (r *AccountRepo) SetActive(ctx context.Context, class model.AccountClass, id uint64, active bool) error {
	q := fmt.Sprintf("UPDATE %s SET is_active=? WHERE id=?", class.Table())
	res, err := r.DB.ExecContext(ctx, q, active, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// LogAttempt writes a standalone login-log row for attempts that mutate no
// account state: unknown emails, rejections while locked, inactive accounts
// and blocked roles.
func (r *AccountRepo) LogAttempt(ctx context.Context, logRow model.LoginLog) error {
	return insertLoginLog(ctx, r.DB, logRow)
}
