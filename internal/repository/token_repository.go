package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/sparelink/parts-marketplace/internal/model"
)

// TokenRepo persists refresh tokens (single 'token_hash' column per row).
// One row is one session: login inserts it, every refresh rotates the hash
// and expiry in place, signout deletes it.  Because rotation mutates rather
// than inserts, a stale pre-rotation token can never validate again.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// Issue inserts a new session row and returns its id.
func (r *TokenRepo) Issue(ctx context.Context, class model.AccountClass, accountID uint64, tokenHash string, exp time.Time) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (account_class, account_id, token_hash, expires_at) VALUES (?,?,?,?)",
		string(class), accountID, tokenHash, exp)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// Validate returns the session row for a non-expired token hash.  Expired or
// unknown hashes yield sql.ErrNoRows; the caller re-checks the owning
// account's active flag and role before trusting the session.
func (r *TokenRepo) Validate(ctx context.Context, tokenHash string) (model.RefreshToken, error) {
	var (
		t     model.RefreshToken
		class string
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, account_class, account_id, token_hash, expires_at, created_at FROM refresh_tokens WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&t.ID, &class, &t.AccountID, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		return model.RefreshToken{}, err
	}
	if time.Now().UTC().After(t.ExpiresAt) {
		return model.RefreshToken{}, sql.ErrNoRows
	}
	t.AccountClass = model.AccountClass(class)
	return t, nil
}

// Rotate overwrites the row's token hash and expiry, conditioned on the old
// hash still being in place.  Zero affected rows means another request
// rotated or revoked the session first; the caller gets ErrStaleToken and
// must treat the presented token as replayed.
func (r *TokenRepo) Rotate(ctx context.Context, rowID uint64, oldHash, newHash string, exp time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET token_hash=?, expires_at=? WHERE id=? AND token_hash=?",
		newHash, exp, rowID, oldHash)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStaleToken
	}
	return nil
}

// Revoke deletes the session row for a token hash.  Deleting an already
// absent row is not an error; signout stays idempotent.
func (r *TokenRepo) Revoke(ctx context.Context, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE token_hash=?", tokenHash)
	return err
}

// RevokeAllForAccount deletes every session of one account.  Used when an
// account is deactivated or its password administratively reset.
func (r *TokenRepo) RevokeAllForAccount(ctx context.Context, class model.AccountClass, accountID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE account_class=? AND account_id=?",
		string(class), accountID)
	return err
}
