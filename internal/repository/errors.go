// Package repository persists the authentication core: accounts with their
// lockout counters, rotated refresh tokens, role permission grants and the
// append-only login log.  Sentinel errors defined here let handlers map
// store outcomes onto HTTP statuses without inspecting SQL details.
package repository

import (
	"context"
	"database/sql"
	"errors"
)

// ErrStaleToken is returned when a refresh-token rotation finds the row
// already rotated away: the presented token was valid moments ago but has
// been superseded.  Handlers treat this as a replay and respond 401.
var ErrStaleToken = errors.New("refresh token superseded")

// DBTX is the subset of *sql.DB / *sql.Tx the repositories need, so that
// audit-log inserts can run inside the transaction that mutates the
// triggering account row.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
