package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/sparelink/parts-marketplace/internal/model"
)

// LoginLogRepo reads the append-only login audit trail.  Writes go through
// insertLoginLog so they can share a transaction with the lockout mutation
// that triggered them.
type LoginLogRepo struct{ DB *sql.DB }

func NewLoginLogRepo(db *sql.DB) *LoginLogRepo { return &LoginLogRepo{DB: db} }

// insertLoginLog appends one attempt record.  db may be a *sql.DB or the
// *sql.Tx of the mutation being audited.
func insertLoginLog(ctx context.Context, db DBTX, row model.LoginLog) error {
	_, err := db.ExecContext(ctx,
		"INSERT INTO login_logs (account_class, account_id, email, ip, user_agent, success, reason) VALUES (?,?,?,?,?,?,?)",
		string(row.AccountClass), row.AccountID, row.Email, row.IP, row.UserAgent, row.Success, row.Reason)
	return err
}

// List returns recent attempts, newest first.
func (r *LoginLogRepo) List(ctx context.Context, limit, offset int) ([]model.LoginLog, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, account_class, account_id, email, ip, user_agent, success, reason, created_at FROM login_logs ORDER BY id DESC LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.LoginLog
	for rows.Next() {
		var (
			l         model.LoginLog
			class     string
			createdAt time.Time
		)
		if err := rows.Scan(&l.ID, &class, &l.AccountID, &l.Email, &l.IP, &l.UserAgent, &l.Success, &l.Reason, &createdAt); err != nil {
			return nil, err
		}
		l.AccountClass = model.AccountClass(class)
		l.CreatedAt = createdAt
		out = append(out, l)
	}
	return out, rows.Err()
}
