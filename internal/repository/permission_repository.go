package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sparelink/parts-marketplace/internal/model"
)

// PermissionRepo resolves roles and their per-module CRUD grants.  It never
// mutates state: permission evaluation is a read gate in front of the
// business handlers.
type PermissionRepo struct{ DB *sql.DB }

func NewPermissionRepo(db *sql.DB) *PermissionRepo { return &PermissionRepo{DB: db} }

// RoleByID fetches one role.
func (r *PermissionRepo) RoleByID(ctx context.Context, id uint64) (model.Role, error) {
	var role model.Role
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, name, description, status FROM roles WHERE id=? LIMIT 1",
		id).Scan(&role.ID, &role.Name, &role.Description, &role.Status)
	return role, err
}

// MatrixForRole returns every grant row of a role, one entry per module the
// role can touch.  Modules without a row are simply absent: absence means no
// capability.
func (r *PermissionRepo) MatrixForRole(ctx context.Context, roleID uint64) ([]model.ModuleGrant, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT m.name, rp.can_read, rp.can_create, rp.can_update, rp.can_delete
		 FROM role_permissions rp
		 JOIN modules m ON m.id = rp.module_id
		 WHERE rp.role_id=? ORDER BY m.name`,
		roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ModuleGrant
	for rows.Next() {
		var g model.ModuleGrant
		if err := rows.Scan(&g.Module, &g.CanRead, &g.CanCreate, &g.CanUpdate, &g.CanDelete); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// Can reports whether the role may perform the action on the module.  The
// query joins roles.status so a blocked role denies everything regardless of
// its grants, and a missing grant row denies via sql.ErrNoRows.
func (r *PermissionRepo) Can(ctx context.Context, roleID uint64, module string, action model.Action) (bool, error) {
	var g model.ModuleGrant
	err := r.DB.QueryRowContext(ctx,
		`SELECT rp.can_read, rp.can_create, rp.can_update, rp.can_delete
		 FROM role_permissions rp
		 JOIN modules m ON m.id = rp.module_id
		 JOIN roles r ON r.id = rp.role_id
		 WHERE rp.role_id=? AND m.name=? AND r.status=?
		 LIMIT 1`,
		roleID, module, model.RoleStatusActive).Scan(&g.CanRead, &g.CanCreate, &g.CanUpdate, &g.CanDelete)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return g.Allows(action), nil
}
