package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparelink/parts-marketplace/internal/model"
)

func newPermissionRepo(t *testing.T) (*PermissionRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPermissionRepo(db), mock
}

func TestRoleByID(t *testing.T) {
	repo, mock := newPermissionRepo(t)

	mock.ExpectQuery("SELECT id, name, description, status FROM roles").
		WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "status"}).
			AddRow(3, "manager", "supplier staff", 1))

	role, err := repo.RoleByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "manager", role.Name)
	assert.False(t, role.Blocked())
}

func TestRoleByIDBlockedStatus(t *testing.T) {
	repo, mock := newPermissionRepo(t)

	mock.ExpectQuery("SELECT id, name, description, status FROM roles").
		WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "status"}).
			AddRow(3, "manager", "", 2))

	role, err := repo.RoleByID(context.Background(), 3)
	require.NoError(t, err)
	assert.True(t, role.Blocked())
}

func TestMatrixForRole(t *testing.T) {
	repo, mock := newPermissionRepo(t)

	mock.ExpectQuery("FROM role_permissions rp").
		WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"name", "can_read", "can_create", "can_update", "can_delete"}).
			AddRow("orders", true, false, false, false).
			AddRow("parts", true, true, true, false))

	grants, err := repo.MatrixForRole(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, grants, 2)
	assert.Equal(t, "orders", grants[0].Module)
	assert.True(t, grants[1].Allows(model.ActionUpdate))
	assert.False(t, grants[1].Allows(model.ActionDelete))
}

func TestCanGranted(t *testing.T) {
	repo, mock := newPermissionRepo(t)

	mock.ExpectQuery("FROM role_permissions rp").
		WithArgs(uint64(3), "parts", model.RoleStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"can_read", "can_create", "can_update", "can_delete"}).
			AddRow(true, true, false, false))

	ok, err := repo.Can(context.Background(), 3, "parts", model.ActionCreate)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCanActionNotInGrant(t *testing.T) {
	repo, mock := newPermissionRepo(t)

	mock.ExpectQuery("FROM role_permissions rp").
		WithArgs(uint64(3), "parts", model.RoleStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"can_read", "can_create", "can_update", "can_delete"}).
			AddRow(true, false, false, false))

	ok, err := repo.Can(context.Background(), 3, "parts", model.ActionDelete)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCanMissingGrantRowDeniesWithoutError(t *testing.T) {
	repo, mock := newPermissionRepo(t)

	mock.ExpectQuery("FROM role_permissions rp").
		WithArgs(uint64(3), "warehouse", model.RoleStatusActive).
		WillReturnError(sql.ErrNoRows)

	ok, err := repo.Can(context.Background(), 3, "warehouse", model.ActionRead)
	require.NoError(t, err)
	assert.False(t, ok)
}
