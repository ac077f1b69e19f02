package middleware

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparelink/parts-marketplace/internal/model"
)

type fakeAccounts struct {
	accounts map[uint64]model.Account
	err      error
}

func (f *fakeAccounts) GetByID(_ context.Context, class model.AccountClass, id uint64) (model.Account, error) {
	if f.err != nil {
		return model.Account{}, f.err
	}
	a, ok := f.accounts[id]
	if !ok || a.Class != class {
		return model.Account{}, sql.ErrNoRows
	}
	return a, nil
}

type fakePerms struct {
	grants map[uint64]map[string]model.ModuleGrant // roleID -> module -> grant
	err    error
}

func (f *fakePerms) Can(_ context.Context, roleID uint64, module string, action model.Action) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	g, ok := f.grants[roleID][module]
	if !ok {
		return false, nil
	}
	return g.Allows(action), nil
}

func permRequest(t *testing.T, principal *Principal, accounts *fakeAccounts, perms *fakePerms, module string, action model.Action) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/admin/accounts/suppliers/9/unlock", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if principal != nil {
		c.Set(ctxAccountID, principal.AccountID)
		c.Set(ctxAccountClass, principal.Class)
		c.Set(ctxEmail, principal.Email)
	}

	h := RequirePermission(accounts, perms, module, action)(func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"message": "done"})
	})
	require.NoError(t, h(c))
	return rec
}

func adminWithRole(roleID uint64) (*Principal, *fakeAccounts) {
	acct := model.Account{ID: 1, Class: model.ClassAdmin, Email: "a@example.com", RoleID: roleID, IsActive: true}
	return &Principal{AccountID: 1, Class: model.ClassAdmin, Email: acct.Email},
		&fakeAccounts{accounts: map[uint64]model.Account{1: acct}}
}

func TestRequirePermissionAllows(t *testing.T) {
	p, accounts := adminWithRole(3)
	perms := &fakePerms{grants: map[uint64]map[string]model.ModuleGrant{
		3: {"accounts": {Module: "accounts", CanRead: true, CanUpdate: true}},
	}}

	rec := permRequest(t, p, accounts, perms, "accounts", model.ActionUpdate)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequirePermissionActionNotGranted(t *testing.T) {
	p, accounts := adminWithRole(3)
	perms := &fakePerms{grants: map[uint64]map[string]model.ModuleGrant{
		3: {"accounts": {Module: "accounts", CanRead: true}}, // read only
	}}

	rec := permRequest(t, p, accounts, perms, "accounts", model.ActionDelete)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "you do not have permission to delete accounts")
}

func TestRequirePermissionNoGrantRow(t *testing.T) {
	p, accounts := adminWithRole(3)
	perms := &fakePerms{grants: map[uint64]map[string]model.ModuleGrant{3: {}}}

	rec := permRequest(t, p, accounts, perms, "login_logs", model.ActionRead)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequirePermissionInactiveAccount(t *testing.T) {
	acct := model.Account{ID: 1, Class: model.ClassAdmin, RoleID: 3, IsActive: false}
	accounts := &fakeAccounts{accounts: map[uint64]model.Account{1: acct}}
	perms := &fakePerms{grants: map[uint64]map[string]model.ModuleGrant{
		3: {"accounts": {Module: "accounts", CanUpdate: true}},
	}}
	p := &Principal{AccountID: 1, Class: model.ClassAdmin}

	// The grant exists but the account was deactivated after the token was
	// issued; the re-read must deny.
	rec := permRequest(t, p, accounts, perms, "accounts", model.ActionUpdate)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequirePermissionMobileUserAlwaysDenied(t *testing.T) {
	acct := model.Account{ID: 5, Class: model.ClassMobile, IsActive: true}
	accounts := &fakeAccounts{accounts: map[uint64]model.Account{5: acct}}
	perms := &fakePerms{grants: map[uint64]map[string]model.ModuleGrant{}}
	p := &Principal{AccountID: 5, Class: model.ClassMobile}

	rec := permRequest(t, p, accounts, perms, "accounts", model.ActionRead)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequirePermissionUnknownAccount(t *testing.T) {
	accounts := &fakeAccounts{accounts: map[uint64]model.Account{}}
	perms := &fakePerms{}
	p := &Principal{AccountID: 99, Class: model.ClassAdmin}

	rec := permRequest(t, p, accounts, perms, "accounts", model.ActionRead)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequirePermissionMissingPrincipal(t *testing.T) {
	accounts := &fakeAccounts{}
	perms := &fakePerms{}

	rec := permRequest(t, nil, accounts, perms, "accounts", model.ActionRead)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequirePermissionStoreError(t *testing.T) {
	accounts := &fakeAccounts{err: errors.New("db down")}
	perms := &fakePerms{}
	p := &Principal{AccountID: 1, Class: model.ClassAdmin}

	rec := permRequest(t, p, accounts, perms, "accounts", model.ActionRead)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
