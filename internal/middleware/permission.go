package middleware

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sparelink/parts-marketplace/internal/model"
)

// accountSource and permissionSource are the two read contracts the
// permission gate needs; *repository.AccountRepo and
// *repository.PermissionRepo satisfy them.
type accountSource interface {
	GetByID(ctx context.Context, class model.AccountClass, id uint64) (model.Account, error)
}

type permissionSource interface {
	Can(ctx context.Context, roleID uint64, module string, action model.Action) (bool, error)
}

// RequirePermission gates a route on the principal holding the module+action
// capability.  The account and role are re-read on every request so that
// deactivating an account or blocking a role takes effect on the next
// privileged call, not at the next login.  The evaluator never mutates
// state.
func RequirePermission(accounts accountSource, perms permissionSource, module string, action model.Action) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := PrincipalFrom(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()

			acct, err := accounts.GetByID(ctx, p.Class, p.AccountID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unknown account"})
				}
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "permission lookup failed"})
			}
			if !acct.IsActive {
				return deny(c, module, action)
			}
			// Mobile users carry no role: no module capability, ever.
			if !p.Class.HasRole() || acct.RoleID == 0 {
				return deny(c, module, action)
			}

			allowed, err := perms.Can(ctx, acct.RoleID, module, action)
			if err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "permission lookup failed"})
			}
			if !allowed {
				return deny(c, module, action)
			}
			return next(c)
		}
	}
}

func deny(c echo.Context, module string, action model.Action) error {
	return c.JSON(http.StatusForbidden, echo.Map{
		"error": fmt.Sprintf("you do not have permission to %s %s", action, module),
	})
}
