package middleware // middleware provides shared request processing for handlers

import (
	"net/http" // HTTP status codes for responses
	"strings"  // string utilities for prefix checking and trimming

	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

	"github.com/sparelink/parts-marketplace/internal/model"
	"github.com/sparelink/parts-marketplace/internal/utils"
)

// Context keys under which the authenticated principal is stored.  The
// principal lives only for the duration of one request; no process-wide
// state is involved, so concurrent requests never observe each other.
const (
	ctxAccountID    = "account_id"
	ctxAccountClass = "account_class"
	ctxEmail        = "email"
)

// Principal is the request-scoped identity extracted from a verified access
// token.
type Principal struct {
	AccountID uint64
	Class     model.AccountClass
	Email     string
}

// PrincipalFrom reads the principal stored by JWTAuth.  The second return
// value is false when the request never passed the auth gate.
func PrincipalFrom(c echo.Context) (Principal, bool) {
	id, ok := c.Get(ctxAccountID).(uint64)
	if !ok {
		return Principal{}, false
	}
	class, ok := c.Get(ctxAccountClass).(model.AccountClass)
	if !ok {
		return Principal{}, false
	}
	email, _ := c.Get(ctxEmail).(string)
	return Principal{AccountID: id, Class: class, Email: email}, true
}

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and injects the principal into the request context.  Verification is pure
// computation (signature + expiry); the data store is never touched, so the
// common-case request path stays store-free.  There is no automatic refresh:
// an expired token is a plain 401 and the client must call the refresh
// endpoint explicitly.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}

			c.Set(ctxAccountID, claims.AccountID)
			c.Set(ctxAccountClass, claims.Class)
			c.Set(ctxEmail, claims.Email)
			return next(c)
		}
	}
}

// RequireClass restricts a route group to the given account classes.  It
// assumes JWTAuth already populated the principal.
func RequireClass(classes ...model.AccountClass) echo.MiddlewareFunc {
	allowed := make(map[model.AccountClass]bool, len(classes))
	for _, cl := range classes {
		allowed[cl] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := PrincipalFrom(c)
			if !ok || !allowed[p.Class] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
