package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // Echo web framework used for routing

	"github.com/sparelink/parts-marketplace/internal/handler"    // handlers implementing the auth flows
	"github.com/sparelink/parts-marketplace/internal/middleware" // JWT, permission and rate-limit middleware
	"github.com/sparelink/parts-marketplace/internal/model"
	"github.com/sparelink/parts-marketplace/internal/repository"
)

// RegisterRoutes registers routes that require no authentication.  Currently
// it exposes only a health check used by load balancers.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth wires the full authentication surface: the per-class login
// endpoints, cookie-based refresh and signout, the protected /v1 group with
// its JWT gate, and the permission-gated administrative account routes.
// rateLimit guards the unauthenticated credential endpoints.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, admin *handler.AccountAdminHandler,
	accounts *repository.AccountRepo, perms *repository.PermissionRepo,
	jwtSecret string, rateLimit echo.MiddlewareFunc) {

	// Credential endpoints: one login per account class (the tables differ,
	// the state machine does not), plus refresh and signout which identify
	// the session by cookie alone.
	g := e.Group("/v1/auth", rateLimit)
	g.POST("/admins/login", a.Login(model.ClassAdmin))
	g.POST("/suppliers/login", a.Login(model.ClassSupplier))
	g.POST("/users/login", a.Login(model.ClassMobile))
	g.POST("/refresh", a.Refresh)
	g.POST("/signout", a.Signout)

	// Everything under /v1 beyond the auth group requires a valid access
	// token; handlers read the principal from the request context.
	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	auth.GET("/auth/me", a.Me)

	// Support tooling: admin principals only, and each route additionally
	// requires the matching module capability of the admin's role.
	ops := auth.Group("/admin", middleware.RequireClass(model.ClassAdmin))
	ops.POST("/accounts/:class/:id/unlock", admin.Unlock,
		middleware.RequirePermission(accounts, perms, "accounts", model.ActionUpdate))
	ops.POST("/accounts/:class/:id/reset-password", admin.ResetPassword,
		middleware.RequirePermission(accounts, perms, "accounts", model.ActionUpdate))
	ops.POST("/accounts/:class/:id/deactivate", admin.Deactivate,
		middleware.RequirePermission(accounts, perms, "accounts", model.ActionDelete))
	ops.GET("/login-logs", admin.ListLoginLogs,
		middleware.RequirePermission(accounts, perms, "login_logs", model.ActionRead))
}
