package handler

import (
	"context"      // provides context with cancellation for DB calls
	"database/sql" // sentinel errors from the store
	"errors"
	"net/http" // HTTP status codes and primitives
	"strings"  // string manipulation utilities
	"time"     // timeouts for DB calls and cookie lifetimes

	"github.com/labstack/echo/v4" // Echo framework for HTTP routing

	"github.com/sparelink/parts-marketplace/internal/auth"
	"github.com/sparelink/parts-marketplace/internal/config"
	"github.com/sparelink/parts-marketplace/internal/middleware"
	"github.com/sparelink/parts-marketplace/internal/model"
	"github.com/sparelink/parts-marketplace/internal/queue"
	"github.com/sparelink/parts-marketplace/internal/repository"
	"github.com/sparelink/parts-marketplace/internal/utils"
)

// The client-visible message for both unknown emails and wrong passwords.
// Keeping the wording identical prevents account enumeration; the login log
// and the security event stream record the real reason internally.
const invalidCredentialsMsg = "Invalid email or password"

const refreshCookieName = "refresh_token"

// AccountStore is the credential-store contract the orchestrator needs.
// *repository.AccountRepo satisfies it.
type AccountStore interface {
	GetByEmail(ctx context.Context, class model.AccountClass, email string) (model.Account, error)
	GetByID(ctx context.Context, class model.AccountClass, id uint64) (model.Account, error)
	ClearExpiredLock(ctx context.Context, class model.AccountClass, id uint64) error
	RecordFailure(ctx context.Context, class model.AccountClass, id uint64, policy auth.LockoutPolicy, logRow model.LoginLog) (int, *time.Time, error)
	RecordSuccess(ctx context.Context, class model.AccountClass, id uint64, logRow model.LoginLog) error
	LogAttempt(ctx context.Context, logRow model.LoginLog) error
}

// TokenStore is the refresh-token contract. *repository.TokenRepo satisfies it.
type TokenStore interface {
	Issue(ctx context.Context, class model.AccountClass, accountID uint64, tokenHash string, exp time.Time) (uint64, error)
	Validate(ctx context.Context, tokenHash string) (model.RefreshToken, error)
	Rotate(ctx context.Context, rowID uint64, oldHash, newHash string, exp time.Time) error
	Revoke(ctx context.Context, tokenHash string) error
	RevokeAllForAccount(ctx context.Context, class model.AccountClass, accountID uint64) error
}

// PermissionStore resolves roles and grant matrices for the login response.
// *repository.PermissionRepo satisfies it.
type PermissionStore interface {
	RoleByID(ctx context.Context, id uint64) (model.Role, error)
	MatrixForRole(ctx context.Context, roleID uint64) ([]model.ModuleGrant, error)
}

// EventPublisher pushes best-effort security events; a nil publisher is
// allowed and disables the stream.
type EventPublisher interface {
	PublishSecurityEvent(ctx context.Context, event queue.SecurityEvent) error
}

// AuthHandler bundles dependencies for the login/refresh/signout flows.
type AuthHandler struct {
	Cfg      config.Config
	Accounts AccountStore
	Tokens   TokenStore
	Perms    PermissionStore
	Events   EventPublisher

	policy auth.LockoutPolicy
}

func NewAuthHandler(cfg config.Config, accounts AccountStore, tokens TokenStore, perms PermissionStore, events EventPublisher) *AuthHandler {
	return &AuthHandler{
		Cfg:      cfg,
		Accounts: accounts,
		Tokens:   tokens,
		Perms:    perms,
		Events:   events,
		policy: auth.LockoutPolicy{
			MaxAttempts: cfg.MaxLoginFailures,
			Duration:    time.Duration(cfg.LockoutMinutes) * time.Minute,
		},
	}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type accountPart struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
	Class string `json:"class"`
}

type rolePart struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

type loginResp struct {
	AccessToken string              `json:"access_token"`
	TokenType   string              `json:"token_type"`
	ExpiresIn   int                 `json:"expires_in"`
	User        accountPart         `json:"user"`
	Role        *rolePart           `json:"role"`
	Permissions []model.ModuleGrant `json:"permissions"`
}

type refreshResp struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int    `json:"expires_in"`
	RefreshExpiresIn int    `json:"refresh_expires_in"`
}

// Login returns the login handler for one account class.  The same state
// machine serves admins, suppliers and mobile users; only the backing table
// and the token claim key differ.
func (h *AuthHandler) Login(class model.AccountClass) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req loginReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
		}
		req.Email = strings.ToLower(strings.TrimSpace(req.Email))
		if req.Email == "" || req.Password == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and password are required"})
		}

		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		ip := c.RealIP()
		ua := c.Request().UserAgent()

		acct, err := h.Accounts.GetByEmail(ctx, class, req.Email)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				// Unknown email: audited internally, indistinguishable externally.
				if err := h.Accounts.LogAttempt(ctx, model.LoginLog{
					AccountClass: class, Email: req.Email, IP: ip, UserAgent: ua,
					Success: false, Reason: "account_not_found",
				}); err != nil {
					return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
				}
				h.publish(ctx, queue.NewSecurityEvent(queue.EventLoginFailed, string(class), 0, req.Email, ip, ua, "account_not_found"))
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": invalidCredentialsMsg})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
		}

		now := time.Now().UTC()
		switch st := h.policy.Status(acct.FailedAttempts, acct.LockedUntil, now); {
		case st.Locked:
			if err := h.Accounts.LogAttempt(ctx, attemptRow(acct, ip, ua, false, "locked")); err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
			}
			return c.JSON(http.StatusLocked, echo.Map{
				"error":               "account is temporarily locked",
				"retry_after_minutes": auth.RemainingMinutes(st.Remaining),
			})
		case st.Expired:
			// Lazy expiry: clear the stale lock before evaluating credentials.
			if err := h.Accounts.ClearExpiredLock(ctx, class, acct.ID); err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
			}
			acct.FailedAttempts = 0
			acct.LockedUntil = nil
		}

		if !utils.VerifyPassword(acct.PasswordHash, req.Password) {
			failed, lockedUntil, err := h.Accounts.RecordFailure(ctx, class, acct.ID, h.policy,
				attemptRow(acct, ip, ua, false, "password_mismatch"))
			if err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
			}
			if lockedUntil != nil {
				h.publish(ctx, queue.NewSecurityEvent(queue.EventAccountLocked, string(class), acct.ID, acct.Email, ip, ua, "failed attempt threshold reached"))
				return c.JSON(http.StatusLocked, echo.Map{
					"error":               "account is temporarily locked",
					"retry_after_minutes": h.Cfg.LockoutMinutes,
				})
			}
			h.publish(ctx, queue.NewSecurityEvent(queue.EventLoginFailed, string(class), acct.ID, acct.Email, ip, ua, "password_mismatch"))
			return c.JSON(http.StatusUnauthorized, echo.Map{
				"error":              invalidCredentialsMsg,
				"remaining_attempts": h.policy.AttemptsLeft(failed),
			})
		}

		if !acct.IsActive {
			if err := h.Accounts.LogAttempt(ctx, attemptRow(acct, ip, ua, false, "account_inactive")); err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
			}
			return c.JSON(http.StatusForbidden, echo.Map{"error": "account is inactive"})
		}

		var role *model.Role
		if class.HasRole() && acct.RoleID != 0 {
			r, err := h.Perms.RoleByID(ctx, acct.RoleID)
			if err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
			}
			if r.Blocked() {
				if err := h.Accounts.LogAttempt(ctx, attemptRow(acct, ip, ua, false, "role_blocked")); err != nil {
					return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
				}
				return c.JSON(http.StatusForbidden, echo.Map{"error": "role is blocked"})
			}
			role = &r
		}

		// Counter reset and the success audit row commit together; a store
		// failure here aborts the login before any token exists.
		if err := h.Accounts.RecordSuccess(ctx, class, acct.ID, attemptRow(acct, ip, ua, true, "")); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
		}

		perms := []model.ModuleGrant{}
		if role != nil {
			perms, err = h.Perms.MatrixForRole(ctx, role.ID)
			if err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
			}
			if perms == nil {
				perms = []model.ModuleGrant{}
			}
		}

		access, err := utils.NewAccessToken(h.Cfg.JWTSecret, class, acct.ID, acct.Email, h.Cfg.AccessTTLMin)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
		}
		refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue refresh failed"})
		}
		// The session row is mandatory: an access token with no recorded
		// session must never reach the client.
		if _, err := h.Tokens.Issue(ctx, class, acct.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save refresh failed"})
		}

		h.setRefreshCookie(c, refresh.Raw, refresh.Exp)
		h.publish(ctx, queue.NewSecurityEvent(queue.EventLoginSuccess, string(class), acct.ID, acct.Email, ip, ua, ""))

		var rp *rolePart
		if role != nil {
			rp = &rolePart{ID: role.ID, Name: role.Name}
		}
		return c.JSON(http.StatusOK, loginResp{
			AccessToken: access.Token,
			TokenType:   "Bearer",
			ExpiresIn:   h.Cfg.AccessTTLMin * 60,
			User:        accountPart{ID: acct.ID, Email: acct.Email, Class: string(class)},
			Role:        rp,
			Permissions: perms,
		})
	}
}

// Refresh exchanges a valid refresh cookie for a new access token and
// rotates the refresh token in place.  A token presented after rotation is
// a replay and fails with 401.
func (h *AuthHandler) Refresh(c echo.Context) error {
	cookie, err := c.Cookie(refreshCookieName)
	if err != nil || strings.TrimSpace(cookie.Value) == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing refresh token"})
	}
	oldHash := utils.HashRefreshRaw(strings.TrimSpace(cookie.Value))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sess, err := h.Tokens.Validate(ctx, oldHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired refresh token"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "refresh failed"})
	}

	acct, err := h.Accounts.GetByID(ctx, sess.AccountClass, sess.AccountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "account not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "refresh failed"})
	}
	if !acct.IsActive {
		// The account went inactive mid-session: kill every session it owns.
		_ = h.Tokens.RevokeAllForAccount(ctx, sess.AccountClass, sess.AccountID)
		h.clearRefreshCookie(c)
		h.publish(ctx, queue.NewSecurityEvent(queue.EventTokensRevoked, string(sess.AccountClass), acct.ID, acct.Email, c.RealIP(), c.Request().UserAgent(), "account_inactive"))
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account is inactive"})
	}
	if sess.AccountClass.HasRole() && acct.RoleID != 0 {
		role, err := h.Perms.RoleByID(ctx, acct.RoleID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "refresh failed"})
		}
		if role.Blocked() {
			// A blocked role conservatively invalidates outstanding sessions.
			_ = h.Tokens.Revoke(ctx, oldHash)
			h.clearRefreshCookie(c)
			return c.JSON(http.StatusForbidden, echo.Map{"error": "role is blocked"})
		}
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, sess.AccountClass, acct.ID, acct.Email, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	next, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue refresh failed"})
	}
	// Rotation must land before the client sees success; a stale hash here
	// means a concurrent request already rotated or revoked the session.
	if err := h.Tokens.Rotate(ctx, sess.ID, oldHash, utils.HashRefreshRaw(next.Raw), next.Exp); err != nil {
		if errors.Is(err, repository.ErrStaleToken) {
			h.publish(ctx, queue.NewSecurityEvent(queue.EventTokenReplay, string(sess.AccountClass), acct.ID, acct.Email, c.RealIP(), c.Request().UserAgent(), "stale refresh token presented"))
			h.clearRefreshCookie(c)
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired refresh token"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save refresh failed"})
	}

	h.setRefreshCookie(c, next.Raw, next.Exp)
	return c.JSON(http.StatusOK, refreshResp{
		AccessToken:      access.Token,
		TokenType:        "Bearer",
		ExpiresIn:        h.Cfg.AccessTTLMin * 60,
		RefreshExpiresIn: int(time.Until(next.Exp).Seconds()),
	})
}

// Signout deletes the server-side session row if a refresh cookie is
// present and clears the cookie.  The operation is idempotent: signing out
// twice, or with no cookie at all, still succeeds.
func (h *AuthHandler) Signout(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if cookie, err := c.Cookie(refreshCookieName); err == nil && strings.TrimSpace(cookie.Value) != "" {
		if err := h.Tokens.Revoke(ctx, utils.HashRefreshRaw(strings.TrimSpace(cookie.Value))); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "signout failed"})
		}
	}
	h.clearRefreshCookie(c)
	return c.JSON(http.StatusOK, echo.Map{"message": "signed out"})
}

// Me echoes the authenticated principal (protected).
func (h *AuthHandler) Me(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return c.JSON(http.StatusOK, accountPart{ID: p.AccountID, Email: p.Email, Class: string(p.Class)})
}

// ----- helpers -----

func attemptRow(acct model.Account, ip, ua string, success bool, reason string) model.LoginLog {
	return model.LoginLog{
		AccountClass: acct.Class,
		AccountID:    acct.ID,
		Email:        acct.Email,
		IP:           ip,
		UserAgent:    ua,
		Success:      success,
		Reason:       reason,
	}
}

// publish sends a security event without letting broker trouble interfere
// with the response; the publisher already logs its own failures.
func (h *AuthHandler) publish(ctx context.Context, ev queue.SecurityEvent) {
	if h.Events == nil {
		return
	}
	_ = h.Events.PublishSecurityEvent(ctx, ev)
}

// setRefreshCookie writes the HTTP-only refresh cookie.  In prod the cookie
// is Secure, SameSite=None and scoped to the configured domain; in dev it is
// a plain Lax cookie so local HTTP works.  The logical contract (opaque
// token, HTTP-only, path /, rotated on use) is identical in both.
func (h *AuthHandler) setRefreshCookie(c echo.Context, raw string, exp time.Time) {
	cookie := &http.Cookie{
		Name:     refreshCookieName,
		Value:    raw,
		Path:     "/",
		Expires:  exp,
		MaxAge:   int(time.Until(exp).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if h.Cfg.IsProd() {
		cookie.Secure = true
		cookie.SameSite = http.SameSiteNoneMode
		cookie.Domain = h.Cfg.CookieDomain
	}
	c.SetCookie(cookie)
}

func (h *AuthHandler) clearRefreshCookie(c echo.Context) {
	cookie := &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if h.Cfg.IsProd() {
		cookie.Secure = true
		cookie.SameSite = http.SameSiteNoneMode
		cookie.Domain = h.Cfg.CookieDomain
	}
	c.SetCookie(cookie)
}
