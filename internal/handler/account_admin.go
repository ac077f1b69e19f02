package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sparelink/parts-marketplace/internal/config"
	"github.com/sparelink/parts-marketplace/internal/model"
	"github.com/sparelink/parts-marketplace/internal/queue"
	"github.com/sparelink/parts-marketplace/internal/utils"
)

// AdminAccountStore is the mutation contract for support tooling.
// *repository.AccountRepo satisfies it.
type AdminAccountStore interface {
	GetByID(ctx context.Context, class model.AccountClass, id uint64) (model.Account, error)
	Unlock(ctx context.Context, class model.AccountClass, id uint64) error
	UpdatePassword(ctx context.Context, class model.AccountClass, id uint64, hash string) error
	SetActive(ctx context.Context, class model.AccountClass, id uint64, active bool) error
}

// LoginLogStore reads the audit trail. *repository.LoginLogRepo satisfies it.
type LoginLogStore interface {
	List(ctx context.Context, limit, offset int) ([]model.LoginLog, error)
}

// AccountAdminHandler exposes the administrative overrides of the lockout
// state machine: forced unlock, password reset and deactivation.  All routes
// are permission-gated on the "accounts" module.
type AccountAdminHandler struct {
	Cfg      config.Config
	Accounts AdminAccountStore
	Tokens   TokenStore
	Logs     LoginLogStore
	Events   EventPublisher
}

func NewAccountAdminHandler(cfg config.Config, accounts AdminAccountStore, tokens TokenStore, logs LoginLogStore, events EventPublisher) *AccountAdminHandler {
	return &AccountAdminHandler{Cfg: cfg, Accounts: accounts, Tokens: tokens, Logs: logs, Events: events}
}

type resetPasswordReq struct {
	Password string `json:"password"`
}

// Unlock forces an account back to UNLOCKED(failed=0) regardless of its
// current counters.
func (h *AccountAdminHandler) Unlock(c echo.Context) error {
	class, id, err := targetAccount(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Accounts.Unlock(ctx, class, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "account not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "unlock failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "account unlocked"})
}

// ResetPassword replaces the stored hash, clears lockout counters and kills
// every open session of the account.
func (h *AccountAdminHandler) ResetPassword(c echo.Context) error {
	class, id, err := targetAccount(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req resetPasswordReq
	if err := c.Bind(&req); err != nil || len(req.Password) < 8 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password of at least 8 characters required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reset failed"})
	}
	if err := h.Accounts.UpdatePassword(ctx, class, id, hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "account not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reset failed"})
	}
	if err := h.Tokens.RevokeAllForAccount(ctx, class, id); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reset failed"})
	}
	h.publishRevoked(ctx, c, class, id, "password_reset")
	return c.JSON(http.StatusOK, echo.Map{"message": "password reset"})
}

// Deactivate flips is_active off and revokes the account's sessions so the
// flag takes effect immediately, not at the next token expiry.
func (h *AccountAdminHandler) Deactivate(c echo.Context) error {
	class, id, err := targetAccount(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Accounts.SetActive(ctx, class, id, false); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "account not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "deactivate failed"})
	}
	if err := h.Tokens.RevokeAllForAccount(ctx, class, id); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "deactivate failed"})
	}
	h.publishRevoked(ctx, c, class, id, "account_deactivated")
	return c.JSON(http.StatusOK, echo.Map{"message": "account deactivated"})
}

// ListLoginLogs returns recent login attempts, newest first.
func (h *AccountAdminHandler) ListLoginLogs(c echo.Context) error {
	limit := queryInt(c, "limit", 50)
	if limit < 1 || limit > 500 {
		limit = 50
	}
	offset := queryInt(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	logs, err := h.Logs.List(ctx, limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if logs == nil {
		logs = []model.LoginLog{}
	}
	return c.JSON(http.StatusOK, echo.Map{"login_logs": logs})
}

func (h *AccountAdminHandler) publishRevoked(ctx context.Context, c echo.Context, class model.AccountClass, id uint64, detail string) {
	if h.Events == nil {
		return
	}
	_ = h.Events.PublishSecurityEvent(ctx, queue.NewSecurityEvent(
		queue.EventTokensRevoked, string(class), id, "", c.RealIP(), c.Request().UserAgent(), detail))
}

// targetAccount parses the :class/:id route segments.
func targetAccount(c echo.Context) (model.AccountClass, uint64, error) {
	class, ok := model.ParseAccountClass(c.Param("class"))
	if !ok {
		return "", 0, errors.New("unknown account class")
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return "", 0, errors.New("invalid account id")
	}
	return class, id, nil
}

func queryInt(c echo.Context, name string, def int) int {
	v := c.QueryParam(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
