package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/upclick/task-exchange/internal/exchange"
	"github.com/upclick/task-exchange/internal/model"
	"github.com/upclick/task-exchange/internal/repository"
)

// AdminHandler covers the operator surface: access overrides, manual
// balance fixes, payment recording, and force-deleting tasks.
type AdminHandler struct {
	Engine *exchange.Engine
	Users  *repository.UserRepo
}

func NewAdminHandler(eng *exchange.Engine, users *repository.UserRepo) *AdminHandler {
	return &AdminHandler{Engine: eng, Users: users}
}

func userIDParam(c echo.Context) (uint64, error) {
	return strconv.ParseUint(c.Param("id"), 10, 64)
}

type setOverrideReq struct {
	Override string `json:"override"` // GRANTED | REVOKED | UNSET
}

// SetAccessOverride grants, revokes, or clears a user's access
// override. Granting starts a fresh grant window from now.
func (h *AdminHandler) SetAccessOverride(c echo.Context) error {
	id, err := userIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	var req setOverrideReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	var override model.AdminOverride
	switch strings.ToUpper(strings.TrimSpace(req.Override)) {
	case string(model.OverrideGranted):
		override = model.OverrideGranted
	case string(model.OverrideRevoked):
		override = model.OverrideRevoked
	case string(model.OverrideUnset):
		override = model.OverrideUnset
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "override must be GRANTED, REVOKED or UNSET"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Users.SetAdminOverride(ctx, id, override); err != nil {
		return exchangeError(c, err)
	}
	win, err := h.Engine.ResolveAccess(ctx, id)
	if err != nil {
		return exchangeError(c, err)
	}
	return c.JSON(http.StatusOK, win)
}

type setCreditsReq struct {
	Credits int64 `json:"credits"`
}

// SetCredits overwrites a user's balance. Intended for support
// corrections; negative values are rejected.
func (h *AdminHandler) SetCredits(c echo.Context) error {
	id, err := userIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	var req setCreditsReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Credits < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "credits must not be negative"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Users.SetCredits(ctx, id, req.Credits); err != nil {
		return exchangeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"credits": req.Credits})
}

type setPaymentReq struct {
	PaidAt *time.Time `json:"paid_at"` // defaults to now
}

// RecordPayment stamps a user's last payment, opening a fresh paid
// access window.
func (h *AdminHandler) RecordPayment(c echo.Context) error {
	id, err := userIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	var req setPaymentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	at := time.Now().UTC()
	if req.PaidAt != nil {
		at = req.PaidAt.UTC()
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Users.SetLastPayment(ctx, id, at); err != nil {
		return exchangeError(c, err)
	}
	win, err := h.Engine.ResolveAccess(ctx, id)
	if err != nil {
		return exchangeError(c, err)
	}
	return c.JSON(http.StatusOK, win)
}

// DeleteTask retires any task regardless of ownership.
func (h *AdminHandler) DeleteTask(c echo.Context) error {
	id, err := taskIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid task id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Engine.AdminDeleteTask(ctx, id); err != nil {
		return exchangeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
