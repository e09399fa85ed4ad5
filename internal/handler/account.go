package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/upclick/task-exchange/internal/exchange"
	"github.com/upclick/task-exchange/internal/middleware"
	"github.com/upclick/task-exchange/internal/repository"
)

// AccountHandler serves the authenticated user's own state.
type AccountHandler struct {
	Engine *exchange.Engine
	Users  *repository.UserRepo
}

func NewAccountHandler(eng *exchange.Engine, users *repository.UserRepo) *AccountHandler {
	return &AccountHandler{Engine: eng, Users: users}
}

// Me returns the caller's profile together with the derived access
// window, the one response a client needs to render its home screen.
func (h *AccountHandler) Me(c echo.Context) error {
	uid := middleware.CurrentUserID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token subject"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return exchangeError(c, err)
	}
	win, err := h.Engine.ResolveAccess(ctx, uid)
	if err != nil {
		return exchangeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user":   userPart{ID: u.ID, Phone: u.Phone, Role: u.Role, Credits: u.Credits},
		"access": win,
	})
}

// Balance returns the caller's current credit balance.
func (h *AccountHandler) Balance(c echo.Context) error {
	uid := middleware.CurrentUserID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token subject"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	bal, err := h.Engine.Balance(ctx, uid)
	if err != nil {
		return exchangeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"credits": bal})
}

// Access returns the caller's current access window so a client can
// show "N days remaining" and gate its own UI.
func (h *AccountHandler) Access(c echo.Context) error {
	uid := middleware.CurrentUserID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token subject"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	win, err := h.Engine.ResolveAccess(ctx, uid)
	if err != nil {
		return exchangeError(c, err)
	}
	return c.JSON(http.StatusOK, win)
}
