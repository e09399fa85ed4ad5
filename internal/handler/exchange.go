package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/upclick/task-exchange/internal/exchange"
	"github.com/upclick/task-exchange/internal/middleware"
	"github.com/upclick/task-exchange/internal/model"
)

// ExchangeHandler exposes the task exchange: publishing tasks,
// completing them for credits, and browsing the open pool.
type ExchangeHandler struct {
	Engine *exchange.Engine
}

func NewExchangeHandler(eng *exchange.Engine) *ExchangeHandler {
	return &ExchangeHandler{Engine: eng}
}

type createTaskReq struct {
	Type      string `json:"type"`
	TargetURL string `json:"target_url"`
	Actions   int64  `json:"actions"`
}

type taskResp struct {
	ID               uint64 `json:"id"`
	Type             string `json:"type"`
	TargetURL        string `json:"target_url"`
	CreatorID        uint64 `json:"creator_id"`
	RemainingActions int64  `json:"remaining_actions"`
	Status           string `json:"status"`
	CreatedAt        string `json:"created_at"`
}

func toTaskResp(t model.Task) taskResp {
	return taskResp{
		ID:               t.ID,
		Type:             string(t.Type),
		TargetURL:        t.TargetURL,
		CreatorID:        t.CreatorID,
		RemainingActions: t.RemainingActions,
		Status:           t.Status,
		CreatedAt:        t.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// exchangeError maps engine sentinels onto HTTP statuses. Conditions
// the client can fix get 4xx; transient backend trouble gets 503 so
// clients know a retry is worthwhile.
func exchangeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, exchange.ErrInvalidTask):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, exchange.ErrInsufficientCredits):
		return c.JSON(http.StatusPaymentRequired, echo.Map{"error": "insufficient credits"})
	case errors.Is(err, exchange.ErrUnknownUser):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown user"})
	case errors.Is(err, exchange.ErrUnknownTask):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown task"})
	case errors.Is(err, exchange.ErrSelfCompletion):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "cannot complete your own task"})
	case errors.Is(err, exchange.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not the task creator"})
	case errors.Is(err, exchange.ErrAlreadyCompleted):
		return c.JSON(http.StatusConflict, echo.Map{"error": "task already completed by this user"})
	case errors.Is(err, exchange.ErrTaskExhausted):
		return c.JSON(http.StatusConflict, echo.Map{"error": "task has no remaining actions"})
	case errors.Is(err, exchange.ErrVerificationFailed):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "action could not be verified"})
	case errors.Is(err, exchange.ErrVerifierUnavailable):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "verifier unavailable, try again"})
	case errors.Is(err, exchange.ErrStorageConflict):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "conflict under load, try again"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

func taskIDParam(c echo.Context) (uint64, error) {
	return strconv.ParseUint(c.Param("id"), 10, 64)
}

// CreateTask publishes a new task, charging the creation cost
// atomically with the insert.
func (h *ExchangeHandler) CreateTask(c echo.Context) error {
	var req createTaskReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	uid := middleware.CurrentUserID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token subject"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	task, err := h.Engine.CreateTask(ctx, uid, req.Type, req.TargetURL, req.Actions)
	if err != nil {
		return exchangeError(c, err)
	}
	return c.JSON(http.StatusCreated, toTaskResp(task))
}

// ListTasks returns all open tasks with capacity left.
func (h *ExchangeHandler) ListTasks(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	tasks, err := h.Engine.OpenTasks(ctx)
	if err != nil {
		return exchangeError(c, err)
	}
	out := make([]taskResp, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toTaskResp(t))
	}
	return c.JSON(http.StatusOK, echo.Map{"tasks": out})
}

// GetTask returns one task with its completion history.
func (h *ExchangeHandler) GetTask(c echo.Context) error {
	id, err := taskIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid task id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	task, err := h.Engine.Task(ctx, id)
	if err != nil {
		return exchangeError(c, err)
	}
	comps, err := h.Engine.TaskCompletions(ctx, id)
	if err != nil {
		return exchangeError(c, err)
	}
	type compResp struct {
		UserID     uint64 `json:"user_id"`
		Credits    int64  `json:"credits"`
		VerifiedAt string `json:"verified_at"`
	}
	cs := make([]compResp, 0, len(comps))
	for _, cm := range comps {
		cs = append(cs, compResp{
			UserID:     cm.UserID,
			Credits:    cm.CreditsAwarded,
			VerifiedAt: cm.VerifiedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"task": toTaskResp(task), "completions": cs})
}

// CompleteTask records a verified completion and credits the reward.
// The storage layer guarantees each user is paid at most once per
// task no matter how the request is raced or retried.
func (h *ExchangeHandler) CompleteTask(c echo.Context) error {
	id, err := taskIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid task id"})
	}
	uid := middleware.CurrentUserID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token subject"})
	}

	// Verification has its own timeout inside the engine; the outer
	// context stays the request's.
	res, err := h.Engine.Complete(c.Request().Context(), id, uid)
	if err != nil {
		return exchangeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"credited":          exchange.RewardPerCompletion,
		"new_balance":       res.NewBalance,
		"remaining_actions": res.Remaining,
	})
}

// DeleteTask retires the caller's own task. Spent credits are not
// refunded.
func (h *ExchangeHandler) DeleteTask(c echo.Context) error {
	id, err := taskIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid task id"})
	}
	uid := middleware.CurrentUserID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token subject"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Engine.DeleteTask(ctx, id, uid); err != nil {
		return exchangeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
