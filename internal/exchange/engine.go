package exchange

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/upclick/task-exchange/internal/model"
)

// Fixed exchange economics. Creating a task always costs one
// credit regardless of its action count, and every verified
// completion pays five. The signup bonus is configurable because
// operations tune it per campaign.
const (
	CreationCost        int64 = 1
	RewardPerCompletion int64 = 5
	DefaultSignupBonus  int64 = 150

	// URLMarker must appear in every task target URL.
	URLMarker = "tiktok.com"

	// DefaultVerifyTimeout bounds the external verification call.
	DefaultVerifyTimeout = 10 * time.Second

	// DefaultAdminGrantDays is the admin access grant duration used
	// when configuration does not override it.
	DefaultAdminGrantDays = 30
)

// CommitResult reports the outcome of a committed completion: the
// task's capacity after the guarded decrement and the completer's
// balance after the reward credit. Remaining is always the
// post-decrement value read inside the commit transaction, never a
// separately re-read one.
type CommitResult struct {
	Remaining  int64
	NewBalance int64
}

// Store is the engine's durable state boundary. Implementations
// must make CreateTask and CommitCompletion atomic: each runs in a
// single storage transaction and either fully commits or leaves no
// trace. CommitCompletion relies on storage-level guards, not
// application locks — a uniqueness constraint on (taskID, userID)
// rejecting duplicate inserts with ErrAlreadyCompleted, and a
// conditional capacity decrement failing with ErrTaskExhausted when
// no open capacity remains.
type Store interface {
	// User returns an account snapshot or ErrUnknownUser.
	User(ctx context.Context, userID uint64) (model.User, error)

	// Balance returns the current credit balance or ErrUnknownUser.
	Balance(ctx context.Context, userID uint64) (int64, error)

	// Task returns a task in any status, or ErrUnknownTask.
	Task(ctx context.Context, taskID uint64) (model.Task, error)

	// OpenTasks lists tasks still accepting completions, newest first.
	OpenTasks(ctx context.Context) ([]model.Task, error)

	// TaskCompletions lists the completion records of a task.
	TaskCompletions(ctx context.Context, taskID uint64) ([]model.Completion, error)

	// HasCompletion reports whether (taskID, userID) is already recorded.
	HasCompletion(ctx context.Context, taskID, userID uint64) (bool, error)

	// CreateTask debits cost from the creator and persists the task in
	// one transaction. ErrInsufficientCredits leaves no task behind.
	CreateTask(ctx context.Context, creatorID uint64, taskType model.TaskType, targetURL string, actions, cost int64) (model.Task, error)

	// CommitCompletion atomically records the (taskID, userID)
	// completion, decrements the task's remaining actions, credits the
	// reward and retires the task when the post-decrement value hits
	// zero. Any guard failure aborts the whole transaction.
	CommitCompletion(ctx context.Context, taskID, userID uint64, reward int64) (CommitResult, error)

	// DeleteTask marks a task DELETED. Unless force is set the
	// requester must be the creator; spent creation cost is never
	// refunded.
	DeleteTask(ctx context.Context, taskID uint64, requesterID uint64, force bool) error
}

// Config carries the tunable engine parameters.
type Config struct {
	VerifyTimeout  time.Duration // upper bound for ActionVerifier calls
	AdminGrantDays int           // admin access grant duration in days
}

// Engine coordinates the exchange: it owns eligibility checks and
// verification ordering, and delegates every state change to the
// Store's transactional operations. It holds no mutable state of
// its own, so a single instance serves all request handlers.
type Engine struct {
	store    Store
	verifier ActionVerifier
	notifier Notifier
	cfg      Config
	now      func() time.Time
}

// New builds an Engine. The notifier may be nil, in which case
// completions simply skip notification.
func New(store Store, verifier ActionVerifier, notifier Notifier, cfg Config) *Engine {
	if cfg.VerifyTimeout <= 0 {
		cfg.VerifyTimeout = DefaultVerifyTimeout
	}
	if cfg.AdminGrantDays <= 0 {
		cfg.AdminGrantDays = DefaultAdminGrantDays
	}
	return &Engine{store: store, verifier: verifier, notifier: notifier, cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

// CreateTask validates the request, debits the creation cost and
// persists the task. Validation happens before any debit so an
// invalid request can never cost credits; an insufficient balance
// leaves no partial task behind (the store transaction guarantees
// it).
func (e *Engine) CreateTask(ctx context.Context, creatorID uint64, taskType, targetURL string, actions int64) (model.Task, error) {
	if !model.ValidTaskType(taskType) {
		return model.Task{}, fmt.Errorf("%w: unknown type %q", ErrInvalidTask, taskType)
	}
	if !strings.Contains(strings.ToLower(targetURL), URLMarker) {
		return model.Task{}, fmt.Errorf("%w: target url must contain %s", ErrInvalidTask, URLMarker)
	}
	if actions < 1 {
		return model.Task{}, fmt.Errorf("%w: action count must be at least 1", ErrInvalidTask)
	}
	return e.store.CreateTask(ctx, creatorID, model.TaskType(taskType), targetURL, actions, CreationCost)
}

// Complete runs one completion attempt for (taskID, userID).
//
// The read-only eligibility checks here exist to fail fast and to
// avoid paying for an external verification that cannot commit;
// they are advisory only. The commit transaction re-validates every
// one of them through its storage guards, so two concurrent
// attempts that both pass the pre-checks still serialize correctly:
// exactly one inserts the completion row, the other receives
// ErrAlreadyCompleted from the uniqueness constraint.
func (e *Engine) Complete(ctx context.Context, taskID, userID uint64) (CommitResult, error) {
	task, err := e.store.Task(ctx, taskID)
	if err != nil {
		return CommitResult{}, err
	}
	if task.Status == model.TaskDeleted {
		return CommitResult{}, ErrUnknownTask
	}
	if task.Status != model.TaskOpen || task.RemainingActions <= 0 {
		return CommitResult{}, ErrTaskExhausted
	}
	if task.CreatorID == userID {
		return CommitResult{}, ErrSelfCompletion
	}
	done, err := e.store.HasCompletion(ctx, taskID, userID)
	if err != nil {
		return CommitResult{}, err
	}
	if done {
		return CommitResult{}, ErrAlreadyCompleted
	}

	vctx, cancel := context.WithTimeout(ctx, e.cfg.VerifyTimeout)
	defer cancel()
	result, err := e.verifier.Check(vctx, task.Type, task.TargetURL, userID)
	if err != nil {
		return CommitResult{}, fmt.Errorf("%w: %v", ErrVerifierUnavailable, err)
	}
	if result != Verified {
		return CommitResult{}, ErrVerificationFailed
	}

	res, err := e.store.CommitCompletion(ctx, taskID, userID, RewardPerCompletion)
	if err != nil {
		return CommitResult{}, err
	}

	if e.notifier != nil {
		msg := fmt.Sprintf("You earned %d credits for a %s task", RewardPerCompletion, task.Type)
		// Already committed; delivery failure is the notifier's problem.
		_ = e.notifier.Send(ctx, userID, msg)
	}
	return res, nil
}

// DeleteTask removes a task on behalf of its creator. The creation
// cost is not refunded, even for an unused task.
func (e *Engine) DeleteTask(ctx context.Context, taskID, requesterID uint64) error {
	return e.store.DeleteTask(ctx, taskID, requesterID, false)
}

// AdminDeleteTask removes any task, bypassing the creator check.
func (e *Engine) AdminDeleteTask(ctx context.Context, taskID uint64) error {
	return e.store.DeleteTask(ctx, taskID, 0, true)
}

// Balance returns the user's current credit balance.
func (e *Engine) Balance(ctx context.Context, userID uint64) (int64, error) {
	return e.store.Balance(ctx, userID)
}

// OpenTasks lists tasks that still accept completions.
func (e *Engine) OpenTasks(ctx context.Context) ([]model.Task, error) {
	return e.store.OpenTasks(ctx)
}

// Task returns a single task in any status.
func (e *Engine) Task(ctx context.Context, taskID uint64) (model.Task, error) {
	return e.store.Task(ctx, taskID)
}

// TaskCompletions lists a task's completion history.
func (e *Engine) TaskCompletions(ctx context.Context, taskID uint64) ([]model.Completion, error) {
	return e.store.TaskCompletions(ctx, taskID)
}

// ResolveAccess loads the user and evaluates their access window at
// the current time.
func (e *Engine) ResolveAccess(ctx context.Context, userID uint64) (model.AccessWindow, error) {
	u, err := e.store.User(ctx, userID)
	if err != nil {
		return model.AccessWindow{}, err
	}
	return ResolveAccess(u, e.now(), e.cfg.AdminGrantDays), nil
}
