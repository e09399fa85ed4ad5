package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/upclick/task-exchange/internal/exchange"
	"github.com/upclick/task-exchange/internal/model"
)

// ExchangeStore composes the per-table repositories into the
// engine's exchange.Store contract. It owns the transaction
// boundaries: CreateTask and CommitCompletion each run as one
// BeginTx/Commit pair so the debit-plus-insert and the
// record-decrement-credit triples are all-or-nothing.
type ExchangeStore struct {
	DB          *sql.DB
	Users       *UserRepo
	Tasks       *TaskRepo
	Completions *CompletionRepo
}

// NewExchangeStore builds the store over a shared DB handle.
func NewExchangeStore(db *sql.DB) *ExchangeStore {
	return &ExchangeStore{
		DB:          db,
		Users:       NewUserRepo(db),
		Tasks:       NewTaskRepo(db),
		Completions: NewCompletionRepo(db),
	}
}

var _ exchange.Store = (*ExchangeStore)(nil)

func (s *ExchangeStore) User(ctx context.Context, userID uint64) (model.User, error) {
	return s.Users.GetByID(ctx, userID)
}

func (s *ExchangeStore) Balance(ctx context.Context, userID uint64) (int64, error) {
	return s.Users.Balance(ctx, userID)
}

func (s *ExchangeStore) Task(ctx context.Context, taskID uint64) (model.Task, error) {
	return s.Tasks.GetByID(ctx, taskID)
}

func (s *ExchangeStore) OpenTasks(ctx context.Context) ([]model.Task, error) {
	return s.Tasks.ListOpen(ctx)
}

func (s *ExchangeStore) TaskCompletions(ctx context.Context, taskID uint64) ([]model.Completion, error) {
	return s.Completions.ListByTask(ctx, taskID)
}

func (s *ExchangeStore) HasCompletion(ctx context.Context, taskID, userID uint64) (bool, error) {
	return s.Completions.Exists(ctx, taskID, userID)
}

func (s *ExchangeStore) DeleteTask(ctx context.Context, taskID, requesterID uint64, force bool) error {
	return s.Tasks.Delete(ctx, taskID, requesterID, force)
}

// CreateTask debits the creation cost from the creator and inserts
// the task in a single transaction. When the debit fails with
// ErrInsufficientCredits the rollback guarantees no task row was
// left behind.
func (s *ExchangeStore) CreateTask(ctx context.Context, creatorID uint64, taskType model.TaskType, targetURL string, actions, cost int64) (model.Task, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.Task{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := s.Users.AdjustCreditsTx(ctx, tx, creatorID, -cost); err != nil {
		return model.Task{}, err
	}
	task := model.Task{
		Type:             taskType,
		TargetURL:        targetURL,
		CreatorID:        creatorID,
		RemainingActions: actions,
	}
	if err := s.Tasks.CreateTx(ctx, tx, &task); err != nil {
		return model.Task{}, classifyTxErr(err)
	}
	if err := tx.Commit(); err != nil {
		return model.Task{}, classifyTxErr(err)
	}
	committed = true
	return task, nil
}

// CommitCompletion performs the concurrency-critical commit of one
// completion: insert the ledger row (the unique key rejects a
// concurrent duplicate), consume one unit of capacity (the guarded
// decrement rejects an exhausted task), credit the reward, and
// retire the task when the post-decrement value is zero. One
// transaction; any failure rolls the whole attempt back.
func (s *ExchangeStore) CommitCompletion(ctx context.Context, taskID, userID uint64, reward int64) (exchange.CommitResult, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return exchange.CommitResult{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := s.Completions.InsertTx(ctx, tx, taskID, userID, reward); err != nil {
		return exchange.CommitResult{}, classifyTxErr(err)
	}
	remaining, err := s.Tasks.DecrementTx(ctx, tx, taskID)
	if err != nil {
		return exchange.CommitResult{}, classifyTxErr(err)
	}
	balance, err := s.Users.AdjustCreditsTx(ctx, tx, userID, reward)
	if err != nil {
		return exchange.CommitResult{}, classifyTxErr(err)
	}
	if remaining == 0 {
		if err := s.Tasks.MarkExhaustedTx(ctx, tx, taskID); err != nil {
			return exchange.CommitResult{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return exchange.CommitResult{}, classifyTxErr(err)
	}
	committed = true
	return exchange.CommitResult{Remaining: remaining, NewBalance: balance}, nil
}

// classifyTxErr maps MySQL deadlock and lock-timeout errors (1213,
// 1205) to ErrStorageConflict so callers know the attempt is safe
// to re-issue.
func classifyTxErr(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "1213") || strings.Contains(msg, "1205") || strings.Contains(msg, "deadlock") {
		return exchange.ErrStorageConflict
	}
	return err
}
