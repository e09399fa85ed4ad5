package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/upclick/task-exchange/internal/exchange"
	"github.com/upclick/task-exchange/internal/model"
)

// TaskRepo provides access to the tasks table. Capacity only moves
// through DecrementTx, a conditional single-statement update, so
// remaining_actions cannot go negative no matter how many
// completion transactions race on the same task.
type TaskRepo struct{ DB *sql.DB }

func NewTaskRepo(db *sql.DB) *TaskRepo { return &TaskRepo{DB: db} }

const taskColumns = "id, type, target_url, creator_id, remaining_actions, status, created_at"

// CreateTx inserts a new OPEN task within an existing transaction
// and populates the generated ID. The caller owns commit/rollback;
// pairing this with the creator debit in one transaction is what
// prevents a half-created task.
func (r *TaskRepo) CreateTx(ctx context.Context, tx *sql.Tx, t *model.Task) error {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO tasks (type, target_url, creator_id, remaining_actions, status) VALUES (?,?,?,?,?)",
		t.Type, t.TargetURL, t.CreatorID, t.RemainingActions, model.TaskOpen)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	t.Status = model.TaskOpen
	return tx.QueryRowContext(ctx, "SELECT created_at FROM tasks WHERE id=?", t.ID).Scan(&t.CreatedAt)
}

func scanTask(row *sql.Row) (model.Task, error) {
	var t model.Task
	err := row.Scan(&t.ID, &t.Type, &t.TargetURL, &t.CreatorID, &t.RemainingActions, &t.Status, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Task{}, exchange.ErrUnknownTask
	}
	return t, err
}

// GetByID fetches a task in any status, or exchange.ErrUnknownTask.
func (r *TaskRepo) GetByID(ctx context.Context, id uint64) (model.Task, error) {
	return scanTask(r.DB.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id=? LIMIT 1", id))
}

// ListOpen returns tasks that still accept completions, newest
// first. Exhausted tasks stay queryable through GetByID but are
// not offered for completion.
func (r *TaskRepo) ListOpen(ctx context.Context) ([]model.Task, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE status=? AND remaining_actions > 0 ORDER BY created_at DESC, id DESC",
		model.TaskOpen)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tasks := make([]model.Task, 0)
	for rows.Next() {
		var t model.Task
		if err := rows.Scan(&t.ID, &t.Type, &t.TargetURL, &t.CreatorID, &t.RemainingActions, &t.Status, &t.CreatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// DecrementTx consumes one unit of task capacity inside an existing
// transaction and returns the post-decrement value. The WHERE
// clause makes the decrement conditional: when no open capacity is
// left the statement affects zero rows and the attempt fails with
// ErrTaskExhausted, which aborts the caller's transaction. The
// returned value is read under the row lock taken by the UPDATE,
// so it is exactly this transaction's view, never a stale re-read.
func (r *TaskRepo) DecrementTx(ctx context.Context, tx *sql.Tx, taskID uint64) (int64, error) {
	res, err := tx.ExecContext(ctx,
		"UPDATE tasks SET remaining_actions = remaining_actions - 1 WHERE id = ? AND status = ? AND remaining_actions > 0",
		taskID, model.TaskOpen)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, exchange.ErrTaskExhausted
	}
	var remaining int64
	if err := tx.QueryRowContext(ctx, "SELECT remaining_actions FROM tasks WHERE id=?", taskID).Scan(&remaining); err != nil {
		return 0, err
	}
	return remaining, nil
}

// MarkExhaustedTx retires a task whose capacity just reached zero.
// Runs in the same transaction as the final decrement.
func (r *TaskRepo) MarkExhaustedTx(ctx context.Context, tx *sql.Tx, taskID uint64) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE tasks SET status=? WHERE id=? AND status=? AND remaining_actions = 0",
		model.TaskExhausted, taskID, model.TaskOpen)
	return err
}

// Delete marks a task DELETED. Unless force is set the requester
// must be the task's creator. Completion history survives; the
// creation cost is not refunded.
func (r *TaskRepo) Delete(ctx context.Context, taskID, requesterID uint64, force bool) error {
	var creatorID uint64
	var status string
	err := r.DB.QueryRowContext(ctx, "SELECT creator_id, status FROM tasks WHERE id=? LIMIT 1", taskID).
		Scan(&creatorID, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return exchange.ErrUnknownTask
	}
	if err != nil {
		return err
	}
	if status == model.TaskDeleted {
		return exchange.ErrUnknownTask
	}
	if !force && creatorID != requesterID {
		return exchange.ErrForbidden
	}
	_, err = r.DB.ExecContext(ctx, "UPDATE tasks SET status=? WHERE id=?", model.TaskDeleted, taskID)
	return err
}
