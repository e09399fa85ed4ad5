package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/upclick/task-exchange/internal/exchange"
	"github.com/upclick/task-exchange/internal/model"
)

// CompletionRepo provides access to the completions table, the
// exactly-once ledger of the exchange. The table carries a UNIQUE
// KEY on (task_id, user_id); InsertTx leans on it instead of any
// application-level lock, so the guarantee holds across process
// restarts and multiple instances.
type CompletionRepo struct{ DB *sql.DB }

func NewCompletionRepo(db *sql.DB) *CompletionRepo { return &CompletionRepo{DB: db} }

// InsertTx records a completion within an existing transaction.
// When a concurrent attempt for the same (task, user) pair already
// landed, MySQL rejects the insert with a duplicate-key error
// (1062) and the caller receives ErrAlreadyCompleted, aborting the
// whole commit.
func (r *CompletionRepo) InsertTx(ctx context.Context, tx *sql.Tx, taskID, userID uint64, awarded int64) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO completions (task_id, user_id, credits_awarded, verified_at) VALUES (?,?,?,UTC_TIMESTAMP())",
		taskID, userID, awarded)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return exchange.ErrAlreadyCompleted
		}
		return err
	}
	return nil
}

// Exists reports whether a completion is already recorded for the
// pair. Advisory read used by the engine's pre-checks; the unique
// key remains the authority at commit time.
func (r *CompletionRepo) Exists(ctx context.Context, taskID, userID uint64) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx,
		"SELECT 1 FROM completions WHERE task_id=? AND user_id=? LIMIT 1",
		taskID, userID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListByTask returns a task's completion records, oldest first.
func (r *CompletionRepo) ListByTask(ctx context.Context, taskID uint64) ([]model.Completion, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, task_id, user_id, credits_awarded, verified_at FROM completions WHERE task_id=? ORDER BY verified_at, id",
		taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Completion, 0)
	for rows.Next() {
		var c model.Completion
		if err := rows.Scan(&c.ID, &c.TaskID, &c.UserID, &c.CreditsAwarded, &c.VerifiedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
