package model

import "time"

// TaskType enumerates the engagement actions that can be traded on
// the exchange.
type TaskType string

const (
	TaskLike    TaskType = "LIKE"
	TaskFollow  TaskType = "FOLLOW"
	TaskComment TaskType = "COMMENT"
	TaskShare   TaskType = "SHARE"
)

// ValidTaskType reports whether s names a known task type.
func ValidTaskType(s string) bool {
	switch TaskType(s) {
	case TaskLike, TaskFollow, TaskComment, TaskShare:
		return true
	}
	return false
}

// Task status values. A task is OPEN while it still accepts
// completions, EXHAUSTED once its remaining actions reach zero and
// DELETED after an explicit delete by its creator or an admin.
// EXHAUSTED is terminal except for the transition to DELETED.
const (
	TaskOpen      = "OPEN"
	TaskExhausted = "EXHAUSTED"
	TaskDeleted   = "DELETED"
)

// Task represents an exchange task as stored in the `tasks` table.
// RemainingActions only ever decreases, one guarded decrement per
// recorded completion, and can never drop below zero.
//
// Fields:
//  ID               – primary key identifier.
//  Type             – requested engagement action.
//  TargetURL        – the post or profile the action applies to.
//  CreatorID        – user who posted the task and paid its cost.
//  RemainingActions – completions still accepted, >= 0.
//  Status           – OPEN, EXHAUSTED or DELETED.
//  CreatedAt        – when the task was created.
type Task struct {
	ID               uint64    // tasks.id
	Type             TaskType  // tasks.type
	TargetURL        string    // tasks.target_url
	CreatorID        uint64    // tasks.creator_id
	RemainingActions int64     // tasks.remaining_actions
	Status           string    // tasks.status
	CreatedAt        time.Time // tasks.created_at
}
