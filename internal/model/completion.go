package model

import "time"

// Completion records one verified fulfilment of a task by a user.
// The (TaskID, UserID) pair is unique in the `completions` table;
// that constraint, not any in-process lock, is what guarantees a
// user is rewarded at most once per task. Rows are immutable once
// written.
type Completion struct {
	ID             uint64    // completions.id
	TaskID         uint64    // completions.task_id
	UserID         uint64    // completions.user_id
	CreditsAwarded int64     // completions.credits_awarded
	VerifiedAt     time.Time // completions.verified_at
}
