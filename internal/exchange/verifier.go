package exchange

import (
	"context"

	"github.com/upclick/task-exchange/internal/model"
)

// VerifyResult is the outcome of an external action check.
type VerifyResult int

const (
	// Unverified means the platform could not confirm the action.
	Unverified VerifyResult = iota
	// Verified means the action was confirmed to have happened.
	Verified
)

// ActionVerifier checks with the social platform whether userID
// actually performed the requested action on targetURL. The engine
// calls it with a bounded context; implementations must honor
// cancellation. Returning an error (as opposed to Unverified) marks
// the attempt as a transport failure, which is retryable with no
// engine-side state change.
type ActionVerifier interface {
	Check(ctx context.Context, taskType model.TaskType, targetURL string, userID uint64) (VerifyResult, error)
}

// VerifierFunc adapts a function to the ActionVerifier interface.
type VerifierFunc func(ctx context.Context, taskType model.TaskType, targetURL string, userID uint64) (VerifyResult, error)

func (f VerifierFunc) Check(ctx context.Context, taskType model.TaskType, targetURL string, userID uint64) (VerifyResult, error) {
	return f(ctx, taskType, targetURL, userID)
}
