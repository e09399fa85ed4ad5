// Package exchange implements the task-exchange credit engine: task
// creation with an up-front credit debit, verified exactly-once task
// completion with an atomic reward credit, and resolution of a
// user's platform access window. Storage transactions and the
// external action verifier are the only blocking collaborators;
// both sit behind interfaces defined here.
package exchange

import "errors"

// Sentinel errors returned by the engine and its Store
// implementations. Handlers translate these into HTTP statuses; the
// engine itself never formats user-facing text.
//
// ErrVerificationFailed and ErrVerifierUnavailable are the only
// errors a caller may retry automatically: neither commits any
// state, so a retry re-runs the full eligibility and verification
// path. Everything else requires a new decision by the caller.
var (
	// ErrInsufficientCredits rejects a debit that would drive a
	// balance below zero. The balance is never clamped.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrUnknownUser is returned when the referenced user does not exist.
	ErrUnknownUser = errors.New("unknown user")

	// ErrUnknownTask is returned when the referenced task does not
	// exist or has been deleted.
	ErrUnknownTask = errors.New("unknown task")

	// ErrTaskExhausted is returned when a task no longer accepts
	// completions because its remaining actions reached zero.
	ErrTaskExhausted = errors.New("task exhausted")

	// ErrAlreadyCompleted is returned when a (task, user) pair already
	// has a completion record. The uniqueness constraint on the
	// completions table raises it even under concurrent attempts.
	ErrAlreadyCompleted = errors.New("task already completed by this user")

	// ErrSelfCompletion rejects a creator completing their own task.
	ErrSelfCompletion = errors.New("creator cannot complete own task")

	// ErrVerificationFailed means the external verifier could not
	// confirm the action. No state was changed; retry later.
	ErrVerificationFailed = errors.New("action not verified")

	// ErrVerifierUnavailable means the external verifier could not be
	// reached (transport failure or timeout). No state was changed.
	ErrVerifierUnavailable = errors.New("action verifier unavailable")

	// ErrForbidden rejects an operation on a resource the caller does
	// not own, such as deleting someone else's task.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidTask rejects task parameters before any debit: an
	// unknown type, a target URL without the platform marker, or a
	// non-positive action count.
	ErrInvalidTask = errors.New("invalid task")

	// ErrStorageConflict signals a transient transaction conflict
	// (deadlock victim, serialization failure). The request is
	// idempotent and safe to re-issue.
	ErrStorageConflict = errors.New("storage conflict, retry")
)
