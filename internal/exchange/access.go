package exchange

import (
	"math"
	"time"

	"github.com/upclick/task-exchange/internal/model"
)

// Access window durations. The trial and payment windows are fixed
// product rules; the admin grant duration is configuration because
// its authoritative value lives outside the engine.
const (
	TrialDays   = 45
	PaymentDays = 30
)

// ResolveAccess computes a user's access window from an account
// snapshot. Evaluation order is strict: an explicit admin
// revocation always wins, an unexpired admin grant comes next, then
// a payment within PaymentDays, then the registration trial within
// TrialDays. An expired admin grant falls through to the payment
// and trial rules rather than pinning the account open forever.
//
// The function is pure; callers pass the clock.
func ResolveAccess(u model.User, now time.Time, grantDays int) model.AccessWindow {
	switch u.AdminOverride {
	case model.OverrideRevoked:
		return model.AccessWindow{HasAccess: false, Reason: model.AccessAdminRevoked}
	case model.OverrideGranted:
		if u.AdminGrantedAt != nil {
			left := daysLeft(*u.AdminGrantedAt, grantDays, now)
			if left > 0 {
				return model.AccessWindow{HasAccess: true, DaysRemaining: &left, Reason: model.AccessAdminGrant}
			}
		}
		// grant expired or never stamped: fall through
	}
	if u.LastPaymentAt != nil {
		if left := daysLeft(*u.LastPaymentAt, PaymentDays, now); left > 0 {
			return model.AccessWindow{HasAccess: true, DaysRemaining: &left, Reason: model.AccessPayment}
		}
	}
	if left := daysLeft(u.TrialStartedAt, TrialDays, now); left > 0 {
		return model.AccessWindow{HasAccess: true, DaysRemaining: &left, Reason: model.AccessTrial}
	}
	return model.AccessWindow{HasAccess: false, Reason: model.AccessExpired}
}

// daysLeft returns the whole days remaining in a window of length
// windowDays anchored at start, rounding partial days up so that a
// window opened 44.5 days ago still reports 1 day left. Never
// negative.
func daysLeft(start time.Time, windowDays int, now time.Time) int {
	elapsed := now.Sub(start).Hours() / 24
	left := int(math.Ceil(float64(windowDays) - elapsed))
	if left < 0 {
		return 0
	}
	return left
}
