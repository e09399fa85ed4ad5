package exchange_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/upclick/task-exchange/internal/exchange"
	"github.com/upclick/task-exchange/internal/model"
)

func TestResolveAccess(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ago := func(d time.Duration) time.Time { return now.Add(-d) }
	tp := func(tm time.Time) *time.Time { return &tm }
	days := func(n float64) time.Duration { return time.Duration(n * 24 * float64(time.Hour)) }

	cases := []struct {
		name      string
		user      model.User
		hasAccess bool
		reason    model.AccessReason
		daysLeft  *int // nil means don't check
	}{
		{
			name:      "fresh trial",
			user:      model.User{TrialStartedAt: now, AdminOverride: model.OverrideUnset},
			hasAccess: true,
			reason:    model.AccessTrial,
			daysLeft:  intp(45),
		},
		{
			name:      "trial almost over rounds up",
			user:      model.User{TrialStartedAt: ago(days(44.5)), AdminOverride: model.OverrideUnset},
			hasAccess: true,
			reason:    model.AccessTrial,
			daysLeft:  intp(1),
		},
		{
			name:      "trial expired exactly",
			user:      model.User{TrialStartedAt: ago(days(45)), AdminOverride: model.OverrideUnset},
			hasAccess: false,
			reason:    model.AccessExpired,
		},
		{
			name: "recent payment",
			user: model.User{
				TrialStartedAt: ago(days(100)),
				LastPaymentAt:  tp(ago(days(10))),
				AdminOverride:  model.OverrideUnset,
			},
			hasAccess: true,
			reason:    model.AccessPayment,
			daysLeft:  intp(20),
		},
		{
			name: "payment window closed",
			user: model.User{
				TrialStartedAt: ago(days(100)),
				LastPaymentAt:  tp(ago(days(30))),
				AdminOverride:  model.OverrideUnset,
			},
			hasAccess: false,
			reason:    model.AccessExpired,
		},
		{
			name: "payment beats expired trial",
			user: model.User{
				TrialStartedAt: ago(days(60)),
				LastPaymentAt:  tp(ago(days(1))),
				AdminOverride:  model.OverrideUnset,
			},
			hasAccess: true,
			reason:    model.AccessPayment,
		},
		{
			name: "revocation beats fresh payment",
			user: model.User{
				TrialStartedAt: now,
				LastPaymentAt:  tp(now),
				AdminOverride:  model.OverrideRevoked,
			},
			hasAccess: false,
			reason:    model.AccessAdminRevoked,
		},
		{
			name: "active admin grant",
			user: model.User{
				TrialStartedAt: ago(days(200)),
				AdminOverride:  model.OverrideGranted,
				AdminGrantedAt: tp(ago(days(5))),
			},
			hasAccess: true,
			reason:    model.AccessAdminGrant,
			daysLeft:  intp(25),
		},
		{
			name: "expired grant falls through to payment",
			user: model.User{
				TrialStartedAt: ago(days(200)),
				LastPaymentAt:  tp(ago(days(5))),
				AdminOverride:  model.OverrideGranted,
				AdminGrantedAt: tp(ago(days(31))),
			},
			hasAccess: true,
			reason:    model.AccessPayment,
		},
		{
			name: "grant without timestamp falls through to trial",
			user: model.User{
				TrialStartedAt: ago(days(2)),
				AdminOverride:  model.OverrideGranted,
			},
			hasAccess: true,
			reason:    model.AccessTrial,
		},
		{
			name: "everything expired",
			user: model.User{
				TrialStartedAt: ago(days(300)),
				LastPaymentAt:  tp(ago(days(90))),
				AdminOverride:  model.OverrideGranted,
				AdminGrantedAt: tp(ago(days(120))),
			},
			hasAccess: false,
			reason:    model.AccessExpired,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			win := exchange.ResolveAccess(tc.user, now, exchange.DefaultAdminGrantDays)
			assert.Equal(t, tc.hasAccess, win.HasAccess)
			assert.Equal(t, tc.reason, win.Reason)
			if tc.daysLeft != nil {
				if assert.NotNil(t, win.DaysRemaining) {
					assert.Equal(t, *tc.daysLeft, *win.DaysRemaining)
				}
			}
		})
	}
}

func TestResolveAccessCustomGrantDays(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	granted := now.Add(-6 * 24 * time.Hour)
	u := model.User{
		TrialStartedAt: now.Add(-400 * 24 * time.Hour),
		AdminOverride:  model.OverrideGranted,
		AdminGrantedAt: &granted,
	}

	win := exchange.ResolveAccess(u, now, 7)
	assert.True(t, win.HasAccess)
	assert.Equal(t, model.AccessAdminGrant, win.Reason)

	win = exchange.ResolveAccess(u, now, 5)
	assert.False(t, win.HasAccess)
	assert.Equal(t, model.AccessExpired, win.Reason)
}

func intp(n int) *int { return &n }
