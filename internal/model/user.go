package model

import "time"

// AdminOverride is the tri-state admin decision about a user's
// platform access. UNSET means no decision has been made, in which
// case the normal payment/trial rules apply. Modelling this as
// three explicit values removes the ambiguity between "never
// decided" and "explicitly allowed" that a nullable boolean column
// would carry.
type AdminOverride string

const (
	OverrideUnset   AdminOverride = "UNSET"
	OverrideGranted AdminOverride = "GRANTED"
	OverrideRevoked AdminOverride = "REVOKED"
)

// User represents an application user record as stored in the
// `users` table. Credits are an integer balance that must never go
// negative; the repository enforces this with guarded updates, so
// business code can treat the field as read-only.
//
// Fields:
//  ID                   – primary key identifier of the user.
//  Phone                – unique, normalized phone number used for login.
//  PasswordHash         – bcrypt hashed password.
//  Role                 – role name (USER or ADMIN).
//  Credits              – current credit balance, always >= 0.
//  TrialStartedAt       – set once at registration; anchors the free trial.
//  LastPaymentAt        – most recent subscription payment (nullable).
//  AdminOverride        – tri-state admin access decision.
//  AdminGrantedAt       – when access was last granted (nullable, only
//                         meaningful while AdminOverride is GRANTED).
//  CreatedAt, UpdatedAt – row timestamps.
type User struct {
	ID             uint64        // users.id
	Phone          string        // users.phone
	PasswordHash   string        // users.password_hash
	Role           string        // users.role
	Credits        int64         // users.credits
	TrialStartedAt time.Time     // users.trial_started_at
	LastPaymentAt  *time.Time    // users.last_payment_at (nullable)
	AdminOverride  AdminOverride // users.admin_override
	AdminGrantedAt *time.Time    // users.admin_granted_at (nullable)
	CreatedAt      time.Time     // users.created_at
	UpdatedAt      time.Time     // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table. The
// plain token is never stored; only its SHA-256 hash.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
