package model

// AccessReason explains why an access window is open or closed.
type AccessReason string

const (
	AccessTrial        AccessReason = "TRIAL"
	AccessPayment      AccessReason = "PAYMENT"
	AccessAdminGrant   AccessReason = "ADMIN_GRANT"
	AccessAdminRevoked AccessReason = "ADMIN_REVOKED"
	AccessExpired      AccessReason = "EXPIRED"
)

// AccessWindow is the derived answer to "may this user use gated
// features right now". It is computed from a User snapshot and is
// never stored. DaysRemaining is nil when the window has no known
// end (an active payment window reports its remaining days, a
// revoked or expired window has none).
type AccessWindow struct {
	HasAccess     bool         `json:"has_access"`
	DaysRemaining *int         `json:"days_remaining,omitempty"`
	Reason        AccessReason `json:"reason"`
}
