package otp

import "time"

// Purpose names the flow an issued passcode belongs to. A code issued for one
// purpose never verifies for another.
type Purpose string

const (
	PurposeVerifyEmail   Purpose = "verify_email"
	PurposeResetPassword Purpose = "reset_password"
)

// Challenge is a single one-time passcode bound to an email and a purpose.
// At most one challenge per (email, purpose) is active at a time: issuing a
// new one supersedes (deletes) all prior rows for that pair.
type Challenge struct {
	ID        int64
	Email     string
	Code      string
	Purpose   Purpose
	CreatedAt time.Time
	ExpiresAt time.Time
}
