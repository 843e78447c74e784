// Package common defines shared constants and sentinel errors used across
// the accountd server layers. Callers should use errors.Is to match the
// sentinel values and errors.As for the typed errors.
package common

import (
	"errors"
	"fmt"
	"time"
)

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrDuplicateEmail  = errors.New("email already registered")
	ErrAlreadyVerified = errors.New("email already verified")

	// Service-level errors (generic/internal flow control). ErrorInternal
	// wraps transient backing-store failures; it is never one of the
	// domain outcomes below.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("invalid credentials or email not verified")

	// OTP lifecycle errors.
	ErrInvalidOrExpiredOtp = errors.New("invalid or expired otp")

	// Token lifecycle errors.
	ErrTokenRevoked   = errors.New("token has been revoked")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("malformed token")

	// Profile errors.
	ErrUnsupportedFileType = errors.New("unsupported file type: only JPEG, PNG and WEBP images are allowed")
)

// PasswordRule identifies the strength rule a password failed.
type PasswordRule string

const (
	RuleMinLength PasswordRule = "min_length"
	RuleUppercase PasswordRule = "uppercase"
	RuleLowercase PasswordRule = "lowercase"
	RuleDigit     PasswordRule = "digit"
	RuleSymbol    PasswordRule = "symbol"
)

// WeakPasswordError reports the first strength rule a candidate password
// failed. Matched with errors.As.
type WeakPasswordError struct {
	Rule PasswordRule
}

func (e *WeakPasswordError) Error() string {
	switch e.Rule {
	case RuleMinLength:
		return "password must be at least 8 characters long"
	case RuleUppercase:
		return "password must contain at least one uppercase letter"
	case RuleLowercase:
		return "password must contain at least one lowercase letter"
	case RuleDigit:
		return "password must contain at least one digit"
	case RuleSymbol:
		return "password must contain at least one special character"
	}
	return "password is too weak"
}

// RateLimitedError is returned when an OTP is requested again before the
// resend cooldown has elapsed. RetryAfter is rounded up to whole seconds.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("please wait %d seconds before requesting another code", int(e.RetryAfter.Seconds()))
}
