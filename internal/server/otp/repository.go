// Package otp owns the one-time-passcode lifecycle: challenge storage and the
// Engine implementing issuance (with cooldown throttling) and single-use
// verification.
package otp

import (
	"context"
)

// Repository persists OTP challenges. Implementations are constructed over a
// dbx.DBTX so the Engine can run check+delete+insert atomically inside one
// transaction.
type Repository interface {
	// Lock serializes transactions working on the (email, purpose) pair.
	// Held until the surrounding transaction ends.
	Lock(ctx context.Context, email string, purpose Purpose) error

	// FindLatest returns the most recently created challenge for the
	// (email, purpose) pair, or common.ErrorNotFound.
	FindLatest(ctx context.Context, email string, purpose Purpose) (*Challenge, error)

	// Find returns the challenge matching email, code and purpose, or
	// common.ErrorNotFound.
	Find(ctx context.Context, email, code string, purpose Purpose) (*Challenge, error)

	// Create inserts a new challenge and fills in its ID.
	Create(ctx context.Context, challenge *Challenge) error

	// DeleteAll removes every challenge for the (email, purpose) pair.
	DeleteAll(ctx context.Context, email string, purpose Purpose) error

	// Delete removes a single challenge by ID.
	Delete(ctx context.Context, id int64) error
}
