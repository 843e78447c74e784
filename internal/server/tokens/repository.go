// Package tokens implements signed session tokens: HS256 JWT issuance and
// validation plus an append-only revocation set consulted before any
// signature check.
package tokens

import (
	"context"
	"time"
)

// Repository is the revocation set. Add must be idempotent: revoking an
// already-revoked token is a no-op success. Entries are never removed here;
// retention is an external concern.
type Repository interface {
	Add(ctx context.Context, token string, revokedAt time.Time) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}
