// Package identities owns the Identity aggregate: the model, the repository
// contract, and its PostgreSQL implementation. Email uniqueness is enforced
// by a store-level constraint, not by check-then-insert logic in callers.
package identities

import (
	"context"
)

type Repository interface {
	// FindByEmail returns the identity with the given email (exact,
	// case-sensitive match) or common.ErrorNotFound.
	FindByEmail(ctx context.Context, email string) (*Identity, error)

	// CreateLocal inserts a new unverified local account. A duplicate email
	// maps to common.ErrDuplicateEmail.
	CreateLocal(ctx context.Context, name, email, passwordHash string) (*Identity, error)

	// CreateOrUpdateFederated upserts a federated identity. When an identity
	// with the email already exists the name is updated and, if avatarRef is
	// non-empty, the avatar reference too; password_hash and is_verified are
	// left untouched. Otherwise a new verified federated identity with an
	// empty password hash is created.
	CreateOrUpdateFederated(ctx context.Context, email, name, avatarRef string) (*Identity, error)

	// MarkVerified flips is_verified for the identity.
	MarkVerified(ctx context.Context, id int64) error

	// SetPassword replaces the stored password hash.
	SetPassword(ctx context.Context, id int64, passwordHash string) error

	// UpdateProfile sets the display name and avatar reference.
	UpdateProfile(ctx context.Context, id int64, name, avatarRef string) error
}
