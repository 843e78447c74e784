package identities

import "time"

// Identity is a user account. PasswordHash is empty for federated-only
// accounts; AvatarRef is empty when no avatar has been uploaded.
type Identity struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	IsVerified   bool
	Federated    bool
	AvatarRef    string
	CreatedAt    time.Time
}
