// Package accounts orchestrates the account lifecycle: registration with
// email verification, login, password reset, logout and federated sign-in.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/avdeev-dm/accountd/internal/common"
	"github.com/avdeev-dm/accountd/internal/server/identities"
	"github.com/avdeev-dm/accountd/internal/server/notify"
	"github.com/avdeev-dm/accountd/internal/server/oauth"
	"github.com/avdeev-dm/accountd/internal/server/otp"
	"github.com/avdeev-dm/accountd/internal/server/password"
)

// OtpEngine issues and verifies one-time codes. Check inspects a challenge
// without consuming it; Verify consumes.
type OtpEngine interface {
	Issue(ctx context.Context, email string, purpose otp.Purpose) (string, error)
	Check(ctx context.Context, email, code string, purpose otp.Purpose) error
	Verify(ctx context.Context, email, code string, purpose otp.Purpose) error
}

// TokenService issues, validates and revokes access tokens.
type TokenService interface {
	Issue(subject string) (string, error)
	Validate(ctx context.Context, tokenString string) (string, error)
	Revoke(ctx context.Context, tokenString string) error
}

// FederatedProvider is the external identity provider used for SSO.
type FederatedProvider interface {
	LoginURL() string
	ExchangeCode(ctx context.Context, code string) (*oauth.Profile, error)
}

// AvatarStore keeps profile images.
type AvatarStore interface {
	Store(ctx context.Context, r io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, ref string) error
}

type Service struct {
	repo      identities.Repository
	otp       OtpEngine
	tokens    TokenService
	notifier  notify.Notifier
	passwords *password.Policy
	provider  FederatedProvider
	avatars   AvatarStore
}

func NewService(repo identities.Repository, otpEngine OtpEngine, tokens TokenService,
	notifier notify.Notifier, passwords *password.Policy, provider FederatedProvider,
	avatars AvatarStore) *Service {
	return &Service{
		repo:      repo,
		otp:       otpEngine,
		tokens:    tokens,
		notifier:  notifier,
		passwords: passwords,
		provider:  provider,
		avatars:   avatars,
	}
}

// Register creates an unverified local account and sends a verification code.
// An existing email is reported before the password is inspected, so a
// duplicate registration never leaks strength feedback.
func (s *Service) Register(ctx context.Context, name, email, plainPassword string) (*identities.Identity, error) {
	_, err := s.repo.FindByEmail(ctx, email)
	if err == nil {
		return nil, common.ErrDuplicateEmail
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrorInternal
	}

	if err := s.passwords.ValidateStrength(plainPassword); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(plainPassword)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %v", err)
	}

	identity, err := s.repo.CreateLocal(ctx, name, email, hash)
	if err != nil {
		if errors.Is(err, common.ErrDuplicateEmail) {
			return nil, common.ErrDuplicateEmail
		}
		return nil, common.ErrorInternal
	}

	if err := s.sendCode(ctx, identity, otp.PurposeVerifyEmail); err != nil {
		return nil, err
	}

	return identity, nil
}

// ResendVerification issues a fresh verification code for an unverified
// account. Already verified accounts get common.ErrAlreadyVerified.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	identity, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return common.ErrorInternal
	}

	if identity.IsVerified {
		return common.ErrAlreadyVerified
	}

	return s.sendCode(ctx, identity, otp.PurposeVerifyEmail)
}

// VerifyEmail consumes a verification code and marks the account verified.
func (s *Service) VerifyEmail(ctx context.Context, email, code string) error {
	identity, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidOrExpiredOtp
		}
		return common.ErrorInternal
	}

	if err := s.otp.Verify(ctx, email, code, otp.PurposeVerifyEmail); err != nil {
		return err
	}

	if err := s.repo.MarkVerified(ctx, identity.ID); err != nil {
		return common.ErrorInternal
	}

	return nil
}

// Login checks the credentials and issues an access token. Every failure
// mode (unknown email, wrong password, unverified account, federated
// account without a password) reports the same common.ErrorUnauthorized,
// so the response does not reveal which accounts exist.
func (s *Service) Login(ctx context.Context, email, plainPassword string) (string, error) {
	identity, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrorUnauthorized
		}
		return "", common.ErrorInternal
	}

	if identity.PasswordHash == "" || !s.passwords.Verify(plainPassword, identity.PasswordHash) {
		return "", common.ErrorUnauthorized
	}

	if !identity.IsVerified {
		return "", common.ErrorUnauthorized
	}

	token, err := s.tokens.Issue(identity.Email)
	if err != nil {
		return "", common.ErrorInternal
	}

	return token, nil
}

// RequestPasswordReset sends a reset code to an existing account.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	identity, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return common.ErrorInternal
	}

	return s.sendCode(ctx, identity, otp.PurposeResetPassword)
}

// ResetPassword consumes a reset code and replaces the account password.
// The code is resolved before the new password is inspected, so a wrong code
// wins over a weak password; a weak password after a live code leaves the
// code unconsumed for a retry.
func (s *Service) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	identity, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidOrExpiredOtp
		}
		return common.ErrorInternal
	}

	if err := s.otp.Check(ctx, email, code, otp.PurposeResetPassword); err != nil {
		return err
	}

	if err := s.passwords.ValidateStrength(newPassword); err != nil {
		return err
	}

	if err := s.otp.Verify(ctx, email, code, otp.PurposeResetPassword); err != nil {
		return err
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return common.ErrorInternal
	}

	if err := s.repo.SetPassword(ctx, identity.ID, hash); err != nil {
		return common.ErrorInternal
	}

	return nil
}

// Logout revokes the access token so it is refused before its expiry.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.tokens.Revoke(ctx, token)
}

// GoogleLoginURL returns the provider consent URL.
func (s *Service) GoogleLoginURL() string {
	return s.provider.LoginURL()
}

// GoogleSignIn exchanges the provider code, upserts the federated identity
// and issues an access token. Federated accounts are verified on creation
// and an existing local account's password and verification state survive
// the upsert.
func (s *Service) GoogleSignIn(ctx context.Context, code string) (string, error) {
	profile, err := s.provider.ExchangeCode(ctx, code)
	if err != nil {
		return "", fmt.Errorf("error exchanging provider code: %w", err)
	}

	identity, err := s.repo.CreateOrUpdateFederated(ctx, profile.Email, profile.Name, profile.Avatar)
	if err != nil {
		return "", common.ErrorInternal
	}

	token, err := s.tokens.Issue(identity.Email)
	if err != nil {
		return "", common.ErrorInternal
	}

	return token, nil
}

// Authenticate resolves a bearer token to the identity it was issued for.
func (s *Service) Authenticate(ctx context.Context, token string) (*identities.Identity, error) {
	email, err := s.tokens.Validate(ctx, token)
	if err != nil {
		return nil, err
	}

	identity, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}

	return identity, nil
}

// UpdateProfile changes the display name and, when an image is supplied,
// replaces the avatar. The old avatar object is removed after the new one
// is stored.
func (s *Service) UpdateProfile(ctx context.Context, identity *identities.Identity, name string, image io.Reader, contentType string) (*identities.Identity, error) {
	if name == "" {
		name = identity.Name
	}

	avatarRef := identity.AvatarRef
	if image != nil {
		ref, err := s.avatars.Store(ctx, image, contentType)
		if err != nil {
			if errors.Is(err, common.ErrUnsupportedFileType) {
				return nil, common.ErrUnsupportedFileType
			}
			return nil, common.ErrorInternal
		}

		// Provider-hosted avatar URLs are not stored objects; only our
		// own keys are deleted on replacement.
		if identity.AvatarRef != "" && !isExternalRef(identity.AvatarRef) {
			if err := s.avatars.Delete(ctx, identity.AvatarRef); err != nil {
				return nil, common.ErrorInternal
			}
		}
		avatarRef = ref
	}

	if err := s.repo.UpdateProfile(ctx, identity.ID, name, avatarRef); err != nil {
		return nil, common.ErrorInternal
	}

	updated := *identity
	updated.Name = name
	updated.AvatarRef = avatarRef
	return &updated, nil
}

// isExternalRef reports whether an avatar reference points at a foreign
// host (a federated provider picture) rather than one of our object keys.
func isExternalRef(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

func (s *Service) sendCode(ctx context.Context, identity *identities.Identity, purpose otp.Purpose) error {
	code, err := s.otp.Issue(ctx, identity.Email, purpose)
	if err != nil {
		var rl *common.RateLimitedError
		if errors.As(err, &rl) {
			return err
		}
		return common.ErrorInternal
	}

	if err := s.notifier.Send(ctx, identity.Email, code, purpose, identity.Name); err != nil {
		return common.ErrorInternal
	}

	return nil
}
