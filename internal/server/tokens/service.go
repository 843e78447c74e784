package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avdeev-dm/accountd/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the registered JWT claims; Subject holds the account email.
type Claims struct {
	jwt.RegisteredClaims
}

// Service issues, validates, and revokes session tokens. Expiry is embedded
// in every issued token, never tracked externally.
type Service struct {
	secret  []byte
	ttl     time.Duration
	revoked Repository
}

func NewService(secretKey string, ttl time.Duration, revoked Repository) *Service {
	return &Service{
		secret:  []byte(secretKey),
		ttl:     ttl,
		revoked: revoked,
	}
}

// Issue signs a token for the subject with ExpiresAt = now + TTL.
func (s *Service) Issue(subject string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	})

	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// Validate returns the subject of a live token. The revocation set is
// consulted first, so a revoked token fails with common.ErrTokenRevoked no
// matter what its signature or expiry say. Expired tokens yield
// common.ErrTokenExpired; every other defect (bad signature, wrong algorithm,
// garbage input) is reported uniformly as common.ErrTokenMalformed so callers
// cannot tell which check rejected it.
func (s *Service) Validate(ctx context.Context, tokenString string) (string, error) {
	revoked, err := s.revoked.IsRevoked(ctx, tokenString)
	if err != nil {
		return "", fmt.Errorf("%w: checking revocation: %v", common.ErrorInternal, err)
	}
	if revoked {
		return "", common.ErrTokenRevoked
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", common.ErrTokenMalformed
	}

	if !token.Valid || claims.Subject == "" {
		return "", common.ErrTokenMalformed
	}

	return claims.Subject, nil
}

// Revoke adds the token to the revocation set. Idempotent.
func (s *Service) Revoke(ctx context.Context, tokenString string) error {
	if err := s.revoked.Add(ctx, tokenString, time.Now()); err != nil {
		return fmt.Errorf("%w: revoking token: %v", common.ErrorInternal, err)
	}
	return nil
}
