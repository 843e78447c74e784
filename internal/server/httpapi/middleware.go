package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/avdeev-dm/accountd/internal/server/identities"
)

type contextKey string

const identityContextKey contextKey = "identity"

// bearerToken extracts the token from the Authorization header. An empty
// string means the header was missing or not a bearer scheme.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// requireAuth resolves the bearer token to an identity and stores it in the
// request context. Requests without a valid token get 401.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}

		identity, err := s.accounts.Authenticate(r.Context(), token)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), identityContextKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identityFromContext(ctx context.Context) *identities.Identity {
	identity, _ := ctx.Value(identityContextKey).(*identities.Identity)
	return identity
}
