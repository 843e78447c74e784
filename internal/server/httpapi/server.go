// Package httpapi exposes the account service over HTTP. Request and
// response shapes follow the JSON-body-in, JSON-out convention, except
// login (form encoded) and the profile update (multipart).
package httpapi

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/avdeev-dm/accountd/internal/logging"
	"github.com/avdeev-dm/accountd/internal/server/identities"
)

// AccountService is the account workflow surface the HTTP layer needs.
// Implemented by accounts.Service.
type AccountService interface {
	Register(ctx context.Context, name, email, password string) (*identities.Identity, error)
	ResendVerification(ctx context.Context, email string) error
	VerifyEmail(ctx context.Context, email, code string) error
	Login(ctx context.Context, email, password string) (string, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, code, newPassword string) error
	Logout(ctx context.Context, token string) error
	GoogleLoginURL() string
	GoogleSignIn(ctx context.Context, code string) (string, error)
	Authenticate(ctx context.Context, token string) (*identities.Identity, error)
	UpdateProfile(ctx context.Context, identity *identities.Identity, name string, image io.Reader, contentType string) (*identities.Identity, error)
}

type Server struct {
	accounts AccountService
	logger   logging.Logger
	baseURL  string
}

// NewServer builds the HTTP layer. baseURL is the externally visible base
// URL used to turn stored avatar references into absolute links.
func NewServer(accountService AccountService, logger logging.Logger, baseURL string) *Server {
	return &Server{accounts: accountService, logger: logger, baseURL: baseURL}
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", s.register)
		r.Post("/resend-verification-otp", s.resendVerificationOtp)
		r.Post("/verify-email", s.verifyEmail)
		r.Post("/login", s.login)
		r.Post("/request-password-reset", s.requestPasswordReset)
		r.Post("/reset-password", s.resetPassword)
		r.Get("/google-login", s.googleLogin)
		r.Get("/google/callback", s.googleCallback)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Post("/logout", s.logout)
		})
	})

	r.Route("/user", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/profile", s.profile)
		r.Patch("/profile", s.updateProfile)
	})

	return r
}
