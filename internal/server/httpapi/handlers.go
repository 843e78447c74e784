package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

const maxAvatarMemory = 8 << 20 // 8 MiB buffered before spilling to disk

type messageResponse struct {
	Msg string `json:"msg"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type profileResponse struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	ProfilePictureURL string `json:"profile_picture_url"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if _, err := s.accounts.Register(r.Context(), req.Name, req.Email, req.Password); err != nil {
		s.logger.Debug(r.Context(), "registration failed", "email", req.Email, "error", err.Error())
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Msg: "User registered. Please verify your email."})
}

func (s *Server) resendVerificationOtp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.accounts.ResendVerification(r.Context(), req.Email); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Msg: "A new OTP has been sent to your email."})
}

func (s *Server) verifyEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Otp   string `json:"otp"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.accounts.VerifyEmail(r.Context(), req.Email, req.Otp); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Msg: "Email verified successfully."})
}

// login accepts the password grant form fields: username holds the email.
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	email := r.PostFormValue("username")
	password := r.PostFormValue("password")

	token, err := s.accounts.Login(r.Context(), email, password)
	if err != nil {
		s.logger.Debug(r.Context(), "login refused", "email", email)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) requestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.accounts.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Msg: "OTP sent to your email to reset password."})
}

func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		Otp         string `json:"otp"`
		NewPassword string `json:"new_password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.accounts.ResetPassword(r.Context(), req.Email, req.Otp, req.NewPassword); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Msg: "Password has been reset successfully."})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.accounts.Logout(r.Context(), bearerToken(r)); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Msg: "Successfully logged out"})
}

func (s *Server) googleLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.accounts.GoogleLoginURL(), http.StatusTemporaryRedirect)
}

func (s *Server) googleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "Missing authorization code")
		return
	}

	token, err := s.accounts.GoogleSignIn(r.Context(), code)
	if err != nil {
		s.logger.Error(r.Context(), "federated sign-in failed", "error", err.Error())
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

// avatarURL turns a stored avatar reference into an absolute URL. Federated
// identities carry provider-hosted picture URLs, which pass through as is.
func (s *Server) avatarURL(ref string) string {
	if ref == "" || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	return strings.TrimSuffix(s.baseURL, "/") + "/" + ref
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())

	writeJSON(w, http.StatusOK, profileResponse{
		ID:                identity.ID,
		Name:              identity.Name,
		Email:             identity.Email,
		ProfilePictureURL: s.avatarURL(identity.AvatarRef),
	})
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())

	if err := r.ParseMultipartForm(maxAvatarMemory); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart body")
		return
	}

	name := r.FormValue("name")

	var image io.Reader
	var contentType string
	file, header, err := r.FormFile("file")
	if err == nil {
		defer file.Close()
		image = file
		contentType = header.Header.Get("Content-Type")
	} else if err != http.ErrMissingFile {
		writeError(w, http.StatusBadRequest, "Invalid multipart body")
		return
	}

	updated, err := s.accounts.UpdateProfile(r.Context(), identity, name, image, contentType)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{
		ID:                updated.ID,
		Name:              updated.Name,
		Email:             updated.Email,
		ProfilePictureURL: s.avatarURL(updated.AvatarRef),
	})
}
