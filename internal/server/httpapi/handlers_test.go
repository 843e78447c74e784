package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avdeev-dm/accountd/internal/common"
	"github.com/avdeev-dm/accountd/internal/logging"
	"github.com/avdeev-dm/accountd/internal/server/identities"
)

type fakeAccountService struct {
	registerErr     error
	resendErr       error
	verifyErr       error
	loginToken      string
	loginErr        error
	resetReqErr     error
	resetErr        error
	loggedOut       []string
	googleURL       string
	googleToken     string
	googleErr       error
	authIdentity    *identities.Identity
	authErr         error
	updatedName     string
	updatedImage    []byte
	updatedType     string
	updateErr       error
	updatedIdentity *identities.Identity
}

func (f *fakeAccountService) Register(_ context.Context, name, email, password string) (*identities.Identity, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return &identities.Identity{ID: 1, Name: name, Email: email}, nil
}

func (f *fakeAccountService) ResendVerification(_ context.Context, _ string) error { return f.resendErr }

func (f *fakeAccountService) VerifyEmail(_ context.Context, _, _ string) error { return f.verifyErr }

func (f *fakeAccountService) Login(_ context.Context, _, _ string) (string, error) {
	return f.loginToken, f.loginErr
}

func (f *fakeAccountService) RequestPasswordReset(_ context.Context, _ string) error {
	return f.resetReqErr
}

func (f *fakeAccountService) ResetPassword(_ context.Context, _, _, _ string) error {
	return f.resetErr
}

func (f *fakeAccountService) Logout(_ context.Context, token string) error {
	f.loggedOut = append(f.loggedOut, token)
	return nil
}

func (f *fakeAccountService) GoogleLoginURL() string { return f.googleURL }

func (f *fakeAccountService) GoogleSignIn(_ context.Context, _ string) (string, error) {
	return f.googleToken, f.googleErr
}

func (f *fakeAccountService) Authenticate(_ context.Context, _ string) (*identities.Identity, error) {
	return f.authIdentity, f.authErr
}

func (f *fakeAccountService) UpdateProfile(_ context.Context, identity *identities.Identity, name string, image io.Reader, contentType string) (*identities.Identity, error) {
	f.updatedName = name
	f.updatedType = contentType
	if image != nil {
		f.updatedImage, _ = io.ReadAll(image)
	}
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	if f.updatedIdentity != nil {
		return f.updatedIdentity, nil
	}
	return identity, nil
}

func newTestServer(service *fakeAccountService) http.Handler {
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return NewServer(service, logger, "http://localhost:8080/").Router()
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRegister(t *testing.T) {
	handler := newTestServer(&fakeAccountService{})

	rec := postJSON(t, handler, "/auth/register", map[string]string{
		"name": "Test User", "email": "user@example.com", "password": "Abcdef1!",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "User registered. Please verify your email.", decodeBody(t, rec)["msg"])
}

func TestRegister_DuplicateEmail(t *testing.T) {
	handler := newTestServer(&fakeAccountService{registerErr: common.ErrDuplicateEmail})

	rec := postJSON(t, handler, "/auth/register", map[string]string{
		"name": "Test User", "email": "user@example.com", "password": "Abcdef1!",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email already registered", decodeBody(t, rec)["detail"])
}

func TestRegister_WeakPassword(t *testing.T) {
	handler := newTestServer(&fakeAccountService{
		registerErr: &common.WeakPasswordError{Rule: common.RuleDigit},
	})

	rec := postJSON(t, handler, "/auth/register", map[string]string{
		"name": "Test User", "email": "user@example.com", "password": "Abcdefg!",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "password must contain at least one digit", decodeBody(t, rec)["detail"])
}

func TestRegister_RateLimited(t *testing.T) {
	handler := newTestServer(&fakeAccountService{
		registerErr: &common.RateLimitedError{RetryAfter: 42 * time.Second},
	})

	rec := postJSON(t, handler, "/auth/register", map[string]string{
		"name": "Test User", "email": "user@example.com", "password": "Abcdef1!",
	})

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "42", rec.Header().Get("Retry-After"))
}

func TestRegister_InvalidBody(t *testing.T) {
	handler := newTestServer(&fakeAccountService{})

	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResendVerificationOtp_AlreadyVerified(t *testing.T) {
	handler := newTestServer(&fakeAccountService{resendErr: common.ErrAlreadyVerified})

	rec := postJSON(t, handler, "/auth/resend-verification-otp", map[string]string{"email": "user@example.com"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email already verified", decodeBody(t, rec)["detail"])
}

func TestResendVerificationOtp_UnknownEmail(t *testing.T) {
	handler := newTestServer(&fakeAccountService{resendErr: common.ErrorNotFound})

	rec := postJSON(t, handler, "/auth/resend-verification-otp", map[string]string{"email": "nobody@example.com"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User not found", decodeBody(t, rec)["detail"])
}

func TestVerifyEmail(t *testing.T) {
	handler := newTestServer(&fakeAccountService{})

	rec := postJSON(t, handler, "/auth/verify-email", map[string]string{
		"email": "user@example.com", "otp": "123456",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Email verified successfully.", decodeBody(t, rec)["msg"])
}

func TestVerifyEmail_WrongCode(t *testing.T) {
	handler := newTestServer(&fakeAccountService{verifyErr: common.ErrInvalidOrExpiredOtp})

	rec := postJSON(t, handler, "/auth/verify-email", map[string]string{
		"email": "user@example.com", "otp": "000000",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid or expired OTP", decodeBody(t, rec)["detail"])
}

func TestLogin(t *testing.T) {
	handler := newTestServer(&fakeAccountService{loginToken: "jwt-value"})

	form := url.Values{"username": {"user@example.com"}, "password": {"Abcdef1!"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "jwt-value", body["access_token"])
	assert.Equal(t, "bearer", body["token_type"])
}

func TestLogin_Unauthorized(t *testing.T) {
	handler := newTestServer(&fakeAccountService{loginErr: common.ErrorUnauthorized})

	form := url.Values{"username": {"user@example.com"}, "password": {"wrong"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials or email not verified", decodeBody(t, rec)["detail"])
}

func TestResetPassword(t *testing.T) {
	handler := newTestServer(&fakeAccountService{})

	rec := postJSON(t, handler, "/auth/reset-password", map[string]string{
		"email": "user@example.com", "otp": "123456", "new_password": "Newpass1!",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Password has been reset successfully.", decodeBody(t, rec)["msg"])
}

func TestLogout(t *testing.T) {
	service := &fakeAccountService{authIdentity: &identities.Identity{ID: 1, Email: "user@example.com"}}
	handler := newTestServer(service)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer jwt-value")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"jwt-value"}, service.loggedOut)
}

func TestLogout_RevokedToken(t *testing.T) {
	handler := newTestServer(&fakeAccountService{authErr: common.ErrTokenRevoked})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer jwt-value")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGoogleLogin_Redirects(t *testing.T) {
	handler := newTestServer(&fakeAccountService{googleURL: "https://accounts.google.com/o/oauth2/v2/auth?x=1"})

	req := httptest.NewRequest(http.MethodGet, "/auth/google-login", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "https://accounts.google.com/o/oauth2/v2/auth?x=1", rec.Header().Get("Location"))
}

func TestGoogleCallback(t *testing.T) {
	handler := newTestServer(&fakeAccountService{googleToken: "jwt-value"})

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=abc", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jwt-value", decodeBody(t, rec)["access_token"])
}

func TestGoogleCallback_MissingCode(t *testing.T) {
	handler := newTestServer(&fakeAccountService{})

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProfile(t *testing.T) {
	service := &fakeAccountService{authIdentity: &identities.Identity{
		ID: 7, Name: "Test User", Email: "user@example.com", AvatarRef: "avatars/x.png",
	}}
	handler := newTestServer(service)

	req := httptest.NewRequest(http.MethodGet, "/user/profile", nil)
	req.Header.Set("Authorization", "Bearer jwt-value")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(7), body["id"])
	assert.Equal(t, "Test User", body["name"])
	assert.Equal(t, "user@example.com", body["email"])
	assert.Equal(t, "http://localhost:8080/avatars/x.png", body["profile_picture_url"])
}

func TestProfile_FederatedAvatarPassthrough(t *testing.T) {
	service := &fakeAccountService{authIdentity: &identities.Identity{
		ID: 7, Name: "SSO User", Email: "sso@example.com",
		AvatarRef: "https://img.example.com/p.jpg",
	}}
	handler := newTestServer(service)

	req := httptest.NewRequest(http.MethodGet, "/user/profile", nil)
	req.Header.Set("Authorization", "Bearer jwt-value")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://img.example.com/p.jpg", decodeBody(t, rec)["profile_picture_url"])
}

func TestProfile_NoToken(t *testing.T) {
	handler := newTestServer(&fakeAccountService{})

	req := httptest.NewRequest(http.MethodGet, "/user/profile", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func multipartBody(t *testing.T, name string, file []byte, contentType string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if name != "" {
		require.NoError(t, mw.WriteField("name", name))
	}
	if file != nil {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", `form-data; name="file"; filename="avatar.png"`)
		header.Set("Content-Type", contentType)
		part, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUpdateProfile(t *testing.T) {
	service := &fakeAccountService{
		authIdentity:    &identities.Identity{ID: 7, Name: "Old", Email: "user@example.com"},
		updatedIdentity: &identities.Identity{ID: 7, Name: "New Name", Email: "user@example.com", AvatarRef: "avatars/new.png"},
	}
	handler := newTestServer(service)

	body, contentType := multipartBody(t, "New Name", []byte("png-bytes"), "image/png")
	req := httptest.NewRequest(http.MethodPatch, "/user/profile", body)
	req.Header.Set("Authorization", "Bearer jwt-value")
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "New Name", service.updatedName)
	assert.Equal(t, "image/png", service.updatedType)
	assert.Equal(t, []byte("png-bytes"), service.updatedImage)
	assert.Equal(t, "http://localhost:8080/avatars/new.png", decodeBody(t, rec)["profile_picture_url"])
}

func TestUpdateProfile_NameOnly(t *testing.T) {
	service := &fakeAccountService{authIdentity: &identities.Identity{ID: 7, Email: "user@example.com"}}
	handler := newTestServer(service)

	body, contentType := multipartBody(t, "New Name", nil, "")
	req := httptest.NewRequest(http.MethodPatch, "/user/profile", body)
	req.Header.Set("Authorization", "Bearer jwt-value")
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "New Name", service.updatedName)
	assert.Empty(t, service.updatedType)
	assert.Nil(t, service.updatedImage)
}

func TestUpdateProfile_UnsupportedImage(t *testing.T) {
	service := &fakeAccountService{
		authIdentity: &identities.Identity{ID: 7, Email: "user@example.com"},
		updateErr:    common.ErrUnsupportedFileType,
	}
	handler := newTestServer(service)

	body, contentType := multipartBody(t, "", []byte("gif-bytes"), "image/gif")
	req := httptest.NewRequest(http.MethodPatch, "/user/profile", body)
	req.Header.Set("Authorization", "Bearer jwt-value")
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid file type. Only JPEG, PNG, and WEBP images are allowed.", decodeBody(t, rec)["detail"])
}
