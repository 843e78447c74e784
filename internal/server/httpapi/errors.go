package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/avdeev-dm/accountd/internal/common"
)

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// writeDomainError maps a service error to its HTTP status. Unknown errors
// are reported as 500 without leaking their message.
func writeDomainError(w http.ResponseWriter, err error) {
	var weak *common.WeakPasswordError
	var rateLimited *common.RateLimitedError

	switch {
	case errors.As(err, &weak):
		writeError(w, http.StatusBadRequest, weak.Error())
	case errors.As(err, &rateLimited):
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(rateLimited.RetryAfter.Seconds())))
		writeError(w, http.StatusTooManyRequests, rateLimited.Error())
	case errors.Is(err, common.ErrDuplicateEmail):
		writeError(w, http.StatusBadRequest, "Email already registered")
	case errors.Is(err, common.ErrAlreadyVerified):
		writeError(w, http.StatusBadRequest, "Email already verified")
	case errors.Is(err, common.ErrInvalidOrExpiredOtp):
		writeError(w, http.StatusBadRequest, "Invalid or expired OTP")
	case errors.Is(err, common.ErrUnsupportedFileType):
		writeError(w, http.StatusBadRequest, "Invalid file type. Only JPEG, PNG, and WEBP images are allowed.")
	case errors.Is(err, common.ErrorNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrTokenRevoked),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrTokenMalformed):
		writeError(w, http.StatusUnauthorized, unauthorizedDetail(err))
	default:
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func unauthorizedDetail(err error) string {
	if errors.Is(err, common.ErrorUnauthorized) {
		return "Invalid credentials or email not verified"
	}
	return "Could not validate credentials"
}
