// Package httpx provides HTTP response utilities.
package httpx

import (
	"net/http"
	"strings"

	"github.com/engineerhub/engineerhub/internal/shared"
)

// UnexpectedMessage is the only detail a client ever sees for unclassified failures.
const UnexpectedMessage = "An unexpected error occurred"

var statusByKind = map[shared.Kind]int{
	shared.KindConflict:              http.StatusConflict,
	shared.KindInvalidCredentials:    http.StatusUnauthorized,
	shared.KindEmailNotVerified:      http.StatusUnauthorized,
	shared.KindInvalidOrExpiredCode:  http.StatusBadRequest,
	shared.KindInvalidOrExpiredToken: http.StatusBadRequest,
	shared.KindValidation:            http.StatusBadRequest,
	shared.KindNotFound:              http.StatusNotFound,
}

var defaultMessages = map[shared.Kind]string{
	shared.KindConflict:              "Resource already exists",
	shared.KindInvalidCredentials:    "Invalid email or password",
	shared.KindEmailNotVerified:      "Invalid email or password",
	shared.KindInvalidOrExpiredCode:  "Invalid or expired verification code",
	shared.KindInvalidOrExpiredToken: "Invalid or expired reset token",
	shared.KindNotFound:              "Resource not found",
}

// StatusFor maps an error to its HTTP status code.
func StatusFor(err error) int {
	if status, ok := statusByKind[shared.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	RespondErrorWith(w, err, nil)
}

// RespondErrorWith is RespondError with per-kind message overrides.
func RespondErrorWith(w http.ResponseWriter, err error, messages map[shared.Kind]string) {
	kind := shared.KindOf(err)
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		Problem(w, status, http.StatusText(status), UnexpectedMessage)
		return
	}

	detail, ok := messages[kind]
	if !ok {
		detail = defaultMessages[kind]
	}
	if kind == shared.KindValidation && !ok {
		detail = validationDetail(err)
	}
	Problem(w, status, http.StatusText(status), detail)
}

// validationDetail strips the sentinel prefix so "validation failed: email is
// required" becomes "email is required".
func validationDetail(err error) string {
	msg := err.Error()
	if idx := strings.LastIndex(msg, shared.ErrValidation.Error()+": "); idx >= 0 {
		return msg[idx+len(shared.ErrValidation.Error())+2:]
	}
	return "Validation failed"
}
