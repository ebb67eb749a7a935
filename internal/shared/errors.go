package shared

import "errors"

// Kind classifies an error for callers that must react to it.
type Kind string

// Error kinds. Every error leaving a service maps to exactly one of these.
const (
	KindUnexpected            Kind = "unexpected"
	KindConflict              Kind = "conflict"
	KindInvalidCredentials    Kind = "invalid_credentials"
	KindEmailNotVerified      Kind = "email_not_verified"
	KindInvalidOrExpiredCode  Kind = "invalid_or_expired_code"
	KindInvalidOrExpiredToken Kind = "invalid_or_expired_token"
	KindNotFound              Kind = "not_found"
	KindDelivery              Kind = "delivery"
	KindValidation            Kind = "validation"
)

// Error is a classified sentinel. Wrap it with %w or oops to add context.
type Error struct {
	kind    Kind
	message string
}

// NewError constructs a classified error.
func NewError(kind Kind, message string) *Error {
	return &Error{kind: kind, message: message}
}

func (e *Error) Error() string { return e.message }

// Kind returns the discriminant.
func (e *Error) Kind() Kind { return e.kind }

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = NewError(KindNotFound, "not found")
	// ErrConflict indicates a unique constraint was hit, e.g. a duplicate email.
	ErrConflict = NewError(KindConflict, "already exists")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = NewError(KindInvalidCredentials, "invalid credentials")
	// ErrEmailNotVerified indicates the account has not confirmed its email yet.
	ErrEmailNotVerified = NewError(KindEmailNotVerified, "email not verified")
	// ErrInvalidOrExpiredCode covers wrong, consumed and expired verification codes alike.
	ErrInvalidOrExpiredCode = NewError(KindInvalidOrExpiredCode, "invalid or expired verification code")
	// ErrInvalidOrExpiredToken covers wrong, consumed and expired reset tokens alike.
	ErrInvalidOrExpiredToken = NewError(KindInvalidOrExpiredToken, "invalid or expired reset token")
	// ErrDelivery indicates an outbound email could not be handed off.
	ErrDelivery = NewError(KindDelivery, "email delivery failed")
	// ErrValidation indicates malformed input.
	ErrValidation = NewError(KindValidation, "validation failed")
)

// KindOf reports the kind carried by err. Errors outside the taxonomy are
// KindUnexpected; a nil error has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified.kind
	}
	return KindUnexpected
}
