package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/engineerhub/engineerhub/internal/platform/httpx"
	"github.com/engineerhub/engineerhub/internal/shared"
)

// Response messages.
const (
	msgSignup          = "User created successfully"
	msgLogin           = "Logged in successfully"
	msgLogout          = "Logged out successfully"
	msgVerified        = "Email verified successfully"
	msgResent          = "Verification code resent successfully"
	msgForgot          = "Password reset email sent"
	msgReset           = "Password reset successfully"
	msgPasswordChanged = "Password changed successfully"
)

var authMessages = map[shared.Kind]string{
	shared.KindConflict: "Email already in use",
	shared.KindNotFound: "User not found",
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	cookies   CookieConfig
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, cookies CookieConfig) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cookies.TTL <= 0 {
		cookies.TTL = service.Sessions().TTL()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		cookies:   cookies,
		validator: NewValidator(),
	}
}

// NewValidator returns a validator that reports JSON field names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// MountRoutes registers /api/auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/signup", h.handleSignup)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Post("/verify-email", h.handleVerifyEmail)
	r.Post("/send-verification-email", h.handleVerifyEmail)
	r.Post("/resend-verification-email", h.handleResendVerification)
	r.Post("/forgot-password", h.handleForgotPassword)
	r.Post("/reset-password", h.handleResetPassword)
}

// MountUserRoutes registers /api/user routes. All of them need a session.
func (h *Handler) MountUserRoutes(r chi.Router) {
	r.Use(RequireSession(h.service, h.cookies, h.logger))
	r.Get("/profile", h.handleGetProfile)
	r.Patch("/profile", h.handleUpdateProfile)
	r.Put("/profile", h.handleUpdateProfile)
	r.Post("/change-password", h.handleChangePassword)
}

type credentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type signupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type signupResponse struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

type verifyEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8"`
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !h.decode(w, r, &req) {
		return
	}
	userID, err := h.service.Signup(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(w, "signup", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, signupResponse{Message: msgSignup, UserID: userID})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !h.decode(w, r, &req) {
		return
	}
	token, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(w, "login", err)
		return
	}
	h.cookies.SetSessionCookie(w, token)
	httpx.Message(w, http.StatusOK, msgLogin)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	err := h.service.Logout(r.Context(), h.cookies.SessionToken(r))
	h.cookies.ClearSessionCookie(w)
	if err != nil {
		h.respondError(w, "logout", err)
		return
	}
	httpx.Message(w, http.StatusOK, msgLogout)
}

func (h *Handler) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if !h.decode(w, r, &req) {
		return
	}
	token, err := h.service.VerifyEmail(r.Context(), req.Email, req.Code)
	if err != nil {
		h.respondError(w, "verify email", err)
		return
	}
	h.cookies.SetSessionCookie(w, token)
	httpx.Message(w, http.StatusOK, msgVerified)
}

func (h *Handler) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.ResendVerificationEmail(r.Context(), req.Email); err != nil {
		h.respondError(w, "resend verification", err)
		return
	}
	httpx.Message(w, http.StatusOK, msgResent)
}

func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.ForgotPassword(r.Context(), req.Email); err != nil {
		h.respondError(w, "forgot password", err)
		return
	}
	httpx.Message(w, http.StatusOK, msgForgot)
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		h.respondError(w, "reset password", err)
		return
	}
	httpx.Message(w, http.StatusOK, msgReset)
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.GetUserProfile(r.Context(), shared.UserIDFromContext(r.Context()))
	if err != nil {
		h.respondError(w, "get profile", err)
		return
	}
	httpx.JSON(w, http.StatusOK, profile)
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var patch ProfilePatch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed JSON body", shared.ErrValidation))
		return
	}
	profile, err := h.service.UpdateUserProfile(r.Context(), shared.UserIDFromContext(r.Context()), patch)
	if err != nil {
		h.respondError(w, "update profile", err)
		return
	}
	httpx.JSON(w, http.StatusOK, profile)
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	err := h.service.ChangePassword(r.Context(), shared.UserIDFromContext(r.Context()), req.CurrentPassword, req.NewPassword)
	if err != nil {
		h.respondError(w, "change password", err)
		return
	}
	httpx.Message(w, http.StatusOK, msgPasswordChanged)
}

// decode reads and validates a JSON body, writing a 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed JSON body", shared.ErrValidation))
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		httpx.RespondError(w, ValidationError(err))
		return false
	}
	return true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if shared.KindOf(err) == shared.KindUnexpected {
		shared.LogError(h.logger, op, err)
	}
	httpx.RespondErrorWith(w, err, authMessages)
}

// ValidationError turns validator output into a shared.ErrValidation naming
// the first offending field.
func ValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("%w: %s", shared.ErrValidation, err.Error())
	}
	fe := fieldErrs[0]
	field := fe.Field()
	var msg string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("%s is required", field)
	case "email":
		msg = fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		msg = fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		msg = fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "len":
		msg = fmt.Sprintf("%s must be exactly %s characters", field, fe.Param())
	case "numeric":
		msg = fmt.Sprintf("%s must contain only digits", field)
	default:
		msg = fmt.Sprintf("%s is invalid", field)
	}
	return fmt.Errorf("%w: %s", shared.ErrValidation, msg)
}
