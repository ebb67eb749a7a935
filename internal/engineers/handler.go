package engineers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/engineerhub/engineerhub/internal/auth"
	"github.com/engineerhub/engineerhub/internal/platform/httpx"
	"github.com/engineerhub/engineerhub/internal/shared"
)

// Handler manages engineer endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	session   func(http.Handler) http.Handler
}

// NewHandler builds Handler instance. session guards every route.
func NewHandler(logger *slog.Logger, service *Service, session func(http.Handler) http.Handler) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: auth.NewValidator(), session: session}
}

// MountRoutes registers engineer routes.
func (h *Handler) MountRoutes(r chi.Router) {
	if h.session != nil {
		r.Use(h.session)
	}
	r.Get("/", h.listEngineers)
	r.Post("/", h.createEngineer)
}

func (h *Handler) listEngineers(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: limit must be a number", shared.ErrValidation))
			return
		}
		limit = n
	}
	list, err := h.service.List(r.Context(), limit)
	if err != nil {
		shared.LogError(h.logger, "list engineers failed", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) createEngineer(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed JSON body", shared.ErrValidation))
		return
	}
	if err := h.validator.Struct(in); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 && fieldErrs[0].Tag() == "required" {
			httpx.RespondError(w, fmt.Errorf("%w: %s", shared.ErrValidation, MsgMissingFields))
			return
		}
		httpx.RespondError(w, auth.ValidationError(err))
		return
	}
	created, err := h.service.Create(r.Context(), shared.UserIDFromContext(r.Context()), in)
	if err != nil {
		if shared.KindOf(err) == shared.KindUnexpected {
			shared.LogError(h.logger, "create engineer failed", err)
		}
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("engineer created", slog.String("id", created.ID), slog.String("created_by", created.CreatedBy))
	httpx.JSON(w, http.StatusCreated, created)
}
