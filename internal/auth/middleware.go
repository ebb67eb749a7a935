package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/engineerhub/engineerhub/internal/platform/httpx"
	"github.com/engineerhub/engineerhub/internal/shared"
)

// SessionValidator resolves session tokens.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (string, bool, error)
}

// RequireSession rejects requests without a live session and stores the
// account id and token on the request context.
func RequireSession(validator SessionValidator, cookies CookieConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := cookies.SessionToken(r)
			userID, ok, err := validator.ValidateSession(r.Context(), token)
			if err != nil {
				shared.LogError(logger, "validate session", err)
				httpx.RespondError(w, err)
				return
			}
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized), "Unauthorized")
				return
			}
			ctx := shared.ContextWithUserID(r.Context(), userID)
			ctx = shared.ContextWithSessionToken(ctx, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
