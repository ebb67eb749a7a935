package shared

import (
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs err at error level. For oops errors the code and context are
// emitted as separate attributes.
func LogError(logger *slog.Logger, msg string, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	if oopsErr, ok := oops.AsOops(err); ok {
		attrs := []any{slog.String("error", oopsErr.Error())}
		if code := oopsErr.Code(); code != nil {
			attrs = append(attrs, slog.Any("code", code))
		}
		if ctx := oopsErr.Context(); len(ctx) > 0 {
			attrs = append(attrs, slog.Any("context", ctx))
		}
		logger.Error(msg, attrs...)
		return
	}
	logger.Error(msg, slog.Any("error", err))
}
