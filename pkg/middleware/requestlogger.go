package middleware

import (
	"log/slog"
	"net/http"

	"github.com/trancongquochuy123/e-commerce-platform-sub000/pkg/logger"
)

// RequestLogger stores a request-scoped logger in the context, enriched with
// correlation_id, user_id (X-User-ID), cart_id and the active span. Mount it
// after RequestLogging and Tracing.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if userID := r.Header.Get(HeaderUserID); userID != "" {
				ctx = logger.WithUserID(ctx, userID)
				ctx = logger.WithCartID(ctx, "account:"+userID)
			} else if token := r.Header.Get(HeaderCartToken); token != "" {
				ctx = logger.WithCartID(ctx, "token:"+token)
			}

			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
