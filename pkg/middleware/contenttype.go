package middleware

import (
	"log/slog"
	"mime"
	"net/http"

	apperrors "github.com/trancongquochuy123/e-commerce-platform-sub000/pkg/errors"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/pkg/httputil"
)

// ContentTypeJSON answers 415 when a request that carries a body declares
// a Content-Type other than application/json. A missing header is allowed.
func ContentTypeJSON(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut {
				if ct := r.Header.Get("Content-Type"); ct != "" {
					mediaType, _, err := mime.ParseMediaType(ct)
					if err != nil || mediaType != "application/json" {
						httputil.WriteError(w, r, apperrors.New("UNSUPPORTED_MEDIA_TYPE",
							"Content-Type must be application/json",
							http.StatusUnsupportedMediaType, apperrors.ErrInvalidInput), logger)
						return
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
