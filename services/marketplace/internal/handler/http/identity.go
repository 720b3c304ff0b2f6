package http

import (
	"net/http"
	"strings"

	"github.com/trancongquochuy123/e-commerce-platform-sub000/pkg/middleware"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/domain"
)

// cartRef reads the caller's identity headers. Validation is left to the
// service so every entry point rejects bad refs the same way.
func cartRef(r *http.Request) domain.CartRef {
	return domain.CartRef{
		Token:     strings.TrimSpace(r.Header.Get(middleware.HeaderCartToken)),
		AccountID: strings.TrimSpace(r.Header.Get(middleware.HeaderUserID)),
	}
}
