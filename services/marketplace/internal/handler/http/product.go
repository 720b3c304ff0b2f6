package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/trancongquochuy123/e-commerce-platform-sub000/pkg/httputil"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/service"
)

// ProductHandler serves the catalog read view.
type ProductHandler struct {
	service *service.CatalogService
	logger  *slog.Logger
}

func NewProductHandler(svc *service.CatalogService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{service: svc, logger: logger}
}

// GetProduct handles GET /api/v1/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, "product id", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	view, err := h.service.GetProduct(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, newProductResponse(view))
}
