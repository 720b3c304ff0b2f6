package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/trancongquochuy123/e-commerce-platform-sub000/pkg/errors"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/pkg/httputil"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/pkg/middleware"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/pkg/pagination"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/pkg/validator"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/domain"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/service"
)

// OrderHandler handles HTTP requests for buyer and admin order endpoints.
type OrderHandler struct {
	service *service.OrderService
	logger  *slog.Logger
}

// NewOrderHandler creates a new order HTTP handler.
func NewOrderHandler(svc *service.OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Buyer ---

// GetOwnOrder handles GET /api/v1/orders/{id}. Orders placed by another
// account are reported as not found.
func (h *OrderHandler) GetOwnOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, "order id", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	order, err := h.service.GetOrder(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if order.AccountID != nil && *order.AccountID != r.Header.Get(middleware.HeaderUserID) {
		httputil.WriteError(w, r, domain.OrderNotFound(order.ID), h.logger)
		return
	}
	h.writeOrder(w, r, http.StatusOK, order)
}

// ListOwnOrders handles GET /api/v1/orders for the account in X-User-ID.
func (h *OrderHandler) ListOwnOrders(w http.ResponseWriter, r *http.Request) {
	accountID := r.Header.Get(middleware.HeaderUserID)
	if accountID == "" {
		httputil.WriteError(w, r, domain.InvalidCartRef("an X-User-ID header is required"), h.logger)
		return
	}

	params, err := pagination.FromRequest(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	filter := domain.OrderFilter{AccountID: &accountID, Page: params.Page, PerPage: params.PerPage}
	h.list(w, r, filter, params)
}

// --- Admin ---

// GetOrder handles GET /api/v1/admin/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, "order id", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	order, err := h.service.GetOrder(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.writeOrder(w, r, http.StatusOK, order)
}

// ListOrders handles GET /api/v1/admin/orders. Supported filters are
// status, account_id, from and to (RFC 3339) and include_deleted.
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	params, err := pagination.FromRequest(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	filter, err := parseOrderFilter(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	filter.Page, filter.PerPage = params.Page, params.PerPage
	h.list(w, r, filter, params)
}

// UpdateStatus handles PUT /api/v1/admin/orders/{id}/status
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, "order id", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := validator.DecodeStrict(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	status, err := domain.ParseStatus(req.Status)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	order, err := h.service.SetStatus(r.Context(), id.String(), status)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.writeOrder(w, r, http.StatusOK, order)
}

// MarkPaid handles POST /api/v1/admin/orders/{id}/paid
func (h *OrderHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, "order id", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	order, err := h.service.MarkPaid(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.writeOrder(w, r, http.StatusOK, order)
}

// SoftDelete handles DELETE /api/v1/admin/orders/{id}
func (h *OrderHandler) SoftDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, "order id", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	order, err := h.service.SoftDelete(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.writeOrder(w, r, http.StatusOK, order)
}

// Restore handles POST /api/v1/admin/orders/{id}/restore
func (h *OrderHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, "order id", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	order, err := h.service.Restore(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.writeOrder(w, r, http.StatusOK, order)
}

// HardDelete handles DELETE /api/v1/admin/orders/{id}/purge
func (h *OrderHandler) HardDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, "order id", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.HardDelete(r.Context(), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrderHandler) list(w http.ResponseWriter, r *http.Request, filter domain.OrderFilter, params pagination.Params) {
	orders, total, err := h.service.ListOrders(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	data := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		resp, err := newOrderResponse(&orders[i])
		if err != nil {
			httputil.WriteError(w, r, fmt.Errorf("price order %s: %w", orders[i].ID, err), h.logger)
			return
		}
		data = append(data, resp)
	}
	httputil.WriteJSON(w, http.StatusOK, pagination.NewResult(data, total, params))
}

func (h *OrderHandler) writeOrder(w http.ResponseWriter, r *http.Request, status int, order *domain.Order) {
	resp, err := newOrderResponse(order)
	if err != nil {
		httputil.WriteError(w, r, fmt.Errorf("price order %s: %w", order.ID, err), h.logger)
		return
	}
	httputil.WriteData(w, status, resp)
}

func parseOrderFilter(r *http.Request) (domain.OrderFilter, error) {
	var f domain.OrderFilter
	q := r.URL.Query()

	if v := q.Get("status"); v != "" {
		st, err := domain.ParseStatus(v)
		if err != nil {
			return f, err
		}
		f.Status = &st
	}
	if v := q.Get("account_id"); v != "" {
		f.AccountID = &v
	}
	for name, dst := range map[string]**time.Time{"from": &f.From, "to": &f.To} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, apperrors.InvalidInput(fmt.Sprintf("%s must be an RFC 3339 timestamp, got %q", name, v))
		}
		*dst = &t
	}
	if v := q.Get("include_deleted"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, apperrors.InvalidInput(fmt.Sprintf("include_deleted must be a boolean, got %q", v))
		}
		f.IncludeDeleted = b
	}
	return f, nil
}
