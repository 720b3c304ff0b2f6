package http

import (
	"log/slog"
	"net/http"

	"github.com/trancongquochuy123/e-commerce-platform-sub000/pkg/httputil"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/pkg/validator"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/domain"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/service"
)

// CheckoutHandler handles HTTP requests for checkout.
type CheckoutHandler struct {
	service *service.CheckoutService
	logger  *slog.Logger
}

// NewCheckoutHandler creates a new checkout HTTP handler.
func NewCheckoutHandler(svc *service.CheckoutService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: svc,
		logger:  logger,
	}
}

// Checkout handles POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := validator.DecodeStrict(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	order, err := h.service.Checkout(r.Context(), cartRef(r), service.CheckoutInput{
		Buyer: domain.BuyerInfo{
			Name:    req.Buyer.Name,
			Phone:   req.Buyer.Phone,
			Address: req.Buyer.Address,
			Note:    req.Buyer.Note,
		},
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	resp, err := newOrderResponse(order)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, resp)
}
