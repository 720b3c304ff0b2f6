package http

import (
	"time"

	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/domain"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/pricing"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/service"
)

// Money is rendered as fixed two-decimal strings so clients never see
// binary floating point.

// --- Request DTOs ---

// Quantity upper bounds mirror domain.MaxQuantityPerItem. Lower bounds are
// left to the service, which reports INVALID_QUANTITY.

// AddItemRequest is the JSON body of POST /api/v1/cart/items.
type AddItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"max=100"`
}

// SetQuantityRequest is the JSON body of PUT /api/v1/cart/items/{productId}.
type SetQuantityRequest struct {
	Quantity int `json:"quantity" validate:"max=100"`
}

// BuyerRequest is the contact and shipping block of a checkout.
type BuyerRequest struct {
	Name    string  `json:"name" validate:"required,max=255"`
	Phone   string  `json:"phone" validate:"required,max=50"`
	Address string  `json:"address" validate:"required,max=1000"`
	Note    *string `json:"note" validate:"omitempty,max=1000"`
}

// CheckoutRequest is the JSON body of POST /api/v1/checkout.
type CheckoutRequest struct {
	Buyer         BuyerRequest `json:"buyer" validate:"required"`
	PaymentMethod string       `json:"payment_method" validate:"required,max=50"`
}

// UpdateStatusRequest is the JSON body of PUT /api/v1/admin/orders/{id}/status.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending processing shipped delivered cancelled"`
}

// --- Response DTOs ---

type CartItemResponse struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type CartResponse struct {
	ID        string             `json:"id"`
	OwnerID   *string            `json:"owner_id,omitempty"`
	Items     []CartItemResponse `json:"items"`
	Version   int64              `json:"version"`
	UpdatedAt time.Time          `json:"updated_at"`
}

func newCartResponse(c *domain.Cart) CartResponse {
	items := make([]CartItemResponse, len(c.Items))
	for i, it := range c.Items {
		items[i] = CartItemResponse{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	return CartResponse{ID: c.ID, OwnerID: c.OwnerID, Items: items, Version: c.Version, UpdatedAt: c.UpdatedAt}
}

type SummaryLineResponse struct {
	ProductID          string `json:"product_id"`
	Title              string `json:"title"`
	Thumbnail          string `json:"thumbnail"`
	Quantity           int    `json:"quantity"`
	Stock              int    `json:"stock"`
	Price              string `json:"price"`
	DiscountPercentage string `json:"discount_percentage"`
	DiscountedPrice    string `json:"discounted_price"`
	LineTotal          string `json:"line_total"`
}

type SummaryResponse struct {
	CartID     string                `json:"cart_id"`
	OwnerID    *string               `json:"owner_id,omitempty"`
	Items      []SummaryLineResponse `json:"items"`
	TotalItems int                   `json:"total_items"`
	Subtotal   string                `json:"subtotal"`
	Discount   string                `json:"discount"`
	Total      string                `json:"total"`
}

func newSummaryResponse(s *service.Summary) SummaryResponse {
	lines := make([]SummaryLineResponse, len(s.Items))
	for i, l := range s.Items {
		lines[i] = SummaryLineResponse{
			ProductID:          l.ProductID,
			Title:              l.Title,
			Thumbnail:          l.Thumbnail,
			Quantity:           l.Quantity,
			Stock:              l.Stock,
			Price:              pricing.Format(l.Price),
			DiscountPercentage: l.DiscountPercentage.String(),
			DiscountedPrice:    pricing.Format(l.DiscountedPrice),
			LineTotal:          pricing.Format(l.LineTotal),
		}
	}
	return SummaryResponse{
		CartID:     s.CartID,
		OwnerID:    s.OwnerID,
		Items:      lines,
		TotalItems: s.TotalItems,
		Subtotal:   pricing.Format(s.Subtotal),
		Discount:   pricing.Format(s.Discount),
		Total:      pricing.Format(s.Total),
	}
}

type OrderItemResponse struct {
	ID                 string `json:"id"`
	ProductID          string `json:"product_id"`
	Title              string `json:"title"`
	Thumbnail          string `json:"thumbnail"`
	UnitPrice          string `json:"unit_price"`
	DiscountPercentage string `json:"discount_percentage"`
	DiscountedPrice    string `json:"discounted_price"`
	Quantity           int    `json:"quantity"`
	LineTotal          string `json:"line_total"`
}

type OrderResponse struct {
	ID            string              `json:"id"`
	CartID        string              `json:"cart_id"`
	AccountID     *string             `json:"account_id,omitempty"`
	Buyer         domain.BuyerInfo    `json:"buyer"`
	Items         []OrderItemResponse `json:"items"`
	PaymentMethod string              `json:"payment_method"`
	Status        domain.OrderStatus  `json:"status"`
	IsPaid        bool                `json:"is_paid"`
	PaidAt        *time.Time          `json:"paid_at,omitempty"`
	Deleted       bool                `json:"deleted"`
	DeletedAt     *time.Time          `json:"deleted_at,omitempty"`
	Subtotal      string              `json:"subtotal"`
	Discount      string              `json:"discount"`
	Total         string              `json:"total"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// newOrderResponse derives every amount from the item snapshots.
func newOrderResponse(o *domain.Order) (OrderResponse, error) {
	priced, totals, err := o.Totals()
	if err != nil {
		return OrderResponse{}, err
	}
	items := make([]OrderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = OrderItemResponse{
			ID:                 it.ID,
			ProductID:          it.ProductID,
			Title:              it.Title,
			Thumbnail:          it.Thumbnail,
			UnitPrice:          pricing.Format(it.UnitPrice),
			DiscountPercentage: it.DiscountPercentage.String(),
			DiscountedPrice:    pricing.Format(priced[i].DiscountedUnit),
			Quantity:           it.Quantity,
			LineTotal:          pricing.Format(priced[i].Total),
		}
	}
	return OrderResponse{
		ID:            o.ID,
		CartID:        o.CartID,
		AccountID:     o.AccountID,
		Buyer:         o.Buyer,
		Items:         items,
		PaymentMethod: o.PaymentMethod,
		Status:        o.Status,
		IsPaid:        o.IsPaid,
		PaidAt:        o.PaidAt,
		Deleted:       o.Deleted,
		DeletedAt:     o.DeletedAt,
		Subtotal:      pricing.Format(totals.Subtotal),
		Discount:      pricing.Format(totals.Discount),
		Total:         pricing.Format(totals.Total),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}, nil
}

type ProductResponse struct {
	ID                 string `json:"id"`
	Title              string `json:"title"`
	Thumbnail          string `json:"thumbnail"`
	Price              string `json:"price"`
	DiscountPercentage string `json:"discount_percentage"`
	DiscountedPrice    string `json:"discounted_price"`
	Stock              int    `json:"stock"`
	Purchasable        bool   `json:"purchasable"`
}

func newProductResponse(v *service.ProductView) ProductResponse {
	return ProductResponse{
		ID:                 v.ID,
		Title:              v.Title,
		Thumbnail:          v.Thumbnail,
		Price:              pricing.Format(v.Price),
		DiscountPercentage: v.DiscountPercentage.String(),
		DiscountedPrice:    pricing.Format(v.DiscountedPrice),
		Stock:              v.Stock,
		Purchasable:        v.Purchasable,
	}
}
