package domain

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/trancongquochuy123/e-commerce-platform-sub000/pkg/errors"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/pricing"
)

// OrderStatus is the fulfillment state of an order. Payment is tracked
// separately by IsPaid.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

// transitions lists the statuses reachable from each status. Delivered and
// cancelled are terminal.
var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

// ParseStatus validates a status name.
func ParseStatus(s string) (OrderStatus, error) {
	st := OrderStatus(s)
	if _, ok := transitions[st]; !ok {
		return "", apperrors.InvalidInput(fmt.Sprintf("unknown order status %q", s))
	}
	return st, nil
}

// Statuses returns every status in lifecycle order.
func Statuses() []OrderStatus {
	return []OrderStatus{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled}
}

func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	return slices.Contains(transitions[s], target)
}

func (s OrderStatus) IsTerminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// BuyerInfo is the contact and shipping data captured at checkout.
type BuyerInfo struct {
	Name    string  `json:"name"`
	Phone   string  `json:"phone"`
	Address string  `json:"address"`
	Note    *string `json:"note,omitempty"`
}

// OrderItem is a frozen copy of a product at checkout time. It is kept even
// when the product is later edited or deleted.
type OrderItem struct {
	ID                 string          `json:"id"`
	ProductID          string          `json:"product_id"`
	Title              string          `json:"title"`
	Thumbnail          string          `json:"thumbnail"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	Quantity           int             `json:"quantity"`
}

// SnapshotItem freezes quantity units of p.
func SnapshotItem(id string, p *Product, quantity int) OrderItem {
	return OrderItem{
		ID:                 id,
		ProductID:          p.ID,
		Title:              p.Title,
		Thumbnail:          p.Thumbnail,
		UnitPrice:          p.Price,
		DiscountPercentage: p.DiscountPercentage,
		Quantity:           quantity,
	}
}

func (i OrderItem) Line() pricing.Line {
	return pricing.Line{Price: i.UnitPrice, DiscountPct: i.DiscountPercentage, Quantity: i.Quantity}
}

// Order is the durable result of a checkout. Its total is always derived
// from the items and never stored.
type Order struct {
	ID            string      `json:"id"`
	CartID        string      `json:"cart_id"`
	AccountID     *string     `json:"account_id,omitempty"`
	Buyer         BuyerInfo   `json:"buyer"`
	Items         []OrderItem `json:"items"`
	PaymentMethod string      `json:"payment_method"`
	Status        OrderStatus `json:"status"`
	IsPaid        bool        `json:"is_paid"`
	PaidAt        *time.Time  `json:"paid_at,omitempty"`
	Deleted       bool        `json:"deleted"`
	DeletedAt     *time.Time  `json:"deleted_at,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Totals prices the order's items.
func (o *Order) Totals() ([]pricing.PricedLine, pricing.Totals, error) {
	lines := make([]pricing.Line, len(o.Items))
	for i, it := range o.Items {
		lines[i] = it.Line()
	}
	return pricing.Summarize(lines)
}

// Total is the amount owed. Items are validated when snapshotted, so a
// pricing error here means stored data is corrupt.
func (o *Order) Total() decimal.Decimal {
	_, t, err := o.Totals()
	if err != nil {
		return decimal.Zero
	}
	return t.Total
}

// TransitionTo moves the order to target when the state machine allows it.
// Deleted orders must be restored first.
func (o *Order) TransitionTo(target OrderStatus, now time.Time) error {
	if o.Deleted {
		return OrderDeleted(o.ID)
	}
	if !o.Status.CanTransitionTo(target) {
		return InvalidTransition(o.Status, target)
	}
	o.Status = target
	o.UpdatedAt = now
	return nil
}

// MarkPaid records payment once. It reports false when the order was
// already paid, leaving the first PaidAt intact.
func (o *Order) MarkPaid(now time.Time) (bool, error) {
	if o.Deleted {
		return false, OrderDeleted(o.ID)
	}
	if o.IsPaid {
		return false, nil
	}
	o.IsPaid = true
	o.PaidAt = &now
	o.UpdatedAt = now
	return true, nil
}

// SoftDelete hides the order from listings. It reports false when the order
// was already deleted.
func (o *Order) SoftDelete(now time.Time) bool {
	if o.Deleted {
		return false
	}
	o.Deleted = true
	o.DeletedAt = &now
	o.UpdatedAt = now
	return true
}

// Restore undoes SoftDelete. It reports false when the order was not
// deleted.
func (o *Order) Restore(now time.Time) bool {
	if !o.Deleted {
		return false
	}
	o.Deleted = false
	o.DeletedAt = nil
	o.UpdatedAt = now
	return true
}

// OrderFilter narrows order listings. Zero values mean no constraint.
type OrderFilter struct {
	Status         *OrderStatus
	AccountID      *string
	From           *time.Time
	To             *time.Time
	IncludeDeleted bool
	Page           int
	PerPage        int
}
