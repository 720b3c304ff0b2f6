package domain

import (
	"fmt"
	"net/http"

	apperrors "github.com/trancongquochuy123/e-commerce-platform-sub000/pkg/errors"
)

// Business error kinds. Each wraps the pkg/errors sentinel that decides its
// transport class, so errors.Is works against either.
var (
	ErrInvalidQuantity    = fmt.Errorf("%w: invalid quantity", apperrors.ErrInvalidInput)
	ErrItemNotFound       = fmt.Errorf("%w: cart item", apperrors.ErrNotFound)
	ErrProductNotFound    = fmt.Errorf("%w: product", apperrors.ErrNotFound)
	ErrProductUnavailable = fmt.Errorf("%w: product unavailable", apperrors.ErrUnprocessable)
	ErrInsufficientStock  = fmt.Errorf("%w: insufficient stock", apperrors.ErrConflict)
	ErrEmptyCart          = fmt.Errorf("%w: cart is empty", apperrors.ErrUnprocessable)
	ErrCheckoutFailed     = fmt.Errorf("%w: checkout failed", apperrors.ErrServiceUnavail)
	ErrInvalidTransition  = fmt.Errorf("%w: invalid status transition", apperrors.ErrConflict)
	ErrOrderNotFound      = fmt.Errorf("%w: order", apperrors.ErrNotFound)
	ErrOrderDeleted       = fmt.Errorf("%w: order is deleted", apperrors.ErrConflict)
	ErrInvalidCartRef     = fmt.Errorf("%w: cart identity", apperrors.ErrInvalidInput)
)

// StockShortageError reports how much of a product is left.
type StockShortageError struct {
	ProductID string
	Requested int
	Available int
}

func (e *StockShortageError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *StockShortageError) Unwrap() error { return ErrInsufficientStock }

// TransitionError reports a status change the state machine forbids.
type TransitionError struct {
	Current   OrderStatus
	Attempted OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from %s to %s", e.Current, e.Attempted)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// CheckoutFailedError carries the cause of an aborted checkout. It matches
// both ErrCheckoutFailed and the cause.
type CheckoutFailedError struct {
	Cause error
}

func (e *CheckoutFailedError) Error() string {
	if e.Cause == nil {
		return "checkout failed"
	}
	return "checkout failed: " + e.Cause.Error()
}

func (e *CheckoutFailedError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrCheckoutFailed}
	}
	return []error{ErrCheckoutFailed, e.Cause}
}

func InvalidQuantity(quantity int) *apperrors.AppError {
	return apperrors.New("INVALID_QUANTITY",
		fmt.Sprintf("quantity must be at least 1, got %d", quantity),
		http.StatusBadRequest, ErrInvalidQuantity).
		WithDetail("quantity", quantity)
}

// QuantityAboveLimit reports a line that would exceed MaxQuantityPerItem.
func QuantityAboveLimit(productID string, quantity int) *apperrors.AppError {
	return apperrors.New("INVALID_QUANTITY",
		fmt.Sprintf("at most %d units of product %s fit in a cart", MaxQuantityPerItem, productID),
		http.StatusBadRequest, ErrInvalidQuantity).
		WithDetail("product_id", productID).
		WithDetail("quantity", quantity).
		WithDetail("max", MaxQuantityPerItem)
}

func ItemNotFound(productID string) *apperrors.AppError {
	return apperrors.New("ITEM_NOT_FOUND",
		fmt.Sprintf("product %s is not in the cart", productID),
		http.StatusNotFound, ErrItemNotFound).
		WithDetail("product_id", productID)
}

func ProductNotFound(productID string) *apperrors.AppError {
	return apperrors.New("PRODUCT_NOT_FOUND",
		fmt.Sprintf("product %s not found", productID),
		http.StatusNotFound, ErrProductNotFound)
}

func ProductUnavailable(productID string) *apperrors.AppError {
	return apperrors.New("PRODUCT_UNAVAILABLE",
		fmt.Sprintf("product %s is not available for purchase", productID),
		http.StatusUnprocessableEntity, ErrProductUnavailable).
		WithDetail("product_id", productID)
}

func InsufficientStock(productID string, requested, available int) *apperrors.AppError {
	return apperrors.New("INSUFFICIENT_STOCK",
		fmt.Sprintf("only %d of product %s available", available, productID),
		http.StatusConflict,
		&StockShortageError{ProductID: productID, Requested: requested, Available: available}).
		WithDetail("product_id", productID).
		WithDetail("requested", requested).
		WithDetail("available", available)
}

func EmptyCart(cartID string) *apperrors.AppError {
	return apperrors.New("EMPTY_CART",
		"cart has no items to check out",
		http.StatusUnprocessableEntity, ErrEmptyCart).
		WithDetail("cart_id", cartID)
}

func CheckoutFailed(cause error) *apperrors.AppError {
	return apperrors.New("CHECKOUT_FAILED",
		"checkout could not be completed, please try again",
		http.StatusServiceUnavailable, &CheckoutFailedError{Cause: cause})
}

func InvalidTransition(current, attempted OrderStatus) *apperrors.AppError {
	return apperrors.New("INVALID_TRANSITION",
		fmt.Sprintf("order cannot move from %s to %s", current, attempted),
		http.StatusConflict, &TransitionError{Current: current, Attempted: attempted}).
		WithDetail("current", string(current)).
		WithDetail("attempted", string(attempted))
}

func OrderNotFound(orderID string) *apperrors.AppError {
	return apperrors.New("ORDER_NOT_FOUND",
		fmt.Sprintf("order %s not found", orderID),
		http.StatusNotFound, ErrOrderNotFound)
}

func OrderDeleted(orderID string) *apperrors.AppError {
	return apperrors.New("ORDER_DELETED",
		fmt.Sprintf("order %s is deleted, restore it first", orderID),
		http.StatusConflict, ErrOrderDeleted)
}

func InvalidCartRef(message string) *apperrors.AppError {
	return apperrors.New("INVALID_CART_IDENTITY", message, http.StatusBadRequest, ErrInvalidCartRef)
}
