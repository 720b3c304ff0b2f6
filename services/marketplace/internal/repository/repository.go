package repository

import (
	"context"
	"errors"
	"time"

	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/domain"
)

var (
	// ErrVersionConflict means a cart changed between read and write.
	ErrVersionConflict = errors.New("cart version conflict")

	// ErrStockConflict means a product's stock or version moved since checkout
	// validated it. The checkout transaction was rolled back.
	ErrStockConflict = errors.New("product stock changed concurrently")

	// ErrCartNotFound is returned by CartStore.Get when no cart exists.
	ErrCartNotFound = errors.New("cart not found")

	// ErrStatusConflict means an order's status moved away from the expected
	// value before the update was applied.
	ErrStatusConflict = errors.New("order status changed concurrently")
)

// CatalogGateway is the read side of the product catalog plus its single
// write, stock decrement.
type CatalogGateway interface {
	// GetProduct returns the product or a domain ProductNotFound error.
	GetProduct(ctx context.Context, id string) (*domain.Product, error)

	// DecrementStock removes amount units when at least that many are in
	// stock, otherwise it reports InsufficientStock with the available count.
	// Checkout does not use it; its claims run in CheckoutStore.PlaceOrder.
	DecrementStock(ctx context.Context, id string, amount int) error
}

// CartStore persists carts with optimistic concurrency. A cart whose
// Version is 0 has never been saved.
type CartStore interface {
	Get(ctx context.Context, cartID string) (*domain.Cart, error)

	// SaveIfVersion writes cart when the stored version still equals
	// cart.Version and bumps cart.Version on success.
	SaveIfVersion(ctx context.Context, cart *domain.Cart) error

	// ClearIfVersion empties the stored cart under the same version check.
	ClearIfVersion(ctx context.Context, cart *domain.Cart) error

	Delete(ctx context.Context, cartID string) error

	// Reown moves cart from fromID to cart.ID. It fails with
	// ErrVersionConflict when the source changed or the target already exists.
	Reown(ctx context.Context, fromID string, cart *domain.Cart) error
}

// StockClaim is a stock decrement guarded by the product version observed
// during validation.
type StockClaim struct {
	ProductID string
	Quantity  int
	Version   int64
}

// CheckoutStore applies the checkout write set atomically.
type CheckoutStore interface {
	// PlaceOrder decrements stock for every claim and inserts order in one
	// transaction. It returns ErrStockConflict when any claim is stale.
	PlaceOrder(ctx context.Context, order *domain.Order, claims []StockClaim) error

	// RevokeOrder undoes PlaceOrder: stock is returned and the order removed.
	RevokeOrder(ctx context.Context, order *domain.Order) error
}

// OrderRepository is the order ledger's persistence.
type OrderRepository interface {
	// GetByID returns the order, soft-deleted or not, or OrderNotFound.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// List returns matching orders, newest first, plus the total match count.
	List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, int, error)

	// UpdateStatus moves the order from one status to another. It returns
	// ErrStatusConflict when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, at time.Time) error

	// MarkPaid sets the payment flag once and reports whether it changed.
	MarkPaid(ctx context.Context, id string, at time.Time) (bool, error)

	// SetDeleted toggles the soft-delete flag and reports whether it changed.
	SetDeleted(ctx context.Context, id string, deleted bool, at time.Time) (bool, error)

	HardDelete(ctx context.Context, id string) error
}
