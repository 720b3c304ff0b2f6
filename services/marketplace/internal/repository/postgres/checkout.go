package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/trancongquochuy123/e-commerce-platform-sub000/pkg/database"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/domain"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/repository"
)

// CheckoutRepository writes the stock claims and the new order in a single
// transaction.
type CheckoutRepository struct {
	pool database.DBTX
	now  func() time.Time
}

func NewCheckoutRepository(pool database.DBTX) *CheckoutRepository {
	return &CheckoutRepository{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

var _ repository.CheckoutStore = (*CheckoutRepository)(nil)

// PlaceOrder claims stock for every item and inserts the order. A claim only
// applies when the product still has the version seen during validation and
// enough stock, so two racing checkouts cannot both take the last unit.
func (r *CheckoutRepository) PlaceOrder(ctx context.Context, order *domain.Order, claims []repository.StockClaim) (err error) {
	claimQuery := `
		UPDATE products
		SET stock = stock - $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4 AND stock >= $1 AND active AND NOT deleted`

	ctx, end := database.TraceQuery(ctx, "checkout.place_order", claimQuery)
	defer func() { end(err) }()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := r.now()
	for _, c := range claims {
		ct, err := tx.Exec(ctx, claimQuery, c.Quantity, now, c.ProductID, c.Version)
		if err != nil {
			return fmt.Errorf("claim stock for %s: %w", c.ProductID, err)
		}
		if ct.RowsAffected() == 0 {
			return fmt.Errorf("claim stock for %s: %w", c.ProductID, repository.ErrStockConflict)
		}
	}

	if err := insertOrder(ctx, tx, order); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// RevokeOrder is the compensation for a committed PlaceOrder whose cart
// could not be emptied. It returns the stock and removes the order.
func (r *CheckoutRepository) RevokeOrder(ctx context.Context, order *domain.Order) (err error) {
	restoreQuery := `
		UPDATE products
		SET stock = stock + $1, version = version + 1, updated_at = $2
		WHERE id = $3`

	ctx, end := database.TraceQuery(ctx, "checkout.revoke_order", restoreQuery)
	defer func() { end(err) }()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := r.now()
	for _, item := range order.Items {
		if _, err := tx.Exec(ctx, restoreQuery, item.Quantity, now, item.ProductID); err != nil {
			return fmt.Errorf("restore stock for %s: %w", item.ProductID, err)
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM orders WHERE id = $1`, order.ID); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
