package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/trancongquochuy123/e-commerce-platform-sub000/pkg/database"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/domain"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/repository"
)

const productColumns = `id::text, title, thumbnail, price::text, discount_percentage::text,
	stock, active, deleted, version, created_at, updated_at`

// CatalogRepository implements repository.CatalogGateway on the products
// table.
type CatalogRepository struct {
	pool database.DBTX
}

func NewCatalogRepository(pool database.DBTX) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

var _ repository.CatalogGateway = (*CatalogRepository)(nil)

// GetProduct loads a product, including inactive and deleted ones.
func (r *CatalogRepository) GetProduct(ctx context.Context, id string) (p *domain.Product, err error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "products.get", query)
	defer func() { end(err) }()

	p, err = scanProduct(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ProductNotFound(id)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var (
		p              domain.Product
		price, percent string
	)
	if err := row.Scan(
		&p.ID,
		&p.Title,
		&p.Thumbnail,
		&price,
		&percent,
		&p.Stock,
		&p.Active,
		&p.Deleted,
		&p.Version,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("parse price of product %s: %w", p.ID, err)
	}
	if p.DiscountPercentage, err = decimal.NewFromString(percent); err != nil {
		return nil, fmt.Errorf("parse discount of product %s: %w", p.ID, err)
	}
	return &p, nil
}

// DecrementStock atomically takes amount units off a purchasable product.
// When the guard fails the product is re-read to report why. This is the
// standalone gateway operation for callers outside checkout; checkout claims
// stock inside its own transaction through CheckoutRepository.PlaceOrder.
func (r *CatalogRepository) DecrementStock(ctx context.Context, id string, amount int) (err error) {
	if amount < 1 {
		return domain.InvalidQuantity(amount)
	}

	query := `
		UPDATE products
		SET stock = stock - $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND stock >= $1 AND active AND NOT deleted`

	ctx, end := database.TraceQuery(ctx, "products.decrement_stock", query)
	defer func() { end(err) }()

	ct, err := r.pool.Exec(ctx, query, amount, id)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if ct.RowsAffected() == 1 {
		return nil
	}

	p, err := r.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if !p.Listed() {
		return domain.ProductUnavailable(id)
	}
	return domain.InsufficientStock(id, amount, p.Stock)
}
