package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/trancongquochuy123/e-commerce-platform-sub000/pkg/database"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/pkg/pagination"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/domain"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/repository"
)

// execer is the write surface shared by the pool and a pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const orderColumns = `o.id::text, o.cart_id, o.account_id, o.buyer_name, o.buyer_phone, o.buyer_address,
	o.buyer_note, o.payment_method, o.status, o.is_paid, o.paid_at, o.deleted, o.deleted_at,
	o.created_at, o.updated_at`

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	pool database.DBTX
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool database.DBTX) *OrderRepository {
	return &OrderRepository{pool: pool}
}

var _ repository.OrderRepository = (*OrderRepository)(nil)

// insertOrder writes the order row and its item snapshots using q, which is
// normally the checkout transaction.
func insertOrder(ctx context.Context, q execer, o *domain.Order) error {
	orderQuery := `
		INSERT INTO orders (id, cart_id, account_id, buyer_name, buyer_phone, buyer_address, buyer_note,
			payment_method, status, is_paid, paid_at, deleted, deleted_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := q.Exec(ctx, orderQuery,
		o.ID,
		o.CartID,
		o.AccountID,
		o.Buyer.Name,
		o.Buyer.Phone,
		o.Buyer.Address,
		o.Buyer.Note,
		o.PaymentMethod,
		string(o.Status),
		o.IsPaid,
		o.PaidAt,
		o.Deleted,
		o.DeletedAt,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (id, order_id, product_id, title, thumbnail, unit_price, discount_percentage, quantity, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	for i, item := range o.Items {
		_, err = q.Exec(ctx, itemQuery,
			item.ID,
			o.ID,
			item.ProductID,
			item.Title,
			item.Thumbnail,
			item.UnitPrice.String(),
			item.DiscountPercentage.String(),
			item.Quantity,
			i,
		)
		if err != nil {
			return fmt.Errorf("insert order item %s: %w", item.ProductID, err)
		}
	}
	return nil
}

// GetByID retrieves an order and its items in one round trip.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (o *domain.Order, err error) {
	query := `
		SELECT ` + orderColumns + `,
			COALESCE(
				JSONB_AGG(
					JSONB_BUILD_OBJECT(
						'id', oi.id,
						'product_id', oi.product_id,
						'title', oi.title,
						'thumbnail', oi.thumbnail,
						'unit_price', oi.unit_price,
						'discount_percentage', oi.discount_percentage,
						'quantity', oi.quantity
					) ORDER BY oi.position
				) FILTER (WHERE oi.id IS NOT NULL),
				'[]'::jsonb
			) AS items
		FROM orders o
		LEFT JOIN order_items oi ON o.id = oi.order_id
		WHERE o.id = $1
		GROUP BY o.id`

	ctx, end := database.TraceQuery(ctx, "orders.get", query)
	defer func() { end(err) }()

	var itemsJSON []byte
	o, err = scanOrder(r.pool.QueryRow(ctx, query, id), &itemsJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.OrderNotFound(id)
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}

	o.Items = []domain.OrderItem{}
	if len(itemsJSON) > 0 && string(itemsJSON) != "[]" {
		if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
			return nil, fmt.Errorf("unmarshal order items: %w", err)
		}
	}
	return o, nil
}

// scanOrder reads orderColumns followed by any extra destinations.
func scanOrder(row pgx.Row, extra ...any) (*domain.Order, error) {
	var (
		o      domain.Order
		status string
	)
	dest := []any{
		&o.ID,
		&o.CartID,
		&o.AccountID,
		&o.Buyer.Name,
		&o.Buyer.Phone,
		&o.Buyer.Address,
		&o.Buyer.Note,
		&o.PaymentMethod,
		&status,
		&o.IsPaid,
		&o.PaidAt,
		&o.Deleted,
		&o.DeletedAt,
		&o.CreatedAt,
		&o.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	return &o, nil
}

// List returns orders matching filter, newest first, with the total count.
// Soft-deleted orders are skipped unless IncludeDeleted is set.
func (r *OrderRepository) List(ctx context.Context, filter domain.OrderFilter) (orders []domain.Order, total int, err error) {
	var (
		conditions []string
		args       []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if !filter.IncludeDeleted {
		conditions = append(conditions, "NOT o.deleted")
	}
	if filter.Status != nil {
		add("o.status = $%d", string(*filter.Status))
	}
	if filter.AccountID != nil {
		add("o.account_id = $%d", *filter.AccountID)
	}
	if filter.From != nil {
		add("o.created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("o.created_at < $%d", *filter.To)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	params := pagination.Params{Page: filter.Page, PerPage: filter.PerPage}.Normalize()
	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM orders o
		%s
		ORDER BY o.created_at DESC, o.id
		LIMIT $%d OFFSET $%d`,
		orderColumns, whereClause, len(args)+1, len(args)+2,
	)
	args = append(args, params.PerPage, params.Offset())

	ctx, end := database.TraceQuery(ctx, "orders.list", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders = make([]domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate order rows: %w", err)
	}

	if len(orders) == 0 {
		return orders, total, nil
	}
	if err := r.loadItems(ctx, orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// loadItems batch-loads the items of orders with a single query.
func (r *OrderRepository) loadItems(ctx context.Context, orders []domain.Order) error {
	ids := make([]string, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}

	query := `
		SELECT id::text, order_id::text, product_id::text, title, thumbnail,
			unit_price::text, discount_percentage::text, quantity
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("batch load order items: %w", err)
	}
	defer rows.Close()

	byOrder := make(map[string][]domain.OrderItem, len(orders))
	for rows.Next() {
		var (
			item           domain.OrderItem
			orderID        string
			price, percent string
		)
		if err := rows.Scan(&item.ID, &orderID, &item.ProductID, &item.Title, &item.Thumbnail,
			&price, &percent, &item.Quantity); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		if item.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return fmt.Errorf("parse unit price of item %s: %w", item.ID, err)
		}
		if item.DiscountPercentage, err = decimal.NewFromString(percent); err != nil {
			return fmt.Errorf("parse discount of item %s: %w", item.ID, err)
		}
		byOrder[orderID] = append(byOrder[orderID], item)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate order item rows: %w", err)
	}

	for i := range orders {
		if items, ok := byOrder[orders[i].ID]; ok {
			orders[i].Items = items
		} else {
			orders[i].Items = []domain.OrderItem{}
		}
	}
	return nil
}

// UpdateStatus is a compare-and-set on the status column.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, at time.Time) (err error) {
	query := `
		UPDATE orders
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4 AND NOT deleted`

	ctx, end := database.TraceQuery(ctx, "orders.update_status", query)
	defer func() { end(err) }()

	ct, err := r.pool.Exec(ctx, query, string(to), at, id, string(from))
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrStatusConflict
	}
	return nil
}

// MarkPaid sets is_paid and paid_at unless the order is already paid.
func (r *OrderRepository) MarkPaid(ctx context.Context, id string, at time.Time) (changed bool, err error) {
	query := `
		UPDATE orders
		SET is_paid = TRUE, paid_at = $1, updated_at = $1
		WHERE id = $2 AND NOT is_paid AND NOT deleted`

	ctx, end := database.TraceQuery(ctx, "orders.mark_paid", query)
	defer func() { end(err) }()

	ct, err := r.pool.Exec(ctx, query, at, id)
	if err != nil {
		return false, fmt.Errorf("mark order paid: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// SetDeleted flips the soft-delete flag. Restoring clears deleted_at.
func (r *OrderRepository) SetDeleted(ctx context.Context, id string, deleted bool, at time.Time) (changed bool, err error) {
	query := `
		UPDATE orders
		SET deleted = $1, deleted_at = $2, updated_at = $3
		WHERE id = $4 AND deleted <> $1`

	ctx, end := database.TraceQuery(ctx, "orders.set_deleted", query)
	defer func() { end(err) }()

	var deletedAt *time.Time
	if deleted {
		deletedAt = &at
	}

	ct, err := r.pool.Exec(ctx, query, deleted, deletedAt, at, id)
	if err != nil {
		return false, fmt.Errorf("set order deleted: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// HardDelete removes the order and, by cascade, its items.
func (r *OrderRepository) HardDelete(ctx context.Context, id string) (err error) {
	query := `DELETE FROM orders WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "orders.hard_delete", query)
	defer func() { end(err) }()

	ct, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.OrderNotFound(id)
	}
	return nil
}
