package event

import (
	"context"
	"log/slog"
	"time"

	pkgkafka "github.com/trancongquochuy123/e-commerce-platform-sub000/pkg/kafka"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/pkg/logger"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/domain"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/pricing"
)

// Kafka topics produced by the marketplace service.
var (
	TopicOrderCreated       = pkgkafka.Topic("order", "created")
	TopicOrderStatusChanged = pkgkafka.Topic("order", "status_changed")
	TopicOrderPaid          = pkgkafka.Topic("order", "paid")
	TopicOrderDeleted       = pkgkafka.Topic("order", "deleted")
)

const (
	AggregateTypeOrder = "order"
	SourceMarketplace  = "marketplace"
)

// OrderItemData is a purchased line in an order.created payload.
type OrderItemData struct {
	ProductID          string `json:"product_id"`
	Title              string `json:"title"`
	UnitPrice          string `json:"unit_price"`
	DiscountPercentage string `json:"discount_percentage"`
	Quantity           int    `json:"quantity"`
	LineTotal          string `json:"line_total"`
}

// OrderCreatedData is the payload of an order.created event.
type OrderCreatedData struct {
	OrderID       string          `json:"order_id"`
	CartID        string          `json:"cart_id"`
	AccountID     *string         `json:"account_id,omitempty"`
	Status        string          `json:"status"`
	PaymentMethod string          `json:"payment_method"`
	Items         []OrderItemData `json:"items"`
	Subtotal      string          `json:"subtotal"`
	Discount      string          `json:"discount"`
	Total         string          `json:"total"`
	CreatedAt     time.Time       `json:"created_at"`
}

// OrderStatusChangedData is the payload of an order.status_changed event.
type OrderStatusChangedData struct {
	OrderID   string    `json:"order_id"`
	OldStatus string    `json:"old_status"`
	NewStatus string    `json:"new_status"`
	ChangedAt time.Time `json:"changed_at"`
}

// OrderPaidData is the payload of an order.paid event.
type OrderPaidData struct {
	OrderID string    `json:"order_id"`
	Total   string    `json:"total"`
	PaidAt  time.Time `json:"paid_at"`
}

// OrderDeletedData is the payload of an order.deleted event.
type OrderDeletedData struct {
	OrderID string `json:"order_id"`
	Hard    bool   `json:"hard"`
}

// Producer publishes order lifecycle events. Publishing happens after the
// change is committed, so failures are logged and never returned.
type Producer struct {
	kafka   pkgkafka.Publisher
	timeout time.Duration
	logger  *slog.Logger
}

// NewProducer creates an order event producer. timeout bounds each publish.
func NewProducer(publisher pkgkafka.Publisher, timeout time.Duration, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:   publisher,
		timeout: timeout,
		logger:  logger,
	}
}

// OrderCreated publishes an order.created event with the full snapshot.
func (p *Producer) OrderCreated(ctx context.Context, order *domain.Order) {
	priced, totals, err := order.Totals()
	if err != nil {
		p.logger.ErrorContext(ctx, "cannot price order for order.created event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	items := make([]OrderItemData, len(order.Items))
	for i, item := range order.Items {
		items[i] = OrderItemData{
			ProductID:          item.ProductID,
			Title:              item.Title,
			UnitPrice:          pricing.Format(item.UnitPrice),
			DiscountPercentage: item.DiscountPercentage.String(),
			Quantity:           item.Quantity,
			LineTotal:          pricing.Format(priced[i].Total),
		}
	}

	p.publish(ctx, TopicOrderCreated, order.ID, map[string]string{"cart_id": order.CartID}, OrderCreatedData{
		OrderID:       order.ID,
		CartID:        order.CartID,
		AccountID:     order.AccountID,
		Status:        string(order.Status),
		PaymentMethod: order.PaymentMethod,
		Items:         items,
		Subtotal:      pricing.Format(totals.Subtotal),
		Discount:      pricing.Format(totals.Discount),
		Total:         pricing.Format(totals.Total),
		CreatedAt:     order.CreatedAt,
	})
}

// OrderStatusChanged publishes an order.status_changed event.
func (p *Producer) OrderStatusChanged(ctx context.Context, order *domain.Order, from domain.OrderStatus) {
	p.publish(ctx, TopicOrderStatusChanged, order.ID, nil, OrderStatusChangedData{
		OrderID:   order.ID,
		OldStatus: string(from),
		NewStatus: string(order.Status),
		ChangedAt: order.UpdatedAt,
	})
}

// OrderPaid publishes an order.paid event.
func (p *Producer) OrderPaid(ctx context.Context, order *domain.Order) {
	data := OrderPaidData{
		OrderID: order.ID,
		Total:   pricing.Format(order.Total()),
		PaidAt:  order.UpdatedAt,
	}
	if order.PaidAt != nil {
		data.PaidAt = *order.PaidAt
	}
	p.publish(ctx, TopicOrderPaid, order.ID, nil, data)
}

// OrderDeleted publishes an order.deleted event for soft and hard deletes.
func (p *Producer) OrderDeleted(ctx context.Context, order *domain.Order, hard bool) {
	p.publish(ctx, TopicOrderDeleted, order.ID, nil, OrderDeletedData{
		OrderID: order.ID,
		Hard:    hard,
	})
}

func (p *Producer) publish(ctx context.Context, topic, orderID string, metadata map[string]string, data any) {
	event, err := pkgkafka.NewEvent(topic, orderID, AggregateTypeOrder, SourceMarketplace, data)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to build event",
			slog.String("topic", topic),
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
		return
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}
	for k, v := range metadata {
		event.WithMetadata(k, v)
	}

	// The request may finish before the broker answers; keep its values
	// but not its deadline.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	if err := p.kafka.Publish(pubCtx, topic, event); err != nil {
		p.logger.WarnContext(ctx, "failed to publish event",
			slog.String("topic", topic),
			slog.String("order_id", orderID),
			slog.String("event_id", event.EventID),
			slog.String("error", err.Error()),
		)
		return
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("order_id", orderID),
	)
}
