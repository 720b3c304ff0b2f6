package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	pkgkafka "github.com/trancongquochuy123/e-commerce-platform-sub000/pkg/kafka"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/pkg/logger"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/domain"
)

// TopicPaymentSucceeded is published by the payment provider.
var TopicPaymentSucceeded = pkgkafka.Topic("payment", "succeeded")

// OrderPayments is the part of the order service the consumer drives.
type OrderPayments interface {
	MarkPaid(ctx context.Context, id string) (*domain.Order, error)
}

// PaymentSucceededData is the expected payload of a payment.succeeded event.
type PaymentSucceededData struct {
	PaymentID string `json:"payment_id"`
	OrderID   string `json:"order_id"`
	Amount    string `json:"amount,omitempty"`
	Method    string `json:"method,omitempty"`
}

// Consumer processes payment events for the marketplace service.
type Consumer struct {
	logger *slog.Logger
	orders OrderPayments
}

// NewConsumer creates a new payment event consumer.
func NewConsumer(orders OrderPayments, logger *slog.Logger) *Consumer {
	return &Consumer{
		orders: orders,
		logger: logger,
	}
}

// Handler returns HandlePaymentSucceeded guarded against redelivery.
func (c *Consumer) Handler(store pkgkafka.IdempotencyStore) pkgkafka.Handler {
	return pkgkafka.IdempotentHandler(store, c.HandlePaymentSucceeded, c.logger)
}

// HandlePaymentSucceeded marks the referenced order paid. Events for orders
// that are gone or deleted are dropped; anything else is returned so the
// consumer retries and eventually dead-letters the message.
func (c *Consumer) HandlePaymentSucceeded(ctx context.Context, event *pkgkafka.Event) error {
	var data PaymentSucceededData
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("unmarshal payment.succeeded data: %w", err)
	}
	if data.OrderID == "" {
		c.logger.WarnContext(ctx, "payment.succeeded event without order id",
			slog.String("event_id", event.EventID),
			slog.String("payment_id", data.PaymentID),
		)
		return nil
	}

	if event.CorrelationID != "" {
		ctx = logger.WithCorrelationID(ctx, event.CorrelationID)
	}

	c.logger.InfoContext(ctx, "processing payment.succeeded event",
		slog.String("order_id", data.OrderID),
		slog.String("payment_id", data.PaymentID),
	)

	if _, err := c.orders.MarkPaid(ctx, data.OrderID); err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) || errors.Is(err, domain.ErrOrderDeleted) {
			c.logger.WarnContext(ctx, "dropping payment for unknown or deleted order",
				slog.String("order_id", data.OrderID),
				slog.String("payment_id", data.PaymentID),
				slog.String("error", err.Error()),
			)
			return nil
		}
		return fmt.Errorf("mark order %s paid: %w", data.OrderID, err)
	}
	return nil
}
