package service

import (
	"context"

	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/domain"
)

// OrderEvents announces order changes after they are committed. Calls must
// not block the caller on broker trouble and never fail the operation.
type OrderEvents interface {
	OrderCreated(ctx context.Context, order *domain.Order)
	OrderStatusChanged(ctx context.Context, order *domain.Order, from domain.OrderStatus)
	OrderPaid(ctx context.Context, order *domain.Order)
	OrderDeleted(ctx context.Context, order *domain.Order, hard bool)
}

// NopEvents discards every event.
type NopEvents struct{}

func (NopEvents) OrderCreated(context.Context, *domain.Order)                            {}
func (NopEvents) OrderStatusChanged(context.Context, *domain.Order, domain.OrderStatus) {}
func (NopEvents) OrderPaid(context.Context, *domain.Order)                               {}
func (NopEvents) OrderDeleted(context.Context, *domain.Order, bool)                      {}
