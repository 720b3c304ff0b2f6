package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/trancongquochuy123/e-commerce-platform-sub000/pkg/errors"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/pkg/logger"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/domain"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/repository"
)

// statusWriteAttempts bounds the compare-and-set loop of SetStatus.
const statusWriteAttempts = 3

// OrderService implements the order ledger.
type OrderService struct {
	repo   repository.OrderRepository
	events OrderEvents
	logger *slog.Logger
	now    func() time.Time
}

// NewOrderService creates a new order service.
func NewOrderService(repo repository.OrderRepository, events OrderEvents, logger *slog.Logger) *OrderService {
	if events == nil {
		events = NopEvents{}
	}
	return &OrderService{
		repo:   repo,
		events: events,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// GetOrder retrieves an order by its ID. Soft-deleted orders are returned.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order by id: %w", err)
	}
	return order, nil
}

// ListOrders returns a page of orders matching filter and the total count.
func (s *OrderService) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, int, error) {
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return nil, 0, apperrors.InvalidInput("from must be before to")
	}
	orders, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, total, nil
}

// SetStatus moves an order through the fulfillment state machine. The
// write is conditional on the status that was validated, so two admins
// racing on one order cannot skip a transition.
func (s *OrderService) SetStatus(ctx context.Context, id string, target domain.OrderStatus) (*domain.Order, error) {
	for attempt := 0; attempt < statusWriteAttempts; attempt++ {
		order, err := s.GetOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		from := order.Status
		if err := order.TransitionTo(target, s.now()); err != nil {
			return nil, err
		}

		err = s.repo.UpdateStatus(ctx, id, from, target, order.UpdatedAt)
		if errors.Is(err, repository.ErrStatusConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("update order status: %w", err)
		}

		orderTransitions.WithLabelValues(string(from), string(target)).Inc()
		s.events.OrderStatusChanged(ctx, order, from)
		s.log(ctx).InfoContext(ctx, "order status changed",
			slog.String("order_id", id),
			slog.String("from", string(from)),
			slog.String("to", string(target)),
		)
		return order, nil
	}
	return nil, apperrors.Conflict("order was modified concurrently, please retry").
		WithDetail("order_id", id)
}

// MarkPaid records a payment confirmation. Repeated confirmations succeed
// and keep the first payment time.
func (s *OrderService) MarkPaid(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	changed, err := order.MarkPaid(s.now())
	if err != nil {
		return nil, err
	}
	if !changed {
		return order, nil
	}

	written, err := s.repo.MarkPaid(ctx, id, *order.PaidAt)
	if err != nil {
		return nil, fmt.Errorf("mark order paid: %w", err)
	}
	if !written {
		// Paid or deleted in the meantime; report what is stored.
		current, err := s.GetOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.Deleted {
			return nil, domain.OrderDeleted(id)
		}
		return current, nil
	}

	s.events.OrderPaid(ctx, order)
	s.log(ctx).InfoContext(ctx, "order marked paid", slog.String("order_id", id))
	return order, nil
}

// SoftDelete hides an order from listings. Deleting twice succeeds.
func (s *OrderService) SoftDelete(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.SoftDelete(s.now()) {
		return order, nil
	}
	written, err := s.repo.SetDeleted(ctx, id, true, order.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("soft delete order: %w", err)
	}
	if !written {
		// Deleted by a concurrent request, which also emitted the event.
		return s.GetOrder(ctx, id)
	}

	s.events.OrderDeleted(ctx, order, false)
	s.log(ctx).InfoContext(ctx, "order soft deleted", slog.String("order_id", id))
	return order, nil
}

// Restore undoes SoftDelete. Restoring a live order succeeds.
func (s *OrderService) Restore(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.Restore(s.now()) {
		return order, nil
	}
	written, err := s.repo.SetDeleted(ctx, id, false, order.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("restore order: %w", err)
	}
	if !written {
		return s.GetOrder(ctx, id)
	}

	s.log(ctx).InfoContext(ctx, "order restored", slog.String("order_id", id))
	return order, nil
}

// HardDelete removes an order permanently. Stock is not returned.
func (s *OrderService) HardDelete(ctx context.Context, id string) error {
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.HardDelete(ctx, id); err != nil {
		return fmt.Errorf("hard delete order: %w", err)
	}

	s.events.OrderDeleted(ctx, order, true)
	s.log(ctx).WarnContext(ctx, "order permanently deleted", slog.String("order_id", id))
	return nil
}

func (s *OrderService) log(ctx context.Context) *slog.Logger {
	return logger.WithContext(ctx, s.logger)
}
