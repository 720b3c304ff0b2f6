package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/trancongquochuy123/e-commerce-platform-sub000/pkg/logger"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/domain"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/pricing"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/repository"
)

const tracerName = "github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/service"

// CheckoutInput is what the buyer submits.
type CheckoutInput struct {
	Buyer         domain.BuyerInfo
	PaymentMethod string
}

// CheckoutService turns a cart into an order.
type CheckoutService struct {
	carts       repository.CartStore
	catalog     repository.CatalogGateway
	store       repository.CheckoutStore
	events      OrderEvents
	locks       *KeyedMutex
	maxAttempts int
	logger      *slog.Logger
	now         func() time.Time
	newID       func() string
}

// NewCheckoutService creates a checkout service. maxAttempts bounds the
// validate-and-apply loop and is at least 1.
func NewCheckoutService(
	carts repository.CartStore,
	catalog repository.CatalogGateway,
	store repository.CheckoutStore,
	events OrderEvents,
	locks *KeyedMutex,
	maxAttempts int,
	logger *slog.Logger,
) *CheckoutService {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if events == nil {
		events = NopEvents{}
	}
	return &CheckoutService{
		carts:       carts,
		catalog:     catalog,
		store:       store,
		events:      events,
		locks:       locks,
		maxAttempts: maxAttempts,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       func() string { return uuid.New().String() },
	}
}

// Checkout validates the cart against the catalog, then claims stock,
// creates the order and empties the cart as one unit. Validation failures
// abort without side effects. A concurrent stock or cart change restarts
// validation, up to maxAttempts times.
func (s *CheckoutService) Checkout(ctx context.Context, ref domain.CartRef, in CheckoutInput) (_ *domain.Order, err error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "checkout")
	span.SetAttributes(attribute.String("cart.id", ref.ID()))
	attempts := 0
	defer func() {
		checkoutsTotal.WithLabelValues(checkoutOutcome(err)).Inc()
		checkoutAttempts.Observe(float64(attempts))
		checkoutDuration.Observe(time.Since(start).Seconds())
		span.SetAttributes(attribute.Int("checkout.attempts", attempts))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	log := logger.WithContext(ctx, s.logger).With(slog.String("cart_id", ref.ID()))

	unlock := s.locks.Lock(ref.ID())
	defer unlock()

	var lastErr error
	for attempts < s.maxAttempts {
		attempts++

		cart, order, claims, err := s.prepare(ctx, ref, in)
		if err != nil {
			return nil, err
		}

		err = s.store.PlaceOrder(ctx, order, claims)
		if errors.Is(err, repository.ErrStockConflict) {
			lastErr = err
			log.InfoContext(ctx, "stock changed during checkout, revalidating",
				slog.Int("attempt", attempts),
				slog.String("error", err.Error()),
			)
			continue
		}
		if err != nil {
			log.ErrorContext(ctx, "place order failed", slog.String("error", err.Error()))
			return nil, domain.CheckoutFailed(err)
		}

		if err := s.carts.ClearIfVersion(ctx, cart); err != nil {
			if revokeErr := s.revoke(ctx, log, order); revokeErr != nil {
				return nil, domain.CheckoutFailed(errors.Join(err, revokeErr))
			}
			if errors.Is(err, repository.ErrVersionConflict) {
				lastErr = err
				log.InfoContext(ctx, "cart changed during checkout, revalidating",
					slog.Int("attempt", attempts))
				continue
			}
			return nil, domain.CheckoutFailed(fmt.Errorf("empty cart: %w", err))
		}

		s.events.OrderCreated(ctx, order)
		log.InfoContext(ctx, "checkout completed",
			slog.String("order_id", order.ID),
			slog.Int("items", len(order.Items)),
			slog.String("total", pricing.Format(order.Total())),
			slog.Int("attempts", attempts),
		)
		return order, nil
	}

	log.WarnContext(ctx, "checkout attempts exhausted",
		slog.Int("attempts", attempts),
		slog.String("error", lastErr.Error()),
	)
	return nil, domain.CheckoutFailed(fmt.Errorf("gave up after %d attempts: %w", attempts, lastErr))
}

// prepare loads the cart and checks every item against the current
// catalog, all or nothing. It returns the order to create and the stock
// claims that back it.
func (s *CheckoutService) prepare(ctx context.Context, ref domain.CartRef, in CheckoutInput) (*domain.Cart, *domain.Order, []repository.StockClaim, error) {
	cart, err := s.carts.Get(ctx, ref.ID())
	if errors.Is(err, repository.ErrCartNotFound) {
		return nil, nil, nil, domain.EmptyCart(ref.ID())
	}
	if err != nil {
		return nil, nil, nil, domain.CheckoutFailed(fmt.Errorf("load cart: %w", err))
	}
	if cart.IsEmpty() {
		return nil, nil, nil, domain.EmptyCart(cart.ID)
	}

	now := s.now()
	order := &domain.Order{
		ID:            s.newID(),
		CartID:        cart.ID,
		Buyer:         in.Buyer,
		Items:         make([]domain.OrderItem, 0, len(cart.Items)),
		PaymentMethod: in.PaymentMethod,
		Status:        domain.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if ref.AccountID != "" {
		account := ref.AccountID
		order.AccountID = &account
	}

	claims := make([]repository.StockClaim, 0, len(cart.Items))
	for _, it := range cart.Items {
		p, err := s.catalog.GetProduct(ctx, it.ProductID)
		if errors.Is(err, domain.ErrProductNotFound) {
			return nil, nil, nil, domain.ProductUnavailable(it.ProductID)
		}
		if err != nil {
			return nil, nil, nil, domain.CheckoutFailed(fmt.Errorf("load product %s: %w", it.ProductID, err))
		}
		if !p.Listed() {
			return nil, nil, nil, domain.ProductUnavailable(p.ID)
		}
		if it.Quantity > p.Stock {
			return nil, nil, nil, domain.InsufficientStock(p.ID, it.Quantity, p.Stock)
		}

		item := domain.SnapshotItem(s.newID(), p, it.Quantity)
		if _, err := pricing.Price(item.Line()); err != nil {
			return nil, nil, nil, domain.CheckoutFailed(fmt.Errorf("price product %s: %w", p.ID, err))
		}
		order.Items = append(order.Items, item)
		claims = append(claims, repository.StockClaim{ProductID: p.ID, Quantity: it.Quantity, Version: p.Version})
	}
	return cart, order, claims, nil
}

// revoke undoes a committed order. It must run even when the request was
// cancelled, otherwise stock stays claimed for an order the buyer never got.
func (s *CheckoutService) revoke(ctx context.Context, log *slog.Logger, order *domain.Order) error {
	checkoutCompensations.Inc()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := s.store.RevokeOrder(ctx, order); err != nil {
		log.ErrorContext(ctx, "failed to revoke order after cart write failure",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("revoke order %s: %w", order.ID, err)
	}
	log.WarnContext(ctx, "order revoked after cart write failure", slog.String("order_id", order.ID))
	return nil
}
