package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/trancongquochuy123/e-commerce-platform-sub000/pkg/errors"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/pkg/logger"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/domain"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/pricing"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/repository"
)

// cartWriteAttempts bounds the compare-and-set loop for one cart write. The
// in-process lock makes conflicts rare; they only come from other instances.
const cartWriteAttempts = 5

// CartService implements cart operations. Every mutation of a cart runs
// under that cart's lock.
type CartService struct {
	carts   repository.CartStore
	catalog repository.CatalogGateway
	locks   *KeyedMutex
	logger  *slog.Logger
	now     func() time.Time
}

// NewCartService creates a cart service. locks must be shared with the
// checkout service so checkout and cart edits exclude each other.
func NewCartService(carts repository.CartStore, catalog repository.CatalogGateway, locks *KeyedMutex, logger *slog.Logger) *CartService {
	return &CartService{
		carts:   carts,
		catalog: catalog,
		locks:   locks,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SummaryLine is one cart item priced at current catalog values.
type SummaryLine struct {
	ProductID          string
	Title              string
	Thumbnail          string
	Quantity           int
	Stock              int
	Price              decimal.Decimal
	DiscountPercentage decimal.Decimal
	DiscountedPrice    decimal.Decimal
	LineTotal          decimal.Decimal
}

// Summary is the priced view of a cart.
type Summary struct {
	CartID     string
	OwnerID    *string
	Items      []SummaryLine
	TotalItems int
	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	Total      decimal.Decimal
}

// GetOrCreate returns the cart for ref, creating an empty one when none is
// stored.
func (s *CartService) GetOrCreate(ctx context.Context, ref domain.CartRef) (*domain.Cart, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(ref.ID())
	defer unlock()

	for attempt := 0; attempt < cartWriteAttempts; attempt++ {
		cart, err := s.load(ctx, ref)
		if err != nil {
			return nil, err
		}
		if cart.Version > 0 {
			return cart, nil
		}
		err = s.carts.SaveIfVersion(ctx, cart)
		if errors.Is(err, repository.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create cart: %w", err)
		}
		return cart, nil
	}
	return nil, cartBusy(ref.ID())
}

// AddItem adds quantity units of a purchasable product. The resulting
// quantity may exceed neither the product's stock nor MaxQuantityPerItem.
func (s *CartService) AddItem(ctx context.Context, ref domain.CartRef, productID string, quantity int) (*domain.Cart, error) {
	if quantity < 1 {
		return nil, domain.InvalidQuantity(quantity)
	}
	if quantity > domain.MaxQuantityPerItem {
		return nil, domain.QuantityAboveLimit(productID, quantity)
	}
	product, err := s.listedProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.Purchasable() {
		return nil, domain.ProductUnavailable(productID)
	}

	cart, err := s.mutate(ctx, ref, func(c *domain.Cart) error {
		existing := c.Quantity(productID)
		if quantity > domain.MaxQuantityPerItem-existing {
			return domain.QuantityAboveLimit(productID, quantity)
		}
		if combined := existing + quantity; combined > product.Stock {
			return domain.InsufficientStock(productID, combined, product.Stock)
		}
		return c.Add(productID, quantity)
	})
	if err != nil {
		return nil, err
	}

	s.log(ctx).DebugContext(ctx, "cart item added",
		slog.String("cart_id", cart.ID),
		slog.String("product_id", productID),
		slog.Int("quantity", quantity),
	)
	return cart, nil
}

// SetItemQuantity replaces the quantity of an item already in the cart.
func (s *CartService) SetItemQuantity(ctx context.Context, ref domain.CartRef, productID string, quantity int) (*domain.Cart, error) {
	if quantity < 1 {
		return nil, domain.InvalidQuantity(quantity)
	}
	if quantity > domain.MaxQuantityPerItem {
		return nil, domain.QuantityAboveLimit(productID, quantity)
	}
	return s.mutate(ctx, ref, func(c *domain.Cart) error {
		if c.Quantity(productID) == 0 {
			return domain.ItemNotFound(productID)
		}
		product, err := s.listedProduct(ctx, productID)
		if err != nil {
			return err
		}
		if quantity > product.Stock {
			return domain.InsufficientStock(productID, quantity, product.Stock)
		}
		return c.SetQuantity(productID, quantity)
	})
}

// RemoveItem deletes a product from the cart.
func (s *CartService) RemoveItem(ctx context.Context, ref domain.CartRef, productID string) (*domain.Cart, error) {
	return s.mutate(ctx, ref, func(c *domain.Cart) error {
		return c.Remove(productID)
	})
}

// Clear empties the cart. Clearing an empty or missing cart succeeds.
func (s *CartService) Clear(ctx context.Context, ref domain.CartRef) (*domain.Cart, error) {
	return s.mutate(ctx, ref, func(c *domain.Cart) error {
		if c.IsEmpty() {
			return errNoChange
		}
		c.Clear()
		return nil
	})
}

// Merge attaches the anonymous cart of token to accountID. When the account
// already has a cart the anonymous one is discarded, otherwise it is
// re-owned by the account. The account's cart is returned.
func (s *CartService) Merge(ctx context.Context, token, accountID string) (*domain.Cart, error) {
	anonRef := domain.CartRef{Token: token}
	ownedRef := domain.CartRef{AccountID: accountID}
	if token == "" || accountID == "" {
		return nil, domain.InvalidCartRef("merge requires both an X-Cart-Token and an X-User-ID header")
	}
	if err := anonRef.Validate(); err != nil {
		return nil, err
	}
	if err := ownedRef.Validate(); err != nil {
		return nil, err
	}

	unlock := s.locks.LockAll(anonRef.ID(), ownedRef.ID())
	defer unlock()

	for attempt := 0; attempt < cartWriteAttempts; attempt++ {
		anon, err := s.find(ctx, anonRef.ID())
		if err != nil {
			return nil, err
		}
		owned, err := s.find(ctx, ownedRef.ID())
		if err != nil {
			return nil, err
		}

		switch {
		case anon == nil && owned != nil:
			return owned, nil
		case anon == nil:
			owned = domain.NewCart(ownedRef, s.now())
			err = s.carts.SaveIfVersion(ctx, owned)
		case owned != nil:
			if err := s.carts.Delete(ctx, anon.ID); err != nil {
				return nil, fmt.Errorf("discard anonymous cart: %w", err)
			}
			s.log(ctx).InfoContext(ctx, "anonymous cart discarded on merge",
				slog.String("cart_id", anon.ID),
				slog.String("account_id", accountID),
				slog.Int("items", len(anon.Items)),
			)
			return owned, nil
		default:
			fromID := anon.ID
			anon.Reown(accountID, s.now())
			if err = s.carts.Reown(ctx, fromID, anon); err == nil {
				s.log(ctx).InfoContext(ctx, "anonymous cart reowned",
					slog.String("from_cart_id", fromID),
					slog.String("cart_id", anon.ID),
				)
				return anon, nil
			}
		}

		if errors.Is(err, repository.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("merge cart: %w", err)
		}
		return owned, nil
	}
	return nil, cartBusy(ownedRef.ID())
}

// Summarize prices the cart at current catalog values. Items whose product
// is gone, inactive, deleted or out of stock are dropped from the summary
// and from the stored cart.
func (s *CartService) Summarize(ctx context.Context, ref domain.CartRef) (*Summary, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(ref.ID())
	defer unlock()

	for attempt := 0; attempt < cartWriteAttempts; attempt++ {
		cart, err := s.load(ctx, ref)
		if err != nil {
			return nil, err
		}

		products := make(map[string]*domain.Product, len(cart.Items))
		for _, it := range cart.Items {
			p, err := s.catalog.GetProduct(ctx, it.ProductID)
			if err != nil && !errors.Is(err, domain.ErrProductNotFound) {
				return nil, fmt.Errorf("load product %s: %w", it.ProductID, err)
			}
			if err == nil && p.Purchasable() {
				products[it.ProductID] = p
			}
		}

		dropped := cart.Retain(func(it domain.CartItem) bool {
			_, ok := products[it.ProductID]
			return ok
		})
		if dropped > 0 {
			cart.UpdatedAt = s.now()
			err := s.carts.SaveIfVersion(ctx, cart)
			if errors.Is(err, repository.ErrVersionConflict) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("drop stale cart items: %w", err)
			}
			s.log(ctx).InfoContext(ctx, "stale items removed from cart",
				slog.String("cart_id", cart.ID),
				slog.Int("dropped", dropped),
			)
		}

		return summarize(cart, products)
	}
	return nil, cartBusy(ref.ID())
}

func summarize(cart *domain.Cart, products map[string]*domain.Product) (*Summary, error) {
	lines := make([]pricing.Line, len(cart.Items))
	for i, it := range cart.Items {
		lines[i] = products[it.ProductID].Line(it.Quantity)
	}
	priced, totals, err := pricing.Summarize(lines)
	if err != nil {
		return nil, fmt.Errorf("price cart %s: %w", cart.ID, err)
	}

	sum := &Summary{
		CartID:     cart.ID,
		OwnerID:    cart.OwnerID,
		Items:      make([]SummaryLine, len(priced)),
		TotalItems: totals.Items,
		Subtotal:   totals.Subtotal,
		Discount:   totals.Discount,
		Total:      totals.Total,
	}
	for i, pl := range priced {
		p := products[cart.Items[i].ProductID]
		sum.Items[i] = SummaryLine{
			ProductID:          p.ID,
			Title:              p.Title,
			Thumbnail:          p.Thumbnail,
			Quantity:           pl.Quantity,
			Stock:              p.Stock,
			Price:              pl.Price,
			DiscountPercentage: pl.DiscountPct,
			DiscountedPrice:    pl.DiscountedUnit,
			LineTotal:          pl.Total,
		}
	}
	return sum, nil
}

// errNoChange lets a mutation skip the write.
var errNoChange = errors.New("no change")

// mutate applies fn to the current cart under its lock and stores the
// result with a version check, retrying when another writer got there
// first.
func (s *CartService) mutate(ctx context.Context, ref domain.CartRef, fn func(*domain.Cart) error) (*domain.Cart, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(ref.ID())
	defer unlock()

	for attempt := 0; attempt < cartWriteAttempts; attempt++ {
		cart, err := s.load(ctx, ref)
		if err != nil {
			return nil, err
		}
		if err := fn(cart); err != nil {
			if errors.Is(err, errNoChange) {
				return cart, nil
			}
			return nil, err
		}
		cart.UpdatedAt = s.now()

		err = s.carts.SaveIfVersion(ctx, cart)
		if errors.Is(err, repository.ErrVersionConflict) {
			s.log(ctx).DebugContext(ctx, "cart write conflict, retrying",
				slog.String("cart_id", cart.ID),
				slog.Int("attempt", attempt+1),
			)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("save cart: %w", err)
		}
		return cart, nil
	}
	return nil, cartBusy(ref.ID())
}

// load returns the stored cart or a new unsaved one.
func (s *CartService) load(ctx context.Context, ref domain.CartRef) (*domain.Cart, error) {
	cart, err := s.find(ctx, ref.ID())
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return domain.NewCart(ref, s.now()), nil
	}
	return cart, nil
}

func (s *CartService) find(ctx context.Context, cartID string) (*domain.Cart, error) {
	cart, err := s.carts.Get(ctx, cartID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.ServiceUnavailable("cart store unavailable", err)
	}
	return cart, nil
}

// listedProduct loads a product and rejects it when it is inactive, deleted
// or missing. Stock is checked by the caller.
func (s *CartService) listedProduct(ctx context.Context, productID string) (*domain.Product, error) {
	p, err := s.catalog.GetProduct(ctx, productID)
	if errors.Is(err, domain.ErrProductNotFound) {
		return nil, domain.ProductUnavailable(productID)
	}
	if err != nil {
		return nil, fmt.Errorf("load product %s: %w", productID, err)
	}
	if !p.Listed() {
		return nil, domain.ProductUnavailable(productID)
	}
	return p, nil
}

func (s *CartService) log(ctx context.Context) *slog.Logger {
	return logger.WithContext(ctx, s.logger)
}

func cartBusy(cartID string) *apperrors.AppError {
	return apperrors.Conflict("cart is being modified concurrently, please retry").
		WithDetail("cart_id", cartID)
}
