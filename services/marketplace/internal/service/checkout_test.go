package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/domain"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/repository"
)

type checkoutFixture struct {
	svc     *CheckoutService
	carts   *fakeCartStore
	catalog *fakeCatalog
	store   *fakeCheckoutStore
	events  *recordingEvents
}

func newCheckoutFixture(products ...*domain.Product) *checkoutFixture {
	carts := newFakeCartStore()
	catalog := newFakeCatalog(products...)
	store := newFakeCheckoutStore(catalog)
	events := &recordingEvents{}
	svc := NewCheckoutService(carts, catalog, store, events, NewKeyedMutex(), 3, discardLogger())
	ids := 0
	var mu sync.Mutex
	svc.newID = func() string {
		mu.Lock()
		defer mu.Unlock()
		ids++
		return fmt.Sprintf("id-%d", ids)
	}
	svc.now = func() time.Time { return testNow }
	return &checkoutFixture{svc: svc, carts: carts, catalog: catalog, store: store, events: events}
}

func (f *checkoutFixture) cart(ref domain.CartRef, items ...domain.CartItem) *domain.Cart {
	c := domain.NewCart(ref, testNow)
	c.Items = items
	f.carts.put(c)
	return c
}

func buyerInput() CheckoutInput {
	return CheckoutInput{
		Buyer:         domain.BuyerInfo{Name: "Jane", Phone: "0900", Address: "1 Main St"},
		PaymentMethod: "cod",
	}
}

func TestCheckout_EndToEnd(t *testing.T) {
	f := newCheckoutFixture(product("A", "100", "10", 5), product("B", "50", "0", 1))
	account := domain.CartRef{AccountID: "acct-1"}
	f.cart(account, domain.CartItem{ProductID: "A", Quantity: 2}, domain.CartItem{ProductID: "B", Quantity: 1})

	order, err := f.svc.Checkout(context.Background(), account, buyerInput())
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPending, order.Status)
	assert.Equal(t, "account:acct-1", order.CartID)
	require.NotNil(t, order.AccountID)
	assert.Equal(t, "acct-1", *order.AccountID)
	assert.False(t, order.IsPaid)
	require.Len(t, order.Items, 2)
	assert.Equal(t, "Product A", order.Items[0].Title)
	assert.True(t, decimal.RequireFromString("230.00").Equal(order.Total()))

	assert.Equal(t, 3, f.catalog.stock("A"))
	assert.Equal(t, 0, f.catalog.stock("B"))
	assert.Empty(t, f.carts.items("account:acct-1"))
	assert.Equal(t, 1, f.store.count())
	assert.Equal(t, []string{"created"}, f.events.kinds())
}

func TestCheckout_InsufficientStockLeavesEverythingUnchanged(t *testing.T) {
	f := newCheckoutFixture(product("A", "100", "10", 5), product("B", "50", "0", 0))
	f.cart(anon, domain.CartItem{ProductID: "A", Quantity: 2}, domain.CartItem{ProductID: "B", Quantity: 1})

	_, err := f.svc.Checkout(context.Background(), anon, buyerInput())
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	var shortage *domain.StockShortageError
	require.True(t, errors.As(err, &shortage))
	assert.Equal(t, "B", shortage.ProductID)
	assert.Equal(t, 0, shortage.Available)

	assert.Equal(t, 5, f.catalog.stock("A"))
	assert.Len(t, f.carts.items("token:tok-1"), 2)
	assert.Zero(t, f.store.count())
	assert.Empty(t, f.events.kinds())
}

func TestCheckout_ValidationFailures(t *testing.T) {
	inactive := product("off", "10", "0", 5)
	inactive.Active = false
	deleted := product("gone", "10", "0", 5)
	deleted.Deleted = true

	tests := []struct {
		name  string
		items []domain.CartItem
		want  error
	}{
		{"empty cart", nil, domain.ErrEmptyCart},
		{"inactive product", []domain.CartItem{{ProductID: "off", Quantity: 1}}, domain.ErrProductUnavailable},
		{"deleted product", []domain.CartItem{{ProductID: "gone", Quantity: 1}}, domain.ErrProductUnavailable},
		{"missing product", []domain.CartItem{{ProductID: "nope", Quantity: 1}}, domain.ErrProductUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCheckoutFixture(inactive, deleted)
			f.cart(anon, tt.items...)

			_, err := f.svc.Checkout(context.Background(), anon, buyerInput())
			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, f.store.count())
		})
	}

	t.Run("missing cart", func(t *testing.T) {
		f := newCheckoutFixture()
		_, err := f.svc.Checkout(context.Background(), anon, buyerInput())
		assert.ErrorIs(t, err, domain.ErrEmptyCart)
	})
}

func TestCheckout_StockRaceOnLastUnit(t *testing.T) {
	f := newCheckoutFixture(product("A", "10", "0", 1))
	refs := []domain.CartRef{{Token: "buyer-1"}, {Token: "buyer-2"}}
	for _, ref := range refs {
		f.cart(ref, domain.CartItem{ProductID: "A", Quantity: 1})
	}

	// Both buyers validate against version 1 before either claims.
	var ready sync.WaitGroup
	ready.Add(len(refs))
	release := make(chan struct{})
	gate := &gatedCatalog{fakeCatalog: f.catalog, ready: &ready, release: release}
	f.svc.catalog = gate

	errs := make([]error, len(refs))
	var wg sync.WaitGroup
	for i, ref := range refs {
		i, ref := i, ref
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.Checkout(context.Background(), ref, buyerInput())
		}()
	}
	ready.Wait()
	close(release)
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, domain.ErrInsufficientStock):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, lost)
	assert.Equal(t, 0, f.catalog.stock("A"))
	assert.Equal(t, 1, f.store.count())
}

// gatedCatalog holds the first lookup of each checkout until every racer
// has made one.
type gatedCatalog struct {
	*fakeCatalog
	ready   *sync.WaitGroup
	release chan struct{}
	once    sync.Map
}

func (g *gatedCatalog) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := g.fakeCatalog.GetProduct(ctx, id)
	key := fmt.Sprintf("%p", ctx)
	if _, seen := g.once.LoadOrStore(key, true); !seen {
		g.ready.Done()
		<-g.release
	}
	return p, err
}

func TestCheckout_RetriesAfterStockConflict(t *testing.T) {
	f := newCheckoutFixture(product("A", "10", "0", 5))
	f.cart(anon, domain.CartItem{ProductID: "A", Quantity: 2})

	f.svc.catalog = &bumpOnceCatalog{fakeCatalog: f.catalog}

	order, err := f.svc.Checkout(context.Background(), anon, buyerInput())
	require.NoError(t, err)
	assert.NotNil(t, order)
	assert.Equal(t, 2, f.catalog.stock("A"), "one unit sold elsewhere, two to us")
}

// bumpOnceCatalog sells one unit behind the checkout's back right after the
// first lookup, so the first claim is stale.
type bumpOnceCatalog struct {
	*fakeCatalog
	done bool
}

func (b *bumpOnceCatalog) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := b.fakeCatalog.GetProduct(ctx, id)
	if !b.done {
		b.done = true
		_ = b.fakeCatalog.DecrementStock(ctx, id, 1)
	}
	return p, err
}

func TestCheckout_GivesUpAfterMaxAttempts(t *testing.T) {
	f := newCheckoutFixture(product("A", "10", "0", 50))
	f.cart(anon, domain.CartItem{ProductID: "A", Quantity: 1})
	f.svc.catalog = &alwaysStaleCatalog{fakeCatalog: f.catalog}

	_, err := f.svc.Checkout(context.Background(), anon, buyerInput())
	require.ErrorIs(t, err, domain.ErrCheckoutFailed)
	assert.ErrorIs(t, err, repository.ErrStockConflict)
	assert.Zero(t, f.store.count())
	assert.Len(t, f.carts.items("token:tok-1"), 1)
}

type alwaysStaleCatalog struct{ *fakeCatalog }

func (a *alwaysStaleCatalog) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := a.fakeCatalog.GetProduct(ctx, id)
	a.fakeCatalog.update(id, func(*domain.Product) {})
	return p, err
}

func TestCheckout_PlaceOrderFailure(t *testing.T) {
	f := newCheckoutFixture(product("A", "10", "0", 5))
	f.cart(anon, domain.CartItem{ProductID: "A", Quantity: 1})
	f.store.placeErr = errBoom

	_, err := f.svc.Checkout(context.Background(), anon, buyerInput())
	assert.ErrorIs(t, err, domain.ErrCheckoutFailed)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 5, f.catalog.stock("A"))
	assert.Len(t, f.carts.items("token:tok-1"), 1)
}

func TestCheckout_CartWriteFailureRevokesOrder(t *testing.T) {
	f := newCheckoutFixture(product("A", "10", "0", 5))
	f.cart(anon, domain.CartItem{ProductID: "A", Quantity: 2})
	f.carts.clearErr = errBoom

	_, err := f.svc.Checkout(context.Background(), anon, buyerInput())
	require.ErrorIs(t, err, domain.ErrCheckoutFailed)

	assert.Equal(t, 5, f.catalog.stock("A"))
	assert.Zero(t, f.store.count())
	assert.Len(t, f.store.revoked, 1)
	assert.Len(t, f.carts.items("token:tok-1"), 1)
	assert.Empty(t, f.events.kinds())
}

func TestCheckout_CartChangedDuringCheckoutRevalidates(t *testing.T) {
	f := newCheckoutFixture(product("A", "10", "0", 5), product("B", "20", "0", 5))
	f.cart(anon, domain.CartItem{ProductID: "A", Quantity: 1})

	// Another instance adds B between validation and the cart write.
	f.carts.beforeClear = func() {
		c, err := f.carts.Get(context.Background(), "token:tok-1")
		require.NoError(t, err)
		require.NoError(t, c.Add("B", 1))
		require.NoError(t, f.carts.SaveIfVersion(context.Background(), c))
	}

	order, err := f.svc.Checkout(context.Background(), anon, buyerInput())
	require.NoError(t, err)
	assert.Len(t, order.Items, 2)
	assert.Len(t, f.store.revoked, 1)
	assert.Equal(t, 4, f.catalog.stock("A"))
	assert.Equal(t, 4, f.catalog.stock("B"))
	assert.Equal(t, 1, f.store.count())
}
