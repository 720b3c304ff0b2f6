package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/domain"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/repository"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func product(id, price, discount string, stock int) *domain.Product {
	return &domain.Product{
		ID:                 id,
		Title:              "Product " + id,
		Price:              decimal.RequireFromString(price),
		DiscountPercentage: decimal.RequireFromString(discount),
		Stock:              stock,
		Active:             true,
		Version:            1,
	}
}

// --- catalog ---

type fakeCatalog struct {
	mu       sync.Mutex
	products map[string]domain.Product
	getErr   error
}

func newFakeCatalog(products ...*domain.Product) *fakeCatalog {
	c := &fakeCatalog{products: make(map[string]domain.Product)}
	for _, p := range products {
		c.products[p.ID] = *p
	}
	return c
}

func (c *fakeCatalog) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	p, ok := c.products[id]
	if !ok {
		return nil, domain.ProductNotFound(id)
	}
	return &p, nil
}

func (c *fakeCatalog) DecrementStock(_ context.Context, id string, amount int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		return domain.ProductNotFound(id)
	}
	if p.Stock < amount {
		return domain.InsufficientStock(id, amount, p.Stock)
	}
	p.Stock -= amount
	p.Version++
	c.products[id] = p
	return nil
}

func (c *fakeCatalog) update(id string, fn func(*domain.Product)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.products[id]
	fn(&p)
	p.Version++
	c.products[id] = p
}

func (c *fakeCatalog) stock(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.products[id].Stock
}

// --- carts ---

type fakeCartStore struct {
	mu       sync.Mutex
	carts    map[string]domain.Cart
	clearErr error
	getErr   error
	// beforeClear runs once, before the version check of the next clear.
	beforeClear func()
}

func newFakeCartStore() *fakeCartStore {
	return &fakeCartStore{carts: make(map[string]domain.Cart)}
}

func copyCart(c domain.Cart) *domain.Cart {
	c.Items = slices.Clone(c.Items)
	if c.Items == nil {
		c.Items = []domain.CartItem{}
	}
	return &c
}

func (s *fakeCartStore) Get(_ context.Context, id string) (*domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	c, ok := s.carts[id]
	if !ok {
		return nil, fmt.Errorf("cart %s: %w", id, repository.ErrCartNotFound)
	}
	return copyCart(c), nil
}

func (s *fakeCartStore) SaveIfVersion(_ context.Context, cart *domain.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.carts[cart.ID].Version != cart.Version {
		return repository.ErrVersionConflict
	}
	cart.Version++
	s.carts[cart.ID] = *copyCart(*cart)
	return nil
}

func (s *fakeCartStore) ClearIfVersion(_ context.Context, cart *domain.Cart) error {
	if hook := s.beforeClear; hook != nil {
		s.beforeClear = nil
		hook()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clearErr != nil {
		return s.clearErr
	}
	if s.carts[cart.ID].Version != cart.Version {
		return repository.ErrVersionConflict
	}
	cart.Clear()
	cart.Version++
	s.carts[cart.ID] = *copyCart(*cart)
	return nil
}

func (s *fakeCartStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, id)
	return nil
}

func (s *fakeCartStore) Reown(_ context.Context, fromID string, cart *domain.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.carts[fromID].Version != cart.Version {
		return repository.ErrVersionConflict
	}
	if _, exists := s.carts[cart.ID]; exists {
		return repository.ErrVersionConflict
	}
	cart.Version++
	s.carts[cart.ID] = *copyCart(*cart)
	delete(s.carts, fromID)
	return nil
}

func (s *fakeCartStore) put(c *domain.Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.Version == 0 {
		c.Version = 1
	}
	s.carts[c.ID] = *copyCart(*c)
}

func (s *fakeCartStore) items(id string) []domain.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.carts[id].Items)
}

// --- checkout ---

// fakeCheckoutStore applies claims against fakeCatalog under its lock, which
// stands in for the database transaction.
type fakeCheckoutStore struct {
	catalog  *fakeCatalog
	mu       sync.Mutex
	orders   map[string]*domain.Order
	placeErr error
	revoked  []string
}

func newFakeCheckoutStore(catalog *fakeCatalog) *fakeCheckoutStore {
	return &fakeCheckoutStore{catalog: catalog, orders: make(map[string]*domain.Order)}
}

func (s *fakeCheckoutStore) PlaceOrder(_ context.Context, order *domain.Order, claims []repository.StockClaim) error {
	if s.placeErr != nil {
		return s.placeErr
	}
	s.catalog.mu.Lock()
	defer s.catalog.mu.Unlock()

	for _, c := range claims {
		p := s.catalog.products[c.ProductID]
		if p.Version != c.Version || p.Stock < c.Quantity || !p.Listed() {
			return fmt.Errorf("claim stock for %s: %w", c.ProductID, repository.ErrStockConflict)
		}
	}
	for _, c := range claims {
		p := s.catalog.products[c.ProductID]
		p.Stock -= c.Quantity
		p.Version++
		s.catalog.products[c.ProductID] = p
	}

	s.mu.Lock()
	s.orders[order.ID] = order
	s.mu.Unlock()
	return nil
}

func (s *fakeCheckoutStore) RevokeOrder(_ context.Context, order *domain.Order) error {
	s.catalog.mu.Lock()
	for _, it := range order.Items {
		p := s.catalog.products[it.ProductID]
		p.Stock += it.Quantity
		p.Version++
		s.catalog.products[it.ProductID] = p
	}
	s.catalog.mu.Unlock()

	s.mu.Lock()
	delete(s.orders, order.ID)
	s.revoked = append(s.revoked, order.ID)
	s.mu.Unlock()
	return nil
}

func (s *fakeCheckoutStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

// --- orders ---

type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[string]domain.Order
	// onUpdate runs before each status write, outside the lock.
	onUpdate func()
}

func newFakeOrderRepo(orders ...*domain.Order) *fakeOrderRepo {
	r := &fakeOrderRepo{orders: make(map[string]domain.Order)}
	for _, o := range orders {
		r.orders[o.ID] = *o
	}
	return r
}

func (r *fakeOrderRepo) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, domain.OrderNotFound(id)
	}
	return &o, nil
}

func (r *fakeOrderRepo) List(_ context.Context, f domain.OrderFilter) ([]domain.Order, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Order
	for _, o := range r.orders {
		if o.Deleted && !f.IncludeDeleted {
			continue
		}
		if f.Status != nil && o.Status != *f.Status {
			continue
		}
		out = append(out, o)
	}
	return out, len(out), nil
}

func (r *fakeOrderRepo) UpdateStatus(_ context.Context, id string, from, to domain.OrderStatus, at time.Time) error {
	if hook := r.onUpdate; hook != nil {
		r.onUpdate = nil
		hook()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Status != from || o.Deleted {
		return repository.ErrStatusConflict
	}
	o.Status = to
	o.UpdatedAt = at
	r.orders[id] = o
	return nil
}

func (r *fakeOrderRepo) MarkPaid(_ context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.IsPaid || o.Deleted {
		return false, nil
	}
	o.IsPaid = true
	o.PaidAt = &at
	r.orders[id] = o
	return true, nil
}

func (r *fakeOrderRepo) SetDeleted(_ context.Context, id string, deleted bool, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Deleted == deleted {
		return false, nil
	}
	o.Deleted = deleted
	o.DeletedAt = nil
	if deleted {
		o.DeletedAt = &at
	}
	r.orders[id] = o
	return true, nil
}

func (r *fakeOrderRepo) HardDelete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[id]; !ok {
		return domain.OrderNotFound(id)
	}
	delete(r.orders, id)
	return nil
}

// --- events ---

type recordedEvent struct {
	kind    string
	orderID string
}

type recordingEvents struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (e *recordingEvents) record(kind, id string) {
	e.mu.Lock()
	e.events = append(e.events, recordedEvent{kind, id})
	e.mu.Unlock()
}

func (e *recordingEvents) OrderCreated(_ context.Context, o *domain.Order) { e.record("created", o.ID) }
func (e *recordingEvents) OrderStatusChanged(_ context.Context, o *domain.Order, _ domain.OrderStatus) {
	e.record("status_changed", o.ID)
}
func (e *recordingEvents) OrderPaid(_ context.Context, o *domain.Order) { e.record("paid", o.ID) }
func (e *recordingEvents) OrderDeleted(_ context.Context, o *domain.Order, hard bool) {
	if hard {
		e.record("purged", o.ID)
		return
	}
	e.record("deleted", o.ID)
}

func (e *recordingEvents) kinds() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.events))
	for i, ev := range e.events {
		out[i] = ev.kind
	}
	return out
}

var errBoom = errors.New("boom")
