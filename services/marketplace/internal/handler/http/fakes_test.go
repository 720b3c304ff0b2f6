package http

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/domain"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/repository"
)

// memStore is an in-memory catalog, checkout store and order ledger sharing
// one lock, so a placed order is immediately visible to the order routes.
type memStore struct {
	mu       sync.Mutex
	products map[string]domain.Product
	orders   map[string]domain.Order
}

func newMemStore(products ...*domain.Product) *memStore {
	s := &memStore{products: make(map[string]domain.Product), orders: make(map[string]domain.Order)}
	for _, p := range products {
		s.products[p.ID] = *p
	}
	return s
}

func (s *memStore) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, domain.ProductNotFound(id)
	}
	return &p, nil
}

func (s *memStore) DecrementStock(_ context.Context, id string, amount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return domain.ProductNotFound(id)
	}
	if p.Stock < amount {
		return domain.InsufficientStock(id, amount, p.Stock)
	}
	p.Stock -= amount
	p.Version++
	s.products[id] = p
	return nil
}

func (s *memStore) stock(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].Stock
}

func (s *memStore) PlaceOrder(_ context.Context, order *domain.Order, claims []repository.StockClaim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range claims {
		p := s.products[c.ProductID]
		if p.Version != c.Version || p.Stock < c.Quantity {
			return fmt.Errorf("claim stock for %s: %w", c.ProductID, repository.ErrStockConflict)
		}
	}
	for _, c := range claims {
		p := s.products[c.ProductID]
		p.Stock -= c.Quantity
		p.Version++
		s.products[c.ProductID] = p
	}
	s.orders[order.ID] = *order
	return nil
}

func (s *memStore) RevokeOrder(_ context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range order.Items {
		p := s.products[it.ProductID]
		p.Stock += it.Quantity
		s.products[it.ProductID] = p
	}
	delete(s.orders, order.ID)
	return nil
}

func (s *memStore) GetByID(_ context.Context, id string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, domain.OrderNotFound(id)
	}
	return &o, nil
}

func (s *memStore) List(_ context.Context, f domain.OrderFilter) ([]domain.Order, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Order
	for _, o := range s.orders {
		switch {
		case o.Deleted && !f.IncludeDeleted:
			continue
		case f.Status != nil && o.Status != *f.Status:
			continue
		case f.AccountID != nil && (o.AccountID == nil || *o.AccountID != *f.AccountID):
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, len(out), nil
}

func (s *memStore) UpdateStatus(_ context.Context, id string, from, to domain.OrderStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Status != from || o.Deleted {
		return repository.ErrStatusConflict
	}
	o.Status, o.UpdatedAt = to, at
	s.orders[id] = o
	return nil
}

func (s *memStore) MarkPaid(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.IsPaid || o.Deleted {
		return false, nil
	}
	o.IsPaid, o.PaidAt = true, &at
	s.orders[id] = o
	return true, nil
}

func (s *memStore) SetDeleted(_ context.Context, id string, deleted bool, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Deleted == deleted {
		return false, nil
	}
	o.Deleted = deleted
	o.DeletedAt = nil
	if deleted {
		o.DeletedAt = &at
	}
	s.orders[id] = o
	return true, nil
}

func (s *memStore) HardDelete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[id]; !ok {
		return domain.OrderNotFound(id)
	}
	delete(s.orders, id)
	return nil
}
