package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/domain"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/repository"
)

// ProductView is a product as a buyer sees it, priced by the same rules as
// carts and orders.
type ProductView struct {
	*domain.Product
	DiscountedPrice decimal.Decimal
	Purchasable     bool
}

// CatalogService exposes read-only product lookups.
type CatalogService struct {
	catalog repository.CatalogGateway
}

func NewCatalogService(catalog repository.CatalogGateway) *CatalogService {
	return &CatalogService{catalog: catalog}
}

// GetProduct returns a listed product. Deleted products are reported as
// not found.
func (s *CatalogService) GetProduct(ctx context.Context, id string) (*ProductView, error) {
	p, err := s.catalog.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	if p.Deleted {
		return nil, domain.ProductNotFound(id)
	}

	price, err := p.DiscountedPrice()
	if err != nil {
		return nil, fmt.Errorf("price product %s: %w", id, err)
	}
	return &ProductView{Product: p, DiscountedPrice: price, Purchasable: p.Purchasable()}, nil
}
