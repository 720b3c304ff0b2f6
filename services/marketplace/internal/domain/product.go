package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/pricing"
)

// Product is the catalog's view of something for sale. The marketplace
// reads it and only ever changes its stock.
type Product struct {
	ID                 string          `json:"id"`
	Title              string          `json:"title"`
	Thumbnail          string          `json:"thumbnail"`
	Price              decimal.Decimal `json:"price"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	Stock              int             `json:"stock"`
	Active             bool            `json:"active"`
	Deleted            bool            `json:"deleted"`
	Version            int64           `json:"version"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// Listed reports whether the product is on sale at all, regardless of stock.
func (p *Product) Listed() bool {
	return p.Active && !p.Deleted
}

// Purchasable reports whether at least one unit can be bought now.
func (p *Product) Purchasable() bool {
	return p.Listed() && p.Stock > 0
}

// Line prices quantity units of the product.
func (p *Product) Line(quantity int) pricing.Line {
	return pricing.Line{Price: p.Price, DiscountPct: p.DiscountPercentage, Quantity: quantity}
}

// DiscountedPrice is the unit price a buyer pays.
func (p *Product) DiscountedPrice() (decimal.Decimal, error) {
	return pricing.DiscountedUnitPrice(p.Price, p.DiscountPercentage)
}
