package domain

import (
	"strings"
	"time"
)

// CartRef identifies whose cart a request targets: an account, or an
// anonymous token the client minted. When both are set the account wins.
type CartRef struct {
	Token     string
	AccountID string
}

const maxIdentityLen = 128

// Validate rejects refs with neither identity or with oversized values.
func (r CartRef) Validate() error {
	if r.Token == "" && r.AccountID == "" {
		return InvalidCartRef("an X-User-ID or X-Cart-Token header is required")
	}
	if len(r.Token) > maxIdentityLen || len(r.AccountID) > maxIdentityLen {
		return InvalidCartRef("cart identity is too long")
	}
	if strings.ContainsAny(r.Token+r.AccountID, ": \t\n") {
		return InvalidCartRef("cart identity contains invalid characters")
	}
	return nil
}

// Anonymous reports whether the ref resolves to a token cart.
func (r CartRef) Anonymous() bool {
	return r.AccountID == ""
}

// ID is the cart identifier stored on carts and orders.
func (r CartRef) ID() string {
	if r.AccountID != "" {
		return "account:" + r.AccountID
	}
	return "token:" + r.Token
}

// MaxQuantityPerItem caps the quantity of a single cart line.
const MaxQuantityPerItem = 100

// CartItem is a product reference and a quantity. A cart never holds two
// items for the same product.
type CartItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Cart is the mutable pre-purchase basket. Version increases on every
// successful write and backs optimistic concurrency in the store.
type Cart struct {
	ID        string     `json:"id"`
	OwnerID   *string    `json:"owner_id,omitempty"`
	Items     []CartItem `json:"items"`
	Version   int64      `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NewCart creates an empty cart for ref.
func NewCart(ref CartRef, now time.Time) *Cart {
	c := &Cart{ID: ref.ID(), Items: []CartItem{}, CreatedAt: now, UpdatedAt: now}
	if ref.AccountID != "" {
		owner := ref.AccountID
		c.OwnerID = &owner
	}
	return c
}

func (c *Cart) indexOf(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Quantity of productID in the cart, 0 when absent.
func (c *Cart) Quantity(productID string) int {
	if i := c.indexOf(productID); i >= 0 {
		return c.Items[i].Quantity
	}
	return 0
}

// Add increments the quantity of productID, inserting it when absent.
func (c *Cart) Add(productID string, quantity int) error {
	if quantity < 1 {
		return InvalidQuantity(quantity)
	}
	if quantity > MaxQuantityPerItem-c.Quantity(productID) {
		return QuantityAboveLimit(productID, quantity)
	}
	if i := c.indexOf(productID); i >= 0 {
		c.Items[i].Quantity += quantity
		return nil
	}
	c.Items = append(c.Items, CartItem{ProductID: productID, Quantity: quantity})
	return nil
}

// SetQuantity replaces the quantity of an item already in the cart.
func (c *Cart) SetQuantity(productID string, quantity int) error {
	if quantity < 1 {
		return InvalidQuantity(quantity)
	}
	if quantity > MaxQuantityPerItem {
		return QuantityAboveLimit(productID, quantity)
	}
	i := c.indexOf(productID)
	if i < 0 {
		return ItemNotFound(productID)
	}
	c.Items[i].Quantity = quantity
	return nil
}

// Remove deletes the item for productID.
func (c *Cart) Remove(productID string) error {
	i := c.indexOf(productID)
	if i < 0 {
		return ItemNotFound(productID)
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	return nil
}

// Retain keeps only items for which keep returns true and reports how many
// were dropped.
func (c *Cart) Retain(keep func(CartItem) bool) int {
	kept := c.Items[:0]
	for _, it := range c.Items {
		if keep(it) {
			kept = append(kept, it)
		}
	}
	dropped := len(c.Items) - len(kept)
	c.Items = kept
	return dropped
}

// Clear removes every item.
func (c *Cart) Clear() {
	c.Items = []CartItem{}
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// ItemCount is the sum of quantities.
func (c *Cart) ItemCount() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// Reown moves an anonymous cart to accountID.
func (c *Cart) Reown(accountID string, now time.Time) {
	owner := accountID
	c.OwnerID = &owner
	c.ID = CartRef{AccountID: accountID}.ID()
	c.UpdatedAt = now
}
