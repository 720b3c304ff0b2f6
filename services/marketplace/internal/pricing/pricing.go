// Package pricing is the single place list prices become charged prices.
// The catalog view, cart summary and order ledger all call it, so a price
// shown to a buyer can never differ from the price charged.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places money is rounded to.
const Scale = 2

var (
	ErrNegativePrice   = errors.New("price must not be negative")
	ErrInvalidDiscount = errors.New("discount percentage must be between 0 and 100")
	ErrInvalidQuantity = errors.New("quantity must not be negative")
)

var hundred = decimal.NewFromInt(100)

// DiscountedUnitPrice returns price * (1 - pct/100) rounded half-up to
// cents. Out-of-range inputs are rejected rather than clamped.
func DiscountedUnitPrice(price, pct decimal.Decimal) (decimal.Decimal, error) {
	if price.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrNegativePrice, price)
	}
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrInvalidDiscount, pct)
	}
	// Multiply before dividing so 100 * 90 / 100 stays exact.
	return price.Mul(hundred.Sub(pct)).Div(hundred).Round(Scale), nil
}

// LineTotal returns unit * quantity rounded to cents.
func LineTotal(unit decimal.Decimal, quantity int) (decimal.Decimal, error) {
	if quantity < 0 {
		return decimal.Zero, fmt.Errorf("%w: %d", ErrInvalidQuantity, quantity)
	}
	return unit.Mul(decimal.NewFromInt(int64(quantity))).Round(Scale), nil
}

// Line is one priced position of a cart or order.
type Line struct {
	Price       decimal.Decimal
	DiscountPct decimal.Decimal
	Quantity    int
}

// PricedLine is a Line with its derived amounts.
type PricedLine struct {
	Line
	DiscountedUnit decimal.Decimal
	Total          decimal.Decimal
}

// Price derives the discounted unit price and line total of l.
func Price(l Line) (PricedLine, error) {
	unit, err := DiscountedUnitPrice(l.Price, l.DiscountPct)
	if err != nil {
		return PricedLine{}, err
	}
	total, err := LineTotal(unit, l.Quantity)
	if err != nil {
		return PricedLine{}, err
	}
	return PricedLine{Line: l, DiscountedUnit: unit, Total: total}, nil
}

// Totals summarizes a set of lines. Subtotal is at list price, Total at
// discounted price, and Discount is their difference.
type Totals struct {
	Items    int
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// Summarize prices every line and adds them up.
func Summarize(lines []Line) ([]PricedLine, Totals, error) {
	priced := make([]PricedLine, 0, len(lines))
	t := Totals{Subtotal: decimal.Zero, Total: decimal.Zero}

	for i, l := range lines {
		p, err := Price(l)
		if err != nil {
			return nil, Totals{}, fmt.Errorf("line %d: %w", i, err)
		}
		list, err := LineTotal(l.Price, l.Quantity)
		if err != nil {
			return nil, Totals{}, fmt.Errorf("line %d: %w", i, err)
		}
		priced = append(priced, p)
		t.Items += l.Quantity
		t.Subtotal = t.Subtotal.Add(list)
		t.Total = t.Total.Add(p.Total)
	}
	t.Discount = t.Subtotal.Sub(t.Total)
	return priced, t, nil
}

// Format renders an amount with exactly two decimals, e.g. "230.00".
func Format(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}
