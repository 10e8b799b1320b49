// Package cart implements the per-user shopping cart aggregate. A cart is a
// set of lines keyed by product, persisted in full after every mutation;
// totals are always derived from the lines, never stored independently.
package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Line is one cart entry: a product snapshot plus the desired quantity.
// Name, Image and UnitPrice are captured at add time for display; the order
// transaction re-reads authoritative prices at checkout.
type Line struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Image     string          `json:"image"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
}

// Cart holds the lines and the totals derived from them.
type Cart struct {
	Lines      []Line          `json:"items"`
	TotalItems int             `json:"totalItems"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

// New returns an empty cart. Lines is non-nil so an empty cart encodes as an
// empty list.
func New() *Cart {
	return &Cart{Lines: []Line{}, TotalPrice: decimal.Zero}
}

// FromLines builds a cart from stored lines, recomputing totals.
func FromLines(lines []Line) *Cart {
	if lines == nil {
		return New()
	}
	c := &Cart{Lines: lines}
	c.recompute()
	return c
}

// Add merges the given line into the cart: an existing line for the same
// product has its quantity incremented, otherwise the line is appended.
func (c *Cart) Add(line Line) {
	if line.Quantity < 1 {
		line.Quantity = 1
	}
	for i := range c.Lines {
		if c.Lines[i].ProductID == line.ProductID {
			c.Lines[i].Quantity += line.Quantity
			c.recompute()
			return
		}
	}
	c.Lines = append(c.Lines, line)
	c.recompute()
}

// Remove deletes the line for the given product. Removing an absent product
// is a no-op, not an error.
func (c *Cart) Remove(productID string) {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			break
		}
	}
	c.recompute()
}

// SetQuantity replaces the quantity of the line for the given product.
// A quantity of zero or less removes the line; a zero-quantity line is never
// stored. Setting a quantity for an absent product is a no-op.
func (c *Cart) SetQuantity(productID string, quantity int) {
	if quantity <= 0 {
		c.Remove(productID)
		return
	}
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines[i].Quantity = quantity
			break
		}
	}
	c.recompute()
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.Lines = nil
	c.recompute()
}

// recompute derives TotalItems and TotalPrice from the lines.
func (c *Cart) recompute() {
	total := decimal.Zero
	items := 0
	for _, l := range c.Lines {
		items += l.Quantity
		total = total.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	c.TotalItems = items
	c.TotalPrice = total
}

// ErrCorruptStorage marks a stored cart payload that cannot be decoded.
// Implementations of Store wrap decode failures with it so the service can
// restore an empty cart instead of failing. Transport faults must NOT carry
// this sentinel: those are surfaced to the caller, never mistaken for an
// empty cart.
var ErrCorruptStorage = errors.New("corrupt cart storage")

// Store is the durable backing for carts, keyed by user. Writes are
// idempotent overwrites of the full line set.
type Store interface {
	Load(ctx context.Context, userID string) ([]Line, error)
	Save(ctx context.Context, userID string, lines []Line) error
	Clear(ctx context.Context, userID string) error
}
