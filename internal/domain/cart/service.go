package cart

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/shopkart/storefront/internal/domain/product"
)

// ErrInvalidQuantity is returned when an add request carries a non-positive
// quantity.
var ErrInvalidQuantity = errors.New("quantity must be greater than 0")

// Service owns cart mutations for a user. Every mutation loads the current
// lines, applies the change, and persists the full result.
type Service struct {
	store    Store
	products product.Repository
}

// NewService creates a cart Service backed by the given store and catalog.
func NewService(store Store, products product.Repository) *Service {
	return &Service{store: store, products: products}
}

// Get restores the user's cart from storage. An absent or corrupt entry
// yields an empty cart; a transport fault is returned as-is so callers never
// mistake a failed read for an empty cart and overwrite the stored lines.
func (s *Service) Get(ctx context.Context, userID string) (*Cart, error) {
	lines, err := s.store.Load(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrCorruptStorage) {
			return New(), nil
		}
		return nil, errors.Wrap(err, "load cart")
	}
	return FromLines(lines), nil
}

// Add fetches the product, snapshots its display fields into a line, merges
// it into the cart, and persists the result.
func (s *Service) Add(ctx context.Context, userID, productID string, quantity int) (*Cart, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, errors.Wrap(err, "get product")
	}

	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.Add(Line{
		ProductID: p.ID,
		Name:      p.Name,
		Image:     p.Image,
		UnitPrice: p.Price,
		Quantity:  quantity,
	})

	if err := s.store.Save(ctx, userID, c.Lines); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// SetQuantity replaces a line's quantity; zero or negative removes the line.
func (s *Service) SetQuantity(ctx context.Context, userID, productID string, quantity int) (*Cart, error) {
	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.SetQuantity(productID, quantity)

	if err := s.store.Save(ctx, userID, c.Lines); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// Remove deletes a line from the cart. Absent products are ignored.
func (s *Service) Remove(ctx context.Context, userID, productID string) (*Cart, error) {
	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.Remove(productID)

	if err := s.store.Save(ctx, userID, c.Lines); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// Clear empties the cart and erases its storage entry.
func (s *Service) Clear(ctx context.Context, userID string) error {
	if err := s.store.Clear(ctx, userID); err != nil {
		return errors.Wrap(err, "clear cart")
	}
	return nil
}
