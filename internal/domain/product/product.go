package product

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// NotFoundError indicates a specific product referenced by an order or cart
// does not exist. It matches ErrNotFound under errors.Is.
type NotFoundError struct {
	ProductID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// InsufficientStockError indicates a requested quantity exceeds the available
// stock. Requested and Available are included so callers can display a
// correctable message.
type InsufficientStockError struct {
	ProductID string
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d",
		e.Name, e.Requested, e.Available)
}

// Product represents a catalog item available for purchase. The checkout core
// treats the catalog as read-only except for the conditional stock decrement
// performed inside the order transaction.
type Product struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
	Image string          `json:"image"`
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
