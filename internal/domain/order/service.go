package order

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/shopkart/storefront/internal/domain/auth"
	"github.com/shopkart/storefront/internal/domain/product"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// ItemRequest is one requested line of a new order.
type ItemRequest struct {
	ProductID string
	Quantity  int
}

// CreateRequest holds the input for the checkout transaction.
type CreateRequest struct {
	Items           []ItemRequest
	ShippingAddress Address
	PaymentMethod   PaymentMethod
}

// Service orchestrates order creation and the fulfillment lifecycle.
type Service struct {
	products product.Repository
	orders   Repository
	now      func() time.Time
}

// NewService creates an order Service with the required dependencies.
func NewService(products product.Repository, orders Repository) *Service {
	return &Service{
		products: products,
		orders:   orders,
		now:      time.Now,
	}
}

// Create runs the checkout transaction: validate the request, batch-fetch the
// products, snapshot lines, price them, and persist the order. Stock is
// decremented atomically with the insert by the repository; any failure
// leaves stock and order storage untouched.
func (s *Service) Create(ctx context.Context, userID string, req CreateRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	if err := validateAddress(req.ShippingAddress); err != nil {
		return nil, err
	}
	if !req.PaymentMethod.Valid() {
		return nil, &ValidationError{Field: "paymentMethod", Message: "invalid payment method"}
	}

	ids := make([]string, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity < 1 {
			return nil, &ValidationError{Field: "items", Message: "quantity must be at least 1"}
		}
		ids[i] = item.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	// Snapshot lines from the catalog. The stock check here produces a
	// correctable error without opening a transaction; the conditional
	// decrement inside Create remains the authoritative guard.
	lines := make([]Line, len(req.Items))
	for i, item := range req.Items {
		p, ok := byID[item.ProductID]
		if !ok {
			return nil, &product.NotFoundError{ProductID: item.ProductID}
		}
		if item.Quantity > p.Stock {
			return nil, &product.InsufficientStockError{
				ProductID: p.ID,
				Name:      p.Name,
				Requested: item.Quantity,
				Available: p.Stock,
			}
		}
		lines[i] = Line{
			ProductID: p.ID,
			Name:      p.Name,
			Image:     p.Image,
			UnitPrice: p.Price,
			Quantity:  item.Quantity,
		}
	}

	quote := Price(lines)
	o := &Order{
		ID:              uuid.New().String(),
		UserID:          userID,
		Lines:           lines,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		ItemsPrice:      quote.ItemsPrice,
		TaxPrice:        quote.TaxPrice,
		ShippingPrice:   quote.ShippingPrice,
		TotalPrice:      quote.TotalPrice,
		Status:          StatusPending,
		CreatedAt:       s.now().UTC(),
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	return o, nil
}

// Get returns an order to its owner or an admin. Anyone else is denied
// without resource details.
func (s *Service) Get(ctx context.Context, who auth.Identity, id string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !who.IsAdmin && o.UserID != who.UserID {
		return nil, ErrAccessDenied
	}
	return o, nil
}

// ListMine returns one page of the caller's own orders, newest first.
func (s *Service) ListMine(ctx context.Context, who auth.Identity, page, limit int) (*Page, error) {
	page, limit = normalizePage(page, limit)

	total, err := s.orders.CountByUser(ctx, who.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "count orders")
	}
	list, err := s.orders.ListByUser(ctx, who.UserID, (page-1)*limit, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return newPage(list, page, limit, total), nil
}

// ListAll returns one page across all orders. Admin only.
func (s *Service) ListAll(ctx context.Context, who auth.Identity, page, limit int) (*Page, error) {
	if !who.IsAdmin {
		return nil, ErrAccessDenied
	}
	page, limit = normalizePage(page, limit)

	total, err := s.orders.Count(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "count orders")
	}
	list, err := s.orders.List(ctx, (page-1)*limit, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return newPage(list, page, limit, total), nil
}

// Pay records the opaque payment result on the order and flips the paid axis.
// Only the order's owner may confirm payment; the status is not changed.
func (s *Service) Pay(ctx context.Context, who auth.Identity, id string, result json.RawMessage) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != who.UserID {
		return nil, ErrAccessDenied
	}

	paidAt := s.now().UTC()
	if err := s.orders.SetPaid(ctx, id, paidAt, result); err != nil {
		return nil, errors.Wrap(err, "set paid")
	}
	o.IsPaid = true
	o.PaidAt = &paidAt
	o.PaymentResult = result
	return o, nil
}

// MarkDelivered sets status, isDelivered and deliveredAt together. Admin only.
func (s *Service) MarkDelivered(ctx context.Context, who auth.Identity, id string) (*Order, error) {
	return s.SetStatus(ctx, who, id, StatusDelivered)
}

// SetStatus moves the order to the given status. Admin only. Any status may
// be set directly from a non-terminal state; cancelled is terminal.
// Setting delivered also flips isDelivered and stamps deliveredAt when unset.
// Cancellation does not restore decremented stock.
func (s *Service) SetStatus(ctx context.Context, who auth.Identity, id string, status Status) (*Order, error) {
	if !who.IsAdmin {
		return nil, ErrAccessDenied
	}
	if !status.Valid() {
		return nil, &ValidationError{Field: "status", Message: "invalid status"}
	}

	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status.Terminal() && status != o.Status {
		return nil, &ValidationError{Field: "status", Message: "cancelled order cannot change status"}
	}

	o.Status = status
	if status == StatusDelivered {
		o.IsDelivered = true
		if o.DeliveredAt == nil {
			t := s.now().UTC()
			o.DeliveredAt = &t
		}
	}

	if err := s.orders.SetStatus(ctx, id, o.Status, o.IsDelivered, o.DeliveredAt); err != nil {
		return nil, errors.Wrap(err, "set status")
	}
	return o, nil
}

func validateAddress(a Address) error {
	checks := []struct {
		field string
		value string
		min   int
	}{
		{"shippingAddress.name", a.Name, 2},
		{"shippingAddress.street", a.Street, 5},
		{"shippingAddress.city", a.City, 2},
		{"shippingAddress.zipCode", a.ZipCode, 3},
	}
	for _, c := range checks {
		if len(strings.TrimSpace(c.value)) < c.min {
			return &ValidationError{Field: c.field, Message: "too short or missing"}
		}
	}
	return nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

func newPage(orders []Order, page, limit, total int) *Page {
	return &Page{
		Orders:      orders,
		CurrentPage: page,
		TotalPages:  (total + limit - 1) / limit,
		TotalCount:  total,
	}
}
