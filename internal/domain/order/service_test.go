package order

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopkart/storefront/internal/domain/auth"
	"github.com/shopkart/storefront/internal/domain/product"
)

// --- Mock implementations ---

type mockProductRepo struct {
	byID   map[string]*product.Product
	getErr error
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	return nil, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	p, ok := m.byID[id]
	if !ok {
		return nil, &product.NotFoundError{ProductID: id}
	}
	return p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

type mockOrderRepo struct {
	byID      map[string]*Order
	lastOrder *Order
	createErr error

	lastStatus      Status
	lastIsDelivered bool
	lastDeliveredAt *time.Time
	lastPaidAt      time.Time
	lastResult      json.RawMessage
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.lastOrder = o
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) ListByUser(_ context.Context, userID string, offset, limit int) ([]Order, error) {
	var out []Order
	for _, o := range m.byID {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) CountByUser(_ context.Context, userID string) (int, error) {
	n := 0
	for _, o := range m.byID {
		if o.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *mockOrderRepo) List(_ context.Context, offset, limit int) ([]Order, error) {
	var out []Order
	for _, o := range m.byID {
		out = append(out, *o)
	}
	return out, nil
}

func (m *mockOrderRepo) Count(_ context.Context) (int, error) {
	return len(m.byID), nil
}

func (m *mockOrderRepo) SetPaid(_ context.Context, id string, paidAt time.Time, result json.RawMessage) error {
	m.lastPaidAt = paidAt
	m.lastResult = result
	if o, ok := m.byID[id]; ok {
		o.IsPaid = true
		o.PaidAt = &paidAt
		o.PaymentResult = result
	}
	return nil
}

func (m *mockOrderRepo) SetStatus(_ context.Context, id string, status Status, isDelivered bool, deliveredAt *time.Time) error {
	m.lastStatus = status
	m.lastIsDelivered = isDelivered
	m.lastDeliveredAt = deliveredAt
	if o, ok := m.byID[id]; ok {
		o.Status = status
		o.IsDelivered = isDelivered
		o.DeliveredAt = deliveredAt
	}
	return nil
}

// --- Helpers ---

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestProduct(id, name string, price string, stock int) product.Product {
	return product.Product{
		ID:    id,
		Name:  name,
		Price: decimal.RequireFromString(price),
		Stock: stock,
		Image: "/images/" + id + ".jpg",
	}
}

func newProductRepo(products ...product.Product) *mockProductRepo {
	byID := make(map[string]*product.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	return &mockProductRepo{byID: byID}
}

func newService(products *mockProductRepo, orders *mockOrderRepo) *Service {
	svc := NewService(products, orders)
	svc.now = func() time.Time { return testNow }
	return svc
}

func validAddress() Address {
	return Address{
		Name:    "Ada Lovelace",
		Street:  "12 Analytical Way",
		City:    "London",
		State:   "LDN",
		ZipCode: "E1 6AN",
		Country: "UK",
		Phone:   "+44 20 0000 0000",
	}
}

func validRequest(items ...ItemRequest) CreateRequest {
	return CreateRequest{
		Items:           items,
		ShippingAddress: validAddress(),
		PaymentMethod:   PaymentCreditCard,
	}
}

// --- Create ---

func TestCreate_EmptyItems(t *testing.T) {
	svc := newService(newProductRepo(), &mockOrderRepo{})

	_, err := svc.Create(context.Background(), "u1", validRequest())
	require.ErrorIs(t, err, ErrEmptyOrder)
}

func TestCreate_InvalidAddress(t *testing.T) {
	svc := newService(newProductRepo(), &mockOrderRepo{})

	req := validRequest(ItemRequest{ProductID: "p1", Quantity: 1})
	req.ShippingAddress.ZipCode = "ab"

	_, err := svc.Create(context.Background(), "u1", req)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "shippingAddress.zipCode", vErr.Field)
}

func TestCreate_InvalidPaymentMethod(t *testing.T) {
	svc := newService(newProductRepo(), &mockOrderRepo{})

	req := validRequest(ItemRequest{ProductID: "p1", Quantity: 1})
	req.PaymentMethod = "barter"

	_, err := svc.Create(context.Background(), "u1", req)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "paymentMethod", vErr.Field)
}

func TestCreate_ProductNotFound(t *testing.T) {
	orders := &mockOrderRepo{}
	svc := newService(newProductRepo(), orders)

	_, err := svc.Create(context.Background(), "u1", validRequest(
		ItemRequest{ProductID: "missing", Quantity: 1},
	))

	var nfErr *product.NotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Equal(t, "missing", nfErr.ProductID)
	assert.Nil(t, orders.lastOrder)
}

func TestCreate_InsufficientStock(t *testing.T) {
	p1 := newTestProduct("p1", "Widget", "10.00", 5)
	orders := &mockOrderRepo{}
	svc := newService(newProductRepo(p1), orders)

	_, err := svc.Create(context.Background(), "u1", validRequest(
		ItemRequest{ProductID: "p1", Quantity: 6},
	))

	var isErr *product.InsufficientStockError
	require.ErrorAs(t, err, &isErr)
	assert.Equal(t, 6, isErr.Requested)
	assert.Equal(t, 5, isErr.Available)
	assert.Nil(t, orders.lastOrder)
}

func TestCreate_OneShortLineFailsAll(t *testing.T) {
	p1 := newTestProduct("p1", "Widget", "10.00", 5)
	p2 := newTestProduct("p2", "Gadget", "20.00", 1)
	orders := &mockOrderRepo{}
	svc := newService(newProductRepo(p1, p2), orders)

	_, err := svc.Create(context.Background(), "u1", validRequest(
		ItemRequest{ProductID: "p1", Quantity: 2},
		ItemRequest{ProductID: "p2", Quantity: 3},
	))

	var isErr *product.InsufficientStockError
	require.ErrorAs(t, err, &isErr)
	assert.Equal(t, "p2", isErr.ProductID)
	assert.Nil(t, orders.lastOrder)
}

func TestCreate_SnapshotsAndAmounts(t *testing.T) {
	p1 := newTestProduct("p1", "Widget", "30.00", 10)
	p2 := newTestProduct("p2", "Gadget", "20.00", 10)
	orders := &mockOrderRepo{}
	svc := newService(newProductRepo(p1, p2), orders)

	o, err := svc.Create(context.Background(), "u1", validRequest(
		ItemRequest{ProductID: "p1", Quantity: 2},
		ItemRequest{ProductID: "p2", Quantity: 1},
	))
	require.NoError(t, err)

	assert.Equal(t, "u1", o.UserID)
	assert.Equal(t, StatusPending, o.Status)
	assert.False(t, o.IsPaid)
	assert.False(t, o.IsDelivered)
	require.Len(t, o.Lines, 2)
	assert.Equal(t, "Widget", o.Lines[0].Name)
	assert.Equal(t, "/images/p1.jpg", o.Lines[0].Image)

	// 80 items, 8 tax, 10 shipping (boundary is exclusive at 100).
	assert.True(t, decimal.RequireFromString("80.00").Equal(o.ItemsPrice))
	assert.True(t, decimal.RequireFromString("8.00").Equal(o.TaxPrice))
	assert.True(t, decimal.RequireFromString("10").Equal(o.ShippingPrice))
	assert.True(t, o.TotalPrice.Equal(o.ItemsPrice.Add(o.TaxPrice).Add(o.ShippingPrice)))
	assert.Same(t, o, orders.lastOrder)
}

func TestCreate_TotalSurvivesCatalogPriceChange(t *testing.T) {
	p1 := newTestProduct("p1", "Widget", "50.00", 10)
	repo := newProductRepo(p1)
	orders := &mockOrderRepo{}
	svc := newService(repo, orders)

	o, err := svc.Create(context.Background(), "u1", validRequest(
		ItemRequest{ProductID: "p1", Quantity: 3},
	))
	require.NoError(t, err)

	// Catalog price changes after the fact; the snapshot still reprices
	// to the stored amounts.
	repo.byID["p1"].Price = decimal.RequireFromString("99.99")

	q := Price(o.Lines)
	assert.True(t, o.ItemsPrice.Equal(q.ItemsPrice))
	assert.True(t, o.TotalPrice.Equal(q.TotalPrice))
}

func TestCreate_RepositoryError(t *testing.T) {
	p1 := newTestProduct("p1", "Widget", "10.00", 5)
	svc := newService(newProductRepo(p1), &mockOrderRepo{createErr: errors.New("db write failed")})

	_, err := svc.Create(context.Background(), "u1", validRequest(
		ItemRequest{ProductID: "p1", Quantity: 1},
	))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "create order")
}

// --- Lifecycle ---

func seededOrder(id, userID string, status Status) *Order {
	return &Order{
		ID:            id,
		UserID:        userID,
		Status:        status,
		ItemsPrice:    decimal.RequireFromString("80.00"),
		TaxPrice:      decimal.RequireFromString("8.00"),
		ShippingPrice: decimal.RequireFromString("10"),
		TotalPrice:    decimal.RequireFromString("98.00"),
		CreatedAt:     testNow,
	}
}

func ordersWith(os ...*Order) *mockOrderRepo {
	byID := make(map[string]*Order, len(os))
	for _, o := range os {
		byID[o.ID] = o
	}
	return &mockOrderRepo{byID: byID}
}

func TestGet_OwnerAndAdmin(t *testing.T) {
	repo := ordersWith(seededOrder("o1", "u1", StatusPending))
	svc := newService(newProductRepo(), repo)

	_, err := svc.Get(context.Background(), auth.Identity{UserID: "u1"}, "o1")
	assert.NoError(t, err)

	_, err = svc.Get(context.Background(), auth.Identity{UserID: "u2", IsAdmin: true}, "o1")
	assert.NoError(t, err)

	_, err = svc.Get(context.Background(), auth.Identity{UserID: "u2"}, "o1")
	assert.ErrorIs(t, err, ErrAccessDenied)

	_, err = svc.Get(context.Background(), auth.Identity{UserID: "u1"}, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPay_OwnerOnly(t *testing.T) {
	repo := ordersWith(seededOrder("o1", "u1", StatusPending))
	svc := newService(newProductRepo(), repo)
	result := json.RawMessage(`{"id":"PAY-123","status":"COMPLETED"}`)

	_, err := svc.Pay(context.Background(), auth.Identity{UserID: "u2"}, "o1", result)
	require.ErrorIs(t, err, ErrAccessDenied)
	assert.False(t, repo.byID["o1"].IsPaid)

	// Even admins cannot confirm payment on someone else's order.
	_, err = svc.Pay(context.Background(), auth.Identity{UserID: "u2", IsAdmin: true}, "o1", result)
	require.ErrorIs(t, err, ErrAccessDenied)

	o, err := svc.Pay(context.Background(), auth.Identity{UserID: "u1"}, "o1", result)
	require.NoError(t, err)
	assert.True(t, o.IsPaid)
	require.NotNil(t, o.PaidAt)
	assert.Equal(t, testNow, *o.PaidAt)
	assert.Equal(t, result, o.PaymentResult)
	// Paying never moves the fulfillment status.
	assert.Equal(t, StatusPending, o.Status)
}

func TestSetStatus_AdminOnly(t *testing.T) {
	repo := ordersWith(seededOrder("o1", "u1", StatusPending))
	svc := newService(newProductRepo(), repo)

	_, err := svc.SetStatus(context.Background(), auth.Identity{UserID: "u1"}, "o1", StatusShipped)
	assert.ErrorIs(t, err, ErrAccessDenied)

	o, err := svc.SetStatus(context.Background(), auth.Identity{UserID: "root", IsAdmin: true}, "o1", StatusShipped)
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, o.Status)
	assert.False(t, o.IsDelivered)
}

func TestSetStatus_DeliveredSideEffects(t *testing.T) {
	repo := ordersWith(seededOrder("o1", "u1", StatusPending))
	svc := newService(newProductRepo(), repo)
	admin := auth.Identity{UserID: "root", IsAdmin: true}

	o, err := svc.SetStatus(context.Background(), admin, "o1", StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, o.Status)
	assert.True(t, o.IsDelivered)
	require.NotNil(t, o.DeliveredAt)
	assert.Equal(t, testNow, *o.DeliveredAt)
}

func TestSetStatus_DeliveredAtNotOverwritten(t *testing.T) {
	earlier := testNow.Add(-48 * time.Hour)
	o1 := seededOrder("o1", "u1", StatusShipped)
	o1.IsDelivered = true
	o1.DeliveredAt = &earlier
	repo := ordersWith(o1)
	svc := newService(newProductRepo(), repo)

	o, err := svc.SetStatus(context.Background(), auth.Identity{UserID: "root", IsAdmin: true}, "o1", StatusDelivered)
	require.NoError(t, err)
	require.NotNil(t, o.DeliveredAt)
	assert.Equal(t, earlier, *o.DeliveredAt)
}

func TestSetStatus_CancelledIsTerminal(t *testing.T) {
	repo := ordersWith(seededOrder("o1", "u1", StatusCancelled))
	svc := newService(newProductRepo(), repo)
	admin := auth.Identity{UserID: "root", IsAdmin: true}

	_, err := svc.SetStatus(context.Background(), admin, "o1", StatusProcessing)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)

	// Re-setting cancelled on a cancelled order stays permitted.
	_, err = svc.SetStatus(context.Background(), admin, "o1", StatusCancelled)
	assert.NoError(t, err)
}

func TestSetStatus_InvalidValue(t *testing.T) {
	repo := ordersWith(seededOrder("o1", "u1", StatusPending))
	svc := newService(newProductRepo(), repo)

	_, err := svc.SetStatus(context.Background(), auth.Identity{UserID: "root", IsAdmin: true}, "o1", "misplaced")

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestMarkDelivered(t *testing.T) {
	repo := ordersWith(seededOrder("o1", "u1", StatusProcessing))
	svc := newService(newProductRepo(), repo)

	o, err := svc.MarkDelivered(context.Background(), auth.Identity{UserID: "root", IsAdmin: true}, "o1")
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, o.Status)
	assert.True(t, o.IsDelivered)
	assert.NotNil(t, o.DeliveredAt)
}

// --- Listing ---

func TestListAll_AdminOnly(t *testing.T) {
	repo := ordersWith(seededOrder("o1", "u1", StatusPending))
	svc := newService(newProductRepo(), repo)

	_, err := svc.ListAll(context.Background(), auth.Identity{UserID: "u1"}, 1, 10)
	assert.ErrorIs(t, err, ErrAccessDenied)

	page, err := svc.ListAll(context.Background(), auth.Identity{UserID: "root", IsAdmin: true}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalCount)
}

func TestListMine_Pagination(t *testing.T) {
	repo := ordersWith(
		seededOrder("o1", "u1", StatusPending),
		seededOrder("o2", "u1", StatusShipped),
		seededOrder("o3", "u2", StatusPending),
	)
	svc := newService(newProductRepo(), repo)

	page, err := svc.ListMine(context.Background(), auth.Identity{UserID: "u1"}, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, page.CurrentPage) // page < 1 normalized
	assert.Equal(t, 2, page.TotalCount)
	assert.Equal(t, 2, page.TotalPages) // ceil(2/1)
}
