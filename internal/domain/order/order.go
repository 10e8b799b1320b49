// Package order implements the cart-to-order transaction and the fulfillment
// state machine: authoritative pricing, atomic stock reservation, and the
// status/payment/delivery lifecycle of a persisted order.
package order

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors surfaced by the order service.
var (
	ErrEmptyOrder   = errors.New("order must contain at least one item")
	ErrNotFound     = errors.New("order not found")
	ErrAccessDenied = errors.New("access denied")
)

// ValidationError indicates malformed input the caller can correct and retry.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Status is the fulfillment state of an order. Any non-terminal status may be
// set directly by an administrator; cancelled is terminal.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether s is one of the five known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed out of s.
func (s Status) Terminal() bool { return s == StatusCancelled }

// PaymentMethod is the fixed enumeration of accepted payment methods.
type PaymentMethod string

const (
	PaymentCreditCard     PaymentMethod = "credit_card"
	PaymentDebitCard      PaymentMethod = "debit_card"
	PaymentPaypal         PaymentMethod = "paypal"
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
)

// Valid reports whether m is one of the accepted payment methods.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCreditCard, PaymentDebitCard, PaymentPaypal, PaymentCashOnDelivery:
		return true
	}
	return false
}

// Address is the shipping destination captured on the order.
type Address struct {
	Name    string `json:"name"`
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`
	Phone   string `json:"phone"`
}

// Line is an immutable snapshot of a product at order-creation time. Later
// catalog changes never alter historical orders.
type Line struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Image     string          `json:"image"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
}

// Order is a persisted customer order. TotalPrice equals
// ItemsPrice + TaxPrice + ShippingPrice at creation and is never recomputed.
type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	Lines           []Line          `json:"items"`
	ShippingAddress Address         `json:"shippingAddress"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	ItemsPrice      decimal.Decimal `json:"itemsPrice"`
	TaxPrice        decimal.Decimal `json:"taxPrice"`
	ShippingPrice   decimal.Decimal `json:"shippingPrice"`
	TotalPrice      decimal.Decimal `json:"totalPrice"`
	Status          Status          `json:"status"`
	IsPaid          bool            `json:"isPaid"`
	PaidAt          *time.Time      `json:"paidAt,omitempty"`
	PaymentResult   json.RawMessage `json:"paymentResult,omitempty"`
	IsDelivered     bool            `json:"isDelivered"`
	DeliveredAt     *time.Time      `json:"deliveredAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// Page is one page of an order listing, newest first.
type Page struct {
	Orders      []Order `json:"orders"`
	CurrentPage int     `json:"currentPage"`
	TotalPages  int     `json:"totalPages"`
	TotalCount  int     `json:"totalOrders"`
}

// Repository defines persistence operations for orders.
//
// Create is the commit point of the checkout transaction: the implementation
// must atomically decrement stock for every line (failing the whole call if
// any product is missing or short) and insert the order, all-or-nothing.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]Order, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	List(ctx context.Context, offset, limit int) ([]Order, error)
	Count(ctx context.Context) (int, error)
	SetPaid(ctx context.Context, id string, paidAt time.Time, paymentResult json.RawMessage) error
	SetStatus(ctx context.Context, id string, status Status, isDelivered bool, deliveredAt *time.Time) error
}
