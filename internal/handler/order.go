package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shopkart/storefront/internal/domain/order"
	"github.com/shopkart/storefront/internal/domain/product"
)

type createOrderRequest struct {
	Items           []orderItemRequest `json:"items"`
	ShippingAddress order.Address      `json:"shippingAddress"`
	PaymentMethod   string             `json:"paymentMethod"`
}

type orderItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// CreateOrder runs the checkout transaction and clears the caller's cart on
// success. A missing product on an already-assembled order is a client error,
// not a 404: the resource being acted on is the order, not the product.
func (h *Handler) CreateOrder(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "validation", "invalid request body")
		return
	}

	items := make([]order.ItemRequest, len(req.Items))
	for i, item := range req.Items {
		items[i] = order.ItemRequest{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	o, err := h.orders.Create(c.Request.Context(), id.UserID, order.CreateRequest{
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   order.PaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		h.writeCheckoutError(c, err)
		return
	}

	// The order exists either way; a stale cart is recoverable.
	if err := h.carts.Clear(c.Request.Context(), id.UserID); err != nil {
		h.lg.Warn("clear cart after checkout",
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}

	c.JSON(http.StatusCreated, o)
}

// writeCheckoutError downgrades product-not-found to a 400: at checkout the
// missing product is part of the request payload.
func (h *Handler) writeCheckoutError(c *gin.Context, err error) {
	var notFound *product.NotFoundError
	if errors.As(err, &notFound) {
		writeError(c, http.StatusBadRequest, "validation", notFound.Error())
		return
	}
	h.writeDomainError(c, err)
}

// ListMyOrders returns one page of the caller's own orders.
func (h *Handler) ListMyOrders(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	page, err := h.orders.ListMine(c.Request.Context(), id, intQuery(c, "page", 1), intQuery(c, "limit", 0))
	if err != nil {
		h.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// ListAllOrders returns one page across all users. Admin only.
func (h *Handler) ListAllOrders(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	page, err := h.orders.ListAll(c.Request.Context(), id, intQuery(c, "page", 1), intQuery(c, "limit", 0))
	if err != nil {
		h.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetOrder returns one order to its owner or an admin.
func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	o, err := h.orders.Get(c.Request.Context(), id, c.Param("id"))
	if err != nil {
		h.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// PayOrder records the opaque payment result on the order. Owner only. The
// body is passed through untouched as long as it is valid JSON.
func (h *Handler) PayOrder(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<16))
	if err != nil || !json.Valid(body) {
		writeError(c, http.StatusBadRequest, "validation", "payment result must be valid JSON")
		return
	}

	o, err := h.orders.Pay(c.Request.Context(), id, c.Param("id"), json.RawMessage(body))
	if err != nil {
		h.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// DeliverOrder marks the order delivered. Admin only.
func (h *Handler) DeliverOrder(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	o, err := h.orders.MarkDelivered(c.Request.Context(), id, c.Param("id"))
	if err != nil {
		h.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// UpdateOrderStatus moves the order to the requested status. Admin only.
func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "validation", "invalid request body")
		return
	}

	o, err := h.orders.SetStatus(c.Request.Context(), id, c.Param("id"), order.Status(req.Status))
	if err != nil {
		h.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
