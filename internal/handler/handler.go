// Package handler exposes the storefront over HTTP using gin. Handlers stay
// thin: decode, call a domain service, map the error, encode.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shopkart/storefront/internal/domain/cart"
	"github.com/shopkart/storefront/internal/domain/order"
	"github.com/shopkart/storefront/internal/domain/product"
)

// Handler carries the domain services behind the HTTP surface.
type Handler struct {
	carts    *cart.Service
	orders   *order.Service
	products product.Repository
	lg       *zap.Logger
}

// New creates a Handler over the given services.
func New(carts *cart.Service, orders *order.Service, products product.Repository, lg *zap.Logger) *Handler {
	return &Handler{
		carts:    carts,
		orders:   orders,
		products: products,
		lg:       lg,
	}
}

// Register mounts all routes on the group. Catalog reads are public; cart and
// order routes require the authn middleware, admin routes additionally
// RequireAdmin.
func (h *Handler) Register(r *gin.RouterGroup, authn gin.HandlerFunc) {
	r.GET("/products", h.ListProducts)
	r.GET("/products/:id", h.GetProduct)

	c := r.Group("/cart", authn)
	c.GET("", h.GetCart)
	c.POST("/add", h.AddToCart)
	c.PUT("/update", h.UpdateCartItem)
	c.DELETE("/remove/:productId", h.RemoveFromCart)
	c.DELETE("/clear", h.ClearCart)

	o := r.Group("/orders", authn)
	o.POST("", h.CreateOrder)
	o.GET("", h.ListMyOrders)
	o.GET("/admin/all", RequireAdmin(), h.ListAllOrders)
	o.GET("/:id", h.GetOrder)
	o.PUT("/:id/pay", h.PayOrder)
	o.PUT("/:id/deliver", RequireAdmin(), h.DeliverOrder)
	o.PUT("/:id/status", RequireAdmin(), h.UpdateOrderStatus)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorResponse{Code: code, Message: message})
}

// writeDomainError maps domain errors onto HTTP statuses. Unknown errors
// become an opaque 500; the detail goes to the log, not the client.
func (h *Handler) writeDomainError(c *gin.Context, err error) {
	var (
		validationErr *order.ValidationError
		stockErr      *product.InsufficientStockError
	)
	switch {
	case errors.As(err, &validationErr):
		writeError(c, http.StatusBadRequest, "validation", validationErr.Error())
	case errors.As(err, &stockErr):
		writeError(c, http.StatusBadRequest, "insufficient_stock", stockErr.Error())
	case errors.Is(err, order.ErrEmptyOrder):
		writeError(c, http.StatusBadRequest, "validation", "order must contain at least one item")
	case errors.Is(err, cart.ErrInvalidQuantity):
		writeError(c, http.StatusBadRequest, "validation", "quantity must be greater than 0")
	case errors.Is(err, order.ErrAccessDenied):
		writeError(c, http.StatusForbidden, "access_denied", "access denied")
	case errors.Is(err, order.ErrNotFound):
		writeError(c, http.StatusNotFound, "not_found", "order not found")
	case errors.Is(err, product.ErrNotFound):
		writeError(c, http.StatusNotFound, "not_found", "product not found")
	default:
		h.lg.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		writeError(c, http.StatusInternalServerError, "internal", "internal server error")
	}
}
