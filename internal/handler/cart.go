package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type cartItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// GetCart returns the caller's cart, empty when nothing is stored.
func (h *Handler) GetCart(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	crt, err := h.carts.Get(c.Request.Context(), id.UserID)
	if err != nil {
		h.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, crt)
}

// AddToCart merges the requested quantity into the caller's cart.
func (h *Handler) AddToCart(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "validation", "invalid request body")
		return
	}

	updated, err := h.carts.Add(c.Request.Context(), id.UserID, req.ProductID, req.Quantity)
	if err != nil {
		h.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// UpdateCartItem replaces a line's quantity; zero removes the line.
func (h *Handler) UpdateCartItem(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "validation", "invalid request body")
		return
	}

	updated, err := h.carts.SetQuantity(c.Request.Context(), id.UserID, req.ProductID, req.Quantity)
	if err != nil {
		h.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// RemoveFromCart drops a product from the cart; absent products are a no-op.
func (h *Handler) RemoveFromCart(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	updated, err := h.carts.Remove(c.Request.Context(), id.UserID, c.Param("productId"))
	if err != nil {
		h.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// ClearCart empties the caller's cart.
func (h *Handler) ClearCart(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	if err := h.carts.Clear(c.Request.Context(), id.UserID); err != nil {
		h.writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
