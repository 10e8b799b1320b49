package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListProducts returns the full catalog.
func (h *Handler) ListProducts(c *gin.Context) {
	products, err := h.products.List(c.Request.Context())
	if err != nil {
		h.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

// GetProduct returns one product by id.
func (h *Handler) GetProduct(c *gin.Context) {
	p, err := h.products.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
