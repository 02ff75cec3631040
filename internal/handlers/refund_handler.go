package handlers

import (
	"net/http"

	"dokon-pos/internal/middleware"
	"dokon-pos/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListRefunds(c *gin.Context) {
	refunds, err := h.Refunds.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, refunds)
}

func (h *Handler) ProcessRefund(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var input service.RefundInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	refund, order, err := h.Refunds.Process(c.Request.Context(), middleware.Actor(c), id, input)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "refund": refund, "order": order})
}
