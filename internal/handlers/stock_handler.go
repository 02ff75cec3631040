package handlers

import (
	"net/http"
	"strconv"
	"time"

	"dokon-pos/internal/service"

	"github.com/gin-gonic/gin"
)

// StockHistory serves the ledger audit view: reverse-chronological, optional
// date range, paginated.
func (h *Handler) StockHistory(c *gin.Context) {
	var q service.StockHistoryQuery
	q.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	q.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))

	if v := c.Query("start_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid start_date"})
			return
		}
		q.From = &t
	}
	if v := c.Query("end_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid end_date"})
			return
		}
		q.To = &t
	}

	page, err := h.Stock.History(c.Request.Context(), q)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}
