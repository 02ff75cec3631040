package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"dokon-pos/internal/middleware"
	"dokon-pos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID"})
		return 0, false
	}
	return uint(id), true
}

func (h *Handler) ListProducts(c *gin.Context) {
	q := service.ListProductsQuery{
		Search:     c.Query("search"),
		ShowHidden: c.Query("show_hidden") == "true",
	}
	if v := c.Query("category_id"); v != "" && v != "all" {
		if id, err := strconv.ParseUint(v, 10, 32); err == nil {
			cid := uint(id)
			q.CategoryID = &cid
		}
	}
	q.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	q.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))

	page, err := h.Products.List(c.Request.Context(), q)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) GetProduct(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	product, err := h.Products.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// ScanProduct resolves a barcode from the scanner gun to a sellable product.
func (h *Handler) ScanProduct(c *gin.Context) {
	product, err := h.Products.GetByBarcode(c.Request.Context(), c.Param("barcode"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) AddProduct(c *gin.Context) {
	var input service.CreateProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	product, err := h.Products.Create(c.Request.Context(), middleware.Actor(c), input)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (h *Handler) UpdateProduct(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var input service.UpdateProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	product, err := h.Products.Update(c.Request.Context(), middleware.Actor(c), id, input)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) SetProductDiscount(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var input service.SetDiscountInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	product, err := h.Products.SetDiscount(c.Request.Context(), id, input)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) RemoveProductDiscount(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	product, err := h.Products.RemoveDiscount(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) DeleteProduct(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.Products.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully"})
}

type AddStockRequest struct {
	Quantity decimal.Decimal  `json:"quantity" binding:"required"`
	NewPrice *decimal.Decimal `json:"new_price"`
}

func (h *Handler) AddStock(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var input AddStockRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	product, err := h.Products.AddStock(c.Request.Context(), middleware.Actor(c), id, input.Quantity, input.NewPrice)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// UploadImage stores a product image under ./uploads and returns its URL.
func (h *Handler) UploadImage(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}

	filename := fmt.Sprintf("%d_%s", time.Now().Unix(), file.Filename)
	filepath := "./uploads/" + filename

	if err := c.SaveUploadedFile(file, filepath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save file"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "File uploaded successfully",
		"url":     h.BaseURL + "/uploads/" + filename,
	})
}
