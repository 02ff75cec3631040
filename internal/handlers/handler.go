package handlers

import (
	"errors"

	"dokon-pos/internal/apperr"
	"dokon-pos/internal/auth"
	"dokon-pos/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Handler bundles the services behind the HTTP surface.
type Handler struct {
	DB         *gorm.DB
	Orders     *service.OrderService
	Refunds    *service.RefundService
	Products   *service.ProductService
	Categories *service.CategoryService
	Stock      *service.StockService
	Auth       *auth.Issuer
	Log        *zap.Logger
	BaseURL    string
}

func New(db *gorm.DB, orders *service.OrderService, refunds *service.RefundService,
	products *service.ProductService, categories *service.CategoryService,
	stock *service.StockService, issuer *auth.Issuer, log *zap.Logger, baseURL string) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		DB:         db,
		Orders:     orders,
		Refunds:    refunds,
		Products:   products,
		Categories: categories,
		Stock:      stock,
		Auth:       issuer,
		Log:        log,
		BaseURL:    baseURL,
	}
}

// fail translates a service error into one HTTP response. Internal errors
// keep their detail in the log, not the payload.
func (h *Handler) fail(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)

	var e *apperr.Error
	msg := "internal error"
	if errors.As(err, &e) && e.Kind != apperr.KindInternal {
		msg = e.Message
	} else {
		h.Log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}

	c.JSON(status, gin.H{"error": msg})
}
