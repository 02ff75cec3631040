package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dokon-pos/internal/apperr"
	"dokon-pos/internal/models"
	"dokon-pos/internal/realtime"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type RefundLineInput struct {
	ProductID uint            `json:"product_id" binding:"required"`
	Quantity  decimal.Decimal `json:"quantity" binding:"required"`
}

type RefundInput struct {
	Items  []RefundLineInput `json:"items" binding:"required"`
	Reason string            `json:"reason"`
}

// RefundService applies partial and full returns against an order: restores
// stock, shrinks or removes lines, records the refund, and re-derives the
// order's status and final amount from whatever lines remain.
type RefundService struct {
	db  *gorm.DB
	pub realtime.Publisher
	log *zap.Logger
}

func NewRefundService(db *gorm.DB, pub realtime.Publisher, log *zap.Logger) *RefundService {
	if log == nil {
		log = zap.NewNop()
	}
	return &RefundService{db: db, pub: pub, log: log}
}

// Process runs one refund as a single unit of work. Requested products that
// are not on the order are skipped on purpose (a cashier scanning the wrong
// receipt should not abort the rest of the return); duplicate lines for one
// product are summed, and a total above the line's current quantity is an
// error. The refund row is written only when
// something was actually refunded, but the status re-derivation always runs.
func (s *RefundService) Process(ctx context.Context, actor Actor, orderID uint, in RefundInput) (*models.Refund, *models.Order, error) {
	if len(in.Items) == 0 {
		return nil, nil, apperr.Invalid("nothing to refund")
	}
	reason := in.Reason
	if reason == "" {
		reason = "customer request"
	}

	var order models.Order
	var refund *models.Refund
	var changes []realtime.StockChange

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Items").First(&order, orderID).Error; err != nil {
			return apperr.FromDB(err, "order")
		}
		if order.Status == models.OrderStatusFullyRefunded || order.Status == models.OrderStatusCancelled {
			return apperr.Conflict("order is already closed")
		}

		// Collapse the request to one quantity per product so a duplicated
		// line cannot pass the bound check twice against the same order line.
		reqQty := make(map[uint]decimal.Decimal, len(in.Items))
		reqOrder := make([]uint, 0, len(in.Items))
		for _, req := range in.Items {
			if _, seen := reqQty[req.ProductID]; !seen {
				reqOrder = append(reqOrder, req.ProductID)
			}
			reqQty[req.ProductID] = reqQty[req.ProductID].Add(req.Quantity)
		}

		var totalRefund decimal.Decimal
		var refundItems []models.RefundItem

		for _, productID := range reqOrder {
			quantity := reqQty[productID]

			var line *models.OrderItem
			for i := range order.Items {
				if order.Items[i].ProductID == productID {
					line = &order.Items[i]
					break
				}
			}
			if line == nil {
				continue // not on this order, skip by design
			}

			if quantity.GreaterThan(line.Quantity) {
				return apperr.Invalid("cannot refund more than was sold (product %d)", productID)
			}

			refundAmount := line.Price.Mul(quantity)
			totalRefund = totalRefund.Add(refundAmount)

			p, err := lockProduct(tx, productID)
			if err != nil {
				return err
			}
			oldStock := p.Stock
			newStock := p.Stock.Add(quantity)
			if err := tx.Model(&models.Product{}).Where("id = ?", p.ID).
				Update("stock", newStock).Error; err != nil {
				return apperr.FromDB(err, "product")
			}

			entry := models.StockEntry{
				ProductID: p.ID,
				Quantity:  quantity,
				OldStock:  oldStock,
				NewStock:  newStock,
				AddedByID: actor.ID,
				Note:      fmt.Sprintf("return: order #%d", orderID),
			}
			if err := tx.Create(&entry).Error; err != nil {
				return apperr.FromDB(err, "stock ledger")
			}
			changes = append(changes, realtime.StockChange{ID: p.ID, Quantity: quantity.String()})

			remaining := line.Quantity.Sub(quantity)
			if remaining.IsPositive() {
				err = tx.Model(&models.OrderItem{}).Where("id = ?", line.ID).
					Updates(map[string]any{
						"quantity":    remaining,
						"total_price": line.Price.Mul(remaining),
					}).Error
			} else {
				err = tx.Delete(&models.OrderItem{}, line.ID).Error
			}
			if err != nil {
				return apperr.FromDB(err, "order item")
			}

			refundItems = append(refundItems, models.RefundItem{
				ProductID: productID,
				Quantity:  quantity,
				Price:     line.Price,
			})
		}

		if totalRefund.IsPositive() {
			refund = &models.Refund{
				OrderID:      orderID,
				TotalAmount:  totalRefund,
				Reason:       reason,
				RefundedByID: actor.ID,
				Items:        refundItems,
			}
			if err := tx.Create(refund).Error; err != nil {
				return apperr.FromDB(err, "refund")
			}
		}

		// Re-derive status and final amount from whatever lines remain.
		var remaining []models.OrderItem
		if err := tx.Where("order_id = ?", orderID).Find(&remaining).Error; err != nil {
			return apperr.FromDB(err, "order items")
		}

		var newStatus string
		var newFinal decimal.Decimal
		if len(remaining) == 0 {
			newStatus = models.OrderStatusFullyRefunded
		} else {
			newStatus = models.OrderStatusPartiallyRefunded
			for _, item := range remaining {
				newFinal = newFinal.Add(item.TotalPrice)
			}
			// A refund is never rejected for driving the theoretical total
			// negative; here the amount clamps at zero.
			newFinal = decimal.Max(decimal.Zero, newFinal.Sub(order.DiscountAmount))
		}

		err := tx.Model(&order).Updates(map[string]any{
			"status":       newStatus,
			"final_amount": newFinal,
			"updated_at":   time.Now(),
		}).Error
		if err != nil {
			return apperr.FromDB(err, "order")
		}
		order.Status = newStatus
		order.FinalAmount = newFinal
		order.Items = remaining
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.pub.Publish(realtime.RoomAll, realtime.EventOrderUpdated, map[string]any{"id": orderID})
	if len(changes) > 0 {
		s.pub.Publish(realtime.RoomAll, realtime.EventStockUpdate,
			realtime.StockUpdatePayload{Action: "add", Items: changes})
	}
	s.pub.Publish(realtime.RoomAll, realtime.EventOrderStatusChange,
		map[string]any{"id": orderID, "status": order.Status})

	return refund, &order, nil
}

// List returns every refund newest first with its lines and order header.
func (s *RefundService) List(ctx context.Context) ([]models.Refund, error) {
	var refunds []models.Refund
	err := s.db.WithContext(ctx).
		Preload("Items.Product").
		Preload("RefundedBy").
		Preload("Order.Partner").
		Order("created_at desc").
		Find(&refunds).Error
	if err != nil {
		return nil, apperr.FromDB(err, "refunds")
	}
	return refunds, nil
}

// Get returns one refund by id.
func (s *RefundService) Get(ctx context.Context, id uint) (*models.Refund, error) {
	var refund models.Refund
	err := s.db.WithContext(ctx).
		Preload("Items.Product").
		Preload("RefundedBy").
		First(&refund, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("refund not found")
		}
		return nil, apperr.FromDB(err, "refund")
	}
	return &refund, nil
}
