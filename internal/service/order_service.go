package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"dokon-pos/internal/apperr"
	"dokon-pos/internal/models"
	"dokon-pos/internal/pricing"
	"dokon-pos/internal/realtime"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Staff roles as supplied by the auth layer.
const (
	RoleOwner   = "owner"
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
	RoleSeller  = "seller"
)

// Actor is the authenticated user an operation runs as.
type Actor struct {
	ID   uint
	Role string
}

// OrderLineInput is one requested line of an order. Price, when present,
// overrides the catalog price (native currency, like the catalog price).
type OrderLineInput struct {
	ProductID           uint             `json:"product_id" binding:"required"`
	Quantity            decimal.Decimal  `json:"quantity" binding:"required"`
	Price               *decimal.Decimal `json:"price"`
	ManualDiscountValue decimal.Decimal  `json:"manual_discount_value"`
	ManualDiscountType  string           `json:"manual_discount_type"`
}

type CreateOrderInput struct {
	PartnerID     *uint             `json:"partner_id"`
	CustomerName  string            `json:"customer_name"`
	Currency      string            `json:"currency"`
	ExchangeRate  decimal.Decimal   `json:"exchange_rate"`
	Items         []OrderLineInput  `json:"items" binding:"required"`
	DiscountValue decimal.Decimal   `json:"discount_value"`
	DiscountType  string            `json:"discount_type"`
	PaymentMethod string            `json:"payment_method"`
	Type          string            `json:"type"`
}

type UpdateOrderInput struct {
	CustomerName  *string          `json:"customer_name"`
	PaymentMethod *string          `json:"payment_method"`
	Type          *string          `json:"type"`
	ExchangeRate  *decimal.Decimal `json:"exchange_rate"`
	Items         []OrderLineInput `json:"items" binding:"required"`
	DiscountValue decimal.Decimal  `json:"discount_value"`
	DiscountType  string           `json:"discount_type"`
}

// OrderService owns every order mutation: each operation is one database
// transaction holding FOR UPDATE locks on the touched product rows, so two
// concurrent orders can never both pass a stock check against the same
// pre-decrement quantity.
type OrderService struct {
	db  *gorm.DB
	pub realtime.Publisher
	log *zap.Logger
}

func NewOrderService(db *gorm.DB, pub realtime.Publisher, log *zap.Logger) *OrderService {
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderService{db: db, pub: pub, log: log}
}

// lockProduct loads a product row under an exclusive lock.
func lockProduct(tx *gorm.DB, id uint) (*models.Product, error) {
	var p models.Product
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Invalid("unknown product (id %d)", id)
		}
		return nil, apperr.FromDB(err, "product")
	}
	return &p, nil
}

// Create decrements stock, writes one ledger entry per product and persists
// the order with its lines in draft status, all atomically. Any failure
// rolls the whole unit of work back.
func (s *OrderService) Create(ctx context.Context, actor Actor, in CreateOrderInput) (*models.Order, error) {
	if len(in.Items) == 0 {
		return nil, apperr.Invalid("order has no items")
	}

	currency := in.Currency
	if currency == "" {
		currency = "UZS"
	}
	rate := in.ExchangeRate
	if rate.IsZero() {
		rate = decimal.NewFromInt(1)
	}

	var order models.Order
	var changes []realtime.StockChange

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		catalog := make(map[uint]pricing.Catalog, len(in.Items))
		reqLines := make([]pricing.LineRequest, 0, len(in.Items))
		var entries []models.StockEntry

		for _, line := range in.Items {
			p, err := lockProduct(tx, line.ProductID)
			if err != nil {
				return err
			}
			if !p.IsActive || p.IsDeleted {
				return apperr.Invalid("product %q is not for sale", p.Name)
			}
			if p.Stock.LessThan(line.Quantity) {
				return apperr.Conflict("insufficient stock for %q", p.Name)
			}

			oldStock := p.Stock
			newStock := p.Stock.Sub(line.Quantity)
			if err := tx.Model(&models.Product{}).Where("id = ?", p.ID).
				Update("stock", newStock).Error; err != nil {
				return apperr.FromDB(err, "product")
			}

			entries = append(entries, models.StockEntry{
				ProductID: p.ID,
				Quantity:  line.Quantity,
				OldStock:  oldStock,
				NewStock:  newStock,
				AddedByID: actor.ID,
			})
			changes = append(changes, realtime.StockChange{ID: p.ID, Quantity: line.Quantity.String()})

			catalog[p.ID] = pricing.Catalog{
				Price:         p.Price,
				DiscountPrice: p.DiscountPrice,
				DiscountStart: p.DiscountStart,
				DiscountEnd:   p.DiscountEnd,
				Currency:      p.Currency,
			}
			reqLines = append(reqLines, pricing.LineRequest{
				ProductID:           line.ProductID,
				Quantity:            line.Quantity,
				Price:               line.Price,
				ManualDiscountValue: line.ManualDiscountValue,
				ManualDiscountType:  line.ManualDiscountType,
			})
		}

		quote, err := pricing.Compute(reqLines, catalog, currency, rate,
			pricing.Discount{Value: in.DiscountValue, Type: in.DiscountType}, time.Now())
		if err != nil {
			if errors.Is(err, pricing.ErrNegativeTotal) {
				return apperr.Invalid("discount exceeds order total")
			}
			return apperr.Internal("pricing failed", err)
		}

		discountType := in.DiscountType
		if discountType == "" {
			discountType = pricing.DiscountFixed
		}
		order = models.Order{
			SellerID:       actor.ID,
			PartnerID:      in.PartnerID,
			CustomerName:   in.CustomerName,
			Currency:       currency,
			ExchangeRate:   rate,
			TotalAmount:    quote.TotalAmount,
			DiscountValue:  in.DiscountValue,
			DiscountType:   discountType,
			DiscountAmount: quote.DiscountAmount,
			FinalAmount:    quote.FinalAmount,
			Status:         models.OrderStatusDraft,
			PaymentMethod:  defaultStr(in.PaymentMethod, "cash"),
			Type:           defaultStr(in.Type, "retail"),
			Items:          quoteToItems(quote),
		}
		if err := tx.Create(&order).Error; err != nil {
			return apperr.FromDB(err, "order")
		}

		for i := range entries {
			entries[i].Note = fmt.Sprintf("sale: order #%d", order.ID)
		}
		if err := tx.Create(&entries).Error; err != nil {
			return apperr.FromDB(err, "stock ledger")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.pub.Publish(realtime.RoomCashier, realtime.EventNewOrder, map[string]any{
		"id":            order.ID,
		"seller_id":     order.SellerID,
		"customer_name": order.CustomerName,
		"total_amount":  order.TotalAmount,
		"created_at":    order.CreatedAt,
	})
	s.pub.Publish(realtime.RoomAll, realtime.EventStockUpdate,
		realtime.StockUpdatePayload{Action: "subtract", Items: changes})

	return &order, nil
}

// Update replaces a draft order's line set. Stock moves by the per-product
// net difference between the old and new sets: the whole delta set is
// validated against locked product rows before any stock write, so the
// outcome does not depend on line order.
func (s *OrderService) Update(ctx context.Context, actor Actor, orderID uint, in UpdateOrderInput) (*models.Order, error) {
	if len(in.Items) == 0 {
		return nil, apperr.Invalid("order has no items")
	}

	var order models.Order

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Items").First(&order, orderID).Error; err != nil {
			return apperr.FromDB(err, "order")
		}
		if order.Status != models.OrderStatusDraft {
			return apperr.Conflict("only draft orders can be edited")
		}
		if actor.Role == RoleSeller && order.SellerID != actor.ID {
			return apperr.Forbidden("order belongs to another seller")
		}

		oldQty := make(map[uint]decimal.Decimal, len(order.Items))
		for _, item := range order.Items {
			oldQty[item.ProductID] = oldQty[item.ProductID].Add(item.Quantity)
		}
		newQty := make(map[uint]decimal.Decimal, len(in.Items))
		for _, line := range in.Items {
			newQty[line.ProductID] = newQty[line.ProductID].Add(line.Quantity)
		}

		ids := make([]uint, 0, len(oldQty)+len(newQty))
		seen := make(map[uint]bool)
		for id := range oldQty {
			seen[id] = true
			ids = append(ids, id)
		}
		for id := range newQty {
			if !seen[id] {
				ids = append(ids, id)
			}
		}
		// Deterministic lock order keeps concurrent edits from deadlocking.
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		// Pass one: lock every touched product and validate the full delta
		// set. Nothing is written until all deltas are known to fit.
		locked := make(map[uint]*models.Product, len(ids))
		for _, id := range ids {
			p, err := lockProduct(tx, id)
			if err != nil {
				return err
			}
			if _, wanted := newQty[id]; wanted && (!p.IsActive || p.IsDeleted) {
				return apperr.Invalid("product %q is not for sale", p.Name)
			}
			delta := newQty[id].Sub(oldQty[id])
			if delta.IsPositive() && p.Stock.LessThan(delta) {
				return apperr.Conflict("insufficient stock for %q", p.Name)
			}
			locked[id] = p
		}

		// Pass two: apply the net deltas, one ledger entry per product.
		for _, id := range ids {
			delta := newQty[id].Sub(oldQty[id])
			if delta.IsZero() {
				continue
			}
			p := locked[id]
			oldStock := p.Stock
			newStock := p.Stock.Sub(delta)
			if err := tx.Model(&models.Product{}).Where("id = ?", id).
				Update("stock", newStock).Error; err != nil {
				return apperr.FromDB(err, "product")
			}
			entry := models.StockEntry{
				ProductID: id,
				Quantity:  delta.Abs(),
				OldStock:  oldStock,
				NewStock:  newStock,
				AddedByID: actor.ID,
				Note:      fmt.Sprintf("edit: order #%d", orderID),
			}
			if err := tx.Create(&entry).Error; err != nil {
				return apperr.FromDB(err, "stock ledger")
			}
		}

		// Replace the line set wholesale with freshly priced lines.
		if err := tx.Where("order_id = ?", orderID).Delete(&models.OrderItem{}).Error; err != nil {
			return apperr.FromDB(err, "order items")
		}

		rate := order.ExchangeRate
		if in.ExchangeRate != nil && !in.ExchangeRate.IsZero() {
			rate = *in.ExchangeRate
		}

		catalog := make(map[uint]pricing.Catalog, len(newQty))
		for id := range newQty {
			p := locked[id]
			catalog[id] = pricing.Catalog{
				Price:         p.Price,
				DiscountPrice: p.DiscountPrice,
				DiscountStart: p.DiscountStart,
				DiscountEnd:   p.DiscountEnd,
				Currency:      p.Currency,
			}
		}
		reqLines := make([]pricing.LineRequest, 0, len(in.Items))
		for _, line := range in.Items {
			reqLines = append(reqLines, pricing.LineRequest{
				ProductID:           line.ProductID,
				Quantity:            line.Quantity,
				Price:               line.Price,
				ManualDiscountValue: line.ManualDiscountValue,
				ManualDiscountType:  line.ManualDiscountType,
			})
		}

		quote, err := pricing.Compute(reqLines, catalog, order.Currency, rate,
			pricing.Discount{Value: in.DiscountValue, Type: in.DiscountType}, time.Now())
		if err != nil {
			if errors.Is(err, pricing.ErrNegativeTotal) {
				return apperr.Invalid("discount exceeds order total")
			}
			return apperr.Internal("pricing failed", err)
		}

		items := quoteToItems(quote)
		for i := range items {
			items[i].OrderID = orderID
		}
		if err := tx.Create(&items).Error; err != nil {
			return apperr.FromDB(err, "order items")
		}

		discountType := in.DiscountType
		if discountType == "" {
			discountType = pricing.DiscountFixed
		}
		updates := map[string]any{
			"exchange_rate":   rate,
			"total_amount":    quote.TotalAmount,
			"discount_value":  in.DiscountValue,
			"discount_type":   discountType,
			"discount_amount": quote.DiscountAmount,
			"final_amount":    quote.FinalAmount,
			"updated_at":      time.Now(),
		}
		if in.CustomerName != nil {
			updates["customer_name"] = *in.CustomerName
		}
		if in.PaymentMethod != nil {
			updates["payment_method"] = *in.PaymentMethod
		}
		if in.Type != nil {
			updates["type"] = *in.Type
		}
		if err := tx.Model(&order).Updates(updates).Error; err != nil {
			return apperr.FromDB(err, "order")
		}
		order.Items = items
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.pub.Publish(realtime.RoomAll, realtime.EventOrderUpdated, map[string]any{
		"id":           order.ID,
		"seller_id":    order.SellerID,
		"updated_by":   actor.ID,
		"total_amount": order.FinalAmount,
	})

	return &order, nil
}

// UpdateStatus is the direct status-change operation. It accepts only the
// transitions the state machine allows from draft; the refunded statuses are
// outcomes of the refund flow and are rejected here.
func (s *OrderService) UpdateStatus(ctx context.Context, actor Actor, orderID uint, status string) (*models.Order, error) {
	if !CanSetDirectly(status) {
		return nil, apperr.Invalid("status %q cannot be set directly", status)
	}

	var order models.Order
	var restored []realtime.StockChange

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Items").First(&order, orderID).Error; err != nil {
			return apperr.FromDB(err, "order")
		}
		if !CanTransition(order.Status, status) {
			return apperr.Conflict("order is %s, cannot move to %s", order.Status, status)
		}

		if status == models.OrderStatusCancelled {
			for _, item := range order.Items {
				p, err := lockProduct(tx, item.ProductID)
				if err != nil {
					return err
				}
				oldStock := p.Stock
				newStock := p.Stock.Add(item.Quantity)
				if err := tx.Model(&models.Product{}).Where("id = ?", p.ID).
					Update("stock", newStock).Error; err != nil {
					return apperr.FromDB(err, "product")
				}
				entry := models.StockEntry{
					ProductID: p.ID,
					Quantity:  item.Quantity,
					OldStock:  oldStock,
					NewStock:  newStock,
					AddedByID: actor.ID,
					Note:      fmt.Sprintf("cancellation: order #%d", orderID),
				}
				if err := tx.Create(&entry).Error; err != nil {
					return apperr.FromDB(err, "stock ledger")
				}
				restored = append(restored, realtime.StockChange{ID: p.ID, Quantity: item.Quantity.String()})
			}
		}

		updates := map[string]any{
			"status":     status,
			"cashier_id": actor.ID,
			"updated_at": time.Now(),
		}
		if err := tx.Model(&order).Updates(updates).Error; err != nil {
			return apperr.FromDB(err, "order")
		}
		order.Status = status
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch status {
	case models.OrderStatusCancelled:
		s.pub.Publish(realtime.RoomAll, realtime.EventStockUpdate,
			realtime.StockUpdatePayload{Action: "add", Items: restored})
		s.pub.Publish(realtime.RoomAll, realtime.EventOrderStatusChange,
			map[string]any{"id": orderID, "status": status})
	case models.OrderStatusCompleted:
		s.pub.Publish(realtime.RoomCashier, realtime.EventOrderStatusChange,
			map[string]any{"id": orderID, "status": status})
	}

	return &order, nil
}

// MarkPrinted flags the order for the receipt printer and tells the cashier
// room about it.
func (s *OrderService) MarkPrinted(ctx context.Context, orderID uint) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, orderID).Error; err != nil {
		return nil, apperr.FromDB(err, "order")
	}
	if err := s.db.WithContext(ctx).Model(&order).Update("is_printed", true).Error; err != nil {
		return nil, apperr.FromDB(err, "order")
	}
	order.IsPrinted = true

	s.pub.Publish(realtime.RoomCashier, realtime.EventOrderPrinted, order)
	return &order, nil
}

// Get returns one order with its lines and references.
func (s *OrderService) Get(ctx context.Context, orderID uint) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).
		Preload("Items.Product").
		Preload("Seller").
		Preload("Partner").
		First(&order, orderID).Error
	if err != nil {
		return nil, apperr.FromDB(err, "order")
	}
	return &order, nil
}

// List returns all orders newest first, hiding fully refunded ones.
func (s *OrderService) List(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.WithContext(ctx).
		Where("status <> ?", models.OrderStatusFullyRefunded).
		Preload("Items.Product").
		Preload("Seller").
		Preload("Partner").
		Order("created_at desc").
		Find(&orders).Error
	if err != nil {
		return nil, apperr.FromDB(err, "orders")
	}
	return orders, nil
}

// ListBySeller returns one seller's orders, hiding fully refunded ones.
func (s *OrderService) ListBySeller(ctx context.Context, sellerID uint) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.WithContext(ctx).
		Where("seller_id = ? AND status <> ?", sellerID, models.OrderStatusFullyRefunded).
		Preload("Items.Product").
		Preload("Partner").
		Order("created_at desc").
		Find(&orders).Error
	if err != nil {
		return nil, apperr.FromDB(err, "orders")
	}
	return orders, nil
}

func quoteToItems(q pricing.Quote) []models.OrderItem {
	items := make([]models.OrderItem, 0, len(q.Lines))
	for _, l := range q.Lines {
		items = append(items, models.OrderItem{
			ProductID:           l.ProductID,
			Quantity:            l.Quantity,
			Price:               l.UnitPrice,
			OriginalPrice:       l.OriginalPrice,
			TotalPrice:          l.TotalPrice,
			ManualDiscountValue: l.ManualDiscountValue,
			ManualDiscountType:  l.ManualDiscountType,
		})
	}
	return items
}

func defaultStr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
