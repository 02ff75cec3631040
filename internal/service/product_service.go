package service

import (
	"context"
	"errors"
	"time"

	"dokon-pos/internal/apperr"
	"dokon-pos/internal/models"
	"dokon-pos/internal/realtime"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CreateProductInput struct {
	Name          string          `json:"name" binding:"required"`
	Barcode       *string         `json:"barcode"`
	CategoryID    *uint           `json:"category_id"`
	Unit          string          `json:"unit"`
	Currency      string          `json:"currency"`
	Price         decimal.Decimal `json:"price" binding:"required"`
	OriginalPrice decimal.Decimal `json:"original_price"`
	DiscountPrice decimal.Decimal `json:"discount_price"`
	Stock         decimal.Decimal `json:"stock"`
	Image         string          `json:"image"`
}

type UpdateProductInput struct {
	Name          *string          `json:"name"`
	Barcode       *string          `json:"barcode"`
	CategoryID    *uint            `json:"category_id"`
	Unit          *string          `json:"unit"`
	Currency      *string          `json:"currency"`
	Price         *decimal.Decimal `json:"price"`
	OriginalPrice *decimal.Decimal `json:"original_price"`
	DiscountPrice *decimal.Decimal `json:"discount_price"`
	Image         *string          `json:"image"`
	IsActive      *bool            `json:"is_active"`
}

type SetDiscountInput struct {
	Percent    *decimal.Decimal `json:"percent"`
	FixedPrice *decimal.Decimal `json:"fixed_price"`
	StartDate  *time.Time       `json:"start_date"`
	EndDate    time.Time        `json:"end_date" binding:"required"`
}

type ListProductsQuery struct {
	Search     string
	CategoryID *uint
	ShowHidden bool
	Page       int
	Limit      int
}

type ProductPage struct {
	Products   []models.Product `json:"products"`
	Page       int              `json:"page"`
	Limit      int              `json:"limit"`
	Total      int64            `json:"total"`
	TotalPages int64            `json:"total_pages"`
}

// ProductService is the catalog: CRUD, discount windows, restock. Stock only
// ever moves together with a ledger entry.
type ProductService struct {
	db  *gorm.DB
	pub realtime.Publisher
	log *zap.Logger
}

func NewProductService(db *gorm.DB, pub realtime.Publisher, log *zap.Logger) *ProductService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProductService{db: db, pub: pub, log: log}
}

// List returns a catalog page. Hidden (inactive) products only show up when
// asked for; deleted products never do.
func (s *ProductService) List(ctx context.Context, q ListProductsQuery) (*ProductPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 20
	}

	base := s.db.WithContext(ctx).Model(&models.Product{}).Where("is_deleted = ?", false)
	if !q.ShowHidden {
		base = base.Where("is_active = ?", true)
	}
	if q.Search != "" {
		base = base.Where("name LIKE ? OR barcode LIKE ?", "%"+q.Search+"%", "%"+q.Search+"%")
	}
	if q.CategoryID != nil {
		base = base.Where("category_id = ?", *q.CategoryID)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, apperr.FromDB(err, "products")
	}

	var products []models.Product
	err := base.
		Preload("Category").
		Order("created_at desc").
		Limit(q.Limit).
		Offset((q.Page - 1) * q.Limit).
		Find(&products).Error
	if err != nil {
		return nil, apperr.FromDB(err, "products")
	}

	return &ProductPage{
		Products:   products,
		Page:       q.Page,
		Limit:      q.Limit,
		Total:      total,
		TotalPages: (total + int64(q.Limit) - 1) / int64(q.Limit),
	}, nil
}

// Create inserts a product; a positive starting stock gets an initial
// receipt row in the ledger so every unit on hand is explained.
func (s *ProductService) Create(ctx context.Context, actor Actor, in CreateProductInput) (*models.Product, error) {
	var product models.Product

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.Barcode != nil && *in.Barcode != "" {
			var existing models.Product
			err := tx.Where("barcode = ?", *in.Barcode).First(&existing).Error
			if err == nil {
				return apperr.Conflict("barcode %q already exists", *in.Barcode)
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.FromDB(err, "product")
			}
		}

		original := in.OriginalPrice
		if original.IsZero() {
			original = in.Price
		}
		product = models.Product{
			Name:          in.Name,
			Barcode:       in.Barcode,
			CategoryID:    in.CategoryID,
			Unit:          defaultStr(in.Unit, "pcs"),
			Currency:      defaultStr(in.Currency, "UZS"),
			Price:         in.Price,
			OriginalPrice: original,
			DiscountPrice: in.DiscountPrice,
			Stock:         in.Stock,
			Image:         in.Image,
			IsActive:      true,
		}
		if err := tx.Create(&product).Error; err != nil {
			return apperr.FromDB(err, "product")
		}

		if in.Stock.IsPositive() {
			entry := models.StockEntry{
				ProductID: product.ID,
				Quantity:  in.Stock,
				OldStock:  decimal.Zero,
				NewStock:  in.Stock,
				AddedByID: actor.ID,
				Note:      "initial receipt",
			}
			if err := tx.Create(&entry).Error; err != nil {
				return apperr.FromDB(err, "stock ledger")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.pub.Publish(realtime.RoomAll, realtime.EventProductCreated, product)
	return &product, nil
}

// Update patches catalog fields. A price change appends a price history row.
// Stock is not touched here; that is AddStock's job.
func (s *ProductService) Update(ctx context.Context, actor Actor, id uint, in UpdateProductInput) (*models.Product, error) {
	var product models.Product

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&product, id).Error; err != nil {
			return apperr.FromDB(err, "product")
		}

		if in.Price != nil && !in.Price.Equal(product.Price) {
			entry := models.PriceEntry{
				ProductID:   id,
				OldPrice:    product.Price,
				NewPrice:    *in.Price,
				Currency:    product.Currency,
				ChangedByID: actor.ID,
			}
			if err := tx.Create(&entry).Error; err != nil {
				return apperr.FromDB(err, "price history")
			}
		}

		updates := map[string]any{"updated_at": time.Now()}
		if in.Name != nil {
			updates["name"] = *in.Name
		}
		if in.Barcode != nil {
			updates["barcode"] = *in.Barcode
		}
		if in.CategoryID != nil {
			updates["category_id"] = *in.CategoryID
		}
		if in.Unit != nil {
			updates["unit"] = *in.Unit
		}
		if in.Currency != nil {
			updates["currency"] = *in.Currency
		}
		if in.Price != nil {
			updates["price"] = *in.Price
		}
		if in.OriginalPrice != nil {
			updates["original_price"] = *in.OriginalPrice
		}
		if in.DiscountPrice != nil {
			updates["discount_price"] = *in.DiscountPrice
		}
		if in.Image != nil {
			updates["image"] = *in.Image
		}
		if in.IsActive != nil {
			updates["is_active"] = *in.IsActive
		}

		if err := tx.Model(&product).Updates(updates).Error; err != nil {
			return apperr.FromDB(err, "product")
		}
		return tx.First(&product, id).Error
	})
	if err != nil {
		return nil, err
	}

	s.pub.Publish(realtime.RoomAll, realtime.EventProductUpdated, product)
	return &product, nil
}

// SetDiscount opens a discount window. Percent takes the discount off the
// current price; fixed sets the discounted price directly. The discounted
// price has to stay below the catalog price.
func (s *ProductService) SetDiscount(ctx context.Context, id uint, in SetDiscountInput) (*models.Product, error) {
	var product models.Product
	if err := s.db.WithContext(ctx).First(&product, id).Error; err != nil {
		return nil, apperr.FromDB(err, "product")
	}

	var discountPrice decimal.Decimal
	switch {
	case in.Percent != nil && in.Percent.IsPositive():
		cut := product.Price.Mul(*in.Percent).Div(decimal.NewFromInt(100))
		discountPrice = product.Price.Sub(cut)
	case in.FixedPrice != nil:
		discountPrice = *in.FixedPrice
	default:
		return nil, apperr.Invalid("either percent or fixed_price is required")
	}

	if discountPrice.GreaterThanOrEqual(product.Price) {
		return nil, apperr.Invalid("discount price must be below the catalog price")
	}

	start := time.Now()
	if in.StartDate != nil {
		start = *in.StartDate
	}
	end := in.EndDate

	err := s.db.WithContext(ctx).Model(&product).Updates(map[string]any{
		"discount_price": discountPrice,
		"discount_start": start,
		"discount_end":   end,
		"updated_at":     time.Now(),
	}).Error
	if err != nil {
		return nil, apperr.FromDB(err, "product")
	}
	product.DiscountPrice = discountPrice
	product.DiscountStart = &start
	product.DiscountEnd = &end

	s.pub.Publish(realtime.RoomAll, realtime.EventProductUpdated, product)
	return &product, nil
}

// RemoveDiscount closes the discount window.
func (s *ProductService) RemoveDiscount(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	if err := s.db.WithContext(ctx).First(&product, id).Error; err != nil {
		return nil, apperr.FromDB(err, "product")
	}

	err := s.db.WithContext(ctx).Model(&product).Updates(map[string]any{
		"discount_price": decimal.Zero,
		"discount_start": nil,
		"discount_end":   nil,
		"updated_at":     time.Now(),
	}).Error
	if err != nil {
		return nil, apperr.FromDB(err, "product")
	}
	product.DiscountPrice = decimal.Zero
	product.DiscountStart = nil
	product.DiscountEnd = nil

	s.pub.Publish(realtime.RoomAll, realtime.EventProductUpdated, product)
	return &product, nil
}

// Delete soft-deletes: the row stays for old order lines and ledger history.
func (s *ProductService) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).
		Updates(map[string]any{"is_deleted": true, "is_active": false, "updated_at": time.Now()})
	if res.Error != nil {
		return apperr.FromDB(res.Error, "product")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("product not found")
	}

	s.pub.Publish(realtime.RoomAll, realtime.EventProductDeleted, map[string]any{"id": id})
	return nil
}

// AddStock books a restock under lock and optionally reprices. Exactly one
// ledger row per call.
func (s *ProductService) AddStock(ctx context.Context, actor Actor, id uint, quantity decimal.Decimal, newPrice *decimal.Decimal) (*models.Product, error) {
	if !quantity.IsPositive() {
		return nil, apperr.Invalid("quantity must be positive")
	}

	var product models.Product

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := lockProduct(tx, id)
		if err != nil {
			return err
		}

		oldStock := p.Stock
		newStock := p.Stock.Add(quantity)
		updates := map[string]any{"stock": newStock, "updated_at": time.Now()}
		if newPrice != nil && newPrice.IsPositive() {
			updates["price"] = *newPrice
		}
		if err := tx.Model(&models.Product{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return apperr.FromDB(err, "product")
		}

		entry := models.StockEntry{
			ProductID: id,
			Quantity:  quantity,
			OldStock:  oldStock,
			NewStock:  newStock,
			NewPrice:  newPrice,
			AddedByID: actor.ID,
			Note:      "restock",
		}
		if err := tx.Create(&entry).Error; err != nil {
			return apperr.FromDB(err, "stock ledger")
		}

		product = *p
		product.Stock = newStock
		if newPrice != nil && newPrice.IsPositive() {
			product.Price = *newPrice
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.pub.Publish(realtime.RoomAll, realtime.EventStockUpdate, map[string]any{
		"id":        id,
		"new_stock": product.Stock,
	})
	s.pub.Publish(realtime.RoomAll, realtime.EventProductUpdated, product)
	return &product, nil
}

// Get returns one product.
func (s *ProductService) Get(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	if err := s.db.WithContext(ctx).Preload("Category").First(&product, id).Error; err != nil {
		return nil, apperr.FromDB(err, "product")
	}
	return &product, nil
}

// GetByBarcode resolves a scanned barcode to a sellable product.
func (s *ProductService) GetByBarcode(ctx context.Context, barcode string) (*models.Product, error) {
	var product models.Product
	err := s.db.WithContext(ctx).
		Where("barcode = ? AND is_deleted = ? AND is_active = ?", barcode, false, true).
		First(&product).Error
	if err != nil {
		return nil, apperr.FromDB(err, "product")
	}
	return &product, nil
}
