package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User - a staff member (owner, admin, cashier or seller)
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:50" json:"username"`
	PasswordHash string    `json:"-"` // Never return this in JSON
	FullName     string    `gorm:"size:100" json:"full_name"`
	Role         string    `gorm:"size:20" json:"role"` // 'owner', 'admin', 'cashier', 'seller'
	IsActive     bool      `gorm:"default:true" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Category groups products; a product may be uncategorized.
type Category struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:100" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Partner - a known customer an order can be attached to
type Partner struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100" json:"name"`
	Phone     string    `gorm:"size:30" json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

// Product - the inventory. Stock is a decimal so fractional units
// (kg, litres) work; it must never go below zero.
type Product struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Name          string          `gorm:"size:200" json:"name"`
	Barcode       *string         `gorm:"uniqueIndex;size:64" json:"barcode"`
	CategoryID    *uint           `json:"category_id"`
	Category      *Category       `json:"category,omitempty"`
	Unit          string          `gorm:"size:20;default:'pcs'" json:"unit"`
	Currency      string          `gorm:"size:3;default:'UZS'" json:"currency"` // 'UZS' | 'USD'
	Price         decimal.Decimal `gorm:"type:decimal(20,4)" json:"price"`
	OriginalPrice decimal.Decimal `gorm:"type:decimal(20,4)" json:"original_price"` // cost / incoming price
	DiscountPrice decimal.Decimal `gorm:"type:decimal(20,4)" json:"discount_price"`
	DiscountStart *time.Time      `json:"discount_start"`
	DiscountEnd   *time.Time      `json:"discount_end"`
	Stock         decimal.Decimal `gorm:"type:decimal(20,4)" json:"stock"`
	Image         string          `json:"image"`
	IsActive      bool            `gorm:"default:true" json:"is_active"`
	IsDeleted     bool            `gorm:"default:false" json:"is_deleted"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Order statuses. Draft is the only editable state; cancelled and
// fully_refunded are terminal. The refunded statuses are set by the
// refund flow only, never by a direct status update.
const (
	OrderStatusDraft             = "draft"
	OrderStatusCompleted         = "completed"
	OrderStatusCancelled         = "cancelled"
	OrderStatusPartiallyRefunded = "partially_refunded"
	OrderStatusFullyRefunded     = "fully_refunded"
)

// Order - the transaction header. FinalAmount is always
// max(0, sum(item totals) - DiscountAmount).
type Order struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	SellerID       uint            `json:"seller_id"`
	Seller         *User           `gorm:"foreignKey:SellerID" json:"seller,omitempty"`
	CashierID      *uint           `json:"cashier_id"`
	PartnerID      *uint           `json:"partner_id"`
	Partner        *Partner        `json:"partner,omitempty"`
	CustomerName   string          `gorm:"size:100" json:"customer_name"`
	Currency       string          `gorm:"size:3;default:'UZS'" json:"currency"`
	ExchangeRate   decimal.Decimal `gorm:"type:decimal(20,4)" json:"exchange_rate"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(20,4)" json:"total_amount"` // pre-discount, catalog prices
	DiscountValue  decimal.Decimal `gorm:"type:decimal(20,4)" json:"discount_value"`
	DiscountType   string          `gorm:"size:10;default:'fixed'" json:"discount_type"` // 'percent' | 'fixed'
	DiscountAmount decimal.Decimal `gorm:"type:decimal(20,4)" json:"discount_amount"`
	FinalAmount    decimal.Decimal `gorm:"type:decimal(20,4)" json:"final_amount"`
	Status         string          `gorm:"size:20;index;default:'draft'" json:"status"`
	PaymentMethod  string          `gorm:"size:20;default:'cash'" json:"payment_method"` // 'cash', 'card', 'transfer', 'debt'
	Type           string          `gorm:"size:20;default:'retail'" json:"type"`         // 'retail' | 'wholesale'
	IsPrinted      bool            `gorm:"default:false" json:"is_printed"`
	Items          []OrderItem     `gorm:"foreignKey:OrderID" json:"items"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// OrderItem - one line of an order. Price is the unit price actually
// charged, OriginalPrice the catalog price at sale time, both already in
// the order's settlement currency.
type OrderItem struct {
	ID                  uint            `gorm:"primaryKey" json:"id"`
	OrderID             uint            `gorm:"index" json:"order_id"`
	ProductID           uint            `json:"product_id"`
	Product             *Product        `json:"product,omitempty"`
	Quantity            decimal.Decimal `gorm:"type:decimal(20,4)" json:"quantity"`
	Price               decimal.Decimal `gorm:"type:decimal(20,4)" json:"price"`
	OriginalPrice       decimal.Decimal `gorm:"type:decimal(20,4)" json:"original_price"`
	TotalPrice          decimal.Decimal `gorm:"type:decimal(20,4)" json:"total_price"`
	ManualDiscountValue decimal.Decimal `gorm:"type:decimal(20,4)" json:"manual_discount_value"`
	ManualDiscountType  string          `gorm:"size:10;default:'fixed'" json:"manual_discount_type"`
}

// Refund - immutable record of one return against an order.
type Refund struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	OrderID      uint            `gorm:"index" json:"order_id"`
	Order        *Order          `json:"order,omitempty"`
	TotalAmount  decimal.Decimal `gorm:"type:decimal(20,4)" json:"total_amount"`
	Reason       string          `json:"reason"`
	RefundedByID uint            `json:"refunded_by_id"`
	RefundedBy   *User           `gorm:"foreignKey:RefundedByID" json:"refunded_by,omitempty"`
	Items        []RefundItem    `gorm:"foreignKey:RefundID" json:"items"`
	CreatedAt    time.Time       `json:"created_at"`
}

type RefundItem struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	RefundID  uint            `gorm:"index" json:"refund_id"`
	ProductID uint            `json:"product_id"`
	Product   *Product        `json:"product,omitempty"`
	Quantity  decimal.Decimal `gorm:"type:decimal(20,4)" json:"quantity"`
	Price     decimal.Decimal `gorm:"type:decimal(20,4)" json:"price"`
}

// StockEntry - append-only stock ledger row. Quantity is the unsigned
// magnitude of the change; the direction is recoverable from
// NewStock - OldStock. Rows are never updated or deleted.
type StockEntry struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	ProductID uint             `gorm:"index" json:"product_id"`
	Product   *Product         `json:"product,omitempty"`
	Quantity  decimal.Decimal  `gorm:"type:decimal(20,4)" json:"quantity"`
	OldStock  decimal.Decimal  `gorm:"type:decimal(20,4)" json:"old_stock"`
	NewStock  decimal.Decimal  `gorm:"type:decimal(20,4)" json:"new_stock"`
	NewPrice  *decimal.Decimal `gorm:"type:decimal(20,4)" json:"new_price"`
	AddedByID uint             `json:"added_by_id"`
	AddedBy   *User            `gorm:"foreignKey:AddedByID" json:"added_by,omitempty"`
	Note      string           `json:"note"`
	CreatedAt time.Time        `gorm:"index" json:"created_at"`
}

// PriceEntry records a catalog price change.
type PriceEntry struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	ProductID   uint            `gorm:"index" json:"product_id"`
	OldPrice    decimal.Decimal `gorm:"type:decimal(20,4)" json:"old_price"`
	NewPrice    decimal.Decimal `gorm:"type:decimal(20,4)" json:"new_price"`
	Currency    string          `gorm:"size:3" json:"currency"`
	ChangedByID uint            `json:"changed_by_id"`
	CreatedAt   time.Time       `json:"created_at"`
}
