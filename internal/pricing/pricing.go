// Package pricing computes order totals. It is pure computation: the caller
// resolves products and passes their catalog pricing facts in, nothing here
// touches the database.
package pricing

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DiscountPercent = "percent"
	DiscountFixed   = "fixed"
)

// ErrNegativeTotal means the global discount exceeds the items total. Order
// creation and editing must reject such a discount, not clamp it.
var ErrNegativeTotal = errors.New("discount exceeds order total")

// LineRequest is one requested order line. Price, when set, overrides the
// catalog price and is expressed in the product's native currency, same as
// the catalog price it replaces.
type LineRequest struct {
	ProductID           uint
	Quantity            decimal.Decimal
	Price               *decimal.Decimal
	ManualDiscountValue decimal.Decimal
	ManualDiscountType  string
}

// Catalog holds the pricing facts of one resolved product.
type Catalog struct {
	Price         decimal.Decimal
	DiscountPrice decimal.Decimal
	DiscountStart *time.Time
	DiscountEnd   *time.Time
	Currency      string
}

// Discount is the order-level (global) discount.
type Discount struct {
	Value decimal.Decimal
	Type  string
}

// Line is a fully priced order line in the settlement currency.
type Line struct {
	ProductID           uint
	Quantity            decimal.Decimal
	UnitPrice           decimal.Decimal
	OriginalPrice       decimal.Decimal
	TotalPrice          decimal.Decimal
	ManualDiscountValue decimal.Decimal
	ManualDiscountType  string
}

// Quote is the result of pricing a full line set.
type Quote struct {
	Lines          []Line
	TotalAmount    decimal.Decimal // sum of catalog-price line totals, pre-discount
	ItemsTotal     decimal.Decimal // sum of sold-price line totals
	DiscountAmount decimal.Decimal
	FinalAmount    decimal.Decimal
}

// discountActive reports whether the catalog discount price applies at now.
func discountActive(c Catalog, now time.Time) bool {
	if !c.DiscountPrice.IsPositive() {
		return false
	}
	if c.DiscountStart != nil && now.Before(*c.DiscountStart) {
		return false
	}
	if c.DiscountEnd != nil && now.After(*c.DiscountEnd) {
		return false
	}
	return true
}

// Convert returns a native-currency price in the settlement currency. The
// exchange rate is defined per order as the native-to-settlement multiplier,
// so the same rule serves both UZS- and USD-settled orders.
func Convert(price decimal.Decimal, native, settlement string, rate decimal.Decimal) decimal.Decimal {
	if native == settlement {
		return price
	}
	return price.Mul(rate)
}

// Compute prices the requested lines against the catalog and applies the
// global discount. Sold unit price per line resolves, in priority order, to
// the explicit override, the active catalog discount price, then the catalog
// price. A discount driving the final amount below zero is an error.
func Compute(lines []LineRequest, catalog map[uint]Catalog, settlement string, rate decimal.Decimal, disc Discount, now time.Time) (Quote, error) {
	if rate.IsZero() {
		rate = decimal.NewFromInt(1)
	}

	var q Quote
	for _, req := range lines {
		c, ok := catalog[req.ProductID]
		if !ok {
			return Quote{}, fmt.Errorf("no catalog entry for product %d", req.ProductID)
		}

		sold := c.Price
		switch {
		case req.Price != nil:
			sold = *req.Price
		case discountActive(c, now):
			sold = c.DiscountPrice
		}

		sold = Convert(sold, c.Currency, settlement, rate)
		original := Convert(c.Price, c.Currency, settlement, rate)

		lineTotal := sold.Mul(req.Quantity)
		q.ItemsTotal = q.ItemsTotal.Add(lineTotal)
		q.TotalAmount = q.TotalAmount.Add(original.Mul(req.Quantity))

		mdType := req.ManualDiscountType
		if mdType == "" {
			mdType = DiscountFixed
		}
		q.Lines = append(q.Lines, Line{
			ProductID:           req.ProductID,
			Quantity:            req.Quantity,
			UnitPrice:           sold,
			OriginalPrice:       original,
			TotalPrice:          lineTotal,
			ManualDiscountValue: req.ManualDiscountValue,
			ManualDiscountType:  mdType,
		})
	}

	if disc.Value.IsPositive() {
		if disc.Type == DiscountPercent {
			q.DiscountAmount = q.ItemsTotal.Mul(disc.Value).Div(decimal.NewFromInt(100))
		} else {
			q.DiscountAmount = disc.Value
		}
	}

	q.FinalAmount = q.ItemsTotal.Sub(q.DiscountAmount)
	if q.FinalAmount.IsNegative() {
		return Quote{}, ErrNegativeTotal
	}
	return q, nil
}
