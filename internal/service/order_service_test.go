package service

import (
	"context"
	"testing"

	"dokon-pos/internal/apperr"
	"dokon-pos/internal/models"
	"dokon-pos/internal/realtime"

	"github.com/stretchr/testify/require"
)

func TestCreateOrder(t *testing.T) {
	db := newTestDB(t)
	rec := &recorder{}
	svc := NewOrderService(db, rec, nil)
	p := seedProduct(t, db, "Cola", "1000", "10")

	order, err := svc.Create(context.Background(), admin, CreateOrderInput{
		Items: []OrderLineInput{{ProductID: p.ID, Quantity: dec("4")}},
	})
	require.NoError(t, err)

	require.Equal(t, models.OrderStatusDraft, order.Status)
	require.True(t, order.FinalAmount.Equal(dec("4000")), "final = %s", order.FinalAmount)
	require.True(t, order.TotalAmount.Equal(dec("4000")))
	require.Len(t, order.Items, 1)
	require.True(t, order.Items[0].TotalPrice.Equal(dec("4000")))

	require.True(t, reload(t, db, p.ID).Stock.Equal(dec("6")))

	entries := ledgerFor(t, db, p.ID)
	require.Len(t, entries, 1)
	require.True(t, entries[0].OldStock.Equal(dec("10")))
	require.True(t, entries[0].NewStock.Equal(dec("6")))
	require.True(t, entries[0].Quantity.Equal(dec("4")))

	require.Equal(t, []string{realtime.EventNewOrder, realtime.EventStockUpdate}, rec.names())
	require.Equal(t, realtime.RoomCashier, rec.byName(realtime.EventNewOrder)[0].Room)
	require.Equal(t, realtime.RoomAll, rec.byName(realtime.EventStockUpdate)[0].Room)
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	db := newTestDB(t)
	svc := NewOrderService(db, realtime.Nop{}, nil)
	p := seedProduct(t, db, "Cola", "1000", "2")

	_, err := svc.Create(context.Background(), admin, CreateOrderInput{
		Items: []OrderLineInput{{ProductID: p.ID, Quantity: dec("5")}},
	})
	require.True(t, apperr.IsKind(err, apperr.KindConflict), "got %v", err)

	// Nothing survives the rollback.
	require.True(t, reload(t, db, p.ID).Stock.Equal(dec("2")))
	var orderCount, itemCount, entryCount int64
	require.NoError(t, db.Model(&models.Order{}).Count(&orderCount).Error)
	require.NoError(t, db.Model(&models.OrderItem{}).Count(&itemCount).Error)
	require.NoError(t, db.Model(&models.StockEntry{}).Count(&entryCount).Error)
	require.Zero(t, orderCount)
	require.Zero(t, itemCount)
	require.Zero(t, entryCount)
}

func TestCreateOrderValidation(t *testing.T) {
	db := newTestDB(t)
	svc := NewOrderService(db, realtime.Nop{}, nil)
	inactive := seedProduct(t, db, "Hidden", "1000", "10")
	require.NoError(t, db.Model(inactive).Update("is_active", false).Error)

	t.Run("empty items", func(t *testing.T) {
		_, err := svc.Create(context.Background(), admin, CreateOrderInput{})
		require.True(t, apperr.IsKind(err, apperr.KindInvalid))
	})

	t.Run("unknown product", func(t *testing.T) {
		_, err := svc.Create(context.Background(), admin, CreateOrderInput{
			Items: []OrderLineInput{{ProductID: 999, Quantity: dec("1")}},
		})
		require.True(t, apperr.IsKind(err, apperr.KindInvalid))
	})

	t.Run("inactive product", func(t *testing.T) {
		_, err := svc.Create(context.Background(), admin, CreateOrderInput{
			Items: []OrderLineInput{{ProductID: inactive.ID, Quantity: dec("1")}},
		})
		require.True(t, apperr.IsKind(err, apperr.KindInvalid))
	})
}

func TestCreateOrderExcessiveDiscountRollsBackStock(t *testing.T) {
	db := newTestDB(t)
	svc := NewOrderService(db, realtime.Nop{}, nil)
	p := seedProduct(t, db, "Cola", "1000", "10")

	_, err := svc.Create(context.Background(), admin, CreateOrderInput{
		Items:         []OrderLineInput{{ProductID: p.ID, Quantity: dec("2")}},
		DiscountValue: dec("5000"),
		DiscountType:  "fixed",
	})
	require.True(t, apperr.IsKind(err, apperr.KindInvalid), "got %v", err)

	// The stock decrement ran before pricing; it must not survive.
	require.True(t, reload(t, db, p.ID).Stock.Equal(dec("10")))
	require.Empty(t, ledgerFor(t, db, p.ID))
}

func TestCreateOrderCurrencyConversion(t *testing.T) {
	db := newTestDB(t)
	svc := NewOrderService(db, realtime.Nop{}, nil)
	p := seedProduct(t, db, "Import", "5", "10")
	require.NoError(t, db.Model(p).Update("currency", "USD").Error)

	order, err := svc.Create(context.Background(), admin, CreateOrderInput{
		Currency:     "UZS",
		ExchangeRate: dec("12500"),
		Items:        []OrderLineInput{{ProductID: p.ID, Quantity: dec("2")}},
	})
	require.NoError(t, err)
	require.True(t, order.Items[0].Price.Equal(dec("62500")))
	require.True(t, order.FinalAmount.Equal(dec("125000")))
}

func TestUpdateOrderDiff(t *testing.T) {
	db := newTestDB(t)
	rec := &recorder{}
	svc := NewOrderService(db, rec, nil)
	p := seedProduct(t, db, "Cola", "1000", "10")

	order, err := svc.Create(context.Background(), admin, CreateOrderInput{
		Items: []OrderLineInput{{ProductID: p.ID, Quantity: dec("3")}},
	})
	require.NoError(t, err)
	require.True(t, reload(t, db, p.ID).Stock.Equal(dec("7")))

	updated, err := svc.Update(context.Background(), admin, order.ID, UpdateOrderInput{
		Items: []OrderLineInput{{ProductID: p.ID, Quantity: dec("1")}},
	})
	require.NoError(t, err)

	// Net delta of -2 restores stock and produces exactly one edit entry.
	require.True(t, reload(t, db, p.ID).Stock.Equal(dec("9")))
	entries := ledgerFor(t, db, p.ID)
	require.Len(t, entries, 2) // the sale entry plus one edit entry
	edit := entries[1]
	require.True(t, edit.Quantity.Equal(dec("2")))
	require.True(t, edit.OldStock.Equal(dec("7")))
	require.True(t, edit.NewStock.Equal(dec("9")))

	require.Len(t, updated.Items, 1)
	require.True(t, updated.Items[0].Quantity.Equal(dec("1")))
	require.True(t, updated.FinalAmount.Equal(dec("1000")))

	require.Contains(t, rec.names(), realtime.EventOrderUpdated)
}

func TestUpdateOrderSwapsProducts(t *testing.T) {
	db := newTestDB(t)
	svc := NewOrderService(db, realtime.Nop{}, nil)
	p1 := seedProduct(t, db, "Cola", "1000", "10")
	p2 := seedProduct(t, db, "Fanta", "2000", "5")

	order, err := svc.Create(context.Background(), admin, CreateOrderInput{
		Items: []OrderLineInput{{ProductID: p1.ID, Quantity: dec("2")}},
	})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), admin, order.ID, UpdateOrderInput{
		Items: []OrderLineInput{{ProductID: p2.ID, Quantity: dec("3")}},
	})
	require.NoError(t, err)

	// Removed product fully restored, new product decremented.
	require.True(t, reload(t, db, p1.ID).Stock.Equal(dec("10")))
	require.True(t, reload(t, db, p2.ID).Stock.Equal(dec("2")))
	require.Len(t, updated.Items, 1)
	require.Equal(t, p2.ID, updated.Items[0].ProductID)
	require.True(t, updated.FinalAmount.Equal(dec("6000")))
}

func TestUpdateOrderInsufficientStockLeavesEverything(t *testing.T) {
	db := newTestDB(t)
	svc := NewOrderService(db, realtime.Nop{}, nil)
	p := seedProduct(t, db, "Cola", "1000", "5")

	order, err := svc.Create(context.Background(), admin, CreateOrderInput{
		Items: []OrderLineInput{{ProductID: p.ID, Quantity: dec("3")}},
	})
	require.NoError(t, err)

	// 3 already held; raising to 6 needs 3 more but only 2 remain.
	_, err = svc.Update(context.Background(), admin, order.ID, UpdateOrderInput{
		Items: []OrderLineInput{{ProductID: p.ID, Quantity: dec("6")}},
	})
	require.True(t, apperr.IsKind(err, apperr.KindConflict), "got %v", err)

	require.True(t, reload(t, db, p.ID).Stock.Equal(dec("2")))
	var items []models.OrderItem
	require.NoError(t, db.Where("order_id = ?", order.ID).Find(&items).Error)
	require.Len(t, items, 1)
	require.True(t, items[0].Quantity.Equal(dec("3")))
}

func TestUpdateOrderAuthorization(t *testing.T) {
	db := newTestDB(t)
	svc := NewOrderService(db, realtime.Nop{}, nil)
	p := seedProduct(t, db, "Cola", "1000", "10")

	seller := Actor{ID: 7, Role: RoleSeller}
	order, err := svc.Create(context.Background(), seller, CreateOrderInput{
		Items: []OrderLineInput{{ProductID: p.ID, Quantity: dec("1")}},
	})
	require.NoError(t, err)

	t.Run("another seller is rejected", func(t *testing.T) {
		other := Actor{ID: 8, Role: RoleSeller}
		_, err := svc.Update(context.Background(), other, order.ID, UpdateOrderInput{
			Items: []OrderLineInput{{ProductID: p.ID, Quantity: dec("2")}},
		})
		require.True(t, apperr.IsKind(err, apperr.KindForbidden))
	})

	t.Run("admin may edit any draft", func(t *testing.T) {
		_, err := svc.Update(context.Background(), admin, order.ID, UpdateOrderInput{
			Items: []OrderLineInput{{ProductID: p.ID, Quantity: dec("2")}},
		})
		require.NoError(t, err)
	})
}

func TestUpdateOrderNonDraft(t *testing.T) {
	db := newTestDB(t)
	svc := NewOrderService(db, realtime.Nop{}, nil)
	p := seedProduct(t, db, "Cola", "1000", "10")

	order, err := svc.Create(context.Background(), admin, CreateOrderInput{
		Items: []OrderLineInput{{ProductID: p.ID, Quantity: dec("1")}},
	})
	require.NoError(t, err)
	_, err = svc.UpdateStatus(context.Background(), admin, order.ID, models.OrderStatusCompleted)
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), admin, order.ID, UpdateOrderInput{
		Items: []OrderLineInput{{ProductID: p.ID, Quantity: dec("2")}},
	})
	require.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestCancelRestoresStock(t *testing.T) {
	db := newTestDB(t)
	rec := &recorder{}
	svc := NewOrderService(db, rec, nil)
	p1 := seedProduct(t, db, "Cola", "1000", "13")
	p2 := seedProduct(t, db, "Fanta", "2000", "6")

	order, err := svc.Create(context.Background(), admin, CreateOrderInput{
		Items: []OrderLineInput{
			{ProductID: p1.ID, Quantity: dec("3")},
			{ProductID: p2.ID, Quantity: dec("1")},
		},
	})
	require.NoError(t, err)
	require.True(t, reload(t, db, p1.ID).Stock.Equal(dec("10")))
	require.True(t, reload(t, db, p2.ID).Stock.Equal(dec("5")))

	cancelled, err := svc.UpdateStatus(context.Background(), admin, order.ID, models.OrderStatusCancelled)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusCancelled, cancelled.Status)

	require.True(t, reload(t, db, p1.ID).Stock.Equal(dec("13")))
	require.True(t, reload(t, db, p2.ID).Stock.Equal(dec("6")))

	// One cancellation entry per product, on top of the two sale entries.
	require.Len(t, ledgerFor(t, db, p1.ID), 2)
	require.Len(t, ledgerFor(t, db, p2.ID), 2)

	events := rec.byName(realtime.EventStockUpdate)
	require.Len(t, events, 2) // sale subtract + cancel add
	require.Contains(t, rec.names(), realtime.EventOrderStatusChange)
}

func TestStatusTransitions(t *testing.T) {
	db := newTestDB(t)
	rec := &recorder{}
	svc := NewOrderService(db, rec, nil)
	p := seedProduct(t, db, "Cola", "1000", "10")

	order, err := svc.Create(context.Background(), admin, CreateOrderInput{
		Items: []OrderLineInput{{ProductID: p.ID, Quantity: dec("1")}},
	})
	require.NoError(t, err)

	t.Run("refund statuses cannot be set directly", func(t *testing.T) {
		_, err := svc.UpdateStatus(context.Background(), admin, order.ID, models.OrderStatusFullyRefunded)
		require.True(t, apperr.IsKind(err, apperr.KindInvalid))
		_, err = svc.UpdateStatus(context.Background(), admin, order.ID, models.OrderStatusPartiallyRefunded)
		require.True(t, apperr.IsKind(err, apperr.KindInvalid))
	})

	t.Run("draft completes", func(t *testing.T) {
		completed, err := svc.UpdateStatus(context.Background(), admin, order.ID, models.OrderStatusCompleted)
		require.NoError(t, err)
		require.Equal(t, models.OrderStatusCompleted, completed.Status)
		require.Equal(t, realtime.RoomCashier, rec.byName(realtime.EventOrderStatusChange)[0].Room)
	})

	t.Run("completed cannot be cancelled", func(t *testing.T) {
		_, err := svc.UpdateStatus(context.Background(), admin, order.ID, models.OrderStatusCancelled)
		require.True(t, apperr.IsKind(err, apperr.KindConflict))
		// Stock untouched by the rejected cancel.
		require.True(t, reload(t, db, p.ID).Stock.Equal(dec("9")))
	})
}

func TestMarkPrinted(t *testing.T) {
	db := newTestDB(t)
	rec := &recorder{}
	svc := NewOrderService(db, rec, nil)
	p := seedProduct(t, db, "Cola", "1000", "10")

	order, err := svc.Create(context.Background(), admin, CreateOrderInput{
		Items: []OrderLineInput{{ProductID: p.ID, Quantity: dec("1")}},
	})
	require.NoError(t, err)

	printed, err := svc.MarkPrinted(context.Background(), order.ID)
	require.NoError(t, err)
	require.True(t, printed.IsPrinted)
	require.Equal(t, realtime.RoomCashier, rec.byName(realtime.EventOrderPrinted)[0].Room)

	_, err = svc.MarkPrinted(context.Background(), 999)
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestListOrdersHidesFullyRefunded(t *testing.T) {
	db := newTestDB(t)
	svc := NewOrderService(db, realtime.Nop{}, nil)
	p := seedProduct(t, db, "Cola", "1000", "10")

	order, err := svc.Create(context.Background(), admin, CreateOrderInput{
		Items: []OrderLineInput{{ProductID: p.ID, Quantity: dec("1")}},
	})
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", order.ID).
		Update("status", models.OrderStatusFullyRefunded).Error)

	orders, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, orders)
}
