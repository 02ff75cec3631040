package service

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"dokon-pos/internal/database"
	"dokon-pos/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// newTestDB opens a fresh in-memory database per test. The shared-cache DSN
// keeps gorm's pooled connections on the same memory store.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

type event struct {
	Room    string
	Event   string
	Payload any
}

// recorder captures broadcasts so tests can assert what was published
// without any transport.
type recorder struct {
	mu     sync.Mutex
	events []event
}

func (r *recorder) Publish(room, ev string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{Room: room, Event: ev, Payload: payload})
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Event)
	}
	return out
}

func (r *recorder) byName(name string) []event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []event
	for _, e := range r.events {
		if e.Event == name {
			out = append(out, e)
		}
	}
	return out
}

func seedProduct(t *testing.T, db *gorm.DB, name, price, stock string) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:          name,
		Currency:      "UZS",
		Price:         dec(price),
		OriginalPrice: dec(price),
		Stock:         dec(stock),
		IsActive:      true,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func reload(t *testing.T, db *gorm.DB, id uint) *models.Product {
	t.Helper()
	var p models.Product
	require.NoError(t, db.First(&p, id).Error)
	return &p
}

func ledgerFor(t *testing.T, db *gorm.DB, productID uint) []models.StockEntry {
	t.Helper()
	var entries []models.StockEntry
	require.NoError(t, db.Where("product_id = ?", productID).Order("id").Find(&entries).Error)
	return entries
}

var admin = Actor{ID: 1, Role: RoleAdmin}
