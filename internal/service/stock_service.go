package service

import (
	"context"
	"time"

	"dokon-pos/internal/apperr"
	"dokon-pos/internal/models"

	"gorm.io/gorm"
)

type StockHistoryQuery struct {
	From  *time.Time
	To    *time.Time
	Page  int
	Limit int
}

type StockHistoryPage struct {
	Data    []models.StockEntry `json:"data"`
	Page    int                 `json:"page"`
	Limit   int                 `json:"limit"`
	Total   int64               `json:"total"`
	HasMore bool                `json:"has_more"`
}

// StockService is the read side of the stock ledger. It never writes; the
// mutating paths append their own entries inside their transactions.
type StockService struct {
	db *gorm.DB
}

func NewStockService(db *gorm.DB) *StockService {
	return &StockService{db: db}
}

// History lists ledger entries newest first with an optional date range.
// Range bounds snap to whole days so a same-day from/to still matches.
func (s *StockService) History(ctx context.Context, q StockHistoryQuery) (*StockHistoryPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 20
	}

	base := s.db.WithContext(ctx).Model(&models.StockEntry{})
	if q.From != nil {
		from := time.Date(q.From.Year(), q.From.Month(), q.From.Day(), 0, 0, 0, 0, q.From.Location())
		base = base.Where("created_at >= ?", from)
	}
	if q.To != nil {
		to := time.Date(q.To.Year(), q.To.Month(), q.To.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), q.To.Location())
		base = base.Where("created_at <= ?", to)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, apperr.FromDB(err, "stock history")
	}

	var entries []models.StockEntry
	err := base.
		Preload("Product").
		Preload("AddedBy").
		Order("created_at desc").
		Limit(q.Limit).
		Offset((q.Page - 1) * q.Limit).
		Find(&entries).Error
	if err != nil {
		return nil, apperr.FromDB(err, "stock history")
	}

	return &StockHistoryPage{
		Data:    entries,
		Page:    q.Page,
		Limit:   q.Limit,
		Total:   total,
		HasMore: int64(q.Page*q.Limit) < total,
	}, nil
}
