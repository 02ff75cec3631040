package database

import (
	"fmt"
	"time"

	"dokon-pos/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// Connect opens the MySQL store and syncs the schema. The retry loop covers
// the container-orchestration case where the database comes up after us.
func Connect(dsn string, log *zap.Logger) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DB_DSN is not configured")
	}

	var db *gorm.DB
	var err error
	for i := 0; i < 5; i++ {
		db, err = gorm.Open(mysql.Open(dsn), &gorm.Config{})
		if err == nil {
			break
		}
		log.Warn("database not ready, retrying",
			zap.Int("attempt", i+1), zap.Error(err))
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info("database connected and schema synced")
	return db, nil
}

// Migrate syncs the schema. Shared with the test fixtures.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Partner{},
		&models.Product{},
		&models.Order{},
		&models.OrderItem{},
		&models.Refund{},
		&models.RefundItem{},
		&models.StockEntry{},
		&models.PriceEntry{},
	)
}
