package service

import (
	"context"
	"errors"

	"dokon-pos/internal/apperr"
	"dokon-pos/internal/models"

	"gorm.io/gorm"
)

// CategoryService is plain catalog-grouping CRUD.
type CategoryService struct {
	db *gorm.DB
}

func NewCategoryService(db *gorm.DB) *CategoryService {
	return &CategoryService{db: db}
}

func (s *CategoryService) List(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := s.db.WithContext(ctx).Order("name").Find(&categories).Error; err != nil {
		return nil, apperr.FromDB(err, "categories")
	}
	return categories, nil
}

func (s *CategoryService) Create(ctx context.Context, name string) (*models.Category, error) {
	if name == "" {
		return nil, apperr.Invalid("category name is required")
	}

	var existing models.Category
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&existing).Error
	if err == nil {
		return nil, apperr.Conflict("category %q already exists", name)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.FromDB(err, "category")
	}

	category := models.Category{Name: name}
	if err := s.db.WithContext(ctx).Create(&category).Error; err != nil {
		return nil, apperr.FromDB(err, "category")
	}
	return &category, nil
}

func (s *CategoryService) Update(ctx context.Context, id uint, name string) (*models.Category, error) {
	if name == "" {
		return nil, apperr.Invalid("category name is required")
	}

	var category models.Category
	if err := s.db.WithContext(ctx).First(&category, id).Error; err != nil {
		return nil, apperr.FromDB(err, "category")
	}
	if err := s.db.WithContext(ctx).Model(&category).Update("name", name).Error; err != nil {
		return nil, apperr.FromDB(err, "category")
	}
	category.Name = name
	return &category, nil
}

// Delete removes the category; products under it become uncategorized.
func (s *CategoryService) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Category{}, id)
		if res.Error != nil {
			return apperr.FromDB(res.Error, "category")
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("category not found")
		}
		err := tx.Model(&models.Product{}).Where("category_id = ?", id).
			Update("category_id", nil).Error
		if err != nil {
			return apperr.FromDB(err, "products")
		}
		return nil
	})
}
