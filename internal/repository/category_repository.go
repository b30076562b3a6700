package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"taskflow/internal/model"
)

// CategoryRepository manages task categories.
type CategoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) List(ctx context.Context) ([]model.Category, error) {
	var categories []model.Category
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

func (r *CategoryRepository) FindByID(ctx context.Context, id uint) (*model.Category, error) {
	var category model.Category
	return r.first(ctx, &category, r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *CategoryRepository) FindByName(ctx context.Context, name string) (*model.Category, error) {
	var category model.Category
	return r.first(ctx, &category, r.db.WithContext(ctx).Where("name = ?", name))
}

func (r *CategoryRepository) first(_ context.Context, category *model.Category, query *gorm.DB) (*model.Category, error) {
	err := query.First(category).Error
	switch {
	case err == nil:
		return category, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, model.ErrNotFound
	default:
		return nil, fmt.Errorf("find category: %w", err)
	}
}

func (r *CategoryRepository) Create(ctx context.Context, category *model.Category) error {
	if err := r.db.WithContext(ctx).Create(category).Error; err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

func (r *CategoryRepository) Save(ctx context.Context, category *model.Category) error {
	res := r.db.WithContext(ctx).Model(&model.Category{ID: category.ID}).Select("name", "color", "task_count").Updates(category)
	if res.Error != nil {
		return fmt.Errorf("save category: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *CategoryRepository) Delete(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&model.Category{}, id)
	if res.Error != nil {
		return false, fmt.Errorf("delete category: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// SetTaskCount updates only the cached count column of the named category.
func (r *CategoryRepository) SetTaskCount(ctx context.Context, name string, count int) error {
	res := r.db.WithContext(ctx).Model(&model.Category{}).Where("name = ?", name).Update("task_count", count)
	if res.Error != nil {
		return fmt.Errorf("set task count: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}
