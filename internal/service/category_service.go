package service

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"taskflow/internal/model"
)

// CategoryInput represents data required to create a category.
type CategoryInput struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// CategoryPatch carries a partial category update.
type CategoryPatch struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
}

// CategoryService provides helpers around categories.
type CategoryService struct {
	store CategoryStore
	log   log.FieldLogger
}

func NewCategoryService(store CategoryStore, logger log.FieldLogger) *CategoryService {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &CategoryService{store: store, log: logger}
}

func (s *CategoryService) List(ctx context.Context) ([]model.Category, error) {
	categories, err := s.store.List(ctx)
	if err != nil {
		return nil, classify("list categories", err)
	}
	return categories, nil
}

func (s *CategoryService) Get(ctx context.Context, id uint) (*model.Category, error) {
	category, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, classify(fmt.Sprintf("get category %d", id), err)
	}
	return category, nil
}

func (s *CategoryService) Create(ctx context.Context, input CategoryInput) (*model.Category, error) {
	name := strings.TrimSpace(input.Name)
	if err := s.validateName(ctx, name, 0); err != nil {
		return nil, err
	}
	color := strings.TrimSpace(input.Color)
	if color == "" {
		color = model.DefaultCategoryColor
	}
	category := model.Category{Name: name, Color: color}
	if err := s.store.Create(ctx, &category); err != nil {
		return nil, classify("create category", err)
	}
	s.log.WithField("category", category.Name).Info("category created")
	return &category, nil
}

func (s *CategoryService) Update(ctx context.Context, id uint, patch CategoryPatch) (*model.Category, error) {
	category, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if err := s.validateName(ctx, name, id); err != nil {
			return nil, err
		}
		category.Name = name
	}
	if patch.Color != nil && strings.TrimSpace(*patch.Color) != "" {
		category.Color = strings.TrimSpace(*patch.Color)
	}
	if err := s.store.Save(ctx, category); err != nil {
		return nil, classify(fmt.Sprintf("update category %d", id), err)
	}
	return category, nil
}

// Delete removes a category. Tasks referencing it keep the name.
func (s *CategoryService) Delete(ctx context.Context, id uint) (bool, error) {
	removed, err := s.store.Delete(ctx, id)
	if err != nil {
		return false, classify(fmt.Sprintf("delete category %d", id), err)
	}
	return removed, nil
}

// UpdateTaskCount is best effort: failures are logged and never returned.
func (s *CategoryService) UpdateTaskCount(ctx context.Context, name string, count int) {
	if err := s.store.SetTaskCount(ctx, name, count); err != nil {
		s.log.WithFields(log.Fields{"category": name, "count": count}).WithError(err).Warn("update task count")
	}
}

// SyncTaskCounts recomputes every category's cached count from a task snapshot.
func (s *CategoryService) SyncTaskCounts(ctx context.Context, tasks []model.Task) {
	categories, err := s.store.List(ctx)
	if err != nil {
		s.log.WithError(err).Warn("sync task counts: list categories")
		return
	}
	counts := make(map[string]int, len(categories))
	for _, task := range tasks {
		counts[task.Category]++
	}
	for _, category := range categories {
		if category.TaskCount == counts[category.Name] {
			continue
		}
		s.UpdateTaskCount(ctx, category.Name, counts[category.Name])
	}
}

func (s *CategoryService) validateName(ctx context.Context, name string, selfID uint) error {
	if name == "" {
		return &ValidationError{Fields: map[string]string{"name": "Category name is required"}}
	}
	existing, err := s.store.FindByName(ctx, name)
	switch {
	case IsNotFound(err):
		return nil
	case err != nil:
		return classify("find category", err)
	case existing.ID != selfID:
		return &ValidationError{Fields: map[string]string{"name": "Category name already exists"}}
	}
	return nil
}
