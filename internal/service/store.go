package service

import (
	"context"

	"taskflow/internal/model"
)

// TaskStore persists tasks. Implementations return model.ErrNotFound for unknown ids.
type TaskStore interface {
	List(ctx context.Context) ([]model.Task, error)
	FindByID(ctx context.Context, id uint) (*model.Task, error)
	Create(ctx context.Context, task *model.Task) error
	Save(ctx context.Context, task *model.Task) error
	Delete(ctx context.Context, id uint) (bool, error)
}

// CategoryStore persists categories.
type CategoryStore interface {
	List(ctx context.Context) ([]model.Category, error)
	FindByID(ctx context.Context, id uint) (*model.Category, error)
	FindByName(ctx context.Context, name string) (*model.Category, error)
	Create(ctx context.Context, category *model.Category) error
	Save(ctx context.Context, category *model.Category) error
	Delete(ctx context.Context, id uint) (bool, error)
	SetTaskCount(ctx context.Context, name string, count int) error
}
