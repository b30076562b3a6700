package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"taskflow/internal/filter"
	"taskflow/internal/model"
)

// TaskInput represents data required to create a task.
type TaskInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"dueDate"`
}

// TaskPatch carries a partial update. Nil fields are left untouched.
type TaskPatch struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Category    *string    `json:"category"`
	Priority    *string    `json:"priority"`
	DueDate     *time.Time `json:"dueDate"`
	ClearDue    bool       `json:"clearDueDate"`
	Completed   *bool      `json:"completed"`
}

// TaskService wraps task-related business logic.
type TaskService struct {
	store TaskStore
	log   log.FieldLogger
	now   func() time.Time
}

func NewTaskService(store TaskStore, logger log.FieldLogger) *TaskService {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &TaskService{store: store, log: logger, now: time.Now}
}

// WithClock replaces the time source used for CreatedAt and CompletedAt.
func (s *TaskService) WithClock(now func() time.Time) *TaskService {
	s.now = now
	return s
}

func (s *TaskService) List(ctx context.Context) ([]model.Task, error) {
	tasks, err := s.store.List(ctx)
	if err != nil {
		return nil, classify("list tasks", err)
	}
	return tasks, nil
}

func (s *TaskService) Get(ctx context.Context, id uint) (*model.Task, error) {
	task, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, classify(fmt.Sprintf("get task %d", id), err)
	}
	return task, nil
}

// Create validates input and stores a new, not yet completed task.
func (s *TaskService) Create(ctx context.Context, input TaskInput) (*model.Task, error) {
	priority, err := validateTaskInput(input)
	if err != nil {
		return nil, err
	}

	task := model.Task{
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Category:    strings.TrimSpace(input.Category),
		Priority:    priority,
		DueDate:     input.DueDate,
		Completed:   false,
		CreatedAt:   s.now(),
	}
	if err := s.store.Create(ctx, &task); err != nil {
		return nil, classify("create task", err)
	}
	s.log.WithFields(log.Fields{"task": task.ID, "category": task.Category}).Info("task created")
	return &task, nil
}

// Update merges patch into the stored task.
func (s *TaskService) Update(ctx context.Context, id uint, patch TaskPatch) (*model.Task, error) {
	task, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	verr := &ValidationError{}
	if patch.Title != nil {
		if strings.TrimSpace(*patch.Title) == "" {
			verr.add("title", "Task title is required")
		}
		task.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		task.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Category != nil {
		if strings.TrimSpace(*patch.Category) == "" {
			verr.add("category", "Please select a category")
		}
		task.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.Priority != nil {
		p, perr := model.ParsePriority(*patch.Priority)
		if perr != nil {
			verr.add("priority", "Priority must be low, medium or high")
		}
		task.Priority = p
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	switch {
	case patch.ClearDue:
		task.DueDate = nil
	case patch.DueDate != nil:
		task.DueDate = patch.DueDate
	}
	if patch.Completed != nil && *patch.Completed != task.Completed {
		task.SetCompleted(*patch.Completed, s.now())
	}

	if err := s.store.Save(ctx, task); err != nil {
		return nil, classify(fmt.Sprintf("update task %d", id), err)
	}
	return task, nil
}

// Delete removes a task; false means the id was unknown.
func (s *TaskService) Delete(ctx context.Context, id uint) (bool, error) {
	removed, err := s.store.Delete(ctx, id)
	if err != nil {
		return false, classify(fmt.Sprintf("delete task %d", id), err)
	}
	if removed {
		s.log.WithField("task", id).Info("task deleted")
	}
	return removed, nil
}

// ToggleComplete flips completion, setting or clearing CompletedAt.
func (s *TaskService) ToggleComplete(ctx context.Context, id uint) (*model.Task, error) {
	task, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	task.SetCompleted(!task.Completed, s.now())
	if err := s.store.Save(ctx, task); err != nil {
		return nil, classify(fmt.Sprintf("toggle task %d", id), err)
	}
	return task, nil
}

// BulkComplete completes every still-open task among ids and returns the ones it changed.
// Unknown ids are skipped.
func (s *TaskService) BulkComplete(ctx context.Context, ids []uint) ([]model.Task, error) {
	now := s.now()
	var changed []model.Task
	for _, id := range dedupe(ids) {
		task, err := s.store.FindByID(ctx, id)
		if IsNotFound(err) {
			continue
		}
		if err != nil {
			return changed, classify("bulk complete", err)
		}
		if task.Completed {
			continue
		}
		task.SetCompleted(true, now)
		if err := s.store.Save(ctx, task); err != nil {
			if IsNotFound(err) {
				continue
			}
			return changed, classify("bulk complete", err)
		}
		changed = append(changed, *task)
	}
	s.log.WithFields(log.Fields{"requested": len(ids), "completed": len(changed)}).Info("bulk complete")
	return changed, nil
}

// BulkDelete removes every known id and returns how many were actually removed.
func (s *TaskService) BulkDelete(ctx context.Context, ids []uint) (int, error) {
	deleted := 0
	for _, id := range dedupe(ids) {
		removed, err := s.store.Delete(ctx, id)
		if err != nil {
			return deleted, classify("bulk delete", err)
		}
		if removed {
			deleted++
		}
	}
	s.log.WithFields(log.Fields{"requested": len(ids), "deleted": deleted}).Info("bulk delete")
	return deleted, nil
}

// BulkUpdatePriority sets priority on every known id.
func (s *TaskService) BulkUpdatePriority(ctx context.Context, ids []uint, priority string) ([]model.Task, error) {
	p, err := model.ParsePriority(priority)
	if err != nil {
		return nil, &ValidationError{Fields: map[string]string{"priority": "Priority must be low, medium or high"}}
	}
	var changed []model.Task
	for _, id := range dedupe(ids) {
		task, err := s.store.FindByID(ctx, id)
		if IsNotFound(err) {
			continue
		}
		if err != nil {
			return changed, classify("bulk priority", err)
		}
		task.Priority = p
		if err := s.store.Save(ctx, task); err != nil {
			if IsNotFound(err) {
				continue
			}
			return changed, classify("bulk priority", err)
		}
		changed = append(changed, *task)
	}
	return changed, nil
}

// ByCategory lists tasks whose category equals name.
func (s *TaskService) ByCategory(ctx context.Context, name string) ([]model.Task, error) {
	tasks, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return filter.Visible(tasks, filter.Criteria{Category: name, Status: filter.StatusAll}), nil
}

// Search lists tasks whose title or description contains query, ignoring case.
func (s *TaskService) Search(ctx context.Context, query string) ([]model.Task, error) {
	tasks, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return filter.Visible(tasks, filter.Criteria{Status: filter.StatusAll, Query: query}), nil
}

func validateTaskInput(input TaskInput) (model.Priority, error) {
	verr := &ValidationError{}
	if strings.TrimSpace(input.Title) == "" {
		verr.add("title", "Task title is required")
	}
	if strings.TrimSpace(input.Category) == "" {
		verr.add("category", "Please select a category")
	}
	priority := model.PriorityMedium
	if strings.TrimSpace(input.Priority) != "" {
		p, err := model.ParsePriority(input.Priority)
		if err != nil {
			verr.add("priority", "Priority must be low, medium or high")
		}
		priority = p
	}
	return priority, verr.orNil()
}

func dedupe(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
