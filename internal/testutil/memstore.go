// Package testutil provides in-memory stores for tests.
package testutil

import (
	"context"
	"sync"

	"taskflow/internal/model"
)

// TaskStore is an in-memory service.TaskStore. Set Err to make every call fail.
type TaskStore struct {
	mu     sync.Mutex
	Tasks  map[uint]*model.Task
	nextID uint
	Err    error
	// DeleteErr fails only Delete calls.
	DeleteErr error
}

func NewTaskStore(tasks ...model.Task) *TaskStore {
	s := &TaskStore{Tasks: make(map[uint]*model.Task)}
	for i := range tasks {
		task := tasks[i]
		s.Tasks[task.ID] = &task
		if task.ID > s.nextID {
			s.nextID = task.ID
		}
	}
	return s
}

func (s *TaskStore) List(_ context.Context) ([]model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]model.Task, 0, len(s.Tasks))
	for id := uint(1); id <= s.nextID; id++ {
		if task, ok := s.Tasks[id]; ok {
			out = append(out, *task)
		}
	}
	return out, nil
}

func (s *TaskStore) FindByID(_ context.Context, id uint) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	task, ok := s.Tasks[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *task
	return &cp, nil
}

func (s *TaskStore) Create(_ context.Context, task *model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.nextID++
	task.ID = s.nextID
	cp := *task
	s.Tasks[task.ID] = &cp
	return nil
}

func (s *TaskStore) Save(_ context.Context, task *model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.Tasks[task.ID]; !ok {
		return model.ErrNotFound
	}
	cp := *task
	s.Tasks[task.ID] = &cp
	return nil
}

func (s *TaskStore) Delete(_ context.Context, id uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	if s.DeleteErr != nil {
		return false, s.DeleteErr
	}
	if _, ok := s.Tasks[id]; !ok {
		return false, nil
	}
	delete(s.Tasks, id)
	return true, nil
}

// CategoryStore is an in-memory service.CategoryStore.
type CategoryStore struct {
	mu         sync.Mutex
	Categories map[uint]*model.Category
	nextID     uint
	Err        error
	// CountErr fails only SetTaskCount calls.
	CountErr   error
	CountCalls int
}

func NewCategoryStore(categories ...model.Category) *CategoryStore {
	s := &CategoryStore{Categories: make(map[uint]*model.Category)}
	for i := range categories {
		c := categories[i]
		s.Categories[c.ID] = &c
		if c.ID > s.nextID {
			s.nextID = c.ID
		}
	}
	return s
}

func (s *CategoryStore) List(_ context.Context) ([]model.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]model.Category, 0, len(s.Categories))
	for id := uint(1); id <= s.nextID; id++ {
		if c, ok := s.Categories[id]; ok {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *CategoryStore) FindByID(_ context.Context, id uint) (*model.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	c, ok := s.Categories[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *CategoryStore) FindByName(_ context.Context, name string) (*model.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, c := range s.Categories {
		if c.Name == name {
			cp := *c
			return &cp, nil
		}
	}
	return nil, model.ErrNotFound
}

func (s *CategoryStore) Create(_ context.Context, c *model.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.nextID++
	c.ID = s.nextID
	cp := *c
	s.Categories[c.ID] = &cp
	return nil
}

func (s *CategoryStore) Save(_ context.Context, c *model.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.Categories[c.ID]; !ok {
		return model.ErrNotFound
	}
	cp := *c
	s.Categories[c.ID] = &cp
	return nil
}

func (s *CategoryStore) Delete(_ context.Context, id uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	if _, ok := s.Categories[id]; !ok {
		return false, nil
	}
	delete(s.Categories, id)
	return true, nil
}

func (s *CategoryStore) SetTaskCount(_ context.Context, name string, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CountCalls++
	if s.Err != nil {
		return s.Err
	}
	if s.CountErr != nil {
		return s.CountErr
	}
	for _, c := range s.Categories {
		if c.Name == name {
			c.TaskCount = count
			return nil
		}
	}
	return model.ErrNotFound
}

// Count returns the cached count of the named category, or -1.
func (s *CategoryStore) Count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.Categories {
		if c.Name == name {
			return c.TaskCount
		}
	}
	return -1
}
