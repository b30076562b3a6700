// Package selection tracks which tasks are checked for bulk actions.
package selection

import (
	"sort"

	"taskflow/internal/model"
)

// Manager holds the selected task ids. The zero value is not usable; call New.
type Manager struct {
	ids map[uint]struct{}
}

func New() *Manager {
	return &Manager{ids: make(map[uint]struct{})}
}

func (m *Manager) Select(id uint) {
	m.ids[id] = struct{}{}
}

func (m *Manager) Deselect(id uint) {
	delete(m.ids, id)
}

// Toggle flips id and reports whether it is now selected.
func (m *Manager) Toggle(id uint) bool {
	if m.IsSelected(id) {
		m.Deselect(id)
		return false
	}
	m.Select(id)
	return true
}

// SelectAll replaces the selection with every visible task.
func (m *Manager) SelectAll(visible []model.Task) {
	m.ids = make(map[uint]struct{}, len(visible))
	for _, task := range visible {
		m.ids[task.ID] = struct{}{}
	}
}

func (m *Manager) Clear() {
	m.ids = make(map[uint]struct{})
}

func (m *Manager) IsSelected(id uint) bool {
	_, ok := m.ids[id]
	return ok
}

// Len counts selected ids, including ones outside the current view.
func (m *Manager) Len() int {
	return len(m.ids)
}

// IDs returns the selected ids in ascending order.
func (m *Manager) IDs() []uint {
	out := make([]uint, 0, len(m.ids))
	for id := range m.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Retain drops every selected id that is not in visible.
func (m *Manager) Retain(visible []model.Task) {
	keep := make(map[uint]struct{}, len(m.ids))
	for _, task := range visible {
		if _, ok := m.ids[task.ID]; ok {
			keep[task.ID] = struct{}{}
		}
	}
	m.ids = keep
}

// Selected returns the selected tasks among visible, in view order.
func (m *Manager) Selected(visible []model.Task) []model.Task {
	var out []model.Task
	for _, task := range visible {
		if m.IsSelected(task.ID) {
			out = append(out, task)
		}
	}
	return out
}

// ActiveIDs returns the selected, not yet completed ids among visible.
func (m *Manager) ActiveIDs(visible []model.Task) []uint {
	var out []uint
	for _, task := range m.Selected(visible) {
		if !task.Completed {
			out = append(out, task.ID)
		}
	}
	return out
}

// CompletedIDs returns the selected, completed ids among visible.
func (m *Manager) CompletedIDs(visible []model.Task) []uint {
	var out []uint
	for _, task := range m.Selected(visible) {
		if task.Completed {
			out = append(out, task.ID)
		}
	}
	return out
}

// Summary holds the derived counters shown by the bulk toolbar.
type Summary struct {
	Count          int  `json:"count"`
	Total          int  `json:"total"`
	AllSelected    bool `json:"allSelected"`
	CompletedCount int  `json:"completedCount"`
	ActiveCount    int  `json:"activeCount"`
}

// Summarize counts the selection against the visible tasks.
func (m *Manager) Summarize(visible []model.Task) Summary {
	s := Summary{Total: len(visible)}
	for _, task := range m.Selected(visible) {
		s.Count++
		if task.Completed {
			s.CompletedCount++
		}
	}
	s.ActiveCount = s.Count - s.CompletedCount
	s.AllSelected = s.Count == s.Total && s.Total > 0
	return s
}
