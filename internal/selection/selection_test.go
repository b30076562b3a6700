package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"taskflow/internal/model"
)

func view() []model.Task {
	return []model.Task{
		{ID: 3, Completed: false},
		{ID: 1, Completed: true},
		{ID: 7, Completed: false},
	}
}

func TestSelectDeselect(t *testing.T) {
	m := New()
	m.Select(3)
	m.Select(1)
	m.Select(3)
	assert.Equal(t, []uint{1, 3}, m.IDs())

	m.Deselect(3)
	assert.Equal(t, []uint{1}, m.IDs())
	assert.False(t, m.IsSelected(3))

	assert.True(t, m.Toggle(9))
	assert.False(t, m.Toggle(9))
}

func TestSelectAllThenClear(t *testing.T) {
	m := New()
	m.Select(100)
	m.SelectAll(view())
	assert.Equal(t, []uint{1, 3, 7}, m.IDs(), "select all replaces prior selection")

	m.Clear()
	assert.Empty(t, m.IDs())
	assert.Equal(t, 0, m.Summarize(view()).Count)
}

func TestSummarize(t *testing.T) {
	m := New()
	s := m.Summarize(view())
	assert.Equal(t, Summary{Total: 3}, s)

	m.Select(1)
	m.Select(3)
	s = m.Summarize(view())
	assert.Equal(t, 2, s.Count)
	assert.Equal(t, 1, s.CompletedCount)
	assert.Equal(t, 1, s.ActiveCount)
	assert.False(t, s.AllSelected)

	m.Select(7)
	assert.True(t, m.Summarize(view()).AllSelected)
}

func TestSummarize_EmptyViewIsNeverAllSelected(t *testing.T) {
	m := New()
	m.Select(1)
	s := m.Summarize(nil)
	assert.False(t, s.AllSelected)
	assert.Equal(t, 0, s.Count, "ids outside the view are not counted")
}

func TestRetainAndPartitions(t *testing.T) {
	m := New()
	m.Select(1)
	m.Select(7)
	m.Select(42)

	assert.Equal(t, []uint{7}, m.ActiveIDs(view()))
	assert.Equal(t, []uint{1}, m.CompletedIDs(view()))

	m.Retain(view())
	assert.Equal(t, []uint{1, 7}, m.IDs())

	selected := m.Selected(view())
	assert.Len(t, selected, 2)
	assert.Equal(t, uint(1), selected[0].ID, "selected tasks follow view order")
	assert.Equal(t, uint(7), selected[1].ID)
}
