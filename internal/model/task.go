package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned by stores when an id does not resolve to a record.
var ErrNotFound = errors.New("not found")

// Priority ranks a task. The zero value is not valid; use PriorityMedium.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Priorities lists the valid priorities from lowest to highest.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// ParsePriority accepts a priority name in any case.
func ParsePriority(raw string) (Priority, error) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(raw))); p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, nil
	default:
		return "", fmt.Errorf("unknown priority %q", raw)
	}
}

func (p Priority) Valid() bool {
	_, err := ParsePriority(string(p))
	return err == nil
}

// Task represents a single to-do item.
type Task struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Title       string     `gorm:"not null" json:"title"`
	Description string     `json:"description"`
	Category    string     `gorm:"index" json:"category"`
	Priority    Priority   `gorm:"default:medium" json:"priority"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Completed   bool       `gorm:"default:false" json:"completed"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt"`
	UpdatedAt   time.Time  `json:"-"`
}

// SetCompleted flips the completion state and keeps CompletedAt in step with it.
func (t *Task) SetCompleted(done bool, at time.Time) {
	t.Completed = done
	if done {
		t.CompletedAt = &at
		return
	}
	t.CompletedAt = nil
}

// DueDateLayout is the date-only form accepted from users.
const DueDateLayout = "2006-01-02"

// ParseDueDate accepts a date (2006-01-02, in loc) or an RFC 3339 timestamp.
// An empty string means no due date.
func ParseDueDate(raw string, loc *time.Location) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.ParseInLocation(DueDateLayout, raw, loc); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid due date %q: use YYYY-MM-DD", raw)
	}
	return &t, nil
}
