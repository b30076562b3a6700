// Package filter derives the visible task list from a snapshot and the
// current category, status and search criteria.
package filter

import (
	"fmt"
	"strings"

	"taskflow/internal/model"
)

// Status restricts tasks by completion.
type Status string

const (
	StatusAll       Status = "all"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// ParseStatus maps an empty string to StatusAll.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case "":
		return StatusAll, nil
	case StatusAll, StatusActive, StatusCompleted:
		return s, nil
	default:
		return "", fmt.Errorf("unknown status %q", raw)
	}
}

// Criteria is the set of active filters. An empty Category disables the
// category filter; an empty Query matches every task.
type Criteria struct {
	Category string
	Status   Status
	Query    string
}

// Match reports whether task satisfies every active predicate.
func (c Criteria) Match(task model.Task) bool {
	if c.Category != "" && task.Category != c.Category {
		return false
	}
	switch c.Status {
	case StatusActive:
		if task.Completed {
			return false
		}
	case StatusCompleted:
		if !task.Completed {
			return false
		}
	}
	if c.Query != "" {
		q := strings.ToLower(c.Query)
		if !strings.Contains(strings.ToLower(task.Title), q) &&
			!strings.Contains(strings.ToLower(task.Description), q) {
			return false
		}
	}
	return true
}

// Visible returns the tasks matching c in their original order.
func Visible(tasks []model.Task, c Criteria) []model.Task {
	out := make([]model.Task, 0, len(tasks))
	for _, task := range tasks {
		if c.Match(task) {
			out = append(out, task)
		}
	}
	return out
}

// Counts summarizes a snapshot for tab and sidebar badges.
type Counts struct {
	All        int            `json:"all"`
	Active     int            `json:"active"`
	Completed  int            `json:"completed"`
	ByCategory map[string]int `json:"byCategory"`
}

// Count tallies tasks by status and by the names of the given categories.
// Tasks whose category is not listed only count toward the status totals.
func Count(tasks []model.Task, categories []model.Category) Counts {
	counts := Counts{ByCategory: make(map[string]int, len(categories))}
	for _, category := range categories {
		counts.ByCategory[category.Name] = 0
	}
	for _, task := range tasks {
		counts.All++
		if task.Completed {
			counts.Completed++
		} else {
			counts.Active++
		}
		if _, ok := counts.ByCategory[task.Category]; ok {
			counts.ByCategory[task.Category]++
		}
	}
	return counts
}

// EmptyState is the message shown when nothing is visible.
type EmptyState struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (c Criteria) EmptyState() EmptyState {
	description := "Start by creating your first task to get organized and productive"
	if c.Query != "" {
		return EmptyState{Title: "No tasks match your search", Description: "Try adjusting your search terms or filters"}
	}
	switch {
	case c.Category != "":
		return EmptyState{Title: "No tasks in " + c.Category, Description: description}
	case c.Status == StatusCompleted:
		return EmptyState{Title: "No completed tasks yet", Description: description}
	default:
		return EmptyState{Title: "No tasks found", Description: description}
	}
}
