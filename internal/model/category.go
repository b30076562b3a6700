package model

import "time"

// DefaultCategoryColor is used when a category is created without a color.
const DefaultCategoryColor = "#6366F1"

// Category groups tasks by name (work, errands, health, etc.).
// TaskCount is a cached projection of the task collection, never authoritative.
type Category struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"`
	Color     string    `json:"color"`
	TaskCount int       `gorm:"default:0" json:"taskCount"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}
