package recordstore

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bytedance/sonic"

	"taskflow/internal/model"
)

const (
	partitionKey = "taskflow"

	edmDateTime = "Edm.DateTime"
)

// Custom attributes carry a _c suffix in the remote schema; the translation
// happens here and nowhere else.
type entityKeys struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
}

type taskEntity struct {
	entityKeys
	Title           string     `json:"title_c"`
	Description     string     `json:"description_c"`
	Category        string     `json:"category_c"`
	Priority        string     `json:"priority_c"`
	DueDate         *time.Time `json:"due_date_c,omitempty"`
	DueDateType     string     `json:"due_date_c@odata.type,omitempty"`
	Completed       bool       `json:"completed_c"`
	CreatedAt       time.Time  `json:"created_at_c"`
	CreatedAtType   string     `json:"created_at_c@odata.type,omitempty"`
	CompletedAt     *time.Time `json:"completed_at_c,omitempty"`
	CompletedAtType string     `json:"completed_at_c@odata.type,omitempty"`
}

type categoryEntity struct {
	entityKeys
	Name      string `json:"Name"`
	Color     string `json:"color_c"`
	TaskCount int    `json:"task_count_c"`
}

type categoryCountUpdate struct {
	entityKeys
	TaskCount int `json:"task_count_c"`
}

func rowKey(id uint) string {
	return fmt.Sprintf("%010d", id)
}

func parseRowKey(rk string) (uint, error) {
	id, err := strconv.ParseUint(rk, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse row key %q: %w", rk, err)
	}
	return uint(id), nil
}

func encodeTask(task model.Task) ([]byte, error) {
	ent := taskEntity{
		entityKeys:    entityKeys{PartitionKey: partitionKey, RowKey: rowKey(task.ID)},
		Title:         task.Title,
		Description:   task.Description,
		Category:      task.Category,
		Priority:      string(task.Priority),
		Completed:     task.Completed,
		CreatedAt:     task.CreatedAt.UTC(),
		CreatedAtType: edmDateTime,
	}
	if task.DueDate != nil {
		due := task.DueDate.UTC()
		ent.DueDate, ent.DueDateType = &due, edmDateTime
	}
	if task.CompletedAt != nil {
		at := task.CompletedAt.UTC()
		ent.CompletedAt, ent.CompletedAtType = &at, edmDateTime
	}
	return sonic.Marshal(ent)
}

func decodeTask(data []byte) (model.Task, error) {
	var ent taskEntity
	if err := sonic.Unmarshal(data, &ent); err != nil {
		return model.Task{}, fmt.Errorf("decode task entity: %w", err)
	}
	id, err := parseRowKey(ent.RowKey)
	if err != nil {
		return model.Task{}, err
	}
	priority, err := model.ParsePriority(ent.Priority)
	if err != nil {
		priority = model.PriorityMedium
	}
	task := model.Task{
		ID:          id,
		Title:       ent.Title,
		Description: ent.Description,
		Category:    ent.Category,
		Priority:    priority,
		DueDate:     ent.DueDate,
		Completed:   ent.Completed,
		CreatedAt:   ent.CreatedAt,
		CompletedAt: ent.CompletedAt,
	}
	// Rows written by other clients may break the pairing; repair it on read.
	switch {
	case task.Completed && task.CompletedAt == nil:
		at := task.CreatedAt
		task.CompletedAt = &at
	case !task.Completed:
		task.CompletedAt = nil
	}
	return task, nil
}

func encodeCategory(c model.Category) ([]byte, error) {
	return sonic.Marshal(categoryEntity{
		entityKeys: entityKeys{PartitionKey: partitionKey, RowKey: rowKey(c.ID)},
		Name:       c.Name,
		Color:      c.Color,
		TaskCount:  c.TaskCount,
	})
}

func decodeCategory(data []byte) (model.Category, error) {
	var ent categoryEntity
	if err := sonic.Unmarshal(data, &ent); err != nil {
		return model.Category{}, fmt.Errorf("decode category entity: %w", err)
	}
	id, err := parseRowKey(ent.RowKey)
	if err != nil {
		return model.Category{}, err
	}
	return model.Category{ID: id, Name: ent.Name, Color: ent.Color, TaskCount: ent.TaskCount}, nil
}

func encodeCountUpdate(id uint, count int) ([]byte, error) {
	return sonic.Marshal(categoryCountUpdate{
		entityKeys: entityKeys{PartitionKey: partitionKey, RowKey: rowKey(id)},
		TaskCount:  count,
	})
}

func unmarshalKeys(data []byte, keys *entityKeys) error {
	if err := sonic.Unmarshal(data, keys); err != nil {
		return fmt.Errorf("decode entity keys: %w", err)
	}
	return nil
}
