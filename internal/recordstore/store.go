// Package recordstore keeps tasks and categories in Azure Table Storage.
package recordstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"taskflow/internal/model"
)

// Store opens the task and category tables on one storage account.
type Store struct {
	svc        *aztables.ServiceClient
	tasks      *TaskTable
	categories *CategoryTable
}

// New creates a Store from a storage connection string.
func New(connStr, tasksTable, categoriesTable string) (*Store, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute,
				RetryDelay:    time.Second,
				MaxRetryDelay: 15 * time.Second,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, fmt.Errorf("open table service: %w", err)
	}
	return &Store{
		svc:        svc,
		tasks:      &TaskTable{name: tasksTable, client: svc.NewClient(tasksTable)},
		categories: &CategoryTable{name: categoriesTable, client: svc.NewClient(categoriesTable)},
	}, nil
}

// EnsureTables creates both tables when missing.
func (s *Store) EnsureTables(ctx context.Context) error {
	for _, name := range []string{s.tasks.name, s.categories.name} {
		if _, err := s.svc.CreateTable(ctx, name, nil); err != nil && !hasStatus(err, http.StatusConflict) {
			return fmt.Errorf("create table %s: %w", name, err)
		}
	}
	return nil
}

func (s *Store) Tasks() *TaskTable { return s.tasks }

func (s *Store) Categories() *CategoryTable { return s.categories }

// TaskTable implements the task store on one table partition.
type TaskTable struct {
	name   string
	client *aztables.Client
	// serializes id allocation within this process
	mu sync.Mutex
}

func (t *TaskTable) List(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	err := listPartition(ctx, t.client, "", func(data []byte) error {
		task, err := decodeTask(data)
		if err != nil {
			return err
		}
		tasks = append(tasks, task)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, nil
}

func (t *TaskTable) FindByID(ctx context.Context, id uint) (*model.Task, error) {
	resp, err := t.client.GetEntity(ctx, partitionKey, rowKey(id), nil)
	if err != nil {
		return nil, fmt.Errorf("find task %d: %w", id, notFound(err))
	}
	task, err := decodeTask(resp.Value)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (t *TaskTable) Create(ctx context.Context, task *model.Task) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, err := nextID(ctx, t.client)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	task.ID = id
	payload, err := encodeTask(*task)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	if _, err := t.client.AddEntity(ctx, payload, nil); err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (t *TaskTable) Save(ctx context.Context, task *model.Task) error {
	payload, err := encodeTask(*task)
	if err != nil {
		return fmt.Errorf("save task %d: %w", task.ID, err)
	}
	if err := replace(ctx, t.client, payload); err != nil {
		return fmt.Errorf("save task %d: %w", task.ID, err)
	}
	return nil
}

func (t *TaskTable) Delete(ctx context.Context, id uint) (bool, error) {
	return deleteRow(ctx, t.client, id)
}

// CategoryTable implements the category store on one table partition.
type CategoryTable struct {
	name   string
	client *aztables.Client
	mu     sync.Mutex
}

func (c *CategoryTable) List(ctx context.Context) ([]model.Category, error) {
	return c.query(ctx, "")
}

func (c *CategoryTable) query(ctx context.Context, extra string) ([]model.Category, error) {
	var categories []model.Category
	err := listPartition(ctx, c.client, extra, func(data []byte) error {
		category, err := decodeCategory(data)
		if err != nil {
			return err
		}
		categories = append(categories, category)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].ID < categories[j].ID })
	return categories, nil
}

func (c *CategoryTable) FindByID(ctx context.Context, id uint) (*model.Category, error) {
	resp, err := c.client.GetEntity(ctx, partitionKey, rowKey(id), nil)
	if err != nil {
		return nil, fmt.Errorf("find category %d: %w", id, notFound(err))
	}
	category, err := decodeCategory(resp.Value)
	if err != nil {
		return nil, err
	}
	return &category, nil
}

func (c *CategoryTable) FindByName(ctx context.Context, name string) (*model.Category, error) {
	matches, err := c.query(ctx, "Name eq "+quote(name))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("find category %q: %w", name, model.ErrNotFound)
	}
	return &matches[0], nil
}

func (c *CategoryTable) Create(ctx context.Context, category *model.Category) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, err := nextID(ctx, c.client)
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	category.ID = id
	payload, err := encodeCategory(*category)
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	if _, err := c.client.AddEntity(ctx, payload, nil); err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

func (c *CategoryTable) Save(ctx context.Context, category *model.Category) error {
	payload, err := encodeCategory(*category)
	if err != nil {
		return fmt.Errorf("save category %d: %w", category.ID, err)
	}
	if err := replace(ctx, c.client, payload); err != nil {
		return fmt.Errorf("save category %d: %w", category.ID, err)
	}
	return nil
}

func (c *CategoryTable) Delete(ctx context.Context, id uint) (bool, error) {
	return deleteRow(ctx, c.client, id)
}

func (c *CategoryTable) SetTaskCount(ctx context.Context, name string, count int) error {
	category, err := c.FindByName(ctx, name)
	if err != nil {
		return fmt.Errorf("set task count: %w", err)
	}
	payload, err := encodeCountUpdate(category.ID, count)
	if err != nil {
		return err
	}
	et := azcore.ETagAny
	_, err = c.client.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeMerge})
	if err != nil {
		return fmt.Errorf("set task count %q: %w", name, notFound(err))
	}
	return nil
}

func listPartition(ctx context.Context, client *aztables.Client, extra string, fn func([]byte) error) error {
	filter := "PartitionKey eq " + quote(partitionKey)
	if extra != "" {
		filter += " and " + extra
	}
	pager := client.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, raw := range resp.Entities {
			if err := fn(raw); err != nil {
				return err
			}
		}
	}
	return nil
}

// nextID returns one past the highest row key in the partition.
func nextID(ctx context.Context, client *aztables.Client) (uint, error) {
	filter := "PartitionKey eq " + quote(partitionKey)
	sel := "RowKey"
	pager := client.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter, Select: &sel})
	var maxID uint
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return 0, err
		}
		for _, raw := range resp.Entities {
			var keys entityKeys
			if err := unmarshalKeys(raw, &keys); err != nil {
				return 0, err
			}
			id, err := parseRowKey(keys.RowKey)
			if err != nil {
				return 0, err
			}
			if id > maxID {
				maxID = id
			}
		}
	}
	return maxID + 1, nil
}

func replace(ctx context.Context, client *aztables.Client, payload []byte) error {
	et := azcore.ETagAny
	_, err := client.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeReplace})
	return notFound(err)
}

func deleteRow(ctx context.Context, client *aztables.Client, id uint) (bool, error) {
	_, err := client.DeleteEntity(ctx, partitionKey, rowKey(id), nil)
	if err != nil {
		if hasStatus(err, http.StatusNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("delete row %d: %w", id, err)
	}
	return true, nil
}

func notFound(err error) error {
	if hasStatus(err, http.StatusNotFound) {
		return model.ErrNotFound
	}
	return err
}

func hasStatus(err error, code int) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == code
}

// quote renders an OData string literal.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
