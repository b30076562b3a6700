// Package cache puts a Redis read-through layer in front of the task and
// category stores. Only list reads are cached; every write evicts.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"taskflow/internal/model"
)

const (
	tasksKey      = "taskflow:tasks"
	categoriesKey = "taskflow:categories"
)

type taskBackend interface {
	List(ctx context.Context) ([]model.Task, error)
	FindByID(ctx context.Context, id uint) (*model.Task, error)
	Create(ctx context.Context, task *model.Task) error
	Save(ctx context.Context, task *model.Task) error
	Delete(ctx context.Context, id uint) (bool, error)
}

type categoryBackend interface {
	List(ctx context.Context) ([]model.Category, error)
	FindByID(ctx context.Context, id uint) (*model.Category, error)
	FindByName(ctx context.Context, name string) (*model.Category, error)
	Create(ctx context.Context, category *model.Category) error
	Save(ctx context.Context, category *model.Category) error
	Delete(ctx context.Context, id uint) (bool, error)
	SetTaskCount(ctx context.Context, name string, count int) error
}

// Tasks wraps a task store with a cached List.
type Tasks struct {
	base  taskBackend
	redis *redis.Client
	ttl   time.Duration
}

func NewTasks(base taskBackend, client *redis.Client, ttl time.Duration) *Tasks {
	if base == nil {
		panic("cache.NewTasks: base store is nil")
	}
	return &Tasks{base: base, redis: client, ttl: clampTTL(ttl)}
}

func (c *Tasks) List(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	if load(ctx, c.redis, tasksKey, &tasks) {
		return tasks, nil
	}
	tasks, err := c.base.List(ctx)
	if err != nil {
		return nil, err
	}
	store(ctx, c.redis, tasksKey, tasks, c.ttl)
	return tasks, nil
}

func (c *Tasks) FindByID(ctx context.Context, id uint) (*model.Task, error) {
	return c.base.FindByID(ctx, id)
}

func (c *Tasks) Create(ctx context.Context, task *model.Task) error {
	defer evict(ctx, c.redis, tasksKey)
	return c.base.Create(ctx, task)
}

func (c *Tasks) Save(ctx context.Context, task *model.Task) error {
	defer evict(ctx, c.redis, tasksKey)
	return c.base.Save(ctx, task)
}

func (c *Tasks) Delete(ctx context.Context, id uint) (bool, error) {
	defer evict(ctx, c.redis, tasksKey)
	return c.base.Delete(ctx, id)
}

// Categories wraps a category store with a cached List.
type Categories struct {
	base  categoryBackend
	redis *redis.Client
	ttl   time.Duration
}

func NewCategories(base categoryBackend, client *redis.Client, ttl time.Duration) *Categories {
	if base == nil {
		panic("cache.NewCategories: base store is nil")
	}
	return &Categories{base: base, redis: client, ttl: clampTTL(ttl)}
}

func (c *Categories) List(ctx context.Context) ([]model.Category, error) {
	var categories []model.Category
	if load(ctx, c.redis, categoriesKey, &categories) {
		return categories, nil
	}
	categories, err := c.base.List(ctx)
	if err != nil {
		return nil, err
	}
	store(ctx, c.redis, categoriesKey, categories, c.ttl)
	return categories, nil
}

func (c *Categories) FindByID(ctx context.Context, id uint) (*model.Category, error) {
	return c.base.FindByID(ctx, id)
}

func (c *Categories) FindByName(ctx context.Context, name string) (*model.Category, error) {
	return c.base.FindByName(ctx, name)
}

func (c *Categories) Create(ctx context.Context, category *model.Category) error {
	defer evict(ctx, c.redis, categoriesKey)
	return c.base.Create(ctx, category)
}

func (c *Categories) Save(ctx context.Context, category *model.Category) error {
	defer evict(ctx, c.redis, categoriesKey)
	return c.base.Save(ctx, category)
}

func (c *Categories) Delete(ctx context.Context, id uint) (bool, error) {
	defer evict(ctx, c.redis, categoriesKey)
	return c.base.Delete(ctx, id)
}

func (c *Categories) SetTaskCount(ctx context.Context, name string, count int) error {
	defer evict(ctx, c.redis, categoriesKey)
	return c.base.SetTaskCount(ctx, name, count)
}

func clampTTL(ttl time.Duration) time.Duration {
	if ttl < 0 {
		return 0
	}
	return ttl
}

// load reports a hit. On redis or decode errors the key is dropped and the
// caller falls back to the backing store.
func load(ctx context.Context, client *redis.Client, key string, dst any) bool {
	if client == nil {
		return false
	}
	data, err := client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.WithError(err).WithField("key", key).Debug("cache read failed")
			_ = client.Del(ctx, key).Err()
		}
		return false
	}
	if err := sonic.Unmarshal(data, dst); err != nil {
		_ = client.Del(ctx, key).Err()
		return false
	}
	return true
}

func store(ctx context.Context, client *redis.Client, key string, v any, ttl time.Duration) {
	if client == nil || ttl == 0 {
		return
	}
	data, err := sonic.Marshal(v)
	if err != nil {
		return
	}
	if err := client.Set(ctx, key, data, ttl).Err(); err != nil {
		log.WithError(err).WithField("key", key).Debug("cache write failed")
	}
}

func evict(ctx context.Context, client *redis.Client, key string) {
	if client == nil {
		return
	}
	_, _ = client.Del(ctx, key).Result()
}
