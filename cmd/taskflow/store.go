package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"taskflow/internal/cache"
	"taskflow/internal/config"
	"taskflow/internal/recordstore"
	"taskflow/internal/repository"
	"taskflow/internal/service"
)

type stores struct {
	tasks      service.TaskStore
	categories service.CategoryStore
	closers    []func() error
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			log.WithError(err).Warn("close store")
		}
	}
}

// openStores opens the configured backend and puts the Redis cache in front
// of it when REDIS_URL is set.
func openStores(ctx context.Context, cfg config.Config, logger *log.Logger) (*stores, error) {
	s := &stores{}
	switch cfg.Backend {
	case config.BackendTables:
		rs, err := recordstore.New(cfg.TablesConnectionString, cfg.TasksTable, cfg.CategoriesTable)
		if err != nil {
			return nil, fmt.Errorf("tables: %w", err)
		}
		if err := rs.EnsureTables(ctx); err != nil {
			return nil, fmt.Errorf("tables: %w", err)
		}
		s.tasks, s.categories = rs.Tasks(), rs.Categories()
		logger.WithField("tasks_table", cfg.TasksTable).Info("using table storage")
	default:
		db, err := repository.NewDB(cfg.DatabaseURL, repository.Options{Logger: logger, Debug: cfg.Debug})
		if err != nil {
			return nil, fmt.Errorf("db: %w", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			s.closers = append(s.closers, sqlDB.Close)
		}
		s.tasks = repository.NewTaskRepository(db)
		s.categories = repository.NewCategoryRepository(db)
		logger.WithField("database", cfg.DatabaseURL).Info("using sqlite")
	}

	if cfg.RedisURL == "" {
		return s, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("redis unreachable, reads fall through to the store")
	}
	s.closers = append(s.closers, client.Close)
	s.tasks = cache.NewTasks(s.tasks, client, cfg.CacheTTL)
	s.categories = cache.NewCategories(s.categories, client, cfg.CacheTTL)
	logger.WithField("ttl", cfg.CacheTTL).Info("list cache enabled")
	return s, nil
}
