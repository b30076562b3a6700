package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	BackendSQLite = "sqlite"
	BackendTables = "tables"
)

// Config keeps runtime settings for the server, bot and scheduler.
type Config struct {
	Backend                string
	DatabaseURL            string
	TablesConnectionString string
	TasksTable             string
	CategoriesTable        string
	RedisURL               string
	CacheTTL               time.Duration
	ListenAddr             string
	TelegramToken          string
	AllowedChatID          int64
	ReportTime             string
	CountSyncInterval      time.Duration
	SearchDebounce         time.Duration
	Debug                  bool
}

// fileConfig mirrors the TOML file. Durations are strings such as "5m".
type fileConfig struct {
	Backend                string `toml:"backend"`
	DatabaseURL            string `toml:"database_url"`
	TablesConnectionString string `toml:"tables_connection_string"`
	TasksTable             string `toml:"tasks_table"`
	CategoriesTable        string `toml:"categories_table"`
	RedisURL               string `toml:"redis_url"`
	CacheTTL               string `toml:"cache_ttl"`
	ListenAddr             string `toml:"listen_addr"`
	TelegramToken          string `toml:"telegram_token"`
	AllowedChatID          int64  `toml:"allowed_chat_id"`
	ReportTime             string `toml:"report_time"`
	CountSyncInterval      string `toml:"count_sync_interval"`
	SearchDebounce         string `toml:"search_debounce"`
	Debug                  bool   `toml:"debug"`
}

func defaults() Config {
	return Config{
		Backend:           BackendSQLite,
		DatabaseURL:       "taskflow.db",
		TasksTable:        "Tasks",
		CategoriesTable:   "Categories",
		CacheTTL:          time.Minute,
		ListenAddr:        ":8080",
		ReportTime:        "09:00",
		CountSyncInterval: 10 * time.Minute,
		SearchDebounce:    300 * time.Millisecond,
	}
}

// Load reads defaults, then the TOML file named by TASKFLOW_CONFIG, then
// environment variables. Later sources win.
func Load() (Config, error) {
	cfg := defaults()
	if path := strings.TrimSpace(os.Getenv("TASKFLOW_CONFIG")); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return cfg, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.validate()
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&cfg.Backend, fc.Backend)
	setString(&cfg.DatabaseURL, fc.DatabaseURL)
	setString(&cfg.TablesConnectionString, fc.TablesConnectionString)
	setString(&cfg.TasksTable, fc.TasksTable)
	setString(&cfg.CategoriesTable, fc.CategoriesTable)
	setString(&cfg.RedisURL, fc.RedisURL)
	setString(&cfg.ListenAddr, fc.ListenAddr)
	setString(&cfg.TelegramToken, fc.TelegramToken)
	setString(&cfg.ReportTime, fc.ReportTime)
	if fc.AllowedChatID != 0 {
		cfg.AllowedChatID = fc.AllowedChatID
	}
	cfg.Debug = cfg.Debug || fc.Debug

	for _, d := range []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"cache_ttl", fc.CacheTTL, &cfg.CacheTTL},
		{"count_sync_interval", fc.CountSyncInterval, &cfg.CountSyncInterval},
		{"search_debounce", fc.SearchDebounce, &cfg.SearchDebounce},
	} {
		if err := setDuration(d.dst, d.key, d.raw); err != nil {
			return err
		}
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Backend, os.Getenv("TASKFLOW_BACKEND"))
	setString(&cfg.DatabaseURL, os.Getenv("DATABASE_URL"))
	setString(&cfg.TablesConnectionString, os.Getenv("STORAGE_CONNECTION_STRING"))
	setString(&cfg.TasksTable, os.Getenv("TASKS_TABLE"))
	setString(&cfg.CategoriesTable, os.Getenv("CATEGORIES_TABLE"))
	setString(&cfg.RedisURL, os.Getenv("REDIS_URL"))
	setString(&cfg.ListenAddr, os.Getenv("LISTEN_ADDR"))
	setString(&cfg.TelegramToken, os.Getenv("TELEGRAM_TOKEN"))
	setString(&cfg.ReportTime, os.Getenv("REPORT_TIME"))

	if raw := strings.TrimSpace(os.Getenv("ALLOWED_CHAT_ID")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid ALLOWED_CHAT_ID: %w", err)
		}
		cfg.AllowedChatID = id
	}
	if raw := strings.TrimSpace(os.Getenv("DEBUG")); raw != "" {
		dbg, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid DEBUG: %w", err)
		}
		cfg.Debug = dbg
	}
	if err := setDuration(&cfg.CacheTTL, "CACHE_TTL", os.Getenv("CACHE_TTL")); err != nil {
		return err
	}
	if err := setDuration(&cfg.CountSyncInterval, "COUNT_SYNC_INTERVAL", os.Getenv("COUNT_SYNC_INTERVAL")); err != nil {
		return err
	}
	return setDuration(&cfg.SearchDebounce, "SEARCH_DEBOUNCE", os.Getenv("SEARCH_DEBOUNCE"))
}

func (c Config) validate() error {
	switch c.Backend {
	case BackendSQLite:
	case BackendTables:
		if c.TablesConnectionString == "" {
			return errors.New("STORAGE_CONNECTION_STRING is required for the tables backend")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.SearchDebounce <= 0 {
		return errors.New("search debounce must be positive")
	}
	return nil
}

func setString(dst *string, raw string) {
	if v := strings.TrimSpace(raw); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return fmt.Errorf("invalid %s %q", key, raw)
	}
	*dst = d
	return nil
}
