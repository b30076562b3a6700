package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"TASKFLOW_CONFIG", "TASKFLOW_BACKEND", "DATABASE_URL", "STORAGE_CONNECTION_STRING",
	"TASKS_TABLE", "CATEGORIES_TABLE", "REDIS_URL", "CACHE_TTL", "LISTEN_ADDR",
	"TELEGRAM_TOKEN", "ALLOWED_CHAT_ID", "REPORT_TIME", "COUNT_SYNC_INTERVAL",
	"SEARCH_DEBOUNCE", "DEBUG",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, "taskflow.db", cfg.DatabaseURL)
	assert.Equal(t, 300*time.Millisecond, cfg.SearchDebounce)
	assert.Equal(t, "09:00", cfg.ReportTime)
	assert.Empty(t, cfg.TelegramToken)
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "taskflow.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend = "tables"
tables_connection_string = "UseDevelopmentStorage=true"
redis_url = "redis://localhost:6379/0"
cache_ttl = "30s"
listen_addr = ":9000"
allowed_chat_id = 42
search_debounce = "150ms"
debug = true
`), 0o644))
	t.Setenv("TASKFLOW_CONFIG", path)
	t.Setenv("LISTEN_ADDR", ":9100")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendTables, cfg.Backend)
	assert.Equal(t, "UseDevelopmentStorage=true", cfg.TablesConnectionString)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, ":9100", cfg.ListenAddr, "env wins over file")
	assert.Equal(t, int64(42), cfg.AllowedChatID)
	assert.Equal(t, 150*time.Millisecond, cfg.SearchDebounce)
	assert.True(t, cfg.Debug)
}

func TestLoadRejectsBadValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("CACHE_TTL", "soon")
	_, err := Load()
	assert.ErrorContains(t, err, "CACHE_TTL")

	clearEnv(t)
	t.Setenv("TASKFLOW_BACKEND", "tables")
	_, err = Load()
	assert.ErrorContains(t, err, "STORAGE_CONNECTION_STRING")

	clearEnv(t)
	t.Setenv("TASKFLOW_BACKEND", "mongo")
	_, err = Load()
	assert.Error(t, err)

	clearEnv(t)
	t.Setenv("TASKFLOW_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))
	_, err = Load()
	assert.Error(t, err)
}
