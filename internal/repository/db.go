package repository

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"taskflow/internal/model"
)

// DefaultDSN is the database file used when none is configured.
const DefaultDSN = "taskflow.db"

// Options tunes how the database is opened.
type Options struct {
	// Logger receives gorm's slow-query and error logs. Defaults to the standard logger.
	Logger *log.Logger
	// Debug logs every statement.
	Debug bool
}

// NewDB opens the SQLite task store and migrates the task and category tables.
func NewDB(dsn string, opts Options) (*gorm.DB, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	path, inMemory := sqlitePath(dsn)
	if !inMemory {
		if err := ensureDir(path); err != nil {
			return nil, err
		}
	}

	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
	level := logger.Warn
	if opts.Debug {
		level = logger.Info
	}
	dbLogger := logger.New(opts.Logger, logger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})

	db, err := gorm.Open(sqlite.Open(withPragmas(dsn, inMemory)), &gorm.Config{Logger: dbLogger})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if inMemory {
		// Every pooled connection would otherwise see its own empty database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&model.Category{}, &model.Task{}); err != nil {
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	return db, nil
}

// MemoryDSN names a private in-memory database.
func MemoryDSN(name string) string {
	clean := strings.NewReplacer("/", "_", " ", "_", "?", "_", "&", "_").Replace(name)
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", clean)
}

// sqlitePath returns the file behind dsn, or inMemory for memory databases.
func sqlitePath(dsn string) (path string, inMemory bool) {
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return "", true
	}
	path = strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path, false
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create db dir %q: %w", dir, err)
	}
	return nil
}

// withPragmas adds the connection settings the store relies on unless the
// DSN already sets them. WAL only applies to file databases.
func withPragmas(dsn string, inMemory bool) string {
	base, rawQuery, _ := strings.Cut(dsn, "?")
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return dsn
	}
	set := func(key, value string) {
		if query.Get(key) == "" {
			query.Set(key, value)
		}
	}
	set("_busy_timeout", "5000")
	set("_foreign_keys", "on")
	if !inMemory {
		set("_journal_mode", "WAL")
	}
	if !strings.HasPrefix(base, "file:") {
		base = "file:" + base
	}
	return base + "?" + query.Encode()
}
