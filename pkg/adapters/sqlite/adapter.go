// Package sqlite provides a SQLite target store for salesload, backed by
// the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/salesload/pkg/adapter"

	_ "modernc.org/sqlite" // sqlite driver
)

// Adapter implements adapter.Store for SQLite.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new SQLite adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger, SQLDialect: adapter.SQLite},
	}
}

// Connect opens the database file. Use ":memory:" or an empty path for an
// in-memory database.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	path := cfg.Path
	if path == "" {
		path = cfg.Database
	}
	if path == "" {
		path = ":memory:"
	}

	a.Logger.Debug("connecting to sqlite", slog.String("path", path))

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// An in-memory database exists per connection, and sqlite allows a
	// single writer anyway.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

// dsn stores time.Time values in sqlite's own text layout so timestamp
// columns read back as time.Time.
func dsn(path string) string {
	if path == ":memory:" {
		return ":memory:?_time_format=sqlite"
	}
	return "file:" + path + "?_time_format=sqlite"
}

// Ensure Adapter implements adapter.Store interface
var _ adapter.Store = (*Adapter)(nil)
