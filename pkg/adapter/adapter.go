// Package adapter provides the target store contract used by the
// incremental loader and the exporter.
//
// This package contains the public contract that all store adapters must implement
// plus BaseSQLAdapter, a database/sql implementation shared by every adapter.
// Concrete adapter implementations are in pkg/adapters/ subdirectories.
package adapter

import (
	"context"

	"github.com/leapstack-labs/salesload/pkg/core"
)

// Config holds configuration for connecting to a target store.
type Config struct {
	Type     string
	Path     string
	Host     string
	Port     int
	Instance string
	Database string
	Username string
	Password string
	Schema   string
	Options  map[string]string
	Params   map[string]any
}

// Rows is a fully materialized result set.
type Rows struct {
	Columns []string
	Values  [][]any
}

// Store is the relational target of the pipeline. Every operation acquires
// its own connection and releases it before returning.
type Store interface {
	// Connect opens the connection pool using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the connection pool and releases resources.
	Close() error

	// Exec executes a SQL statement that doesn't return rows.
	Exec(ctx context.Context, sql string) error

	// TableExists reports whether the table is present in the store.
	TableExists(ctx context.Context, table core.Table) (bool, error)

	// CreateTable creates the table if it does not exist.
	CreateTable(ctx context.Context, table core.Table) error

	// SelectColumns returns the values of the named columns for every row.
	SelectColumns(ctx context.Context, table core.Table, columns []string) ([][]any, error)

	// Append inserts rows in a single transaction and returns the number written.
	// The transaction is committed before Append returns successfully; a failed
	// commit is returned as an error.
	Append(ctx context.Context, table core.Table, rows [][]any) (int64, error)

	// MaxKey returns the highest surrogate key in the table, or 0 when empty.
	MaxKey(ctx context.Context, table core.Table) (int64, error)

	// ReadAll returns every row of the table ordered by its surrogate key.
	ReadAll(ctx context.Context, table core.Table) (*Rows, error)

	// Dialect returns the SQL dialect of this store.
	Dialect() *Dialect
}
