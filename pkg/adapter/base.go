package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/salesload/pkg/core"
)

// BaseSQLAdapter provides common database/sql functionality for adapters.
// Embed this struct in concrete adapter implementations to get the full
// Store implementation; the adapter only has to open DB in Connect.
type BaseSQLAdapter struct {
	DB         *sql.DB
	Cfg        Config
	Logger     *slog.Logger
	SQLDialect *Dialect
}

func (b *BaseSQLAdapter) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.Logger
}

// Dialect returns the adapter's SQL dialect.
func (b *BaseSQLAdapter) Dialect() *Dialect {
	return b.SQLDialect
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB != nil {
		b.logger().Debug("closing database connection")
		return b.DB.Close()
	}
	return nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

// Exec executes a SQL statement that doesn't return rows.
func (b *BaseSQLAdapter) Exec(ctx context.Context, sqlStr string) error {
	if b.DB == nil {
		return fmt.Errorf("database connection not established")
	}
	_, err := b.DB.ExecContext(ctx, sqlStr)
	if err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// schema returns the configured schema or the dialect default.
func (b *BaseSQLAdapter) schema() string {
	if b.Cfg.Schema != "" {
		return b.Cfg.Schema
	}
	return b.SQLDialect.DefaultSchema
}

func (b *BaseSQLAdapter) qualified(table core.Table) string {
	return b.SQLDialect.QualifiedName(b.schema(), table.Name)
}

func (b *BaseSQLAdapter) columnList(columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = b.SQLDialect.QuoteIdentifier(c)
	}
	return strings.Join(quoted, ", ")
}

// conn acquires a dedicated connection for one store operation.
func (b *BaseSQLAdapter) conn(ctx context.Context) (*sql.Conn, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	return b.DB.Conn(ctx)
}

// TableExists reports whether the table is present in the configured schema.
func (b *BaseSQLAdapter) TableExists(ctx context.Context, table core.Table) (bool, error) {
	conn, err := b.conn(ctx)
	if err != nil {
		return false, &StoreError{Op: "check table", Table: table.Name, Err: err}
	}
	defer func() { _ = conn.Close() }()

	d := b.SQLDialect
	var query string
	var args []any
	if d.CatalogTables {
		//nolint:gosec // Placeholders are safe - they come from dialect.FormatPlaceholder
		query = fmt.Sprintf(
			"SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = %s AND table_name = %s",
			d.FormatPlaceholder(1), d.FormatPlaceholder(2))
		args = []any{b.schema(), table.Name}
	} else {
		query = fmt.Sprintf("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = %s", d.FormatPlaceholder(1))
		args = []any{table.Name}
	}

	var count int64
	if err := conn.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, &StoreError{Op: "check table", Table: table.Name, Err: err}
	}
	return count > 0, nil
}

// CreateTable creates the table if it does not exist. The surrogate key
// column is the primary key.
func (b *BaseSQLAdapter) CreateTable(ctx context.Context, table core.Table) error {
	exists, err := b.TableExists(ctx, table)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	d := b.SQLDialect
	defs := make([]string, 0, len(table.Columns))
	for _, col := range table.Columns {
		def := d.QuoteIdentifier(col.Name) + " " + d.TypeName(col.Type)
		if col.Name == table.Key {
			def += " PRIMARY KEY"
		}
		defs = append(defs, def)
	}
	createSQL := fmt.Sprintf("CREATE TABLE %s (%s)", b.qualified(table), strings.Join(defs, ", "))

	b.logger().Debug("creating table", slog.String("table", table.Name))

	conn, err := b.conn(ctx)
	if err != nil {
		return &StoreError{Op: "create table", Table: table.Name, Err: err}
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.ExecContext(ctx, createSQL); err != nil {
		return &StoreError{Op: "create table", Table: table.Name, Err: err}
	}
	return nil
}

// SelectColumns returns the values of the named columns for every row.
func (b *BaseSQLAdapter) SelectColumns(ctx context.Context, table core.Table, columns []string) ([][]any, error) {
	query := fmt.Sprintf("SELECT %s FROM %s", b.columnList(columns), b.qualified(table)) //nolint:gosec // Identifiers are quoted
	return b.queryAll(ctx, table, query, len(columns))
}

// MaxKey returns the highest surrogate key in the table, or 0 when it is empty.
func (b *BaseSQLAdapter) MaxKey(ctx context.Context, table core.Table) (int64, error) {
	conn, err := b.conn(ctx)
	if err != nil {
		return 0, &StoreError{Op: "max key", Table: table.Name, Err: err}
	}
	defer func() { _ = conn.Close() }()

	query := fmt.Sprintf("SELECT COALESCE(MAX(%s), 0) FROM %s", b.SQLDialect.QuoteIdentifier(table.Key), b.qualified(table)) //nolint:gosec // Identifiers are quoted
	var maxKey int64
	if err := conn.QueryRowContext(ctx, query).Scan(&maxKey); err != nil {
		return 0, &StoreError{Op: "max key", Table: table.Name, Err: err}
	}
	return maxKey, nil
}

// ReadAll returns every row of the table ordered by its surrogate key.
func (b *BaseSQLAdapter) ReadAll(ctx context.Context, table core.Table) (*Rows, error) {
	columns := table.ColumnNames()
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", //nolint:gosec // Identifiers are quoted
		b.columnList(columns), b.qualified(table), b.SQLDialect.QuoteIdentifier(table.Key))
	values, err := b.queryAll(ctx, table, query, len(columns))
	if err != nil {
		return nil, err
	}
	return &Rows{Columns: columns, Values: values}, nil
}

func (b *BaseSQLAdapter) queryAll(ctx context.Context, table core.Table, query string, width int) ([][]any, error) {
	conn, err := b.conn(ctx)
	if err != nil {
		return nil, &StoreError{Op: "select", Table: table.Name, Err: err}
	}
	defer func() { _ = conn.Close() }()

	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, &StoreError{Op: "select", Table: table.Name, Err: err}
	}
	defer func() { _ = rows.Close() }()

	var out [][]any
	for rows.Next() {
		values := make([]any, width)
		ptrs := make([]any, width)
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &StoreError{Op: "select", Table: table.Name, Err: err}
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "select", Table: table.Name, Err: err}
	}
	return out, nil
}

// Append inserts rows in a single transaction on a dedicated connection.
// The transaction is rolled back on any error, including context cancellation.
func (b *BaseSQLAdapter) Append(ctx context.Context, table core.Table, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	conn, err := b.conn(ctx)
	if err != nil {
		return 0, &StoreError{Op: "append", Table: table.Name, Err: err}
	}
	defer func() { _ = conn.Close() }()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, &StoreError{Op: "append", Table: table.Name, Err: err}
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	columns := table.ColumnNames()
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = b.SQLDialect.FormatPlaceholder(i + 1)
	}
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", //nolint:gosec // Identifiers are quoted
		b.qualified(table), b.columnList(columns), strings.Join(placeholders, ", "))

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return 0, &StoreError{Op: "append", Table: table.Name, Err: err}
	}
	defer func() { _ = stmt.Close() }()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, &StoreError{Op: "append", Table: table.Name, Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, &StoreError{Op: "commit", Table: table.Name, Err: err}
	}
	committed = true

	b.logger().Debug("appended rows", slog.String("table", table.Name), slog.Int("rows", len(rows)))
	return int64(len(rows)), nil
}
