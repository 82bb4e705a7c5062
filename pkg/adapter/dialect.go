package adapter

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/salesload/pkg/core"
)

// PlaceholderStyle defines how query parameters are written.
type PlaceholderStyle int

// Placeholder styles.
const (
	PlaceholderQuestion PlaceholderStyle = iota // ?
	PlaceholderDollar                           // $1, $2
	PlaceholderAtP                              // @p1, @p2
)

// Dialect captures the SQL differences between target stores.
type Dialect struct {
	Name          string
	DefaultSchema string // "main" for DuckDB, "public" for Postgres, "dbo" for SQL Server
	Placeholder   PlaceholderStyle
	Quote         string
	QuoteEnd      string

	// CatalogTables is true when the store exposes information_schema.tables.
	CatalogTables bool

	// Types maps logical column types to SQL type names.
	Types map[core.ColumnType]string
}

// FormatPlaceholder returns a placeholder for the given parameter index (1-based).
func (d *Dialect) FormatPlaceholder(index int) string {
	switch d.Placeholder {
	case PlaceholderDollar:
		return fmt.Sprintf("$%d", index)
	case PlaceholderAtP:
		return fmt.Sprintf("@p%d", index)
	default:
		return "?"
	}
}

// QuoteIdentifier quotes an identifier using the dialect's quote characters.
func (d *Dialect) QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, d.QuoteEnd, d.QuoteEnd+d.QuoteEnd)
	return d.Quote + escaped + d.QuoteEnd
}

// QualifiedName returns the quoted schema-qualified table name.
func (d *Dialect) QualifiedName(schema, table string) string {
	if schema == "" {
		return d.QuoteIdentifier(table)
	}
	return d.QuoteIdentifier(schema) + "." + d.QuoteIdentifier(table)
}

// TypeName returns the SQL type for a logical column type.
func (d *Dialect) TypeName(t core.ColumnType) string {
	if name, ok := d.Types[t]; ok {
		return name
	}
	return StandardTypes[t]
}

// StandardTypes are portable type names accepted by every supported store.
var StandardTypes = map[core.ColumnType]string{
	core.TypeInteger:   "BIGINT",
	core.TypeText:      "VARCHAR(255)",
	core.TypeDecimal:   "DECIMAL(18,2)",
	core.TypeTimestamp: "TIMESTAMP",
}

// Built-in dialects.
var (
	DuckDB = &Dialect{
		Name:          "duckdb",
		DefaultSchema: "main",
		Placeholder:   PlaceholderQuestion,
		Quote:         `"`,
		QuoteEnd:      `"`,
		CatalogTables: true,
		Types:         map[core.ColumnType]string{core.TypeText: "VARCHAR"},
	}

	Postgres = &Dialect{
		Name:          "postgres",
		DefaultSchema: "public",
		Placeholder:   PlaceholderDollar,
		Quote:         `"`,
		QuoteEnd:      `"`,
		CatalogTables: true,
		Types:         map[core.ColumnType]string{core.TypeText: "TEXT"},
	}

	SQLServer = &Dialect{
		Name:          "sqlserver",
		DefaultSchema: "dbo",
		Placeholder:   PlaceholderAtP,
		Quote:         "[",
		QuoteEnd:      "]",
		CatalogTables: true,
		Types:         map[core.ColumnType]string{core.TypeText: "NVARCHAR(255)", core.TypeTimestamp: "DATETIME2(6)"},
	}

	SQLite = &Dialect{
		Name:          "sqlite",
		DefaultSchema: "",
		Placeholder:   PlaceholderQuestion,
		Quote:         `"`,
		QuoteEnd:      `"`,
		CatalogTables: false,
		Types:         map[core.ColumnType]string{core.TypeInteger: "INTEGER", core.TypeText: "TEXT"},
	}
)
