package core

// ColumnType is the logical type of a target column. Adapters map it to
// their own SQL type names.
type ColumnType int

// Logical column types.
const (
	TypeInteger ColumnType = iota
	TypeText
	TypeDecimal
	TypeTimestamp
)

// Column is a column of a target table.
type Column struct {
	Name string
	Type ColumnType
}

// Table identifies a target table and the columns the incremental loader
// compares to decide whether a candidate row is already persisted.
type Table struct {
	Name        string
	Key         string // surrogate key column
	Columns     []Column
	BusinessKey []string
}

// ColumnNames returns the table's column names in order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by name.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// KeyOf formats scanned business-key values, given in BusinessKey order,
// into the same composite form produced by Record.BusinessKey.
func (t Table) KeyOf(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		if col, ok := t.Column(t.BusinessKey[i]); ok && col.Type == TypeTimestamp {
			parts[i] = TimestampKeyText(v)
			continue
		}
		parts[i] = KeyText(v)
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return CompositeKey(parts...)
}

// The three target tables of the star schema.
var (
	CustomerTable = Table{
		Name: "dim_customer",
		Key:  "customer_id",
		Columns: []Column{
			{Name: "customer_id", Type: TypeInteger},
			{Name: "personal_id", Type: TypeText},
			{Name: "first_name", Type: TypeText},
			{Name: "last_name", Type: TypeText},
			{Name: "country", Type: TypeText},
			{Name: "year_of_birth", Type: TypeInteger},
			{Name: "income_range", Type: TypeText},
			{Name: "merge_key", Type: TypeText},
		},
		BusinessKey: []string{"merge_key"},
	}

	ProductTable = Table{
		Name: "dim_product",
		Key:  "product_id",
		Columns: []Column{
			{Name: "product_id", Type: TypeInteger},
			{Name: "company", Type: TypeText},
			{Name: "product_category", Type: TypeText},
			{Name: "product_detail", Type: TypeText},
			{Name: "premium", Type: TypeDecimal},
			{Name: "merge_key", Type: TypeText},
		},
		BusinessKey: []string{"merge_key"},
	}

	SalesTable = Table{
		Name: "sales",
		Key:  "transaction_id",
		Columns: []Column{
			{Name: "transaction_id", Type: TypeInteger},
			{Name: "customer_id", Type: TypeInteger},
			{Name: "product_id", Type: TypeInteger},
			{Name: "quantity", Type: TypeInteger},
			{Name: "sale_date", Type: TypeTimestamp},
		},
		BusinessKey: []string{"customer_id", "product_id", "sale_date", "quantity"},
	}
)

// Tables lists the target tables in load order: dimensions before facts.
var Tables = []Table{CustomerTable, ProductTable, SalesTable}
