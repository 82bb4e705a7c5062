package core

import (
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
)

// TimestampLayout is the text form of FactSales.SaleDate in keys and exports.
// Sale times are kept in UTC at microsecond precision, the finest every
// supported store retains.
const TimestampLayout = "2006-01-02T15:04:05.999999Z07:00"

// storedTimestampLayouts are the text forms drivers return for timestamp
// columns, tried in order when a value comes back as text.
var storedTimestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// Record is a row that can be appended to a target table.
type Record interface {
	// Values returns the column values in Table.Columns order.
	Values() []any
	// BusinessKey returns the composite of the table's business-key columns,
	// formatted the same way KeyText formats values read back from the store.
	BusinessKey() string
}

// DimCustomer is a row of the customer dimension.
type DimCustomer struct {
	CustomerID  int64
	PersonalID  string
	FirstName   *string
	LastName    *string
	Country     string
	YearOfBirth int
	IncomeRange string
	MergeKey    string

	// Name is the composite "FIRST//LAST" source value. It is split into
	// FirstName/LastName by the fact assembler and is not persisted.
	Name string
}

// Values implements Record.
func (c *DimCustomer) Values() []any {
	return []any{
		c.CustomerID,
		c.PersonalID,
		nullString(c.FirstName),
		nullString(c.LastName),
		c.Country,
		int64(c.YearOfBirth),
		c.IncomeRange,
		c.MergeKey,
	}
}

// BusinessKey implements Record.
func (c *DimCustomer) BusinessKey() string {
	return c.MergeKey
}

// DimProduct is a row of the product dimension.
type DimProduct struct {
	ProductID       int64
	Company         string
	ProductCategory *string
	ProductDetail   *string
	Premium         apd.Decimal
	MergeKey        string

	// Product is the composite "CATEGORY|DETAIL" source value. It is split by
	// the fact assembler and is not persisted.
	Product string
}

// Values implements Record.
func (p *DimProduct) Values() []any {
	return []any{
		p.ProductID,
		p.Company,
		nullString(p.ProductCategory),
		nullString(p.ProductDetail),
		p.Premium.Text('f'),
		p.MergeKey,
	}
}

// BusinessKey implements Record.
func (p *DimProduct) BusinessKey() string {
	return p.MergeKey
}

// FactSales is a row of the sales fact table.
// CustomerID and ProductID are nil only when a join failed under the null policy.
type FactSales struct {
	TransactionID int64
	CustomerID    *int64
	ProductID     *int64
	Quantity      int64
	SaleDate      time.Time
}

// Values implements Record.
func (f *FactSales) Values() []any {
	return []any{
		f.TransactionID,
		nullInt(f.CustomerID),
		nullInt(f.ProductID),
		f.Quantity,
		NormalizeTimestamp(f.SaleDate),
	}
}

// BusinessKey implements Record.
func (f *FactSales) BusinessKey() string {
	return CompositeKey(
		KeyText(f.CustomerID),
		KeyText(f.ProductID),
		TimestampKeyText(f.SaleDate),
		strconv.FormatInt(f.Quantity, 10),
	)
}

// keySeparator joins composite key parts. It cannot appear in normalized text.
const keySeparator = "\x1f"

// CompositeKey joins business-key parts into one comparable string.
func CompositeKey(parts ...string) string {
	return strings.Join(parts, keySeparator)
}

// KeyText formats a single value, either from a Record or scanned from the
// store, into its business-key text form.
func KeyText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case *int64:
		if x == nil {
			return ""
		}
		return strconv.FormatInt(*x, 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		return NormalizeTimestamp(x).Format(TimestampLayout)
	case []byte:
		return string(x)
	case string:
		return x
	default:
		if s, ok := v.(interface{ String() string }); ok {
			return s.String()
		}
		return ""
	}
}

// NormalizeTimestamp reduces t to the precision and zone it is stored with.
func NormalizeTimestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// TimestampKeyText formats a timestamp column value. Drivers return
// timestamp columns as time.Time or as text in one of several layouts;
// all reduce to TimestampLayout.
func TimestampKeyText(v any) string {
	switch x := v.(type) {
	case time.Time:
		return KeyText(x)
	case *time.Time:
		if x == nil {
			return ""
		}
		return KeyText(*x)
	}
	s := KeyText(v)
	for _, layout := range storedTimestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return KeyText(t)
		}
	}
	return s
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullInt(i *int64) any {
	if i == nil {
		return nil
	}
	return *i
}
