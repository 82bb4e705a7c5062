package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
)

// Source column names, in their canonical (normalized) form.
const (
	ColPersonalID  = "personal_id"
	ColName        = "name"
	ColCountry     = "country"
	ColYearOfBirth = "year_of_birth"
	ColIncomeRange = "income_range"
	ColCompany     = "company"
	ColProduct     = "product"
	ColPremium     = "premium"
	ColQuantity    = "quantity"
	ColTimestamp   = "timestamp"
)

// RequiredColumns lists every source column a batch must carry.
var RequiredColumns = []string{
	ColTimestamp,
	ColQuantity,
	ColCompany,
	ColProduct,
	ColPremium,
	ColPersonalID,
	ColName,
	ColCountry,
	ColYearOfBirth,
	ColIncomeRange,
}

// RawRecord is one ingested source row after field-name and case normalization.
// It exists only for the lifetime of a single batch.
type RawRecord struct {
	PersonalID  string      `mapstructure:"personal_id"`
	Name        string      `mapstructure:"name"`
	Country     string      `mapstructure:"country"`
	YearOfBirth *int        `mapstructure:"year_of_birth"`
	IncomeRange string      `mapstructure:"income_range"`
	Company     string      `mapstructure:"company"`
	Product     string      `mapstructure:"product"`
	Premium     apd.Decimal `mapstructure:"premium"`
	Quantity    int64       `mapstructure:"quantity"`
	Timestamp   time.Time   `mapstructure:"timestamp"`

	// Row is the 1-based source row number, set by the quality gate.
	Row int `mapstructure:"-"`
}

// Year returns the birth year, or 0 when it is unknown.
func (r *RawRecord) Year() int {
	if r.YearOfBirth == nil {
		return 0
	}
	return *r.YearOfBirth
}

// CustomerMergeKey is the business key of the customer described by the record.
func (r *RawRecord) CustomerMergeKey() string {
	return CustomerMergeKey(r.PersonalID, r.Name, r.Country, r.Year(), r.IncomeRange)
}

// ProductMergeKey is the business key of the product described by the record.
func (r *RawRecord) ProductMergeKey() string {
	return ProductMergeKey(r.Company, r.Product, &r.Premium)
}

// CustomerMergeKey concatenates personal_id, name, country, year_of_birth and income_range.
func CustomerMergeKey(personalID, name, country string, yearOfBirth int, incomeRange string) string {
	var b strings.Builder
	b.WriteString(personalID)
	b.WriteString(name)
	b.WriteString(country)
	fmt.Fprintf(&b, "%d", yearOfBirth)
	b.WriteString(incomeRange)
	return b.String()
}

// ProductMergeKey concatenates company, product and the canonical premium text.
func ProductMergeKey(company, product string, premium *apd.Decimal) string {
	return company + product + CanonicalDecimal(premium)
}

// CanonicalDecimal renders d without trailing zeros so that "120.50" and
// "120.5" produce the same business key.
func CanonicalDecimal(d *apd.Decimal) string {
	var reduced apd.Decimal
	reduced.Reduce(d)
	return reduced.Text('f')
}

// SchemaError reports that a batch is missing required source columns.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}

// CheckColumns returns a *SchemaError if any required column is absent from columns.
func CheckColumns(columns []string) error {
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}
	var missing []string
	for _, c := range RequiredColumns {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Missing: missing}
	}
	return nil
}
