// Package dimension derives deduplicated customer and product dimension rows
// from a quality-gated batch and assigns their surrogate keys.
package dimension

import (
	"strconv"

	"github.com/leapstack-labs/salesload/pkg/core"
)

// ExtractCustomers returns one DimCustomer per distinct
// (personal_id, name, country, year_of_birth, income_range) tuple, in order of
// first appearance. Keys already in known are reused; new entities draw
// contiguous ids from seq. known may be nil.
//
// A tuple whose merge key is already claimed by a different tuple in the
// batch yields no row; the fact assembler treats its facts as unresolved.
func ExtractCustomers(batch []core.RawRecord, seq *Sequence, known *Registry) []*core.DimCustomer {
	seen := make(map[string]bool, len(batch))
	claimed := make(map[string]bool, len(batch))
	var out []*core.DimCustomer
	for i := range batch {
		rec := &batch[i]
		tuple := core.CompositeKey(rec.PersonalID, rec.Name, rec.Country, strconv.Itoa(rec.Year()), rec.IncomeRange)
		if seen[tuple] {
			continue
		}
		seen[tuple] = true

		mergeKey := rec.CustomerMergeKey()
		if claimed[mergeKey] {
			continue
		}
		claimed[mergeKey] = true
		out = append(out, &core.DimCustomer{
			CustomerID:  assign(mergeKey, seq, known),
			PersonalID:  rec.PersonalID,
			Country:     rec.Country,
			YearOfBirth: rec.Year(),
			IncomeRange: rec.IncomeRange,
			MergeKey:    mergeKey,
			Name:        rec.Name,
		})
	}
	return out
}

// ExtractProducts returns one DimProduct per distinct (company, product,
// premium) tuple. Premiums that differ only in trailing zeros are the same
// product. Merge-key collisions are handled as in ExtractCustomers.
func ExtractProducts(batch []core.RawRecord, seq *Sequence, known *Registry) []*core.DimProduct {
	seen := make(map[string]bool, len(batch))
	claimed := make(map[string]bool, len(batch))
	var out []*core.DimProduct
	for i := range batch {
		rec := &batch[i]
		tuple := core.CompositeKey(rec.Company, rec.Product, core.CanonicalDecimal(&rec.Premium))
		if seen[tuple] {
			continue
		}
		seen[tuple] = true

		mergeKey := rec.ProductMergeKey()
		if claimed[mergeKey] {
			continue
		}
		claimed[mergeKey] = true

		p := &core.DimProduct{
			Company:  rec.Company,
			MergeKey: mergeKey,
			Product:  rec.Product,
		}
		p.Premium.Set(&rec.Premium)
		p.ProductID = assign(p.MergeKey, seq, known)
		out = append(out, p)
	}
	return out
}

func assign(mergeKey string, seq *Sequence, known *Registry) int64 {
	if known != nil {
		if id, ok := known.Lookup(mergeKey); ok {
			return id
		}
	}
	return seq.Next()
}
