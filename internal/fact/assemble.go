// Package fact resolves dimension references for a batch and assembles the
// sales fact rows.
package fact

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/leapstack-labs/salesload/internal/dimension"
	"github.com/leapstack-labs/salesload/pkg/core"
)

// JoinPolicy decides what happens to a fact row whose customer or product
// merge key has no dimension row.
type JoinPolicy string

// Join policies.
const (
	// PolicyReject drops the fact row and logs it.
	PolicyReject JoinPolicy = "reject"
	// PolicyNull keeps the row with a null reference and logs it.
	PolicyNull JoinPolicy = "null"
	// PolicyFail aborts the batch with a *JoinError.
	PolicyFail JoinPolicy = "fail"
)

// ParseJoinPolicy validates a policy name. The empty string means PolicyReject.
func ParseJoinPolicy(s string) (JoinPolicy, error) {
	switch p := JoinPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyReject, nil
	case PolicyReject, PolicyNull, PolicyFail:
		return p, nil
	default:
		return "", fmt.Errorf("unknown join policy %q (want reject, null or fail)", s)
	}
}

// JoinError reports a fact row that could not be resolved under PolicyFail.
type JoinError struct {
	Row         int
	CustomerKey string
	ProductKey  string
	Missing     []string
}

func (e *JoinError) Error() string {
	return fmt.Sprintf("row %d: unresolved %s reference", e.Row, strings.Join(e.Missing, " and "))
}

// Result is the output of Assemble.
type Result struct {
	Facts    []*core.FactSales
	Rejected int
	NullRefs int
}

// Assembler builds fact rows from a batch and its dimension rows.
type Assembler struct {
	Policy JoinPolicy
	Logger *slog.Logger
}

func (a *Assembler) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.Logger
}

// Assemble left-joins the batch to the dimensions on merge key, assigns
// contiguous transaction ids from seq, and splits the dimensions' composite
// product and name columns. The dimension rows are modified in place.
func (a *Assembler) Assemble(batch []core.RawRecord, customers []*core.DimCustomer, products []*core.DimProduct, seq *dimension.Sequence) (*Result, error) {
	log := a.logger()
	policy := a.Policy
	if policy == "" {
		policy = PolicyReject
	}

	customerByKey := make(map[string]*core.DimCustomer, len(customers))
	for _, c := range customers {
		if _, dup := customerByKey[c.MergeKey]; dup {
			log.Warn("duplicate customer merge key", slog.String("merge_key", c.MergeKey))
			continue
		}
		customerByKey[c.MergeKey] = c
	}
	productByKey := make(map[string]*core.DimProduct, len(products))
	for _, p := range products {
		if _, dup := productByKey[p.MergeKey]; dup {
			log.Warn("duplicate product merge key", slog.String("merge_key", p.MergeKey))
			continue
		}
		productByKey[p.MergeKey] = p
	}

	res := &Result{Facts: make([]*core.FactSales, 0, len(batch))}
	var rejectedRows []int
	for i := range batch {
		rec := &batch[i]
		row := rowNumber(rec, i)
		fact := &core.FactSales{Quantity: rec.Quantity, SaleDate: rec.Timestamp}

		custKey, prodKey := rec.CustomerMergeKey(), rec.ProductMergeKey()
		var missing []string
		if c, ok := customerByKey[custKey]; !ok {
			missing = append(missing, "customer_id")
		} else if !sameCustomer(c, rec) {
			log.Warn("merge key collision", slog.String("table", core.CustomerTable.Name),
				slog.Int("row", row), slog.String("merge_key", custKey),
				slog.Any("dimension", []string{c.PersonalID, c.Name, c.Country, strconv.Itoa(c.YearOfBirth), c.IncomeRange}),
				slog.Any("record", []string{rec.PersonalID, rec.Name, rec.Country, strconv.Itoa(rec.Year()), rec.IncomeRange}))
			missing = append(missing, "customer_id")
		} else {
			id := c.CustomerID
			fact.CustomerID = &id
		}
		if p, ok := productByKey[prodKey]; !ok {
			missing = append(missing, "product_id")
		} else if !sameProduct(p, rec) {
			log.Warn("merge key collision", slog.String("table", core.ProductTable.Name),
				slog.Int("row", row), slog.String("merge_key", prodKey),
				slog.Any("dimension", []string{p.Company, p.Product, core.CanonicalDecimal(&p.Premium)}),
				slog.Any("record", []string{rec.Company, rec.Product, core.CanonicalDecimal(&rec.Premium)}))
			missing = append(missing, "product_id")
		} else {
			id := p.ProductID
			fact.ProductID = &id
		}

		if len(missing) > 0 {
			switch policy {
			case PolicyFail:
				return nil, &JoinError{Row: row, CustomerKey: custKey, ProductKey: prodKey, Missing: missing}
			case PolicyNull:
				res.NullRefs++
			default:
				res.Rejected++
				rejectedRows = append(rejectedRows, row)
				continue
			}
		}
		res.Facts = append(res.Facts, fact)
	}

	if res.Rejected > 0 {
		log.Warn("dropped rows", slog.String("reason", "unresolved_reference"),
			slog.Int("count", res.Rejected), slog.Any("rows", rejectedRows))
	}
	if res.NullRefs > 0 {
		log.Warn("fact rows with unresolved references kept with null keys", slog.Int("count", res.NullRefs))
	}

	for _, f := range res.Facts {
		f.TransactionID = seq.Next()
	}

	SplitProducts(products, log)
	SplitNames(customers, log)
	return res, nil
}

// rowNumber is the record's source row, or its 1-based batch position when
// the record did not pass through the quality gate.
func rowNumber(rec *core.RawRecord, i int) int {
	if rec.Row > 0 {
		return rec.Row
	}
	return i + 1
}

func sameCustomer(c *core.DimCustomer, rec *core.RawRecord) bool {
	return c.PersonalID == rec.PersonalID && c.Name == rec.Name && c.Country == rec.Country &&
		c.YearOfBirth == rec.Year() && c.IncomeRange == rec.IncomeRange
}

func sameProduct(p *core.DimProduct, rec *core.RawRecord) bool {
	return p.Company == rec.Company && p.Product == rec.Product &&
		p.Premium.Cmp(&rec.Premium) == 0
}
