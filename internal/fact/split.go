package fact

import (
	"log/slog"
	"strings"

	"github.com/leapstack-labs/salesload/pkg/core"
)

// Sub-attribute delimiters.
const (
	ProductDelimiter = "|"
	NameDelimiter    = "//"
)

// SplitProduct rewrites spaces to underscores and splits product text into
// category and detail. ok is false unless exactly two parts result.
func SplitProduct(product string) (category, detail string, ok bool) {
	return splitPair(strings.ReplaceAll(product, " ", "_"), ProductDelimiter)
}

// SplitName splits "FIRST//LAST" into its two parts.
func SplitName(name string) (first, last string, ok bool) {
	return splitPair(name, NameDelimiter)
}

func splitPair(s, sep string) (string, string, bool) {
	parts := strings.Split(s, sep)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// SplitProducts fills ProductCategory and ProductDetail on every product.
// Values that do not split in two are left unset and logged.
func SplitProducts(products []*core.DimProduct, logger *slog.Logger) int {
	failed := 0
	for _, p := range products {
		category, detail, ok := SplitProduct(p.Product)
		if !ok {
			failed++
			logger.Warn("unexpected number of parts when splitting product",
				slog.String("product", p.Product),
				slog.Int("parts", strings.Count(p.Product, ProductDelimiter)+1))
			continue
		}
		p.ProductCategory, p.ProductDetail = &category, &detail
	}
	return failed
}

// SplitNames fills FirstName and LastName on every customer.
func SplitNames(customers []*core.DimCustomer, logger *slog.Logger) int {
	failed := 0
	for _, c := range customers {
		first, last, ok := SplitName(c.Name)
		if !ok {
			failed++
			logger.Warn("unexpected number of parts when splitting name",
				slog.Int64("customer_id", c.CustomerID),
				slog.Int("parts", strings.Count(c.Name, NameDelimiter)+1))
			continue
		}
		c.FirstName, c.LastName = &first, &last
	}
	return failed
}
