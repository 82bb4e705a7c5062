package dimension

import (
	"testing"

	"github.com/cockroachdb/apd/v3"
	"github.com/leapstack-labs/salesload/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(t *testing.T, s string) apd.Decimal {
	t.Helper()
	d, _, err := apd.NewFromString(s)
	require.NoError(t, err)
	return *d
}

func record(t *testing.T, personalID, product, premium string) core.RawRecord {
	year := 1980
	return core.RawRecord{
		PersonalID:  personalID,
		Name:        "JOHN//DOE",
		Country:     "SPAIN",
		YearOfBirth: &year,
		IncomeRange: "HIGH",
		Company:     "ALLIANZ",
		Product:     product,
		Premium:     dec(t, premium),
		Quantity:    1,
	}
}

func TestExtractCustomers_Dedup(t *testing.T) {
	batch := []core.RawRecord{
		record(t, "P1", "AUTO|COLLISION", "100"),
		record(t, "P2", "AUTO|COLLISION", "100"),
		record(t, "P1", "HOME|FIRE", "50"),
	}
	seq := NewSequence(core.CustomerTable.Name, 0)

	customers := ExtractCustomers(batch, seq, nil)
	require.Len(t, customers, 2)
	assert.Equal(t, int64(1), customers[0].CustomerID)
	assert.Equal(t, int64(2), customers[1].CustomerID)
	assert.Equal(t, "P1JOHN//DOESPAIN1980HIGH", customers[0].MergeKey)
	assert.Equal(t, "JOHN//DOE", customers[0].Name)
	assert.Equal(t, int64(2), seq.Last())
}

func TestExtractProducts_Dedup(t *testing.T) {
	batch := []core.RawRecord{
		record(t, "P1", "AUTO|COLLISION", "120.50"),
		record(t, "P2", "AUTO|COLLISION", "120.5"),
		record(t, "P3", "HOME|FIRE", "50"),
	}
	seq := NewSequence(core.ProductTable.Name, 0)

	products := ExtractProducts(batch, seq, nil)
	require.Len(t, products, 2, "premiums equal up to trailing zeros collapse")
	assert.Equal(t, "ALLIANZAUTO|COLLISION120.5", products[0].MergeKey)
	assert.Equal(t, int64(1), products[0].ProductID)
	assert.Equal(t, int64(2), products[1].ProductID)
}

func TestExtract_CountersSpanBatches(t *testing.T) {
	customers := NewSequence(core.CustomerTable.Name, 0)
	products := NewSequence(core.ProductTable.Name, 0)

	first := []core.RawRecord{record(t, "P1", "AUTO|COLLISION", "100")}
	second := []core.RawRecord{record(t, "P1", "AUTO|COLLISION", "100"), record(t, "P9", "LIFE|TERM", "10")}

	c1 := ExtractCustomers(first, customers, nil)
	p1 := ExtractProducts(first, products, nil)
	c2 := ExtractCustomers(second, customers, nil)
	p2 := ExtractProducts(second, products, nil)

	// without a registry the same entity in a later batch gets a fresh id
	assert.Equal(t, int64(1), c1[0].CustomerID)
	assert.Equal(t, []int64{2, 3}, []int64{c2[0].CustomerID, c2[1].CustomerID})
	assert.Equal(t, int64(1), p1[0].ProductID)
	assert.Equal(t, []int64{2, 3}, []int64{p2[0].ProductID, p2[1].ProductID})
}

func TestExtract_ReusesKnownIDs(t *testing.T) {
	known := NewRegistry()
	known.Add("P1JOHN//DOESPAIN1980HIGH", 7)
	seq := NewSequence(core.CustomerTable.Name, 7)

	batch := []core.RawRecord{record(t, "P1", "AUTO|COLLISION", "100"), record(t, "P2", "AUTO|COLLISION", "100")}
	customers := ExtractCustomers(batch, seq, known)

	require.Len(t, customers, 2)
	assert.Equal(t, int64(7), customers[0].CustomerID)
	assert.Equal(t, int64(8), customers[1].CustomerID)
	assert.Equal(t, int64(8), seq.Last(), "only new entities advance the sequence")
}

func TestExtract_Empty(t *testing.T) {
	seq := NewSequence(core.CustomerTable.Name, 3)
	assert.Empty(t, ExtractCustomers(nil, seq, nil))
	assert.Empty(t, ExtractProducts(nil, seq, nil))
	assert.Equal(t, int64(3), seq.Last())
}

func TestExtract_MergeKeyCollision(t *testing.T) {
	first := record(t, "P1", "AUTO|COLLISION", "100")
	first.Name = "AB//C"
	second := record(t, "P1A", "AUTO|COLLISION", "100")
	second.Name = "B//C"
	seq := NewSequence(core.CustomerTable.Name, 0)

	customers := ExtractCustomers([]core.RawRecord{first, second}, seq, nil)
	require.Len(t, customers, 1)
	assert.Equal(t, "P1", customers[0].PersonalID)
	assert.Equal(t, int64(1), seq.Last(), "no id is drawn for the colliding tuple")

	// ("AUTO|X", premium 10) and ("AUTO|X1", premium 0) concatenate alike
	p1 := record(t, "P1", "AUTO|X", "10")
	p2 := record(t, "P1", "AUTO|X1", "0")
	require.Equal(t, p1.ProductMergeKey(), p2.ProductMergeKey())
	products := ExtractProducts([]core.RawRecord{p1, p2}, NewSequence(core.ProductTable.Name, 0), nil)
	require.Len(t, products, 1)
	assert.Equal(t, "AUTO|X", products[0].Product)
}
