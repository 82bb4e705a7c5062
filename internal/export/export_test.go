package export

import (
	"context"
	"encoding/csv"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leapstack-labs/salesload/internal/testutil"
	"github.com/leapstack-labs/salesload/pkg/adapter"
	"github.com/leapstack-labs/salesload/pkg/adapters/sqlite"
	"github.com/leapstack-labs/salesload/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestAll(t *testing.T) {
	ctx := context.Background()
	store := sqlite.New(nil)
	require.NoError(t, store.Connect(ctx, adapter.Config{Path: ":memory:"}))
	defer func() { _ = store.Close() }()

	require.NoError(t, store.CreateTable(ctx, core.SalesTable))
	cust, prod := int64(1), int64(2)
	_, err := store.Append(ctx, core.SalesTable, [][]any{
		(&core.FactSales{TransactionID: 1, CustomerID: &cust, ProductID: &prod, Quantity: 3, SaleDate: time.Date(2023, 1, 5, 15, 30, 0, 0, time.UTC)}).Values(),
	})
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "out")
	logger, capture := testutil.NewCaptureLogger()

	paths, err := All(ctx, store, dir, logger)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "sales.csv")}, paths)

	records := readCSV(t, paths[0])
	assert.Equal(t, [][]string{
		{"transaction_id", "customer_id", "product_id", "quantity", "sale_date"},
		{"1", "1", "2", "3", "2023-01-05T15:30:00Z"},
	}, records)

	// dimensions were never created
	assert.Len(t, capture.Messages(slog.LevelWarn), 2)
}

func TestTable_Overwrites(t *testing.T) {
	ctx := context.Background()
	store := sqlite.New(nil)
	require.NoError(t, store.Connect(ctx, adapter.Config{Path: ":memory:"}))
	defer func() { _ = store.Close() }()
	require.NoError(t, store.CreateTable(ctx, core.CustomerTable))

	dir := t.TempDir()
	path := Path(dir, core.CustomerTable)
	require.NoError(t, os.WriteFile(path, []byte("stale,content\n1,2\n3,4\n"), 0o600))

	got, err := Table(ctx, store, core.CustomerTable, dir)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	records := readCSV(t, path)
	require.Len(t, records, 1, "only the header of the empty table remains")
	assert.Equal(t, core.CustomerTable.ColumnNames(), records[0])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}
