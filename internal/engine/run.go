package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/leapstack-labs/salesload/internal/cipher"
	"github.com/leapstack-labs/salesload/internal/dimension"
	"github.com/leapstack-labs/salesload/internal/export"
	"github.com/leapstack-labs/salesload/internal/fact"
	"github.com/leapstack-labs/salesload/internal/loader"
	"github.com/leapstack-labs/salesload/internal/quality"
	"github.com/leapstack-labs/salesload/internal/source"
	"github.com/leapstack-labs/salesload/internal/state"
	"github.com/leapstack-labs/salesload/pkg/core"
)

// Summary describes a finished run.
type Summary struct {
	RunID           string
	Batches         int
	RowsRead        int
	RowsKept        int
	CustomersLoaded int64
	ProductsLoaded  int64
	SalesLoaded     int64
	Exported        []string
}

// keyspace holds the run-spanning surrogate key state of the target.
type keyspace struct {
	customers *dimension.Sequence
	products  *dimension.Sequence
	sales     *dimension.Sequence

	knownCustomers *dimension.Registry
	knownProducts  *dimension.Registry
}

func (e *Engine) seedKeyspace(ctx context.Context) (*keyspace, error) {
	ks := &keyspace{}
	var err error
	if ks.customers, err = dimension.SeedSequence(ctx, e.db, core.CustomerTable); err != nil {
		return nil, err
	}
	if ks.products, err = dimension.SeedSequence(ctx, e.db, core.ProductTable); err != nil {
		return nil, err
	}
	if ks.sales, err = dimension.SeedSequence(ctx, e.db, core.SalesTable); err != nil {
		return nil, err
	}
	if ks.knownCustomers, err = dimension.LoadRegistry(ctx, e.db, core.CustomerTable); err != nil {
		return nil, err
	}
	if ks.knownProducts, err = dimension.LoadRegistry(ctx, e.db, core.ProductTable); err != nil {
		return nil, err
	}

	e.logger.Debug("seeded keyspace",
		slog.Int64("last_customer_id", ks.customers.Last()),
		slog.Int64("last_product_id", ks.products.Last()),
		slog.Int64("last_transaction_id", ks.sales.Last()),
		slog.Int("known_customers", ks.knownCustomers.Len()),
		slog.Int("known_products", ks.knownProducts.Len()))
	return ks, nil
}

// Run processes every batch of the source, then exports the three tables.
// Batches are processed strictly in order; any schema, join or store error
// aborts the run and marks it failed in the run history.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	run, err := e.store.CreateRun(ctx, e.source.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	e.logger.Info("starting run", slog.String("run_id", run.ID), slog.String("source", e.source.Path))

	summary, err := e.run(ctx, run.ID)
	if err != nil {
		e.logger.Error("run failed", slog.String("run_id", run.ID), slog.String("error", err.Error()))
		if cerr := e.store.CompleteRun(ctx, run.ID, state.RunStatusFailed, err.Error()); cerr != nil {
			e.logger.Warn("failed to record run status", slog.String("error", cerr.Error()))
		}
		return summary, err
	}

	if err := e.store.CompleteRun(ctx, run.ID, state.RunStatusCompleted, ""); err != nil {
		return summary, fmt.Errorf("failed to complete run: %w", err)
	}
	e.logger.Info("run completed",
		slog.String("run_id", run.ID),
		slog.Int("batches", summary.Batches),
		slog.Int64("customers_loaded", summary.CustomersLoaded),
		slog.Int64("products_loaded", summary.ProductsLoaded),
		slog.Int64("sales_loaded", summary.SalesLoaded))
	return summary, nil
}

func (e *Engine) run(ctx context.Context, runID string) (*Summary, error) {
	summary := &Summary{RunID: runID}

	if err := e.ensureDBConnected(ctx); err != nil {
		return summary, err
	}

	reader, err := source.Open(e.source)
	if err != nil {
		return summary, err
	}
	defer func() { _ = reader.Close() }()

	if err := reader.CheckSchema(); err != nil {
		return summary, err
	}

	ks, err := e.seedKeyspace(ctx)
	if err != nil {
		return summary, err
	}

	gate := quality.New(quality.Config{
		DefaultIncomeRange: e.incomeDefault,
		Now:                e.now,
		Logger:             e.logger,
	})
	assembler := &fact.Assembler{Policy: e.joinPolicy, Logger: e.logger}

	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		batch, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return summary, err
		}

		rec, err := e.processBatch(ctx, runID, batch, gate, assembler, ks)
		if err != nil {
			return summary, fmt.Errorf("batch %d: %w", batch.Index, err)
		}

		summary.Batches++
		summary.RowsRead += rec.RowsRead
		summary.RowsKept += rec.RowsKept
		summary.CustomersLoaded += rec.CustomersLoaded
		summary.ProductsLoaded += rec.ProductsLoaded
		summary.SalesLoaded += rec.SalesLoaded
	}

	if summary.Batches == 0 {
		e.logger.Warn("source contained no data rows", slog.String("source", e.source.Path))
	}

	paths, err := export.All(ctx, e.db, e.outputPath, e.logger)
	summary.Exported = paths
	if err != nil {
		return summary, fmt.Errorf("export: %w", err)
	}
	return summary, nil
}

func (e *Engine) processBatch(ctx context.Context, runID string, batch *source.Batch, gate *quality.Gate, assembler *fact.Assembler, ks *keyspace) (*state.BatchRun, error) {
	log := e.logger.With(slog.Int("batch", batch.Index))
	log.Info("processing batch", slog.Int("rows", len(batch.Rows)))

	records, report, err := gate.Apply(batch)
	if err != nil {
		return nil, err
	}

	records, err = cipher.Apply(records, e.encrypt, e.cipher, log)
	if err != nil {
		return nil, err
	}

	customers := dimension.ExtractCustomers(records, ks.customers, ks.knownCustomers)
	products := dimension.ExtractProducts(records, ks.products, ks.knownProducts)

	assembled, err := assembler.Assemble(records, customers, products, ks.sales)
	if err != nil {
		return nil, err
	}

	rec := &state.BatchRun{
		RunID:    runID,
		Batch:    batch.Index,
		RowsRead: report.RowsIn,
		RowsKept: report.RowsOut,
	}

	// Dimensions first: the facts reference their surrogate keys.
	if rec.CustomersLoaded, err = loader.Load(ctx, e.db, core.CustomerTable, customers, log); err != nil {
		return nil, err
	}
	for _, c := range customers {
		ks.knownCustomers.Add(c.MergeKey, c.CustomerID)
	}
	if rec.ProductsLoaded, err = loader.Load(ctx, e.db, core.ProductTable, products, log); err != nil {
		return nil, err
	}
	for _, p := range products {
		ks.knownProducts.Add(p.MergeKey, p.ProductID)
	}
	if rec.SalesLoaded, err = loader.Load(ctx, e.db, core.SalesTable, assembled.Facts, log); err != nil {
		return nil, err
	}

	if err := e.store.RecordBatch(ctx, rec); err != nil {
		log.Warn("failed to record batch", slog.String("error", err.Error()))
	}

	log.Info("batch complete",
		slog.Int("rows_kept", rec.RowsKept),
		slog.Int("rows_dropped", report.DroppedTotal()),
		slog.Int64("customers_loaded", rec.CustomersLoaded),
		slog.Int64("products_loaded", rec.ProductsLoaded),
		slog.Int64("sales_loaded", rec.SalesLoaded))
	return rec, nil
}

// Export writes the current contents of the three target tables to
// OutputPath without running the pipeline.
func (e *Engine) Export(ctx context.Context) ([]string, error) {
	if err := e.ensureDBConnected(ctx); err != nil {
		return nil, err
	}
	return export.All(ctx, e.db, e.outputPath, e.logger)
}
