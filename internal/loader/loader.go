// Package loader appends only those candidate rows whose business key is not
// already persisted in the target table.
package loader

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/salesload/pkg/adapter"
	"github.com/leapstack-labs/salesload/pkg/core"
)

// NoNewRowsMessage is logged when every candidate is already persisted.
const NoNewRowsMessage = "No new rows to upload."

// Filter returns the candidates whose business key is absent from table.
// When the table does not exist the candidates are returned unchanged and
// exists is false.
func Filter[R core.Record](ctx context.Context, store adapter.Store, table core.Table, candidates []R) (fresh []R, exists bool, err error) {
	exists, err = store.TableExists(ctx, table)
	if err != nil {
		return nil, false, err
	}
	if !exists {
		return candidates, false, nil
	}

	rows, err := store.SelectColumns(ctx, table, table.BusinessKey)
	if err != nil {
		return nil, true, err
	}
	persisted := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		persisted[table.KeyOf(row)] = struct{}{}
	}

	fresh = make([]R, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := persisted[c.BusinessKey()]; !ok {
			fresh = append(fresh, c)
		}
	}
	return fresh, true, nil
}

// Load filters candidates against table and appends the new ones, creating
// the table first if needed. An empty result performs no write.
func Load[R core.Record](ctx context.Context, store adapter.Store, table core.Table, candidates []R, logger *slog.Logger) (int64, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	fresh, exists, err := Filter(ctx, store, table, candidates)
	if err != nil {
		logger.Error("error filtering existing data", slog.String("table", table.Name), slog.String("error", err.Error()))
		return 0, err
	}
	if !exists {
		logger.Info("table does not exist, skipping filtering step", slog.String("table", table.Name))
	}

	if len(fresh) == 0 {
		logger.Info(NoNewRowsMessage, slog.String("table", table.Name))
		return 0, nil
	}

	if !exists {
		if err := store.CreateTable(ctx, table); err != nil {
			logger.Error("error creating table", slog.String("table", table.Name), slog.String("error", err.Error()))
			return 0, err
		}
	}

	rows := make([][]any, len(fresh))
	for i, r := range fresh {
		rows[i] = r.Values()
	}
	n, err := store.Append(ctx, table, rows)
	if err != nil {
		logger.Error("error uploading data", slog.String("table", table.Name), slog.String("error", err.Error()))
		return 0, err
	}

	logger.Info("new rows uploaded successfully",
		slog.String("table", table.Name),
		slog.Int64("rows", n),
		slog.Int("skipped", len(candidates)-len(fresh)))
	return n, nil
}
