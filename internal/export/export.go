// Package export writes full snapshots of the target tables to CSV files.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/salesload/pkg/adapter"
	"github.com/leapstack-labs/salesload/pkg/core"
)

// Path returns the export file for table under dir.
func Path(dir string, table core.Table) string {
	return filepath.Join(dir, table.Name+".csv")
}

// Table writes every row of table to dir/<table>.csv, replacing any prior export.
func Table(ctx context.Context, store adapter.Store, table core.Table, dir string) (string, error) {
	rows, err := store.ReadAll(ctx, table)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	path := Path(dir, table)
	tmp, err := os.CreateTemp(dir, "."+table.Name+"-*.csv")
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	w := csv.NewWriter(tmp)
	if err := w.Write(rows.Columns); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	record := make([]string, len(rows.Columns))
	for _, values := range rows.Values {
		for i, v := range values {
			record[i] = formatValue(table, rows.Columns[i], v)
		}
		if err := w.Write(record); err != nil {
			_ = tmp.Close()
			return "", fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return path, nil
}

func formatValue(table core.Table, column string, v any) string {
	if col, ok := table.Column(column); ok && col.Type == core.TypeTimestamp {
		return core.TimestampKeyText(v)
	}
	return core.KeyText(v)
}

// All exports the three target tables. A table that does not exist yet is
// skipped with a warning.
func All(ctx context.Context, store adapter.Store, dir string, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var paths []string
	for _, table := range core.Tables {
		exists, err := store.TableExists(ctx, table)
		if err != nil {
			return paths, err
		}
		if !exists {
			logger.Warn("table does not exist, skipping export", slog.String("table", table.Name))
			continue
		}

		path, err := Table(ctx, store, table, dir)
		if err != nil {
			return paths, err
		}
		logger.Info("table data saved to CSV", slog.String("table", table.Name), slog.String("path", path))
		paths = append(paths, path)
	}
	return paths, nil
}
