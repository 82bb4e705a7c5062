package dimension

import (
	"context"
	"fmt"
	"strconv"

	"github.com/leapstack-labs/salesload/pkg/adapter"
	"github.com/leapstack-labs/salesload/pkg/core"
)

// Registry maps persisted merge keys to their surrogate ids. It is the
// second dedup tier: an entity already in the store keeps its id.
type Registry struct {
	ids map[string]int64
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ids: make(map[string]int64)}
}

// LoadRegistry reads (key, merge_key) pairs from a dimension table. A table
// that does not exist yet yields an empty registry.
func LoadRegistry(ctx context.Context, store adapter.Store, table core.Table) (*Registry, error) {
	r := NewRegistry()
	exists, err := store.TableExists(ctx, table)
	if err != nil || !exists {
		return r, err
	}

	rows, err := store.SelectColumns(ctx, table, []string{table.Key, "merge_key"})
	if err != nil {
		return nil, fmt.Errorf("loading %s registry: %w", table.Name, err)
	}
	for _, row := range rows {
		id, err := strconv.ParseInt(core.KeyText(row[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("loading %s registry: invalid %s %v", table.Name, table.Key, row[0])
		}
		r.ids[core.KeyText(row[1])] = id
	}
	return r, nil
}

// Lookup returns the id persisted for mergeKey.
func (r *Registry) Lookup(mergeKey string) (int64, bool) {
	id, ok := r.ids[mergeKey]
	return id, ok
}

// Add records a persisted merge key.
func (r *Registry) Add(mergeKey string, id int64) {
	r.ids[mergeKey] = id
}

// Len returns the number of known keys.
func (r *Registry) Len() int {
	return len(r.ids)
}
