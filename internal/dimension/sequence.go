package dimension

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/salesload/pkg/adapter"
	"github.com/leapstack-labs/salesload/pkg/core"
)

// Sequence hands out strictly increasing surrogate keys for one table.
// It is seeded from the highest key already persisted so keys stay unique
// across runs.
type Sequence struct {
	table string
	last  int64
}

// NewSequence creates a sequence whose next key is last+1.
func NewSequence(table string, last int64) *Sequence {
	return &Sequence{table: table, last: last}
}

// SeedSequence creates a sequence for table starting after its MAX(key).
// A table that does not exist yet starts at 0.
func SeedSequence(ctx context.Context, store adapter.Store, table core.Table) (*Sequence, error) {
	exists, err := store.TableExists(ctx, table)
	if err != nil {
		return nil, err
	}
	if !exists {
		return NewSequence(table.Name, 0), nil
	}
	last, err := store.MaxKey(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("seeding %s sequence: %w", table.Name, err)
	}
	return NewSequence(table.Name, last), nil
}

// Next returns the next key.
func (s *Sequence) Next() int64 {
	s.last++
	return s.last
}

// Last returns the most recently issued key, or the seed.
func (s *Sequence) Last() int64 {
	return s.last
}

// Table returns the table the sequence belongs to.
func (s *Sequence) Table() string {
	return s.table
}
