package sqlite

import (
	"log/slog"

	"github.com/leapstack-labs/salesload/pkg/adapter"
)

func init() {
	adapter.Register("sqlite", func(logger *slog.Logger) adapter.Store { return New(logger) })
}
