// Package engine drives the incremental star-schema load: it sequences
// source batches through the quality gate, cipher, dimension extractor,
// fact assembler and incremental loader, then exports the target tables.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/leapstack-labs/salesload/internal/cipher"
	"github.com/leapstack-labs/salesload/internal/fact"
	"github.com/leapstack-labs/salesload/internal/source"
	"github.com/leapstack-labs/salesload/internal/state"
	"github.com/leapstack-labs/salesload/pkg/adapter"
)

// Engine orchestrates one pipeline execution against a target store.
type Engine struct {
	// Target store (lazy initialized)
	db          adapter.Store
	dbConfig    adapter.Config
	dbConnected bool
	dbMu        sync.Mutex

	logger *slog.Logger
	store  state.Store

	source        source.Config
	outputPath    string
	encrypt       bool
	cipher        cipher.Encrypter
	joinPolicy    fact.JoinPolicy
	incomeDefault string
	now           func() time.Time
}

// Config holds engine configuration.
type Config struct {
	// Source describes the delimited input file and its chunk size
	Source source.Config
	// OutputPath is the directory that receives the CSV exports
	OutputPath string
	// AdapterConfig contains the target store configuration
	AdapterConfig adapter.Config
	// Store is an already constructed target store (optional). When nil one
	// is created from AdapterConfig through the adapter registry.
	Store adapter.Store
	// Encrypt enables personal_id encryption with Cipher
	Encrypt bool
	Cipher  cipher.Encrypter
	// JoinPolicy decides what happens to unresolved fact rows
	JoinPolicy fact.JoinPolicy
	// DefaultIncomeRange replaces missing income_range values
	DefaultIncomeRange string
	// StatePath is the path to the SQLite run-history database
	StatePath string
	// Now is the clock used by the quality gate (optional)
	Now func() time.Time
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// New creates a new engine with lazy target connection.
// The target store is only connected when Run() or Export() is called.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	logger.Debug("initializing engine", "source", cfg.Source.Path, "adapter_type", cfg.AdapterConfig.Type)

	if cfg.Encrypt && cfg.Cipher == nil {
		return nil, fmt.Errorf("encryption enabled but no cipher configured")
	}

	statePath := cfg.StatePath
	if statePath == "" {
		statePath = ":memory:"
	}
	store := state.NewSQLiteStore()
	if err := store.Open(context.Background(), statePath); err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}

	policy := cfg.JoinPolicy
	if policy == "" {
		policy = fact.PolicyReject
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	if cfg.Source.Logger == nil {
		cfg.Source.Logger = logger
	}

	return &Engine{
		db:            cfg.Store,
		dbConfig:      cfg.AdapterConfig,
		logger:        logger,
		store:         store,
		source:        cfg.Source,
		outputPath:    cfg.OutputPath,
		encrypt:       cfg.Encrypt,
		cipher:        cfg.Cipher,
		joinPolicy:    policy,
		incomeDefault: cfg.DefaultIncomeRange,
		now:           now,
	}, nil
}

// ensureDBConnected lazily connects to the target store.
func (e *Engine) ensureDBConnected(ctx context.Context) error {
	e.dbMu.Lock()
	defer e.dbMu.Unlock()

	if e.dbConnected {
		return nil
	}

	if e.db == nil {
		e.logger.Debug("connecting to database", "adapter_type", e.dbConfig.Type)
		db, err := adapter.NewStore(e.dbConfig, e.logger)
		if err != nil {
			return fmt.Errorf("failed to create database adapter: %w", err)
		}
		e.db = db
	}

	if err := e.db.Connect(ctx, e.dbConfig); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	e.dbConnected = true

	e.logger.Debug("database connected", "dialect", e.db.Dialect().Name)
	return nil
}

// Close releases all resources.
func (e *Engine) Close() error {
	e.logger.Debug("closing engine")

	var errs []error
	if e.db != nil && e.dbConnected {
		if err := e.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing engine: %v", errs)
	}
	return nil
}

// GetStateStore returns the run-history store.
func (e *Engine) GetStateStore() state.Store {
	return e.store
}
