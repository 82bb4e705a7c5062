package commands

import (
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/salesload/internal/cipher"
	"github.com/leapstack-labs/salesload/internal/cli/config"
	"github.com/leapstack-labs/salesload/internal/engine"
	"github.com/leapstack-labs/salesload/internal/source"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg    *config.Config
	Logger *slog.Logger
}

// NewCommandContext returns the config and logger the root command stored
// in the command context.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	cfg := config.FromContext(cmd.Context())
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return &CommandContext{
		Cfg:    cfg,
		Logger: config.GetLogger(cmd.Context()),
	}, nil
}

// NewEngine creates an engine from the loaded configuration. With withCipher
// set and encryption enabled a valid key is required; export-only engines
// pass false and never touch the key.
func (c *CommandContext) NewEngine(withCipher bool) (*engine.Engine, error) {
	cfg := c.Cfg
	encrypt := withCipher && cfg.Encryption.Encrypt

	var enc cipher.Encrypter
	if encrypt {
		if err := cfg.RequireKey(); err != nil {
			return nil, err
		}
		ciph, err := cipher.New(cfg.Encryption.Key)
		if err != nil {
			return nil, &config.Error{Path: cfg.Path, Field: "encryption.key", Msg: "invalid key", Err: err}
		}
		enc = ciph
	}

	return engine.New(engine.Config{
		Source: source.Config{
			Path:      cfg.File.Path,
			ChunkSize: cfg.File.ChunkSize,
			Delimiter: cfg.Delimiter(),
			Logger:    c.Logger,
		},
		OutputPath:         cfg.File.OutputPath,
		AdapterConfig:      cfg.Database.AdapterConfig(),
		Encrypt:            encrypt,
		Cipher:             enc,
		JoinPolicy:         cfg.JoinPolicy(),
		DefaultIncomeRange: cfg.Pipeline.DefaultIncomeRange,
		StatePath:          cfg.StatePath,
		Logger:             c.Logger,
	})
}
