// Package config provides configuration management for the salesload CLI.
//
// Configuration is read from a YAML document (salesload.yaml by default),
// overridden by SALESLOAD_ environment variables and explicitly set flags.
package config

import (
	"github.com/leapstack-labs/salesload/internal/quality"
	"github.com/leapstack-labs/salesload/internal/source"
)

// Config holds all CLI configuration options.
type Config struct {
	File       FileConfig       `koanf:"file"`
	Database   DatabaseConfig   `koanf:"database"`
	Encryption EncryptionConfig `koanf:"encryption"`
	Pipeline   PipelineConfig   `koanf:"pipeline"`
	Log        LogConfig        `koanf:"log"`
	StatePath  string           `koanf:"state_path"`

	// Path is the config file the values were read from.
	Path string `koanf:"-"`
}

// FileConfig describes the source file and the export directory.
type FileConfig struct {
	Path       string `koanf:"path"`
	ChunkSize  int    `koanf:"chunksize"`
	OutputPath string `koanf:"output_path"`
	Delimiter  string `koanf:"delimiter"`
}

// DatabaseConfig describes the target store.
type DatabaseConfig struct {
	Type     string            `koanf:"type"`
	Driver   string            `koanf:"driver"`
	User     string            `koanf:"user"`
	Password string            `koanf:"password"`
	Server   string            `koanf:"server"`
	Port     int               `koanf:"port"`
	Database string            `koanf:"database"`
	Schema   string            `koanf:"schema"`
	Options  map[string]string `koanf:"options"`
	Params   map[string]any    `koanf:"params"`
}

// EncryptionConfig controls personal_id encryption.
type EncryptionConfig struct {
	Encrypt bool   `koanf:"encrypt"`
	Key     string `koanf:"key"`
}

// PipelineConfig tunes the load pipeline.
type PipelineConfig struct {
	JoinPolicy         string `koanf:"join_policy"`
	DefaultIncomeRange string `koanf:"default_income_range"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default configuration values.
const (
	DefaultConfigFile  = "salesload.yaml"
	DefaultStateFile   = ".salesload/state.db"
	DefaultChunkSize   = source.DefaultChunkSize
	DefaultDelimiter   = ","
	DefaultJoinPolicy  = "reject"
	DefaultIncomeRange = quality.DefaultIncomeRange
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
	DefaultDBType      = "duckdb"
)

// RequiredSections must be present in the config file.
var RequiredSections = []string{"file", "database", "encryption"}
