package config

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/leapstack-labs/salesload/internal/cipher"
	"github.com/leapstack-labs/salesload/internal/fact"
	"github.com/leapstack-labs/salesload/pkg/adapter"
)

// Error reports a missing or invalid configuration. It is fatal and is
// returned before any data is processed.
type Error struct {
	Path  string // config file
	Field string // dotted key, empty for file-level problems
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("config")
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	b.WriteString(": ")
	if e.Field != "" {
		b.WriteString(e.Field)
		b.WriteString(": ")
	}
	b.WriteString(e.Msg)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.File.Path == "" {
		return &Error{Path: c.Path, Field: "file.path", Msg: "is required"}
	}
	if c.File.OutputPath == "" {
		return &Error{Path: c.Path, Field: "file.output_path", Msg: "is required"}
	}
	if c.File.ChunkSize <= 0 {
		return &Error{Path: c.Path, Field: "file.chunksize", Msg: fmt.Sprintf("must be greater than zero, got %d", c.File.ChunkSize)}
	}
	if utf8.RuneCountInString(c.File.Delimiter) != 1 {
		return &Error{Path: c.Path, Field: "file.delimiter", Msg: fmt.Sprintf("must be a single character, got %q", c.File.Delimiter)}
	}

	if !adapter.IsRegistered(c.Database.Type) {
		return &Error{Path: c.Path, Field: "database.type", Msg: "unsupported store", Err: &adapter.UnknownAdapterError{
			Type:      c.Database.Type,
			Available: adapter.ListAdapters(),
		}}
	}

	if c.Encryption.Key != "" {
		if _, err := cipher.ParseKey(c.Encryption.Key); err != nil {
			return &Error{Path: c.Path, Field: "encryption.key", Msg: "invalid key", Err: err}
		}
	}

	if _, err := fact.ParseJoinPolicy(c.Pipeline.JoinPolicy); err != nil {
		return &Error{Path: c.Path, Field: "pipeline.join_policy", Msg: "invalid value", Err: err}
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		return &Error{Path: c.Path, Field: "log.level", Msg: "invalid value", Err: err}
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return &Error{Path: c.Path, Field: "log.format", Msg: fmt.Sprintf("must be text or json, got %q", c.Log.Format)}
	}
	return nil
}

// RequireKey reports a configuration error when encryption is enabled
// without a key.
func (c *Config) RequireKey() error {
	if c.Encryption.Encrypt && c.Encryption.Key == "" {
		return &Error{
			Path:  c.Path,
			Field: "encryption.key",
			Msg:   "required when encryption.encrypt is true\nHint: run 'salesload keygen' or pass --provision-key",
		}
	}
	return nil
}

// Delimiter returns the source field delimiter.
func (c *Config) Delimiter() rune {
	r, _ := utf8.DecodeRuneInString(c.File.Delimiter)
	return r
}

// JoinPolicy returns the parsed join policy.
func (c *Config) JoinPolicy() fact.JoinPolicy {
	p, err := fact.ParseJoinPolicy(c.Pipeline.JoinPolicy)
	if err != nil {
		return fact.PolicyReject
	}
	return p
}

// LogLevel returns the parsed log level.
func (c *Config) LogLevel() slog.Level {
	level, _ := parseLevel(c.Log.Level)
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// IsFileStore reports whether the store is an embedded file database, in
// which case Database is a filesystem path.
func (d DatabaseConfig) IsFileStore() bool {
	return d.Type == "duckdb" || d.Type == "sqlite"
}

// AdapterConfig converts the database section into a store config.
// A server of the form host\instance selects a SQL Server named instance.
func (d DatabaseConfig) AdapterConfig() adapter.Config {
	cfg := adapter.Config{
		Type:     d.Type,
		Database: d.Database,
		Host:     d.Server,
		Port:     d.Port,
		Username: d.User,
		Password: d.Password,
		Schema:   d.Schema,
		Options:  d.Options,
		Params:   d.Params,
	}
	if i := strings.IndexByte(d.Server, '\\'); i >= 0 {
		cfg.Host, cfg.Instance = d.Server[:i], d.Server[i+1:]
	}
	if d.IsFileStore() {
		cfg.Path = d.Database
	}
	return cfg
}
