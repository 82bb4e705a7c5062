package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix of environment overrides. Levels are separated by
// a double underscore: SALESLOAD_DATABASE__PASSWORD -> database.password.
const EnvPrefix = "SALESLOAD_"

// flagKeys maps CLI flag names to config keys. Flags not listed here are
// command options and never reach the config document.
var flagKeys = map[string]string{
	"chunksize":  "file.chunksize",
	"state":      "state_path",
	"log-level":  "log.level",
	"log-format": "log.format",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// findConfigFile finds the config file to use.
// Priority: explicit path > salesload.yaml > salesload.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{DefaultConfigFile, "salesload.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty, in-memory or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

func defaults() map[string]any {
	return map[string]any{
		"file.chunksize":                DefaultChunkSize,
		"file.delimiter":                DefaultDelimiter,
		"pipeline.join_policy":          DefaultJoinPolicy,
		"pipeline.default_income_range": DefaultIncomeRange,
		"state_path":                    DefaultStateFile,
		"log.level":                     DefaultLogLevel,
		"log.format":                    DefaultLogFormat,
	}
}

// Load loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
//
// The file must exist and contain the file, database and encryption
// sections; anything else is reported as *Error.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	path := findConfigFile(cfgFile)
	if path == "" {
		return nil, &Error{Path: DefaultConfigFile, Msg: "config file not found"}
	}
	if _, err := os.Stat(path); err != nil {
		return nil, &Error{Path: path, Msg: "config file not found", Err: err}
	}

	// 1. Read the document on its own so section presence is not masked by defaults
	doc := koanf.New(".")
	if err := doc.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, &Error{Path: path, Msg: "error reading config file", Err: err}
	}
	for _, section := range RequiredSections {
		if doc.Get(section) == nil {
			return nil, &Error{Path: path, Field: section, Msg: "section is required"}
		}
	}

	k := koanf.New(".")

	// 2. Defaults, then the document on top
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if err := k.Merge(doc); err != nil {
		return nil, fmt.Errorf("failed to merge config file: %w", err)
	}

	// 3. Environment variables (SALESLOAD_ prefix)
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags (highest priority)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			if f.Name == "verbose" {
				if v, _ := flags.GetBool("verbose"); v {
					return "log.level", "debug"
				}
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, &Error{Path: path, Msg: "unable to decode config", Err: err}
	}
	cfg.Path = path

	cfg.normalize(filepath.Dir(path))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalize infers the store type, expands ${VAR} references and anchors
// relative paths at the config file directory.
func (c *Config) normalize(baseDir string) {
	db := &c.Database
	if db.Type == "" {
		db.Type = InferType(db.Driver)
	}
	db.Type = strings.ToLower(strings.TrimSpace(db.Type))

	db.User = expandEnvVars(db.User)
	db.Password = expandEnvVars(db.Password)
	db.Server = expandEnvVars(db.Server)
	db.Database = expandEnvVars(db.Database)

	c.File.Path = resolvePathRelativeTo(c.File.Path, baseDir)
	c.File.OutputPath = resolvePathRelativeTo(c.File.OutputPath, baseDir)
	c.StatePath = resolvePathRelativeTo(c.StatePath, baseDir)
	if db.IsFileStore() {
		db.Database = resolvePathRelativeTo(db.Database, baseDir)
	}
}

// InferType maps a free-text driver name to a registered store type.
// An unrecognized driver yields the default store type.
func InferType(driver string) string {
	d := strings.ToLower(driver)
	switch {
	case strings.Contains(d, "sql server"), strings.Contains(d, "mssql"), strings.Contains(d, "sqlserver"):
		return "sqlserver"
	case strings.Contains(d, "postgres"):
		return "postgres"
	case strings.Contains(d, "sqlite"):
		return "sqlite"
	case strings.Contains(d, "duckdb"):
		return "duckdb"
	default:
		return DefaultDBType
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // Return original if not found
	})
}
