package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/salesload/internal/cipher"
	"github.com/leapstack-labs/salesload/internal/fact"
	"github.com/leapstack-labs/salesload/pkg/adapter"

	// Import adapter packages to ensure adapters are registered via init()
	_ "github.com/leapstack-labs/salesload/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/salesload/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/salesload/pkg/adapters/sqlite"
	_ "github.com/leapstack-labs/salesload/pkg/adapters/sqlserver"
)

const minimalConfig = `
file:
  path: data/sales.csv
  output_path: out
database:
  type: duckdb
  database: warehouse.duckdb
encryption:
  encrypt: false
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "salesload.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, minimalConfig)
	dir := filepath.Dir(path)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, filepath.Join(dir, "data", "sales.csv"), cfg.File.Path)
	assert.Equal(t, filepath.Join(dir, "out"), cfg.File.OutputPath)
	assert.Equal(t, DefaultChunkSize, cfg.File.ChunkSize)
	assert.Equal(t, ',', cfg.Delimiter())
	assert.Equal(t, "duckdb", cfg.Database.Type)
	assert.Equal(t, filepath.Join(dir, "warehouse.duckdb"), cfg.Database.Database)
	assert.Equal(t, fact.PolicyReject, cfg.JoinPolicy())
	assert.Equal(t, "MIDDLE EARNER", cfg.Pipeline.DefaultIncomeRange)
	assert.Equal(t, filepath.Join(dir, DefaultStateFile), cfg.StatePath)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.False(t, cfg.Encryption.Encrypt)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		field     string
		errSubstr string
	}{
		{
			name:  "missing file section",
			body:  "database:\n  type: duckdb\nencryption:\n  encrypt: false\n",
			field: "file",
		},
		{
			name:  "missing database section",
			body:  "file:\n  path: a.csv\n  output_path: out\nencryption:\n  encrypt: false\n",
			field: "database",
		},
		{
			name:  "missing encryption section",
			body:  "file:\n  path: a.csv\n  output_path: out\ndatabase:\n  type: duckdb\n",
			field: "encryption",
		},
		{
			name:  "missing file path",
			body:  strings.Replace(minimalConfig, "path: data/sales.csv", "chunksize: 10", 1),
			field: "file.path",
		},
		{
			name:  "missing output path",
			body:  strings.Replace(minimalConfig, "output_path: out", "chunksize: 10", 1),
			field: "file.output_path",
		},
		{
			name:      "non-positive chunksize",
			body:      strings.Replace(minimalConfig, "output_path: out", "output_path: out\n  chunksize: 0", 1),
			field:     "file.chunksize",
			errSubstr: "greater than zero",
		},
		{
			name:      "multi-character delimiter",
			body:      strings.Replace(minimalConfig, "output_path: out", "output_path: out\n  delimiter: ';;'", 1),
			field:     "file.delimiter",
			errSubstr: "single character",
		},
		{
			name:      "unknown store type",
			body:      strings.Replace(minimalConfig, "type: duckdb", "type: mysql", 1),
			field:     "database.type",
			errSubstr: "unknown adapter type",
		},
		{
			name:      "invalid key",
			body:      strings.Replace(minimalConfig, "encrypt: false", "encrypt: true\n  key: not-a-key", 1),
			field:     "encryption.key",
			errSubstr: "invalid key",
		},
		{
			name:      "unknown join policy",
			body:      minimalConfig + "pipeline:\n  join_policy: ignore\n",
			field:     "pipeline.join_policy",
			errSubstr: "unknown join policy",
		},
		{
			name:  "unknown log format",
			body:  minimalConfig + "log:\n  format: xml\n",
			field: "log.format",
		},
		{
			name:  "unknown log level",
			body:  minimalConfig + "log:\n  level: loud\n",
			field: "log.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.body)

			_, err := Load(path, nil)
			require.Error(t, err)

			var cfgErr *Error
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
			assert.Equal(t, path, cfgErr.Path)
			if tt.errSubstr != "" {
				assert.Contains(t, err.Error(), tt.errSubstr)
			}
		})
	}
}

func TestLoad_UnknownStoreListsAvailable(t *testing.T) {
	path := writeConfig(t, strings.Replace(minimalConfig, "type: duckdb", "type: oracle", 1))

	_, err := Load(path, nil)
	var unknown *adapter.UnknownAdapterError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "oracle", unknown.Type)
	assert.Contains(t, unknown.Available, "sqlserver")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)

	var cfgErr *Error
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "config file not found")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SALESLOAD_FILE__CHUNKSIZE", "50")
	t.Setenv("SALESLOAD_DATABASE__PASSWORD", "from-env")
	t.Setenv("SALESLOAD_LOG__FORMAT", "json")
	path := writeConfig(t, minimalConfig)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.File.ChunkSize)
	assert.Equal(t, "from-env", cfg.Database.Password)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_FlagOverrides(t *testing.T) {
	t.Setenv("SALESLOAD_FILE__CHUNKSIZE", "50")
	path := writeConfig(t, minimalConfig)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("chunksize", 0, "")
	flags.Bool("verbose", false, "")
	flags.Bool("provision-key", false, "")
	require.NoError(t, flags.Parse([]string{"--chunksize=5", "--verbose", "--provision-key"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.File.ChunkSize, "flags win over env")
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_UnsetFlagsKeepFileValues(t *testing.T) {
	path := writeConfig(t, strings.Replace(minimalConfig, "output_path: out", "output_path: out\n  chunksize: 250", 1))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("chunksize", 0, "")
	require.NoError(t, flags.Parse(nil))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.File.ChunkSize)
}

func TestLoad_SQLServerFromDriver(t *testing.T) {
	t.Setenv("SALESLOAD_TEST_DB_PASS", "s3cret")
	body := `
file:
  path: sales.csv
  output_path: out
database:
  driver: ODBC Driver 17 for SQL Server
  server: db01\SQLEXPRESS
  database: sales
  user: loader
  password: ${SALESLOAD_TEST_DB_PASS}
encryption:
  encrypt: false
`
	cfg, err := Load(writeConfig(t, body), nil)
	require.NoError(t, err)

	assert.Equal(t, "sqlserver", cfg.Database.Type)
	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.Equal(t, "sales", cfg.Database.Database, "server database names are not paths")

	ac := cfg.Database.AdapterConfig()
	assert.Equal(t, "db01", ac.Host)
	assert.Equal(t, "SQLEXPRESS", ac.Instance)
	assert.Equal(t, "loader", ac.Username)
	assert.Empty(t, ac.Path)
}

func TestInferType(t *testing.T) {
	tests := []struct {
		driver string
		want   string
	}{
		{driver: "ODBC Driver 17 for SQL Server", want: "sqlserver"},
		{driver: "mssql", want: "sqlserver"},
		{driver: "PostgreSQL Unicode", want: "postgres"},
		{driver: "SQLite3", want: "sqlite"},
		{driver: "duckdb", want: "duckdb"},
		{driver: "", want: DefaultDBType},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			assert.Equal(t, tt.want, InferType(tt.driver))
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("SALESLOAD_TEST_HOST", "db.example.com")

	assert.Equal(t, "db.example.com", expandEnvVars("${SALESLOAD_TEST_HOST}"))
	assert.Equal(t, "tcp://db.example.com:1433", expandEnvVars("tcp://${SALESLOAD_TEST_HOST}:1433"))
	assert.Equal(t, "${SALESLOAD_TEST_UNSET}", expandEnvVars("${SALESLOAD_TEST_UNSET}"))
	assert.Equal(t, "plain", expandEnvVars("plain"))
}

func TestDatabaseConfig_AdapterConfig_FileStore(t *testing.T) {
	d := DatabaseConfig{Type: "sqlite", Database: "/data/sales.db", Schema: "", Options: map[string]string{"cache": "shared"}}

	ac := d.AdapterConfig()
	assert.Equal(t, "sqlite", ac.Type)
	assert.Equal(t, "/data/sales.db", ac.Path)
	assert.Equal(t, "shared", ac.Options["cache"])
}

func TestConfig_RequireKey(t *testing.T) {
	assert.NoError(t, (&Config{}).RequireKey())
	assert.NoError(t, (&Config{Encryption: EncryptionConfig{Encrypt: true, Key: "k"}}).RequireKey())

	err := (&Config{Path: "salesload.yaml", Encryption: EncryptionConfig{Encrypt: true}}).RequireKey()
	var cfgErr *Error
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "encryption.key", cfgErr.Field)
	assert.Contains(t, err.Error(), "salesload keygen")
}

func TestProvisionKey(t *testing.T) {
	body := `# target warehouse
file:
  path: sales.csv
  output_path: out
database:
  type: duckdb
  database: warehouse.duckdb # embedded
encryption:
  encrypt: true
`
	path := writeConfig(t, body)

	key, err := ProvisionKey(path, false)
	require.NoError(t, err)
	_, err = cipher.ParseKey(key)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "# target warehouse")
	assert.Contains(t, text, "# embedded")
	assert.Contains(t, text, "key: "+key)

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, key, cfg.Encryption.Key)
	assert.NoError(t, cfg.RequireKey())

	t.Run("refuses to replace without force", func(t *testing.T) {
		_, err := ProvisionKey(path, false)
		var cfgErr *Error
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "encryption.key", cfgErr.Field)
	})

	t.Run("replaces with force", func(t *testing.T) {
		replaced, err := ProvisionKey(path, true)
		require.NoError(t, err)
		assert.NotEqual(t, key, replaced)

		cfg, err := Load(path, nil)
		require.NoError(t, err)
		assert.Equal(t, replaced, cfg.Encryption.Key)
	})
}

func TestProvisionKey_CreatesEncryptionSection(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "section missing", body: "file:\n  path: sales.csv\n"},
		{name: "section empty", body: "file:\n  path: sales.csv\nencryption:\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.body)

			key, err := ProvisionKey(path, false)
			require.NoError(t, err)

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Contains(t, string(data), "encryption:\n  key: "+key)
			assert.Contains(t, string(data), "path: sales.csv")
		})
	}
}

func TestProvisionKey_Errors(t *testing.T) {
	_, err := ProvisionKey(filepath.Join(t.TempDir(), "missing.yaml"), false)
	var cfgErr *Error
	require.ErrorAs(t, err, &cfgErr)

	_, err = ProvisionKey(writeConfig(t, "- a\n- b\n"), false)
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "YAML mapping")
}
