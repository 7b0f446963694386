package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigToml = `
[development]
host = "localhost"
port = 8080
log_level = "trace"
log_to_stdout = true
postgres_host = "localhost"
postgres_port = "5432"
postgres_db_name = "biopeak"
redis_host = "localhost"
redis_port = "6379"
catalog_data_dir = "./assets/catalog"
tips_csv_path = "./assets/tips.csv"
login_rate_limit_allowed_per_min = 15
activity_rate_limit_allowed_per_min = 60

[production]
host = ""
port = 9000
log_level = "info"
log_to_stdout = false
postgres_host = "db"
postgres_port = "5432"
postgres_db_name = "biopeak"
redis_host = "redis"
redis_port = "6379"
catalog_data_dir = "/var/lib/biopeak/catalog"
tips_csv_path = "/var/lib/biopeak/tips.csv"
login_rate_limit_allowed_per_min = 15
activity_rate_limit_allowed_per_min = 60
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(testConfigToml), 0o600))
	return path
}

func TestLoad_Development(t *testing.T) {
	cfg, err := Load("development", writeTestConfig(t))
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "trace", cfg.LogLevel)
	assert.True(t, cfg.LogToStdout)
	assert.Equal(t, "biopeak", cfg.PostgresDBName)
	assert.Equal(t, "./assets/catalog", cfg.CatalogDataDir)
	assert.Equal(t, 60, cfg.ActivityRateLimitAllowedPerMin)
}

func TestLoad_Production(t *testing.T) {
	cfg, err := Load("prod", writeTestConfig(t))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "db", cfg.PostgresHost)
}

func TestLoad_UnknownEnv(t *testing.T) {
	_, err := Load("staging", writeTestConfig(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown env")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("development", "/no/such/config.toml")
	require.Error(t, err)
}
