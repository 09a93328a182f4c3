package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Port     int    `env:"TEST_CFG_PORT" envDefault:"8080"`
	Secret   string `env:"TEST_CFG_SECRET" envDefault:"dev"`
	LogLevel string `env:"TEST_CFG_LOG_LEVEL" envDefault:"info"`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg testConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "dev", cfg.Secret)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_FromEnvVars(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "9090")
	t.Setenv("TEST_CFG_SECRET", "s3cret")

	var cfg testConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "s3cret", cfg.Secret)
}

type requiredConfig struct {
	APIKey string `env:"TEST_CFG_API_KEY,required"`
}

func TestLoad_RequiredFieldMissing(t *testing.T) {
	var cfg requiredConfig
	err := Load(&cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoad_InvalidType(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "not-a-number")

	var cfg testConfig
	err := Load(&cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

// ----------------------------------------------------------------------------
// LoadDotEnv
// ----------------------------------------------------------------------------

func TestLoadDotEnv_MissingFileIsIgnored(t *testing.T) {
	err := LoadDotEnv(filepath.Join(t.TempDir(), "does-not-exist.env"))
	assert.NoError(t, err)
}

func TestLoadDotEnv_PopulatesEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TEST_CFG_DOTENV_KEY=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("TEST_CFG_DOTENV_KEY") })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("TEST_CFG_DOTENV_KEY"))
}

func TestLoadDotEnv_ExistingEnvWins(t *testing.T) {
	t.Setenv("TEST_CFG_SECRET", "from-env")
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TEST_CFG_SECRET=from-file\n"), 0o600))

	require.NoError(t, LoadDotEnv(path))

	var cfg testConfig
	require.NoError(t, Load(&cfg))
	assert.Equal(t, "from-env", cfg.Secret)
}
