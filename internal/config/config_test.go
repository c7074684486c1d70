package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withEnv(t *testing.T, key, value string) {
	t.Helper()
	original, had := os.LookupEnv(key)
	t.Cleanup(func() {
		if had {
			os.Setenv(key, original)
		} else {
			os.Unsetenv(key)
		}
	})
	if value == "" {
		os.Unsetenv(key)
	} else {
		os.Setenv(key, value)
	}
}

func TestLoad_DataDir_DefaultWhenNotSet(t *testing.T) {
	withEnv(t, "TRADER_DATA_DIR", "")
	withEnv(t, "DATA_DIR", "")

	cfg, err := Load()
	require.NoError(t, err)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, defaultDataDir), cfg.DataDir)
}

func TestLoad_DataDir_FromTRADER_DATA_DIR(t *testing.T) {
	testPath := filepath.Join(t.TempDir(), "trader-data")
	withEnv(t, "TRADER_DATA_DIR", testPath)
	withEnv(t, "DATA_DIR", "")

	cfg, err := Load()
	require.NoError(t, err)

	absPath, err := filepath.Abs(testPath)
	require.NoError(t, err)
	assert.Equal(t, absPath, cfg.DataDir)
}

func TestLoad_DataDir_IgnoresOldDATA_DIR(t *testing.T) {
	tmpDir := t.TempDir()
	withEnv(t, "DATA_DIR", tmpDir)
	withEnv(t, "TRADER_DATA_DIR", "")

	cfg, err := Load()
	require.NoError(t, err)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, defaultDataDir), cfg.DataDir)
	assert.NotEqual(t, tmpDir, cfg.DataDir)
}

func TestLoad_DataDir_TRADER_DATA_DIRTakesPrecedence(t *testing.T) {
	traderDataDir := filepath.Join(t.TempDir(), "trader-data-dir")
	oldDataDir := filepath.Join(t.TempDir(), "old-data-dir")
	withEnv(t, "TRADER_DATA_DIR", traderDataDir)
	withEnv(t, "DATA_DIR", oldDataDir)

	cfg, err := Load()
	require.NoError(t, err)

	absPath, err := filepath.Abs(traderDataDir)
	require.NoError(t, err)
	assert.Equal(t, absPath, cfg.DataDir)
	assert.NotEqual(t, oldDataDir, cfg.DataDir)
}

func TestLoad_DataDir_ResolvesRelativeToAbsolute(t *testing.T) {
	withEnv(t, "TRADER_DATA_DIR", "./relative/path")
	withEnv(t, "DATA_DIR", "")
	t.Cleanup(func() { os.RemoveAll("./relative") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(cfg.DataDir))

	expectedAbs, err := filepath.Abs("./relative/path")
	require.NoError(t, err)
	assert.Equal(t, expectedAbs, cfg.DataDir)
}

func TestLoad_DataDir_CreatesDirectoryIfNeeded(t *testing.T) {
	tmpDir := filepath.Join(t.TempDir(), "new-data-dir")
	withEnv(t, "TRADER_DATA_DIR", tmpDir)
	withEnv(t, "DATA_DIR", "")

	cfg, err := Load()
	require.NoError(t, err)

	info, err := os.Stat(cfg.DataDir)
	require.NoError(t, err, "directory should be created")
	assert.True(t, info.IsDir())
}

func TestLoad_DataDir_CLIFlagTakesPrecedence(t *testing.T) {
	envDataDir := t.TempDir()
	withEnv(t, "TRADER_DATA_DIR", envDataDir)
	withEnv(t, "DATA_DIR", "")

	cliDataDir := t.TempDir()
	cfg, err := Load(cliDataDir)
	require.NoError(t, err)

	absPath, err := filepath.Abs(cliDataDir)
	require.NoError(t, err)
	assert.Equal(t, absPath, cfg.DataDir)
	assert.NotEqual(t, envDataDir, cfg.DataDir)
}

func TestLoad_DataDir_CLIFlagEmptyString(t *testing.T) {
	envDataDir := t.TempDir()
	withEnv(t, "TRADER_DATA_DIR", envDataDir)
	withEnv(t, "DATA_DIR", "")

	cfg, err := Load("")
	require.NoError(t, err)

	absPath, err := filepath.Abs(envDataDir)
	require.NoError(t, err)
	assert.Equal(t, absPath, cfg.DataDir)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	withEnv(t, "TRADER_DATA_DIR", t.TempDir())

	t.Run("GO_PORT as int", func(t *testing.T) {
		withEnv(t, "GO_PORT", "9000")
		withEnv(t, "DEV_MODE", "")
		withEnv(t, "LOG_LEVEL", "")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 9000, cfg.Port)
	})

	t.Run("GO_PORT invalid defaults", func(t *testing.T) {
		withEnv(t, "GO_PORT", "invalid")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, defaultPort, cfg.Port)
	})

	t.Run("DEV_MODE true", func(t *testing.T) {
		withEnv(t, "GO_PORT", "")
		withEnv(t, "DEV_MODE", "true")

		cfg, err := Load()
		require.NoError(t, err)
		assert.True(t, cfg.DevMode)
	})

	t.Run("DEV_MODE false", func(t *testing.T) {
		withEnv(t, "DEV_MODE", "false")

		cfg, err := Load()
		require.NoError(t, err)
		assert.False(t, cfg.DevMode)
	})

	t.Run("DEV_MODE invalid defaults to false", func(t *testing.T) {
		withEnv(t, "DEV_MODE", "invalid")

		cfg, err := Load()
		require.NoError(t, err)
		assert.False(t, cfg.DevMode)
	})

	t.Run("LOG_LEVEL from env", func(t *testing.T) {
		withEnv(t, "DEV_MODE", "")
		withEnv(t, "LOG_LEVEL", "debug")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.LogLevel)
	})

	t.Run("LOG_LEVEL defaults to info", func(t *testing.T) {
		withEnv(t, "LOG_LEVEL", "")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, defaultLogLevel, cfg.LogLevel)
	})
}
