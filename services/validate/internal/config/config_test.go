package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaultsAndFile(t *testing.T) {
	path := writeConfig(t, `{"database_url":"postgres://localhost/signeddoc","counting_mode":"all-collaborators"}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8085", cfg.ListenAddr)
	assert.Equal(t, "postgres://localhost/signeddoc", cfg.DatabaseURL)
	assert.Equal(t, "all-collaborators", cfg.CountingMode)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, 5*time.Minute, cfg.FutureThreshold)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `{"database_url":"postgres://localhost/signeddoc","network":"preprod"}`)
	t.Setenv("SIGNEDDOC_NETWORK", "mainnet")
	t.Setenv("SIGNEDDOC_LISTEN_ADDR", "127.0.0.1:9000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mainnet", cfg.Network)
	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddr)
}

func TestMissingDatabaseURLFails(t *testing.T) {
	path := writeConfig(t, `{}`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestBadCountingModeFails(t *testing.T) {
	path := writeConfig(t, `{"database_url":"postgres://localhost/x","counting_mode":"everyone"}`)
	_, err := Load(path)
	require.Error(t, err)
}
