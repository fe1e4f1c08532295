package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCollectorMissingReturnsDefaults(t *testing.T) {
	cfg, err := LoadCollector(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultCollector(), cfg)
	assert.Equal(t, 3, cfg.Retry.Attempts)
	assert.Equal(t, time.Second, cfg.Retry.Delay())
	assert.True(t, cfg.ShellFallback())
}

func TestSaveCollectorRoundTripAndMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "collector.json")
	off := false
	cfg := DefaultCollector()
	cfg.APIKey = "secret-key-1234"
	cfg.Endpoint = "https://usage.example.com/api/usage-sync"
	cfg.Device.ID = "abc"
	cfg.Agents = []string{"claude-code", "amp"}
	cfg.UseShell = &off

	require.NoError(t, SaveCollector(path, cfg))

	got, err := LoadCollector(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
	assert.False(t, got.ShellFallback())

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}
}

func TestSaveCollectorTightensExistingMode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	path := filepath.Join(t.TempDir(), "collector.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
	require.NoError(t, SaveCollector(path, DefaultCollector()))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadCollectorFillsZeroValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "collector.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"apiKey":"k","retry":{"attempts":0,"delayMs":250}}`), 0o600))

	cfg, err := LoadCollector(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Retry.Attempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.Delay())
	assert.Equal(t, []string{"claude-code"}, cfg.Agents)
	assert.Equal(t, "0 * * * *", cfg.Schedule)
}

func TestLoadCollectorBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "collector.json")
	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o600))
	_, err := LoadCollector(path)
	assert.Error(t, err)
}

func TestCollectorValidate(t *testing.T) {
	cfg := DefaultCollector()
	assert.Error(t, cfg.Validate())

	cfg.APIKey = "k"
	assert.Error(t, cfg.Validate())

	cfg.Endpoint = "ftp://example.com"
	assert.Error(t, cfg.Validate())

	cfg.Endpoint = "http://localhost:3000/api/usage-sync"
	assert.NoError(t, cfg.Validate())
}

func TestMaskedAPIKey(t *testing.T) {
	assert.Equal(t, "(not set)", Collector{}.MaskedAPIKey())
	assert.Equal(t, "***", Collector{APIKey: "abc"}.MaskedAPIKey())
	assert.Equal(t, "*****6789", Collector{APIKey: "123456789"}.MaskedAPIKey())
}
