package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Collector holds the collector's persisted settings. It is loaded once at
// startup and passed to whatever needs it.
type Collector struct {
	APIKey                string       `json:"apiKey"`
	Endpoint              string       `json:"endpoint"`
	Schedule              string       `json:"schedule"`
	Retry                 RetryConfig  `json:"retry"`
	Device                DeviceConfig `json:"device"`
	Agents                []string     `json:"agents"`
	CommandTimeoutSeconds int          `json:"commandTimeoutSeconds"`
	UseShell              *bool        `json:"useShell,omitempty"`
}

// RetryConfig bounds sync retries.
type RetryConfig struct {
	Attempts int `json:"attempts"`
	DelayMs  int `json:"delayMs"`
}

// DeviceConfig overrides or caches the device identity.
type DeviceConfig struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// Delay returns the configured retry delay.
func (r RetryConfig) Delay() time.Duration {
	return time.Duration(r.DelayMs) * time.Millisecond
}

// CommandTimeout returns the per-command collection timeout.
func (c Collector) CommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutSeconds) * time.Second
}

// ShellFallback reports whether commands may be run through the login shell.
func (c Collector) ShellFallback() bool {
	return c.UseShell == nil || *c.UseShell
}

// DefaultCollector returns collector defaults.
func DefaultCollector() Collector {
	return Collector{
		Schedule:              "0 * * * *",
		Retry:                 RetryConfig{Attempts: 3, DelayMs: 1000},
		Agents:                []string{"claude-code"},
		CommandTimeoutSeconds: 120,
	}
}

// CollectorDir returns the directory holding collector state.
func CollectorDir() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("APPDATA"), "tokenboard")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "tokenboard")
}

// CollectorPath returns the default collector config path.
func CollectorPath() string {
	return filepath.Join(CollectorDir(), "collector.json")
}

// LoadCollector reads the collector config at path. A missing file yields
// defaults and no error.
func LoadCollector(path string) (Collector, error) {
	cfg := DefaultCollector()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading collector config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultCollector(), fmt.Errorf("parsing collector config %s: %w", path, err)
	}

	def := DefaultCollector()
	if cfg.Schedule == "" {
		cfg.Schedule = def.Schedule
	}
	if cfg.Retry.Attempts <= 0 {
		cfg.Retry.Attempts = def.Retry.Attempts
	}
	if cfg.Retry.DelayMs < 0 {
		cfg.Retry.DelayMs = def.Retry.DelayMs
	}
	if len(cfg.Agents) == 0 {
		cfg.Agents = def.Agents
	}
	if cfg.CommandTimeoutSeconds <= 0 {
		cfg.CommandTimeoutSeconds = def.CommandTimeoutSeconds
	}
	return cfg, nil
}

// SaveCollector writes cfg to path with owner-only permissions since it
// holds the API key.
func SaveCollector(path string, cfg Collector) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling collector config: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing collector config: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("securing collector config: %w", err)
	}
	return nil
}

// Validate checks the fields a sync needs.
func (c Collector) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return errors.New("api key is not configured; run `tokenboard-collector config`")
	}
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is not configured; run `tokenboard-collector config`")
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("endpoint %q is not an http(s) URL", c.Endpoint)
	}
	return nil
}

// MaskedAPIKey hides all but the last four characters of the key.
func (c Collector) MaskedAPIKey() string {
	k := c.APIKey
	if k == "" {
		return "(not set)"
	}
	if len(k) <= 4 {
		return strings.Repeat("*", len(k))
	}
	return strings.Repeat("*", len(k)-4) + k[len(k)-4:]
}
