package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pario-ai/tokenboard/pkg/models"
	"gopkg.in/yaml.v3"
)

// Config holds the dashboard server configuration.
type Config struct {
	Listen      string             `yaml:"listen"`
	DatabaseURL string             `yaml:"database_url"`
	APIKey      string             `yaml:"api_key"`
	Billing     BillingConfig      `yaml:"billing"`
	Dashboard   DashboardConfig    `yaml:"dashboard"`
	Log         LogConfig          `yaml:"log"`
	Audit       models.AuditConfig `yaml:"audit"`
	RateLimit   RateLimitConfig    `yaml:"rate_limit"`
}

// BillingConfig anchors billing cycles.
type BillingConfig struct {
	// CycleStartDate is a YYYY-MM-DD date or a bare day of month.
	CycleStartDate string `yaml:"cycle_start_date"`
	Plan           string `yaml:"plan"`
}

// DashboardConfig holds public settings surfaced to the dashboard.
type DashboardConfig struct {
	OwnerName string `yaml:"owner_name"`
	AppURL    string `yaml:"app_url"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// RateLimitConfig limits sync requests per client IP. Zero disables it.
type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen:      ":3000",
		DatabaseURL: "sqlite://tokenboard.db",
		Billing:     BillingConfig{Plan: "max5x"},
		Log:         LogConfig{Level: "info", Format: "console"},
		Audit:       models.AuditConfig{Enabled: true, RetentionDays: 90},
	}
}

// Load reads an optional YAML config file, expanding environment variables,
// then applies environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment variables the dashboard
// has always used.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("DATABASE_URL", &c.DatabaseURL)
	str("API_KEY", &c.APIKey)
	str("CLAUDE_BILLING_CYCLE_START_DATE", &c.Billing.CycleStartDate)
	str("NEXT_PUBLIC_SUBSCRIPTION_PLAN", &c.Billing.Plan)
	str("NEXT_PUBLIC_OWNER_NAME", &c.Dashboard.OwnerName)
	str("NEXT_PUBLIC_APP_URL", &c.Dashboard.AppURL)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("invalid PORT %q", v)
		}
		c.Listen = fmt.Sprintf(":%d", port)
	}
	return nil
}
