package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/tokenboard/pkg/config"
	"github.com/pario-ai/tokenboard/pkg/history"
)

func validCollector() config.Collector {
	cfg := config.DefaultCollector()
	cfg.APIKey = "secret-key"
	cfg.Endpoint = "https://usage.example.com/api/usage-sync"
	return cfg
}

func TestCheckConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Collector)
		wantErr string
	}{
		{name: "valid", mutate: func(*config.Collector) {}},
		{name: "bad schedule", mutate: func(c *config.Collector) { c.Schedule = "every hour" }, wantErr: "invalid schedule"},
		{name: "unknown agent", mutate: func(c *config.Collector) { c.Agents = []string{"claude-code", "cursor"} }, wantErr: "cursor"},
		{name: "no attempts", mutate: func(c *config.Collector) { c.Retry.Attempts = 0 }, wantErr: "at least 1"},
		{name: "missing key", mutate: func(c *config.Collector) { c.APIKey = "" }, wantErr: "api key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validCollector()
			tt.mutate(&cfg)
			err := checkConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPrompterFill(t *testing.T) {
	in := strings.NewReader(strings.Join([]string{
		"https://usage.example.com/api/usage-sync",
		"new-key-1234",
		"claude-code, codex,,codex",
		"",
		"Work laptop",
		"5",
	}, "\n") + "\n")
	var out bytes.Buffer

	cfg := config.DefaultCollector()
	require.NoError(t, newPrompter(in, &out).fill(&cfg))

	assert.Equal(t, "https://usage.example.com/api/usage-sync", cfg.Endpoint)
	assert.Equal(t, "new-key-1234", cfg.APIKey)
	assert.Equal(t, []string{"claude-code", "codex"}, cfg.Agents)
	assert.Equal(t, "0 * * * *", cfg.Schedule)
	assert.Equal(t, "Work laptop", cfg.Device.DisplayName)
	assert.Equal(t, 5, cfg.Retry.Attempts)
}

func TestPrompterKeepsMaskedKey(t *testing.T) {
	cfg := validCollector()
	masked := cfg.MaskedAPIKey()
	in := strings.NewReader("\n" + masked + "\n\n\n\n\n")

	require.NoError(t, newPrompter(in, &bytes.Buffer{}).fill(&cfg))
	assert.Equal(t, "secret-key", cfg.APIKey)
}

func TestPrompterRejectsBadAttempts(t *testing.T) {
	cfg := validCollector()
	in := strings.NewReader("\n\n\n\n\nlots\n")

	err := newPrompter(in, &bytes.Buffer{}).fill(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry attempts")
}

func TestPrintRuns(t *testing.T) {
	color.NoColor = true
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	printRuns(&buf, []history.Run{
		{RunAt: now, AgentType: "claude-code", Records: 3, Succeeded: 3},
		{RunAt: now, AgentType: "codex", Records: 2, Succeeded: 1, Failed: 1},
		{RunAt: now, AgentType: "amp", Error: "collect amp: no candidates"},
	})
	out := buf.String()
	assert.Contains(t, out, "AGENT")
	assert.Contains(t, out, "partial")
	assert.Contains(t, out, "error: collect amp")

	buf.Reset()
	printRuns(&buf, nil)
	assert.Contains(t, buf.String(), "none yet")
}
