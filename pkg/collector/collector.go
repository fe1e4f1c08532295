// Package collector runs the local usage-reporting tools and turns their
// output into sync payloads.
package collector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pario-ai/tokenboard/pkg/models"
	"github.com/pario-ai/tokenboard/pkg/router"
)

// DefaultTimeout bounds a single command run.
const DefaultTimeout = 2 * time.Minute

// Runner executes a command and returns its stdout.
type Runner interface {
	Run(ctx context.Context, cmd router.Command) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes cmd. Stderr is attached to the error on failure.
func (ExecRunner) Run(ctx context.Context, cmd router.Command) ([]byte, error) {
	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	if err := c.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 512 {
			msg = msg[len(msg)-512:]
		}
		if msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", cmd.Via, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", cmd.Via, err)
	}
	return stdout.Bytes(), nil
}

// Resolver returns command candidates for an agent type.
type Resolver interface {
	Resolve(agentType string) ([]router.Command, error)
}

// Collector gathers usage for configured agents.
type Collector struct {
	resolver Resolver
	runner   Runner
	timeout  time.Duration
	logger   *zap.Logger
}

// New creates a Collector. A nil runner uses ExecRunner.
func New(resolver Resolver, runner Runner, timeout time.Duration, logger *zap.Logger) *Collector {
	if runner == nil {
		runner = ExecRunner{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{resolver: resolver, runner: runner, timeout: timeout, logger: logger}
}

// AgentResult is the outcome of collecting one agent.
type AgentResult struct {
	AgentType string
	Data      models.UsageData
	Err       error
}

// Run tries each candidate command in order and returns the output of the
// first that succeeds.
func (c *Collector) Run(ctx context.Context, agentType string) ([]byte, router.Command, error) {
	cmds, err := c.resolver.Resolve(agentType)
	if err != nil {
		return nil, router.Command{}, err
	}

	var errs []error
	for _, cmd := range cmds {
		runCtx, cancel := context.WithTimeout(ctx, c.timeout)
		out, err := c.runner.Run(runCtx, cmd)
		cancel()
		if err == nil {
			return out, cmd, nil
		}
		c.logger.Debug("command failed",
			zap.String("agent", agentType),
			zap.String("command", cmd.String()),
			zap.Error(err))
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, router.Command{}, errors.Join(errs...)
}

// Collect runs the agent's tool and builds a payload for device.
func (c *Collector) Collect(ctx context.Context, agentType string, device models.DeviceInfo) (models.UsageData, error) {
	out, cmd, err := c.Run(ctx, agentType)
	if err != nil {
		return models.UsageData{}, fmt.Errorf("collect %s: %w", agentType, err)
	}

	daily, totals, err := Parse(out)
	if err != nil {
		return models.UsageData{}, fmt.Errorf("collect %s: %w", agentType, err)
	}
	c.logger.Debug("collected",
		zap.String("agent", agentType),
		zap.String("via", cmd.Via),
		zap.Int("days", len(daily)))

	device.AgentType = agentType
	return models.UsageData{Device: device, Daily: daily, Totals: totals}, nil
}

// CollectAll collects every agent in order. A failing agent is recorded in
// its result and does not stop the others.
func (c *Collector) CollectAll(ctx context.Context, agents []string, device models.DeviceInfo) []AgentResult {
	results := make([]AgentResult, 0, len(agents))
	for _, agent := range agents {
		data, err := c.Collect(ctx, agent, device)
		results = append(results, AgentResult{AgentType: agent, Data: data, Err: err})
	}
	return results
}
