// Package pipeline runs one collect-and-sync pass over the configured agents.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pario-ai/tokenboard/pkg/collector"
	"github.com/pario-ai/tokenboard/pkg/history"
	"github.com/pario-ai/tokenboard/pkg/models"
)

// Collector gathers usage for several agents.
type Collector interface {
	CollectAll(ctx context.Context, agents []string, device models.DeviceInfo) []collector.AgentResult
}

// Sender delivers one agent's payload.
type Sender interface {
	Send(ctx context.Context, data models.UsageData) (models.SyncResponse, error)
}

// Recorder persists run outcomes.
type Recorder interface {
	Record(ctx context.Context, r history.Run) error
}

// Outcome is the result for one agent.
type Outcome struct {
	AgentType string
	Data      models.UsageData
	Response  models.SyncResponse
	DryRun    bool
	Err       error
}

// Succeeded counts records the server accepted.
func (o Outcome) Succeeded() int {
	return o.Response.Processed - o.Response.Failed()
}

// Pipeline wires collection to delivery.
type Pipeline struct {
	collector Collector
	sender    Sender
	recorder  Recorder
	logger    *zap.Logger
}

// New creates a Pipeline. sender may be nil for dry runs only; recorder may be nil.
func New(c Collector, s Sender, r Recorder, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{collector: c, sender: s, recorder: r, logger: logger}
}

// Run collects every agent, then sends each successful collection unless
// dryRun is set. Failures are isolated per agent.
func (p *Pipeline) Run(ctx context.Context, agents []string, device models.DeviceInfo, dryRun bool) []Outcome {
	start := time.Now()
	results := p.collector.CollectAll(ctx, agents, device)

	outcomes := make([]Outcome, 0, len(results))
	for _, res := range results {
		o := Outcome{AgentType: res.AgentType, Data: res.Data, DryRun: dryRun, Err: res.Err}
		if o.Err == nil && !dryRun {
			o.Response, o.Err = p.sender.Send(ctx, res.Data)
		}
		if o.Err != nil {
			p.logger.Warn("agent sync failed", zap.String("agent", o.AgentType), zap.Error(o.Err))
		}
		p.record(ctx, o, start)
		outcomes = append(outcomes, o)
	}
	return outcomes
}

func (p *Pipeline) record(ctx context.Context, o Outcome, at time.Time) {
	if p.recorder == nil {
		return
	}
	run := history.Run{
		RunAt:     at,
		AgentType: o.AgentType,
		Records:   len(o.Data.Daily),
		DryRun:    o.DryRun,
	}
	if o.Err != nil {
		run.Error = o.Err.Error()
	} else if !o.DryRun {
		run.Failed = o.Response.Failed()
		run.Succeeded = o.Succeeded()
	}
	if err := p.recorder.Record(ctx, run); err != nil {
		p.logger.Warn("record run history failed", zap.Error(err))
	}
}

// Failed reports whether any outcome carries an error.
func Failed(outcomes []Outcome) bool {
	for _, o := range outcomes {
		if o.Err != nil {
			return true
		}
	}
	return false
}
