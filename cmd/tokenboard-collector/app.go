package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/pario-ai/tokenboard/pkg/collector"
	"github.com/pario-ai/tokenboard/pkg/config"
	"github.com/pario-ai/tokenboard/pkg/history"
	"github.com/pario-ai/tokenboard/pkg/logging"
	"github.com/pario-ai/tokenboard/pkg/models"
	"github.com/pario-ai/tokenboard/pkg/pipeline"
	"github.com/pario-ai/tokenboard/pkg/router"
	"github.com/pario-ai/tokenboard/pkg/syncclient"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	goodColor   = color.New(color.FgGreen)
	warnColor   = color.New(color.FgYellow)
	badColor    = color.New(color.FgRed)
	labelColor  = color.New(color.Bold)
)

type globalOpts struct {
	configPath *string
	verbose    *bool
}

func (g *globalOpts) path() string {
	if *g.configPath != "" {
		return *g.configPath
	}
	return config.CollectorPath()
}

// app holds everything a collector command needs.
type app struct {
	path      string
	cfg       config.Collector
	logger    *zap.Logger
	router    *router.Router
	collector *collector.Collector
	history   *history.Store
}

func loadApp(g *globalOpts) (*app, error) {
	path := g.path()
	cfg, err := config.LoadCollector(path)
	if err != nil {
		return nil, err
	}

	level := "warn"
	if *g.verbose {
		level = "debug"
	}
	logger, err := logging.New(level, "console")
	if err != nil {
		return nil, err
	}

	r := router.New(router.Options{UseShell: cfg.ShellFallback()})
	a := &app{
		path:      path,
		cfg:       cfg,
		logger:    logger,
		router:    r,
		collector: collector.New(r, nil, cfg.CommandTimeout(), logger.Named("collector")),
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err == nil {
		if h, err := history.Open(history.DefaultPath(dir)); err == nil {
			a.history = h
		} else {
			logger.Debug("run history unavailable", zap.Error(err))
		}
	}
	return a, nil
}

func (a *app) close() {
	if a.history != nil {
		_ = a.history.Close()
	}
	_ = a.logger.Sync()
}

// device resolves the device identity and persists a derived id so later
// runs reuse it.
func (a *app) device() (models.DeviceInfo, error) {
	dev, err := collector.ResolveDevice(a.cfg.Device, nil)
	if err != nil {
		return models.DeviceInfo{}, err
	}
	if a.cfg.Device.ID == "" {
		a.cfg.Device.ID = dev.DeviceID
		if err := config.SaveCollector(a.path, a.cfg); err != nil {
			a.logger.Warn("could not persist device id", zap.Error(err))
		}
	}
	return dev, nil
}

func (a *app) pipeline() *pipeline.Pipeline {
	var rec pipeline.Recorder
	if a.history != nil {
		rec = a.history
	}
	client := syncclient.New(a.cfg, a.logger.Named("sync"))
	return pipeline.New(a.collector, client, rec, a.logger)
}

// syncOnce runs one pass and prints a status line per agent.
func (a *app) syncOnce(ctx context.Context, dryRun bool) error {
	if !dryRun {
		if err := a.cfg.Validate(); err != nil {
			return err
		}
	}
	dev, err := a.device()
	if err != nil {
		return err
	}

	outcomes := a.pipeline().Run(ctx, a.cfg.Agents, dev, dryRun)
	for _, o := range outcomes {
		printOutcome(o)
	}
	a.pruneHistory(ctx)
	if pipeline.Failed(outcomes) {
		return fmt.Errorf("%d of %d agent(s) failed", countFailed(outcomes), len(outcomes))
	}
	return nil
}

// historyRetention bounds how long local run history is kept.
const historyRetention = 90 * 24 * time.Hour

func (a *app) pruneHistory(ctx context.Context) {
	if a.history == nil {
		return
	}
	if n, err := a.history.Prune(ctx, time.Now().Add(-historyRetention)); err != nil {
		a.logger.Debug("prune run history", zap.Error(err))
	} else if n > 0 {
		a.logger.Debug("pruned run history", zap.Int64("rows", n))
	}
}

func printOutcome(o pipeline.Outcome) {
	name := labelColor.Sprint(o.AgentType)
	switch {
	case o.Err != nil:
		fmt.Printf("%s %s: %v\n", badColor.Sprint("✗"), name, o.Err)
	case o.DryRun:
		t := o.Data.Totals
		fmt.Printf("%s %s: %d day(s), %d tokens, $%.2f (dry run, not sent)\n",
			warnColor.Sprint("◆"), name, len(o.Data.Daily), t.TotalTokens, t.TotalCost)
	default:
		failed := o.Response.Failed()
		mark := goodColor.Sprint("✓")
		if failed > 0 {
			mark = warnColor.Sprint("!")
		}
		fmt.Printf("%s %s: synced %d/%d record(s)", mark, name, o.Succeeded(), o.Response.Processed)
		if failed > 0 {
			fmt.Printf(", %s", warnColor.Sprintf("%d rejected", failed))
		}
		fmt.Println()
	}
}

func countFailed(outcomes []pipeline.Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}
