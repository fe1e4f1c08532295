package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}

func newStartCmd(g *globalOpts) *cobra.Command {
	var skipInitial bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Sync now, then keep syncing on the configured schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(g)
			if err != nil {
				return err
			}
			defer a.close()

			if err := checkConfig(a.cfg); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger := cronLogger{s: a.logger.Named("cron").Sugar()}
			c := cron.New(
				cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
				cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
				cron.WithLogger(logger),
			)
			if _, err := c.AddFunc(a.cfg.Schedule, func() { a.scheduledSync(ctx) }); err != nil {
				return fmt.Errorf("invalid schedule %q: %w", a.cfg.Schedule, err)
			}

			headerColor.Printf("tokenboard collector running (schedule %q)\n", a.cfg.Schedule)
			if !skipInitial {
				a.scheduledSync(ctx)
			}

			c.Start()
			<-ctx.Done()
			fmt.Println("stopping, waiting for a running sync to finish...")
			<-c.Stop().Done()
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipInitial, "skip-initial", false, "wait for the first scheduled run instead of syncing immediately")
	return cmd
}

// scheduledSync runs one pass. Errors are reported but never stop the
// schedule.
func (a *app) scheduledSync(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := a.syncOnce(ctx, false); err != nil {
		fmt.Printf("%s %v\n", badColor.Sprint("sync failed:"), err)
		a.logger.Warn("scheduled sync failed", zap.Error(err))
	}
}
