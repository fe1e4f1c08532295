package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pario-ai/tokenboard/pkg/audit"
	"github.com/pario-ai/tokenboard/pkg/ingest"
	"github.com/pario-ai/tokenboard/pkg/metrics"
	"github.com/pario-ai/tokenboard/pkg/server"
	"github.com/pario-ai/tokenboard/pkg/stats"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		listen     string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the sync and stats API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, configPath)
			if err != nil {
				return err
			}
			defer a.close()
			if listen != "" {
				a.cfg.Listen = listen
			}
			if a.cfg.APIKey == "" {
				a.logger.Warn("API_KEY is not set; sync requests will be rejected")
			}
			gin.SetMode(gin.ReleaseMode)

			auditor := audit.New(a.store.DB(), a.cfg.Audit, a.logger.Named("audit"))
			defer func() { _ = auditor.Close() }()

			m := metrics.New()
			in := ingest.New(a.store, auditor, m, a.logger.Named("ingest"))
			st := stats.New(a.store, statsOptions(a), m)
			srv := server.New(a.cfg, a.store, in, st, m, a.logger.Named("http"))

			a.logger.Info("starting tokenboard",
				zap.String("version", version),
				zap.String("listen", a.cfg.Listen),
				zap.String("plan", a.cfg.Billing.Plan))
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides config and PORT)")
	return cmd
}

func statsOptions(a *app) stats.Options {
	return stats.Options{
		CycleStartDate: a.cfg.Billing.CycleStartDate,
		Plan:           a.cfg.Billing.Plan,
		OwnerName:      a.cfg.Dashboard.OwnerName,
		AppURL:         a.cfg.Dashboard.AppURL,
	}
}

func newMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer a.close()
			a.logger.Info("schema up to date")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	return cmd
}
