package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pario-ai/tokenboard/pkg/audit"
	"github.com/pario-ai/tokenboard/pkg/models"
)

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query and prune the sync audit trail",
	}

	cmd.AddCommand(
		newAuditSearchCmd(),
		newAuditStatsCmd(),
		newAuditCleanupCmd(),
	)
	return cmd
}

func openAuditor(cmd *cobra.Command, configPath string) (*audit.Logger, func(), error) {
	a, err := openApp(cmd.Context(), configPath)
	if err != nil {
		return nil, nil, err
	}
	l := audit.New(a.store.DB(), a.cfg.Audit, a.logger)
	return l, func() {
		_ = l.Close()
		a.close()
	}, nil
}

func newAuditSearchCmd() *cobra.Command {
	var (
		configPath string
		deviceID   string
		requestID  string
		since      string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "List recent sync events",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openAuditor(cmd, configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			opts := models.AuditQueryOpts{DeviceID: deviceID, RequestID: requestID, Limit: limit}
			if since != "" {
				t, err := time.Parse("2006-01-02", since)
				if err != nil {
					return fmt.Errorf("invalid --since date (use YYYY-MM-DD): %w", err)
				}
				opts.Since = t
			}

			events, err := l.Query(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Println("No sync events found.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tDEVICE\tAGENT\tPROCESSED\tOK\tFAILED\tLATENCY\tREQUEST")
			for _, e := range events {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%dms\t%s\n",
					e.CreatedAt.Local().Format("2006-01-02T15:04:05"), e.DeviceID, e.AgentType,
					e.Processed, e.Succeeded, e.Failed, e.LatencyMs, e.RequestID)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	cmd.Flags().StringVar(&deviceID, "device", "", "filter by device id")
	cmd.Flags().StringVar(&requestID, "request", "", "filter by request id")
	cmd.Flags().StringVar(&since, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 50, "max events to return")
	return cmd
}

func newAuditStatsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show sync counts per device and day",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openAuditor(cmd, configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			rows, err := l.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Println("No sync events recorded.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DAY\tDEVICE\tSYNCS\tRECORDS OK\tRECORDS FAILED")
			for _, s := range rows {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n", s.Day, s.DeviceID, s.Syncs, s.Succeeded, s.Failed)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	return cmd
}

func newAuditCleanupCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete sync events older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openAuditor(cmd, configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			n, err := l.Cleanup(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %d sync event(s).\n", n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	return cmd
}
