package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pario-ai/tokenboard/pkg/collector"
	"github.com/pario-ai/tokenboard/pkg/history"
)

func newStatusCmd(g *globalOpts) *cobra.Command {
	var last int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show configuration, resolved agent commands and recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(g)
			if err != nil {
				return err
			}
			defer a.close()

			out := cmd.OutOrStdout()
			if err := printConfig(out, a.path, a.cfg); err != nil {
				return err
			}
			if err := a.cfg.Validate(); err != nil {
				fmt.Fprintf(out, "  %s %v\n", warnColor.Sprint("!"), err)
			}

			fmt.Fprintln(out)
			if dev, err := collector.ResolveDevice(a.cfg.Device, nil); err != nil {
				fmt.Fprintf(out, "%s %s\n", labelColor.Sprint("Device:"), badColor.Sprint(err))
			} else {
				fmt.Fprintf(out, "%s %s (%s)\n", labelColor.Sprint("Device:"), dev.DeviceName, dev.DeviceID)
			}

			fmt.Fprintln(out)
			labelColor.Fprintln(out, "Agents:")
			for _, agent := range a.cfg.Agents {
				cmds, err := a.router.Resolve(agent)
				if err != nil {
					fmt.Fprintf(out, "  %s %s: %v\n", badColor.Sprint("✗"), agent, err)
					continue
				}
				fmt.Fprintf(out, "  %s %s: %s (%s)\n", goodColor.Sprint("✓"), agent, cmds[0], cmds[0].Via)
				if a.history == nil {
					continue
				}
				if run, ok, err := a.history.LastSuccess(cmd.Context(), agent); err == nil && ok {
					fmt.Fprintf(out, "      last synced %s\n", run.RunAt.Local().Format(time.DateTime))
				}
			}

			if a.history == nil {
				return nil
			}
			runs, err := a.history.Recent(cmd.Context(), last)
			if err != nil {
				return err
			}
			fmt.Fprintln(out)
			labelColor.Fprintln(out, "Recent runs:")
			printRuns(out, runs)
			return nil
		},
	}
	cmd.Flags().IntVarP(&last, "last", "n", 10, "number of recent runs to show")
	return cmd
}

func printRuns(out io.Writer, runs []history.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "  (none yet)")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  TIME\tAGENT\tRECORDS\tOK\tFAILED\tRESULT")
	for _, r := range runs {
		result := "ok"
		switch {
		case !r.OK():
			result = "error: " + truncate(r.Error, 60)
		case r.DryRun:
			result = "dry run"
		case r.Failed > 0:
			result = "partial"
		}
		fmt.Fprintf(tw, "  %s\t%s\t%d\t%d\t%d\t%s\n",
			r.RunAt.Local().Format(time.DateTime), r.AgentType, r.Records, r.Succeeded, r.Failed, result)
	}
	_ = tw.Flush()
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
