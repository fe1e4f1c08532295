package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pario-ai/tokenboard/pkg/models"
	"github.com/pario-ai/tokenboard/pkg/stats"
)

func newStatsCmd() *cobra.Command {
	var (
		configPath string
		asJSON     bool
		days       int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show usage statistics in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer a.close()

			resp, err := stats.New(a.store, statsOptions(a), nil).Compose(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			return printStats(os.Stdout, resp, days)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw stats payload")
	cmd.Flags().IntVar(&days, "days", 7, "number of recent days to list")
	return cmd
}

func printStats(out io.Writer, resp models.StatsResponse, days int) error {
	bc := resp.BillingCycle
	fmt.Fprintf(out, "Billing cycle %s .. %s (day %d of %d, %d remaining)\n\n",
		bc.CurrentStart, bc.CurrentEnd, bc.DaysElapsed, bc.TotalDays, bc.DaysRemaining)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PERIOD\tTOKENS\tCOST\tACTIVE DAYS\tAVG/DAY\tVALUE")
	row := func(name string, t models.UsageTotals, value string) {
		fmt.Fprintf(w, "%s\t%d\t$%.2f\t%d\t$%.2f\t%s\n",
			name, t.TotalTokens, t.TotalCost, t.ActiveDays, t.AvgDailyCost, value)
	}
	plan := resp.Subscription.Plan
	valueOf := func(c models.CycleUsage) string {
		if c.PlanPrice == 0 {
			return "-"
		}
		return fmt.Sprintf("%.1fx of $%.0f", c.ValueRatio, c.PlanPrice)
	}
	row("current cycle", resp.CurrentCycle.UsageTotals, valueOf(resp.CurrentCycle))
	row("previous cycle", resp.PreviousCycle.UsageTotals, valueOf(resp.PreviousCycle))
	row("last 30 days", resp.Last30Days, "-")
	row("all time", resp.Totals, "-")
	if err := w.Flush(); err != nil {
		return err
	}
	if plan.MonthlyPrice > 0 {
		fmt.Fprintf(out, "\nPlan %s ($%.0f/mo), projected cycle cost $%.2f\n",
			plan.Name, plan.MonthlyPrice, resp.CurrentCycle.ProjectedCost)
	}

	if len(resp.Devices) > 0 {
		fmt.Fprintln(out)
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "DEVICE\tRECORDS\tTOKENS\tCOST\tLAST ACTIVE")
		for _, d := range resp.Devices {
			last := d.LastActive
			if last == "" {
				last = "-"
			}
			fmt.Fprintf(w, "%s\t%d\t%d\t$%.2f\t%s\n", d.Label(), d.RecordCount, d.TotalTokens, d.TotalCost, last)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if days > 0 && len(resp.Daily) > 0 {
		fmt.Fprintln(out)
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "DATE\tDEVICES\tTOKENS\tCOST")
		daily := resp.Daily
		if len(daily) > days {
			daily = daily[len(daily)-days:]
		}
		for _, d := range daily {
			fmt.Fprintf(w, "%s\t%d\t%d\t$%.2f\n", d.Date, d.DeviceCount, d.TotalTokens, d.TotalCost)
		}
		return w.Flush()
	}
	return nil
}
