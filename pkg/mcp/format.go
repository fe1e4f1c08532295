package mcp

import (
	"fmt"
	"strings"
	"time"

	"github.com/pario-ai/tokenboard/pkg/models"
)

func formatSummary(r models.StatsResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Billing cycle %s to %s (day %d of %d, %d remaining)\n\n",
		r.BillingCycle.CurrentStart, r.BillingCycle.CurrentEnd,
		r.BillingCycle.DaysElapsed, r.BillingCycle.TotalDays, r.BillingCycle.DaysRemaining)

	fmt.Fprintf(&b, "%-16s %14s %12s %8s %12s\n", "Window", "Tokens", "Cost", "Days", "Avg/Day")
	b.WriteString(strings.Repeat("-", 66) + "\n")
	rows := []struct {
		label string
		t     models.UsageTotals
	}{
		{"Current cycle", r.CurrentCycle.UsageTotals},
		{"Previous cycle", r.PreviousCycle.UsageTotals},
		{"Last 30 days", r.Last30Days},
		{"All time", r.Totals},
	}
	for _, row := range rows {
		fmt.Fprintf(&b, "%-16s %14d %12s %8d %12s\n",
			row.label, row.t.TotalTokens, money(row.t.TotalCost), row.t.ActiveDays, money(row.t.AvgDailyCost))
	}

	plan := r.Subscription.Plan
	if plan.MonthlyPrice > 0 {
		fmt.Fprintf(&b, "\nPlan %s at %s/month: %.1fx value this cycle, projected %s\n",
			plan.Name, money(plan.MonthlyPrice), r.CurrentCycle.ValueRatio, money(r.CurrentCycle.ProjectedCost))
	}
	return b.String()
}

func formatDaily(daily []models.DailyTotal, days int) string {
	if len(daily) == 0 {
		return "No usage data found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %14s %12s %8s\n", "Date", "Tokens", "Cost", "Devices")
	b.WriteString(strings.Repeat("-", 49) + "\n")
	for i := len(daily) - 1; i >= 0 && len(daily)-i <= days; i-- {
		d := daily[i]
		fmt.Fprintf(&b, "%-12s %14d %12s %8d\n", d.Date, d.TotalTokens, money(d.TotalCost), d.DeviceCount)
	}
	return b.String()
}

func formatDevices(devices []models.DeviceSummary) string {
	if len(devices) == 0 {
		return "No devices have synced yet."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-24s %-34s %8s %14s %12s %-12s\n", "Device", "ID", "Records", "Tokens", "Cost", "Last Active")
	b.WriteString(strings.Repeat("-", 109) + "\n")
	for _, d := range devices {
		last := d.LastActive
		if last == "" {
			last = "never"
		}
		fmt.Fprintf(&b, "%-24s %-34s %8d %14d %12s %-12s\n",
			clip(d.Label(), 24), clip(d.DeviceID, 34), d.RecordCount, d.TotalTokens, money(d.TotalCost), last)
	}
	return b.String()
}

func formatSyncEvents(events []models.SyncEvent) string {
	if len(events) == 0 {
		return "No sync requests found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %-20s %-12s %6s %6s %6s %8s\n", "Time", "Device", "Agent", "Recs", "OK", "Failed", "Latency")
	b.WriteString(strings.Repeat("-", 85) + "\n")
	for _, e := range events {
		fmt.Fprintf(&b, "%-20s %-20s %-12s %6d %6d %6d %6dms\n",
			e.CreatedAt.UTC().Format(time.DateTime), clip(e.DeviceID, 20), e.AgentType,
			e.Processed, e.Succeeded, e.Failed, e.LatencyMs)
	}
	return b.String()
}

func money(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
