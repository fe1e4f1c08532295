package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pario-ai/tokenboard/pkg/models"
)

func TestPrintStats(t *testing.T) {
	resp := models.StatsResponse{
		BillingCycle: models.BillingCycle{CurrentStart: "2024-02-15", CurrentEnd: "2024-03-14", TotalDays: 29, DaysElapsed: 6, DaysRemaining: 23},
		CurrentCycle: models.CycleUsage{
			UsageTotals: models.UsageTotals{TotalTokens: 1200, TotalCost: 42.5, ActiveDays: 3},
			PlanPrice:   100,
			ValueRatio:  0.425,
		},
		Devices: []models.DeviceSummary{
			{DeviceName: "laptop", RecordCount: 3, TotalCost: 42.5},
			{DeviceName: "idle"},
		},
		Daily: []models.DailyTotal{
			{Date: "2024-02-15", TotalCost: 1},
			{Date: "2024-02-16", TotalCost: 2},
			{Date: "2024-02-17", TotalCost: 3},
		},
		Subscription: models.Subscription{Plan: models.Plan{ID: "max5x", Name: "Claude Max 5x", MonthlyPrice: 100}},
	}

	var buf bytes.Buffer
	if err := printStats(&buf, resp, 2); err != nil {
		t.Fatalf("printStats: %v", err)
	}
	out := buf.String()

	for _, want := range []string{"2024-02-15 .. 2024-03-14", "$42.50", "0.4x of $100", "laptop", "Claude Max 5x"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Count(out, "2024-02-1") != 3 {
		t.Errorf("expected only the last 2 days listed:\n%s", out)
	}
}
