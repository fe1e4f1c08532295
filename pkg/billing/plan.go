package billing

import (
	"strings"
	"time"

	"github.com/pario-ai/tokenboard/pkg/models"
)

var plans = map[string]models.Plan{
	"pro":    {ID: "pro", Name: "Claude Pro", MonthlyPrice: 20},
	"max5x":  {ID: "max5x", Name: "Claude Max 5x", MonthlyPrice: 100},
	"max20x": {ID: "max20x", Name: "Claude Max 20x", MonthlyPrice: 200},
}

// LookupPlan resolves a plan id. "max" is an alias for max5x; unknown ids
// come back with a zero price.
func LookupPlan(id string) models.Plan {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "max" {
		id = "max5x"
	}
	if p, ok := plans[id]; ok {
		return p
	}
	return models.Plan{ID: id, Name: id}
}

// Evaluate values cycle usage against the plan price. For a cycle still in
// progress the cost is projected over the full cycle from the days elapsed.
func Evaluate(totals models.UsageTotals, w Window, plan models.Plan, now time.Time) models.CycleUsage {
	cu := models.CycleUsage{
		UsageTotals:   totals,
		Start:         w.StartDate(),
		End:           w.EndDate(),
		PlanPrice:     plan.MonthlyPrice,
		Savings:       totals.TotalCost - plan.MonthlyPrice,
		ProjectedCost: totals.TotalCost,
	}
	if plan.MonthlyPrice > 0 {
		cu.ValueRatio = totals.TotalCost / plan.MonthlyPrice
	}

	today := truncateDay(now)
	if !today.Before(w.Start) && !today.After(w.End) {
		elapsed := Window{Start: w.Start, End: today}.Days()
		cu.ProjectedCost = totals.TotalCost / float64(elapsed) * float64(w.Days())
	}
	return cu
}
