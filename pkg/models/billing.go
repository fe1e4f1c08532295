package models

// Plan is a subscription tier with a fixed monthly price.
type Plan struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	MonthlyPrice float64 `json:"monthlyPrice"`
}

// BillingCycle describes the current and previous cycle windows. Dates are
// inclusive and formatted YYYY-MM-DD.
type BillingCycle struct {
	StartDay      int    `json:"startDay"`
	CurrentStart  string `json:"currentStart"`
	CurrentEnd    string `json:"currentEnd"`
	PreviousStart string `json:"previousStart"`
	PreviousEnd   string `json:"previousEnd"`
	TotalDays     int    `json:"totalDays"`
	DaysElapsed   int    `json:"daysElapsed"`
	DaysRemaining int    `json:"daysRemaining"`
}

// CycleUsage is usage within one billing cycle compared against the plan.
type CycleUsage struct {
	UsageTotals
	Start         string  `json:"start"`
	End           string  `json:"end"`
	PlanPrice     float64 `json:"planPrice"`
	ValueRatio    float64 `json:"valueRatio"`
	Savings       float64 `json:"savings"`
	ProjectedCost float64 `json:"projectedCost"`
}
