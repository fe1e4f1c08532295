package models

// CumulativePoint is a running total at the end of a date.
type CumulativePoint struct {
	Date             string  `json:"date"`
	DailyCost        float64 `json:"dailyCost"`
	CumulativeCost   float64 `json:"cumulativeCost"`
	CumulativeTokens int64   `json:"cumulativeTokens"`
}

// Subscription carries the public dashboard settings.
type Subscription struct {
	Plan      Plan   `json:"plan"`
	OwnerName string `json:"ownerName,omitempty"`
	AppURL    string `json:"appUrl,omitempty"`
}

// StatsResponse is the composed payload of the stats endpoint.
type StatsResponse struct {
	BillingCycle  BillingCycle      `json:"billingCycle"`
	Totals        UsageTotals       `json:"totals"`
	CurrentCycle  CycleUsage        `json:"currentCycle"`
	PreviousCycle CycleUsage        `json:"previousCycle"`
	Last30Days    UsageTotals       `json:"last30Days"`
	Daily         []DailyTotal      `json:"daily"`
	Devices       []DeviceSummary   `json:"devices"`
	DeviceData    []DeviceDay       `json:"deviceData"`
	Cumulative    []CumulativePoint `json:"cumulative"`
	Subscription  Subscription      `json:"subscription"`
}
