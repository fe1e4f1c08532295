package models

import "encoding/json"

// Sync result statuses.
const (
	SyncStatusSuccess = "success"
	SyncStatusError   = "error"
)

// DeviceInfo identifies the reporting machine in a sync payload.
type DeviceInfo struct {
	DeviceID    string  `json:"deviceId"`
	DeviceName  string  `json:"deviceName"`
	DisplayName *string `json:"displayName,omitempty"`
	AgentType   string  `json:"agentType,omitempty"`
}

// DailyUsage is one canonical day of usage as sent by the collector.
type DailyUsage struct {
	Date                string          `json:"date"`
	InputTokens         int64           `json:"inputTokens"`
	OutputTokens        int64           `json:"outputTokens"`
	CacheCreationTokens int64           `json:"cacheCreationTokens"`
	CacheReadTokens     int64           `json:"cacheReadTokens"`
	TotalTokens         int64           `json:"totalTokens"`
	TotalCost           float64         `json:"totalCost"`
	Credits             *float64        `json:"credits,omitempty"`
	ModelsUsed          []string        `json:"modelsUsed,omitempty"`
	RawData             json.RawMessage `json:"rawData,omitempty"`
}

// Totals sums a set of DailyUsage rows.
type Totals struct {
	InputTokens         int64    `json:"inputTokens"`
	OutputTokens        int64    `json:"outputTokens"`
	CacheCreationTokens int64    `json:"cacheCreationTokens"`
	CacheReadTokens     int64    `json:"cacheReadTokens"`
	TotalTokens         int64    `json:"totalTokens"`
	TotalCost           float64  `json:"totalCost"`
	Credits             *float64 `json:"credits,omitempty"`
}

// UsageData is the payload the collector posts to the sync endpoint.
type UsageData struct {
	Device DeviceInfo   `json:"device"`
	Daily  []DailyUsage `json:"daily"`
	Totals Totals       `json:"totals"`
}

// SyncRequest is the sync endpoint's view of an incoming payload. Daily
// entries stay raw so each one can be validated on its own.
type SyncRequest struct {
	Device *DeviceInfo       `json:"device"`
	Daily  []json.RawMessage `json:"daily"`
}

// SyncResult reports the outcome for one daily record.
type SyncResult struct {
	Date    string `json:"date"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// SyncResponse is returned by the sync endpoint. Success only means the
// request was handled; per-record outcomes live in Results.
type SyncResponse struct {
	Success   bool         `json:"success"`
	Processed int          `json:"processed"`
	Results   []SyncResult `json:"results"`
}

// Failed counts results with an error status.
func (r SyncResponse) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Status != SyncStatusSuccess {
			n++
		}
	}
	return n
}
