package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// DefaultAgentType is assumed when a sync payload does not name its agent.
const DefaultAgentType = "claude-code"

// Device is a machine or installation that reports usage.
type Device struct {
	DeviceID    string    `gorm:"primaryKey;size:128" json:"deviceId"`
	DeviceName  string    `gorm:"size:255;not null" json:"deviceName"`
	DisplayName *string   `gorm:"size:255" json:"displayName,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TableName pins the table name.
func (Device) TableName() string { return "devices" }

// UsageRecord is one day of usage for a device and agent type.
// (DeviceID, Date, AgentType) is unique.
type UsageRecord struct {
	ID                  int64                       `gorm:"primaryKey;autoIncrement" json:"id"`
	DeviceID            string                      `gorm:"size:128;not null;uniqueIndex:idx_usage_device_date_agent,priority:1" json:"deviceId"`
	Date                string                      `gorm:"size:10;not null;uniqueIndex:idx_usage_device_date_agent,priority:2;index:idx_usage_date" json:"date"`
	AgentType           string                      `gorm:"size:64;not null;default:claude-code;uniqueIndex:idx_usage_device_date_agent,priority:3" json:"agentType"`
	InputTokens         int64                       `gorm:"not null;default:0" json:"inputTokens"`
	OutputTokens        int64                       `gorm:"not null;default:0" json:"outputTokens"`
	CacheCreationTokens int64                       `gorm:"not null;default:0" json:"cacheCreationTokens"`
	CacheReadTokens     int64                       `gorm:"not null;default:0" json:"cacheReadTokens"`
	TotalTokens         int64                       `gorm:"not null;default:0" json:"totalTokens"`
	TotalCost           decimal.Decimal             `gorm:"type:numeric(14,6);not null;default:0" json:"totalCost"`
	Credits             decimal.NullDecimal         `gorm:"type:numeric(14,6)" json:"credits"`
	ModelsUsed          datatypes.JSONSlice[string] `json:"modelsUsed"`
	RawData             datatypes.JSON              `json:"rawData,omitempty"`
	CreatedAt           time.Time                   `json:"createdAt"`
	UpdatedAt           time.Time                   `json:"updatedAt"`
}

// TableName pins the table name.
func (UsageRecord) TableName() string { return "usage_records" }

// UsageTotals aggregates usage over a date predicate.
type UsageTotals struct {
	InputTokens         int64   `json:"inputTokens"`
	OutputTokens        int64   `json:"outputTokens"`
	CacheCreationTokens int64   `json:"cacheCreationTokens"`
	CacheReadTokens     int64   `json:"cacheReadTokens"`
	TotalTokens         int64   `json:"totalTokens"`
	TotalCost           float64 `json:"totalCost"`
	Credits             float64 `json:"credits"`
	RecordCount         int64   `json:"recordCount"`
	ActiveDays          int64   `json:"activeDays"`
	AvgDailyCost        float64 `json:"avgDailyCost"`
}

// DailyTotal sums all devices for one date.
type DailyTotal struct {
	Date                string  `json:"date"`
	InputTokens         int64   `json:"inputTokens"`
	OutputTokens        int64   `json:"outputTokens"`
	CacheCreationTokens int64   `json:"cacheCreationTokens"`
	CacheReadTokens     int64   `json:"cacheReadTokens"`
	TotalTokens         int64   `json:"totalTokens"`
	TotalCost           float64 `json:"totalCost"`
	DeviceCount         int64   `json:"deviceCount"`
}

// DeviceDay is a single device-day row with the device's names attached.
type DeviceDay struct {
	DeviceID            string  `json:"deviceId"`
	DeviceName          string  `json:"deviceName"`
	DisplayName         string  `json:"displayName,omitempty"`
	Date                string  `json:"date"`
	AgentType           string  `json:"agentType"`
	InputTokens         int64   `json:"inputTokens"`
	OutputTokens        int64   `json:"outputTokens"`
	CacheCreationTokens int64   `json:"cacheCreationTokens"`
	CacheReadTokens     int64   `json:"cacheReadTokens"`
	TotalTokens         int64   `json:"totalTokens"`
	TotalCost           float64 `json:"totalCost"`
	Credits             float64 `json:"credits"`
}

// DeviceSummary is the lifetime view of one device.
type DeviceSummary struct {
	DeviceID    string    `json:"deviceId"`
	DeviceName  string    `json:"deviceName"`
	DisplayName string    `json:"displayName,omitempty"`
	RecordCount int64     `json:"recordCount"`
	TotalCost   float64   `json:"totalCost"`
	TotalTokens int64     `json:"totalTokens"`
	LastActive  string    `json:"lastActive,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Label returns the display name when set, else the device name.
func (d DeviceSummary) Label() string {
	if d.DisplayName != "" {
		return d.DisplayName
	}
	return d.DeviceName
}
