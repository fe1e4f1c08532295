package models

import "time"

// SyncEvent is an audit row for one accepted sync request.
type SyncEvent struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RequestID string    `gorm:"size:64;index" json:"requestId"`
	DeviceID  string    `gorm:"size:128;index" json:"deviceId"`
	AgentType string    `gorm:"size:64" json:"agentType"`
	ClientIP  string    `gorm:"size:64" json:"clientIp"`
	Processed int       `json:"processed"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	LatencyMs int64     `json:"latencyMs"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

// TableName pins the table name.
func (SyncEvent) TableName() string { return "sync_events" }

// AuditConfig controls the sync audit trail.
type AuditConfig struct {
	Enabled       bool `yaml:"enabled"`
	RetentionDays int  `yaml:"retention_days"`
}

// AuditQueryOpts specifies filters for querying sync events.
type AuditQueryOpts struct {
	DeviceID  string
	RequestID string
	Since     time.Time
	Limit     int
}

// AuditStat holds sync counts for a device/day combination.
type AuditStat struct {
	DeviceID  string `json:"deviceId"`
	Day       string `json:"day"`
	Syncs     int64  `json:"syncs"`
	Succeeded int64  `json:"succeeded"`
	Failed    int64  `json:"failed"`
}
