// Package ingest validates sync payloads and writes them to the store.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pario-ai/tokenboard/pkg/audit"
	"github.com/pario-ai/tokenboard/pkg/metrics"
	"github.com/pario-ai/tokenboard/pkg/models"
	"github.com/pario-ai/tokenboard/pkg/store"
)

// Meta describes the HTTP request a sync arrived on.
type Meta struct {
	RequestID string
	ClientIP  string
}

// Service applies sync requests.
type Service struct {
	store   store.Store
	auditor *audit.Logger
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// New creates a Service. auditor and m may be nil.
func New(s store.Store, auditor *audit.Logger, m *metrics.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: s, auditor: auditor, metrics: m, logger: logger}
}

// Sync upserts the device, then every valid daily record in one batch.
// Invalid records are reported individually and never stored. The returned
// error is non-nil only when the device could not be saved.
func (s *Service) Sync(ctx context.Context, req models.SyncRequest, meta Meta) (models.SyncResponse, error) {
	start := time.Now()
	if err := ValidateRequest(req); err != nil {
		return models.SyncResponse{}, err
	}

	agentType := strings.TrimSpace(req.Device.AgentType)
	if agentType == "" {
		agentType = models.DefaultAgentType
	}

	device := models.Device{
		DeviceID:    req.Device.DeviceID,
		DeviceName:  req.Device.DeviceName,
		DisplayName: req.Device.DisplayName,
	}
	if err := s.store.UpsertDevice(ctx, device); err != nil {
		return models.SyncResponse{}, fmt.Errorf("save device %s: %w", device.DeviceID, err)
	}

	results := make([]models.SyncResult, len(req.Daily))
	var batch []models.UsageRecord
	slot := make(map[string]int)      // date -> index in batch
	members := make(map[string][]int) // date -> result indexes

	for i, raw := range req.Daily {
		rec, verr := toRecord(raw, device.DeviceID, agentType)
		if verr != nil {
			results[i] = models.SyncResult{Date: verr.date, Status: models.SyncStatusError, Message: verr.message}
			continue
		}
		if j, ok := slot[rec.Date]; ok {
			batch[j] = rec
		} else {
			slot[rec.Date] = len(batch)
			batch = append(batch, rec)
		}
		members[rec.Date] = append(members[rec.Date], i)
	}

	var stored int64
	if err := s.store.UpsertUsage(ctx, batch); err != nil {
		s.logger.Error("usage upsert failed",
			zap.String("device_id", device.DeviceID),
			zap.Int("records", len(batch)),
			zap.Error(err))
		for date, idx := range members {
			for _, i := range idx {
				results[i] = models.SyncResult{Date: date, Status: models.SyncStatusError, Message: err.Error()}
			}
		}
	} else {
		for _, rec := range batch {
			stored += rec.TotalTokens
			for _, i := range members[rec.Date] {
				results[i] = models.SyncResult{Date: rec.Date, Status: models.SyncStatusSuccess}
			}
		}
	}

	resp := models.SyncResponse{Success: true, Processed: len(req.Daily), Results: results}
	failed := resp.Failed()
	s.metrics.ObserveSync(agentType, results, stored)

	ev := models.SyncEvent{
		RequestID: meta.RequestID,
		DeviceID:  device.DeviceID,
		AgentType: agentType,
		ClientIP:  meta.ClientIP,
		Processed: resp.Processed,
		Succeeded: resp.Processed - failed,
		Failed:    failed,
		LatencyMs: time.Since(start).Milliseconds(),
	}
	if err := s.auditor.Log(ctx, ev); err != nil {
		s.logger.Warn("audit log failed", zap.String("request_id", meta.RequestID), zap.Error(err))
	}

	s.logger.Info("sync processed",
		zap.String("device_id", device.DeviceID),
		zap.String("agent_type", agentType),
		zap.Int("processed", resp.Processed),
		zap.Int("failed", failed))
	return resp, nil
}
