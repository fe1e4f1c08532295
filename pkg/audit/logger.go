// Package audit keeps a trail of accepted sync requests.
package audit

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pario-ai/tokenboard/pkg/models"
)

// Logger writes and queries sync events in the main database.
type Logger struct {
	db     *gorm.DB
	cfg    models.AuditConfig
	logger *zap.Logger
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// New returns a Logger on db. The sync_events table must already exist.
// A retention goroutine runs while RetentionDays is positive.
func New(db *gorm.DB, cfg models.AuditConfig, logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Logger{
		db:     db,
		cfg:    cfg,
		logger: logger,
		done:   make(chan struct{}),
	}
	if cfg.Enabled && cfg.RetentionDays > 0 {
		l.wg.Add(1)
		go l.retentionLoop(time.Hour)
	}
	return l
}

// Log records ev. It is a no-op on a nil or disabled Logger.
func (l *Logger) Log(ctx context.Context, ev models.SyncEvent) error {
	if l == nil || l.db == nil || !l.cfg.Enabled {
		return nil
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	if err := l.db.WithContext(ctx).Create(&ev).Error; err != nil {
		return fmt.Errorf("log sync event: %w", err)
	}
	return nil
}

// Query returns events matching opts, newest first.
func (l *Logger) Query(ctx context.Context, opts models.AuditQueryOpts) ([]models.SyncEvent, error) {
	q := l.db.WithContext(ctx).Model(&models.SyncEvent{})
	if opts.RequestID != "" {
		q = q.Where("request_id = ?", opts.RequestID)
	}
	if opts.DeviceID != "" {
		q = q.Where("device_id = ?", opts.DeviceID)
	}
	if !opts.Since.IsZero() {
		q = q.Where("created_at >= ?", opts.Since.UTC())
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	var events []models.SyncEvent
	if err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("query sync events: %w", err)
	}
	return events, nil
}

// Stats returns sync counts grouped by device and UTC day, newest day first.
func (l *Logger) Stats(ctx context.Context) ([]models.AuditStat, error) {
	var events []models.SyncEvent
	err := l.db.WithContext(ctx).
		Select("device_id", "succeeded", "failed", "created_at").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("audit stats: %w", err)
	}

	type key struct{ device, day string }
	agg := make(map[key]*models.AuditStat)
	for _, ev := range events {
		k := key{ev.DeviceID, ev.CreatedAt.UTC().Format("2006-01-02")}
		s, ok := agg[k]
		if !ok {
			s = &models.AuditStat{DeviceID: k.device, Day: k.day}
			agg[k] = s
		}
		s.Syncs++
		s.Succeeded += int64(ev.Succeeded)
		s.Failed += int64(ev.Failed)
	}

	stats := make([]models.AuditStat, 0, len(agg))
	for _, s := range agg {
		stats = append(stats, *s)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Day != stats[j].Day {
			return stats[i].Day > stats[j].Day
		}
		return stats[i].DeviceID < stats[j].DeviceID
	})
	return stats, nil
}

// Cleanup deletes events older than the retention period.
func (l *Logger) Cleanup(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -l.cfg.RetentionDays)
	res := l.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.SyncEvent{})
	if res.Error != nil {
		return 0, fmt.Errorf("audit cleanup: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Close stops the retention goroutine. The database handle is owned by the caller.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.once.Do(func() { close(l.done) })
	l.wg.Wait()
	return nil
}

func (l *Logger) retentionLoop(every time.Duration) {
	defer l.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			n, err := l.Cleanup(context.Background())
			if err != nil {
				l.logger.Warn("audit cleanup failed", zap.Error(err))
				continue
			}
			if n > 0 {
				l.logger.Info("audit cleanup", zap.Int64("deleted", n))
			}
		}
	}
}
