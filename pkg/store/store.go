// Package store persists devices and daily usage rows and runs the
// aggregation queries behind the stats endpoint.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pario-ai/tokenboard/pkg/logging"
	"github.com/pario-ai/tokenboard/pkg/models"
)

// Store records and queries usage.
type Store interface {
	// UpsertDevice inserts a device or refreshes its names.
	UpsertDevice(ctx context.Context, d models.Device) error
	// UpsertUsage writes rows keyed by (device, date, agent type) as one
	// statement; a conflict overwrites every measured field.
	UpsertUsage(ctx context.Context, records []models.UsageRecord) error
	// Totals sums rows whose date lies in r.
	Totals(ctx context.Context, r DateRange) (models.UsageTotals, error)
	// DailyTotals returns per-date sums for the most recent limit dates, oldest first.
	DailyTotals(ctx context.Context, limit int) ([]models.DailyTotal, error)
	// DeviceDays returns the most recent limit device-day rows, newest first.
	DeviceDays(ctx context.Context, limit int) ([]models.DeviceDay, error)
	// DeviceSummaries returns every device, including ones with no usage.
	DeviceSummaries(ctx context.Context) ([]models.DeviceSummary, error)
	// Ping checks the database connection.
	Ping(ctx context.Context) error
	// Close releases resources.
	Close() error
}

// DateRange bounds a query by inclusive YYYY-MM-DD dates. Empty bounds are open.
type DateRange struct {
	From string
	To   string
}

// GormStore implements Store on gorm.
type GormStore struct {
	db *gorm.DB
}

// Open connects to the database named by dsn. postgres:// and postgresql://
// URLs use Postgres; sqlite:// and file: use SQLite.
func Open(dsn string, logger *zap.Logger) (*GormStore, error) {
	dialector, isSQLite, err := dialectorFor(dsn)
	if err != nil {
		return nil, err
	}

	gcfg := &gorm.Config{}
	if logger != nil {
		gcfg.Logger = logging.NewGormLogger(logger)
	}
	db, err := gorm.Open(dialector, gcfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if isSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		// SQLite allows one writer.
		sqlDB.SetMaxOpenConns(1)
	}

	return New(db), nil
}

func dialectorFor(dsn string) (gorm.Dialector, bool, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return postgres.Open(dsn), false, nil
	case strings.HasPrefix(dsn, "sqlite://"):
		return sqlite.Open(strings.TrimPrefix(dsn, "sqlite://")), true, nil
	case strings.HasPrefix(dsn, "file:"):
		return sqlite.Open(dsn), true, nil
	case dsn == "":
		return nil, false, fmt.Errorf("database url is empty")
	default:
		return nil, false, fmt.Errorf("unsupported database url scheme in %q", redact(dsn))
	}
}

// redact drops credentials from a DSN before it reaches an error message.
func redact(dsn string) string {
	if i := strings.Index(dsn, "@"); i >= 0 {
		if j := strings.Index(dsn, "://"); j >= 0 && j < i {
			return dsn[:j+3] + "***" + dsn[i:]
		}
	}
	return dsn
}

// New wraps an existing gorm handle.
func New(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// DB exposes the gorm handle for collaborators sharing the database.
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

// Migrate creates or updates the schema.
func (s *GormStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&models.Device{}, &models.UsageRecord{}, &models.SyncEvent{}); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}
	return nil
}

// UpsertDevice inserts d or updates its names on conflict.
func (s *GormStore) UpsertDevice(ctx context.Context, d models.Device) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"device_name", "display_name", "updated_at"}),
	}).Create(&d).Error
	if err != nil {
		return fmt.Errorf("upsert device: %w", err)
	}
	return nil
}

var usageUpdateColumns = []string{
	"input_tokens", "output_tokens", "cache_creation_tokens", "cache_read_tokens",
	"total_tokens", "total_cost", "credits", "models_used", "raw_data", "updated_at",
}

// UpsertUsage writes records in a single statement.
func (s *GormStore) UpsertUsage(ctx context.Context, records []models.UsageRecord) error {
	if len(records) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device_id"}, {Name: "date"}, {Name: "agent_type"}},
		DoUpdates: clause.AssignmentColumns(usageUpdateColumns),
	}).Create(&records).Error
	if err != nil {
		return fmt.Errorf("upsert usage: %w", err)
	}
	return nil
}

const totalsSelect = `COALESCE(SUM(input_tokens), 0) AS input_tokens,
	COALESCE(SUM(output_tokens), 0) AS output_tokens,
	COALESCE(SUM(cache_creation_tokens), 0) AS cache_creation_tokens,
	COALESCE(SUM(cache_read_tokens), 0) AS cache_read_tokens,
	COALESCE(SUM(total_tokens), 0) AS total_tokens,
	COALESCE(SUM(total_cost), 0) AS total_cost,
	COALESCE(SUM(credits), 0) AS credits,
	COUNT(*) AS record_count,
	COUNT(DISTINCT date) AS active_days`

// Totals sums usage in r.
func (s *GormStore) Totals(ctx context.Context, r DateRange) (models.UsageTotals, error) {
	q := s.db.WithContext(ctx).Model(&models.UsageRecord{}).Select(totalsSelect)
	if r.From != "" {
		q = q.Where("date >= ?", r.From)
	}
	if r.To != "" {
		q = q.Where("date <= ?", r.To)
	}

	row := map[string]interface{}{}
	if err := q.Scan(&row).Error; err != nil {
		return models.UsageTotals{}, fmt.Errorf("usage totals: %w", err)
	}

	t := models.UsageTotals{
		InputTokens:         toInt(row["input_tokens"]),
		OutputTokens:        toInt(row["output_tokens"]),
		CacheCreationTokens: toInt(row["cache_creation_tokens"]),
		CacheReadTokens:     toInt(row["cache_read_tokens"]),
		TotalTokens:         toInt(row["total_tokens"]),
		TotalCost:           toFloat(row["total_cost"]),
		Credits:             toFloat(row["credits"]),
		RecordCount:         toInt(row["record_count"]),
		ActiveDays:          toInt(row["active_days"]),
	}
	t.AvgDailyCost = AvgDailyCost(t.TotalCost, t.ActiveDays)
	return t, nil
}

// AvgDailyCost divides cost by active days, returning 0 when there are none.
func AvgDailyCost(totalCost float64, activeDays int64) float64 {
	if activeDays <= 0 {
		return 0
	}
	return finite(totalCost / float64(activeDays))
}

const dailyQuery = `SELECT date,
	COALESCE(SUM(input_tokens), 0) AS input_tokens,
	COALESCE(SUM(output_tokens), 0) AS output_tokens,
	COALESCE(SUM(cache_creation_tokens), 0) AS cache_creation_tokens,
	COALESCE(SUM(cache_read_tokens), 0) AS cache_read_tokens,
	COALESCE(SUM(total_tokens), 0) AS total_tokens,
	COALESCE(SUM(total_cost), 0) AS total_cost,
	COUNT(DISTINCT device_id) AS device_count
FROM usage_records
GROUP BY date
ORDER BY date DESC
LIMIT ?`

// DailyTotals returns the most recent limit dates, oldest first.
func (s *GormStore) DailyTotals(ctx context.Context, limit int) ([]models.DailyTotal, error) {
	var rows []map[string]interface{}
	if err := s.db.WithContext(ctx).Raw(dailyQuery, limit).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("daily totals: %w", err)
	}

	out := make([]models.DailyTotal, len(rows))
	for i, row := range rows {
		out[len(rows)-1-i] = models.DailyTotal{
			Date:                toString(row["date"]),
			InputTokens:         toInt(row["input_tokens"]),
			OutputTokens:        toInt(row["output_tokens"]),
			CacheCreationTokens: toInt(row["cache_creation_tokens"]),
			CacheReadTokens:     toInt(row["cache_read_tokens"]),
			TotalTokens:         toInt(row["total_tokens"]),
			TotalCost:           toFloat(row["total_cost"]),
			DeviceCount:         toInt(row["device_count"]),
		}
	}
	return out, nil
}

const deviceDaysQuery = `SELECT r.device_id, d.device_name, d.display_name, r.date, r.agent_type,
	r.input_tokens, r.output_tokens, r.cache_creation_tokens, r.cache_read_tokens,
	r.total_tokens, r.total_cost, r.credits
FROM usage_records r
LEFT JOIN devices d ON d.device_id = r.device_id
ORDER BY r.date DESC, r.device_id, r.agent_type
LIMIT ?`

// DeviceDays returns the most recent limit device-day rows.
func (s *GormStore) DeviceDays(ctx context.Context, limit int) ([]models.DeviceDay, error) {
	var rows []map[string]interface{}
	if err := s.db.WithContext(ctx).Raw(deviceDaysQuery, limit).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("device days: %w", err)
	}

	out := make([]models.DeviceDay, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.DeviceDay{
			DeviceID:            toString(row["device_id"]),
			DeviceName:          toString(row["device_name"]),
			DisplayName:         toString(row["display_name"]),
			Date:                toString(row["date"]),
			AgentType:           toString(row["agent_type"]),
			InputTokens:         toInt(row["input_tokens"]),
			OutputTokens:        toInt(row["output_tokens"]),
			CacheCreationTokens: toInt(row["cache_creation_tokens"]),
			CacheReadTokens:     toInt(row["cache_read_tokens"]),
			TotalTokens:         toInt(row["total_tokens"]),
			TotalCost:           toFloat(row["total_cost"]),
			Credits:             toFloat(row["credits"]),
		})
	}
	return out, nil
}

const deviceSummaryQuery = `SELECT d.device_id, d.device_name, d.display_name, d.created_at,
	COUNT(r.id) AS record_count,
	COALESCE(SUM(r.total_cost), 0) AS total_cost,
	COALESCE(SUM(r.total_tokens), 0) AS total_tokens,
	MAX(r.date) AS last_active
FROM devices d
LEFT JOIN usage_records r ON r.device_id = d.device_id
GROUP BY d.device_id, d.device_name, d.display_name, d.created_at
ORDER BY total_cost DESC, d.device_name`

// DeviceSummaries returns per-device lifetime totals.
func (s *GormStore) DeviceSummaries(ctx context.Context) ([]models.DeviceSummary, error) {
	var rows []map[string]interface{}
	if err := s.db.WithContext(ctx).Raw(deviceSummaryQuery).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("device summaries: %w", err)
	}

	out := make([]models.DeviceSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.DeviceSummary{
			DeviceID:    toString(row["device_id"]),
			DeviceName:  toString(row["device_name"]),
			DisplayName: toString(row["display_name"]),
			RecordCount: toInt(row["record_count"]),
			TotalCost:   toFloat(row["total_cost"]),
			TotalTokens: toInt(row["total_tokens"]),
			LastActive:  toString(row["last_active"]),
			CreatedAt:   toTime(row["created_at"]),
		})
	}
	return out, nil
}

// Ping checks the connection.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the database connection.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
