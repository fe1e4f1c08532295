package stats

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/tokenboard/pkg/billing"
	"github.com/pario-ai/tokenboard/pkg/models"
	"github.com/pario-ai/tokenboard/pkg/store"
)

func setupStore(t *testing.T) *store.GormStore {
	t.Helper()
	dsn := fmt.Sprintf("sqlite://file:stats_%d?mode=memory&cache=shared", time.Now().UnixNano())
	s, err := store.Open(dsn, nil)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func usage(device, date string, tokens int64, cost string) models.UsageRecord {
	return models.UsageRecord{
		DeviceID:    device,
		Date:        date,
		AgentType:   models.DefaultAgentType,
		TotalTokens: tokens,
		TotalCost:   decimal.RequireFromString(cost),
	}
}

func fixedClock(date string) func() time.Time {
	t, _ := time.Parse(billing.DateLayout, date)
	return func() time.Time { return t.Add(12 * time.Hour) }
}

func TestComposeRequiresCycleStart(t *testing.T) {
	svc := New(setupStore(t), Options{}, nil)
	_, err := svc.Compose(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMisconfigured)
	assert.ErrorIs(t, err, billing.ErrNoCycleStart)

	svc = New(setupStore(t), Options{CycleStartDate: "soon"}, nil)
	_, err = svc.Compose(context.Background())
	assert.ErrorIs(t, err, ErrMisconfigured)
}

func TestComposeEmptyStore(t *testing.T) {
	svc := New(setupStore(t), Options{CycleStartDate: "2024-01-15", Plan: "pro"}, nil).
		WithClock(fixedClock("2024-03-20"))

	resp, err := svc.Compose(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, resp.Daily)
	assert.NotNil(t, resp.DeviceData)
	assert.NotNil(t, resp.Devices)
	assert.Empty(t, resp.Cumulative)
	assert.Zero(t, resp.Totals.AvgDailyCost)
	assert.Equal(t, 20.0, resp.Subscription.Plan.MonthlyPrice)
}

func TestComposeCycles(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertDevice(ctx, models.Device{DeviceID: "d1", DeviceName: "laptop"}))
	require.NoError(t, s.UpsertDevice(ctx, models.Device{DeviceID: "d2", DeviceName: "idle"}))
	require.NoError(t, s.UpsertUsage(ctx, []models.UsageRecord{
		usage("d1", "2024-01-20", 100, "10"), // previous cycle
		usage("d1", "2024-02-14", 100, "5"),  // previous cycle, last day
		usage("d1", "2024-02-15", 200, "20"), // current cycle
		usage("d1", "2024-02-20", 300, "30"),
	}))

	svc := New(s, Options{CycleStartDate: "2024-01-15", Plan: "max", OwnerName: "Ada", AppURL: "https://usage.example"}, nil).
		WithClock(fixedClock("2024-02-20"))

	resp, err := svc.Compose(ctx)
	require.NoError(t, err)

	assert.Equal(t, "2024-02-15", resp.BillingCycle.CurrentStart)
	assert.Equal(t, "2024-03-14", resp.BillingCycle.CurrentEnd)
	assert.Equal(t, "2024-01-15", resp.BillingCycle.PreviousStart)
	assert.Equal(t, "2024-02-14", resp.BillingCycle.PreviousEnd)

	assert.InDelta(t, 65.0, resp.Totals.TotalCost, 1e-9)
	assert.Equal(t, int64(4), resp.Totals.ActiveDays)
	assert.InDelta(t, 16.25, resp.Totals.AvgDailyCost, 1e-9)

	assert.InDelta(t, 50.0, resp.CurrentCycle.TotalCost, 1e-9)
	assert.Equal(t, 100.0, resp.CurrentCycle.PlanPrice)
	assert.InDelta(t, 0.5, resp.CurrentCycle.ValueRatio, 1e-9)
	assert.InDelta(t, 15.0, resp.PreviousCycle.TotalCost, 1e-9)

	assert.InDelta(t, 55.0, resp.Last30Days.TotalCost, 1e-9)

	require.Len(t, resp.Daily, 4)
	assert.Equal(t, "2024-01-20", resp.Daily[0].Date)
	require.Len(t, resp.Cumulative, 4)
	assert.InDelta(t, 65.0, resp.Cumulative[3].CumulativeCost, 1e-9)
	assert.Equal(t, int64(700), resp.Cumulative[3].CumulativeTokens)

	require.Len(t, resp.Devices, 2)
	assert.Equal(t, "idle", resp.Devices[1].DeviceName)
	assert.Zero(t, resp.Devices[1].RecordCount)

	require.Len(t, resp.DeviceData, 4)
	assert.Equal(t, "2024-02-20", resp.DeviceData[0].Date)

	assert.Equal(t, "Ada", resp.Subscription.OwnerName)
	assert.Equal(t, "max5x", resp.Subscription.Plan.ID)
}

type brokenStore struct {
	store.Store
}

func (brokenStore) Totals(context.Context, store.DateRange) (models.UsageTotals, error) {
	return models.UsageTotals{}, errors.New("relation does not exist")
}

func TestComposeFailsWhole(t *testing.T) {
	svc := New(brokenStore{}, Options{CycleStartDate: "1"}, nil)
	resp, err := svc.Compose(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMisconfigured)
	assert.Empty(t, resp.Daily)
}

func TestCumulative(t *testing.T) {
	pts := Cumulative([]models.DailyTotal{
		{Date: "2024-01-01", TotalCost: 1.5, TotalTokens: 10},
		{Date: "2024-01-02", TotalCost: 2.5, TotalTokens: 30},
	})
	require.Len(t, pts, 2)
	assert.Equal(t, models.CumulativePoint{Date: "2024-01-02", DailyCost: 2.5, CumulativeCost: 4, CumulativeTokens: 40}, pts[1])
}
