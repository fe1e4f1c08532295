// Package stats composes the dashboard's usage statistics.
package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pario-ai/tokenboard/pkg/billing"
	"github.com/pario-ai/tokenboard/pkg/metrics"
	"github.com/pario-ai/tokenboard/pkg/models"
	"github.com/pario-ai/tokenboard/pkg/store"
)

// Row limits for the time series.
const (
	DailyLimit     = 30
	DeviceDayLimit = 300
	recentDays     = 30
)

// ErrMisconfigured wraps billing-cycle configuration problems.
var ErrMisconfigured = errors.New("stats misconfigured")

// Options carries the settings stats depend on.
type Options struct {
	CycleStartDate string
	Plan           string
	OwnerName      string
	AppURL         string
}

// Service composes StatsResponse values from the store.
type Service struct {
	store   store.Store
	opts    Options
	metrics *metrics.Metrics
	now     func() time.Time
}

// New creates a Service. m may be nil.
func New(s store.Store, opts Options, m *metrics.Metrics) *Service {
	return &Service{store: s, opts: opts, metrics: m, now: time.Now}
}

// WithClock replaces the clock used for cycle arithmetic.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Compose runs every aggregate and assembles the response. Any failure
// aborts the whole composition.
func (s *Service) Compose(ctx context.Context) (models.StatsResponse, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveStats(time.Since(start)) }()

	startDay, err := billing.ParseStartDay(s.opts.CycleStartDate)
	if err != nil {
		return models.StatsResponse{}, fmt.Errorf("%w: %w", ErrMisconfigured, err)
	}

	now := s.now().UTC()
	cur := billing.Current(startDay, now)
	prev := billing.Previous(startDay, cur)
	plan := billing.LookupPlan(s.opts.Plan)

	resp := models.StatsResponse{
		BillingCycle: billing.Describe(startDay, now),
		Subscription: models.Subscription{
			Plan:      plan,
			OwnerName: s.opts.OwnerName,
			AppURL:    s.opts.AppURL,
		},
	}

	if resp.Totals, err = s.store.Totals(ctx, store.DateRange{}); err != nil {
		return models.StatsResponse{}, err
	}

	curTotals, err := s.store.Totals(ctx, store.DateRange{From: cur.StartDate(), To: cur.EndDate()})
	if err != nil {
		return models.StatsResponse{}, err
	}
	resp.CurrentCycle = billing.Evaluate(curTotals, cur, plan, now)

	prevTotals, err := s.store.Totals(ctx, store.DateRange{From: prev.StartDate(), To: prev.EndDate()})
	if err != nil {
		return models.StatsResponse{}, err
	}
	resp.PreviousCycle = billing.Evaluate(prevTotals, prev, plan, now)

	today := now.Format(billing.DateLayout)
	from := now.AddDate(0, 0, -(recentDays - 1)).Format(billing.DateLayout)
	if resp.Last30Days, err = s.store.Totals(ctx, store.DateRange{From: from, To: today}); err != nil {
		return models.StatsResponse{}, err
	}

	if resp.Daily, err = s.store.DailyTotals(ctx, DailyLimit); err != nil {
		return models.StatsResponse{}, err
	}
	if resp.DeviceData, err = s.store.DeviceDays(ctx, DeviceDayLimit); err != nil {
		return models.StatsResponse{}, err
	}
	if resp.Devices, err = s.store.DeviceSummaries(ctx); err != nil {
		return models.StatsResponse{}, err
	}

	if resp.Daily == nil {
		resp.Daily = []models.DailyTotal{}
	}
	if resp.DeviceData == nil {
		resp.DeviceData = []models.DeviceDay{}
	}
	if resp.Devices == nil {
		resp.Devices = []models.DeviceSummary{}
	}
	resp.Cumulative = Cumulative(resp.Daily)
	return resp, nil
}

// Cumulative returns running cost and token totals over daily, which must be
// in ascending date order.
func Cumulative(daily []models.DailyTotal) []models.CumulativePoint {
	out := make([]models.CumulativePoint, 0, len(daily))
	var cost float64
	var tokens int64
	for _, d := range daily {
		cost += d.TotalCost
		tokens += d.TotalTokens
		out = append(out, models.CumulativePoint{
			Date:             d.Date,
			DailyCost:        d.TotalCost,
			CumulativeCost:   cost,
			CumulativeTokens: tokens,
		})
	}
	return out
}
