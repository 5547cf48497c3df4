package reporting

import (
	"context"
	"math"
	"time"

	"github.com/meridian-assist/meridian/internal/money"
	"github.com/meridian-assist/meridian/internal/shared"
)

// RepositoryPort defines the aggregate reads the dashboard composes.
type RepositoryPort interface {
	IssuedTotals(ctx context.Context, w shared.Window) ([]money.Amount, error)
	OutstandingTotals(ctx context.Context, w shared.Window) ([]money.Amount, error)
	PaidTotals(ctx context.Context, w shared.Window) ([]money.Amount, error)
	InvoiceCounts(ctx context.Context, w shared.Window) (issued, paid int, err error)
	OverdueCount(ctx context.Context, before time.Time) (int, error)
	CaseCounts(ctx context.Context, w shared.Window) (opened, completed int, err error)
	CaseStatusCounts(ctx context.Context, w shared.Window) (map[string]int, error)
	CaseSeries(ctx context.Context, w shared.Window, bucket string) ([]SeriesPoint, error)
}

// Service assembles dashboards with cache-aware lookups.
type Service struct {
	repo  RepositoryPort
	cache *Cache
	now   func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache, now: time.Now}
}

// Bump invalidates cached dashboards after a ledger mutation.
func (s *Service) Bump(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

// seriesBucket picks the date_trunc granularity that keeps the chart
// readable for the period length.
func seriesBucket(period shared.ReportPeriod) string {
	switch period {
	case shared.PeriodWeek, shared.PeriodMonth:
		return "day"
	case shared.PeriodQuarter:
		return "week"
	default:
		return "month"
	}
}

// Dashboard resolves the report for one period, cached per period until the
// next ledger mutation bumps the version.
func (s *Service) Dashboard(ctx context.Context, period shared.ReportPeriod) (Dashboard, error) {
	now := s.now()
	current, previous, err := shared.ResolvePeriod(period, now)
	if err != nil {
		return Dashboard{}, err
	}

	loader := func(ctx context.Context) (interface{}, error) {
		return s.buildDashboard(ctx, period, now, current, previous)
	}

	key := s.cache.BuildKey(ctx, keyDashboard(string(period)))
	var dashboard Dashboard
	if err := s.cache.FetchJSON(ctx, key, &dashboard, loader); err != nil {
		return Dashboard{}, err
	}
	return dashboard, nil
}

func (s *Service) buildDashboard(ctx context.Context, period shared.ReportPeriod, now time.Time, current, previous shared.Window) (Dashboard, error) {
	issuedNow, err := s.repo.IssuedTotals(ctx, current)
	if err != nil {
		return Dashboard{}, err
	}
	issuedPrev, err := s.repo.IssuedTotals(ctx, previous)
	if err != nil {
		return Dashboard{}, err
	}
	outstandingNow, err := s.repo.OutstandingTotals(ctx, current)
	if err != nil {
		return Dashboard{}, err
	}
	outstandingPrev, err := s.repo.OutstandingTotals(ctx, previous)
	if err != nil {
		return Dashboard{}, err
	}
	paidNow, err := s.repo.PaidTotals(ctx, current)
	if err != nil {
		return Dashboard{}, err
	}
	paidPrev, err := s.repo.PaidTotals(ctx, previous)
	if err != nil {
		return Dashboard{}, err
	}

	issuedCount, paidCount, err := s.repo.InvoiceCounts(ctx, current)
	if err != nil {
		return Dashboard{}, err
	}
	overdue, err := s.repo.OverdueCount(ctx, now.AddDate(0, 0, -overdueAfterDays))
	if err != nil {
		return Dashboard{}, err
	}

	openedNow, completedNow, err := s.repo.CaseCounts(ctx, current)
	if err != nil {
		return Dashboard{}, err
	}
	openedPrev, completedPrev, err := s.repo.CaseCounts(ctx, previous)
	if err != nil {
		return Dashboard{}, err
	}
	statusNow, err := s.repo.CaseStatusCounts(ctx, current)
	if err != nil {
		return Dashboard{}, err
	}
	statusPrev, err := s.repo.CaseStatusCounts(ctx, previous)
	if err != nil {
		return Dashboard{}, err
	}
	bucket := seriesBucket(period)
	series, err := s.repo.CaseSeries(ctx, current, bucket)
	if err != nil {
		return Dashboard{}, err
	}

	collectionRate := 0
	if issuedCount > 0 {
		collectionRate = int(math.Round(float64(paidCount) / float64(issuedCount) * 100))
	}

	return Dashboard{
		Period:         string(period),
		Invoiced:       mergeCurrencyTotals(issuedNow, issuedPrev),
		Outstanding:    mergeCurrencyTotals(outstandingNow, outstandingPrev),
		Paid:           mergeCurrencyTotals(paidNow, paidPrev),
		CollectionRate: collectionRate,
		OverdueCount:   overdue,
		CasesOpened: CountMetric{
			Current:   openedNow,
			Previous:  openedPrev,
			ChangePct: money.PercentChange(float64(openedPrev), float64(openedNow)),
		},
		CasesCompleted: CountMetric{
			Current:   completedNow,
			Previous:  completedPrev,
			ChangePct: money.PercentChange(float64(completedPrev), float64(completedNow)),
		},
		CasesByStatus:  statusBreakdown(statusNow, statusPrev),
		CaseSeries:     fillSeries(series, current, bucket),
		AvgCaseRevenue: averagePerCase(paidNow, completedNow),
	}, nil
}
