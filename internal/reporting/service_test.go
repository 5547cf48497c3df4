package reporting

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/meridian-assist/meridian/internal/money"
	"github.com/meridian-assist/meridian/internal/shared"
)

type fakeInvoice struct {
	currency  string
	total     float64
	status    string
	createdAt time.Time
	paidAt    time.Time
}

type fakeCase struct {
	status    string
	createdAt time.Time
	closedAt  *time.Time
}

type mockRepo struct {
	invoices    []fakeInvoice
	cases       []fakeCase
	issuedCalls int
}

func (m *mockRepo) IssuedTotals(_ context.Context, w shared.Window) ([]money.Amount, error) {
	m.issuedCalls++
	var amounts []money.Amount
	for _, inv := range m.invoices {
		if inv.status != "cancelled" && w.Contains(inv.createdAt) {
			amounts = append(amounts, money.Amount{Currency: inv.currency, Value: inv.total})
		}
	}
	return money.SumByCurrency(amounts), nil
}

func (m *mockRepo) OutstandingTotals(_ context.Context, w shared.Window) ([]money.Amount, error) {
	var amounts []money.Amount
	for _, inv := range m.invoices {
		if (inv.status == "draft" || inv.status == "unpaid") && w.Contains(inv.createdAt) {
			amounts = append(amounts, money.Amount{Currency: inv.currency, Value: inv.total})
		}
	}
	return money.SumByCurrency(amounts), nil
}

func (m *mockRepo) PaidTotals(_ context.Context, w shared.Window) ([]money.Amount, error) {
	var amounts []money.Amount
	for _, inv := range m.invoices {
		if inv.status == "paid" && w.Contains(inv.paidAt) {
			amounts = append(amounts, money.Amount{Currency: inv.currency, Value: inv.total})
		}
	}
	return money.SumByCurrency(amounts), nil
}

func (m *mockRepo) InvoiceCounts(_ context.Context, w shared.Window) (int, int, error) {
	issued, paid := 0, 0
	for _, inv := range m.invoices {
		if inv.status == "cancelled" || !w.Contains(inv.createdAt) {
			continue
		}
		issued++
		if inv.status == "paid" {
			paid++
		}
	}
	return issued, paid, nil
}

func (m *mockRepo) OverdueCount(_ context.Context, before time.Time) (int, error) {
	count := 0
	for _, inv := range m.invoices {
		if inv.status == "unpaid" && inv.createdAt.Before(before) {
			count++
		}
	}
	return count, nil
}

func (m *mockRepo) CaseCounts(_ context.Context, w shared.Window) (int, int, error) {
	opened, completed := 0, 0
	for _, c := range m.cases {
		if w.Contains(c.createdAt) {
			opened++
		}
		if c.closedAt != nil && w.Contains(*c.closedAt) {
			completed++
		}
	}
	return opened, completed, nil
}

func (m *mockRepo) CaseStatusCounts(_ context.Context, w shared.Window) (map[string]int, error) {
	out := map[string]int{}
	for _, c := range m.cases {
		if w.Contains(c.createdAt) {
			out[c.status]++
		}
	}
	return out, nil
}

func (m *mockRepo) CaseSeries(_ context.Context, w shared.Window, _ string) ([]SeriesPoint, error) {
	byDay := map[string]*SeriesPoint{}
	touch := func(day string) *SeriesPoint {
		if p, ok := byDay[day]; ok {
			return p
		}
		p := &SeriesPoint{Bucket: day}
		byDay[day] = p
		return p
	}
	for _, c := range m.cases {
		if w.Contains(c.createdAt) {
			touch(c.createdAt.Format("2006-01-02")).Opened++
		}
		if c.closedAt != nil && w.Contains(*c.closedAt) {
			touch(c.closedAt.Format("2006-01-02")).Completed++
		}
	}
	var out []SeriesPoint
	for _, p := range byDay {
		out = append(out, *p)
	}
	return out, nil
}

func newCachedService(t *testing.T, repo RepositoryPort, now time.Time) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc := NewService(repo, NewCache(client, time.Minute))
	svc.now = func() time.Time { return now }
	return svc
}

func seededRepo(now time.Time) *mockRepo {
	closed := now.AddDate(0, 0, -3)
	return &mockRepo{
		invoices: []fakeInvoice{
			{currency: "EUR", total: 500, status: "paid", createdAt: now.AddDate(0, 0, -10), paidAt: now.AddDate(0, 0, -5)},
			{currency: "EUR", total: 300, status: "unpaid", createdAt: now.AddDate(0, 0, -8)},
			{currency: "CHF", total: 900, status: "unpaid", createdAt: now.AddDate(0, 0, -70)},
			{currency: "EUR", total: 200, status: "cancelled", createdAt: now.AddDate(0, 0, -4)},
			{currency: "EUR", total: 400, status: "paid", createdAt: now.AddDate(0, 0, -40), paidAt: now.AddDate(0, 0, -35)},
		},
		cases: []fakeCase{
			{status: "completed", createdAt: now.AddDate(0, 0, -6), closedAt: &closed},
			{status: "open", createdAt: now.AddDate(0, 0, -2)},
			{status: "in_progress", createdAt: now.AddDate(0, 0, -50)},
		},
	}
}

func TestDashboardAggregates(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	repo := seededRepo(now)
	svc := newCachedService(t, repo, now)

	dash, err := svc.Dashboard(context.Background(), shared.PeriodMonth)
	require.NoError(t, err)

	require.Equal(t, "month", dash.Period)
	require.Len(t, dash.Invoiced, 1)
	require.Equal(t, "EUR", dash.Invoiced[0].Currency)
	require.Equal(t, 800.0, dash.Invoiced[0].Amount)
	require.Equal(t, 400.0, dash.Invoiced[0].Previous)
	require.Equal(t, 100, dash.Invoiced[0].ChangePct)

	require.Len(t, dash.Paid, 1)
	require.Equal(t, 500.0, dash.Paid[0].Amount)

	// only the window's unpaid invoice is still owed
	require.Len(t, dash.Outstanding, 1)
	require.Equal(t, "EUR", dash.Outstanding[0].Currency)
	require.Equal(t, 300.0, dash.Outstanding[0].Amount)
	require.Equal(t, 0.0, dash.Outstanding[0].Previous)

	// one of two window invoices is paid
	require.Equal(t, 50, dash.CollectionRate)
	// only the old CHF invoice is unpaid past the cutoff
	require.Equal(t, 1, dash.OverdueCount)

	require.Equal(t, 2, dash.CasesOpened.Current)
	require.Equal(t, 1, dash.CasesOpened.Previous)
	require.Equal(t, 100, dash.CasesOpened.ChangePct)
	require.Equal(t, 1, dash.CasesCompleted.Current)
	require.NotEmpty(t, dash.CaseSeries)

	// every status appears, zero-filled, with its own window-over-window change
	require.Len(t, dash.CasesByStatus, 4)
	byStatus := map[string]StatusCount{}
	for _, sc := range dash.CasesByStatus {
		byStatus[sc.Status] = sc
	}
	require.Equal(t, 1, byStatus["open"].Current)
	require.Equal(t, 100, byStatus["open"].ChangePct)
	require.Equal(t, 0, byStatus["in_progress"].Current)
	require.Equal(t, 1, byStatus["in_progress"].Previous)
	require.Equal(t, -100, byStatus["in_progress"].ChangePct)
	require.Equal(t, 1, byStatus["completed"].Current)
	require.Equal(t, 0, byStatus["cancelled"].Current)
	require.Equal(t, 0, byStatus["cancelled"].ChangePct)

	// 500 EUR collected over the single completed case
	require.Len(t, dash.AvgCaseRevenue, 1)
	require.Equal(t, 500.0, dash.AvgCaseRevenue[0].Value)
}

func TestDashboardZeroPreviousWindow(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	repo := &mockRepo{
		invoices: []fakeInvoice{
			{currency: "EUR", total: 100, status: "unpaid", createdAt: now.AddDate(0, 0, -1)},
		},
	}
	svc := newCachedService(t, repo, now)

	dash, err := svc.Dashboard(context.Background(), shared.PeriodWeek)
	require.NoError(t, err)
	require.Equal(t, 100, dash.Invoiced[0].ChangePct)
	require.Equal(t, 0, dash.CollectionRate)
	require.Equal(t, 0, dash.CasesOpened.ChangePct)
}

func TestDashboardSeriesCoversEveryBucket(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	repo := seededRepo(now)
	svc := newCachedService(t, repo, now)

	dash, err := svc.Dashboard(context.Background(), shared.PeriodMonth)
	require.NoError(t, err)

	// rolling month at day granularity: Jul 29 through Aug 29 inclusive
	require.Len(t, dash.CaseSeries, 32)
	require.Equal(t, "2026-07-29", dash.CaseSeries[0].Bucket)
	require.Equal(t, "2026-08-29", dash.CaseSeries[31].Bucket)

	byBucket := map[string]SeriesPoint{}
	for _, p := range dash.CaseSeries {
		byBucket[p.Bucket] = p
	}
	// a day without any activity still charts, at zero
	quiet := byBucket["2026-08-01"]
	require.Equal(t, 0, quiet.Opened)
	require.Equal(t, 0, quiet.Completed)
	// and a day with an opening keeps its count
	require.Equal(t, 1, byBucket["2026-08-27"].Opened)
}

func TestFillSeriesBucketBoundaries(t *testing.T) {
	w := shared.Window{
		Start: time.Date(2026, 8, 12, 9, 0, 0, 0, time.UTC),  // a Wednesday
		End:   time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC),
	}
	weekly := fillSeries(nil, w, "week")
	require.Len(t, weekly, 3)
	require.Equal(t, "2026-08-10", weekly[0].Bucket) // Monday of the start week
	require.Equal(t, "2026-08-24", weekly[2].Bucket)

	monthly := fillSeries([]SeriesPoint{{Bucket: "2026-08-01", Opened: 2}}, w, "month")
	require.Len(t, monthly, 1)
	require.Equal(t, 2, monthly[0].Opened)
}

func TestDashboardSurvivesCacheOutage(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	repo := seededRepo(now)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc := NewService(repo, NewCache(client, time.Minute))
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := svc.Dashboard(ctx, shared.PeriodMonth)
	require.NoError(t, err)

	// redis starts failing every command; dashboards fall back to the
	// repository instead of surfacing the cache error
	mr.SetError("connection refused")
	dash, err := svc.Dashboard(ctx, shared.PeriodMonth)
	require.NoError(t, err)
	require.Len(t, dash.Invoiced, 1)
	require.Equal(t, 800.0, dash.Invoiced[0].Amount)
}

func TestCollectionRateZeroWhenNothingInvoiced(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	svc := newCachedService(t, &mockRepo{}, now)

	dash, err := svc.Dashboard(context.Background(), shared.PeriodMonth)
	require.NoError(t, err)
	require.Equal(t, 0, dash.CollectionRate)
	require.Empty(t, dash.Invoiced)
	require.Empty(t, dash.Outstanding)
}

func TestDashboardRejectsUnknownPeriod(t *testing.T) {
	svc := newCachedService(t, &mockRepo{}, time.Now())
	_, err := svc.Dashboard(context.Background(), "decade")
	require.Equal(t, shared.KindValidation, shared.KindOf(err))
}

func TestDashboardCachesUntilBump(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	repo := seededRepo(now)
	svc := newCachedService(t, repo, now)
	ctx := context.Background()

	_, err := svc.Dashboard(ctx, shared.PeriodMonth)
	require.NoError(t, err)
	_, err = svc.Dashboard(ctx, shared.PeriodMonth)
	require.NoError(t, err)
	require.Equal(t, 2, repo.issuedCalls) // current + previous window, once

	require.NoError(t, svc.Bump(ctx))
	_, err = svc.Dashboard(ctx, shared.PeriodMonth)
	require.NoError(t, err)
	require.Equal(t, 4, repo.issuedCalls)
}

func TestMergeCurrencyTotalsKeepsVanishedCurrency(t *testing.T) {
	merged := mergeCurrencyTotals(
		[]money.Amount{{Currency: "EUR", Value: 250}},
		[]money.Amount{{Currency: "EUR", Value: 500}, {Currency: "USD", Value: 80}},
	)
	require.Len(t, merged, 2)
	require.Equal(t, -50, merged[0].ChangePct)
	require.Equal(t, "USD", merged[1].Currency)
	require.Equal(t, 0.0, merged[1].Amount)
	require.Equal(t, -100, merged[1].ChangePct)
}
