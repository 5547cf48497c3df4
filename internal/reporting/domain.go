// Package reporting aggregates ledger activity into the dashboard: money
// in and out by currency, collection health and case throughput.
package reporting

import (
	"time"

	"github.com/meridian-assist/meridian/internal/money"
	"github.com/meridian-assist/meridian/internal/shared"
)

// overdueAfterDays is how old an unpaid invoice gets before it counts as
// overdue on the dashboard.
const overdueAfterDays = 30

// CurrencyTotal pairs a current-window sum with the prior window's for one
// currency. ChangePct follows the ledger-wide percent-change rules.
type CurrencyTotal struct {
	Currency  string  `json:"currency"`
	Amount    float64 `json:"amount"`
	Previous  float64 `json:"previous"`
	ChangePct int     `json:"change_pct"`
}

// CountMetric is a current-versus-previous pair of counts.
type CountMetric struct {
	Current   int `json:"current"`
	Previous  int `json:"previous"`
	ChangePct int `json:"change_pct"`
}

// SeriesPoint is one time bucket of case throughput.
type SeriesPoint struct {
	Bucket    string `json:"bucket"`
	Opened    int    `json:"opened"`
	Completed int    `json:"completed"`
}

// StatusCount is one case status with current-versus-previous counts.
type StatusCount struct {
	Status string `json:"status"`
	CountMetric
}

var caseStatuses = []string{"open", "in_progress", "completed", "cancelled"}

// statusBreakdown covers every known status, zero when absent from a
// window, so the dashboard row set is stable across periods.
func statusBreakdown(current, previous map[string]int) []StatusCount {
	out := make([]StatusCount, 0, len(caseStatuses))
	for _, status := range caseStatuses {
		out = append(out, StatusCount{
			Status: status,
			CountMetric: CountMetric{
				Current:   current[status],
				Previous:  previous[status],
				ChangePct: money.PercentChange(float64(previous[status]), float64(current[status])),
			},
		})
	}
	return out
}

// truncateBucket aligns t to its bucket start the way date_trunc does:
// days at midnight, weeks on Monday, months on the first.
func truncateBucket(t time.Time, bucket string) time.Time {
	t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	switch bucket {
	case "week":
		return t.AddDate(0, 0, -((int(t.Weekday()) + 6) % 7))
	case "month":
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	default:
		return t
	}
}

func nextBucket(t time.Time, bucket string) time.Time {
	switch bucket {
	case "week":
		return t.AddDate(0, 0, 7)
	case "month":
		return t.AddDate(0, 1, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}

// fillSeries walks every bucket in the window, starting each at zero, then
// lays the queried points over them. Quiet stretches chart as 0/0 instead
// of disappearing.
func fillSeries(points []SeriesPoint, w shared.Window, bucket string) []SeriesPoint {
	byLabel := make(map[string]SeriesPoint, len(points))
	for _, p := range points {
		byLabel[p.Bucket] = p
	}
	var out []SeriesPoint
	for at := truncateBucket(w.Start, bucket); at.Before(w.End); at = nextBucket(at, bucket) {
		label := at.Format("2006-01-02")
		if p, ok := byLabel[label]; ok {
			out = append(out, p)
			continue
		}
		out = append(out, SeriesPoint{Bucket: label})
	}
	return out
}

// Dashboard is the assembled report for one period.
type Dashboard struct {
	Period string `json:"period"`

	Invoiced []CurrencyTotal `json:"invoiced"`
	// Outstanding sums what is still owed: invoices issued in the window
	// that are not yet paid.
	Outstanding []CurrencyTotal `json:"outstanding"`
	Paid        []CurrencyTotal `json:"paid"`

	// CollectionRate is the share of invoices issued in the window that
	// are paid by now, in percent; 0 when nothing was issued. Counting
	// invoices rather than money keeps the rate meaningful across mixed
	// currencies.
	CollectionRate int `json:"collection_rate"`
	OverdueCount   int `json:"overdue_count"`

	CasesOpened    CountMetric   `json:"cases_opened"`
	CasesCompleted CountMetric   `json:"cases_completed"`
	CasesByStatus  []StatusCount `json:"cases_by_status"`
	CaseSeries     []SeriesPoint `json:"case_series"`

	// AvgCaseRevenue divides the window's collected sums by the number of
	// completed cases, per currency. Empty when nothing completed.
	AvgCaseRevenue []money.Amount `json:"avg_case_revenue"`
}

// averagePerCase spreads per-currency paid sums across completed cases.
func averagePerCase(paid []money.Amount, completed int) []money.Amount {
	if completed <= 0 {
		return nil
	}
	out := make([]money.Amount, 0, len(paid))
	for _, amt := range paid {
		out = append(out, money.Amount{
			Currency: amt.Currency,
			Value:    money.Round2(amt.Value / float64(completed)),
		})
	}
	return out
}

// mergeCurrencyTotals lines up current and previous sums by currency and
// computes the change for each. Currencies present in either window appear;
// ordering follows the current window's descending sums.
func mergeCurrencyTotals(current, previous []money.Amount) []CurrencyTotal {
	prevByCurrency := make(map[string]float64, len(previous))
	for _, amt := range previous {
		prevByCurrency[amt.Currency] = amt.Value
	}

	out := make([]CurrencyTotal, 0, len(current))
	seen := make(map[string]bool, len(current))
	for _, amt := range current {
		seen[amt.Currency] = true
		out = append(out, CurrencyTotal{
			Currency:  amt.Currency,
			Amount:    amt.Value,
			Previous:  prevByCurrency[amt.Currency],
			ChangePct: money.PercentChange(prevByCurrency[amt.Currency], amt.Value),
		})
	}
	for _, amt := range previous {
		if seen[amt.Currency] {
			continue
		}
		out = append(out, CurrencyTotal{
			Currency:  amt.Currency,
			Previous:  amt.Value,
			ChangePct: money.PercentChange(amt.Value, 0),
		})
	}
	return out
}
