package reporting

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-assist/meridian/internal/money"
	"github.com/meridian-assist/meridian/internal/shared"
)

// Repository reads aggregate rows for the dashboard. All queries skip
// trashed records; cancelled invoices never count as money owed.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) sumAmounts(ctx context.Context, query string, w shared.Window) ([]money.Amount, error) {
	rows, err := r.pool.Query(ctx, query, w.Start, w.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []money.Amount
	for rows.Next() {
		var amt money.Amount
		if err := rows.Scan(&amt.Currency, &amt.Value); err != nil {
			return nil, err
		}
		out = append(out, amt)
	}
	return out, rows.Err()
}

// IssuedTotals sums invoice totals by currency for invoices issued inside
// the window.
func (r *Repository) IssuedTotals(ctx context.Context, w shared.Window) ([]money.Amount, error) {
	const query = `
		SELECT currency, COALESCE(SUM(total), 0)
		FROM invoices
		WHERE deleted_at IS NULL AND status <> 'cancelled'
			AND created_at >= $1 AND created_at < $2
		GROUP BY currency ORDER BY 2 DESC, currency`
	return r.sumAmounts(ctx, query, w)
}

// OutstandingTotals sums what is still owed by currency: invoices issued
// inside the window that have not been paid.
func (r *Repository) OutstandingTotals(ctx context.Context, w shared.Window) ([]money.Amount, error) {
	const query = `
		SELECT currency, COALESCE(SUM(total), 0)
		FROM invoices
		WHERE deleted_at IS NULL AND status IN ('draft', 'unpaid')
			AND created_at >= $1 AND created_at < $2
		GROUP BY currency ORDER BY 2 DESC, currency`
	return r.sumAmounts(ctx, query, w)
}

// PaidTotals sums invoice totals by currency for payments landing inside
// the window.
func (r *Repository) PaidTotals(ctx context.Context, w shared.Window) ([]money.Amount, error) {
	const query = `
		SELECT currency, COALESCE(SUM(total), 0)
		FROM invoices
		WHERE deleted_at IS NULL AND status = 'paid'
			AND paid_at >= $1 AND paid_at < $2
		GROUP BY currency ORDER BY 2 DESC, currency`
	return r.sumAmounts(ctx, query, w)
}

// InvoiceCounts returns how many invoices were issued in the window and how
// many of those are paid by now.
func (r *Repository) InvoiceCounts(ctx context.Context, w shared.Window) (issued, paid int, err error) {
	const query = `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'paid')
		FROM invoices
		WHERE deleted_at IS NULL AND status <> 'cancelled'
			AND created_at >= $1 AND created_at < $2`
	err = r.pool.QueryRow(ctx, query, w.Start, w.End).Scan(&issued, &paid)
	return issued, paid, err
}

// OverdueCount counts unpaid invoices issued before the cutoff.
func (r *Repository) OverdueCount(ctx context.Context, before time.Time) (int, error) {
	const query = `
		SELECT COUNT(*) FROM invoices
		WHERE deleted_at IS NULL AND status = 'unpaid' AND created_at < $1`
	var count int
	err := r.pool.QueryRow(ctx, query, before).Scan(&count)
	return count, err
}

// CaseCounts returns how many cases were opened and completed inside the
// window.
func (r *Repository) CaseCounts(ctx context.Context, w shared.Window) (opened, completed int, err error) {
	const query = `
		SELECT
			(SELECT COUNT(*) FROM cases
				WHERE deleted_at IS NULL AND created_at >= $1 AND created_at < $2),
			(SELECT COUNT(*) FROM cases
				WHERE deleted_at IS NULL AND closed_at IS NOT NULL
					AND closed_at >= $1 AND closed_at < $2)`
	err = r.pool.QueryRow(ctx, query, w.Start, w.End).Scan(&opened, &completed)
	return opened, completed, err
}

// CaseStatusCounts buckets cases opened inside the window by their
// current status.
func (r *Repository) CaseStatusCounts(ctx context.Context, w shared.Window) (map[string]int, error) {
	const query = `
		SELECT status, COUNT(*)
		FROM cases
		WHERE deleted_at IS NULL AND created_at >= $1 AND created_at < $2
		GROUP BY status`
	rows, err := r.pool.Query(ctx, query, w.Start, w.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		out[status] = count
	}
	return out, rows.Err()
}

// CaseSeries buckets case throughput over the window. bucket is a
// date_trunc unit: day, week or month. Empty buckets are filled in by the
// service so the repository only reports buckets with activity.
func (r *Repository) CaseSeries(ctx context.Context, w shared.Window, bucket string) ([]SeriesPoint, error) {
	const query = `
		WITH opened AS (
			SELECT date_trunc($3, created_at) AS bucket, COUNT(*) AS n
			FROM cases
			WHERE deleted_at IS NULL AND created_at >= $1 AND created_at < $2
			GROUP BY 1
		), completed AS (
			SELECT date_trunc($3, closed_at) AS bucket, COUNT(*) AS n
			FROM cases
			WHERE deleted_at IS NULL AND closed_at IS NOT NULL
				AND closed_at >= $1 AND closed_at < $2
			GROUP BY 1
		)
		SELECT COALESCE(o.bucket, c.bucket) AS bucket,
			COALESCE(o.n, 0), COALESCE(c.n, 0)
		FROM opened o
		FULL OUTER JOIN completed c ON o.bucket = c.bucket
		ORDER BY 1`
	rows, err := r.pool.Query(ctx, query, w.Start, w.End, bucket)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SeriesPoint
	for rows.Next() {
		var at time.Time
		var point SeriesPoint
		if err := rows.Scan(&at, &point.Opened, &point.Completed); err != nil {
			return nil, err
		}
		point.Bucket = at.Format("2006-01-02")
		out = append(out, point)
	}
	return out, rows.Err()
}
