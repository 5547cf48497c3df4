package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/meridian-assist/meridian/internal/reporting"
	"github.com/meridian-assist/meridian/internal/shared"
)

// DashboardBuilder is the slice of the reporting service the warmup needs.
type DashboardBuilder interface {
	Dashboard(ctx context.Context, period shared.ReportPeriod) (reporting.Dashboard, error)
}

var warmupPeriods = []shared.ReportPeriod{
	shared.PeriodWeek,
	shared.PeriodMonth,
	shared.PeriodQuarter,
	shared.PeriodYear,
}

// HandleReportWarmup returns the handler that pre-computes each dashboard
// so the first viewer after a cache bump does not pay for the aggregation.
func HandleReportWarmup(builder DashboardBuilder, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		for _, period := range warmupPeriods {
			if _, err := builder.Dashboard(ctx, period); err != nil {
				logger.Warn("dashboard warmup failed",
					slog.String("period", string(period)), slog.Any("error", err))
			}
		}
		return nil
	}
}
