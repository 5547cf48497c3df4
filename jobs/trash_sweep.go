package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

// TrashPurger is the slice of the trash service the sweeper needs.
type TrashPurger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// HandleTrashSweep returns the handler that purges everything past the
// retention window. Purge errors on individual records are absorbed by the
// service; only a failure to even list the trash fails the task.
func HandleTrashSweep(purger TrashPurger, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		purged, err := purger.PurgeExpired(ctx)
		if err != nil {
			logger.Error("trash sweep failed", slog.Any("error", err))
			return err
		}
		logger.Info("trash sweep finished", slog.Int("purged", purged))
		return nil
	}
}
