// Package jobs runs the background side of the ledger on Asynq: the trash
// retention sweep and dashboard cache warmup.
package jobs

import (
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTrashSweep permanently purges trashed records past retention.
	TaskTrashSweep = "trash:sweep"
	// TaskReportWarmup pre-computes the dashboard for every period.
	TaskReportWarmup = "reporting:warmup"
)

// NewTrashSweepTask constructs the sweep task. It carries no payload; the
// retention window is a property of the trash service.
func NewTrashSweepTask() *asynq.Task {
	return asynq.NewTask(TaskTrashSweep, nil)
}

// NewReportWarmupTask constructs the warmup task.
func NewReportWarmupTask() *asynq.Task {
	return asynq.NewTask(TaskReportWarmup, nil)
}
