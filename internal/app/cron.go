package app

import (
	"context"
	"time"

	pkgcron "github.com/interviewlab/core/internal/pkg/cron"
	"go.uber.org/zap"
)

const (
	taskRetention       = 24 * time.Hour
	taskCleanupInterval = time.Hour
)

// registerCronJobs registers all scheduled background jobs.
func (a *App) registerCronJobs() {
	log := a.logger.Named("CronService")
	sweepEvery := a.cfg.History.SweepInterval
	if sweepEvery <= 0 {
		sweepEvery = time.Hour
	}

	a.sched.Register(pkgcron.Job{
		Name:        "history_sweep",
		Description: "Delete expired question history entries",
		Interval:    sweepEvery,
		Timeout:     5 * time.Minute,
		Fn: func(ctx context.Context) error {
			n, err := a.history.Sweep(ctx)
			if err != nil {
				return err
			}
			if n > 0 {
				log.Info("expired history swept", zap.Int64("deleted", n))
			}
			return nil
		},
	})

	a.sched.Register(pkgcron.Job{
		Name:        "task_cleanup",
		Description: "Delete finished background tasks older than a day",
		Interval:    taskCleanupInterval,
		Timeout:     time.Minute,
		Fn: func(ctx context.Context) error {
			cutoff := time.Now().Add(-taskRetention).UnixMilli()
			n, err := a.tasks.DeleteCompleted(ctx, cutoff)
			if err != nil {
				return err
			}
			if n > 0 {
				log.Info("finished tasks cleaned", zap.Int("deleted", n))
			}
			return nil
		},
	})
}
