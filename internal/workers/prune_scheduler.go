package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/orgpulse/orgpulse/internal/tasks"
)

// StartPruneScheduler enqueues a prune task on every tick of the cron schedule
// until ctx is done
func StartPruneScheduler(ctx context.Context, client tasks.Enqueuer, schedule string, logger zerolog.Logger) error {
	sched, err := parseSchedule(schedule)
	if err != nil {
		return err
	}

	for {
		now := time.Now()
		next := sched.Next(now)
		logger.Debug().Time("next_prune_at", next).Msg("Prune scheduled")

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		enqueuePrune(ctx, client, logger)
	}
}

func enqueuePrune(ctx context.Context, client tasks.Enqueuer, logger zerolog.Logger) {
	task, err := tasks.NewPruneRevokedSessionsTask(time.Time{})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create prune task")
		return
	}

	// Unique keeps a backlog from piling up while the worker is down
	info, err := client.EnqueueContext(ctx, task, asynq.Queue("low"), asynq.Unique(time.Hour))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to enqueue prune task")
		return
	}

	logger.Info().Str("task_id", info.ID).Msg("Prune task enqueued")
}

// parseSchedule parses a standard 5-field cron expression
// (minute hour day-of-month month day-of-week)
func parseSchedule(cronExpr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid prune schedule %q: %w", cronExpr, err)
	}
	return schedule, nil
}
