package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/orgpulse/orgpulse/internal/models"
	"github.com/orgpulse/orgpulse/internal/tasks"
)

// HandlePruneRevokedSessions deletes revocations for tokens that already expired
func HandlePruneRevokedSessions(ctx context.Context, t *asynq.Task, db *gorm.DB, logger zerolog.Logger) error {
	payload, err := tasks.ParseTaskPayload(t)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	before := payload.Before
	if before.IsZero() {
		before = time.Now()
	}

	pruned, err := models.PruneRevokedSessions(db.WithContext(ctx), before)
	if err != nil {
		return err
	}

	logger.Info().
		Int64("pruned", pruned).
		Time("before", before).
		Msg("Pruned revoked sessions")

	return nil
}
