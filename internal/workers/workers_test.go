package workers

import (
	"context"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/orgpulse/orgpulse/internal/models"
	"github.com/orgpulse/orgpulse/internal/tasks"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := models.Open("file:"+ulid.Make().String()+"?mode=memory&cache=shared", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = models.Close(db) })

	return db
}

type recordingEnqueuer struct {
	tasks []*asynq.Task
}

func (r *recordingEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	r.tasks = append(r.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Type: task.Type()}, nil
}

func TestHandlePruneRevokedSessions(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()

	require.NoError(t, models.RevokeSession(db, "01EXPIRED", "u", now.Add(-time.Minute)))
	require.NoError(t, models.RevokeSession(db, "01ACTIVE", "u", now.Add(time.Hour)))

	task, err := tasks.NewPruneRevokedSessionsTask(time.Time{})
	require.NoError(t, err)
	require.NoError(t, HandlePruneRevokedSessions(context.Background(), task, db, zerolog.Nop()))

	revoked, err := models.IsSessionRevoked(db, "01EXPIRED")
	require.NoError(t, err)
	assert.False(t, revoked)

	revoked, err = models.IsSessionRevoked(db, "01ACTIVE")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestHandlePruneRevokedSessions_ExplicitCutoff(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()

	require.NoError(t, models.RevokeSession(db, "01LATER", "u", now.Add(time.Hour)))

	task, err := tasks.NewPruneRevokedSessionsTask(now.Add(2 * time.Hour))
	require.NoError(t, err)
	require.NoError(t, HandlePruneRevokedSessions(context.Background(), task, db, zerolog.Nop()))

	revoked, err := models.IsSessionRevoked(db, "01LATER")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestHandlePruneRevokedSessions_BadPayload(t *testing.T) {
	db := openTestDB(t)

	err := HandlePruneRevokedSessions(context.Background(), asynq.NewTask(tasks.TypePruneRevokedSessions, []byte("{")), db, zerolog.Nop())
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestParseSchedule(t *testing.T) {
	sched, err := parseSchedule("0 * * * *")
	require.NoError(t, err)

	from := time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC), sched.Next(from))

	_, err = parseSchedule("every hour")
	assert.Error(t, err)
}

func TestEnqueuePrune(t *testing.T) {
	q := &recordingEnqueuer{}

	enqueuePrune(context.Background(), q, zerolog.Nop())

	require.Len(t, q.tasks, 1)
	assert.Equal(t, tasks.TypePruneRevokedSessions, q.tasks[0].Type())
}

func TestStartPruneScheduler_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- StartPruneScheduler(ctx, &recordingEnqueuer{}, "0 0 1 1 *", zerolog.Nop())
	}()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestStartPruneScheduler_InvalidSchedule(t *testing.T) {
	err := StartPruneScheduler(context.Background(), &recordingEnqueuer{}, "nope", zerolog.Nop())
	assert.Error(t, err)
}
