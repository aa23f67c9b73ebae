package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
}

func (r *recordingEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	r.tasks = append(r.tasks, task)
	r.opts = append(r.opts, opts)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

func TestPruneTaskPayload(t *testing.T) {
	before := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	task, err := NewPruneRevokedSessionsTask(before)
	require.NoError(t, err)
	assert.Equal(t, TypePruneRevokedSessions, task.Type())

	payload, err := ParseTaskPayload(task)
	require.NoError(t, err)
	assert.True(t, before.Equal(payload.Before))
}

func TestParseTaskPayload_Empty(t *testing.T) {
	payload, err := ParseTaskPayload(asynq.NewTask(TypePruneRevokedSessions, nil))
	require.NoError(t, err)
	assert.True(t, payload.Before.IsZero())
}

func TestEnqueuePruneAt(t *testing.T) {
	q := &recordingEnqueuer{}
	at := time.Now().Add(time.Hour)

	info, err := EnqueuePruneAt(context.Background(), q, at)
	require.NoError(t, err)
	assert.Equal(t, TypePruneRevokedSessions, info.Type)

	require.Len(t, q.tasks, 1)
	var hasProcessAt bool
	for _, opt := range q.opts[0] {
		if opt.Type() == asynq.ProcessAtOpt {
			hasProcessAt = true
			assert.Equal(t, at.Unix(), opt.Value().(time.Time).Unix())
		}
	}
	assert.True(t, hasProcessAt)
}
