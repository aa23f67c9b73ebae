package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Task type constants
const (
	// TypePruneRevokedSessions deletes revoked sessions whose token expired
	TypePruneRevokedSessions = "session:prune"
)

// Enqueuer is the part of *asynq.Client used to schedule tasks
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TaskPayload is the common payload for all tasks
type TaskPayload struct {
	// Before limits pruning to revocations that expired before this instant.
	// Zero means the time the task runs.
	Before time.Time `json:"before,omitempty"`
}

// NewPruneRevokedSessionsTask creates a task to prune expired revocations
func NewPruneRevokedSessionsTask(before time.Time) (*asynq.Task, error) {
	payload, err := json.Marshal(TaskPayload{
		Before: before,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(TypePruneRevokedSessions, payload), nil
}

// EnqueuePruneAt schedules a prune to run once at
func EnqueuePruneAt(ctx context.Context, q Enqueuer, at time.Time) (*asynq.TaskInfo, error) {
	task, err := NewPruneRevokedSessionsTask(time.Time{})
	if err != nil {
		return nil, err
	}
	info, err := q.EnqueueContext(ctx, task, asynq.ProcessAt(at), asynq.Queue("low"), asynq.MaxRetry(3))
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue prune task: %w", err)
	}
	return info, nil
}

// ParseTaskPayload parses task payload from Asynq task
func ParseTaskPayload(task *asynq.Task) (TaskPayload, error) {
	var payload TaskPayload
	if len(task.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return payload, nil
}
