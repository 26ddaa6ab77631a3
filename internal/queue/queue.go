package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/affirmstudio/api/internal/model"
)

// Enqueuer hands job ids to the workers.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobID string) error
}

// AsynqQueue is the Work Queue backed by asynq.
type AsynqQueue struct {
	client    *asynq.Client
	retention time.Duration
}

// NewAsynqQueue wraps an asynq client.
func NewAsynqQueue(client *asynq.Client) *AsynqQueue {
	return &AsynqQueue{client: client, retention: 24 * time.Hour}
}

// Enqueue pushes jobID onto the audio queue. The task id is the job id, so enqueueing the
// same job twice is a no-op. Failed tasks are never retried.
func (q *AsynqQueue) Enqueue(ctx context.Context, jobID string) error {
	_, err := q.client.EnqueueContext(ctx, NewAudioTask(jobID),
		asynq.Queue(model.QueueAudio),
		asynq.TaskID(jobID),
		asynq.MaxRetry(0),
		asynq.Retention(q.retention),
	)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			return nil
		}
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// NewAudioTask builds the queue message: the bare job id, nothing else.
func NewAudioTask(jobID string) *asynq.Task {
	return asynq.NewTask(model.TaskTypeAudio, []byte(jobID))
}

// JobIDFromTask extracts the job id from an audio task.
func JobIDFromTask(t *asynq.Task) (string, error) {
	id := string(t.Payload())
	if id == "" {
		return "", fmt.Errorf("audio task has an empty job id")
	}
	return id, nil
}

// RetentionPayload parameterizes a retention sweep.
type RetentionPayload struct {
	RetentionDays int `json:"retentionDays"`
}

// NewRetentionTask builds a retention sweep task.
func NewRetentionTask(days int) (*asynq.Task, error) {
	data, err := json.Marshal(RetentionPayload{RetentionDays: days})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(model.TaskTypeRetention, data), nil
}

// ParseRetentionTask decodes a retention sweep task. Windows under one day are raised to one day.
func ParseRetentionTask(t *asynq.Task) (RetentionPayload, error) {
	var p RetentionPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("failed to unmarshal retention payload: %w", err)
	}
	p.RetentionDays = max(1, p.RetentionDays)
	return p, nil
}

// RegisterRetention schedules the periodic retention sweep.
func RegisterRetention(scheduler *asynq.Scheduler, cronspec string, days int) (string, error) {
	task, err := NewRetentionTask(days)
	if err != nil {
		return "", err
	}
	return scheduler.Register(cronspec, task,
		asynq.Queue(model.QueueMaintenance),
		asynq.MaxRetry(1),
		asynq.Timeout(30*time.Minute),
	)
}
