package queue

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/affirmstudio/api/internal/model"
)

func TestAudioTaskCarriesOnlyTheJobID(t *testing.T) {
	task := NewAudioTask("job-123")
	assert.Equal(t, model.TaskTypeAudio, task.Type())
	assert.Equal(t, []byte("job-123"), task.Payload())

	id, err := JobIDFromTask(task)
	require.NoError(t, err)
	assert.Equal(t, "job-123", id)

	_, err = JobIDFromTask(asynq.NewTask(model.TaskTypeAudio, nil))
	assert.Error(t, err)
}

func TestRetentionTask(t *testing.T) {
	task, err := NewRetentionTask(14)
	require.NoError(t, err)
	assert.Equal(t, model.TaskTypeRetention, task.Type())

	p, err := ParseRetentionTask(task)
	require.NoError(t, err)
	assert.Equal(t, 14, p.RetentionDays)

	zero, err := NewRetentionTask(0)
	require.NoError(t, err)
	p, err = ParseRetentionTask(zero)
	require.NoError(t, err)
	assert.Equal(t, 1, p.RetentionDays)

	_, err = ParseRetentionTask(asynq.NewTask(model.TaskTypeRetention, []byte("{")))
	assert.Error(t, err)
}

func TestEnqueueDeduplicatesByJobID(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	opt := asynq.RedisClientOpt{Addr: addr, DB: 15}
	client := asynq.NewClient(opt)
	t.Cleanup(func() { client.Close() })
	inspector := asynq.NewInspector(opt)
	t.Cleanup(func() { inspector.Close() })

	q := NewAsynqQueue(client)
	jobID := uuid.NewString()

	require.NoError(t, q.Enqueue(context.Background(), jobID))
	require.NoError(t, q.Enqueue(context.Background(), jobID))

	info, err := inspector.GetTaskInfo(model.QueueAudio, jobID)
	require.NoError(t, err)
	assert.Equal(t, 0, info.MaxRetry)
	assert.Equal(t, []byte(jobID), info.Payload)

	require.NoError(t, inspector.DeleteTask(model.QueueAudio, jobID))
}
