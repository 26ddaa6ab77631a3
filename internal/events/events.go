package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/affirmstudio/api/internal/model"
)

// Channel is the redis pub/sub channel carrying job events.
const Channel = "job-events"

// Publisher emits job events.
type Publisher interface {
	Publish(ctx context.Context, event model.JobEvent) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, model.JobEvent) error { return nil }

// RedisBus publishes and subscribes to job events over redis pub/sub.
type RedisBus struct {
	redis   *redis.Client
	channel string
	log     zerolog.Logger
}

func NewRedisBus(client *redis.Client, log zerolog.Logger) *RedisBus {
	return &RedisBus{
		redis:   client,
		channel: Channel,
		log:     log.With().Str("component", "events").Logger(),
	}
}

func (b *RedisBus) Publish(ctx context.Context, event model.JobEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal job event: %w", err)
	}
	if err := b.redis.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish job event: %w", err)
	}
	return nil
}

// Subscribe delivers every decodable event to handle until ctx is cancelled.
func (b *RedisBus) Subscribe(ctx context.Context, handle func(model.JobEvent)) error {
	sub := b.redis.Subscribe(ctx, b.channel)
	defer sub.Close()

	// wait for the subscription confirmation so no event published after return is missed
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event model.JobEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.log.Warn().Err(err).Msg("dropping malformed job event")
				continue
			}
			handle(event)
		}
	}
}

// StatusEvent builds the event for a job entering status.
func StatusEvent(jobID string, status model.JobStatus, stage string) model.JobEvent {
	return model.JobEvent{Type: model.WSMessageTypeStatus, JobID: jobID, Status: status, Stage: stage}
}

// CompleteEvent builds the event for a completed job.
func CompleteEvent(jobID, resultURL string) model.JobEvent {
	return model.JobEvent{Type: model.WSMessageTypeComplete, JobID: jobID, Status: model.JobStatusCompleted, ResultURL: &resultURL}
}

// FailedEvent builds the event for a failed job.
func FailedEvent(jobID, message string) model.JobEvent {
	return model.JobEvent{
		Type:   model.WSMessageTypeError,
		JobID:  jobID,
		Status: model.JobStatusFailed,
		Error:  &model.WSError{Code: "JOB_FAILED", Message: message},
	}
}
