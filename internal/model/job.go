package model

import (
	"fmt"
	"time"
)

// AudioJob is one audio generation request and its lifecycle record.
type AudioJob struct {
	ID            string    `json:"id"`
	AccountID     string    `json:"accountId"`
	ProjectID     string    `json:"projectId"`
	Status        JobStatus `json:"status"`
	InputText     string    `json:"-"`
	MusicTrackID  string    `json:"musicTrackId"`
	DurationSec   int       `json:"durationSec"`
	VoiceMode     VoiceMode `json:"voiceMode"`
	PresetVoiceID *string   `json:"presetVoiceId,omitempty"`
	PurchaseID    *string   `json:"purchaseId,omitempty"`
	ResultKey     *string   `json:"resultKey,omitempty"`
	Error         *string   `json:"error,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Task types
const (
	TaskTypeAudio     = "audio:process"
	TaskTypeRetention = "retention:sweep"
)

// QueueAudio is the asynq queue carrying audio job ids.
const QueueAudio = "audio"

// QueueMaintenance carries scheduled housekeeping tasks.
const QueueMaintenance = "maintenance"

// CanTransition reports whether the job state machine allows from -> to.
//
//	queued -> processing -> completed | failed
//
// processing -> processing is allowed so that a redelivered job can be taken over.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobStatusQueued:
		return to == JobStatusProcessing
	case JobStatusProcessing:
		return to == JobStatusProcessing || to == JobStatusCompleted || to == JobStatusFailed
	default:
		return false
	}
}

// CheckTransition returns ErrInvalidTransition wrapped with both states when the move is illegal.
func CheckTransition(from, to JobStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// ResultKeyFor returns the storage key of a finished job's audio.
func ResultKeyFor(jobID, ext string) string {
	return fmt.Sprintf("results/%s.%s", jobID, ext)
}

// ResultFilename is the download filename for a job's audio.
func ResultFilename(jobID, ext string) string {
	return fmt.Sprintf("affirmation-%s.%s", jobID, ext)
}
