package model

import "time"

// JobCreateRequest represents POST /api/jobs
type JobCreateRequest struct {
	ProjectID     string    `json:"projectId" validate:"required"`
	Text          string    `json:"text" validate:"required,min=5"`
	MusicTrackID  string    `json:"musicTrackId" validate:"omitempty,max=64"`
	DurationSec   int       `json:"durationSec" validate:"omitempty,min=1"`
	VoiceMode     VoiceMode `json:"voiceMode" validate:"omitempty,oneof=my_voice system_voice"`
	PresetVoiceID *string   `json:"presetVoiceId,omitempty" validate:"omitempty,max=64"`
	PurchaseID    *string   `json:"purchaseId,omitempty" validate:"omitempty,max=36"`
}

// Defaults for omitted job fields.
const (
	DefaultMusicTrackID = "calm-1"
	DefaultVoiceMode    = VoiceModeMine
)

// ApplyDefaults fills omitted optional fields.
func (r *JobCreateRequest) ApplyDefaults(demoDurationSec int) {
	if r.MusicTrackID == "" {
		r.MusicTrackID = DefaultMusicTrackID
	}
	if r.VoiceMode == "" {
		r.VoiceMode = DefaultVoiceMode
	}
	if r.DurationSec == 0 {
		r.DurationSec = demoDurationSec
	}
}

// JobCreateResponse is returned by POST /api/jobs
type JobCreateResponse struct {
	JobID     string    `json:"jobId"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// JobStatusResponse is returned by GET /api/jobs/:jobId
type JobStatusResponse struct {
	JobID     string    `json:"jobId"`
	Status    JobStatus `json:"status"`
	ResultURL *string   `json:"resultUrl,omitempty"`
	Error     *string   `json:"error,omitempty"`
}

// JobResult is the downloaded audio payload of a completed job.
type JobResult struct {
	Data        []byte
	ContentType string
	Filename    string
}

// RetentionSweepResponse is returned by the retention cleanup endpoint
type RetentionSweepResponse struct {
	RetentionDays int `json:"retentionDays"`
	VoiceDeleted  int `json:"voiceDeleted"`
	AudioDeleted  int `json:"audioDeleted"`
}

// DeletedResponse reports how many items a privacy deletion removed
type DeletedResponse struct {
	Deleted int `json:"deleted"`
}
