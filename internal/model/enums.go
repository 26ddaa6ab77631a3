package model

// Job status
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"

	// JobStatusNotFound is only reported by the status endpoint for unknown ids.
	JobStatusNotFound JobStatus = "not_found"
)

// IsTerminal reports whether no further transition is allowed out of s.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Voice modes
type VoiceMode string

const (
	VoiceModeMine   VoiceMode = "my_voice"
	VoiceModeSystem VoiceMode = "system_voice"
)

var ValidVoiceModes = []VoiceMode{VoiceModeMine, VoiceModeSystem}

// IsValid reports whether m is a known voice mode.
func (m VoiceMode) IsValid() bool {
	for _, v := range ValidVoiceModes {
		if v == m {
			return true
		}
	}
	return false
}

// Purchase status
type PurchaseStatus string

const (
	PurchaseStatusPending PurchaseStatus = "pending"
	PurchaseStatusPaid    PurchaseStatus = "paid"
	PurchaseStatusExpired PurchaseStatus = "expired"

	// PurchaseStatusDemo marks the synthetic purchase returned for the free demo duration.
	PurchaseStatusDemo PurchaseStatus = "demo"
)

// Billing providers
const (
	BillingProviderLocal = "local"
)
