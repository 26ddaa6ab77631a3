package model

import "errors"

// Input errors: rejected synchronously at job creation, nothing is written.
var (
	ErrTextTooLong          = errors.New("text is too long")
	ErrUnsupportedDuration  = errors.New("unsupported duration")
	ErrUnsupportedVoiceMode = errors.New("unsupported voice mode")
	ErrUnknownTrack         = errors.New("unknown music track")
	ErrEmptyUpload          = errors.New("uploaded file is empty")
	ErrUploadTooLarge       = errors.New("uploaded file is too large")
	ErrUnsupportedMediaType = errors.New("unsupported audio format")
	ErrConsentRequired      = errors.New("consent is required")
	ErrInvalidPreview       = errors.New("invalid preview parameters")
)

// Entitlement errors: rejected synchronously, no job created and no purchase mutated.
var (
	ErrPaymentRequired   = errors.New("payment required for selected duration")
	ErrPurchaseNotFound  = errors.New("purchase not found")
	ErrPurchaseConsumed  = errors.New("purchase already consumed")
	ErrPurchaseNotActive = errors.New("purchase cannot be confirmed")
)

// Lifecycle errors.
var (
	ErrNotFound          = errors.New("not found")
	ErrProjectNotFound   = errors.New("project not found")
	ErrInvalidTransition = errors.New("invalid job status transition")
	ErrJobTerminal       = errors.New("job already finished")
	ErrResultNotFound    = errors.New("result file not found")
	ErrSpeechUnavailable = errors.New("no speech provider produced audio")
)
