package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/affirmstudio/api/internal/client"
	"github.com/affirmstudio/api/internal/config"
	"github.com/affirmstudio/api/internal/model"
	"github.com/affirmstudio/api/internal/repository"
)

const defaultSampleContentType = "audio/webm"

// allowedSampleTypes lists the content types accepted for voice uploads.
// Browser recorders may send video/webm for an audio-only stream.
var allowedSampleTypes = map[string]bool{
	"audio/webm":  true,
	"audio/wav":   true,
	"audio/x-wav": true,
	"audio/mpeg":  true,
	"audio/mp3":   true,
	"audio/mp4":   true,
	"audio/m4a":   true,
	"video/webm":  true,
}

// VoiceUpload is one received voice recording
type VoiceUpload struct {
	Filename    string
	ContentType string
	Data        []byte
	Consent     bool
}

// VoiceService stores voice samples
type VoiceService struct {
	samples repository.VoiceSampleRepository
	storage client.StorageClient
	cfg     config.VoiceUploadConfig
	log     zerolog.Logger
}

func NewVoiceService(samples repository.VoiceSampleRepository, storage client.StorageClient, cfg config.VoiceUploadConfig, log zerolog.Logger) *VoiceService {
	return &VoiceService{
		samples: samples,
		storage: storage,
		cfg:     cfg,
		log:     log.With().Str("component", "voice").Logger(),
	}
}

// Upload validates and stores a sample under voice-samples/{account}/{uuid}{ext}
func (s *VoiceService) Upload(ctx context.Context, accountID string, up *VoiceUpload) (*model.VoiceSampleResponse, error) {
	if s.cfg.RequireConsent && !up.Consent {
		return nil, model.ErrConsentRequired
	}

	contentType := normalizeContentType(up.ContentType)
	if contentType != "" && !allowedSampleTypes[contentType] {
		return nil, fmt.Errorf("%w: %s", model.ErrUnsupportedMediaType, contentType)
	}
	if contentType == "" {
		contentType = defaultSampleContentType
	}

	if len(up.Data) == 0 {
		return nil, model.ErrEmptyUpload
	}
	if s.cfg.MaxBytes > 0 && int64(len(up.Data)) > s.cfg.MaxBytes {
		return nil, model.ErrUploadTooLarge
	}

	ext := strings.ToLower(filepath.Ext(up.Filename))
	if ext == "" {
		ext = ".webm"
	}
	key := model.VoiceSampleKey(accountID, uuid.New().String(), ext)

	if err := s.storage.Upload(ctx, key, up.Data, contentType); err != nil {
		return nil, fmt.Errorf("failed to store voice sample: %w", err)
	}

	sample := &model.VoiceSample{
		ID:        uuid.New().String(),
		AccountID: accountID,
		Key:       key,
		Consent:   up.Consent,
	}
	if err := s.samples.Create(ctx, sample); err != nil {
		if delErr := s.storage.Delete(ctx, key); delErr != nil {
			s.log.Warn().Err(delErr).Str("key", key).Msg("failed to remove orphaned sample blob")
		}
		return nil, fmt.Errorf("failed to save voice sample: %w", err)
	}

	s.log.Info().Str("account_id", accountID).Str("key", key).Int("bytes", len(up.Data)).Msg("voice sample stored")
	return toSampleResponse(sample), nil
}

// Latest returns the newest sample of the account, or nil when there is none
func (s *VoiceService) Latest(ctx context.Context, accountID string) (*model.VoiceSampleResponse, error) {
	sample, err := s.samples.Latest(ctx, accountID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load voice sample: %w", err)
	}
	return toSampleResponse(sample), nil
}

func toSampleResponse(s *model.VoiceSample) *model.VoiceSampleResponse {
	return &model.VoiceSampleResponse{ID: s.ID, Key: s.Key, Consent: s.Consent}
}

// normalizeContentType strips parameters such as "; codecs=opus"
func normalizeContentType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}
