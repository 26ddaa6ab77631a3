package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/affirmstudio/api/internal/model"
)

const (
	PreviewMinSec     = 4
	PreviewMaxSec     = 25
	PreviewDefaultSec = 10
)

var previewText = map[string]string{
	"ru": "Я есть спокойствие и уверенность. Я имею ясный фокус и внутреннюю опору каждый день.",
	"en": "I am calm and confident. I have clear focus and inner stability every day.",
}

// SpeechSynthesizer speaks text with a logical voice, nil when every provider failed.
type SpeechSynthesizer interface {
	SynthesizeWithFallback(ctx context.Context, text, voiceID string) []byte
}

// MusicPreviewer renders a short sample of a background bed.
type MusicPreviewer interface {
	MusicPreview(ctx context.Context, trackID string, seconds int) ([]byte, error)
}

// PreviewService renders short samples of the catalog voices and tracks
type PreviewService struct {
	speech SpeechSynthesizer
	music  MusicPreviewer
	log    zerolog.Logger
}

func NewPreviewService(speech SpeechSynthesizer, music MusicPreviewer, log zerolog.Logger) *PreviewService {
	return &PreviewService{
		speech: speech,
		music:  music,
		log:    log.With().Str("component", "preview").Logger(),
	}
}

// Voice speaks a fixed sentence in lang. Voices missing from the catalog use the fallback bundle.
func (s *PreviewService) Voice(ctx context.Context, voiceID, lang string) (*model.JobResult, error) {
	if lang == "" {
		lang = "ru"
	}
	sentence, ok := previewText[lang]
	if !ok {
		return nil, fmt.Errorf("%w: language %q", model.ErrInvalidPreview, lang)
	}

	audio := s.speech.SynthesizeWithFallback(ctx, sentence, voiceID)
	if len(audio) == 0 {
		s.log.Warn().Str("voice", voiceID).Msg("voice preview failed on every provider")
		return nil, model.ErrSpeechUnavailable
	}
	return &model.JobResult{
		Data:        audio,
		ContentType: resultContentType,
		Filename:    "voice-" + voiceID + "." + resultExt,
	}, nil
}

// Music renders durationSec seconds of a track's bed.
func (s *PreviewService) Music(ctx context.Context, trackID string, durationSec int) (*model.JobResult, error) {
	if durationSec < PreviewMinSec || durationSec > PreviewMaxSec {
		return nil, fmt.Errorf("%w: duration must be %d to %d seconds", model.ErrInvalidPreview, PreviewMinSec, PreviewMaxSec)
	}

	data, err := s.music.MusicPreview(ctx, trackID, durationSec)
	if err != nil {
		if errors.Is(err, model.ErrUnknownTrack) {
			return nil, fmt.Errorf("%w: track %s", model.ErrNotFound, trackID)
		}
		return nil, fmt.Errorf("failed to render music preview: %w", err)
	}
	return &model.JobResult{
		Data:        data,
		ContentType: resultContentType,
		Filename:    "music-" + trackID + "." + resultExt,
	}, nil
}
