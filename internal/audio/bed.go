package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/affirmstudio/api/internal/catalog"
	"github.com/affirmstudio/api/internal/config"
)

// BedSource writes a music bed of at least durationSec seconds into dir and returns its path.
type BedSource interface {
	Bed(ctx context.Context, dir string, track catalog.Track, durationSec float64) (string, error)
}

// calmExpression is used when a track carries no expression of its own.
const calmExpression = "0.014*sin(2*PI*174*t)+0.011*sin(2*PI*220*t)+0.007*sin(2*PI*261*t)"

// GeneratedBed synthesizes a soft chord with aevalsrc.
type GeneratedBed struct {
	cfg    config.AudioConfig
	runner Runner
}

func NewGeneratedBed(cfg config.AudioConfig, runner Runner) *GeneratedBed {
	return &GeneratedBed{cfg: cfg, runner: runner}
}

func (g *GeneratedBed) Bed(ctx context.Context, dir string, track catalog.Track, durationSec float64) (string, error) {
	expr := track.Expression
	if expr == "" {
		expr = calmExpression
	}
	out := filepath.Join(dir, "music_input.mp3")
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "lavfi",
		"-i", fmt.Sprintf("aevalsrc=%s:s=%d", expr, sampleRateOf(g.cfg)),
		"-t", formatNumber(durationSec),
		"-af", BedFilter(durationSec),
		"-ar", fmt.Sprint(sampleRateOf(g.cfg)),
		"-ac", "2",
		"-c:a", "libmp3lame",
		"-b:a", bitrateOf(g.cfg),
		out,
	}
	if _, err := g.runner.Run(ctx, g.cfg.FFmpegPath, args...); err != nil {
		return "", err
	}
	return out, nil
}

// Fetcher reads an object from the blob store.
type Fetcher interface {
	Download(ctx context.Context, key string) ([]byte, error)
}

// LibraryBed loops a licensed recording from the blob store to the requested length.
// When the recording cannot be fetched it falls back to the generated bed.
type LibraryBed struct {
	cfg      config.AudioConfig
	runner   Runner
	store    Fetcher
	fallback BedSource
	log      zerolog.Logger
}

func NewLibraryBed(cfg config.AudioConfig, runner Runner, store Fetcher, log zerolog.Logger) *LibraryBed {
	return &LibraryBed{
		cfg:      cfg,
		runner:   runner,
		store:    store,
		fallback: NewGeneratedBed(cfg, runner),
		log:      log.With().Str("component", "audio.library").Logger(),
	}
}

func (l *LibraryBed) Bed(ctx context.Context, dir string, track catalog.Track, durationSec float64) (string, error) {
	if track.LibraryKey == "" {
		return l.fallback.Bed(ctx, dir, track, durationSec)
	}

	data, err := l.store.Download(ctx, track.LibraryKey)
	if err != nil || len(data) == 0 {
		l.log.Warn().Err(err).Str("track", track.ID).Msg("library bed unavailable, generating")
		return l.fallback.Bed(ctx, dir, track, durationSec)
	}

	src := filepath.Join(dir, "library_source"+filepath.Ext(track.LibraryKey))
	if err := os.WriteFile(src, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write library bed: %w", err)
	}

	out := filepath.Join(dir, "music_input.mp3")
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-stream_loop", "-1",
		"-i", src,
		"-t", formatNumber(durationSec),
		"-af", BedFilter(durationSec),
		"-ar", fmt.Sprint(sampleRateOf(l.cfg)),
		"-ac", "2",
		"-c:a", "libmp3lame",
		"-b:a", bitrateOf(l.cfg),
		out,
	}
	if _, err := l.runner.Run(ctx, l.cfg.FFmpegPath, args...); err != nil {
		return "", err
	}
	return out, nil
}

func sampleRateOf(cfg config.AudioConfig) int {
	if cfg.SampleRate <= 0 {
		return 44100
	}
	return cfg.SampleRate
}

func bitrateOf(cfg config.AudioConfig) string {
	if cfg.Bitrate == "" {
		return "192k"
	}
	return cfg.Bitrate
}
