package audio

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/affirmstudio/api/internal/catalog"
	"github.com/affirmstudio/api/internal/config"
	"github.com/affirmstudio/api/internal/model"
)

// Render stages, reported in StageError.
const (
	StageProbe = "probe"
	StageBed   = "bed"
	StageMix   = "mix"
	StageFit   = "fit"
)

const (
	defaultProbeSeconds = 8.0
	minProbeSeconds     = 1.0
	fadeInSeconds       = 1.0
	fadeOutSeconds      = 2.0
)

// Runner executes an external binary.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// TrackResolver finds a catalog track by id.
type TrackResolver interface {
	Track(id string) (catalog.Track, bool)
	DefaultTrack() string
}

// StageError tags a render failure with the step that produced it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("audio %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Engine mixes a voice track over a music bed and masters the result to a fixed length mp3.
type Engine struct {
	cfg    config.AudioConfig
	runner Runner
	tracks TrackResolver
	beds   BedSource
	log    zerolog.Logger
}

// NewEngine creates an engine. A nil bed source uses the generated beds.
func NewEngine(cfg config.AudioConfig, runner Runner, tracks TrackResolver, beds BedSource, log zerolog.Logger) *Engine {
	if beds == nil {
		beds = NewGeneratedBed(cfg, runner)
	}
	return &Engine{
		cfg:    cfg,
		runner: runner,
		tracks: tracks,
		beds:   beds,
		log:    log.With().Str("component", "audio").Logger(),
	}
}

// NewEngineFromConfig picks the bed source named by cfg.MusicSource.
func NewEngineFromConfig(cfg config.AudioConfig, runner Runner, tracks TrackResolver, store Fetcher, log zerolog.Logger) *Engine {
	var beds BedSource
	if cfg.MusicSource == "library" {
		beds = NewLibraryBed(cfg, runner, store, log)
	}
	return NewEngine(cfg, runner, tracks, beds, log)
}

// Render produces an mp3 of exactly targetSec seconds: normalized voice over a faded bed.
func (e *Engine) Render(ctx context.Context, voice []byte, trackID string, targetSec int) ([]byte, error) {
	if len(voice) == 0 {
		return nil, &StageError{Stage: StageProbe, Err: fmt.Errorf("voice track is empty")}
	}
	if targetSec <= 0 {
		return nil, &StageError{Stage: StageFit, Err: fmt.Errorf("invalid target duration %d", targetSec)}
	}

	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	dir, err := os.MkdirTemp(e.cfg.WorkDir, "audio-")
	if err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	voicePath := filepath.Join(dir, "voice_input.mp3")
	if err := os.WriteFile(voicePath, voice, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write voice track: %w", err)
	}

	voiceSec, err := e.probe(ctx, voicePath)
	if err != nil {
		return nil, &StageError{Stage: StageProbe, Err: err}
	}
	mixSec := math.Max(float64(targetSec), voiceSec)

	track, err := e.resolveTrack(trackID)
	if err != nil {
		return nil, &StageError{Stage: StageBed, Err: err}
	}
	bedPath, err := e.beds.Bed(ctx, dir, track, mixSec)
	if err != nil {
		return nil, &StageError{Stage: StageBed, Err: err}
	}

	mixPath := filepath.Join(dir, "final.mp3")
	if _, err := e.runner.Run(ctx, e.cfg.FFmpegPath, e.mixArgs(voicePath, bedPath, mixSec, mixPath)...); err != nil {
		return nil, &StageError{Stage: StageMix, Err: err}
	}

	fittedPath := filepath.Join(dir, "final_fitted.mp3")
	if _, err := e.runner.Run(ctx, e.cfg.FFmpegPath, e.fitArgs(mixPath, targetSec, fittedPath)...); err != nil {
		return nil, &StageError{Stage: StageFit, Err: err}
	}

	out, err := os.ReadFile(fittedPath)
	if err != nil {
		return nil, &StageError{Stage: StageFit, Err: err}
	}
	e.log.Debug().
		Str("track", track.ID).
		Float64("voice_sec", voiceSec).
		Int("target_sec", targetSec).
		Int("bytes", len(out)).
		Msg("render complete")
	return out, nil
}

// Silence returns an mp3 of seconds of stereo silence.
func (e *Engine) Silence(ctx context.Context, seconds int) ([]byte, error) {
	if seconds <= 0 {
		seconds = e.cfg.SilenceSeconds
	}
	dir, err := os.MkdirTemp(e.cfg.WorkDir, "silence-")
	if err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	out := filepath.Join(dir, "silence.mp3")
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "lavfi",
		"-i", fmt.Sprintf("anullsrc=r=%d:cl=stereo", sampleRateOf(e.cfg)),
		"-t", strconv.Itoa(seconds),
		"-c:a", "libmp3lame",
		"-q:a", "4",
		out,
	}
	if _, err := e.runner.Run(ctx, e.cfg.FFmpegPath, args...); err != nil {
		return nil, err
	}
	return os.ReadFile(out)
}

// MusicPreview renders seconds of a track's bed on its own, without voice or mastering.
func (e *Engine) MusicPreview(ctx context.Context, trackID string, seconds int) ([]byte, error) {
	track, err := e.resolveTrack(trackID)
	if err != nil {
		return nil, err
	}
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	dir, err := os.MkdirTemp(e.cfg.WorkDir, "preview-")
	if err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	bedPath, err := e.beds.Bed(ctx, dir, track, float64(seconds))
	if err != nil {
		return nil, &StageError{Stage: StageBed, Err: err}
	}
	return os.ReadFile(bedPath)
}

func (e *Engine) resolveTrack(id string) (catalog.Track, error) {
	if id == "" {
		id = e.tracks.DefaultTrack()
	}
	t, ok := e.tracks.Track(id)
	if !ok {
		return catalog.Track{}, fmt.Errorf("%w: %s", model.ErrUnknownTrack, id)
	}
	return t, nil
}

func (e *Engine) probe(ctx context.Context, path string) (float64, error) {
	out, err := e.runner.Run(ctx, e.cfg.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, err
	}
	return parseProbeDuration(string(out)), nil
}

// parseProbeDuration floors the probed length at one second; unreadable output counts as eight.
func parseProbeDuration(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return defaultProbeSeconds
	}
	return math.Max(minProbeSeconds, v)
}

// MixGraph is the filter_complex that normalizes the voice, ducks the bed and masters the sum.
func (e *Engine) MixGraph(durationSec float64) string {
	loud := e.loudnorm()
	return fmt.Sprintf(
		"[0:a]%s[voice];"+
			"[1:a]volume=%sdB,afade=t=in:st=0:d=%s,afade=t=out:st=%s:d=%s[music];"+
			"[voice][music]amix=inputs=2:duration=longest:dropout_transition=2[mix];"+
			"[mix]%s[out]",
		loud,
		formatNumber(e.cfg.MusicOffsetDB),
		formatNumber(fadeInSeconds),
		formatNumber(fadeOutStart(durationSec)),
		formatNumber(fadeOutSeconds),
		loud,
	)
}

// FitFilter pads with silence and then trims so the output lasts exactly durationSec.
func FitFilter(durationSec int) string {
	return fmt.Sprintf("apad=pad_dur=%d,atrim=0:%d", durationSec, durationSec)
}

// BedFilter shapes a raw bed: lowpass plus fades at both ends.
func BedFilter(durationSec float64) string {
	return fmt.Sprintf("lowpass=f=1800,afade=t=in:st=0:d=%s,afade=t=out:st=%s:d=%s",
		formatNumber(fadeInSeconds),
		formatNumber(fadeOutStart(durationSec)),
		formatNumber(fadeOutSeconds),
	)
}

func (e *Engine) mixArgs(voicePath, bedPath string, durationSec float64, out string) []string {
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", voicePath,
		"-i", bedPath,
		"-filter_complex", e.MixGraph(durationSec),
		"-map", "[out]",
	}
	return append(args, e.encodeArgs(out)...)
}

func (e *Engine) fitArgs(in string, targetSec int, out string) []string {
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", in,
		"-af", FitFilter(targetSec),
		"-t", strconv.Itoa(targetSec),
	}
	return append(args, e.encodeArgs(out)...)
}

func (e *Engine) encodeArgs(out string) []string {
	return []string{
		"-ar", strconv.Itoa(sampleRateOf(e.cfg)),
		"-ac", "2",
		"-c:a", "libmp3lame",
		"-b:a", bitrateOf(e.cfg),
		out,
	}
}

func (e *Engine) loudnorm() string {
	return fmt.Sprintf("loudnorm=I=%s:LRA=%s:TP=%s",
		formatNumber(e.cfg.LoudnessI),
		formatNumber(e.cfg.LoudnessLRA),
		formatNumber(e.cfg.TruePeak),
	)
}

func fadeOutStart(durationSec float64) float64 {
	return math.Max(0, durationSec-fadeOutSeconds)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
