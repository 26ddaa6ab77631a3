package tts

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/affirmstudio/api/internal/catalog"
	"github.com/affirmstudio/api/internal/config"
)

// Runner executes an external binary.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs binaries with os/exec, killing them when ctx ends.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	// #nosec G204 -- binary paths come from configuration, text is passed as a single argument
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, fmt.Errorf("%s failed: %w - output: %s", filepath.Base(name), err, truncate(output, maxErrorBody))
	}
	return output, nil
}

// EdgeProvider drives the edge-tts command line client.
type EdgeProvider struct {
	binary string
	runner Runner
}

func NewEdgeProvider(cfg *config.TTSConfig, runner Runner) *EdgeProvider {
	return &EdgeProvider{binary: cfg.EdgePath, runner: runner}
}

func (p *EdgeProvider) Name() ProviderName { return Edge }

func (p *EdgeProvider) Synthesize(ctx context.Context, text string, voice catalog.VoiceBundle) ([]byte, error) {
	if p.binary == "" {
		return nil, ErrNotConfigured
	}

	dir, err := os.MkdirTemp("", "tts-edge-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	out := filepath.Join(dir, "speech.mp3")
	args := []string{
		"--voice", orDefault(voice.EdgeVoice, "ru-RU-SvetlanaNeural"),
		// signed values must be attached with '=' so they are not parsed as flags
		"--rate=" + orDefault(voice.EdgeRate, "+0%"),
		"--pitch=" + orDefault(voice.EdgePitch, "+0Hz"),
		"--text", text,
		"--write-media", out,
	}
	if _, err := p.runner.Run(ctx, p.binary, args...); err != nil {
		return nil, err
	}
	return readAudio(out)
}

// EspeakProvider renders speech offline with espeak-ng and encodes it to mp3 with ffmpeg.
type EspeakProvider struct {
	binary string
	ffmpeg string
	runner Runner
}

func NewEspeakProvider(cfg *config.TTSConfig, ffmpegPath string, runner Runner) *EspeakProvider {
	return &EspeakProvider{binary: cfg.EspeakPath, ffmpeg: ffmpegPath, runner: runner}
}

func (p *EspeakProvider) Name() ProviderName { return Espeak }

func (p *EspeakProvider) Synthesize(ctx context.Context, text string, voice catalog.VoiceBundle) ([]byte, error) {
	if p.binary == "" || p.ffmpeg == "" {
		return nil, ErrNotConfigured
	}

	dir, err := os.MkdirTemp("", "tts-espeak-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	wav := filepath.Join(dir, "speech.wav")
	mp3 := filepath.Join(dir, "speech.mp3")

	speed := voice.EspeakSpeed
	if speed <= 0 {
		speed = 145
	}
	pitch := voice.EspeakPitch
	if pitch <= 0 {
		pitch = 50
	}

	if _, err := p.runner.Run(ctx, p.binary,
		"-v", orDefault(voice.EspeakVoice, "ru+f2"),
		"-s", strconv.Itoa(speed),
		"-p", strconv.Itoa(pitch),
		"-w", wav,
		text,
	); err != nil {
		return nil, err
	}

	if _, err := p.runner.Run(ctx, p.ffmpeg,
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", wav,
		"-ar", "44100",
		"-ac", "2",
		"-c:a", "libmp3lame",
		"-b:a", "192k",
		mp3,
	); err != nil {
		return nil, err
	}
	return readAudio(mp3)
}

func readAudio(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read synthesized audio: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyAudio
	}
	return data, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
