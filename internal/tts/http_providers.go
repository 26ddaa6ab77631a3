package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/affirmstudio/api/internal/catalog"
	"github.com/affirmstudio/api/internal/config"
)

const maxErrorBody = 512

// YandexProvider calls the Yandex SpeechKit v1 synthesis endpoint.
type YandexProvider struct {
	apiKey       string
	url          string
	defaultVoice string
	lang         string
	format       string
	httpClient   *http.Client
}

// NewYandexProvider creates a Yandex provider. An empty API key leaves it unconfigured.
func NewYandexProvider(cfg *config.TTSConfig) *YandexProvider {
	return &YandexProvider{
		apiKey:       cfg.YandexAPIKey,
		url:          cfg.YandexURL,
		defaultVoice: cfg.YandexVoice,
		lang:         cfg.YandexLang,
		format:       cfg.YandexFormat,
		httpClient:   &http.Client{Timeout: clientTimeout(cfg.Timeout)},
	}
}

func (p *YandexProvider) Name() ProviderName { return Yandex }

// IsConfigured returns true if the provider has credentials
func (p *YandexProvider) IsConfigured() bool { return p.apiKey != "" }

func (p *YandexProvider) Synthesize(ctx context.Context, text string, voice catalog.VoiceBundle) ([]byte, error) {
	if !p.IsConfigured() {
		return nil, ErrNotConfigured
	}

	voiceName := voice.Yandex
	if voiceName == "" {
		voiceName = p.defaultVoice
	}
	form := url.Values{}
	form.Set("text", text)
	form.Set("lang", p.lang)
	form.Set("voice", voiceName)
	form.Set("format", p.format)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Api-Key "+p.apiKey)

	return doAudioRequest(p.httpClient, req)
}

// SaluteProvider calls the SaluteSpeech REST synthesis endpoint.
type SaluteProvider struct {
	apiKey     string
	url        string
	voice      string
	lang       string
	httpClient *http.Client
}

// NewSaluteProvider creates a Salute provider. An empty API key leaves it unconfigured.
func NewSaluteProvider(cfg *config.TTSConfig) *SaluteProvider {
	return &SaluteProvider{
		apiKey:     cfg.SaluteAPIKey,
		url:        cfg.SaluteURL,
		voice:      cfg.SaluteVoice,
		lang:       cfg.SaluteLang,
		httpClient: &http.Client{Timeout: clientTimeout(cfg.Timeout)},
	}
}

func (p *SaluteProvider) Name() ProviderName { return Salute }

// IsConfigured returns true if the provider has credentials
func (p *SaluteProvider) IsConfigured() bool { return p.apiKey != "" }

type saluteRequest struct {
	Text   string `json:"text"`
	Voice  string `json:"voice"`
	Lang   string `json:"lang"`
	Format string `json:"format"`
}

// Synthesize ignores the logical voice: Salute voice names do not map onto the catalog,
// so the configured voice is always used.
func (p *SaluteProvider) Synthesize(ctx context.Context, text string, _ catalog.VoiceBundle) ([]byte, error) {
	if !p.IsConfigured() {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(saluteRequest{Text: text, Voice: p.voice, Lang: p.lang, Format: "mp3"})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	return doAudioRequest(p.httpClient, req)
}

func doAudioRequest(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}
	return audio, nil
}

func clientTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 40 * time.Second
	}
	return d
}
