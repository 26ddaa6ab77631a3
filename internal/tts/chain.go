package tts

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/affirmstudio/api/internal/catalog"
	"github.com/affirmstudio/api/internal/config"
)

// fallbacks lists, per preferred provider, the candidates tried after it.
var fallbacks = map[ProviderName][]ProviderName{
	Yandex: {Salute, Edge, Espeak},
	Salute: {Yandex, Edge, Espeak},
	Edge:   {Yandex, Salute, Espeak},
	Espeak: {},
}

// unknownFallback is tried when the preferred provider is not a known backend.
var unknownFallback = []ProviderName{Edge, Espeak}

// FallbackOrder returns the full candidate list for a preferred provider, without duplicates.
func FallbackOrder(preferred ProviderName) []ProviderName {
	rest, known := fallbacks[preferred]
	if !known {
		rest = unknownFallback
	}

	order := make([]ProviderName, 0, len(rest)+1)
	seen := make(map[ProviderName]bool, len(rest)+1)
	for _, name := range append([]ProviderName{preferred}, rest...) {
		if seen[name] {
			continue
		}
		seen[name] = true
		order = append(order, name)
	}
	return order
}

// VoiceResolver maps a logical voice id to provider parameters.
type VoiceResolver interface {
	Bundle(voiceID string) catalog.VoiceBundle
}

// Chain tries the preferred provider and then its fallbacks, each exactly once.
type Chain struct {
	preferred ProviderName
	providers map[ProviderName]Provider
	voices    VoiceResolver
	timeout   time.Duration
	log       zerolog.Logger
}

// NewChain builds a chain. Providers missing from the list count as not configured.
func NewChain(preferred string, providers []Provider, voices VoiceResolver, timeout time.Duration, log zerolog.Logger) *Chain {
	byName := make(map[ProviderName]Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &Chain{
		preferred: ProviderName(strings.ToLower(strings.TrimSpace(preferred))),
		providers: byName,
		voices:    voices,
		timeout:   timeout,
		log:       log.With().Str("component", "tts").Logger(),
	}
}

// Order is the candidate list this chain walks.
func (c *Chain) Order() []ProviderName {
	return FallbackOrder(c.preferred)
}

// Synthesize returns the first non-empty audio, or a *ChainError listing every failure.
func (c *Chain) Synthesize(ctx context.Context, text, voiceID string) ([]byte, ProviderName, error) {
	if strings.TrimSpace(text) == "" {
		return nil, "", ErrEmptyText
	}
	bundle := c.voices.Bundle(voiceID)

	chainErr := &ChainError{}
	for _, name := range c.Order() {
		audio, err := c.try(ctx, name, text, bundle)
		if err == nil {
			return audio, name, nil
		}
		c.log.Warn().Err(err).Str("provider", string(name)).Msg("tts provider failed")
		chainErr.Failures = append(chainErr.Failures, &ProviderError{Provider: name, Err: err})

		if ctx.Err() != nil {
			break
		}
	}
	return nil, "", chainErr
}

// SynthesizeWithFallback returns nil when no candidate produced audio.
func (c *Chain) SynthesizeWithFallback(ctx context.Context, text, voiceID string) []byte {
	audio, name, err := c.Synthesize(ctx, text, voiceID)
	if err != nil {
		c.log.Error().Err(err).Msg("speech synthesis unavailable")
		return nil
	}
	c.log.Info().Str("provider", string(name)).Int("bytes", len(audio)).Msg("speech synthesized")
	return audio
}

func (c *Chain) try(ctx context.Context, name ProviderName, text string, bundle catalog.VoiceBundle) ([]byte, error) {
	p, ok := c.providers[name]
	if !ok {
		if _, known := fallbacks[name]; !known {
			return nil, ErrUnknownProvider
		}
		return nil, ErrNotConfigured
	}

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	audio, err := p.Synthesize(callCtx, text, bundle)
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}
	return audio, nil
}

// NewChainFromConfig wires every built-in backend from configuration.
func NewChainFromConfig(cfg *config.TTSConfig, ffmpegPath string, voices VoiceResolver, log zerolog.Logger) *Chain {
	runner := ExecRunner{}
	providers := []Provider{
		NewYandexProvider(cfg),
		NewSaluteProvider(cfg),
		NewEdgeProvider(cfg, runner),
		NewEspeakProvider(cfg, ffmpegPath, runner),
	}
	return NewChain(cfg.Provider, providers, voices, cfg.Timeout, log)
}
