package tts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/affirmstudio/api/internal/catalog"
)

// ProviderName identifies one speech backend.
type ProviderName string

const (
	Yandex ProviderName = "yandex"
	Salute ProviderName = "salute"
	Edge   ProviderName = "edge"
	Espeak ProviderName = "espeak"
)

// Provider synthesizes speech with one backend.
type Provider interface {
	Name() ProviderName
	Synthesize(ctx context.Context, text string, voice catalog.VoiceBundle) ([]byte, error)
}

// Static errors.
var (
	ErrNotConfigured   = errors.New("provider is not configured")
	ErrUnknownProvider = errors.New("unknown provider")
	ErrEmptyAudio      = errors.New("provider returned empty audio")
	ErrEmptyText       = errors.New("text is empty")
)

// ProviderError is one candidate's failure inside the chain.
type ProviderError struct {
	Provider ProviderName
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ChainError collects the failure of every candidate tried.
type ChainError struct {
	Failures []*ProviderError
}

func (e *ChainError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Error())
	}
	return "all tts providers failed: " + strings.Join(parts, "; ")
}

func (e *ChainError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f)
	}
	return errs
}
