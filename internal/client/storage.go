package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/affirmstudio/api/internal/config"
)

// ErrObjectNotFound is returned by Download when the key holds no object.
var ErrObjectNotFound = errors.New("object not found")

// StorageClient defines the interface for result and voice-sample blob operations
type StorageClient interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, error)
	// Delete is idempotent: removing a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Backend() string
}

// NewStorage builds the configured backend. The returned close func releases its connections.
func NewStorage(ctx context.Context, cfg *config.StorageConfig) (StorageClient, func(), error) {
	switch cfg.Backend {
	case "", "s3":
		store, err := NewS3Store(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	case "nats":
		nc, err := nats.Connect(cfg.NatsURL, nats.Name("affirm-storage"))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		js, err := nc.JetStream()
		if err != nil {
			nc.Close()
			return nil, nil, fmt.Errorf("failed to open JetStream: %w", err)
		}
		store, err := NewNatsStore(js, cfg.BucketName)
		if err != nil {
			nc.Close()
			return nil, nil, err
		}
		return store, nc.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
