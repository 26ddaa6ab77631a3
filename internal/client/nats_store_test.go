package client

import (
	"context"
	"testing"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/affirmstudio/api/internal/config"
)

func startTestServer(t *testing.T) *server.Server {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	srv := test.RunServer(&opts)
	t.Cleanup(srv.Shutdown)
	return srv
}

func newTestNatsStore(t *testing.T) *NatsStore {
	t.Helper()

	srv := startTestServer(t)
	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	js, err := nc.JetStream()
	require.NoError(t, err)

	store, err := NewNatsStore(js, "results")
	require.NoError(t, err)
	return store
}

func TestNatsStoreRoundTrip(t *testing.T) {
	store := newTestNatsStore(t)
	ctx := context.Background()

	data := []byte("ID3 fake mp3 payload")
	require.NoError(t, store.Upload(ctx, "results/job-1.mp3", data, "audio/mpeg"))

	got, err := store.Download(ctx, "results/job-1.mp3")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	require.NoError(t, store.Delete(ctx, "results/job-1.mp3"))
	_, err = store.Download(ctx, "results/job-1.mp3")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	// deleting again is a no-op
	assert.NoError(t, store.Delete(ctx, "results/job-1.mp3"))
}

func TestNatsStoreBindsExistingBucket(t *testing.T) {
	srv := startTestServer(t)
	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)
	js, err := nc.JetStream()
	require.NoError(t, err)

	first, err := NewNatsStore(js, "samples")
	require.NoError(t, err)
	require.NoError(t, first.Upload(context.Background(), "voice-samples/a/1.webm", []byte("x"), "audio/webm"))

	second, err := NewNatsStore(js, "samples")
	require.NoError(t, err)
	got, err := second.Download(context.Background(), "voice-samples/a/1.webm")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got)
}

func TestNewStorageNats(t *testing.T) {
	srv := startTestServer(t)

	store, closeFn, err := NewStorage(context.Background(), &config.StorageConfig{
		Backend:    "nats",
		NatsURL:    srv.ClientURL(),
		BucketName: "affirm",
	})
	require.NoError(t, err)
	defer closeFn()
	assert.Equal(t, "nats", store.Backend())
}

func TestNewStorageRejectsUnknownBackend(t *testing.T) {
	_, _, err := NewStorage(context.Background(), &config.StorageConfig{Backend: "ftp"})
	assert.Error(t, err)

	_, _, err = NewStorage(context.Background(), &config.StorageConfig{Backend: "s3"})
	assert.Error(t, err)
}

func TestS3StoreConfig(t *testing.T) {
	store, err := NewS3Store(context.Background(), &config.StorageConfig{
		Endpoint:        "http://localhost:9000",
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
		BucketName:      "affirm",
		UsePathStyle:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, "s3", store.Backend())
	assert.Equal(t, "affirm", store.bucketName)
}
