package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DATABASE_URL", "")
	t.Setenv("TTS_PROVIDER", "")
	t.Setenv("BILLING_PACKAGES", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, 30, cfg.Billing.DemoDuration)
	assert.Equal(t, 24000, cfg.Billing.MaxTextChars)
	assert.Equal(t, []int{120, 180, 240, 300}, cfg.Billing.PaidDurations)
	assert.Equal(t, 450, cfg.Billing.PackagePrices[300])
	assert.Equal(t, "edge", cfg.TTS.Provider)
	assert.Equal(t, 40*time.Second, cfg.TTS.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.Audio.Timeout)
	assert.Equal(t, 44100, cfg.Audio.SampleRate)
	assert.Equal(t, -16.0, cfg.Audio.LoudnessI)
	assert.Equal(t, -14.0, cfg.Audio.MusicOffsetDB)
	assert.Equal(t, 14, cfg.Retention.Days)
	assert.Equal(t, int64(15*1024*1024), cfg.Voice.MaxBytes)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("TTS_PROVIDER", "Yandex")
	t.Setenv("BILLING_PACKAGES", "60:99, bogus, 90:149")
	t.Setenv("VOICE_RETENTION_DAYS", "0")
	t.Setenv("STORAGE_BACKEND", "NATS")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "yandex", cfg.TTS.Provider)
	assert.Equal(t, []int{60, 90}, cfg.Billing.PaidDurations)
	assert.Equal(t, 149, cfg.Billing.PackagePrices[90])
	assert.Equal(t, 1, cfg.Retention.Days, "retention window has a one day floor")
	assert.Equal(t, "nats", cfg.Storage.Backend)
}

func TestReadSecretFromFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	secretPath := filepath.Join(dir, "yandex_key")
	require.NoError(t, os.WriteFile(secretPath, []byte("  s3cret\n"), 0o600))

	t.Setenv("YANDEX_API_KEY", "")
	t.Setenv("YANDEX_API_KEY_FILE", secretPath)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.TTS.YandexAPIKey)
}

func TestParsePackagesKeepsFirstOrder(t *testing.T) {
	durations, prices := parsePackages("180:290,120:190,180:300")
	assert.Equal(t, []int{180, 120}, durations)
	assert.Equal(t, 300, prices[180])
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains: it changes
// the working directory and restores it when the test finishes.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Setenv("PWD", dir)
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore working directory: %v", err)
		}
	})
}
