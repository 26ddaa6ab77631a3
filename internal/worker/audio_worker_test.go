package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/affirmstudio/api/internal/audio"
	"github.com/affirmstudio/api/internal/catalog"
	"github.com/affirmstudio/api/internal/client"
	"github.com/affirmstudio/api/internal/model"
	"github.com/affirmstudio/api/internal/queue"
	"github.com/affirmstudio/api/internal/repository"
	"github.com/affirmstudio/api/internal/repository/memory"
	"github.com/affirmstudio/api/internal/service"
	"github.com/affirmstudio/api/internal/tts"
)

type fakeTTS struct {
	audio  []byte
	voices []string
}

func (f *fakeTTS) SynthesizeWithFallback(_ context.Context, _ string, voiceID string) []byte {
	f.voices = append(f.voices, voiceID)
	return f.audio
}

type renderCall struct {
	voice   []byte
	trackID string
	target  int
}

type fakeRenderer struct {
	calls      []renderCall
	silenceReq []int
	err        error
}

func (r *fakeRenderer) Render(_ context.Context, voice []byte, trackID string, targetSec int) ([]byte, error) {
	r.calls = append(r.calls, renderCall{voice: voice, trackID: trackID, target: targetSec})
	if r.err != nil {
		return nil, r.err
	}
	return []byte(fmt.Sprintf("mixed:%s:%d", trackID, targetSec)), nil
}

func (r *fakeRenderer) Silence(_ context.Context, seconds int) ([]byte, error) {
	r.silenceReq = append(r.silenceReq, seconds)
	return []byte("silence"), nil
}

type blobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	fail    bool
}

func (b *blobs) Backend() string { return "memory" }

func (b *blobs) Upload(_ context.Context, key string, data []byte, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return errors.New("bucket unavailable")
	}
	b.objects[key] = data
	return nil
}

func (b *blobs) Download(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.objects[key]
	if !ok {
		return nil, client.ErrObjectNotFound
	}
	return d, nil
}

func (b *blobs) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

type recorder struct {
	mu     sync.Mutex
	events []model.JobEvent
}

func (r *recorder) Publish(_ context.Context, e model.JobEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

type harness struct {
	repos    repository.Repositories
	tts      *fakeTTS
	renderer *fakeRenderer
	blobs    *blobs
	events   *recorder
	worker   *AudioWorker
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		repos:    memory.NewStore().Repositories(),
		tts:      &fakeTTS{audio: []byte("speech")},
		renderer: &fakeRenderer{},
		blobs:    &blobs{objects: map[string][]byte{}},
		events:   &recorder{},
	}
	h.worker = NewAudioWorker(h.repos.Jobs, h.tts, h.renderer, h.blobs, h.events,
		Options{MinDurationSec: 30, SilenceSec: 8, DefaultVoice: "jane"}, zerolog.Nop())
	return h
}

func (h *harness) queued(t *testing.T, job model.AudioJob) string {
	t.Helper()
	if job.ID == "" {
		job.ID = fmt.Sprintf("job-%d", time.Now().UnixNano())
	}
	job.Status = model.JobStatusQueued
	if job.MusicTrackID == "" {
		job.MusicTrackID = "calm-1"
	}
	if job.VoiceMode == "" {
		job.VoiceMode = model.VoiceModeMine
	}
	job.AccountID = "acc-1"
	job.InputText = "Я люблю себя."
	require.NoError(t, h.repos.Jobs.Create(context.Background(), &job, nil))
	return job.ID
}

func TestProcessCompletesJob(t *testing.T) {
	h := newHarness(t)
	id := h.queued(t, model.AudioJob{DurationSec: 120, MusicTrackID: "deep-1"})

	require.NoError(t, h.worker.ProcessTask(context.Background(), queue.NewAudioTask(id)))

	job, err := h.repos.Jobs.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
	require.NotNil(t, job.ResultKey)
	assert.Equal(t, "results/"+id+".mp3", *job.ResultKey)
	assert.Equal(t, []byte("mixed:deep-1:120"), h.blobs.objects[*job.ResultKey])

	require.Len(t, h.renderer.calls, 1)
	assert.Equal(t, []byte("speech"), h.renderer.calls[0].voice)
	assert.Equal(t, []string{"jane"}, h.tts.voices)

	last := h.events.events[len(h.events.events)-1]
	assert.Equal(t, model.WSMessageTypeComplete, last.Type)
	assert.Equal(t, service.ResultURL(id), *last.ResultURL)
}

func TestProcessUsesPresetVoiceAndDurationFloor(t *testing.T) {
	h := newHarness(t)
	voice := "ermil"
	id := h.queued(t, model.AudioJob{DurationSec: 10, VoiceMode: model.VoiceModeSystem, PresetVoiceID: &voice})

	require.NoError(t, h.worker.Process(context.Background(), id))
	assert.Equal(t, []string{"ermil"}, h.tts.voices)
	assert.Equal(t, 30, h.renderer.calls[0].target)
}

type bundleRecorder struct {
	bundles []catalog.VoiceBundle
}

func (b *bundleRecorder) Name() tts.ProviderName { return tts.Edge }

func (b *bundleRecorder) Synthesize(_ context.Context, _ string, voice catalog.VoiceBundle) ([]byte, error) {
	b.bundles = append(b.bundles, voice)
	return []byte("speech"), nil
}

func TestProcessSpeaksUnlistedVoiceWithFallbackBundle(t *testing.T) {
	h := newHarness(t)
	cat := catalog.MustDefault()
	provider := &bundleRecorder{}
	chain := tts.NewChain(string(tts.Edge), []tts.Provider{provider}, cat, time.Second, zerolog.Nop())
	h.worker = NewAudioWorker(h.repos.Jobs, chain, h.renderer, h.blobs, h.events,
		Options{MinDurationSec: 30, SilenceSec: 8, DefaultVoice: "jane"}, zerolog.Nop())

	voice := "custom-voice"
	id := h.queued(t, model.AudioJob{DurationSec: 30, VoiceMode: model.VoiceModeSystem, PresetVoiceID: &voice})
	require.NoError(t, h.worker.Process(context.Background(), id))

	require.Len(t, provider.bundles, 1)
	assert.Equal(t, cat.Bundle("custom-voice"), provider.bundles[0])
	assert.Equal(t, "ru+f2", provider.bundles[0].EspeakVoice)
	assert.NotEqual(t, cat.Bundle("jane"), provider.bundles[0])

	job, err := h.repos.Jobs.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
}

func TestProcessFallsBackToSilence(t *testing.T) {
	h := newHarness(t)
	h.tts.audio = nil
	id := h.queued(t, model.AudioJob{DurationSec: 30})

	require.NoError(t, h.worker.Process(context.Background(), id))

	job, err := h.repos.Jobs.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
	assert.Equal(t, []int{8}, h.renderer.silenceReq)
	assert.Equal(t, []byte("silence"), h.renderer.calls[0].voice)
}

func TestProcessFailsOnRenderError(t *testing.T) {
	h := newHarness(t)
	h.renderer.err = &audio.StageError{Stage: audio.StageMix, Err: errors.New("exit status 1")}
	id := h.queued(t, model.AudioJob{DurationSec: 30})

	err := h.worker.Process(context.Background(), id)
	require.Error(t, err)

	job, getErr := h.repos.Jobs.Get(context.Background(), id)
	require.NoError(t, getErr)
	assert.Equal(t, model.JobStatusFailed, job.Status)
	require.NotNil(t, job.Error)
	assert.Contains(t, *job.Error, "audio mix")
	assert.Nil(t, job.ResultKey)

	last := h.events.events[len(h.events.events)-1]
	assert.Equal(t, model.WSMessageTypeError, last.Type)
}

func TestProcessFailsOnStorageError(t *testing.T) {
	h := newHarness(t)
	h.blobs.fail = true
	id := h.queued(t, model.AudioJob{DurationSec: 30})

	require.Error(t, h.worker.Process(context.Background(), id))
	job, err := h.repos.Jobs.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, job.Status)
}

func TestProcessSkipsFinishedAndMissingJobs(t *testing.T) {
	h := newHarness(t)
	id := h.queued(t, model.AudioJob{DurationSec: 30})
	require.NoError(t, h.worker.Process(context.Background(), id))
	require.Len(t, h.renderer.calls, 1)

	// redelivery of a completed job is a no-op
	require.NoError(t, h.worker.Process(context.Background(), id))
	assert.Len(t, h.renderer.calls, 1)

	require.NoError(t, h.worker.Process(context.Background(), "missing"))
	assert.Len(t, h.renderer.calls, 1)
}

func TestProcessTakesOverStuckJob(t *testing.T) {
	h := newHarness(t)
	id := h.queued(t, model.AudioJob{DurationSec: 30})
	_, _, err := h.repos.Jobs.Claim(context.Background(), id)
	require.NoError(t, err)

	require.NoError(t, h.worker.Process(context.Background(), id))
	job, err := h.repos.Jobs.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
}

func TestProcessTaskRejectsEmptyPayload(t *testing.T) {
	h := newHarness(t)
	err := h.worker.ProcessTask(context.Background(), asynq.NewTask(model.TaskTypeAudio, nil))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
