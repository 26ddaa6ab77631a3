package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/rs/zerolog"

	"github.com/affirmstudio/api/internal/auth"
	"github.com/affirmstudio/api/internal/catalog"
	"github.com/affirmstudio/api/internal/client"
	"github.com/affirmstudio/api/internal/config"
	"github.com/affirmstudio/api/internal/entitlement"
	"github.com/affirmstudio/api/internal/events"
	"github.com/affirmstudio/api/internal/handler"
	"github.com/affirmstudio/api/internal/middleware"
	"github.com/affirmstudio/api/internal/model"
	"github.com/affirmstudio/api/internal/repository"
	"github.com/affirmstudio/api/internal/repository/memory"
	"github.com/affirmstudio/api/internal/service"
	ws "github.com/affirmstudio/api/internal/websocket"
	"github.com/affirmstudio/api/internal/worker"
)

const (
	testJWTSecret = "test-secret-for-e2e"
	testAccount   = "test-account-123"
)

// inlineQueue records enqueued job ids; drain hands them to the worker the way asynq would.
type inlineQueue struct {
	mu  sync.Mutex
	ids []string
}

func (q *inlineQueue) Enqueue(_ context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, jobID)
	return nil
}

func (q *inlineQueue) take() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := q.ids
	q.ids = nil
	return ids
}

func (q *inlineQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ids)
}

// stubSpeech stands in for the provider chain; nil audio means every provider failed.
type stubSpeech struct {
	mu    sync.Mutex
	audio []byte
}

func (s *stubSpeech) SynthesizeWithFallback(context.Context, string, string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audio
}

func (s *stubSpeech) set(audio []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio = audio
}

// stubMixer stands in for the ffmpeg engine.
type stubMixer struct {
	mu       sync.Mutex
	fail     error
	silences int
	lastVox  []byte
}

func (m *stubMixer) Render(_ context.Context, voice []byte, trackID string, targetSec int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	m.lastVox = voice
	return []byte(fmt.Sprintf("ID3|%s|%d|%s", trackID, targetSec, voice)), nil
}

func (m *stubMixer) MusicPreview(_ context.Context, trackID string, seconds int) ([]byte, error) {
	if trackID != "calm-1" && trackID != "deep-1" {
		return nil, model.ErrUnknownTrack
	}
	return []byte(fmt.Sprintf("ID3|bed|%s|%d", trackID, seconds)), nil
}

func (m *stubMixer) Silence(context.Context, int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.silences++
	return []byte("silence"), nil
}

// testApp holds all components needed for testing
type testApp struct {
	app     *fiber.App
	repos   repository.Repositories
	queue   *inlineQueue
	storage client.StorageClient
	speech  *stubSpeech
	mixer   *stubMixer
	worker  *worker.AudioWorker
}

// setupApp creates a Fiber app wired like cmd/server, with memory repositories,
// an in-process JetStream result store and the worker driven inline.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	natsServer := test.RunServer(&opts)
	t.Cleanup(natsServer.Shutdown)

	storage, closeStorage, err := client.NewStorage(context.Background(), &config.StorageConfig{
		Backend:    "nats",
		NatsURL:    natsServer.ClientURL(),
		BucketName: "e2e-results",
	})
	if err != nil {
		t.Fatalf("failed to open result store: %v", err)
	}
	t.Cleanup(closeStorage)

	log := zerolog.Nop()
	repos := memory.NewStore().Repositories()
	cat := catalog.MustDefault()
	q := &inlineQueue{}
	validate := validator.New()

	billing := config.BillingConfig{
		Provider:      "local",
		DemoDuration:  30,
		MaxTextChars:  200,
		PaidDurations: []int{120, 180},
		PackagePrices: map[int]int{120: 190, 180: 290},
	}
	rules := entitlement.NewValidator(entitlement.Rules{
		MaxTextChars:    billing.MaxTextChars,
		DemoDurationSec: billing.DemoDuration,
		PaidDurations:   billing.PaidDurations,
	}, repos.Purchases)

	retention := service.NewRetentionService(repos, storage, log)
	speech := &stubSpeech{audio: []byte("speech")}
	mixer := &stubMixer{}
	handlers := handler.Handlers{
		Health:   handler.NewHealthHandler(handler.Components{Database: "memory", Storage: storage.Backend(), Auth: true}),
		Auth:     handler.NewAuthHandler(nil, testJWTSecret),
		Jobs:     handler.NewJobHandler(service.NewJobService(repos, rules, cat, q, storage, log), validate),
		Billing:  handler.NewBillingHandler(service.NewBillingService(repos.Purchases, rules, billing, log), validate),
		Projects: handler.NewProjectHandler(service.NewProjectService(repos.Projects), validate),
		Voice: handler.NewVoiceHandler(service.NewVoiceService(repos.VoiceSamples, storage, config.VoiceUploadConfig{
			MaxBytes:       1024,
			RequireConsent: true,
		}, log)),
		Privacy: handler.NewPrivacyHandler(retention, 14),
		Catalog: handler.NewCatalogHandler(cat, service.NewPreviewService(speech, mixer, log)),
	}

	app := fiber.New(fiber.Config{BodyLimit: 4 * 1024 * 1024})
	authenticate := middleware.NewAuthMiddleware(nil, testJWTSecret).Authenticate()
	hubCtx, stopHub := context.WithCancel(context.Background())
	t.Cleanup(stopHub)
	hub := ws.NewHub(log)
	go hub.Run(hubCtx)
	handler.Register(app, handlers, authenticate, middleware.NewRateLimiter(nil, log), config.RateLimitConfig{}, hub)

	w := worker.NewAudioWorker(repos.Jobs, speech, mixer, storage, events.Nop{}, worker.Options{
		MinDurationSec: 30,
		SilenceSec:     8,
		DefaultVoice:   cat.DefaultVoice(),
	}, log)

	return &testApp{
		app:     app,
		repos:   repos,
		queue:   q,
		storage: storage,
		speech:  speech,
		mixer:   mixer,
		worker:  w,
	}
}

// drain runs every enqueued job through the worker.
func (ta *testApp) drain(t *testing.T) {
	t.Helper()
	for _, id := range ta.queue.take() {
		// failed jobs return their error; the status endpoint reports it
		_ = ta.worker.Process(context.Background(), id)
	}
}

// generateToken creates a legacy HMAC JWT token for test requests.
func generateToken(t *testing.T, accountID string) string {
	t.Helper()
	signed, err := auth.IssueLegacyToken(testJWTSecret, accountID, accountID+"@example.com", time.Hour)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return signed
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs a request as testAccount.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) *http.Response {
	t.Helper()
	return doAccountRequest(t, app, testAccount, method, path, body)
}

// doAccountRequest performs a request as accountID.
func doAccountRequest(t *testing.T, app *fiber.App, accountID, method, path, body string) *http.Response {
	t.Helper()
	resp, err := doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + generateToken(t, accountID),
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

// uploadSample posts a multipart voice sample.
func uploadSample(t *testing.T, app *fiber.App, filename, contentType string, data []byte, consent string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if consent != "" {
		if err := mw.WriteField("consent", consent); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatalf("failed to create part: %v", err)
	}
	_, _ = part.Write(data)
	_ = mw.Close()

	req, err := http.NewRequest(http.MethodPost, "/api/voice-samples", &buf)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+generateToken(t, testAccount))

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// parseJSONList parses a JSON array response body.
func parseJSONList(t *testing.T, resp *http.Response) []map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result []map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON list: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// assertErrorCode checks the envelope's error code.
func assertErrorCode(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	body := parseJSON(t, resp)
	errObj, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error envelope, got %v", body)
	}
	if errObj["code"] != expected {
		t.Errorf("expected error code %s, got %v (%v)", expected, errObj["code"], errObj["message"])
	}
}

// createProject creates a project for accountID and returns its id.
func createProject(t *testing.T, app *fiber.App, accountID string) string {
	t.Helper()
	resp := doAccountRequest(t, app, accountID, http.MethodPost, "/api/projects", `{"title":"Morning"}`)
	assertStatus(t, resp, http.StatusCreated)
	body := parseJSON(t, resp)
	id, _ := body["id"].(string)
	if id == "" {
		t.Fatalf("expected project id, got %v", body)
	}
	return id
}

// buyPackage purchases durationSec with the local provider and returns the purchase id.
func buyPackage(t *testing.T, app *fiber.App, durationSec int) string {
	t.Helper()
	resp := doAuthRequest(t, app, http.MethodPost, "/api/billing/purchases", fmt.Sprintf(`{"durationSec":%d}`, durationSec))
	assertStatus(t, resp, http.StatusCreated)
	body := parseJSON(t, resp)
	if body["status"] != "paid" {
		t.Fatalf("expected paid purchase, got %v", body)
	}
	return body["id"].(string)
}

func jobBody(projectID string, durationSec int, extra string) string {
	return fmt.Sprintf(`{"projectId":%q,"text":"Я спокойна и уверена в себе.","durationSec":%d%s}`, projectID, durationSec, extra)
}
