package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/affirmstudio/api/internal/catalog"
	"github.com/affirmstudio/api/internal/client"
	"github.com/affirmstudio/api/internal/config"
	"github.com/affirmstudio/api/internal/entitlement"
	"github.com/affirmstudio/api/internal/model"
	"github.com/affirmstudio/api/internal/repository"
	"github.com/affirmstudio/api/internal/repository/memory"
)

type memStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	failWrite bool
	failDel   bool
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}}
}

func (m *memStorage) Backend() string { return "memory" }

func (m *memStorage) Upload(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite {
		return errors.New("bucket unavailable")
	}
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

func (m *memStorage) Download(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", client.ErrObjectNotFound, key)
	}
	return data, nil
}

func (m *memStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDel {
		return errors.New("bucket unavailable")
	}
	delete(m.objects, key)
	return nil
}

func (m *memStorage) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

type fakeQueue struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (q *fakeQueue) Enqueue(_ context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.ids = append(q.ids, jobID)
	return nil
}

func (q *fakeQueue) Enqueued() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.ids...)
}

var testBilling = config.BillingConfig{
	Provider:      model.BillingProviderLocal,
	DemoDuration:  30,
	MaxTextChars:  24000,
	PaidDurations: []int{120, 180, 240, 300},
	PackagePrices: map[int]int{120: 190, 180: 290, 240: 390, 300: 450},
}

type fixture struct {
	store    *memory.Store
	repos    repository.Repositories
	storage  *memStorage
	queue    *fakeQueue
	jobs     *JobService
	billing  *BillingService
	projects *ProjectService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	repos := store.Repositories()
	validator := entitlement.NewValidator(entitlement.Rules{
		MaxTextChars:    testBilling.MaxTextChars,
		DemoDurationSec: testBilling.DemoDuration,
		PaidDurations:   testBilling.PaidDurations,
	}, repos.Purchases)

	f := &fixture{
		store:   store,
		repos:   repos,
		storage: newMemStorage(),
		queue:   &fakeQueue{},
	}
	f.jobs = NewJobService(repos, validator, catalog.MustDefault(), f.queue, f.storage, zerolog.Nop())
	f.billing = NewBillingService(repos.Purchases, validator, testBilling, zerolog.Nop())
	f.projects = NewProjectService(repos.Projects)
	return f
}

func (f *fixture) project(t *testing.T, accountID string) string {
	t.Helper()
	p, err := f.projects.Create(context.Background(), accountID, &model.ProjectCreateRequest{Title: "Morning"})
	require.NoError(t, err)
	return p.ID
}

func (f *fixture) paidPurchase(t *testing.T, accountID string, durationSec int) string {
	t.Helper()
	p, err := f.billing.CreatePurchase(context.Background(), accountID, &model.PurchaseCreateRequest{DurationSec: durationSec})
	require.NoError(t, err)
	require.Equal(t, model.PurchaseStatusPaid, p.Status)
	return p.ID
}

func strPtr(s string) *string { return &s }
