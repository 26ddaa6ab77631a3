package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/affirmstudio/api/internal/model"
	"github.com/affirmstudio/api/internal/repository"
)

// Store keeps every record in process memory behind one lock, so job creation and
// purchase consumption stay atomic exactly as they are in the SQL store.
type Store struct {
	mu        sync.Mutex
	seq       int64
	now       func() time.Time
	jobs      map[string]*jobRow
	purchases map[string]*purchaseRow
	samples   map[string]*sampleRow
	projects  map[string]*projectRow
}

type jobRow struct {
	seq int64
	job model.AudioJob
}

type purchaseRow struct {
	seq      int64
	purchase model.Purchase
}

type sampleRow struct {
	seq    int64
	sample model.VoiceSample
}

type projectRow struct {
	seq     int64
	project model.Project
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		now:       time.Now,
		jobs:      make(map[string]*jobRow),
		purchases: make(map[string]*purchaseRow),
		samples:   make(map[string]*sampleRow),
		projects:  make(map[string]*projectRow),
	}
}

// SetClock overrides the time source.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Repositories exposes the store through the repository contracts.
func (s *Store) Repositories() repository.Repositories {
	return repository.Repositories{
		Jobs:         &JobRepository{s: s},
		Purchases:    &PurchaseRepository{s: s},
		VoiceSamples: &VoiceSampleRepository{s: s},
		Projects:     &ProjectRepository{s: s},
	}
}

func (s *Store) nextSeq() int64 {
	s.seq++
	return s.seq
}

func (s *Store) stamp(t time.Time) time.Time {
	if t.IsZero() {
		return s.now().UTC()
	}
	return t
}

func cloneJob(j model.AudioJob) *model.AudioJob {
	j.PresetVoiceID = cloneStr(j.PresetVoiceID)
	j.PurchaseID = cloneStr(j.PurchaseID)
	j.ResultKey = cloneStr(j.ResultKey)
	j.Error = cloneStr(j.Error)
	return &j
}

func clonePurchase(p model.Purchase) *model.Purchase {
	p.ProviderPaymentID = cloneStr(p.ProviderPaymentID)
	if p.ConsumedAt != nil {
		at := *p.ConsumedAt
		p.ConsumedAt = &at
	}
	return &p
}

func cloneStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// newestFirst orders by creation time descending with insertion order as the tie-break.
func newestFirst(aTime time.Time, aSeq int64, bTime time.Time, bSeq int64) bool {
	if !aTime.Equal(bTime) {
		return aTime.After(bTime)
	}
	return aSeq > bSeq
}

func sortRows[T any](rows []T, less func(a, b T) bool) {
	sort.SliceStable(rows, func(i, j int) bool { return less(rows[i], rows[j]) })
}
