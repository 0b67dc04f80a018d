package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/hyphy-mcp/pkg/models"
)

// MemoryStore keeps jobs for the life of the process. Each record is an
// immutable snapshot behind an atomic pointer; an update builds the next
// snapshot and swaps it in, so readers never observe a half-written job.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*atomic.Pointer[models.Job]
	now  func() time.Time
}

// NewMemoryStore creates an empty in-process registry.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[uuid.UUID]*atomic.Pointer[models.Job]),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Ping(_ context.Context) error { return nil }

func (s *MemoryStore) Close() {}

func (s *MemoryStore) CreateJob(_ context.Context, job *models.Job) error {
	snap, err := prepareNew(job, s.now())
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("create job %s: %w", job.ID, ErrDuplicateKey)
	}
	p := &atomic.Pointer[models.Job]{}
	p.Store(snap)
	s.jobs[job.ID] = p

	job.CreatedAt = snap.CreatedAt
	job.UpdatedAt = snap.UpdatedAt
	return nil
}

func (s *MemoryStore) GetJob(_ context.Context, id uuid.UUID) (*models.Job, error) {
	p := s.lookup(id)
	if p == nil {
		return nil, ErrNotFound
	}
	return p.Load().Clone(), nil
}

// ListJobs returns matching jobs newest first.
func (s *MemoryStore) ListJobs(_ context.Context, filter JobFilter) ([]*models.Job, error) {
	s.mu.RLock()
	out := make([]*models.Job, 0, len(s.jobs))
	for _, p := range s.jobs {
		if j := p.Load(); filter.matches(j) {
			out = append(out, j.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, k int) bool {
		if out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].ID.String() < out[k].ID.String()
		}
		return out[i].CreatedAt.After(out[k].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) UpdateJob(_ context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) error {
	p := s.lookup(id)
	if p == nil {
		return ErrNotFound
	}
	for {
		cur := p.Load()
		next, err := applyUpdate(cur, status, opts, s.now())
		if err != nil {
			return err
		}
		if p.CompareAndSwap(cur, next) {
			return nil
		}
	}
}

func (s *MemoryStore) lookup(id uuid.UUID) *atomic.Pointer[models.Job] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jobs[id]
}

// Compile-time check that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
