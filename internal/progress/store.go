package progress

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Store persists progress records, one per (learner, course).
type Store interface {
	// Create inserts a new record. It fails with ErrAlreadyEnrolled when the
	// learner already has a record for the course.
	Create(ctx context.Context, rec *Record) error
	Get(ctx context.Context, learnerID, courseID string) (*Record, error)
	ListByLearner(ctx context.Context, learnerID string) ([]*Record, error)
	// Save replaces the stored record when its version still equals
	// rec.Version and bumps the version. A moved version is ErrConflict.
	Save(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, learnerID, courseID string) error
	DeleteByCourse(ctx context.Context, courseID string) (int, error)
}

// MemoryStore is an in-memory implementation of Store. Records are copied
// in and out, so a caller's unsaved changes are never visible to others.
type MemoryStore struct {
	records map[string]*Record
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory progress store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*Record),
	}
}

func (s *MemoryStore) Create(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey(rec.LearnerID, rec.CourseID)
	if _, ok := s.records[key]; ok {
		return ErrAlreadyEnrolled
	}
	rec.Version = 1
	s.records[key] = rec.Clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, learnerID, courseID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[recordKey(learnerID, courseID)]
	if !ok {
		return nil, ErrNotEnrolled
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) ListByLearner(_ context.Context, learnerID string) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Record
	for _, rec := range s.records {
		if rec.LearnerID == learnerID {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EnrolledAt.Before(out[j].EnrolledAt) })
	return out, nil
}

func (s *MemoryStore) Save(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey(rec.LearnerID, rec.CourseID)
	cur, ok := s.records[key]
	if !ok {
		return ErrNotEnrolled
	}
	if cur.Version != rec.Version {
		return fmt.Errorf("%w: have version %d, stored %d", ErrConflict, rec.Version, cur.Version)
	}
	rec.Version++
	s.records[key] = rec.Clone()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, learnerID, courseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey(learnerID, courseID)
	if _, ok := s.records[key]; !ok {
		return ErrNotEnrolled
	}
	delete(s.records, key)
	return nil
}

func (s *MemoryStore) DeleteByCourse(_ context.Context, courseID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for key, rec := range s.records {
		if rec.CourseID == courseID {
			delete(s.records, key)
			n++
		}
	}
	return n, nil
}

func recordKey(learnerID, courseID string) string {
	return learnerID + ":" + courseID
}
