package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Store reads and writes whole course documents.
type Store interface {
	GetCourse(ctx context.Context, id string) (*Course, error)
	FindCourseByChapter(ctx context.Context, chapterID string) (string, error)
	ListCourses(ctx context.Context) ([]*Course, error)
	PutCourse(ctx context.Context, course *Course) error
	DeleteCourse(ctx context.Context, id string) error
}

// MemoryStore is an in-memory implementation of Store.
// Courses are copied on the way in and out so callers never share a tree.
type MemoryStore struct {
	courses map[string]*Course
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory course store.
func NewMemoryStore(courses ...*Course) *MemoryStore {
	s := &MemoryStore{
		courses: make(map[string]*Course),
	}
	for _, c := range courses {
		s.courses[c.ID] = c.Clone()
	}
	return s
}

func (s *MemoryStore) GetCourse(_ context.Context, id string) (*Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.courses[id]
	if !ok {
		return nil, fmt.Errorf("course %s: %w", id, ErrNotFound)
	}
	return c.Clone(), nil
}

func (s *MemoryStore) FindCourseByChapter(_ context.Context, chapterID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.courses))
	for id := range s.courses {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if _, ok := s.courses[id].LocateChapter(chapterID); ok {
			return id, nil
		}
	}
	return "", fmt.Errorf("chapter %s: %w", chapterID, ErrNotFound)
}

func (s *MemoryStore) ListCourses(_ context.Context) ([]*Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Course, 0, len(s.courses))
	for _, c := range s.courses {
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) PutCourse(_ context.Context, course *Course) error {
	if err := course.Validate(); err != nil {
		return err
	}
	c := course.Clone()
	c.Normalize()

	s.mu.Lock()
	s.courses[c.ID] = c
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) DeleteCourse(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.courses[id]; !ok {
		return fmt.Errorf("course %s: %w", id, ErrNotFound)
	}
	delete(s.courses, id)
	return nil
}
