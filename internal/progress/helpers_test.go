package progress_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/p-n-ai/pai-learn/internal/catalog"
	"github.com/p-n-ai/pai-learn/internal/progress"
)

// algebraCourse has one text chapter and one two-question quiz.
func algebraCourse() *catalog.Course {
	return &catalog.Course{
		ID:        "algebra",
		Title:     "Algebra",
		Published: true,
		Sections: []catalog.Section{{
			ID: "s1", Title: "Basics", Order: 1,
			Units: []catalog.Unit{{
				ID: "u1", Title: "Numbers", Order: 1,
				Chapters: []catalog.Chapter{
					{ID: "ch-read", Title: "Read", ContentType: catalog.ContentText, Order: 1},
					{ID: "ch-quiz", Title: "Quiz", ContentType: catalog.ContentQuiz, Order: 2, Questions: []catalog.Question{
						{ID: "q1", Type: catalog.QuestionFillBlank, Text: "2+2", CorrectAnswer: "4"},
						{ID: "q2", Type: catalog.QuestionMultipleChoice, Text: "Capital of France", Options: []string{"Paris", "Rome"}, CorrectAnswer: "Paris"},
					}},
				},
			}},
		}},
	}
}

// gridCourse has 2 sections x 2 units x 3 text chapters.
func gridCourse(id string) *catalog.Course {
	c := &catalog.Course{ID: id, Title: id, Published: true}
	for si := 1; si <= 2; si++ {
		s := catalog.Section{ID: fmt.Sprintf("%s-s%d", id, si), Order: si}
		for ui := 1; ui <= 2; ui++ {
			u := catalog.Unit{ID: fmt.Sprintf("%s-s%d-u%d", id, si, ui), Order: ui}
			for ci := 1; ci <= 3; ci++ {
				u.Chapters = append(u.Chapters, catalog.Chapter{
					ID:          fmt.Sprintf("%s-s%d-u%d-c%d", id, si, ui, ci),
					ContentType: catalog.ContentText,
					Order:       ci,
				})
			}
			s.Units = append(s.Units, u)
		}
		c.Sections = append(c.Sections, s)
	}
	return c
}

type fixture struct {
	catalog *catalog.MemoryStore
	store   *progress.MemoryStore
	events  *progress.MemoryEventLogger
	svc     *progress.Service
}

func newFixture(t *testing.T, courses ...*catalog.Course) *fixture {
	t.Helper()
	f := &fixture{
		catalog: catalog.NewMemoryStore(courses...),
		store:   progress.NewMemoryStore(),
		events:  progress.NewMemoryEventLogger(),
	}
	svc, err := progress.NewService(progress.Config{
		Catalog: f.catalog,
		Store:   f.store,
		Events:  f.events,
		Now:     func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	f.svc = svc
	return f
}

func (f *fixture) enroll(t *testing.T, learnerID, courseID string) {
	t.Helper()
	if _, err := f.svc.Enroll(t.Context(), learnerID, courseID); err != nil {
		t.Fatalf("Enroll(%s, %s) error = %v", learnerID, courseID, err)
	}
}

// flakyStore fails Save with the configured errors before delegating.
type flakyStore struct {
	progress.Store
	saveErrs []error
	saves    int
}

func (s *flakyStore) Save(ctx context.Context, rec *progress.Record) error {
	s.saves++
	if len(s.saveErrs) > 0 {
		err := s.saveErrs[0]
		s.saveErrs = s.saveErrs[1:]
		return err
	}
	return s.Store.Save(ctx, rec)
}
