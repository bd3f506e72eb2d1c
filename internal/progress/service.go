package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/pai-learn/internal/catalog"
	"github.com/p-n-ai/pai-learn/internal/platform/validation"
)

const (
	defaultPassThreshold = 60
	defaultMaxRetries    = 3
)

// Catalog is the part of the course catalog the service reads.
type Catalog interface {
	GetCourse(ctx context.Context, id string) (*catalog.Course, error)
	FindCourseByChapter(ctx context.Context, chapterID string) (string, error)
}

// Config holds dependencies for the progress service.
type Config struct {
	Catalog       Catalog
	Store         Store       // default: in-memory
	Locker        Locker      // default: in-process keyed mutex
	Events        EventLogger // default: discard
	PassThreshold int         // minimum quiz score that completes a chapter (default 60)
	MaxRetries    int         // attempts after a version conflict (default 3)
	Now           func() time.Time
}

// Service records learner progress and keeps every derived field in step
// with the catalog.
type Service struct {
	catalog       Catalog
	store         Store
	locker        Locker
	events        EventLogger
	passThreshold int
	maxRetries    int
	now           func() time.Time
}

// NewService creates a progress service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}
	locker := cfg.Locker
	if locker == nil {
		locker = NewKeyedMutex()
	}
	events := cfg.Events
	if events == nil {
		events = NopEventLogger{}
	}
	threshold := cfg.PassThreshold
	if threshold == 0 {
		threshold = defaultPassThreshold
	}
	if threshold < 0 || threshold > 100 {
		return nil, fmt.Errorf("pass threshold %d out of range 0-100", threshold)
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		catalog:       cfg.Catalog,
		store:         store,
		locker:        locker,
		events:        events,
		passThreshold: threshold,
		maxRetries:    retries,
		now:           now,
	}, nil
}

// PassThreshold returns the quiz score needed to complete a chapter.
func (s *Service) PassThreshold() int {
	return s.passThreshold
}

// CourseProgress is a record aggregated against the current catalog.
type CourseProgress struct {
	*Record
	Summary Summary `json:"summary"`
}

// EnrollmentStatus tells whether a learner is enrolled in a course.
type EnrollmentStatus struct {
	CourseID         string     `json:"courseId"`
	Enrolled         bool       `json:"enrolled"`
	OverallProgress  int        `json:"overallProgress"`
	Completed        bool       `json:"completed"`
	CurrentChapterID string     `json:"currentChapterId,omitempty"`
	EnrolledAt       *time.Time `json:"enrolledAt,omitempty"`
	LastAccessedAt   *time.Time `json:"lastAccessedAt,omitempty"`
	Summary          *Summary   `json:"summary,omitempty"`
}

// Enroll creates the learner's record for a published course. The record
// mirrors the course shape with nothing completed.
func (s *Service) Enroll(ctx context.Context, learnerID, courseID string) (*CourseProgress, error) {
	if learnerID == "" {
		return nil, ErrUnauthorized
	}
	course, err := s.course(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !course.Published {
		return nil, ErrCourseNotPublished
	}

	now := s.now()
	rec := &Record{
		ID:             uuid.NewString(),
		LearnerID:      learnerID,
		CourseID:       courseID,
		EnrolledAt:     now,
		LastAccessedAt: now,
		Sections:       seed(course),
	}
	sum := Aggregate(course, rec)
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, err
	}

	slog.Info("learner enrolled", "learner_id", learnerID, "course_id", courseID, "chapters", sum.TotalChapters)
	s.emit(Event{LearnerID: learnerID, CourseID: courseID, EventType: EventEnrolled, Data: map[string]any{
		"record_id": rec.ID,
		"chapters":  sum.TotalChapters,
	}})
	return &CourseProgress{Record: rec, Summary: sum}, nil
}

// Unenroll deletes the learner's record for a course.
func (s *Service) Unenroll(ctx context.Context, learnerID, courseID string) error {
	if learnerID == "" {
		return ErrUnauthorized
	}
	unlock, err := s.locker.Lock(ctx, lockKey(learnerID, courseID))
	if err != nil {
		return fmt.Errorf("lock progress: %w", err)
	}
	defer unlock()

	if err := s.store.Delete(ctx, learnerID, courseID); err != nil {
		return err
	}
	slog.Info("learner unenrolled", "learner_id", learnerID, "course_id", courseID)
	s.emit(Event{LearnerID: learnerID, CourseID: courseID, EventType: EventUnenrolled})
	return nil
}

// DeleteCourse removes every record of a course. It is called after the
// course itself was deleted from the catalog.
func (s *Service) DeleteCourse(ctx context.Context, courseID string) (int, error) {
	n, err := s.store.DeleteByCourse(ctx, courseID)
	if err != nil {
		return 0, fmt.Errorf("delete progress for course %s: %w", courseID, err)
	}
	slog.Info("course progress deleted", "course_id", courseID, "records", n)
	return n, nil
}

// GetProgress returns the learner's record aggregated against the current
// catalog. The recomputed values are not written back.
func (s *Service) GetProgress(ctx context.Context, learnerID, courseID string) (*CourseProgress, error) {
	if learnerID == "" {
		return nil, ErrUnauthorized
	}
	course, err := s.course(ctx, courseID)
	if err != nil {
		return nil, err
	}
	rec, err := s.store.Get(ctx, learnerID, courseID)
	if err != nil {
		return nil, err
	}
	sum := Aggregate(course, rec)
	return &CourseProgress{Record: rec, Summary: sum}, nil
}

// GetAllProgress returns every enrollment of the learner. Records whose
// course has left the catalog are skipped.
func (s *Service) GetAllProgress(ctx context.Context, learnerID string) ([]*CourseProgress, error) {
	if learnerID == "" {
		return nil, ErrUnauthorized
	}
	recs, err := s.store.ListByLearner(ctx, learnerID)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	out := make([]*CourseProgress, 0, len(recs))
	for _, rec := range recs {
		course, err := s.course(ctx, rec.CourseID)
		if err != nil {
			if errors.Is(err, ErrCourseNotFound) {
				slog.Warn("skipping progress for missing course",
					"learner_id", learnerID,
					"course_id", rec.CourseID,
				)
				continue
			}
			return nil, err
		}
		sum := Aggregate(course, rec)
		out = append(out, &CourseProgress{Record: rec, Summary: sum})
	}
	return out, nil
}

// EnrollmentStatus reports whether the learner is enrolled and, if so, the
// live progress.
func (s *Service) EnrollmentStatus(ctx context.Context, learnerID, courseID string) (*EnrollmentStatus, error) {
	if learnerID == "" {
		return nil, ErrUnauthorized
	}
	course, err := s.course(ctx, courseID)
	if err != nil {
		return nil, err
	}
	rec, err := s.store.Get(ctx, learnerID, courseID)
	if errors.Is(err, ErrNotEnrolled) {
		return &EnrollmentStatus{CourseID: courseID}, nil
	}
	if err != nil {
		return nil, err
	}
	sum := Aggregate(course, rec)
	return &EnrollmentStatus{
		CourseID:         courseID,
		Enrolled:         true,
		OverallProgress:  rec.OverallProgress,
		Completed:        rec.Completed,
		CurrentChapterID: rec.CurrentChapterID,
		EnrolledAt:       &rec.EnrolledAt,
		LastAccessedAt:   &rec.LastAccessedAt,
		Summary:          &sum,
	}, nil
}

// UpdateCurrentChapter moves the learner's bookmark.
func (s *Service) UpdateCurrentChapter(ctx context.Context, learnerID, courseID, chapterID string) (*CourseProgress, error) {
	var out *CourseProgress
	err := s.mutate(ctx, learnerID, courseID, true, func(m *mutation) error {
		if _, ok := m.course.LocateChapter(chapterID); !ok {
			return fmt.Errorf("%w: %s", ErrChapterNotFound, chapterID)
		}
		m.rec.CurrentChapterID = chapterID
		m.after = func(sum Summary) {
			out = &CourseProgress{Record: m.rec, Summary: sum}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// mutation is the state handed to one attempt of a write.
type mutation struct {
	course *catalog.Course
	rec    *Record
	// wasCompleted is the course completion flag before the attempt.
	wasCompleted bool
	// after runs once the record is saved, with the final aggregation.
	after func(Summary)
}

// mutate loads the record, applies fn, re-aggregates and saves. It holds
// the (learner, course) lock throughout and retries the whole attempt from
// fresh state when the store reports a version conflict. Errors returned
// by fn abort without writing anything.
func (s *Service) mutate(ctx context.Context, learnerID, courseID string, touch bool, fn func(*mutation) error) error {
	if learnerID == "" {
		return ErrUnauthorized
	}
	unlock, err := s.locker.Lock(ctx, lockKey(learnerID, courseID))
	if err != nil {
		return fmt.Errorf("lock progress: %w", err)
	}
	defer unlock()

	for attempt := 1; ; attempt++ {
		course, err := s.course(ctx, courseID)
		if err != nil {
			return err
		}
		rec, err := s.store.Get(ctx, learnerID, courseID)
		if err != nil {
			return err
		}

		m := &mutation{course: course, rec: rec, wasCompleted: rec.Completed}
		if err := fn(m); err != nil {
			return err
		}
		sum := Aggregate(course, rec)
		if touch {
			rec.LastAccessedAt = s.now()
		}

		err = s.store.Save(ctx, rec)
		if errors.Is(err, ErrConflict) && attempt <= s.maxRetries {
			slog.Warn("progress save conflict, retrying",
				"learner_id", learnerID,
				"course_id", courseID,
				"attempt", attempt,
			)
			continue
		}
		if err != nil {
			return err
		}

		if m.after != nil {
			m.after(sum)
		}
		if !m.wasCompleted && rec.Completed {
			slog.Info("course completed", "learner_id", learnerID, "course_id", courseID)
			s.emit(Event{LearnerID: learnerID, CourseID: courseID, EventType: EventCourseCompleted})
		}
		return nil
	}
}

// resolveCourse returns courseID, or finds the enrolled course containing
// chapterID when courseID is empty. Chapter ids are only unique within a
// course, so a chapter present in several of the learner's courses must be
// addressed together with its course.
func (s *Service) resolveCourse(ctx context.Context, learnerID, courseID, chapterID string) (string, error) {
	if courseID != "" {
		return courseID, nil
	}
	if learnerID == "" {
		return "", ErrUnauthorized
	}
	recs, err := s.store.ListByLearner(ctx, learnerID)
	if err != nil {
		return "", fmt.Errorf("list enrollments: %w", err)
	}

	var matches []string
	for _, rec := range recs {
		course, err := s.course(ctx, rec.CourseID)
		if errors.Is(err, ErrCourseNotFound) {
			continue
		}
		if err != nil {
			return "", err
		}
		if _, ok := course.LocateChapter(chapterID); ok {
			matches = append(matches, course.ID)
		}
	}

	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		if _, err := s.catalog.FindCourseByChapter(ctx, chapterID); err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return "", fmt.Errorf("%w: %s", ErrChapterNotFound, chapterID)
			}
			return "", fmt.Errorf("find course for chapter %s: %w", chapterID, err)
		}
		return "", ErrNotEnrolled
	default:
		sort.Strings(matches)
		return "", validation.New(
			fmt.Errorf("chapter %s is part of several enrolled courses (%s)", chapterID, strings.Join(matches, ", ")),
			validation.FieldError{Field: "courseId", Error: "courseId is required when the chapter id is ambiguous"},
		)
	}
}

func (s *Service) course(ctx context.Context, courseID string) (*catalog.Course, error) {
	course, err := s.catalog.GetCourse(ctx, courseID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrCourseNotFound, courseID)
		}
		return nil, fmt.Errorf("get course %s: %w", courseID, err)
	}
	return course, nil
}

// emit logs an event. Event failures never fail the operation.
func (s *Service) emit(e Event) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	if err := s.events.LogEvent(e); err != nil {
		slog.Warn("failed to log event", "type", e.EventType, "learner_id", e.LearnerID, "error", err)
	}
}
