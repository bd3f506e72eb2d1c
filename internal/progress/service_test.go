package progress_test

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/p-n-ai/pai-learn/internal/catalog"
	"github.com/p-n-ai/pai-learn/internal/platform/validation"
	"github.com/p-n-ai/pai-learn/internal/progress"
)

func TestNewService_RequiresCatalog(t *testing.T) {
	if _, err := progress.NewService(progress.Config{}); err == nil {
		t.Fatal("NewService() should fail without a catalog")
	}
}

func TestNewService_Defaults(t *testing.T) {
	svc, err := progress.NewService(progress.Config{Catalog: catalog.NewMemoryStore()})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	if svc.PassThreshold() != 60 {
		t.Errorf("PassThreshold() = %d, want 60", svc.PassThreshold())
	}
}

func TestNewService_InvalidThreshold(t *testing.T) {
	_, err := progress.NewService(progress.Config{Catalog: catalog.NewMemoryStore(), PassThreshold: 150})
	if err == nil {
		t.Fatal("NewService() should reject a threshold above 100")
	}
}

func TestEnroll_SeedsRecord(t *testing.T) {
	f := newFixture(t, algebraCourse())

	got, err := f.svc.Enroll(t.Context(), "learner-1", "algebra")
	if err != nil {
		t.Fatalf("Enroll() error = %v", err)
	}
	if got.ID == "" {
		t.Error("record ID should be set")
	}
	if got.OverallProgress != 0 || got.Completed {
		t.Errorf("OverallProgress = %d, Completed = %v, want 0 false", got.OverallProgress, got.Completed)
	}
	if got.Summary.TotalChapters != 2 {
		t.Errorf("TotalChapters = %d, want 2", got.Summary.TotalChapters)
	}
	if len(got.Sections) != 1 || len(got.Sections[0].Units) != 1 || len(got.Sections[0].Units[0].Chapters) != 2 {
		t.Fatalf("record should mirror the course shape, got %+v", got.Sections)
	}
	for _, cp := range got.Sections[0].Units[0].Chapters {
		if cp.Completed || cp.Score != 0 {
			t.Errorf("chapter %s seeded as completed=%v score=%d", cp.ChapterID, cp.Completed, cp.Score)
		}
	}
	if len(f.events.OfType(progress.EventEnrolled)) != 1 {
		t.Error("expected one enrolled event")
	}
}

func TestEnroll_Errors(t *testing.T) {
	draft := algebraCourse()
	draft.ID = "draft"
	draft.Published = false
	f := newFixture(t, algebraCourse(), draft)
	f.enroll(t, "learner-1", "algebra")

	tests := []struct {
		name     string
		learner  string
		courseID string
		want     error
	}{
		{"missing-course", "learner-1", "nope", progress.ErrCourseNotFound},
		{"unpublished", "learner-1", "draft", progress.ErrCourseNotPublished},
		{"already-enrolled", "learner-1", "algebra", progress.ErrAlreadyEnrolled},
		{"no-identity", "", "algebra", progress.ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Enroll(t.Context(), tt.learner, tt.courseID)
			if !errors.Is(err, tt.want) {
				t.Errorf("Enroll() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestEnroll_DuplicateLeavesRecordUntouched(t *testing.T) {
	f := newFixture(t, algebraCourse())
	f.enroll(t, "learner-1", "algebra")
	if _, err := f.svc.MarkChapterComplete(t.Context(), "learner-1", "algebra", "ch-read"); err != nil {
		t.Fatalf("MarkChapterComplete() error = %v", err)
	}

	if _, err := f.svc.Enroll(t.Context(), "learner-1", "algebra"); !errors.Is(err, progress.ErrAlreadyEnrolled) {
		t.Fatalf("Enroll() error = %v, want ErrAlreadyEnrolled", err)
	}

	got, err := f.svc.GetProgress(t.Context(), "learner-1", "algebra")
	if err != nil {
		t.Fatalf("GetProgress() error = %v", err)
	}
	if got.OverallProgress != 50 {
		t.Errorf("OverallProgress = %d, want 50", got.OverallProgress)
	}
}

func TestTextThenQuizScenario(t *testing.T) {
	f := newFixture(t, algebraCourse())
	ctx := t.Context()
	f.enroll(t, "learner-1", "algebra")

	done, err := f.svc.MarkChapterComplete(ctx, "learner-1", "algebra", "ch-read")
	if err != nil {
		t.Fatalf("MarkChapterComplete() error = %v", err)
	}
	if done.OverallProgress != 50 {
		t.Errorf("after text chapter OverallProgress = %d, want 50", done.OverallProgress)
	}
	if done.Chapter.Score != 100 {
		t.Errorf("text chapter Score = %d, want 100", done.Chapter.Score)
	}

	fail, err := f.svc.SubmitQuiz(ctx, "learner-1", "algebra", "ch-quiz", map[string]string{"q1": "5", "q2": "Rome"})
	if err != nil {
		t.Fatalf("SubmitQuiz() error = %v", err)
	}
	if fail.Passed || fail.Score != 0 {
		t.Errorf("failing quiz Passed = %v, Score = %d", fail.Passed, fail.Score)
	}
	if fail.OverallProgress != 50 {
		t.Errorf("after failed quiz OverallProgress = %d, want 50", fail.OverallProgress)
	}

	pass, err := f.svc.SubmitQuiz(ctx, "learner-1", "algebra", "ch-quiz", map[string]string{"q1": " 4 ", "q2": "paris"})
	if err != nil {
		t.Fatalf("SubmitQuiz() error = %v", err)
	}
	if !pass.Passed || pass.Score != 100 {
		t.Errorf("passing quiz Passed = %v, Score = %d", pass.Passed, pass.Score)
	}
	if pass.OverallProgress != 100 || !pass.CourseCompleted {
		t.Errorf("OverallProgress = %d, CourseCompleted = %v, want 100 true", pass.OverallProgress, pass.CourseCompleted)
	}

	got, err := f.svc.GetProgress(ctx, "learner-1", "algebra")
	if err != nil {
		t.Fatalf("GetProgress() error = %v", err)
	}
	if !got.Completed || !got.Sections[0].Completed || !got.Sections[0].Units[0].Completed {
		t.Error("course, section and unit should all be completed")
	}

	if n := len(f.events.OfType(progress.EventChapterCompleted)); n != 2 {
		t.Errorf("chapter_completed events = %d, want 2", n)
	}
	if n := len(f.events.OfType(progress.EventCourseCompleted)); n != 1 {
		t.Errorf("course_completed events = %d, want 1", n)
	}
}

func TestSubmitQuiz_Idempotent(t *testing.T) {
	f := newFixture(t, algebraCourse())
	f.enroll(t, "learner-1", "algebra")
	answers := map[string]string{"q1": "4", "q2": "Rome"}

	first, err := f.svc.SubmitQuiz(t.Context(), "learner-1", "algebra", "ch-quiz", answers)
	if err != nil {
		t.Fatalf("SubmitQuiz() error = %v", err)
	}
	second, err := f.svc.SubmitQuiz(t.Context(), "learner-1", "algebra", "ch-quiz", answers)
	if err != nil {
		t.Fatalf("SubmitQuiz() error = %v", err)
	}

	if first.Score != second.Score || first.OverallProgress != second.OverallProgress {
		t.Errorf("repeat submission changed result: %+v vs %+v", first, second)
	}
	if len(second.Chapter.Questions) != 2 {
		t.Errorf("questionsProgress has %d entries, want 2", len(second.Chapter.Questions))
	}
	if first.Score != 50 || first.Passed {
		t.Errorf("Score = %d, Passed = %v, want 50 false", first.Score, first.Passed)
	}
}

func TestSubmitQuiz_FailureNeverUncompletes(t *testing.T) {
	f := newFixture(t, algebraCourse())
	f.enroll(t, "learner-1", "algebra")

	if _, err := f.svc.SubmitQuiz(t.Context(), "learner-1", "algebra", "ch-quiz", map[string]string{"q1": "4", "q2": "Paris"}); err != nil {
		t.Fatalf("SubmitQuiz() error = %v", err)
	}
	res, err := f.svc.SubmitQuiz(t.Context(), "learner-1", "algebra", "ch-quiz", map[string]string{})
	if err != nil {
		t.Fatalf("SubmitQuiz() error = %v", err)
	}

	if res.Passed {
		t.Error("empty attempt should not pass")
	}
	if !res.Chapter.Completed {
		t.Error("chapter should stay completed after a failing attempt")
	}
	if res.Chapter.Score != 0 {
		t.Errorf("Score = %d, want 0 (latest attempt)", res.Chapter.Score)
	}
	for _, r := range res.Results {
		if r.IsCorrect || r.UserAnswer != "" {
			t.Errorf("unanswered question %s graded as %+v", r.QuestionID, r)
		}
	}
}

func TestSubmitQuiz_CustomThreshold(t *testing.T) {
	svc, err := progress.NewService(progress.Config{
		Catalog:       catalog.NewMemoryStore(algebraCourse()),
		PassThreshold: 50,
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	if _, err := svc.Enroll(t.Context(), "learner-1", "algebra"); err != nil {
		t.Fatalf("Enroll() error = %v", err)
	}

	res, err := svc.SubmitQuiz(t.Context(), "learner-1", "algebra", "ch-quiz", map[string]string{"q1": "4"})
	if err != nil {
		t.Fatalf("SubmitQuiz() error = %v", err)
	}
	if !res.Passed || !res.Chapter.Completed {
		t.Errorf("score 50 should pass a threshold of 50, got %+v", res)
	}
}

func TestSubmitQuiz_Validation(t *testing.T) {
	f := newFixture(t, algebraCourse())
	f.enroll(t, "learner-1", "algebra")

	_, err := f.svc.SubmitQuiz(t.Context(), "learner-1", "algebra", "ch-quiz", map[string]string{"q1": "4", "q9": "x"})
	var ve *validation.Error
	if !errors.As(err, &ve) {
		t.Fatalf("SubmitQuiz() error = %v, want validation error", err)
	}
	if len(ve.Fields) != 1 || ve.Fields[0].Field != "answers.q9" {
		t.Errorf("Fields = %+v, want answers.q9", ve.Fields)
	}

	_, err = f.svc.SubmitQuiz(t.Context(), "learner-1", "algebra", "ch-read", map[string]string{})
	if !errors.Is(err, progress.ErrQuestionNotFound) {
		t.Errorf("SubmitQuiz() on chapter without questions error = %v, want ErrQuestionNotFound", err)
	}
}

func TestSubmitAnswer_CompletesWhenAllAnswered(t *testing.T) {
	f := newFixture(t, algebraCourse())
	ctx := t.Context()
	f.enroll(t, "learner-1", "algebra")

	first, err := f.svc.SubmitAnswer(ctx, "learner-1", "algebra", "ch-quiz", "q1", "4")
	if err != nil {
		t.Fatalf("SubmitAnswer() error = %v", err)
	}
	if !first.IsCorrect {
		t.Error("q1 answer should be correct")
	}
	if first.Chapter.Completed {
		t.Error("chapter should not complete with one of two questions answered")
	}

	// Re-answering the same question does not count twice.
	if _, err := f.svc.SubmitAnswer(ctx, "learner-1", "algebra", "ch-quiz", "q1", "4"); err != nil {
		t.Fatalf("SubmitAnswer() error = %v", err)
	}

	second, err := f.svc.SubmitAnswer(ctx, "learner-1", "algebra", "ch-quiz", "q2", "rome")
	if err != nil {
		t.Fatalf("SubmitAnswer() error = %v", err)
	}
	if second.IsCorrect {
		t.Error("q2 answer should be wrong")
	}
	if !second.Chapter.Completed {
		t.Error("chapter should complete once every question is answered")
	}
	if second.Chapter.Score != 50 {
		t.Errorf("Score = %d, want 50", second.Chapter.Score)
	}
	if len(second.Chapter.Questions) != 2 {
		t.Errorf("questionsProgress has %d entries, want 2", len(second.Chapter.Questions))
	}
	if second.Unit.Completed {
		t.Error("unit should not complete while the text chapter is pending")
	}
	if second.OverallProgress != 50 {
		t.Errorf("OverallProgress = %d, want 50", second.OverallProgress)
	}
}

func TestSubmitAnswer_Errors(t *testing.T) {
	f := newFixture(t, algebraCourse())
	f.enroll(t, "learner-1", "algebra")

	tests := []struct {
		name      string
		learner   string
		courseID  string
		chapterID string
		question  string
		answer    string
		want      error
	}{
		{"unknown-course", "learner-1", "nope", "ch-quiz", "q1", "4", progress.ErrCourseNotFound},
		{"not-enrolled-first", "learner-2", "algebra", "missing", "q1", "4", progress.ErrNotEnrolled},
		{"unknown-chapter", "learner-1", "algebra", "missing", "q1", "4", progress.ErrChapterNotFound},
		{"unknown-chapter-by-id", "learner-1", "", "missing", "q1", "4", progress.ErrChapterNotFound},
		{"unknown-question", "learner-1", "algebra", "ch-quiz", "q9", "4", progress.ErrQuestionNotFound},
		{"not-found-family", "learner-1", "algebra", "ch-quiz", "q9", "4", progress.ErrNotFound},
		{"no-identity", "", "algebra", "ch-quiz", "q1", "4", progress.ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SubmitAnswer(t.Context(), tt.learner, tt.courseID, tt.chapterID, tt.question, tt.answer)
			if !errors.Is(err, tt.want) {
				t.Errorf("SubmitAnswer() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSubmitAnswer_Validation(t *testing.T) {
	f := newFixture(t, algebraCourse())
	f.enroll(t, "learner-1", "algebra")

	for _, answer := range []string{"", "   "} {
		_, err := f.svc.SubmitAnswer(t.Context(), "learner-1", "algebra", "ch-quiz", "q1", answer)
		if !validation.IsValidation(err) {
			t.Errorf("SubmitAnswer(%q) error = %v, want validation error", answer, err)
		}
	}
}

func TestSubmitAnswer_ByChapterIDOnly(t *testing.T) {
	f := newFixture(t, algebraCourse(), gridCourse("grid"))
	f.enroll(t, "learner-1", "algebra")

	res, err := f.svc.SubmitAnswer(t.Context(), "learner-1", "", "ch-quiz", "q2", "Paris")
	if err != nil {
		t.Fatalf("SubmitAnswer() error = %v", err)
	}
	if res.CourseID != "algebra" {
		t.Errorf("CourseID = %q, want algebra", res.CourseID)
	}
	if !res.IsCorrect {
		t.Error("answer should be correct")
	}
}

func TestChapterIDOnly_SharedAcrossCourses(t *testing.T) {
	geometry := algebraCourse()
	geometry.ID = "geometry"
	f := newFixture(t, algebraCourse(), geometry)
	f.enroll(t, "learner-1", "geometry")

	// Both courses contain ch-read; only the enrolled one may be picked.
	for i := 0; i < 20; i++ {
		res, err := f.svc.MarkChapterComplete(t.Context(), "learner-1", "", "ch-read")
		if err != nil {
			t.Fatalf("MarkChapterComplete() attempt %d error = %v", i, err)
		}
		if res.CourseID != "geometry" {
			t.Fatalf("CourseID = %q, want geometry", res.CourseID)
		}
	}

	_, err := f.svc.MarkChapterComplete(t.Context(), "learner-2", "", "ch-read")
	if !errors.Is(err, progress.ErrNotEnrolled) {
		t.Errorf("unenrolled learner error = %v, want ErrNotEnrolled", err)
	}

	f.enroll(t, "learner-1", "algebra")
	_, err = f.svc.SubmitQuiz(t.Context(), "learner-1", "", "ch-quiz", map[string]string{"q1": "4"})
	var ve *validation.Error
	if !errors.As(err, &ve) {
		t.Fatalf("ambiguous chapter error = %v, want validation error", err)
	}
	if len(ve.Fields) != 1 || ve.Fields[0].Field != "courseId" {
		t.Errorf("Fields = %+v, want courseId", ve.Fields)
	}

	res, err := f.svc.SubmitQuiz(t.Context(), "learner-1", "algebra", "ch-quiz", map[string]string{"q1": "4", "q2": "Paris"})
	if err != nil {
		t.Fatalf("SubmitQuiz() with course error = %v", err)
	}
	if res.CourseID != "algebra" {
		t.Errorf("CourseID = %q, want algebra", res.CourseID)
	}
}

func TestAnswerLength_CountsCharacters(t *testing.T) {
	f := newFixture(t, algebraCourse())
	f.enroll(t, "learner-1", "algebra")

	// 4096 two-byte characters fit; one more does not.
	fits := strings.Repeat("é", 4096)
	if _, err := f.svc.SubmitAnswer(t.Context(), "learner-1", "algebra", "ch-quiz", "q1", fits); err != nil {
		t.Errorf("SubmitAnswer() with 4096 characters error = %v", err)
	}
	_, err := f.svc.SubmitAnswer(t.Context(), "learner-1", "algebra", "ch-quiz", "q1", fits+"é")
	if !validation.IsValidation(err) {
		t.Errorf("SubmitAnswer() with 4097 characters error = %v, want validation error", err)
	}

	long := fits + "x"
	_, err = f.svc.SubmitQuiz(t.Context(), "learner-1", "algebra", "ch-quiz", map[string]string{
		"q2": long,
		"q9": "x",
		"q1": long,
	})
	var ve *validation.Error
	if !errors.As(err, &ve) {
		t.Fatalf("SubmitQuiz() error = %v, want validation error", err)
	}
	var got []string
	for _, fe := range ve.Fields {
		got = append(got, fe.Field)
	}
	want := []string{"answers.q1", "answers.q2", "answers.q9"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Fields = %v, want %v", got, want)
	}
}

func TestSubmitAnswer_SparseRecordCreatesChain(t *testing.T) {
	f := newFixture(t, algebraCourse())
	// A record without any section entries, as older records were stored.
	if err := f.store.Create(t.Context(), &progress.Record{ID: "r1", LearnerID: "learner-1", CourseID: "algebra"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	res, err := f.svc.SubmitAnswer(t.Context(), "learner-1", "algebra", "ch-quiz", "q1", "4")
	if err != nil {
		t.Fatalf("SubmitAnswer() error = %v", err)
	}
	if res.Section == nil || res.Section.SectionID != "s1" {
		t.Fatalf("Section = %+v, want s1", res.Section)
	}
	if res.Unit == nil || res.Unit.UnitID != "u1" {
		t.Fatalf("Unit = %+v, want u1", res.Unit)
	}

	got, err := f.store.Get(t.Context(), "learner-1", "algebra")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got.Sections) != 1 || len(got.Sections[0].Units[0].Chapters) != 1 {
		t.Errorf("stored tree = %+v, want one lazily created chain", got.Sections)
	}
}

func TestMarkChapterComplete_RejectsQuiz(t *testing.T) {
	f := newFixture(t, algebraCourse())
	f.enroll(t, "learner-1", "algebra")

	_, err := f.svc.MarkChapterComplete(t.Context(), "learner-1", "algebra", "ch-quiz")
	if !validation.IsValidation(err) {
		t.Fatalf("MarkChapterComplete() error = %v, want validation error", err)
	}
}

func TestMarkChapterComplete_Idempotent(t *testing.T) {
	f := newFixture(t, algebraCourse())
	f.enroll(t, "learner-1", "algebra")

	for range 2 {
		res, err := f.svc.MarkChapterComplete(t.Context(), "learner-1", "", "ch-read")
		if err != nil {
			t.Fatalf("MarkChapterComplete() error = %v", err)
		}
		if res.OverallProgress != 50 {
			t.Errorf("OverallProgress = %d, want 50", res.OverallProgress)
		}
	}
	if n := len(f.events.OfType(progress.EventChapterCompleted)); n != 1 {
		t.Errorf("chapter_completed events = %d, want 1", n)
	}
}

func TestConcurrentAnswersAreAllKept(t *testing.T) {
	f := newFixture(t, algebraCourse())
	f.enroll(t, "learner-1", "algebra")

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, q := range []struct{ id, answer string }{{"q1", "4"}, {"q2", "Paris"}} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.SubmitAnswer(t.Context(), "learner-1", "algebra", "ch-quiz", q.id, q.answer)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("SubmitAnswer() error = %v", err)
		}
	}

	got, err := f.svc.GetProgress(t.Context(), "learner-1", "algebra")
	if err != nil {
		t.Fatalf("GetProgress() error = %v", err)
	}
	quiz := got.Sections[0].Units[0].Chapters[1]
	if len(quiz.Questions) != 2 {
		t.Fatalf("questionsProgress has %d entries, want 2", len(quiz.Questions))
	}
	if !quiz.Completed || quiz.Score != 100 {
		t.Errorf("quiz Completed = %v, Score = %d, want true 100", quiz.Completed, quiz.Score)
	}
}

func TestMutate_RetriesOnConflict(t *testing.T) {
	store := &flakyStore{Store: progress.NewMemoryStore()}
	svc, err := progress.NewService(progress.Config{
		Catalog: catalog.NewMemoryStore(algebraCourse()),
		Store:   store,
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	if _, err := svc.Enroll(t.Context(), "learner-1", "algebra"); err != nil {
		t.Fatalf("Enroll() error = %v", err)
	}

	store.saveErrs = []error{progress.ErrConflict}
	res, err := svc.MarkChapterComplete(t.Context(), "learner-1", "algebra", "ch-read")
	if err != nil {
		t.Fatalf("MarkChapterComplete() error = %v", err)
	}
	if res.OverallProgress != 50 {
		t.Errorf("OverallProgress = %d, want 50", res.OverallProgress)
	}
	if store.saves != 2 {
		t.Errorf("saves = %d, want 2", store.saves)
	}
}

func TestMutate_GivesUpAfterRetries(t *testing.T) {
	store := &flakyStore{Store: progress.NewMemoryStore()}
	svc, err := progress.NewService(progress.Config{
		Catalog:    catalog.NewMemoryStore(algebraCourse()),
		Store:      store,
		MaxRetries: 2,
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	if _, err := svc.Enroll(t.Context(), "learner-1", "algebra"); err != nil {
		t.Fatalf("Enroll() error = %v", err)
	}

	store.saveErrs = []error{progress.ErrConflict, progress.ErrConflict, progress.ErrConflict}
	_, err = svc.MarkChapterComplete(t.Context(), "learner-1", "algebra", "ch-read")
	if !errors.Is(err, progress.ErrConflict) {
		t.Fatalf("MarkChapterComplete() error = %v, want ErrConflict", err)
	}
	if store.saves != 3 {
		t.Errorf("saves = %d, want 3", store.saves)
	}
}

func TestMutate_FailedSaveLeavesNoPartialState(t *testing.T) {
	store := &flakyStore{Store: progress.NewMemoryStore()}
	svc, err := progress.NewService(progress.Config{
		Catalog: catalog.NewMemoryStore(algebraCourse()),
		Store:   store,
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	if _, err := svc.Enroll(t.Context(), "learner-1", "algebra"); err != nil {
		t.Fatalf("Enroll() error = %v", err)
	}

	store.saveErrs = []error{errors.New("disk full")}
	if _, err := svc.SubmitQuiz(t.Context(), "learner-1", "algebra", "ch-quiz", map[string]string{"q1": "4", "q2": "Paris"}); err == nil {
		t.Fatal("SubmitQuiz() should fail when the save fails")
	}

	got, err := svc.GetProgress(t.Context(), "learner-1", "algebra")
	if err != nil {
		t.Fatalf("GetProgress() error = %v", err)
	}
	quiz := got.Sections[0].Units[0].Chapters[1]
	if quiz.Completed || len(quiz.Questions) != 0 {
		t.Errorf("failed save leaked state: %+v", quiz)
	}
	if store.saves != 1 {
		t.Errorf("saves = %d, want 1 (non-conflict errors are not retried)", store.saves)
	}
}

func TestGetProgress_RecomputesWithoutPersisting(t *testing.T) {
	f := newFixture(t, algebraCourse())
	ctx := t.Context()
	f.enroll(t, "learner-1", "algebra")
	if _, err := f.svc.MarkChapterComplete(ctx, "learner-1", "algebra", "ch-read"); err != nil {
		t.Fatalf("MarkChapterComplete() error = %v", err)
	}

	// A chapter is added after the learner's last write.
	course := algebraCourse()
	course.Sections[0].Units[0].Chapters = append(course.Sections[0].Units[0].Chapters,
		catalog.Chapter{ID: "ch-video", ContentType: catalog.ContentVideo, Order: 3})
	if err := f.catalog.PutCourse(ctx, course); err != nil {
		t.Fatalf("PutCourse() error = %v", err)
	}

	got, err := f.svc.GetProgress(ctx, "learner-1", "algebra")
	if err != nil {
		t.Fatalf("GetProgress() error = %v", err)
	}
	if got.OverallProgress != 33 {
		t.Errorf("OverallProgress = %d, want 33", got.OverallProgress)
	}

	stored, err := f.store.Get(ctx, "learner-1", "algebra")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stored.OverallProgress != 50 {
		t.Errorf("stored OverallProgress = %d, want 50 (reads do not write)", stored.OverallProgress)
	}
}

func TestGetProgress_Errors(t *testing.T) {
	f := newFixture(t, algebraCourse())

	if _, err := f.svc.GetProgress(t.Context(), "learner-1", "algebra"); !errors.Is(err, progress.ErrNotEnrolled) {
		t.Errorf("GetProgress() error = %v, want ErrNotEnrolled", err)
	}
	if _, err := f.svc.GetProgress(t.Context(), "learner-1", "nope"); !errors.Is(err, progress.ErrCourseNotFound) {
		t.Errorf("GetProgress() error = %v, want ErrCourseNotFound", err)
	}
}

func TestGetAllProgress_SkipsMissingCourses(t *testing.T) {
	f := newFixture(t, algebraCourse(), gridCourse("grid"))
	f.enroll(t, "learner-1", "algebra")
	f.enroll(t, "learner-1", "grid")
	f.enroll(t, "learner-2", "grid")

	if err := f.catalog.DeleteCourse(t.Context(), "grid"); err != nil {
		t.Fatalf("DeleteCourse() error = %v", err)
	}

	got, err := f.svc.GetAllProgress(t.Context(), "learner-1")
	if err != nil {
		t.Fatalf("GetAllProgress() error = %v", err)
	}
	if len(got) != 1 || got[0].CourseID != "algebra" {
		t.Errorf("GetAllProgress() = %+v, want only algebra", got)
	}
}

func TestEnrollmentStatus(t *testing.T) {
	f := newFixture(t, algebraCourse())

	status, err := f.svc.EnrollmentStatus(t.Context(), "learner-1", "algebra")
	if err != nil {
		t.Fatalf("EnrollmentStatus() error = %v", err)
	}
	if status.Enrolled {
		t.Error("learner should not be enrolled yet")
	}

	f.enroll(t, "learner-1", "algebra")
	status, err = f.svc.EnrollmentStatus(t.Context(), "learner-1", "algebra")
	if err != nil {
		t.Fatalf("EnrollmentStatus() error = %v", err)
	}
	if !status.Enrolled || status.EnrolledAt == nil || status.Summary == nil {
		t.Errorf("EnrollmentStatus() = %+v, want enrolled with details", status)
	}

	if _, err := f.svc.EnrollmentStatus(t.Context(), "learner-1", "nope"); !errors.Is(err, progress.ErrCourseNotFound) {
		t.Errorf("EnrollmentStatus() error = %v, want ErrCourseNotFound", err)
	}
}

func TestUpdateCurrentChapter(t *testing.T) {
	f := newFixture(t, algebraCourse())
	f.enroll(t, "learner-1", "algebra")

	got, err := f.svc.UpdateCurrentChapter(t.Context(), "learner-1", "algebra", "ch-quiz")
	if err != nil {
		t.Fatalf("UpdateCurrentChapter() error = %v", err)
	}
	if got.CurrentChapterID != "ch-quiz" {
		t.Errorf("CurrentChapterID = %q, want ch-quiz", got.CurrentChapterID)
	}
	want := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if !got.LastAccessedAt.Equal(want) {
		t.Errorf("LastAccessedAt = %v, want %v", got.LastAccessedAt, want)
	}

	if _, err := f.svc.UpdateCurrentChapter(t.Context(), "learner-1", "algebra", "missing"); !errors.Is(err, progress.ErrChapterNotFound) {
		t.Errorf("UpdateCurrentChapter() error = %v, want ErrChapterNotFound", err)
	}
}

func TestUnenrollAndDeleteCourse(t *testing.T) {
	f := newFixture(t, algebraCourse())
	ctx := t.Context()
	f.enroll(t, "learner-1", "algebra")
	f.enroll(t, "learner-2", "algebra")
	f.enroll(t, "learner-3", "algebra")

	if err := f.svc.Unenroll(ctx, "learner-1", "algebra"); err != nil {
		t.Fatalf("Unenroll() error = %v", err)
	}
	if err := f.svc.Unenroll(ctx, "learner-1", "algebra"); !errors.Is(err, progress.ErrNotEnrolled) {
		t.Errorf("second Unenroll() error = %v, want ErrNotEnrolled", err)
	}

	n, err := f.svc.DeleteCourse(ctx, "algebra")
	if err != nil {
		t.Fatalf("DeleteCourse() error = %v", err)
	}
	if n != 2 {
		t.Errorf("DeleteCourse() removed %d records, want 2", n)
	}
	if _, err := f.store.Get(ctx, "learner-2", "algebra"); !errors.Is(err, progress.ErrNotEnrolled) {
		t.Errorf("Get() error = %v, want ErrNotEnrolled", err)
	}
}
