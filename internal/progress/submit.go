package progress

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/p-n-ai/pai-learn/internal/catalog"
	"github.com/p-n-ai/pai-learn/internal/platform/validation"
)

const maxAnswerLen = 4096

var answerTooLong = fmt.Sprintf("answer must be at most %d characters", maxAnswerLen)

// AnswerResult is returned by SubmitAnswer.
type AnswerResult struct {
	CourseID        string           `json:"courseId"`
	IsCorrect       bool             `json:"isCorrect"`
	Chapter         *ChapterProgress `json:"chapterProgress"`
	Unit            *UnitProgress    `json:"unitProgress"`
	Section         *SectionProgress `json:"sectionProgress"`
	OverallProgress int              `json:"overallProgress"`
	CourseCompleted bool             `json:"courseCompleted"`
}

// QuestionResult is the grading of one quiz question.
type QuestionResult struct {
	QuestionID    string `json:"questionId"`
	UserAnswer    string `json:"userAnswer"`
	IsCorrect     bool   `json:"isCorrect"`
	CorrectAnswer string `json:"correctAnswer"`
}

// QuizResult is returned by SubmitQuiz.
type QuizResult struct {
	CourseID        string           `json:"courseId"`
	Score           int              `json:"score"`
	Passed          bool             `json:"passed"`
	Results         []QuestionResult `json:"results"`
	TotalQuestions  int              `json:"totalQuestions"`
	CorrectAnswers  int              `json:"correctAnswers"`
	Chapter         *ChapterProgress `json:"chapterProgress"`
	OverallProgress int              `json:"overallProgress"`
	CourseCompleted bool             `json:"courseCompleted"`
}

// CompletionResult is returned by MarkChapterComplete.
type CompletionResult struct {
	CourseID        string           `json:"courseId"`
	Completed       bool             `json:"completed"`
	Chapter         *ChapterProgress `json:"chapterProgress"`
	OverallProgress int              `json:"overallProgress"`
	CourseCompleted bool             `json:"courseCompleted"`
}

// SubmitAnswer records the answer to a single question. The chapter is
// completed once every question in it has an answer; its score is the
// share of correct answers at that point. An empty courseID is resolved
// from the chapter.
func (s *Service) SubmitAnswer(ctx context.Context, learnerID, courseID, chapterID, questionID, answer string) (*AnswerResult, error) {
	if err := validateAnswer(chapterID, questionID, answer); err != nil {
		return nil, err
	}
	courseID, err := s.resolveCourse(ctx, learnerID, courseID, chapterID)
	if err != nil {
		return nil, err
	}

	var out *AnswerResult
	err = s.mutate(ctx, learnerID, courseID, true, func(m *mutation) error {
		ref, err := locate(m.course, chapterID)
		if err != nil {
			return err
		}
		q, ok := ref.Chapter.Question(questionID)
		if !ok {
			return fmt.Errorf("%w: %s", ErrQuestionNotFound, questionID)
		}

		now := s.now()
		sp, up, cp := newIndex(m.rec).ensure(ref)
		correct := MatchAnswer(answer, q.CorrectAnswer)
		cp.upsertQuestion(QuestionProgress{
			QuestionID:  questionID,
			UserAnswer:  answer,
			IsCorrect:   correct,
			AttemptedAt: now,
		})
		cp.LastAttemptedAt = now

		answered, right := tally(ref.Chapter, cp)
		total := len(ref.Chapter.Questions)
		wasCompleted := cp.Completed
		if answered == total {
			cp.Completed = true
			cp.Score = Percent(right, total)
		}

		m.after = func(Summary) {
			out = &AnswerResult{
				CourseID:        courseID,
				IsCorrect:       correct,
				Chapter:         cp,
				Unit:            up,
				Section:         sp,
				OverallProgress: m.rec.OverallProgress,
				CourseCompleted: m.rec.Completed,
			}
			s.emit(Event{LearnerID: learnerID, CourseID: courseID, EventType: EventAnswerSubmitted, Data: map[string]any{
				"chapter_id":  chapterID,
				"question_id": questionID,
				"is_correct":  correct,
			}})
			if !wasCompleted && cp.Completed {
				s.chapterCompleted(learnerID, courseID, cp)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SubmitQuiz grades a whole quiz attempt. Every question of the chapter is
// graded; missing answers count as wrong. The chapter is completed when the
// score reaches the pass threshold and stays completed after later failing
// attempts. An empty courseID is resolved from the chapter.
func (s *Service) SubmitQuiz(ctx context.Context, learnerID, courseID, chapterID string, answers map[string]string) (*QuizResult, error) {
	if chapterID == "" {
		return nil, validation.Newf("chapter id is required", validation.FieldError{Field: "chapterId", Error: "chapterId is a required field"})
	}
	courseID, err := s.resolveCourse(ctx, learnerID, courseID, chapterID)
	if err != nil {
		return nil, err
	}

	var out *QuizResult
	err = s.mutate(ctx, learnerID, courseID, true, func(m *mutation) error {
		ref, err := locate(m.course, chapterID)
		if err != nil {
			return err
		}
		questions := ref.Chapter.Questions
		if len(questions) == 0 {
			return fmt.Errorf("%w: chapter %s has no questions", ErrQuestionNotFound, chapterID)
		}
		if err := checkAnswerIDs(ref.Chapter, answers); err != nil {
			return err
		}

		now := s.now()
		_, _, cp := newIndex(m.rec).ensure(ref)
		results := make([]QuestionResult, 0, len(questions))
		graded := make([]QuestionProgress, 0, len(questions))
		right := 0
		for _, q := range questions {
			given := answers[q.ID]
			correct := MatchAnswer(given, q.CorrectAnswer)
			if correct {
				right++
			}
			results = append(results, QuestionResult{
				QuestionID:    q.ID,
				UserAnswer:    given,
				IsCorrect:     correct,
				CorrectAnswer: q.CorrectAnswer,
			})
			graded = append(graded, QuestionProgress{
				QuestionID:  q.ID,
				UserAnswer:  given,
				IsCorrect:   correct,
				AttemptedAt: now,
			})
		}

		score := Percent(right, len(questions))
		passed := score >= s.passThreshold
		wasCompleted := cp.Completed
		cp.Questions = graded
		cp.Score = score
		cp.LastAttemptedAt = now
		if passed {
			cp.Completed = true
		}

		m.after = func(Summary) {
			out = &QuizResult{
				CourseID:        courseID,
				Score:           score,
				Passed:          passed,
				Results:         results,
				TotalQuestions:  len(questions),
				CorrectAnswers:  right,
				Chapter:         cp,
				OverallProgress: m.rec.OverallProgress,
				CourseCompleted: m.rec.Completed,
			}
			s.emit(Event{LearnerID: learnerID, CourseID: courseID, EventType: EventQuizSubmitted, Data: map[string]any{
				"chapter_id": chapterID,
				"score":      score,
				"passed":     passed,
			}})
			if !wasCompleted && cp.Completed {
				s.chapterCompleted(learnerID, courseID, cp)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MarkChapterComplete completes a text, video or audio chapter with full
// score. Quiz chapters are completed by SubmitQuiz instead. An empty
// courseID is resolved from the chapter.
func (s *Service) MarkChapterComplete(ctx context.Context, learnerID, courseID, chapterID string) (*CompletionResult, error) {
	if chapterID == "" {
		return nil, validation.Newf("chapter id is required", validation.FieldError{Field: "chapterId", Error: "chapterId is a required field"})
	}
	courseID, err := s.resolveCourse(ctx, learnerID, courseID, chapterID)
	if err != nil {
		return nil, err
	}

	var out *CompletionResult
	err = s.mutate(ctx, learnerID, courseID, true, func(m *mutation) error {
		ref, err := locate(m.course, chapterID)
		if err != nil {
			return err
		}
		if ref.Chapter.IsQuiz() {
			return validation.Newf("quiz chapters are completed by submitting the quiz",
				validation.FieldError{Field: "chapterId", Error: "chapter is a quiz"})
		}

		_, _, cp := newIndex(m.rec).ensure(ref)
		wasCompleted := cp.Completed
		cp.Completed = true
		cp.Score = 100
		cp.LastAttemptedAt = s.now()

		m.after = func(Summary) {
			out = &CompletionResult{
				CourseID:        courseID,
				Completed:       true,
				Chapter:         cp,
				OverallProgress: m.rec.OverallProgress,
				CourseCompleted: m.rec.Completed,
			}
			if !wasCompleted {
				s.chapterCompleted(learnerID, courseID, cp)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) chapterCompleted(learnerID, courseID string, cp *ChapterProgress) {
	slog.Info("chapter completed",
		"learner_id", learnerID,
		"course_id", courseID,
		"chapter_id", cp.ChapterID,
		"score", cp.Score,
	)
	s.emit(Event{LearnerID: learnerID, CourseID: courseID, EventType: EventChapterCompleted, Data: map[string]any{
		"chapter_id": cp.ChapterID,
		"score":      cp.Score,
	}})
}

func locate(course *catalog.Course, chapterID string) (catalog.ChapterRef, error) {
	ref, ok := course.LocateChapter(chapterID)
	if !ok {
		return catalog.ChapterRef{}, fmt.Errorf("%w: %s", ErrChapterNotFound, chapterID)
	}
	return ref, nil
}

// tally counts the distinct questions of ch answered in cp and how many of
// those answers are correct. Answers to questions no longer in the chapter
// are ignored.
func tally(ch *catalog.Chapter, cp *ChapterProgress) (answered, correct int) {
	seen := make(map[string]bool, len(cp.Questions))
	for _, qp := range cp.Questions {
		if seen[qp.QuestionID] {
			continue
		}
		if _, ok := ch.Question(qp.QuestionID); !ok {
			continue
		}
		seen[qp.QuestionID] = true
		answered++
		if qp.IsCorrect {
			correct++
		}
	}
	return answered, correct
}

func validateAnswer(chapterID, questionID, answer string) error {
	var flds []validation.FieldError
	if chapterID == "" {
		flds = append(flds, validation.FieldError{Field: "chapterId", Error: "chapterId is a required field"})
	}
	if questionID == "" {
		flds = append(flds, validation.FieldError{Field: "questionId", Error: "questionId is a required field"})
	}
	switch {
	case strings.TrimSpace(answer) == "":
		flds = append(flds, validation.FieldError{Field: "answer", Error: "answer is a required field"})
	case tooLong(answer):
		flds = append(flds, validation.FieldError{Field: "answer", Error: answerTooLong})
	}
	if len(flds) > 0 {
		return validation.Newf("invalid answer", flds...)
	}
	return nil
}

// checkAnswerIDs reports every answer that names a question outside the
// chapter or exceeds the length limit, ordered by question id.
func checkAnswerIDs(ch *catalog.Chapter, answers map[string]string) error {
	ids := make([]string, 0, len(answers))
	for id := range answers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var flds []validation.FieldError
	for _, id := range ids {
		switch {
		case !hasQuestion(ch, id):
			flds = append(flds, validation.FieldError{Field: "answers." + id, Error: "question is not part of this chapter"})
		case tooLong(answers[id]):
			flds = append(flds, validation.FieldError{Field: "answers." + id, Error: answerTooLong})
		}
	}
	if len(flds) == 0 {
		return nil
	}
	return validation.Newf("invalid answers", flds...)
}

func hasQuestion(ch *catalog.Chapter, id string) bool {
	_, ok := ch.Question(id)
	return ok
}

// tooLong counts characters, not bytes, matching the API's max tag.
func tooLong(answer string) bool {
	return utf8.RuneCountInString(answer) > maxAnswerLen
}
