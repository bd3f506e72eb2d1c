// Package progress records learners' answers and completions against the
// course catalog and derives unit, section and course completion from them.
package progress

import (
	"time"
)

// Record is one learner's progress in one course. Sections is sparse: a
// missing entry means "not started".
type Record struct {
	ID               string             `json:"id"`
	LearnerID        string             `json:"learnerId"`
	CourseID         string             `json:"courseId"`
	OverallProgress  int                `json:"overallProgress"`
	Completed        bool               `json:"completed"`
	CurrentChapterID string             `json:"currentChapterId,omitempty"`
	EnrolledAt       time.Time          `json:"enrolledAt"`
	LastAccessedAt   time.Time          `json:"lastAccessedAt"`
	Sections         []*SectionProgress `json:"sectionsProgress"`
	Version          int64              `json:"version"`
}

// SectionProgress mirrors a catalog section.
type SectionProgress struct {
	SectionID string          `json:"sectionId"`
	Completed bool            `json:"completed"`
	Units     []*UnitProgress `json:"unitsProgress"`
}

// UnitProgress mirrors a catalog unit.
type UnitProgress struct {
	UnitID    string             `json:"unitId"`
	Completed bool               `json:"completed"`
	Chapters  []*ChapterProgress `json:"chaptersProgress"`
}

// ChapterProgress holds completion state for a chapter and, for quizzes, the
// latest answer to each question.
type ChapterProgress struct {
	ChapterID       string             `json:"chapterId"`
	Completed       bool               `json:"completed"`
	Score           int                `json:"score"`
	LastAttemptedAt time.Time          `json:"lastAttemptedAt"`
	Questions       []QuestionProgress `json:"questionsProgress"`
}

// QuestionProgress is the latest answer given to a question.
type QuestionProgress struct {
	QuestionID  string    `json:"questionId"`
	UserAnswer  string    `json:"userAnswer"`
	IsCorrect   bool      `json:"isCorrect"`
	AttemptedAt time.Time `json:"attemptedAt"`
}

// upsertQuestion replaces the entry for q.QuestionID or appends it.
func (cp *ChapterProgress) upsertQuestion(q QuestionProgress) {
	for i := range cp.Questions {
		if cp.Questions[i].QuestionID == q.QuestionID {
			cp.Questions[i] = q
			return
		}
	}
	cp.Questions = append(cp.Questions, q)
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.Sections = make([]*SectionProgress, len(r.Sections))
	for i, sp := range r.Sections {
		out.Sections[i] = sp.clone()
	}
	return &out
}

func (sp *SectionProgress) clone() *SectionProgress {
	out := *sp
	out.Units = make([]*UnitProgress, len(sp.Units))
	for i, up := range sp.Units {
		out.Units[i] = up.clone()
	}
	return &out
}

func (up *UnitProgress) clone() *UnitProgress {
	out := *up
	out.Chapters = make([]*ChapterProgress, len(up.Chapters))
	for i, cp := range up.Chapters {
		out.Chapters[i] = cp.clone()
	}
	return &out
}

func (cp *ChapterProgress) clone() *ChapterProgress {
	out := *cp
	out.Questions = append([]QuestionProgress(nil), cp.Questions...)
	return &out
}
