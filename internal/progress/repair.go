package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/p-n-ai/pai-learn/internal/catalog"
)

// RecalcItem reports one recalculated enrollment.
type RecalcItem struct {
	CourseID    string  `json:"courseId"`
	OldProgress int     `json:"oldProgress"`
	NewProgress int     `json:"newProgress"`
	Completed   bool    `json:"completed"`
	Summary     Summary `json:"summary"`
}

// RecalcReport is returned by Recalculate.
type RecalcReport struct {
	LearnerID string       `json:"learnerId"`
	Items     []RecalcItem `json:"items"`
	// Skipped lists courses that are no longer in the catalog.
	Skipped []string `json:"skipped,omitempty"`
}

// Recalculate re-aggregates and stores the learner's record for courseID,
// or every record of the learner when courseID is empty. It repairs records
// whose stored totals were computed against an older catalog.
func (s *Service) Recalculate(ctx context.Context, learnerID, courseID string) (*RecalcReport, error) {
	if learnerID == "" {
		return nil, ErrUnauthorized
	}
	report := &RecalcReport{LearnerID: learnerID, Items: []RecalcItem{}}

	courseIDs := []string{courseID}
	if courseID == "" {
		recs, err := s.store.ListByLearner(ctx, learnerID)
		if err != nil {
			return nil, fmt.Errorf("list progress: %w", err)
		}
		courseIDs = courseIDs[:0]
		for _, rec := range recs {
			courseIDs = append(courseIDs, rec.CourseID)
		}
	}

	for _, id := range courseIDs {
		item, err := s.recalculate(ctx, learnerID, id)
		if err != nil {
			if courseID == "" && errors.Is(err, ErrCourseNotFound) {
				report.Skipped = append(report.Skipped, id)
				continue
			}
			return nil, err
		}
		report.Items = append(report.Items, item)
	}

	slog.Info("progress recalculated",
		"learner_id", learnerID,
		"courses", len(report.Items),
		"skipped", len(report.Skipped),
	)
	return report, nil
}

func (s *Service) recalculate(ctx context.Context, learnerID, courseID string) (RecalcItem, error) {
	var item RecalcItem
	err := s.mutate(ctx, learnerID, courseID, false, func(m *mutation) error {
		old := m.rec.OverallProgress
		m.after = func(sum Summary) {
			item = RecalcItem{
				CourseID:    courseID,
				OldProgress: old,
				NewProgress: m.rec.OverallProgress,
				Completed:   m.rec.Completed,
				Summary:     sum,
			}
		}
		return nil
	})
	if err != nil {
		return RecalcItem{}, err
	}
	if item.OldProgress != item.NewProgress {
		s.emit(Event{LearnerID: learnerID, CourseID: courseID, EventType: EventProgressRecalculated, Data: map[string]any{
			"old_progress": item.OldProgress,
			"new_progress": item.NewProgress,
		}})
	}
	return item, nil
}

// PruneReport counts the entries Prune removed at each level, nested
// entries included.
type PruneReport struct {
	CourseID          string `json:"courseId"`
	Sections          int    `json:"sectionsRemoved"`
	Units             int    `json:"unitsRemoved"`
	Chapters          int    `json:"chaptersRemoved"`
	Questions         int    `json:"questionsRemoved"`
	OverallProgress   int    `json:"overallProgress"`
	CourseCompleted   bool   `json:"courseCompleted"`
	RemainingChapters int    `json:"remainingChapters"`
}

// Removed reports whether anything was pruned.
func (r *PruneReport) Removed() bool {
	return r.Sections+r.Units+r.Chapters+r.Questions > 0
}

// Prune deletes progress entries that point at catalog nodes which no longer
// exist, together with duplicate entries (the first one is kept). Unit and
// section entries emptied by the pruning are dropped too.
func (s *Service) Prune(ctx context.Context, learnerID, courseID string) (*PruneReport, error) {
	var report *PruneReport
	err := s.mutate(ctx, learnerID, courseID, false, func(m *mutation) error {
		r := prune(m.course, m.rec)
		m.after = func(Summary) {
			r.OverallProgress = m.rec.OverallProgress
			r.CourseCompleted = m.rec.Completed
			report = r
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("progress pruned",
		"learner_id", learnerID,
		"course_id", courseID,
		"sections", report.Sections,
		"units", report.Units,
		"chapters", report.Chapters,
		"questions", report.Questions,
	)
	if report.Removed() {
		s.emit(Event{LearnerID: learnerID, CourseID: courseID, EventType: EventProgressPruned, Data: map[string]any{
			"sections":  report.Sections,
			"units":     report.Units,
			"chapters":  report.Chapters,
			"questions": report.Questions,
		}})
	}
	return report, nil
}

func prune(course *catalog.Course, rec *Record) *PruneReport {
	r := &PruneReport{CourseID: course.ID}

	seenSections := make(map[string]bool)
	sections := rec.Sections[:0]
	for _, sp := range rec.Sections {
		cs, ok := course.Section(sp.SectionID)
		if !ok || seenSections[sp.SectionID] {
			r.dropSection(sp)
			continue
		}
		seenSections[sp.SectionID] = true

		hadUnits := len(sp.Units) > 0
		seenUnits := make(map[string]bool)
		units := sp.Units[:0]
		for _, up := range sp.Units {
			cu, ok := cs.Unit(up.UnitID)
			if !ok || seenUnits[up.UnitID] {
				r.dropUnit(up)
				continue
			}
			seenUnits[up.UnitID] = true

			hadChapters := len(up.Chapters) > 0
			seenChapters := make(map[string]bool)
			chapters := up.Chapters[:0]
			for _, cp := range up.Chapters {
				ch, ok := cu.Chapter(cp.ChapterID)
				if !ok || seenChapters[cp.ChapterID] {
					r.dropChapter(cp)
					continue
				}
				seenChapters[cp.ChapterID] = true
				r.Questions += pruneQuestions(ch, cp)
				chapters = append(chapters, cp)
			}
			up.Chapters = chapters
			r.RemainingChapters += len(chapters)

			if hadChapters && len(up.Chapters) == 0 {
				r.Units++
				continue
			}
			units = append(units, up)
		}
		sp.Units = units

		if hadUnits && len(sp.Units) == 0 {
			r.Sections++
			continue
		}
		sections = append(sections, sp)
	}
	rec.Sections = sections
	return r
}

func pruneQuestions(ch *catalog.Chapter, cp *ChapterProgress) int {
	removed := 0
	seen := make(map[string]bool)
	questions := cp.Questions[:0]
	for _, qp := range cp.Questions {
		if _, ok := ch.Question(qp.QuestionID); !ok || seen[qp.QuestionID] {
			removed++
			continue
		}
		seen[qp.QuestionID] = true
		questions = append(questions, qp)
	}
	cp.Questions = questions
	return removed
}

func (r *PruneReport) dropSection(sp *SectionProgress) {
	r.Sections++
	for _, up := range sp.Units {
		r.dropUnit(up)
	}
}

func (r *PruneReport) dropUnit(up *UnitProgress) {
	r.Units++
	for _, cp := range up.Chapters {
		r.dropChapter(cp)
	}
}

func (r *PruneReport) dropChapter(cp *ChapterProgress) {
	r.Chapters++
	r.Questions += len(cp.Questions)
}
