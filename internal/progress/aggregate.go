package progress

import (
	"math"
	"strings"

	"golang.org/x/text/cases"

	"github.com/p-n-ai/pai-learn/internal/catalog"
)

// Summary reports the chapter counts behind an aggregation.
type Summary struct {
	TotalChapters     int `json:"totalChapters"`
	CompletedChapters int `json:"completedChapters"`
	StaleChapters     int `json:"staleChapters"`
}

// Aggregate recomputes every derived field of rec against course: unit and
// section completion flags, overall progress and course completion.
// Entries whose ids are no longer in the catalog are ignored. The totals
// always come from the catalog, never from the (sparse) progress tree.
func Aggregate(course *catalog.Course, rec *Record) Summary {
	var sum Summary

	seenSections := make(map[string]bool)
	for _, sp := range rec.Sections {
		cs, ok := course.Section(sp.SectionID)
		if !ok || seenSections[sp.SectionID] {
			sum.StaleChapters += countChapters(sp)
			continue
		}
		seenSections[sp.SectionID] = true

		liveUnits, allUnits := 0, true
		seenUnits := make(map[string]bool)
		for _, up := range sp.Units {
			cu, ok := cs.Unit(up.UnitID)
			if !ok || seenUnits[up.UnitID] {
				sum.StaleChapters += len(up.Chapters)
				continue
			}
			seenUnits[up.UnitID] = true

			liveChapters, allChapters := 0, true
			seenChapters := make(map[string]bool)
			for _, cp := range up.Chapters {
				if _, ok := cu.Chapter(cp.ChapterID); !ok || seenChapters[cp.ChapterID] {
					sum.StaleChapters++
					continue
				}
				seenChapters[cp.ChapterID] = true
				liveChapters++
				if !cp.Completed {
					allChapters = false
				}
			}
			up.Completed = liveChapters > 0 && allChapters

			liveUnits++
			if !up.Completed {
				allUnits = false
			}
		}
		sp.Completed = liveUnits > 0 && allUnits
	}

	ix := newIndex(rec)
	for _, s := range course.Sections {
		for _, u := range s.Units {
			for _, ch := range u.Chapters {
				sum.TotalChapters++
				if cp, ok := ix.chapter(s.ID, u.ID, ch.ID); ok && cp.Completed {
					sum.CompletedChapters++
				}
			}
		}
	}

	rec.OverallProgress = Percent(sum.CompletedChapters, sum.TotalChapters)
	rec.Completed = rec.OverallProgress == 100
	return sum
}

// Percent returns n/total as a rounded percentage clamped to [0,100].
// A zero total yields 0.
func Percent(n, total int) int {
	if total <= 0 {
		return 0
	}
	p := int(math.Round(float64(n) / float64(total) * 100))
	return min(max(p, 0), 100)
}

// MatchAnswer compares a learner's answer with the expected one, ignoring
// surrounding whitespace and case. An empty answer never matches.
func MatchAnswer(given, correct string) bool {
	g := normalizeAnswer(given)
	if g == "" {
		return false
	}
	return g == normalizeAnswer(correct)
}

func normalizeAnswer(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

func countChapters(sp *SectionProgress) int {
	n := 0
	for _, up := range sp.Units {
		n += len(up.Chapters)
	}
	return n
}
