package progress

import (
	"github.com/p-n-ai/pai-learn/internal/catalog"
)

type unitKey struct {
	section, unit string
}

type chapterKey struct {
	section, unit, chapter string
}

// index maps catalog paths to the progress nodes of one record. When a
// record carries duplicate entries for the same path the first one wins.
type index struct {
	rec      *Record
	sections map[string]*SectionProgress
	units    map[unitKey]*UnitProgress
	chapters map[chapterKey]*ChapterProgress
}

func newIndex(rec *Record) *index {
	ix := &index{
		rec:      rec,
		sections: make(map[string]*SectionProgress),
		units:    make(map[unitKey]*UnitProgress),
		chapters: make(map[chapterKey]*ChapterProgress),
	}
	for _, sp := range rec.Sections {
		if _, dup := ix.sections[sp.SectionID]; !dup {
			ix.sections[sp.SectionID] = sp
		}
		for _, up := range sp.Units {
			uk := unitKey{sp.SectionID, up.UnitID}
			if _, dup := ix.units[uk]; !dup {
				ix.units[uk] = up
			}
			for _, cp := range up.Chapters {
				ck := chapterKey{sp.SectionID, up.UnitID, cp.ChapterID}
				if _, dup := ix.chapters[ck]; !dup {
					ix.chapters[ck] = cp
				}
			}
		}
	}
	return ix
}

func (ix *index) chapter(sectionID, unitID, chapterID string) (*ChapterProgress, bool) {
	cp, ok := ix.chapters[chapterKey{sectionID, unitID, chapterID}]
	return cp, ok
}

// ensure returns the section, unit and chapter progress for ref, creating
// any missing link of the chain.
func (ix *index) ensure(ref catalog.ChapterRef) (*SectionProgress, *UnitProgress, *ChapterProgress) {
	sid, uid, cid := ref.Section.ID, ref.Unit.ID, ref.Chapter.ID

	sp, ok := ix.sections[sid]
	if !ok {
		sp = &SectionProgress{SectionID: sid}
		ix.rec.Sections = append(ix.rec.Sections, sp)
		ix.sections[sid] = sp
	}

	uk := unitKey{sid, uid}
	up, ok := ix.units[uk]
	if !ok {
		up = &UnitProgress{UnitID: uid}
		sp.Units = append(sp.Units, up)
		ix.units[uk] = up
	}

	ck := chapterKey{sid, uid, cid}
	cp, ok := ix.chapters[ck]
	if !ok {
		cp = &ChapterProgress{ChapterID: cid, Questions: []QuestionProgress{}}
		up.Chapters = append(up.Chapters, cp)
		ix.chapters[ck] = cp
	}

	return sp, up, cp
}

// seed builds a dense progress tree mirroring the course shape.
func seed(course *catalog.Course) []*SectionProgress {
	sections := make([]*SectionProgress, 0, len(course.Sections))
	for _, s := range course.Sections {
		sp := &SectionProgress{SectionID: s.ID, Units: make([]*UnitProgress, 0, len(s.Units))}
		for _, u := range s.Units {
			up := &UnitProgress{UnitID: u.ID, Chapters: make([]*ChapterProgress, 0, len(u.Chapters))}
			for _, ch := range u.Chapters {
				up.Chapters = append(up.Chapters, &ChapterProgress{ChapterID: ch.ID, Questions: []QuestionProgress{}})
			}
			sp.Units = append(sp.Units, up)
		}
		sections = append(sections, sp)
	}
	return sections
}
