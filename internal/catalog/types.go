// Package catalog holds the authored course content tree
// (course → section → unit → chapter → question) that progress is tracked against.
package catalog

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNotFound is returned when a course (or a node inside it) does not exist.
var ErrNotFound = errors.New("not found")

// ContentType is the kind of material a chapter presents.
type ContentType string

const (
	ContentText  ContentType = "text"
	ContentVideo ContentType = "video"
	ContentAudio ContentType = "audio"
	ContentQuiz  ContentType = "quiz"
)

// QuestionType is the answer format of a quiz question.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple-choice"
	QuestionFillBlank      QuestionType = "fill-blank"
	QuestionFreeText       QuestionType = "free-text"
)

// Course is the root of the content tree.
type Course struct {
	ID          string    `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description,omitempty" yaml:"description"`
	Level       string    `json:"level,omitempty" yaml:"level"`
	Published   bool      `json:"published" yaml:"published"`
	Sections    []Section `json:"sections" yaml:"sections"`
}

// Section groups units within a course.
type Section struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description"`
	Order       int    `json:"order" yaml:"order"`
	Units       []Unit `json:"units" yaml:"units"`
}

// Unit groups chapters within a section.
type Unit struct {
	ID          string    `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description,omitempty" yaml:"description"`
	Order       int       `json:"order" yaml:"order"`
	Chapters    []Chapter `json:"chapters" yaml:"chapters"`
}

// Chapter is the smallest unit of completion.
type Chapter struct {
	ID          string      `json:"id" yaml:"id"`
	Title       string      `json:"title" yaml:"title"`
	ContentType ContentType `json:"contentType" yaml:"content_type"`
	Content     string      `json:"content,omitempty" yaml:"content"`
	MediaURL    string      `json:"mediaUrl,omitempty" yaml:"media_url"`
	Order       int         `json:"order" yaml:"order"`
	Questions   []Question  `json:"questions,omitempty" yaml:"questions"`
}

// Question belongs to a quiz chapter.
type Question struct {
	ID            string       `json:"id" yaml:"id"`
	Type          QuestionType `json:"questionType" yaml:"question_type"`
	Text          string       `json:"questionText" yaml:"text"`
	Options       []string     `json:"options,omitempty" yaml:"options"`
	CorrectAnswer string       `json:"correctAnswer" yaml:"correct_answer"`
}

// ChapterRef points at a chapter together with its parents.
type ChapterRef struct {
	Section *Section
	Unit    *Unit
	Chapter *Chapter
}

// IsQuiz reports whether the chapter is completed through grading.
func (ch *Chapter) IsQuiz() bool {
	return ch.ContentType == ContentQuiz
}

// Question returns the question with the given id.
func (ch *Chapter) Question(id string) (*Question, bool) {
	for i := range ch.Questions {
		if ch.Questions[i].ID == id {
			return &ch.Questions[i], true
		}
	}
	return nil, false
}

// Section returns the section with the given id.
func (c *Course) Section(id string) (*Section, bool) {
	for i := range c.Sections {
		if c.Sections[i].ID == id {
			return &c.Sections[i], true
		}
	}
	return nil, false
}

// Unit returns the unit with the given id.
func (s *Section) Unit(id string) (*Unit, bool) {
	for i := range s.Units {
		if s.Units[i].ID == id {
			return &s.Units[i], true
		}
	}
	return nil, false
}

// Chapter returns the chapter with the given id.
func (u *Unit) Chapter(id string) (*Chapter, bool) {
	for i := range u.Chapters {
		if u.Chapters[i].ID == id {
			return &u.Chapters[i], true
		}
	}
	return nil, false
}

// LocateChapter scans the whole tree for a chapter id.
func (c *Course) LocateChapter(chapterID string) (ChapterRef, bool) {
	for si := range c.Sections {
		s := &c.Sections[si]
		for ui := range s.Units {
			u := &s.Units[ui]
			if ch, ok := u.Chapter(chapterID); ok {
				return ChapterRef{Section: s, Unit: u, Chapter: ch}, true
			}
		}
	}
	return ChapterRef{}, false
}

// LocateUnit scans the whole tree for a unit id.
func (c *Course) LocateUnit(unitID string) (*Section, *Unit, bool) {
	for si := range c.Sections {
		s := &c.Sections[si]
		if u, ok := s.Unit(unitID); ok {
			return s, u, true
		}
	}
	return nil, nil, false
}

// ChapterCount returns the number of chapters across all sections and units.
func (c *Course) ChapterCount() int {
	n := 0
	for _, s := range c.Sections {
		for _, u := range s.Units {
			n += len(u.Chapters)
		}
	}
	return n
}

// Normalize sorts every level of the tree by its order field.
// Ties keep their authored position.
func (c *Course) Normalize() {
	sort.SliceStable(c.Sections, func(i, j int) bool { return c.Sections[i].Order < c.Sections[j].Order })
	for si := range c.Sections {
		s := &c.Sections[si]
		sort.SliceStable(s.Units, func(i, j int) bool { return s.Units[i].Order < s.Units[j].Order })
		for ui := range s.Units {
			u := &s.Units[ui]
			sort.SliceStable(u.Chapters, func(i, j int) bool { return u.Chapters[i].Order < u.Chapters[j].Order })
		}
	}
}

// Validate checks identifiers and content types. Chapter and question ids
// must be unique across the course because progress addresses them by id alone.
func (c *Course) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("course id is required")
	}
	sections := make(map[string]bool)
	units := make(map[string]bool)
	chapters := make(map[string]bool)
	for _, s := range c.Sections {
		if s.ID == "" || sections[s.ID] {
			return fmt.Errorf("course %s: missing or duplicate section id %q", c.ID, s.ID)
		}
		sections[s.ID] = true
		for _, u := range s.Units {
			if u.ID == "" || units[u.ID] {
				return fmt.Errorf("course %s: missing or duplicate unit id %q", c.ID, u.ID)
			}
			units[u.ID] = true
			for _, ch := range u.Chapters {
				if ch.ID == "" || chapters[ch.ID] {
					return fmt.Errorf("course %s: missing or duplicate chapter id %q", c.ID, ch.ID)
				}
				chapters[ch.ID] = true
				if err := ch.validate(); err != nil {
					return fmt.Errorf("course %s: %w", c.ID, err)
				}
			}
		}
	}
	return nil
}

func (ch *Chapter) validate() error {
	switch ch.ContentType {
	case ContentText, ContentVideo, ContentAudio, ContentQuiz:
	default:
		return fmt.Errorf("chapter %s: unknown content type %q", ch.ID, ch.ContentType)
	}
	seen := make(map[string]bool, len(ch.Questions))
	for _, q := range ch.Questions {
		if q.ID == "" || seen[q.ID] {
			return fmt.Errorf("chapter %s: missing or duplicate question id %q", ch.ID, q.ID)
		}
		seen[q.ID] = true
		switch q.Type {
		case QuestionMultipleChoice:
			if len(q.Options) == 0 {
				return fmt.Errorf("question %s: multiple-choice needs options", q.ID)
			}
		case QuestionFillBlank, QuestionFreeText:
		default:
			return fmt.Errorf("question %s: unknown question type %q", q.ID, q.Type)
		}
	}
	return nil
}

// Clone returns a deep copy of the course.
func (c *Course) Clone() *Course {
	out := *c
	out.Sections = make([]Section, len(c.Sections))
	for si, s := range c.Sections {
		s.Units = append([]Unit(nil), s.Units...)
		for ui, u := range s.Units {
			u.Chapters = append([]Chapter(nil), u.Chapters...)
			for ci, ch := range u.Chapters {
				ch.Questions = append([]Question(nil), ch.Questions...)
				for qi, q := range ch.Questions {
					q.Options = append([]string(nil), q.Options...)
					ch.Questions[qi] = q
				}
				u.Chapters[ci] = ch
			}
			s.Units[ui] = u
		}
		out.Sections[si] = s
	}
	return &out
}
