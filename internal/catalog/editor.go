package catalog

import (
	"context"
	"fmt"
	"log/slog"
)

// Editor applies administrator commands to stored courses. Every command
// reads the whole course, changes one node and writes the course back.
type Editor struct {
	store Store
}

// NewEditor creates an editor over store.
func NewEditor(store Store) *Editor {
	return &Editor{store: store}
}

// UpdateSection changes section fields.
func (e *Editor) UpdateSection(ctx context.Context, courseID, sectionID string, cmd UpdateSection) (*Section, error) {
	var out Section
	err := e.edit(ctx, courseID, func(c *Course) error {
		s, ok := c.Section(sectionID)
		if !ok {
			return fmt.Errorf("section %s: %w", sectionID, ErrNotFound)
		}
		if err := cmd.Apply(s); err != nil {
			return err
		}
		out = *s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateUnit changes unit fields. The unit is found by id anywhere in the course.
func (e *Editor) UpdateUnit(ctx context.Context, courseID, unitID string, cmd UpdateUnit) (*Unit, error) {
	var out Unit
	err := e.edit(ctx, courseID, func(c *Course) error {
		_, u, ok := c.LocateUnit(unitID)
		if !ok {
			return fmt.Errorf("unit %s: %w", unitID, ErrNotFound)
		}
		if err := cmd.Apply(u); err != nil {
			return err
		}
		out = *u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateChapter changes chapter fields.
func (e *Editor) UpdateChapter(ctx context.Context, courseID, chapterID string, cmd UpdateChapter) (*Chapter, error) {
	var out Chapter
	err := e.edit(ctx, courseID, func(c *Course) error {
		ref, ok := c.LocateChapter(chapterID)
		if !ok {
			return fmt.Errorf("chapter %s: %w", chapterID, ErrNotFound)
		}
		if err := cmd.Apply(ref.Chapter); err != nil {
			return err
		}
		out = *ref.Chapter
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveChapter deletes a chapter from the course. Progress entries that
// pointed at it become stale.
func (e *Editor) RemoveChapter(ctx context.Context, courseID, chapterID string) error {
	return e.edit(ctx, courseID, func(c *Course) error {
		ref, ok := c.LocateChapter(chapterID)
		if !ok {
			return fmt.Errorf("chapter %s: %w", chapterID, ErrNotFound)
		}
		chapters := ref.Unit.Chapters[:0]
		for _, ch := range ref.Unit.Chapters {
			if ch.ID != chapterID {
				chapters = append(chapters, ch)
			}
		}
		ref.Unit.Chapters = chapters
		return nil
	})
}

// SetPublished opens or closes a course for enrollment.
func (e *Editor) SetPublished(ctx context.Context, courseID string, published bool) error {
	return e.edit(ctx, courseID, func(c *Course) error {
		c.Published = published
		return nil
	})
}

// DeleteCourse removes a course document.
func (e *Editor) DeleteCourse(ctx context.Context, courseID string) error {
	if err := e.store.DeleteCourse(ctx, courseID); err != nil {
		return err
	}
	slog.Info("course deleted", "course_id", courseID)
	return nil
}

func (e *Editor) edit(ctx context.Context, courseID string, fn func(*Course) error) error {
	c, err := e.store.GetCourse(ctx, courseID)
	if err != nil {
		return err
	}
	if err := fn(c); err != nil {
		return err
	}
	if err := e.store.PutCourse(ctx, c); err != nil {
		return fmt.Errorf("saving course %s: %w", courseID, err)
	}
	return nil
}
