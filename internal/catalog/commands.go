package catalog

import (
	"github.com/p-n-ai/pai-learn/internal/platform/validation"
)

// UpdateSection lists the section fields an administrator may change.
// Nil fields are left untouched.
type UpdateSection struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Order       *int    `json:"order" validate:"omitempty,min=1"`
}

// UpdateUnit lists the unit fields an administrator may change.
type UpdateUnit struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Order       *int    `json:"order" validate:"omitempty,min=1"`
}

// UpdateChapter lists the chapter fields an administrator may change.
// Questions replaces the whole question list when set.
type UpdateChapter struct {
	Title       *string      `json:"title" validate:"omitempty,min=1,max=200"`
	ContentType *ContentType `json:"contentType" validate:"omitempty,oneof=text video audio quiz"`
	Content     *string      `json:"content"`
	MediaURL    *string      `json:"mediaUrl" validate:"omitempty,url"`
	Order       *int         `json:"order" validate:"omitempty,min=1"`
	Questions   *[]Question  `json:"questions"`
}

// Apply validates cmd and writes the set fields into s.
func (cmd UpdateSection) Apply(s *Section) error {
	if err := validation.Struct(cmd); err != nil {
		return err
	}
	if cmd.Title != nil {
		s.Title = *cmd.Title
	}
	if cmd.Description != nil {
		s.Description = *cmd.Description
	}
	if cmd.Order != nil {
		s.Order = *cmd.Order
	}
	return nil
}

// Apply validates cmd and writes the set fields into u.
func (cmd UpdateUnit) Apply(u *Unit) error {
	if err := validation.Struct(cmd); err != nil {
		return err
	}
	if cmd.Title != nil {
		u.Title = *cmd.Title
	}
	if cmd.Description != nil {
		u.Description = *cmd.Description
	}
	if cmd.Order != nil {
		u.Order = *cmd.Order
	}
	return nil
}

// Apply validates cmd and writes the set fields into ch. The result must
// still be a valid chapter.
func (cmd UpdateChapter) Apply(ch *Chapter) error {
	if err := validation.Struct(cmd); err != nil {
		return err
	}
	next := *ch
	if cmd.Title != nil {
		next.Title = *cmd.Title
	}
	if cmd.ContentType != nil {
		next.ContentType = *cmd.ContentType
	}
	if cmd.Content != nil {
		next.Content = *cmd.Content
	}
	if cmd.MediaURL != nil {
		next.MediaURL = *cmd.MediaURL
	}
	if cmd.Order != nil {
		next.Order = *cmd.Order
	}
	if cmd.Questions != nil {
		next.Questions = append([]Question(nil), (*cmd.Questions)...)
	}
	if err := next.validate(); err != nil {
		return validation.New(err)
	}
	*ch = next
	return nil
}
