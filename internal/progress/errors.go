package progress

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is wrapped by every "does not exist" error below.
	ErrNotFound = errors.New("not found")

	ErrCourseNotFound   = fmt.Errorf("course %w", ErrNotFound)
	ErrChapterNotFound  = fmt.Errorf("chapter %w", ErrNotFound)
	ErrQuestionNotFound = fmt.Errorf("question %w", ErrNotFound)

	ErrNotEnrolled        = errors.New("not enrolled in this course")
	ErrAlreadyEnrolled    = errors.New("already enrolled in this course")
	ErrCourseNotPublished = errors.New("course is not available for enrollment")
	ErrUnauthorized       = errors.New("not authorized")

	// ErrConflict means the record changed between read and write. The
	// service retries it; callers only see it when retries run out.
	ErrConflict = errors.New("progress record was modified concurrently")
)
