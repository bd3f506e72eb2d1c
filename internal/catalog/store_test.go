package catalog_test

import (
	"errors"
	"testing"

	"github.com/p-n-ai/pai-learn/internal/catalog"
)

func TestMemoryStore_GetAndFind(t *testing.T) {
	store := catalog.NewMemoryStore(sampleCourse())
	ctx := t.Context()

	course, err := store.GetCourse(ctx, "algebra")
	if err != nil {
		t.Fatalf("GetCourse() error = %v", err)
	}
	course.Sections[0].Title = "mutated"

	again, _ := store.GetCourse(ctx, "algebra")
	if again.Sections[0].Title != "Basics" {
		t.Error("caller mutation leaked into the store")
	}

	id, err := store.FindCourseByChapter(ctx, "ch-quiz")
	if err != nil || id != "algebra" {
		t.Errorf("FindCourseByChapter() = %q, %v, want algebra", id, err)
	}
	if _, err := store.FindCourseByChapter(ctx, "nope"); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("FindCourseByChapter(nope) error = %v, want ErrNotFound", err)
	}
	if _, err := store.GetCourse(ctx, "nope"); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("GetCourse(nope) error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_PutCourse(t *testing.T) {
	store := catalog.NewMemoryStore()
	ctx := t.Context()

	c := sampleCourse()
	c.Sections[0].Units[0].Chapters[0].Order = 5
	if err := store.PutCourse(ctx, c); err != nil {
		t.Fatalf("PutCourse() error = %v", err)
	}
	got, _ := store.GetCourse(ctx, "algebra")
	if got.Sections[0].Units[0].Chapters[0].ID != "ch-quiz" {
		t.Error("PutCourse() should normalize chapter order")
	}

	bad := sampleCourse()
	bad.ID = ""
	if err := store.PutCourse(ctx, bad); err == nil {
		t.Error("PutCourse() should reject a course without id")
	}

	list, err := store.ListCourses(ctx)
	if err != nil || len(list) != 1 {
		t.Errorf("ListCourses() = %d, %v, want 1", len(list), err)
	}
}
