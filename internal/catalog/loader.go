package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// Loader reads course documents from a directory of YAML files.
type Loader struct {
	rootDir string
	schema  *gojsonschema.Schema
}

// NewLoader creates a loader rooted at rootDir.
func NewLoader(rootDir string) (*Loader, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(courseSchema))
	if err != nil {
		return nil, fmt.Errorf("compiling course schema: %w", err)
	}
	return &Loader{rootDir: rootDir, schema: schema}, nil
}

// Load parses every course file under the root directory. Files that fail
// schema or structural validation are skipped with a warning.
func (l *Loader) Load() ([]*Course, error) {
	var courses []*Course
	err := filepath.Walk(l.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		course, err := l.Parse(data)
		if err != nil {
			slog.Warn("skipping invalid course file", "path", path, "error", err)
			return nil
		}
		courses = append(courses, course)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading courses from %s: %w", l.rootDir, err)
	}
	return courses, nil
}

// Parse validates a single YAML course document and decodes it.
func (l *Loader) Parse(data []byte) (*Course, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}

	result, err := l.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validating course: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("course document invalid: %s", strings.Join(msgs, "; "))
	}

	var course Course
	if err := yaml.Unmarshal(data, &course); err != nil {
		return nil, fmt.Errorf("decoding course: %w", err)
	}
	if err := course.Validate(); err != nil {
		return nil, err
	}
	course.Normalize()
	return &course, nil
}

// LoadInto loads all courses and writes them to store.
func (l *Loader) LoadInto(ctx context.Context, store Store) (int, error) {
	courses, err := l.Load()
	if err != nil {
		return 0, err
	}
	for _, c := range courses {
		if err := store.PutCourse(ctx, c); err != nil {
			return 0, fmt.Errorf("storing course %s: %w", c.ID, err)
		}
	}
	slog.Info("catalog loaded", "courses", len(courses), "path", l.rootDir)
	return len(courses), nil
}
