package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresStore keeps each course as a JSONB document in the courses table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed course store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) GetCourse(ctx context.Context, id string) (*Course, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT document FROM courses WHERE id = $1`,
		id,
	).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("course %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get course: %w", err)
	}
	return decodeCourse(doc)
}

func (s *PostgresStore) FindCourseByChapter(ctx context.Context, chapterID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var id string
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM courses
		 WHERE jsonb_path_exists(
		   document,
		   '$.sections[*].units[*].chapters[*] ? (@.id == $id)',
		   jsonb_build_object('id', $1::text)
		 )
		 ORDER BY id
		 LIMIT 1`,
		chapterID,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("chapter %s: %w", chapterID, ErrNotFound)
		}
		return "", fmt.Errorf("find course by chapter: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) ListCourses(ctx context.Context) ([]*Course, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, `SELECT document FROM courses ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query courses: %w", err)
	}
	defer rows.Close()

	var out []*Course
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		c, err := decodeCourse(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate courses: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) PutCourse(ctx context.Context, course *Course) error {
	if err := course.Validate(); err != nil {
		return err
	}
	c := course.Clone()
	c.Normalize()
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal course: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err = s.pool.Exec(ctx,
		`INSERT INTO courses (id, published, document, updated_at)
		 VALUES ($1, $2, $3::jsonb, NOW())
		 ON CONFLICT (id) DO UPDATE SET
		   published = EXCLUDED.published,
		   document = EXCLUDED.document,
		   updated_at = NOW()`,
		c.ID,
		c.Published,
		string(doc),
	)
	if err != nil {
		return fmt.Errorf("put course: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteCourse(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	cmd, err := s.pool.Exec(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("course %s: %w", id, ErrNotFound)
	}
	return nil
}

func decodeCourse(doc []byte) (*Course, error) {
	var c Course
	if err := json.Unmarshal(doc, &c); err != nil {
		return nil, fmt.Errorf("decode course: %w", err)
	}
	return &c, nil
}
