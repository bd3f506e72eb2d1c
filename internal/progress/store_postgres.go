package progress

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

// PostgresStore is a PostgreSQL-backed Store. The progress tree is kept as
// JSONB next to the scalar fields; the version column guards every update.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed progress store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Create(ctx context.Context, rec *Record) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	sections, err := json.Marshal(sectionsOrEmpty(rec.Sections))
	if err != nil {
		return fmt.Errorf("marshal sections: %w", err)
	}

	cmd, err := s.pool.Exec(ctx,
		`INSERT INTO progress_records
		   (id, learner_id, course_id, overall_progress, completed, current_chapter_id,
		    sections, version, enrolled_at, last_accessed_at)
		 VALUES ($1::uuid, $2, $3, $4, $5, $6, $7::jsonb, 1, $8, $9)
		 ON CONFLICT (learner_id, course_id) DO NOTHING`,
		rec.ID,
		rec.LearnerID,
		rec.CourseID,
		rec.OverallProgress,
		rec.Completed,
		nullIfEmpty(rec.CurrentChapterID),
		string(sections),
		rec.EnrolledAt,
		rec.LastAccessedAt,
	)
	if err != nil {
		return fmt.Errorf("insert progress: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrAlreadyEnrolled
	}
	rec.Version = 1
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, learnerID, courseID string) (*Record, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rec, err := scanRecord(s.pool.QueryRow(ctx,
		selectRecord+` WHERE learner_id = $1 AND course_id = $2`,
		learnerID,
		courseID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotEnrolled
		}
		return nil, fmt.Errorf("get progress: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) ListByLearner(ctx context.Context, learnerID string) ([]*Record, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		selectRecord+` WHERE learner_id = $1 ORDER BY enrolled_at ASC`,
		learnerID,
	)
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate progress: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Save(ctx context.Context, rec *Record) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	sections, err := json.Marshal(sectionsOrEmpty(rec.Sections))
	if err != nil {
		return fmt.Errorf("marshal sections: %w", err)
	}

	cmd, err := s.pool.Exec(ctx,
		`UPDATE progress_records
		 SET overall_progress = $4,
		     completed = $5,
		     current_chapter_id = $6,
		     sections = $7::jsonb,
		     last_accessed_at = $8,
		     version = version + 1
		 WHERE learner_id = $1 AND course_id = $2 AND version = $3`,
		rec.LearnerID,
		rec.CourseID,
		rec.Version,
		rec.OverallProgress,
		rec.Completed,
		nullIfEmpty(rec.CurrentChapterID),
		string(sections),
		rec.LastAccessedAt,
	)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM progress_records WHERE learner_id = $1 AND course_id = $2)`,
			rec.LearnerID,
			rec.CourseID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check progress: %w", err)
		}
		if !exists {
			return ErrNotEnrolled
		}
		return fmt.Errorf("%w: version %d is stale", ErrConflict, rec.Version)
	}
	rec.Version++
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, learnerID, courseID string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	cmd, err := s.pool.Exec(ctx,
		`DELETE FROM progress_records WHERE learner_id = $1 AND course_id = $2`,
		learnerID,
		courseID,
	)
	if err != nil {
		return fmt.Errorf("delete progress: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotEnrolled
	}
	return nil
}

func (s *PostgresStore) DeleteByCourse(ctx context.Context, courseID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	cmd, err := s.pool.Exec(ctx, `DELETE FROM progress_records WHERE course_id = $1`, courseID)
	if err != nil {
		return 0, fmt.Errorf("delete course progress: %w", err)
	}
	return int(cmd.RowsAffected()), nil
}

const selectRecord = `SELECT id::text, learner_id, course_id, overall_progress, completed,
	current_chapter_id, sections, version, enrolled_at, last_accessed_at
	FROM progress_records`

func scanRecord(row pgx.Row) (*Record, error) {
	rec := &Record{}
	var currentChapter *string
	var sections []byte
	if err := row.Scan(
		&rec.ID,
		&rec.LearnerID,
		&rec.CourseID,
		&rec.OverallProgress,
		&rec.Completed,
		&currentChapter,
		&sections,
		&rec.Version,
		&rec.EnrolledAt,
		&rec.LastAccessedAt,
	); err != nil {
		return nil, err
	}
	if currentChapter != nil {
		rec.CurrentChapterID = *currentChapter
	}
	if len(sections) > 0 {
		if err := json.Unmarshal(sections, &rec.Sections); err != nil {
			return nil, fmt.Errorf("decode sections: %w", err)
		}
	}
	return rec, nil
}

func sectionsOrEmpty(s []*SectionProgress) []*SectionProgress {
	if s == nil {
		return []*SectionProgress{}
	}
	return s
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}
