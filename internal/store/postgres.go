package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS courses (
    id          BIGSERIAL PRIMARY KEY,
    title       TEXT NOT NULL UNIQUE,
    link        TEXT NOT NULL DEFAULT '',
    instructor  TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS lessons (
    course_id   BIGINT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    number      INT NOT NULL,
    title       TEXT NOT NULL,
    link        TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (course_id, number)
);

CREATE TABLE IF NOT EXISTS chunks (
    id             BIGSERIAL PRIMARY KEY,
    course_title   TEXT NOT NULL,
    lesson_number  INT,
    content        TEXT NOT NULL,
    embedding      vector(1536)
);

CREATE INDEX IF NOT EXISTS chunks_course_idx ON chunks (course_title);
`

// PostgresStore is a CourseStore backed by Postgres with pgvector ranking.
type PostgresStore struct {
	pool     *pgxpool.Pool
	embedder Embedder
}

// NewPostgresStore connects to Postgres and ensures the schema exists.
// embedder may be nil, in which case search degrades to trigram-free ILIKE
// matching on chunk content.
func NewPostgresStore(ctx context.Context, dsn string, embedder Embedder) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &PostgresStore{pool: pool, embedder: embedder}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// AddCourse upserts course metadata and replaces its indexed chunks.
func (s *PostgresStore) AddCourse(ctx context.Context, meta CourseMeta, chunks []Chunk) error {
	if strings.TrimSpace(meta.Title) == "" {
		return fmt.Errorf("course title is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	var courseID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO courses (title, link, instructor) VALUES ($1, $2, $3)
		ON CONFLICT (title) DO UPDATE SET link = EXCLUDED.link, instructor = EXCLUDED.instructor
		RETURNING id`,
		meta.Title, meta.Link, meta.Instructor).Scan(&courseID)
	if err != nil {
		return fmt.Errorf("upsert course: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM lessons WHERE course_id = $1`, courseID); err != nil {
		return fmt.Errorf("clear lessons: %w", err)
	}
	for _, l := range meta.Lessons {
		if _, err := tx.Exec(ctx, `
			INSERT INTO lessons (course_id, number, title, link) VALUES ($1, $2, $3, $4)`,
			courseID, l.Number, l.Title, l.Link); err != nil {
			return fmt.Errorf("insert lesson %d: %w", l.Number, err)
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE course_title = $1`, meta.Title); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}
	for _, c := range chunks {
		var embedding *string
		if s.embedder != nil {
			emb, err := s.embedder.Embed(ctx, c.Content)
			if err != nil {
				return fmt.Errorf("embed chunk: %w", err)
			}
			v := vectorLiteral(emb)
			embedding = &v
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO chunks (course_title, lesson_number, content, embedding)
			VALUES ($1, $2, $3, $4::vector)`,
			meta.Title, c.LessonNumber, c.Content, embedding); err != nil {
			return fmt.Errorf("insert chunk: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// Search ranks chunks by embedding distance, or by ILIKE match without an
// embedder, honoring course/lesson filters.
func (s *PostgresStore) Search(ctx context.Context, query, courseName string, lessonNumber *int, limit int) ([]Chunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is required")
	}
	if limit <= 0 {
		limit = 5
	}

	var courseFilter string
	if strings.TrimSpace(courseName) != "" {
		meta, err := s.ResolveCourse(ctx, courseName)
		if err != nil {
			return nil, err
		}
		if meta == nil {
			return nil, fmt.Errorf("no course found matching '%s'", courseName)
		}
		courseFilter = meta.Title
	}

	var (
		rows pgx.Rows
		err  error
	)
	if s.embedder != nil {
		emb, embErr := s.embedder.Embed(ctx, query)
		if embErr != nil {
			return nil, fmt.Errorf("embed query: %w", embErr)
		}
		rows, err = s.pool.Query(ctx, `
			SELECT course_title, lesson_number, content
			FROM chunks
			WHERE ($1 = '' OR course_title = $1)
			  AND ($2::int IS NULL OR lesson_number = $2)
			  AND embedding IS NOT NULL
			ORDER BY embedding <=> $3::vector
			LIMIT $4`,
			courseFilter, lessonNumber, vectorLiteral(emb), limit)
	} else {
		rows, err = s.pool.Query(ctx, `
			SELECT course_title, lesson_number, content
			FROM chunks
			WHERE ($1 = '' OR course_title = $1)
			  AND ($2::int IS NULL OR lesson_number = $2)
			  AND content ILIKE '%' || $3 || '%'
			LIMIT $4`,
			courseFilter, lessonNumber, query, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.CourseTitle, &c.LessonNumber, &c.Content); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ResolveCourse finds the best-matching course title for a partial name.
func (s *PostgresStore) ResolveCourse(ctx context.Context, name string) (*CourseMeta, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("course name is required")
	}

	var (
		courseID int64
		meta     CourseMeta
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, title, link, instructor FROM courses
		WHERE title ILIKE '%' || $1 || '%'
		ORDER BY (lower(title) = lower($1)) DESC, length(title)
		LIMIT 1`, name).Scan(&courseID, &meta.Title, &meta.Link, &meta.Instructor)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve course: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT number, title, link FROM lessons WHERE course_id = $1 ORDER BY number`, courseID)
	if err != nil {
		return nil, fmt.Errorf("load lessons: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l Lesson
		if err := rows.Scan(&l.Number, &l.Title, &l.Link); err != nil {
			return nil, fmt.Errorf("scan lesson: %w", err)
		}
		meta.Lessons = append(meta.Lessons, l)
	}
	return &meta, rows.Err()
}

// ListCourseTitles returns all indexed course titles.
func (s *PostgresStore) ListCourseTitles(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT title FROM courses ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		titles = append(titles, t)
	}
	return titles, rows.Err()
}

// CourseCount returns the number of indexed courses.
func (s *PostgresStore) CourseCount(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM courses`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count courses: %w", err)
	}
	return n, nil
}

func vectorLiteral(emb []float32) string {
	parts := make([]string, len(emb))
	for i, v := range emb {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
