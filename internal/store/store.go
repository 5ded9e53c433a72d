// Package store provides the course retrieval backend: indexed course
// chunks with semantic search and fuzzy course resolution.
package store

import "context"

// Lesson is one entry of a course outline.
type Lesson struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Link   string `json:"link,omitempty"`
}

// CourseMeta describes an indexed course.
type CourseMeta struct {
	Title      string   `json:"title"`
	Link       string   `json:"link,omitempty"`
	Instructor string   `json:"instructor,omitempty"`
	Lessons    []Lesson `json:"lessons"`
}

// Chunk is one indexed slice of course content. LessonNumber is nil for
// content that precedes any lesson heading.
type Chunk struct {
	CourseTitle  string `json:"course_title"`
	LessonNumber *int   `json:"lesson_number,omitempty"`
	Content      string `json:"content"`
}

// CourseStore is the retrieval backend consumed by the tools.
type CourseStore interface {
	// AddCourse indexes a course and its content chunks.
	AddCourse(ctx context.Context, meta CourseMeta, chunks []Chunk) error
	// Search returns up to limit chunks ranked by relevance to query,
	// optionally filtered by a fuzzy course name and a lesson number.
	// An unresolvable courseName is an error.
	Search(ctx context.Context, query, courseName string, lessonNumber *int, limit int) ([]Chunk, error)
	// ResolveCourse finds the best-matching course for a partial name.
	// Returns nil (and no error) when nothing matches.
	ResolveCourse(ctx context.Context, name string) (*CourseMeta, error)
	// ListCourseTitles returns indexed course titles in insertion order.
	ListCourseTitles(ctx context.Context) ([]string, error)
	// CourseCount returns the number of indexed courses.
	CourseCount(ctx context.Context) (int, error)
}

// Embedder produces vector embeddings for semantic ranking.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
