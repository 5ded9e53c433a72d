package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func seedStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore(nil)

	one, two := 1, 2
	err := s.AddCourse(context.Background(), CourseMeta{
		Title: "Building RAG Applications",
		Link:  "https://example.com/rag",
		Lessons: []Lesson{
			{Number: 0, Title: "Introduction"},
			{Number: 1, Title: "Chunking Strategies"},
			{Number: 2, Title: "Vector Search"},
		},
	}, []Chunk{
		{CourseTitle: "Building RAG Applications", LessonNumber: &one, Content: "Chunking splits documents into overlapping windows."},
		{CourseTitle: "Building RAG Applications", LessonNumber: &two, Content: "Vector search ranks chunks by embedding similarity."},
	})
	require.NoError(t, err)

	err = s.AddCourse(context.Background(), CourseMeta{
		Title:   "Prompt Engineering Basics",
		Lessons: []Lesson{{Number: 0, Title: "Overview"}},
	}, []Chunk{
		{CourseTitle: "Prompt Engineering Basics", Content: "Prompts steer model behavior."},
	})
	require.NoError(t, err)

	return s
}

func TestMemoryStoreSearchRanksByOverlap(t *testing.T) {
	s := seedStore(t)

	chunks, err := s.Search(context.Background(), "vector search embedding", "", nil, 5)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	require.Contains(t, chunks[0].Content, "Vector search")
}

func TestMemoryStoreSearchFilters(t *testing.T) {
	s := seedStore(t)

	one := 1
	chunks, err := s.Search(context.Background(), "chunking documents", "RAG", &one, 5)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	require.Equal(t, "Building RAG Applications", chunks[0].CourseTitle)
	require.Equal(t, 1, *chunks[0].LessonNumber)

	// Lesson filter excludes matching content from other lessons.
	two := 2
	chunks, err = s.Search(context.Background(), "chunking documents", "RAG", &two, 5)
	require.NoError(t, err)
	require.Empty(t, chunks)
}

func TestMemoryStoreSearchUnknownCourseErrors(t *testing.T) {
	s := seedStore(t)

	_, err := s.Search(context.Background(), "anything", "Quantum Basket Weaving", nil, 5)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Quantum Basket Weaving")
}

func TestMemoryStoreResolveCourseFuzzy(t *testing.T) {
	s := seedStore(t)

	meta, err := s.ResolveCourse(context.Background(), "building rag applications")
	require.NoError(t, err)
	require.NotNil(t, meta)
	require.Equal(t, "Building RAG Applications", meta.Title)

	meta, err = s.ResolveCourse(context.Background(), "prompt")
	require.NoError(t, err)
	require.NotNil(t, meta)
	require.Equal(t, "Prompt Engineering Basics", meta.Title)

	// Token overlap still finds a course when word order differs.
	meta, err = s.ResolveCourse(context.Background(), "applications RAG")
	require.NoError(t, err)
	require.NotNil(t, meta)
	require.Equal(t, "Building RAG Applications", meta.Title)

	meta, err = s.ResolveCourse(context.Background(), "nonexistent")
	require.NoError(t, err)
	require.Nil(t, meta)
}

func TestMemoryStoreReplacesCourseOnReadd(t *testing.T) {
	s := seedStore(t)

	err := s.AddCourse(context.Background(), CourseMeta{
		Title:   "Prompt Engineering Basics",
		Lessons: []Lesson{{Number: 0, Title: "New Overview"}},
	}, []Chunk{
		{CourseTitle: "Prompt Engineering Basics", Content: "Updated material."},
	})
	require.NoError(t, err)

	n, err := s.CourseCount(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)

	meta, err := s.ResolveCourse(context.Background(), "Prompt Engineering Basics")
	require.NoError(t, err)
	require.Equal(t, "New Overview", meta.Lessons[0].Title)
}

func TestMemoryStoreListsTitlesInInsertionOrder(t *testing.T) {
	s := seedStore(t)

	titles, err := s.ListCourseTitles(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"Building RAG Applications", "Prompt Engineering Basics"}, titles)
}

func TestCosineSimilarity(t *testing.T) {
	require.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	require.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	require.Zero(t, cosineSimilarity([]float32{1}, []float32{1, 2}))
}
