package store

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-process CourseStore. Ranking uses embedding cosine
// similarity when an Embedder is configured and token overlap otherwise.
type MemoryStore struct {
	embedder Embedder

	mu      sync.RWMutex
	courses []CourseMeta
	chunks  []indexedChunk
}

type indexedChunk struct {
	Chunk
	embedding []float32
	tokens    []string
}

// NewMemoryStore builds an empty in-memory store. embedder may be nil.
func NewMemoryStore(embedder Embedder) *MemoryStore {
	return &MemoryStore{embedder: embedder}
}

// AddCourse indexes a course and its chunks. Re-adding a title replaces it.
func (s *MemoryStore) AddCourse(ctx context.Context, meta CourseMeta, chunks []Chunk) error {
	if strings.TrimSpace(meta.Title) == "" {
		return fmt.Errorf("course title is required")
	}

	indexed := make([]indexedChunk, 0, len(chunks))
	for _, c := range chunks {
		ic := indexedChunk{Chunk: c, tokens: tokenize(c.Content)}
		if s.embedder != nil {
			emb, err := s.embedder.Embed(ctx, c.Content)
			if err != nil {
				return fmt.Errorf("embed chunk: %w", err)
			}
			ic.embedding = emb
		}
		indexed = append(indexed, ic)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.courses {
		if strings.EqualFold(existing.Title, meta.Title) {
			s.courses[i] = meta
			kept := s.chunks[:0]
			for _, c := range s.chunks {
				if !strings.EqualFold(c.CourseTitle, meta.Title) {
					kept = append(kept, c)
				}
			}
			s.chunks = append(kept, indexed...)
			return nil
		}
	}
	s.courses = append(s.courses, meta)
	s.chunks = append(s.chunks, indexed...)
	return nil
}

// Search ranks chunks against the query with optional course/lesson filters.
func (s *MemoryStore) Search(ctx context.Context, query, courseName string, lessonNumber *int, limit int) ([]Chunk, error) {
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

	var queryEmbedding []float32
	if s.embedder != nil {
		emb, err := s.embedder.Embed(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		queryEmbedding = emb
	}
	queryTokens := tokenize(query)

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		chunk Chunk
		score float64
	}
	var hits []scored
	for _, c := range s.chunks {
		if courseFilter != "" && !strings.EqualFold(c.CourseTitle, courseFilter) {
			continue
		}
		if lessonNumber != nil && (c.LessonNumber == nil || *c.LessonNumber != *lessonNumber) {
			continue
		}
		var score float64
		if queryEmbedding != nil && c.embedding != nil {
			score = cosineSimilarity(queryEmbedding, c.embedding)
		} else {
			score = overlapScore(queryTokens, c.tokens)
		}
		if score <= 0 {
			continue
		}
		hits = append(hits, scored{chunk: c.Chunk, score: score})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > limit {
		hits = hits[:limit]
	}

	out := make([]Chunk, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.chunk)
	}
	return out, nil
}

// ResolveCourse finds the best match for a partial course name: exact title,
// then substring, then highest token overlap.
func (s *MemoryStore) ResolveCourse(_ context.Context, name string) (*CourseMeta, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("course name is required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	lower := strings.ToLower(name)
	for i := range s.courses {
		if strings.ToLower(s.courses[i].Title) == lower {
			meta := s.courses[i]
			return &meta, nil
		}
	}
	for i := range s.courses {
		if strings.Contains(strings.ToLower(s.courses[i].Title), lower) {
			meta := s.courses[i]
			return &meta, nil
		}
	}

	nameTokens := tokenize(name)
	bestScore := 0.0
	bestIdx := -1
	for i := range s.courses {
		score := overlapScore(nameTokens, tokenize(s.courses[i].Title))
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	if bestIdx >= 0 {
		meta := s.courses[bestIdx]
		return &meta, nil
	}
	return nil, nil
}

// ListCourseTitles returns indexed titles in insertion order.
func (s *MemoryStore) ListCourseTitles(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	titles := make([]string, 0, len(s.courses))
	for _, c := range s.courses {
		titles = append(titles, c.Title)
	}
	return titles, nil
}

// CourseCount returns the number of indexed courses.
func (s *MemoryStore) CourseCount(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.courses), nil
}

func overlapScore(query, doc []string) float64 {
	if len(query) == 0 || len(doc) == 0 {
		return 0
	}
	seen := make(map[string]struct{}, len(doc))
	for _, t := range doc {
		seen[t] = struct{}{}
	}
	var overlap int
	for _, q := range query {
		if _, ok := seen[q]; ok {
			overlap++
		}
	}
	return float64(overlap) / float64(len(query))
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

var tokenRe = regexp.MustCompile(`[A-Za-z0-9_]+`)

func tokenize(s string) []string {
	return tokenRe.FindAllString(strings.ToLower(s), -1)
}
