package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/courselens/courselens/internal/store"
)

// SearchTool implements search_course_content over the retrieval backend.
type SearchTool struct {
	store store.CourseStore
	limit int
}

// NewSearchTool builds the content search tool. limit caps returned chunks.
func NewSearchTool(st store.CourseStore, limit int) *SearchTool {
	if limit <= 0 {
		limit = 5
	}
	return &SearchTool{store: st, limit: limit}
}

func (t *SearchTool) Name() string {
	return "search_course_content"
}

func (t *SearchTool) Description() string {
	return "Search course materials with smart course name matching and lesson filtering"
}

func (t *SearchTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "What to search for in the course content",
			},
			"course_name": map[string]any{
				"type":        "string",
				"description": "Course title (partial matches work, e.g. 'MCP', 'Introduction')",
			},
			"lesson_number": map[string]any{
				"type":        "integer",
				"description": "Specific lesson number to search within (e.g. 1, 2, 3)",
			},
		},
		"required": []string{"query"},
	}
}

// Execute searches the backend and renders source-annotated result text.
// Backend failures become the tool's output so the model can report them.
func (t *SearchTool) Execute(ctx context.Context, input map[string]any) (Result, error) {
	query := stringArg(input, "query")
	if strings.TrimSpace(query) == "" {
		return Result{}, fmt.Errorf("query is required")
	}
	courseName := stringArg(input, "course_name")
	lessonNumber := intArg(input, "lesson_number")

	chunks, err := t.store.Search(ctx, query, courseName, lessonNumber, t.limit)
	if err != nil {
		return Result{Content: err.Error()}, nil
	}
	if len(chunks) == 0 {
		return Result{Content: noResultsMessage(courseName, lessonNumber)}, nil
	}

	var (
		sections []string
		sources  []string
	)
	for _, c := range chunks {
		header := c.CourseTitle
		if c.LessonNumber != nil {
			header = fmt.Sprintf("%s - Lesson %d", c.CourseTitle, *c.LessonNumber)
		}
		sections = append(sections, fmt.Sprintf("[%s]\n%s", header, c.Content))
		sources = append(sources, header)
	}

	return Result{Content: strings.Join(sections, "\n\n"), Sources: sources}, nil
}

func noResultsMessage(courseName string, lessonNumber *int) string {
	var b strings.Builder
	b.WriteString("No relevant content found")
	if strings.TrimSpace(courseName) != "" {
		fmt.Fprintf(&b, " in course '%s'", courseName)
	}
	if lessonNumber != nil {
		fmt.Fprintf(&b, " in lesson %d", *lessonNumber)
	}
	b.WriteString(".")
	return b.String()
}
