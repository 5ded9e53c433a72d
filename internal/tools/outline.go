package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/courselens/courselens/internal/store"
)

// OutlineTool implements get_course_outline over the retrieval backend.
type OutlineTool struct {
	store store.CourseStore
}

// NewOutlineTool builds the course outline tool.
func NewOutlineTool(st store.CourseStore) *OutlineTool {
	return &OutlineTool{store: st}
}

func (t *OutlineTool) Name() string {
	return "get_course_outline"
}

func (t *OutlineTool) Description() string {
	return "Get the complete outline of a course including title, link, and all lessons"
}

func (t *OutlineTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"course_name": map[string]any{
				"type":        "string",
				"description": "Course title (partial matches work, e.g. 'MCP', 'Introduction')",
			},
		},
		"required": []string{"course_name"},
	}
}

// Execute resolves the course and renders its outline. Backend failures
// become the tool's output so the model can report them.
func (t *OutlineTool) Execute(ctx context.Context, input map[string]any) (Result, error) {
	courseName := stringArg(input, "course_name")
	if strings.TrimSpace(courseName) == "" {
		return Result{}, fmt.Errorf("course_name is required")
	}

	meta, err := t.store.ResolveCourse(ctx, courseName)
	if err != nil {
		return Result{Content: err.Error()}, nil
	}
	if meta == nil {
		return Result{Content: fmt.Sprintf("No course found matching '%s'", courseName)}, nil
	}

	lessons := append([]store.Lesson(nil), meta.Lessons...)
	sort.Slice(lessons, func(i, j int) bool { return lessons[i].Number < lessons[j].Number })

	var b strings.Builder
	fmt.Fprintf(&b, "Course Title: %s\n", meta.Title)
	if meta.Link != "" {
		fmt.Fprintf(&b, "Course Link: %s\n", meta.Link)
	}
	fmt.Fprintf(&b, "Total Lessons: %d\n", len(lessons))
	if len(lessons) > 0 {
		b.WriteString("\n")
		for _, l := range lessons {
			fmt.Fprintf(&b, "Lesson %d: %s\n", l.Number, l.Title)
		}
	}

	return Result{Content: strings.TrimRight(b.String(), "\n")}, nil
}
