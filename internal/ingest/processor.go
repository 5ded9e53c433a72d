// Package ingest parses course documents and prepares chunks for indexing.
package ingest

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/courselens/courselens/internal/store"
)

var lessonHeading = regexp.MustCompile(`^Lesson\s+(\d+):\s*(.+)$`)

// Document is a parsed course file: metadata plus per-lesson content.
type Document struct {
	Meta    store.CourseMeta
	Content map[int]string // lesson number -> raw lesson text
}

// Parse reads a course document. The expected layout is a header block
// (Course Title, optional Course Link and Course Instructor) followed by
// "Lesson N: Title" sections, each with an optional "Lesson Link:" line.
func Parse(r io.Reader) (*Document, error) {
	doc := &Document{Content: make(map[int]string)}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	currentLesson := -1
	var body strings.Builder
	flush := func() {
		if currentLesson >= 0 {
			doc.Content[currentLesson] = strings.TrimSpace(body.String())
		}
		body.Reset()
	}

	for scanner.Scan() {
		line := scanner.Text()

		if m := lessonHeading.FindStringSubmatch(line); m != nil {
			flush()
			num, err := strconv.Atoi(m[1])
			if err != nil {
				return nil, fmt.Errorf("lesson heading %q: %w", line, err)
			}
			currentLesson = num
			doc.Meta.Lessons = append(doc.Meta.Lessons, store.Lesson{
				Number: num,
				Title:  strings.TrimSpace(m[2]),
			})
			continue
		}

		if currentLesson < 0 {
			switch {
			case strings.HasPrefix(line, "Course Title:"):
				doc.Meta.Title = strings.TrimSpace(strings.TrimPrefix(line, "Course Title:"))
			case strings.HasPrefix(line, "Course Link:"):
				doc.Meta.Link = strings.TrimSpace(strings.TrimPrefix(line, "Course Link:"))
			case strings.HasPrefix(line, "Course Instructor:"):
				doc.Meta.Instructor = strings.TrimSpace(strings.TrimPrefix(line, "Course Instructor:"))
			}
			continue
		}

		if strings.HasPrefix(line, "Lesson Link:") {
			link := strings.TrimSpace(strings.TrimPrefix(line, "Lesson Link:"))
			if n := len(doc.Meta.Lessons); n > 0 {
				doc.Meta.Lessons[n-1].Link = link
			}
			continue
		}

		body.WriteString(line)
		body.WriteString("\n")
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	if strings.TrimSpace(doc.Meta.Title) == "" {
		return nil, fmt.Errorf("document missing Course Title header")
	}
	return doc, nil
}
