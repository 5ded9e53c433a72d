package ingest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/courselens/courselens/internal/store"
)

// sentenceEnd matches a sentence boundary: terminal punctuation followed by
// whitespace. Abbreviation handling is deliberately simple.
var sentenceEnd = regexp.MustCompile(`(?s)(.*?[.!?])(?:\s+|$)`)

// Chunker splits lesson text into overlapping, sentence-aligned chunks.
type Chunker struct {
	Size    int // target chunk size in characters
	Overlap int // characters of trailing context carried into the next chunk
}

// NewChunker creates a Chunker with the given size and overlap. Non-positive
// size falls back to 800; negative overlap to 0.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = 800
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 4
	}
	return &Chunker{Size: size, Overlap: overlap}
}

// splitSentences returns text split on sentence boundaries. Text without
// terminal punctuation comes back as a single sentence.
func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var sentences []string
	consumed := 0
	for _, m := range sentenceEnd.FindAllStringSubmatchIndex(text, -1) {
		s := strings.TrimSpace(text[m[2]:m[3]])
		if s != "" {
			sentences = append(sentences, s)
		}
		consumed = m[1]
	}
	if rest := strings.TrimSpace(text[consumed:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

// ChunkText groups sentences into chunks no larger than Size (a single
// oversize sentence still becomes its own chunk), overlapping by whole
// sentences up to Overlap characters.
func (c *Chunker) ChunkText(text string) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	i := 0
	for i < len(sentences) {
		size := 0
		j := i
		for j < len(sentences) {
			extent := len(sentences[j])
			if size > 0 {
				extent++ // joining space
			}
			if size+extent > c.Size && size > 0 {
				break
			}
			size += extent
			j++
		}

		chunks = append(chunks, strings.Join(sentences[i:j], " "))
		if j >= len(sentences) {
			break
		}

		// Walk back whole sentences to build the overlap window.
		next := j
		carried := 0
		for next > i+1 && carried+len(sentences[next-1]) <= c.Overlap {
			next--
			carried += len(sentences[next]) + 1
		}
		i = next
	}
	return chunks
}

// ChunkLesson converts one lesson's text into store chunks, prefixing each
// chunk with its course and lesson context so search hits stay attributable.
func (c *Chunker) ChunkLesson(courseTitle string, lessonNumber int, text string) []store.Chunk {
	parts := c.ChunkText(text)
	if len(parts) == 0 {
		return nil
	}

	n := lessonNumber
	chunks := make([]store.Chunk, 0, len(parts))
	for _, part := range parts {
		chunks = append(chunks, store.Chunk{
			CourseTitle:  courseTitle,
			LessonNumber: &n,
			Content:      fmt.Sprintf("Course %s Lesson %d content: %s", courseTitle, lessonNumber, part),
		})
	}
	return chunks
}

// ChunkDocument produces all chunks for a parsed document in lesson order.
func (c *Chunker) ChunkDocument(doc *Document) []store.Chunk {
	var chunks []store.Chunk
	for _, lesson := range doc.Meta.Lessons {
		chunks = append(chunks, c.ChunkLesson(doc.Meta.Title, lesson.Number, doc.Content[lesson.Number])...)
	}
	return chunks
}
