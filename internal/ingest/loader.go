package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/courselens/courselens/internal/store"
)

// Loader parses course documents from disk and indexes them into a store.
type Loader struct {
	store   store.CourseStore
	chunker *Chunker
	logger  *zap.Logger
}

// NewLoader creates a Loader. logger may be nil.
func NewLoader(st store.CourseStore, chunker *Chunker, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if chunker == nil {
		chunker = NewChunker(0, 0)
	}
	return &Loader{store: st, chunker: chunker, logger: logger}
}

// LoadFile parses and indexes a single course document. Courses already in
// the store (matched by exact title) are skipped unless replace is set.
func (l *Loader) LoadFile(ctx context.Context, path string, replace bool) (added bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	doc, err := Parse(f)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}

	if !replace {
		titles, err := l.store.ListCourseTitles(ctx)
		if err != nil {
			return false, err
		}
		for _, title := range titles {
			if title == doc.Meta.Title {
				l.logger.Debug("course already indexed", zap.String("title", title))
				return false, nil
			}
		}
	}

	chunks := l.chunker.ChunkDocument(doc)
	if err := l.store.AddCourse(ctx, doc.Meta, chunks); err != nil {
		return false, fmt.Errorf("index %s: %w", doc.Meta.Title, err)
	}

	l.logger.Info("course indexed",
		zap.String("title", doc.Meta.Title),
		zap.Int("lessons", len(doc.Meta.Lessons)),
		zap.Int("chunks", len(chunks)))
	return true, nil
}

// LoadDirectory indexes every supported document in dir (non-recursive).
// It returns the number of courses added.
func (l *Loader) LoadDirectory(ctx context.Context, dir string, replace bool) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read docs dir %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".txt", ".md":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	added := 0
	for _, name := range names {
		ok, err := l.LoadFile(ctx, filepath.Join(dir, name), replace)
		if err != nil {
			l.logger.Warn("skipping document", zap.String("file", name), zap.Error(err))
			continue
		}
		if ok {
			added++
		}
	}
	return added, nil
}
