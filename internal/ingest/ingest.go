// Package ingest loads course documents from disk into the semantic
// index. It runs once at startup; the core never watches for changes.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lectern/lectern/internal/course"
)

// Index is the slice of the semantic index ingestion needs.
type Index interface {
	UpsertCourse(ctx context.Context, c *course.Course) error
	UpsertChunks(ctx context.Context, chunks []course.Chunk) error
	Analytics(ctx context.Context) (int, []string, error)
}

// Ingestor parses course documents and writes them to the index.
type Ingestor struct {
	pipeline *course.Pipeline
	index    Index
	logger   *slog.Logger
}

func New(pipeline *course.Pipeline, idx Index, logger *slog.Logger) (*Ingestor, error) {
	if pipeline == nil {
		return nil, fmt.Errorf("pipeline is required")
	}
	if idx == nil {
		return nil, fmt.Errorf("index is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{pipeline: pipeline, index: idx, logger: logger}, nil
}

// AddCourseFolder ingests every .txt and .md document in dir, skipping
// courses already present in the index. Malformed documents are logged
// and skipped; the rest of the folder still loads. Returns the number
// of courses and chunks added.
func (in *Ingestor) AddCourseFolder(ctx context.Context, dir string) (int, int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("reading course folder: %w", err)
	}

	_, titles, err := in.index.Analytics(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("listing existing courses: %w", err)
	}
	existing := make(map[string]struct{}, len(titles))
	for _, t := range titles {
		existing[t] = struct{}{}
	}

	var names []string
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

	courses, chunks := 0, 0
	for _, name := range names {
		added, n, err := in.addDocument(ctx, filepath.Join(dir, name), existing)
		if err != nil {
			return courses, chunks, err
		}
		if added {
			courses++
			chunks += n
		}
	}

	in.logger.Info("course folder ingested",
		slog.String("dir", dir),
		slog.Int("courses", courses),
		slog.Int("chunks", chunks))
	return courses, chunks, nil
}

// addDocument ingests one file and reports whether a new course was
// added along with its chunk count.
func (in *Ingestor) addDocument(ctx context.Context, path string, existing map[string]struct{}) (bool, int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return false, 0, fmt.Errorf("reading %s: %w", path, err)
	}

	c, chunks, err := in.pipeline.Process(string(raw))
	var formatErr *course.FormatError
	if errors.As(err, &formatErr) {
		in.logger.Warn("skipping malformed course document",
			slog.String("path", path), slog.Any("error", err))
		return false, 0, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("processing %s: %w", path, err)
	}

	if _, ok := existing[c.Title]; ok {
		in.logger.Debug("course already indexed", slog.String("course", c.Title))
		return false, 0, nil
	}

	if err := in.index.UpsertCourse(ctx, c); err != nil {
		return false, 0, fmt.Errorf("indexing course %q: %w", c.Title, err)
	}
	if err := in.index.UpsertChunks(ctx, chunks); err != nil {
		return false, 0, fmt.Errorf("indexing chunks of %q: %w", c.Title, err)
	}

	existing[c.Title] = struct{}{}
	in.logger.Info("course ingested",
		slog.String("course", c.Title),
		slog.Int("lessons", len(c.Lessons)),
		slog.Int("chunks", len(chunks)))
	return true, len(chunks), nil
}
