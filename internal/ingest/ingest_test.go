package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/lectern/lectern/internal/course"
	"github.com/lectern/lectern/internal/log"
)

// fakeIndex records upserts in memory.
type fakeIndex struct {
	courses []string
	chunks  int
}

func (f *fakeIndex) UpsertCourse(_ context.Context, c *course.Course) error {
	f.courses = append(f.courses, c.Title)
	return nil
}

func (f *fakeIndex) UpsertChunks(_ context.Context, chunks []course.Chunk) error {
	f.chunks += len(chunks)
	return nil
}

func (f *fakeIndex) Analytics(context.Context) (int, []string, error) {
	return len(f.courses), append([]string(nil), f.courses...), nil
}

func writeDoc(t *testing.T, dir, name, title string) {
	t.Helper()
	doc := "Course Title: " + title + "\n\nLesson 1: Start\nSome lesson content that gets chunked.\n"
	if err := os.WriteFile(filepath.Join(dir, name), []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
}

func newTestIngestor(t *testing.T, idx Index) *Ingestor {
	t.Helper()
	p := course.NewPipeline(course.NewChunker(800, 100), log.NewNop())
	in, err := New(p, idx, log.NewNop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return in
}

func TestAddCourseFolder(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "course1.txt", "Course One")
	writeDoc(t, dir, "course2.md", "Course Two")
	if err := os.WriteFile(filepath.Join(dir, "notes.json"), []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}

	idx := &fakeIndex{}
	in := newTestIngestor(t, idx)

	courses, chunks, err := in.AddCourseFolder(context.Background(), dir)
	if err != nil {
		t.Fatalf("AddCourseFolder() error = %v", err)
	}
	if courses != 2 {
		t.Errorf("courses = %d, want 2", courses)
	}
	if chunks == 0 || chunks != idx.chunks {
		t.Errorf("chunks = %d, index recorded %d", chunks, idx.chunks)
	}
	if len(idx.courses) != 2 {
		t.Errorf("indexed courses = %v", idx.courses)
	}
}

func TestAddCourseFolder_SkipsExisting(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "course1.txt", "Course One")

	idx := &fakeIndex{courses: []string{"Course One"}}
	in := newTestIngestor(t, idx)

	courses, chunks, err := in.AddCourseFolder(context.Background(), dir)
	if err != nil {
		t.Fatalf("AddCourseFolder() error = %v", err)
	}
	if courses != 0 || chunks != 0 {
		t.Errorf("re-ingested existing course: courses=%d chunks=%d", courses, chunks)
	}
}

func TestAddCourseFolder_SkipsMalformed(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "good.txt", "Good Course")
	if err := os.WriteFile(filepath.Join(dir, "bad.txt"),
		[]byte("No header here.\nJust prose.\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	idx := &fakeIndex{}
	in := newTestIngestor(t, idx)

	courses, _, err := in.AddCourseFolder(context.Background(), dir)
	if err != nil {
		t.Fatalf("AddCourseFolder() error = %v, malformed docs must be skipped", err)
	}
	if courses != 1 {
		t.Errorf("courses = %d, want 1", courses)
	}
	if len(idx.courses) != 1 || idx.courses[0] != "Good Course" {
		t.Errorf("indexed courses = %v", idx.courses)
	}
}

func TestAddCourseFolder_MissingDir(t *testing.T) {
	in := newTestIngestor(t, &fakeIndex{})

	if _, _, err := in.AddCourseFolder(context.Background(), "/does/not/exist"); err == nil {
		t.Fatal("AddCourseFolder() error = nil, want read failure")
	}
}
