// Package index is the semantic index over course material, backed by
// PostgreSQL + pgvector. It keeps two collections: one record per
// course for fuzzy title resolution, and every content chunk for
// retrieval. Both are queryable by vector similarity; chunks also by
// structured filter.
package index

import (
	"errors"
	"time"
)

const (
	// VectorDimension is the embedding dimensionality requested from the
	// embedder and declared in the schema. Both sides of a similarity
	// comparison must use the same model and dimension.
	VectorDimension int32 = 768

	// EmbedTimeout bounds a single embedding call.
	EmbedTimeout = 30 * time.Second

	// DefaultTopK bounds a content search when no explicit limit is set.
	DefaultTopK = 5

	// MaxTopK is the hard ceiling on requested result counts.
	MaxTopK = 20
)

var (
	// ErrUnavailable indicates the underlying index cannot be reached.
	// It propagates to the caller; retries are a higher-layer policy.
	ErrUnavailable = errors.New("index unavailable")

	// ErrNoCourseMatch indicates title resolution found no course.
	ErrNoCourseMatch = errors.New("no matching course")
)

// Hit is one content match: the chunk text, its owning course/lesson,
// and the cosine distance to the query (lower is more similar).
type Hit struct {
	Content      string
	CourseTitle  string
	LessonNumber *int
	ChunkIndex   int
	Distance     float64
}

// SearchResult is an ordered list of hits, most similar first. Empty
// is a valid outcome, distinct from an error.
type SearchResult []Hit

// searchParams collects the optional knobs of a content search.
type searchParams struct {
	courseTitle  string
	lessonNumber *int
	topK         int
}

// SearchOption configures a content search.
type SearchOption func(*searchParams)

// WithCourse restricts the search to one course by its exact,
// already-resolved title.
func WithCourse(title string) SearchOption {
	return func(p *searchParams) { p.courseTitle = title }
}

// WithLesson restricts the search to one lesson number.
func WithLesson(n int) SearchOption {
	return func(p *searchParams) { p.lessonNumber = &n }
}

// WithTopK overrides the result count bound. Values outside
// (0, MaxTopK] fall back to the default.
func WithTopK(k int) SearchOption {
	return func(p *searchParams) {
		if k > 0 && k <= MaxTopK {
			p.topK = k
		}
	}
}
