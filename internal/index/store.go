package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/genai"

	"github.com/lectern/lectern/internal/course"
)

// Store is the semantic index backed by PostgreSQL + pgvector.
//
// Store is safe for concurrent reads; ingestion writes should be
// serialized against reads of the same collection (ingest-then-serve).
type Store struct {
	pool *pgxpool.Pool
	// embedder produces query and document vectors. Same model on both
	// sides of every similarity comparison.
	embedder ai.Embedder
	// resolveThreshold, when > 0, is the minimum cosine similarity for
	// title resolution to count as a match. Zero keeps the historical
	// nearest-wins behavior.
	resolveThreshold float64
	logger           *slog.Logger
}

// NewStore creates a semantic index Store.
func NewStore(pool *pgxpool.Pool, embedder ai.Embedder, resolveThreshold float64, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, embedder: embedder, resolveThreshold: resolveThreshold, logger: logger}, nil
}

// embed generates a vector embedding for the given text.
func (s *Store) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	dim := VectorDimension
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("embedding text: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, fmt.Errorf("empty embedding response")
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}

// UpsertCourse writes one catalog record for the course: its title as
// the embeddable text, plus link, instructor and the lesson list as
// metadata. Re-upserting the same title replaces the record.
func (s *Store) UpsertCourse(ctx context.Context, c *course.Course) error {
	if c == nil || c.Title == "" {
		return fmt.Errorf("course with a title is required")
	}

	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()

	vec, err := s.embed(embedCtx, c.Title)
	if err != nil {
		return fmt.Errorf("embedding course title: %w", err)
	}

	lessons, err := json.Marshal(c.Lessons)
	if err != nil {
		return fmt.Errorf("encoding lessons: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO course_catalog (title, link, instructor, lessons, embedding)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (title) DO UPDATE
		 SET link = EXCLUDED.link, instructor = EXCLUDED.instructor,
		     lessons = EXCLUDED.lessons, embedding = EXCLUDED.embedding`,
		c.Title, c.Link, c.Instructor, lessons, vec,
	)
	if err != nil {
		return unavailable("upserting course record", err)
	}
	return nil
}

// UpsertChunks embeds and stores content chunks. Existing chunks for
// the same course titles are replaced so re-ingestion stays idempotent.
func (s *Store) UpsertChunks(ctx context.Context, chunks []course.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	// Embed before opening the transaction so no connection is held
	// across model calls.
	vecs := make([]pgvector.Vector, len(chunks))
	for i, ch := range chunks {
		embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
		vec, err := s.embed(embedCtx, ch.Text)
		cancel()
		if err != nil {
			return fmt.Errorf("embedding chunk %d of %q: %w", ch.Index, ch.CourseTitle, err)
		}
		vecs[i] = vec
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return unavailable("beginning chunk transaction", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", rbErr)
		}
	}()

	titles := map[string]struct{}{}
	for _, ch := range chunks {
		if _, seen := titles[ch.CourseTitle]; !seen {
			titles[ch.CourseTitle] = struct{}{}
			if _, err := tx.Exec(ctx,
				`DELETE FROM course_chunks WHERE course_title = $1`, ch.CourseTitle); err != nil {
				return unavailable("clearing stale chunks", err)
			}
		}
	}

	for i, ch := range chunks {
		_, err := tx.Exec(ctx,
			`INSERT INTO course_chunks (course_title, lesson_number, chunk_index, content, embedding)
			 VALUES ($1, $2, $3, $4, $5)`,
			ch.CourseTitle, ch.LessonNumber, ch.Index, ch.Text, vecs[i],
		)
		if err != nil {
			return unavailable("inserting chunk", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return unavailable("committing chunks", err)
	}

	s.logger.Debug("upserted chunks", slog.Int("count", len(chunks)))
	return nil
}

// ResolveCourseTitle maps a possibly partial course reference to the
// single best-scoring canonical title. With no threshold configured the
// nearest record always wins, even for unrelated input; an empty
// catalog yields ErrNoCourseMatch.
func (s *Store) ResolveCourseTitle(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", ErrNoCourseMatch
	}

	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()

	vec, err := s.embed(embedCtx, name)
	if err != nil {
		return "", fmt.Errorf("embedding course reference: %w", err)
	}

	var title string
	var similarity float64
	err = s.pool.QueryRow(ctx,
		`SELECT title, 1 - (embedding <=> $1) AS similarity
		 FROM course_catalog
		 ORDER BY embedding <=> $1
		 LIMIT 1`,
		vec,
	).Scan(&title, &similarity)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return "", ErrNoCourseMatch
	case err != nil:
		return "", unavailable("resolving course title", err)
	}

	if s.resolveThreshold > 0 && similarity < s.resolveThreshold {
		s.logger.Debug("course resolution below threshold",
			slog.String("name", name), slog.String("nearest", title),
			slog.Float64("similarity", similarity))
		return "", ErrNoCourseMatch
	}
	return title, nil
}

// SearchContent runs a similarity query against the content collection.
// The filter is a conjunction of the options given: exact course title
// (already resolved) and/or exact lesson number; no options means a
// full-collection search. An empty result is not an error.
func (s *Store) SearchContent(ctx context.Context, query string, opts ...SearchOption) (SearchResult, error) {
	p := searchParams{topK: DefaultTopK}
	for _, opt := range opts {
		opt(&p)
	}

	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()

	vec, err := s.embed(embedCtx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	sql, args := buildContentQuery(vec, p)
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, unavailable("searching content", err)
	}
	defer rows.Close()

	var result SearchResult
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.Content, &h.CourseTitle, &h.LessonNumber, &h.ChunkIndex, &h.Distance); err != nil {
			return nil, unavailable("scanning hit", err)
		}
		result = append(result, h)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterating hits", err)
	}
	return result, nil
}

// buildContentQuery assembles the filtered similarity query. Exposed
// for tests; the argument order is vector, then filter values, then
// the limit.
func buildContentQuery(vec pgvector.Vector, p searchParams) (string, []any) {
	sql := `SELECT content, course_title, lesson_number, chunk_index, embedding <=> $1 AS distance
	 FROM course_chunks`
	args := []any{vec}

	var where []string
	if p.courseTitle != "" {
		args = append(args, p.courseTitle)
		where = append(where, fmt.Sprintf("course_title = $%d", len(args)))
	}
	if p.lessonNumber != nil {
		args = append(args, *p.lessonNumber)
		where = append(where, fmt.Sprintf("lesson_number = $%d", len(args)))
	}
	for i, cond := range where {
		if i == 0 {
			sql += "\n	 WHERE " + cond
		} else {
			sql += " AND " + cond
		}
	}

	args = append(args, p.topK)
	sql += fmt.Sprintf("\n	 ORDER BY embedding <=> $1\n	 LIMIT $%d", len(args))
	return sql, args
}

// Outline returns the catalog record for an exact course title: link,
// instructor and the ordered lesson list.
func (s *Store) Outline(ctx context.Context, title string) (*course.Course, error) {
	var c course.Course
	var lessons []byte
	err := s.pool.QueryRow(ctx,
		`SELECT title, link, instructor, lessons FROM course_catalog WHERE title = $1`,
		title,
	).Scan(&c.Title, &c.Link, &c.Instructor, &lessons)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, ErrNoCourseMatch
	case err != nil:
		return nil, unavailable("loading course outline", err)
	}
	if len(lessons) > 0 {
		if err := json.Unmarshal(lessons, &c.Lessons); err != nil {
			return nil, fmt.Errorf("decoding lessons for %q: %w", title, err)
		}
	}
	return &c, nil
}

// Analytics returns the course count and the full list of titles.
func (s *Store) Analytics(ctx context.Context) (int, []string, error) {
	rows, err := s.pool.Query(ctx, `SELECT title FROM course_catalog ORDER BY title`)
	if err != nil {
		return 0, nil, unavailable("listing courses", err)
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return 0, nil, unavailable("scanning title", err)
		}
		titles = append(titles, t)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, unavailable("iterating titles", err)
	}
	return len(titles), titles, nil
}

// ClearAll removes every course record and content chunk.
func (s *Store) ClearAll(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `TRUNCATE course_chunks, course_catalog`); err != nil {
		return unavailable("clearing index", err)
	}
	s.logger.Info("cleared semantic index")
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}
