package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/lectern/lectern/internal/course"
	"github.com/lectern/lectern/internal/index"
)

// SearchToolName is the Genkit tool name for content search.
const SearchToolName = "search_course_content"

const searchToolDescription = "Search course materials with smart course name matching and lesson filtering. " +
	"Use this for questions about specific course content or detailed educational materials. " +
	"Course titles are matched fuzzily, so partial names work."

// Index is the slice of the semantic index the tools need.
type Index interface {
	ResolveCourseTitle(ctx context.Context, name string) (string, error)
	SearchContent(ctx context.Context, query string, opts ...index.SearchOption) (index.SearchResult, error)
	Outline(ctx context.Context, title string) (*course.Course, error)
}

// SearchInput defines the schema of a content search invocation.
type SearchInput struct {
	Query        string `json:"query" jsonschema_description:"What to search for in the course content"`
	CourseName   string `json:"course_name,omitempty" jsonschema_description:"Course title to search within (partial names work, e.g. 'MCP', 'Introduction')"`
	LessonNumber *int   `json:"lesson_number,omitempty" jsonschema_description:"Specific lesson number to search within (e.g. 1, 2, 3)"`
}

// SearchTool performs filtered similarity search over course content.
type SearchTool struct {
	index  Index
	topK   int
	logger *slog.Logger
}

func NewSearchTool(idx Index, topK int, logger *slog.Logger) (*SearchTool, error) {
	if idx == nil {
		return nil, fmt.Errorf("index is required")
	}
	if topK <= 0 {
		topK = index.DefaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchTool{index: idx, topK: topK, logger: logger}, nil
}

func (t *SearchTool) Name() string { return SearchToolName }

func (t *SearchTool) Define(g *genkit.Genkit) ai.Tool {
	return genkit.DefineTool(g, SearchToolName, searchToolDescription,
		func(ctx *ai.ToolContext, input SearchInput) (string, error) {
			res, err := t.run(ctx, input)
			if err != nil {
				return "", err
			}
			return res.Text, nil
		})
}

func (t *SearchTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	var input SearchInput
	if err := decodeArgs(args, &input); err != nil {
		return Result{}, err
	}
	return t.run(ctx, input)
}

func (t *SearchTool) run(ctx context.Context, input SearchInput) (Result, error) {
	t.logger.Debug("content search",
		slog.String("query", input.Query),
		slog.String("course", input.CourseName),
		slog.Any("lesson", input.LessonNumber))

	var opts []index.SearchOption
	if input.CourseName != "" {
		title, err := t.index.ResolveCourseTitle(ctx, input.CourseName)
		if errors.Is(err, index.ErrNoCourseMatch) {
			// Relayed conversationally by the model, not raised.
			return Result{Text: fmt.Sprintf("No course found matching '%s'", input.CourseName)}, nil
		}
		if err != nil {
			return Result{}, err
		}
		opts = append(opts, index.WithCourse(title))
	}
	if input.LessonNumber != nil {
		opts = append(opts, index.WithLesson(*input.LessonNumber))
	}
	opts = append(opts, index.WithTopK(t.topK))

	hits, err := t.index.SearchContent(ctx, input.Query, opts...)
	if err != nil {
		return Result{}, err
	}
	if len(hits) == 0 {
		return Result{Text: emptyMessage(input.CourseName, input.LessonNumber)}, nil
	}

	return t.format(ctx, hits), nil
}

// emptyMessage names the filters that yielded nothing.
func emptyMessage(courseName string, lessonNumber *int) string {
	var b strings.Builder
	b.WriteString("No relevant content found")
	if courseName != "" {
		fmt.Fprintf(&b, " in course '%s'", courseName)
	}
	if lessonNumber != nil {
		fmt.Fprintf(&b, " in lesson %d", *lessonNumber)
	}
	b.WriteString(".")
	return b.String()
}

// format renders hits as bracketed course/lesson headers over chunk
// text, and captures one Source per hit. Lesson links come from the
// catalog record, looked up once per distinct course.
func (t *SearchTool) format(ctx context.Context, hits index.SearchResult) Result {
	lessonLinks := map[string]map[int]string{}
	linkFor := func(title string, lesson int) string {
		links, ok := lessonLinks[title]
		if !ok {
			links = map[int]string{}
			if c, err := t.index.Outline(ctx, title); err == nil {
				for _, l := range c.Lessons {
					links[l.Number] = l.Link
				}
			} else {
				t.logger.Debug("outline lookup for source links failed",
					slog.String("course", title), slog.Any("error", err))
			}
			lessonLinks[title] = links
		}
		return links[lesson]
	}

	var blocks []string
	sources := make([]Source, 0, len(hits))
	for _, h := range hits {
		header := "[" + h.CourseTitle
		label := h.CourseTitle
		url := ""
		if h.LessonNumber != nil {
			header += fmt.Sprintf(" - Lesson %d", *h.LessonNumber)
			label += fmt.Sprintf(" - Lesson %d", *h.LessonNumber)
			url = linkFor(h.CourseTitle, *h.LessonNumber)
		}
		header += "]"
		blocks = append(blocks, header+"\n"+h.Content)
		sources = append(sources, Source{Text: label, URL: url})
	}

	return Result{Text: strings.Join(blocks, "\n\n"), Sources: sources}
}
