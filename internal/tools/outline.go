package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/lectern/lectern/internal/index"
)

// OutlineToolName is the Genkit tool name for course outlines.
const OutlineToolName = "get_course_outline"

const outlineToolDescription = "Get the complete outline of a course: its title, link and full lesson list. " +
	"Use this for questions about a course's structure or what lessons it contains. " +
	"Course titles are matched fuzzily, so partial names work."

// OutlineInput defines the schema of an outline invocation.
type OutlineInput struct {
	CourseName string `json:"course_name" jsonschema_description:"Course title to look up (partial names work)"`
}

// OutlineTool returns the catalog record of a course as readable text.
type OutlineTool struct {
	index  Index
	logger *slog.Logger
}

func NewOutlineTool(idx Index, logger *slog.Logger) (*OutlineTool, error) {
	if idx == nil {
		return nil, fmt.Errorf("index is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OutlineTool{index: idx, logger: logger}, nil
}

func (t *OutlineTool) Name() string { return OutlineToolName }

func (t *OutlineTool) Define(g *genkit.Genkit) ai.Tool {
	return genkit.DefineTool(g, OutlineToolName, outlineToolDescription,
		func(ctx *ai.ToolContext, input OutlineInput) (string, error) {
			res, err := t.run(ctx, input)
			if err != nil {
				return "", err
			}
			return res.Text, nil
		})
}

func (t *OutlineTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	var input OutlineInput
	if err := decodeArgs(args, &input); err != nil {
		return Result{}, err
	}
	return t.run(ctx, input)
}

func (t *OutlineTool) run(ctx context.Context, input OutlineInput) (Result, error) {
	t.logger.Debug("course outline", slog.String("course", input.CourseName))

	if input.CourseName == "" {
		return Result{Text: "No course found matching ''"}, nil
	}

	title, err := t.index.ResolveCourseTitle(ctx, input.CourseName)
	if errors.Is(err, index.ErrNoCourseMatch) {
		return Result{Text: fmt.Sprintf("No course found matching '%s'", input.CourseName)}, nil
	}
	if err != nil {
		return Result{}, err
	}

	c, err := t.index.Outline(ctx, title)
	if errors.Is(err, index.ErrNoCourseMatch) {
		return Result{Text: fmt.Sprintf("No course found matching '%s'", input.CourseName)}, nil
	}
	if err != nil {
		return Result{}, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Course: %s", c.Title)
	if c.Link != "" {
		fmt.Fprintf(&b, "\nCourse Link: %s", c.Link)
	}
	if c.Instructor != "" {
		fmt.Fprintf(&b, "\nInstructor: %s", c.Instructor)
	}
	fmt.Fprintf(&b, "\nLessons (%d):", len(c.Lessons))
	for _, l := range c.Lessons {
		fmt.Fprintf(&b, "\n%d. %s", l.Number, l.Title)
	}

	return Result{
		Text:    b.String(),
		Sources: []Source{{Text: c.Title, URL: c.Link}},
	}, nil
}
