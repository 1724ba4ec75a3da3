package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/lectern/lectern/internal/course"
	"github.com/lectern/lectern/internal/index"
	"github.com/lectern/lectern/internal/log"
	"github.com/lectern/lectern/internal/tools"
)

// stubIndex implements tools.Index for protocol tests.
type stubIndex struct {
	resolveFunc func(ctx context.Context, name string) (string, error)
	searchFunc  func(ctx context.Context, query string, opts ...index.SearchOption) (index.SearchResult, error)
}

func (s *stubIndex) ResolveCourseTitle(ctx context.Context, name string) (string, error) {
	if s.resolveFunc == nil {
		return "", index.ErrNoCourseMatch
	}
	return s.resolveFunc(ctx, name)
}

func (s *stubIndex) SearchContent(ctx context.Context, query string, opts ...index.SearchOption) (index.SearchResult, error) {
	if s.searchFunc == nil {
		return nil, nil
	}
	return s.searchFunc(ctx, query, opts...)
}

func (s *stubIndex) Outline(ctx context.Context, title string) (*course.Course, error) {
	return nil, index.ErrNoCourseMatch
}

func intPtr(n int) *int { return &n }

// newTestGenerator wires a Generator over the given index stub and
// returns it together with the recorded model requests. The script
// supplies one response per model call, in order.
func newTestGenerator(t *testing.T, idx tools.Index, script ...func(*modelRequest) (*ai.ModelResponse, error)) (*Generator, *[]*modelRequest) {
	t.Helper()
	g := genkit.Init(context.Background())

	search, err := tools.NewSearchTool(idx, 5, log.NewNop())
	if err != nil {
		t.Fatalf("NewSearchTool() error = %v", err)
	}
	outline, err := tools.NewOutlineTool(idx, log.NewNop())
	if err != nil {
		t.Fatalf("NewOutlineTool() error = %v", err)
	}
	registry, err := tools.NewRegistry(g, log.NewNop(), search, outline)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	gen, err := NewGenerator(GeneratorConfig{
		Genkit:    g,
		Registry:  registry,
		Logger:    log.NewNop(),
		ModelName: "googleai/gemini-2.5-flash",
		MaxTokens: 800,
	})
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}

	var calls []*modelRequest
	recorded := &calls
	gen.generate = func(_ context.Context, req *modelRequest) (*ai.ModelResponse, error) {
		*recorded = append(*recorded, req)
		n := len(*recorded) - 1
		if n >= len(script) {
			t.Fatalf("unexpected model call %d", n+1)
		}
		return script[n](req)
	}
	return gen, recorded
}

func textResponse(text string) *ai.ModelResponse {
	return &ai.ModelResponse{Message: ai.NewModelMessage(ai.NewTextPart(text))}
}

func toolRequestResponse(reqs ...*ai.ToolRequest) *ai.ModelResponse {
	parts := make([]*ai.Part, len(reqs))
	for i, r := range reqs {
		parts[i] = ai.NewToolRequestPart(r)
	}
	return &ai.ModelResponse{Message: ai.NewModelMessage(parts...)}
}

func respond(resp *ai.ModelResponse) func(*modelRequest) (*ai.ModelResponse, error) {
	return func(*modelRequest) (*ai.ModelResponse, error) { return resp, nil }
}

func TestGenerate_DirectAnswer(t *testing.T) {
	gen, calls := newTestGenerator(t, &stubIndex{}, respond(textResponse("2+2 equals 4.")))

	answer, sources, err := gen.Generate(context.Background(), Instruction("what is 2+2"), "")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if answer != "2+2 equals 4." {
		t.Errorf("answer = %q", answer)
	}
	if len(sources) != 0 {
		t.Errorf("sources = %v, want empty for a no-retrieval answer", sources)
	}
	if len(*calls) != 1 {
		t.Fatalf("model called %d times, want 1", len(*calls))
	}

	decide := (*calls)[0]
	if len(decide.tools) != 2 {
		t.Errorf("decide stage offered %d tools, want 2", len(decide.tools))
	}
	if !decide.returnRequests {
		t.Error("decide stage must request tool-call return")
	}
}

func TestGenerate_ToolRound(t *testing.T) {
	idx := &stubIndex{
		searchFunc: func(_ context.Context, query string, _ ...index.SearchOption) (index.SearchResult, error) {
			return index.SearchResult{
				{Content: "Lesson one introduces chunking.", CourseTitle: "Intro to X", LessonNumber: intPtr(1)},
			}, nil
		},
	}
	gen, calls := newTestGenerator(t, idx,
		respond(toolRequestResponse(&ai.ToolRequest{
			Name: tools.SearchToolName,
			Ref:  "call-1",
			Input: map[string]any{
				"query": "what is covered in lesson 1?",
			},
		})),
		respond(textResponse("Lesson 1 covers chunking.")),
	)

	answer, sources, err := gen.Generate(context.Background(), Instruction("lesson 1?"), "")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if answer != "Lesson 1 covers chunking." {
		t.Errorf("answer = %q", answer)
	}
	if len(sources) != 1 || sources[0].Text != "Intro to X - Lesson 1" {
		t.Errorf("sources = %+v", sources)
	}
	if len(*calls) != 2 {
		t.Fatalf("model called %d times, want 2", len(*calls))
	}

	synth := (*calls)[1]
	if len(synth.tools) != 0 {
		t.Errorf("synthesize stage offered %d tool schemas, must offer none", len(synth.tools))
	}
	if synth.returnRequests {
		t.Error("synthesize stage must not request tool-call return")
	}
	if len(synth.messages) != 3 {
		t.Fatalf("synthesize stage got %d messages, want 3", len(synth.messages))
	}
	toolMsg := synth.messages[2]
	if toolMsg.Role != ai.RoleTool {
		t.Errorf("final message role = %q, want tool", toolMsg.Role)
	}
	tr := toolMsg.Content[0].ToolResponse
	if tr == nil || tr.Ref != "call-1" || tr.Name != tools.SearchToolName {
		t.Fatalf("tool response = %+v", tr)
	}
	if out, _ := tr.Output.(string); !strings.Contains(out, "[Intro to X - Lesson 1]") {
		t.Errorf("tool output = %v", tr.Output)
	}
}

func TestGenerate_AllRequestsExecutedBeforeSynthesis(t *testing.T) {
	var queries []string
	idx := &stubIndex{
		searchFunc: func(_ context.Context, query string, _ ...index.SearchOption) (index.SearchResult, error) {
			queries = append(queries, query)
			return index.SearchResult{
				{Content: "text for " + query, CourseTitle: "Course " + query},
			}, nil
		},
	}
	gen, calls := newTestGenerator(t, idx,
		respond(toolRequestResponse(
			&ai.ToolRequest{Name: tools.SearchToolName, Ref: "a", Input: map[string]any{"query": "first"}},
			&ai.ToolRequest{Name: tools.SearchToolName, Ref: "b", Input: map[string]any{"query": "second"}},
		)),
		respond(textResponse("both answered")),
	)

	_, sources, err := gen.Generate(context.Background(), Instruction("compare"), "")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(queries) != 2 {
		t.Fatalf("executed %d searches, want 2", len(queries))
	}
	if got := len((*calls)[1].messages[2].Content); got != 2 {
		t.Errorf("synthesize stage got %d tool results, want 2", got)
	}
	// Latest search's sources win.
	if len(sources) != 1 || sources[0].Text != "Course second" {
		t.Errorf("sources = %+v, want latest search only", sources)
	}
}

func TestGenerate_UnknownToolDegradesToMessage(t *testing.T) {
	gen, calls := newTestGenerator(t, &stubIndex{},
		respond(toolRequestResponse(&ai.ToolRequest{Name: "bogus_tool", Ref: "x", Input: map[string]any{}})),
		respond(textResponse("I cannot do that.")),
	)

	answer, _, err := gen.Generate(context.Background(), Instruction("q"), "")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if answer != "I cannot do that." {
		t.Errorf("answer = %q", answer)
	}
	out, _ := (*calls)[1].messages[2].Content[0].ToolResponse.Output.(string)
	if out != "Tool 'bogus_tool' not found" {
		t.Errorf("tool output = %q", out)
	}
}

func TestGenerate_ToolFailureStillSynthesized(t *testing.T) {
	idx := &stubIndex{
		searchFunc: func(_ context.Context, _ string, _ ...index.SearchOption) (index.SearchResult, error) {
			return nil, fmt.Errorf("%w: connection refused", index.ErrUnavailable)
		},
	}
	gen, calls := newTestGenerator(t, idx,
		respond(toolRequestResponse(&ai.ToolRequest{
			Name: tools.SearchToolName, Ref: "x", Input: map[string]any{"query": "q"},
		})),
		respond(textResponse("The course index is currently unreachable.")),
	)

	answer, sources, err := gen.Generate(context.Background(), Instruction("q"), "")
	if err != nil {
		t.Fatalf("Generate() error = %v, tool failures must flow to synthesis", err)
	}
	if answer != "The course index is currently unreachable." {
		t.Errorf("answer = %q", answer)
	}
	if len(sources) != 0 {
		t.Errorf("sources = %v, want none", sources)
	}
	out, _ := (*calls)[1].messages[2].Content[0].ToolResponse.Output.(string)
	if !strings.Contains(out, "Tool execution failed") {
		t.Errorf("tool output = %q", out)
	}
}

func TestGenerate_ModelError(t *testing.T) {
	gen, _ := newTestGenerator(t, &stubIndex{},
		func(*modelRequest) (*ai.ModelResponse, error) {
			return nil, errors.New("503 unavailable")
		},
	)

	_, _, err := gen.Generate(context.Background(), Instruction("q"), "")
	if !errors.Is(err, ErrModelService) {
		t.Fatalf("error = %v, want ErrModelService", err)
	}
}

func TestGenerate_HistoryInSystemText(t *testing.T) {
	gen, calls := newTestGenerator(t, &stubIndex{}, respond(textResponse("ok")))

	history := "User: first question\nAssistant: first answer"
	if _, _, err := gen.Generate(context.Background(), Instruction("second"), history); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	system := (*calls)[0].system
	if !strings.Contains(system, historyHeader) || !strings.Contains(system, "first answer") {
		t.Errorf("system text missing history:\n%s", system)
	}
	if !strings.HasPrefix(system, systemPrompt) {
		t.Error("system text must begin with the base prompt")
	}
}

func TestGenerate_NoHistoryKeepsBarePrompt(t *testing.T) {
	gen, calls := newTestGenerator(t, &stubIndex{}, respond(textResponse("ok")))

	if _, _, err := gen.Generate(context.Background(), Instruction("q"), ""); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got := (*calls)[0].system; got != systemPrompt {
		t.Errorf("system text = %q, want bare prompt", got)
	}
}
