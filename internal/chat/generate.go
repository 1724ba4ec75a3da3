package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/lectern/lectern/internal/tools"
)

// ErrModelService indicates the generative model call itself failed.
// It propagates uncaught; the query fails end-to-end with no partial
// answer.
var ErrModelService = errors.New("model service")

// modelRequest is one fully-specified model call. Keeping it as data
// rather than opaque options makes each stage's shape inspectable.
type modelRequest struct {
	system   string
	messages []*ai.Message
	// tools carries the offered schemas. Nil on the synthesize stage:
	// withholding them caps retrieval at one round per query, so any
	// further tool request from the model is treated as terminal.
	tools          []ai.ToolRef
	returnRequests bool
}

// generateFunc is the model call seam. Tests substitute a stub; the
// default converts the request to Genkit options and calls
// genkit.Generate.
type generateFunc func(ctx context.Context, req *modelRequest) (*ai.ModelResponse, error)

// Generator runs the two-stage generation protocol:
//
//  1. Decide: the instruction goes to the model together with the full
//     tool schema set. A direct answer is terminal.
//  2. Tool execution: every requested invocation is dispatched through
//     the registry; all complete before synthesis. A failed execution
//     becomes the tool's textual result rather than aborting the query.
//  3. Synthesize: the full conversation, including tool results keyed
//     by invocation ref, goes back to the model with no tool schemas.
//     The response is final.
type Generator struct {
	g         *genkit.Genkit
	registry  *tools.Registry
	modelName string
	maxTokens int
	limiter   *rate.Limiter
	logger    *slog.Logger
	generate  generateFunc
}

// GeneratorConfig carries the required parameters for a Generator.
type GeneratorConfig struct {
	Genkit    *genkit.Genkit
	Registry  *tools.Registry
	Logger    *slog.Logger
	ModelName string
	MaxTokens int
	// RateLimiter proactively spaces model calls. Nil installs the
	// default of 10 req/s with a burst of 30.
	RateLimiter *rate.Limiter
}

func (cfg GeneratorConfig) validate() error {
	if cfg.Genkit == nil {
		return errors.New("genkit instance is required")
	}
	if cfg.Registry == nil {
		return errors.New("tool registry is required")
	}
	if cfg.ModelName == "" {
		return errors.New("model name is required")
	}
	return nil
}

// NewGenerator creates a Generator.
func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 800
	}
	rl := cfg.RateLimiter
	if rl == nil {
		rl = rate.NewLimiter(10, 30)
	}

	gn := &Generator{
		g:         cfg.Genkit,
		registry:  cfg.Registry,
		modelName: cfg.ModelName,
		maxTokens: maxTokens,
		limiter:   rl,
		logger:    logger,
	}
	gn.generate = gn.generateGenkit
	return gn, nil
}

// Generate answers one instruction, optionally augmented with prior
// conversation, and returns the final text plus the sources behind it.
// Sources are empty when the model answered without retrieval.
func (gn *Generator) Generate(ctx context.Context, instruction, history string) (string, []tools.Source, error) {
	system := systemWithHistory(history)
	userMsg := ai.NewUserMessage(ai.NewTextPart(instruction))

	resp, err := gn.call(ctx, &modelRequest{
		system:         system,
		messages:       []*ai.Message{userMsg},
		tools:          gn.registry.Refs(),
		returnRequests: true,
	})
	if err != nil {
		return "", nil, fmt.Errorf("%w: decide stage: %v", ErrModelService, err)
	}

	requests := resp.ToolRequests()
	if len(requests) == 0 {
		return resp.Text(), nil, nil
	}

	parts, sources := gn.executeAll(ctx, requests)

	final, err := gn.call(ctx, &modelRequest{
		system: system,
		messages: []*ai.Message{
			userMsg,
			resp.Message,
			ai.NewMessage(ai.RoleTool, nil, parts...),
		},
	})
	if err != nil {
		return "", nil, fmt.Errorf("%w: synthesize stage: %v", ErrModelService, err)
	}
	return final.Text(), sources, nil
}

func (gn *Generator) call(ctx context.Context, req *modelRequest) (*ai.ModelResponse, error) {
	if err := gn.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	return gn.generate(ctx, req)
}

// generateGenkit is the production model call.
func (gn *Generator) generateGenkit(ctx context.Context, req *modelRequest) (*ai.ModelResponse, error) {
	opts := []ai.GenerateOption{
		ai.WithModelName(gn.modelName),
		ai.WithSystem(req.system),
		ai.WithMessages(req.messages...),
		ai.WithConfig(&genai.GenerateContentConfig{
			Temperature:     genai.Ptr[float32](0),
			MaxOutputTokens: int32(gn.maxTokens),
		}),
	}
	if len(req.tools) > 0 {
		opts = append(opts, ai.WithTools(req.tools...))
	}
	if req.returnRequests {
		opts = append(opts, ai.WithReturnToolRequests(true))
	}
	return genkit.Generate(ctx, gn.g, opts...)
}

// executeAll dispatches every requested invocation and builds the
// corresponding tool-response parts, each tagged with its request ref.
// The latest invocation that produced sources wins the source list for
// this query cycle.
func (gn *Generator) executeAll(ctx context.Context, requests []*ai.ToolRequest) ([]*ai.Part, []tools.Source) {
	var parts []*ai.Part
	var sources []tools.Source

	for _, req := range requests {
		res, err := gn.registry.Execute(ctx, req.Name, requestArgs(req))
		output := res.Text
		if err != nil {
			// Fed to synthesis as the tool's result so the model can
			// respond to the failed lookup conversationally.
			output = fmt.Sprintf("Tool execution failed: %v", err)
			gn.logger.Warn("tool request failed",
				slog.String("tool", req.Name), slog.Any("error", err))
		}
		if len(res.Sources) > 0 {
			sources = res.Sources
		}

		parts = append(parts, ai.NewToolResponsePart(&ai.ToolResponse{
			Name:   req.Name,
			Ref:    req.Ref,
			Output: output,
		}))
	}
	return parts, sources
}

// requestArgs normalizes a tool request's input payload to a map.
func requestArgs(req *ai.ToolRequest) map[string]any {
	if m, ok := req.Input.(map[string]any); ok {
		return m
	}
	raw, err := json.Marshal(req.Input)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}
