// Package tools defines the retrieval capabilities offered to the
// generative model: a content search tool and a course outline tool,
// plus the registry that exposes their schemas and dispatches
// execution by name.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// Source identifies where a piece of retrieved evidence came from,
// surfaced to the end user alongside the answer.
type Source struct {
	Text string `json:"text"`
	URL  string `json:"url,omitempty"`
}

// Result is the structured outcome of one tool execution: the text fed
// back to the model plus the sources behind it. Returning sources here,
// rather than parking them in a mutable field on the tool, keeps each
// query cycle's sources scoped to that cycle.
type Result struct {
	Text    string
	Sources []Source
}

// Tool is a named, schema-described capability the model can request.
// Define registers the schema with Genkit; Execute is the dispatch path
// used when the model asks for the tool by name.
type Tool interface {
	Name() string
	Define(g *genkit.Genkit) ai.Tool
	Execute(ctx context.Context, args map[string]any) (Result, error)
}

// Registry holds the available tools, exposes their Genkit refs for
// the decide stage, and dispatches execution by name.
//
// Registry is immutable after construction and safe for concurrent use.
type Registry struct {
	tools  map[string]Tool
	refs   []ai.ToolRef
	logger *slog.Logger
}

// NewRegistry registers each tool's schema with Genkit and returns the
// registry. Duplicate names are an error.
func NewRegistry(g *genkit.Genkit, logger *slog.Logger, toolset ...Tool) (*Registry, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{tools: make(map[string]Tool, len(toolset)), logger: logger}
	for _, t := range toolset {
		if _, dup := r.tools[t.Name()]; dup {
			return nil, fmt.Errorf("duplicate tool name %q", t.Name())
		}
		r.tools[t.Name()] = t
		r.refs = append(r.refs, t.Define(g))
	}
	return r, nil
}

// Refs returns the Genkit tool refs for every registered tool, for
// inclusion in a decide-stage generation call.
func (r *Registry) Refs() []ai.ToolRef {
	out := make([]ai.ToolRef, len(r.refs))
	copy(out, r.refs)
	return out
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Execute dispatches one model-requested invocation. An unknown name
// comes back as an error-message Result, not a Go error, so a malformed
// model tool call degrades to a visible message inside the generation
// loop instead of failing the request. A Go error is returned only for
// infrastructure failure inside the tool itself.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (Result, error) {
	t, ok := r.tools[name]
	if !ok {
		r.logger.Warn("unknown tool requested", slog.String("tool", name))
		return Result{Text: fmt.Sprintf("Tool '%s' not found", name)}, nil
	}

	res, err := t.Execute(ctx, args)
	if err != nil {
		r.logger.Warn("tool execution failed",
			slog.String("tool", name), slog.Any("error", err))
		return Result{}, fmt.Errorf("executing %s: %w", name, err)
	}
	return res, nil
}

// decodeArgs maps a loosely-typed argument payload onto a tool's input
// struct via JSON.
func decodeArgs(args map[string]any, v any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encoding tool args: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decoding tool args: %w", err)
	}
	return nil
}
