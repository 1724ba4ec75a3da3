// Package chat coordinates a single course question end-to-end: it
// wraps the question in the model instruction, runs the two-stage
// generation protocol, updates session history and returns the answer
// together with its sources.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/lectern/lectern/internal/session"
	"github.com/lectern/lectern/internal/tools"
)

// fallbackAnswer is returned when the model produces an empty response.
const fallbackAnswer = "I couldn't generate a response. Please try rephrasing your question."

// Assistant is the orchestrator. It is stateless apart from the
// injected session store and safe for concurrent use; concurrent
// queries against the same session id are not ordered against each
// other.
type Assistant struct {
	gen      *Generator
	sessions *session.Store
	logger   *slog.Logger
}

// AssistantConfig carries the required parameters for an Assistant.
type AssistantConfig struct {
	Generator    *Generator
	SessionStore *session.Store
	Logger       *slog.Logger
}

func (cfg AssistantConfig) validate() error {
	if cfg.Generator == nil {
		return errors.New("generator is required")
	}
	if cfg.SessionStore == nil {
		return errors.New("session store is required")
	}
	return nil
}

// NewAssistant creates an Assistant.
func NewAssistant(cfg AssistantConfig) (*Assistant, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Assistant{gen: cfg.Generator, sessions: cfg.SessionStore, logger: logger}, nil
}

// Query answers one user question. A sessionID of "" runs the query
// without history and records nothing; an unknown id starts a fresh
// session implicitly.
func (a *Assistant) Query(ctx context.Context, question, sessionID string) (string, []tools.Source, error) {
	instruction := Instruction(question)

	history := ""
	if sessionID != "" {
		history = session.Format(a.sessions.History(sessionID))
	}

	answer, sources, err := a.gen.Generate(ctx, instruction, history)
	if err != nil {
		return "", nil, err
	}

	if strings.TrimSpace(answer) == "" {
		a.logger.Warn("model returned empty answer", slog.String("session_id", sessionID))
		answer = fallbackAnswer
	}

	if sessionID != "" {
		// History records the wrapped instruction, byte for byte what
		// the model saw for this turn.
		a.sessions.AddRound(sessionID, instruction, answer)
	}

	a.logger.Debug("query answered",
		slog.String("session_id", sessionID),
		slog.Int("sources", len(sources)))

	return answer, sources, nil
}
