package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/lectern/lectern/internal/chat"
	"github.com/lectern/lectern/internal/log"
	"github.com/lectern/lectern/internal/session"
	"github.com/lectern/lectern/internal/tools"
)

// MaxQueryLength bounds the accepted question size.
const MaxQueryLength = 4000

// Assistant answers questions, optionally continuing a stored conversation.
type Assistant interface {
	Query(ctx context.Context, question, sessionID string) (string, []tools.Source, error)
}

// QueryHandler handles the question-answering endpoint.
type QueryHandler struct {
	assistant Assistant
	sessions  *session.Store
	logger    log.Logger
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(assistant Assistant, sessions *session.Store, logger log.Logger) *QueryHandler {
	return &QueryHandler{assistant: assistant, sessions: sessions, logger: logger}
}

// RegisterRoutes registers query routes on the given mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/query", h.query)
}

// QueryRequest is the request body for POST /api/query.
type QueryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

// QueryResponse is the response body for POST /api/query.
type QueryResponse struct {
	Answer    string         `json:"answer"`
	Sources   []tools.Source `json:"sources"`
	SessionID string         `json:"session_id"`
}

// query answers a question about the indexed course materials.
// When no session_id is supplied a new session is created and its id
// returned, so the client can thread follow-up questions.
func (h *QueryHandler) query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing_query", "query is required")
		return
	}
	if len(query) > MaxQueryLength {
		writeError(w, http.StatusBadRequest, "query_too_long", "query exceeds maximum length")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = h.sessions.Create()
	}

	answer, sources, err := h.assistant.Query(r.Context(), query, sessionID)
	if err != nil {
		h.logger.Error("query failed", "session_id", sessionID, "error", err)
		if errors.Is(err, chat.ErrModelService) {
			writeError(w, http.StatusBadGateway, "model_unavailable", "the model service failed to respond")
			return
		}
		writeError(w, http.StatusInternalServerError, "query_failed", "failed to answer the question")
		return
	}

	if sources == nil {
		sources = []tools.Source{}
	}
	writeJSON(w, http.StatusOK, QueryResponse{
		Answer:    answer,
		Sources:   sources,
		SessionID: sessionID,
	})
}
