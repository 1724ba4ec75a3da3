package api

import (
	"net/http"

	"github.com/lectern/lectern/internal/log"
	"github.com/lectern/lectern/internal/session"
)

// SessionHandler handles session management endpoints.
type SessionHandler struct {
	store  *session.Store
	logger log.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(store *session.Store, logger log.Logger) *SessionHandler {
	return &SessionHandler{store: store, logger: logger}
}

// RegisterRoutes registers session routes on the given mux.
func (h *SessionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions", h.create)
	mux.HandleFunc("POST /api/sessions/{id}/clear", h.clear)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.delete)
}

// SessionResponse is the response body for POST /api/sessions.
type SessionResponse struct {
	SessionID string `json:"session_id"`
}

// create starts a new empty conversation session.
func (h *SessionHandler) create(w http.ResponseWriter, _ *http.Request) {
	id := h.store.Create()
	h.logger.Debug("session created", "session_id", id)
	writeJSON(w, http.StatusCreated, SessionResponse{SessionID: id})
}

// clear empties a session's history but keeps the id usable.
func (h *SessionHandler) clear(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing_session_id", "session id is required")
		return
	}
	h.store.Clear(id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// delete removes a session entirely.
func (h *SessionHandler) delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing_session_id", "session id is required")
		return
	}
	h.store.Delete(id)
	w.WriteHeader(http.StatusNoContent)
}
