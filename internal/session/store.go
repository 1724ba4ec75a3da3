// Package session holds bounded, ordered conversation history per
// session id, in memory only. Nothing survives a restart.
package session

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Exchange is one (role, text) pair of a conversation.
type Exchange struct {
	Role string
	Text string
}

// Store keeps per-session history capped at a maximum number of
// user/assistant rounds; the oldest round is evicted first. An unknown
// session id simply has no history; it springs into existence on the
// first append.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	mu sync.RWMutex
	// maxRounds caps history at this many completed user/assistant
	// rounds (twice as many Exchanges).
	maxRounds int
	sessions  map[string][]Exchange
}

// NewStore creates a session store keeping at most maxRounds completed
// rounds per session. Non-positive values fall back to 2.
func NewStore(maxRounds int) *Store {
	if maxRounds <= 0 {
		maxRounds = 2
	}
	return &Store{maxRounds: maxRounds, sessions: make(map[string][]Exchange)}
}

// Create allocates a fresh session id with empty history.
func (s *Store) Create() string {
	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = nil
	s.mu.Unlock()
	return id
}

// AddRound appends one completed user/assistant round and evicts the
// oldest rounds beyond the cap. The user text recorded here must be the
// exact instruction sent to the model, not the bare user input.
func (s *Store) AddRound(id, userText, assistantText string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	h := append(s.sessions[id],
		Exchange{Role: RoleUser, Text: userText},
		Exchange{Role: RoleAssistant, Text: assistantText},
	)
	if max := s.maxRounds * 2; len(h) > max {
		h = h[len(h)-max:]
	}
	s.sessions[id] = h
}

// History returns a copy of the session's exchanges, oldest first.
// Unknown ids yield an empty history, never an error.
func (s *Store) History(id string) []Exchange {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h := s.sessions[id]
	out := make([]Exchange, len(h))
	copy(out, h)
	return out
}

// Clear drops the history of one session, keeping the id valid.
func (s *Store) Clear(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; ok {
		s.sessions[id] = nil
	}
}

// Delete removes a session entirely.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Count reports the number of live sessions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Format renders exchanges as a plain text block for inclusion in a
// model prompt.
func Format(exchanges []Exchange) string {
	if len(exchanges) == 0 {
		return ""
	}
	var b strings.Builder
	for i, e := range exchanges {
		if i > 0 {
			b.WriteByte('\n')
		}
		switch e.Role {
		case RoleAssistant:
			b.WriteString("Assistant: ")
		default:
			b.WriteString("User: ")
		}
		b.WriteString(e.Text)
	}
	return b.String()
}
