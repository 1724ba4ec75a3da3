package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lectern/lectern/internal/chat"
	"github.com/lectern/lectern/internal/tools"
)

func postQuery(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestQueryEndpoint_Answer(t *testing.T) {
	assistant := &stubAssistant{
		answer: "MCP stands for Model Context Protocol.",
		sources: []tools.Source{
			{Text: "Intro to MCP - Lesson 1", URL: "https://example.com/lesson-1"},
		},
	}
	srv, _ := newTestServer(assistant, &stubCatalog{}, &stubPinger{})

	w := postQuery(t, srv.Handler(), `{"query": "What is MCP?", "session_id": "sess-1"}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "MCP stands for Model Context Protocol.", resp.Answer)
	assert.Equal(t, "sess-1", resp.SessionID)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "Intro to MCP - Lesson 1", resp.Sources[0].Text)
	assert.Equal(t, "What is MCP?", assistant.gotQuery)
	assert.Equal(t, "sess-1", assistant.gotSessID)
}

func TestQueryEndpoint_CreatesSessionWhenMissing(t *testing.T) {
	assistant := &stubAssistant{answer: "hello"}
	srv, _ := newTestServer(assistant, &stubCatalog{}, &stubPinger{})

	w := postQuery(t, srv.Handler(), `{"query": "hi"}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, resp.SessionID, assistant.gotSessID)
}

func TestQueryEndpoint_NilSourcesSerializeAsEmptyList(t *testing.T) {
	srv, _ := newTestServer(&stubAssistant{answer: "plain answer"}, &stubCatalog{}, &stubPinger{})

	w := postQuery(t, srv.Handler(), `{"query": "hi", "session_id": "s"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sources":[]`)
}

func TestQueryEndpoint_BadRequests(t *testing.T) {
	srv, _ := newTestServer(&stubAssistant{}, &stubCatalog{}, &stubPinger{})
	handler := srv.Handler()

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"malformed JSON", `{"query": `, "invalid_request"},
		{"empty query", `{"query": ""}`, "missing_query"},
		{"whitespace query", `{"query": "   "}`, "missing_query"},
		{"oversized query", `{"query": "` + strings.Repeat("a", MaxQueryLength+1) + `"}`, "query_too_long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postQuery(t, handler, tt.body)

			require.Equal(t, http.StatusBadRequest, w.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantErr, resp.Error)
		})
	}
}

func TestQueryEndpoint_ModelServiceError(t *testing.T) {
	assistant := &stubAssistant{err: fmt.Errorf("%w: timeout", chat.ErrModelService)}
	srv, _ := newTestServer(assistant, &stubCatalog{}, &stubPinger{})

	w := postQuery(t, srv.Handler(), `{"query": "hi", "session_id": "s"}`)

	require.Equal(t, http.StatusBadGateway, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "model_unavailable", resp.Error)
}

func TestQueryEndpoint_GenericError(t *testing.T) {
	assistant := &stubAssistant{err: errors.New("something broke")}
	srv, _ := newTestServer(assistant, &stubCatalog{}, &stubPinger{})

	w := postQuery(t, srv.Handler(), `{"query": "hi", "session_id": "s"}`)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "query_failed", resp.Error)
}
