package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
)

// MockAbacus is an httptest.Server that simulates the Abacus.AI
// /api/v0/getChatResponse endpoint.
type MockAbacus struct {
	Server *httptest.Server

	// Reply is the assistant text appended to the conversation.
	Reply string

	mu       sync.Mutex
	failWith string
	status   int
	requests []Request
}

// Request is one getChatResponse call as seen by the mock.
type Request struct {
	APIKey          string
	DeploymentID    string
	DeploymentToken string
	Messages        []map[string]any
}

// NewMockAbacus creates and starts a mock Abacus.AI server.
func NewMockAbacus(reply string) *MockAbacus {
	m := &MockAbacus{Reply: reply}
	m.Server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// Close shuts down the mock server.
func (m *MockAbacus) Close() {
	m.Server.Close()
}

// URL returns the base URL of the mock server.
func (m *MockAbacus) URL() string {
	return m.Server.URL
}

// Fail makes subsequent calls answer with the given HTTP status and an
// Abacus error envelope carrying message.
func (m *MockAbacus) Fail(status int, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
	m.failWith = message
}

// Requests returns a copy of every request received so far.
func (m *MockAbacus) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

func (m *MockAbacus) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/v0/getChatResponse" || r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var body struct {
		Messages []map[string]any `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.requests = append(m.requests, Request{
		APIKey:          r.Header.Get("apiKey"),
		DeploymentID:    r.URL.Query().Get("deploymentId"),
		DeploymentToken: r.URL.Query().Get("deploymentToken"),
		Messages:        body.Messages,
	})
	status, failWith := m.status, m.failWith
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if failWith != "" {
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":   false,
			"error":     failWith,
			"errorType": "MockError",
		})
		return
	}

	result := map[string]any{
		"messages":       append(body.Messages, map[string]any{"is_user": false, "text": m.Reply}),
		"search_results": []any{},
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "result": result})
}
