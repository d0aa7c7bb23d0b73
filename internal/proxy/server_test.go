package proxy

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhengjr9/chat-relay/internal/abacus"
	"github.com/zhengjr9/chat-relay/internal/config"
	"github.com/zhengjr9/chat-relay/internal/httputil"
	"github.com/zhengjr9/chat-relay/internal/relay"
)

const indexHTML = "<!doctype html><title>chat</title>"

type fixedClient struct {
	resp json.RawMessage
	err  error
}

func (c fixedClient) GetChatResponse(context.Context, string, string, []abacus.Turn) (json.RawMessage, error) {
	return c.resp, c.err
}

type panicClient struct{}

func (panicClient) GetChatResponse(context.Context, string, string, []abacus.Turn) (json.RawMessage, error) {
	panic("adapter exploded")
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte(indexHTML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.css"), []byte("body{}"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "img"), 0o755))

	cfg := config.Default()
	cfg.StaticDir = dir
	cfg.IndexFile = filepath.Join(dir, "index.html")
	cfg.AbacusDeploymentID = "dep"
	cfg.AbacusDeploymentToken = "tok"
	cfg.RequestTimeout = 5 * time.Second
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config, client relay.ChatClient) http.Handler {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewWithClient(cfg, client, log).Handler()
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestServer_Index(t *testing.T) {
	h := newTestServer(t, newTestConfig(t), fixedClient{})

	rr := do(h, http.MethodGet, "/", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, indexHTML, rr.Body.String())
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
}

func TestServer_IndexIndependentOfChatFailures(t *testing.T) {
	h := newTestServer(t, newTestConfig(t), panicClient{})

	rr := do(h, http.MethodPost, "/api/chat", `{"message":"hi"}`)
	require.Equal(t, http.StatusInternalServerError, rr.Code)

	rr = do(h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, indexHTML, rr.Body.String())
}

func TestServer_Static(t *testing.T) {
	h := newTestServer(t, newTestConfig(t), fixedClient{})

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"existing file", "/static/app.css", http.StatusOK},
		{"index via static", "/static/index.html", http.StatusOK},
		{"missing file", "/static/missing.js", http.StatusNotFound},
		{"directory", "/static/img/", http.StatusNotFound},
		{"static root", "/static/", http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(h, http.MethodGet, tc.target, "")
			assert.Equal(t, tc.status, rr.Code)
		})
	}

	rr := do(h, http.MethodGet, "/static/app.css", "")
	assert.Equal(t, "body{}", rr.Body.String())
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/css")

	rr = do(h, http.MethodGet, "/static/index.html", "")
	assert.Empty(t, rr.Header().Get("Location"))
	assert.Equal(t, indexHTML, rr.Body.String())
}

func TestServer_Chat(t *testing.T) {
	h := newTestServer(t, newTestConfig(t), fixedClient{resp: json.RawMessage(`{"reply":"hi there"}`)})

	rr := do(h, http.MethodPost, "/api/chat", `{"message":"hello"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"reply":"hi there"}`, rr.Body.String())

	rr = do(h, http.MethodPost, "/api/chat", `{}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error":"Message is required"}`, rr.Body.String())
}

func TestServer_ChatCompletions(t *testing.T) {
	resp := json.RawMessage(`{"messages":[{"is_user":true,"text":"hello"},{"is_user":false,"text":"hi there"}]}`)
	h := newTestServer(t, newTestConfig(t), fixedClient{resp: resp})

	rr := do(h, http.MethodPost, "/v1/chat/completions", `{"messages":[{"role":"user","content":"hello"}]}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"content":"hi there"`)

	assert.Equal(t, http.StatusMethodNotAllowed, do(h, http.MethodGet, "/v1/chat/completions", "").Code)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	h := newTestServer(t, newTestConfig(t), fixedClient{})

	assert.Equal(t, http.StatusMethodNotAllowed, do(h, http.MethodGet, "/api/chat", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(h, http.MethodPost, "/", "").Code)
}

func TestServer_Health(t *testing.T) {
	h := newTestServer(t, newTestConfig(t), fixedClient{})

	rr := do(h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestServer_RequestID(t *testing.T) {
	h := newTestServer(t, newTestConfig(t), fixedClient{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(httputil.HeaderRequestID, "trace-7")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "trace-7", rr.Header().Get(httputil.HeaderRequestID))

	rr = do(h, http.MethodGet, "/health", "")
	assert.NotEmpty(t, rr.Header().Get(httputil.HeaderRequestID))
}

func TestServer_PanicRecovered(t *testing.T) {
	h := newTestServer(t, newTestConfig(t), panicClient{})

	rr := do(h, http.MethodPost, "/api/chat", `{"message":"hi"}`)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rr.Body.String())
}

func TestServer_CORS(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.AllowedOrigins = []string{"http://ui.example"}
	h := newTestServer(t, cfg, fixedClient{resp: json.RawMessage(`{}`)})

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "http://ui.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Less(t, rr.Code, 300)
	assert.Equal(t, "http://ui.example", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"x"}`))
	req.Header.Set("Origin", "http://evil.example")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_NoCORSByDefault(t *testing.T) {
	h := newTestServer(t, newTestConfig(t), fixedClient{resp: json.RawMessage(`{}`)})

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"x"}`))
	req.Header.Set("Origin", "http://ui.example")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}
