package abacus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	chatPath = "/api/v0/getChatResponse"

	maxResponseBytes = 5 << 20
)

// Client sends requests to the Abacus.AI prediction API.
type Client struct {
	// chatURL is the full getChatResponse endpoint. Callers may pass either the
	// API host or the full endpoint URL.
	chatURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient constructs a Client with the given base URL (or full endpoint
// URL), API key, timeout, and optional proxy URL. proxyURL may be empty to
// use the default environment proxy.
func NewClient(baseURL, apiKey string, timeout time.Duration, proxyURL string) *Client {
	chatURL := strings.TrimRight(baseURL, "/")
	if !strings.HasSuffix(chatURL, chatPath) {
		chatURL += chatPath
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}

	return &Client{
		chatURL: chatURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// GetChatResponse sends the conversation to the given deployment and returns
// the service's result payload unmodified.
func (c *Client) GetChatResponse(ctx context.Context, deploymentID, deploymentToken string, messages []Turn) (json.RawMessage, error) {
	body, err := json.Marshal(ChatRequest{Messages: messages})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint, err := url.Parse(c.chatURL)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	q := endpoint.Query()
	q.Set("deploymentId", deploymentID)
	q.Set("deploymentToken", deploymentToken)
	endpoint.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("apiKey", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("abacus request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if decodeErr == nil && env.Error != "" {
			apiErr.Type = env.ErrorType
			apiErr.Message = env.Error
		} else {
			apiErr.body = truncate(strings.TrimSpace(string(raw)), maxErrorBody)
		}
		return nil, apiErr
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode response: %w", decodeErr)
	}
	if !env.Success {
		return nil, &APIError{StatusCode: resp.StatusCode, Type: env.ErrorType, Message: env.Error}
	}
	if len(env.Result) == 0 {
		return json.RawMessage("null"), nil
	}
	return env.Result, nil
}

// Deployment binds a Client to one deployment and its access token.
type Deployment struct {
	Client *Client
	ID     string
	Token  string
}

// Chat sends a single user turn to the deployment.
func (d Deployment) Chat(ctx context.Context, text string) (json.RawMessage, error) {
	return d.Client.GetChatResponse(ctx, d.ID, d.Token, UserTurn(text))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
