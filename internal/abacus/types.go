package abacus

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Turn is one message in a conversation sent to getChatResponse.
type Turn struct {
	IsUser bool   `json:"is_user"`
	Text   string `json:"text"`
}

// UserTurn returns a single-element conversation holding text from the user.
func UserTurn(text string) []Turn {
	return []Turn{{IsUser: true, Text: text}}
}

// ChatRequest is the body of POST /api/v0/getChatResponse.
type ChatRequest struct {
	Messages []Turn `json:"messages"`
}

// envelope wraps every Abacus.AI API response.
type envelope struct {
	Success   bool            `json:"success"`
	Result    json.RawMessage `json:"result"`
	Error     string          `json:"error,omitempty"`
	ErrorType string          `json:"errorType,omitempty"`
}

// APIError is a failure reported by the Abacus.AI service itself.
type APIError struct {
	StatusCode int
	// Type is the remote errorType, e.g. "DataNotFoundError".
	Type string
	// Message is the remote envelope's error text. It is empty when the
	// response body was not an Abacus envelope.
	Message string

	// body holds a non-envelope response body for logs only.
	body string
}

// maxErrorBody bounds how much of a non-envelope body ends up in Error().
const maxErrorBody = 512

func (e *APIError) Error() string {
	detail := e.Message
	if detail == "" {
		detail = e.body
	}
	if e.Type != "" {
		return fmt.Sprintf("abacus %d %s: %s", e.StatusCode, e.Type, detail)
	}
	return fmt.Sprintf("abacus %d: %s", e.StatusCode, detail)
}

// PublicMessage is the text that may be shown to end users.
func (e *APIError) PublicMessage() string {
	if e.Message != "" {
		return e.Message
	}
	if text := http.StatusText(e.StatusCode); text != "" {
		return text
	}
	return "chat service error"
}

// ReplyText returns the text of the last assistant turn in a getChatResponse
// result, or "" when the payload carries none.
func ReplyText(raw json.RawMessage) string {
	var result struct {
		Messages []Turn `json:"messages"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return ""
	}
	for i := len(result.Messages) - 1; i >= 0; i-- {
		if !result.Messages[i].IsUser {
			return result.Messages[i].Text
		}
	}
	return ""
}
