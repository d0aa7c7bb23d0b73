package openai

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zhengjr9/chat-relay/internal/abacus"
)

const maxBodyBytes = 1 << 20

var errStreaming = errors.New("stream=true is not supported")

// ToTurns parses an OpenAI chat completions request and converts its messages
// into Abacus turns. System and user messages are sent as user turns,
// assistant messages as assistant turns. The last message must come from the
// user.
func ToTurns(w http.ResponseWriter, r *http.Request) (turns []abacus.Turn, model string, err error) {
	var req ChatCompletionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, "", fmt.Errorf("request body is empty")
		}
		return nil, "", fmt.Errorf("decode body: %w", err)
	}
	if req.Stream {
		return nil, "", errStreaming
	}
	if len(req.Messages) == 0 {
		return nil, "", fmt.Errorf("messages must not be empty")
	}

	turns = make([]abacus.Turn, 0, len(req.Messages))
	for i, m := range req.Messages {
		switch strings.ToLower(m.Role) {
		case "user", "system", "developer":
			turns = append(turns, abacus.Turn{IsUser: true, Text: string(m.Content)})
		case "assistant":
			turns = append(turns, abacus.Turn{IsUser: false, Text: string(m.Content)})
		default:
			return nil, "", fmt.Errorf("messages[%d]: unsupported role %q", i, m.Role)
		}
	}
	if !turns[len(turns)-1].IsUser {
		return nil, "", fmt.Errorf("last message must have role user")
	}
	if turns[len(turns)-1].Text == "" {
		return nil, "", fmt.Errorf("last message content must not be empty")
	}
	return turns, req.Model, nil
}

// WriteBlockingResponse encodes an Abacus result as an OpenAI ChatCompletionResponse.
func WriteBlockingResponse(w http.ResponseWriter, raw json.RawMessage, model string) error {
	out := ChatCompletionResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []Choice{
			{
				Index:        0,
				Message:      Message{Role: "assistant", Content: Content(abacus.ReplyText(raw))},
				FinishReason: "stop",
			},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(out)
}

// writeError writes an OpenAI-style error body.
func writeError(w http.ResponseWriter, status int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: errorDetail{Message: message, Type: errType}})
}
