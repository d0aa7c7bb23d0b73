package a2a

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/model"
	"google.golang.org/adk/session"
	"google.golang.org/genai"

	"github.com/zhengjr9/chat-relay/internal/abacus"
	"github.com/zhengjr9/chat-relay/internal/httputil"
)

// Chatter sends one user message to the chat deployment.
type Chatter interface {
	Chat(ctx context.Context, text string) (json.RawMessage, error)
}

// AgentConfig holds the configuration for the Abacus-backed A2A agent.
type AgentConfig struct {
	// Name is the agent name exposed via A2A AgentCard.
	Name string
	// Description is exposed via A2A AgentCard.
	Description string
	// Chat is the deployment every invocation is forwarded to.
	Chat   Chatter
	Logger *slog.Logger
}

// New returns an agent.Agent whose Run logic forwards the caller's text to
// the chat deployment and answers with the assistant's reply.
func New(cfg AgentConfig) (agent.Agent, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("a2a agent: Name must not be empty")
	}
	if cfg.Chat == nil {
		return nil, fmt.Errorf("a2a agent: Chat must not be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return agent.New(agent.Config{
		Name:        cfg.Name,
		Description: cfg.Description,
		Run:         runFunc(cfg),
	})
}

// runFunc returns the Run closure that drives one agent invocation.
func runFunc(cfg AgentConfig) func(agent.InvocationContext) iter.Seq2[*session.Event, error] {
	return func(ctx agent.InvocationContext) iter.Seq2[*session.Event, error] {
		return func(yield func(*session.Event, error) bool) {
			query := extractQuery(ctx.UserContent())
			if query == "" {
				yield(finalEvent(ctx, cfg.Name, "(empty input)"), nil)
				return
			}

			raw, err := cfg.Chat.Chat(ctx, query)
			if err != nil {
				cfg.Logger.Error("a2a chat failed",
					"error", err,
					"invocation_id", ctx.InvocationID(),
					"request_id", httputil.RequestID(ctx),
				)
				yield(nil, fmt.Errorf("chat request failed: %w", err))
				return
			}

			yield(finalEvent(ctx, cfg.Name, replyOrRaw(raw)), nil)
		}
	}
}

// replyOrRaw prefers the assistant's text and falls back to the raw payload
// so callers still see something when the result has an unexpected shape.
func replyOrRaw(raw json.RawMessage) string {
	if text := abacus.ReplyText(raw); text != "" {
		return text
	}
	return string(raw)
}

func finalEvent(ctx agent.InvocationContext, author, text string) *session.Event {
	ev := session.NewEvent(ctx.InvocationID())
	ev.Author = author
	ev.Branch = ctx.Branch()
	ev.LLMResponse = model.LLMResponse{
		Content: textContent(text),
		Partial: false,
	}
	return ev
}

// extractQuery pulls the plain-text content from the genai.Content that ADK
// puts in the InvocationContext when the caller sends a message.
func extractQuery(content *genai.Content) string {
	if content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}

func textContent(text string) *genai.Content {
	return &genai.Content{
		Role:  genai.RoleModel,
		Parts: []*genai.Part{{Text: text}},
	}
}
