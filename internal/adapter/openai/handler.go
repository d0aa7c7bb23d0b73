package openai

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	apierrors "github.com/zhengjr9/chat-relay/internal/errors"
	"github.com/zhengjr9/chat-relay/internal/httputil"
	"github.com/zhengjr9/chat-relay/internal/relay"
)

const defaultModel = "abacus"

// Handler implements an OpenAI-compatible chat completions endpoint on top of
// the chat deployment. Only blocking requests are served.
type Handler struct {
	client ChatClient
	opts   relay.Options
	log    *slog.Logger
}

// ChatClient is the external chat service as seen by the handler.
type ChatClient = relay.ChatClient

// NewHandler constructs a Handler. It shares relay.Options with the
// /api/chat handler.
func NewHandler(client ChatClient, opts relay.Options) *Handler {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Handler{client: client, opts: opts, log: log}
}

// ServeHTTP handles POST /v1/chat/completions.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	turns, model, err := ToTurns(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", err.Error())
		return
	}
	if model == "" {
		model = defaultModel
	}

	ctx := r.Context()
	if h.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := h.client.GetChatResponse(ctx, h.opts.DeploymentID, h.opts.DeploymentToken, turns)
	if err != nil {
		err = apierrors.Downstream(err)
		h.log.Error("chat completion failed",
			"error", err,
			"duration", time.Since(start).String(),
			"request_id", httputil.RequestID(r.Context()),
		)
		writeError(w, http.StatusBadGateway, "upstream_error", apierrors.PublicMessage(err, h.opts.ExposeErrorDetails))
		return
	}

	if err := WriteBlockingResponse(w, raw, model); err != nil {
		h.log.Warn("write chat completion", "error", err)
	}
}
