package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/zhengjr9/chat-relay/internal/abacus"
	apierrors "github.com/zhengjr9/chat-relay/internal/errors"
	"github.com/zhengjr9/chat-relay/internal/httputil"
)

const maxBodyBytes = 1 << 20

// ChatClient is the external chat service as seen by the handler.
type ChatClient interface {
	GetChatResponse(ctx context.Context, deploymentID, deploymentToken string, messages []abacus.Turn) (json.RawMessage, error)
}

// Options configures a Handler.
type Options struct {
	DeploymentID    string
	DeploymentToken string
	// Timeout bounds the outbound call. Zero means only the request context
	// applies.
	Timeout time.Duration
	// ExposeErrorDetails returns raw adapter error text in 500 bodies.
	ExposeErrorDetails bool
	Logger             *slog.Logger
}

// Handler implements POST /api/chat.
type Handler struct {
	client ChatClient
	opts   Options
	log    *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(client ChatClient, opts Options) *Handler {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Handler{client: client, opts: opts, log: log}
}

type chatRequest struct {
	Message *string `json:"message"`
}

// ServeHTTP handles POST /api/chat.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	message, err := decodeMessage(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx := r.Context()
	if h.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opts.Timeout)
		defer cancel()
	}

	resp, err := h.client.GetChatResponse(ctx, h.opts.DeploymentID, h.opts.DeploymentToken, abacus.UserTurn(message))
	if err != nil {
		h.writeError(w, r, apierrors.Downstream(err))
		return
	}
	if len(resp) == 0 {
		resp = json.RawMessage("null")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp)
}

// decodeMessage returns the non-empty message field of the body.
func decodeMessage(w http.ResponseWriter, r *http.Request) (string, error) {
	var req chatRequest
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req)
	switch {
	case errors.Is(err, io.EOF):
		return "", apierrors.ErrMissingInput
	case err != nil:
		return "", fmt.Errorf("decode body: %w: %w", apierrors.ErrMalformedBody, err)
	}
	if req.Message == nil || *req.Message == "" {
		return "", apierrors.ErrMissingInput
	}
	return *req.Message, nil
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apierrors.StatusCode(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("chat request failed",
			"error", err,
			"request_id", httputil.RequestID(r.Context()),
		)
	} else {
		h.log.Debug("chat request rejected",
			"error", err,
			"request_id", httputil.RequestID(r.Context()),
		)
	}
	apierrors.WriteJSONError(w, status, apierrors.PublicMessage(err, h.opts.ExposeErrorDetails))
}
