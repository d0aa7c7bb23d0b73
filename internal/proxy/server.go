package proxy

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/zhengjr9/chat-relay/internal/abacus"
	"github.com/zhengjr9/chat-relay/internal/adapter/openai"
	"github.com/zhengjr9/chat-relay/internal/config"
	"github.com/zhengjr9/chat-relay/internal/relay"
)

// Server is the relay HTTP server.
type Server struct {
	httpServer *http.Server
}

// New constructs a Server from the given config, talking to Abacus.AI.
func New(cfg *config.Config, log *slog.Logger) *Server {
	client := abacus.NewClient(cfg.AbacusBaseURL, cfg.AbacusAPIKey, cfg.RequestTimeout, cfg.AbacusProxyURL)
	return NewWithClient(cfg, client, log)
}

// NewWithClient constructs a Server that sends chat requests to client.
func NewWithClient(cfg *config.Config, client relay.ChatClient, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	opts := relay.Options{
		DeploymentID:       cfg.AbacusDeploymentID,
		DeploymentToken:    cfg.AbacusDeploymentToken,
		Timeout:            cfg.RequestTimeout,
		ExposeErrorDetails: cfg.ExposeErrorDetails,
		Logger:             log,
	}

	router := mux.NewRouter()
	router.Handle("/api/chat", relay.NewHandler(client, opts)).Methods(http.MethodPost)
	router.Handle("/v1/chat/completions", openai.NewHandler(client, opts)).Methods(http.MethodPost)
	router.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	router.Handle("/", indexHandler(cfg.IndexFile)).Methods(http.MethodGet, http.MethodHead)
	router.PathPrefix("/static/").
		Handler(http.StripPrefix("/static/", staticHandler(cfg.StaticDir))).
		Methods(http.MethodGet, http.MethodHead)

	var handler http.Handler = router
	if len(cfg.AllowedOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-Id"},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: true,
		}).Handler(handler)
	}
	handler = loggingMiddleware(log)(handler)
	handler = requestIDMiddleware(handler)
	handler = recoveryMiddleware(log)(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.ListenAddr,
			Handler:      handler,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: cfg.RequestTimeout + 10*time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start begins listening and blocks until the server is stopped.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Handler returns the underlying http.Handler (for use in tests with httptest.NewServer).
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
