package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zhengjr9/chat-relay/internal/a2a"
	"github.com/zhengjr9/chat-relay/internal/abacus"
	"github.com/zhengjr9/chat-relay/internal/config"
	"github.com/zhengjr9/chat-relay/internal/proxy"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(2)
	}

	log := cfg.NewLogger(os.Stderr)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "error", err)
		os.Exit(2)
	}

	log.Info("starting chat-relay",
		"listen", cfg.ListenAddr,
		"abacus_base_url", cfg.AbacusBaseURL,
		"deployment_id", cfg.AbacusDeploymentID,
		"static_dir", cfg.StaticDir,
		"a2a_enabled", cfg.A2AEnabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := abacus.NewClient(cfg.AbacusBaseURL, cfg.AbacusAPIKey, cfg.RequestTimeout, cfg.AbacusProxyURL)

	srv := proxy.NewWithClient(cfg, client, log)
	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	a2aErr := make(chan error, 1)
	if cfg.A2AEnabled {
		agent, err := a2a.New(a2a.AgentConfig{
			Name:        cfg.AgentName,
			Description: cfg.AgentDesc,
			Chat: abacus.Deployment{
				Client: client,
				ID:     cfg.AbacusDeploymentID,
				Token:  cfg.AbacusDeploymentToken,
			},
			Logger: log,
		})
		if err != nil {
			log.Error("failed to create A2A agent", "error", err)
			os.Exit(1)
		}

		log.Info("starting A2A server", "port", cfg.A2APort, "agent_name", cfg.AgentName)
		go func() {
			if err := a2a.Serve(ctx, cfg.A2APort, agent); err != nil {
				a2aErr <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		log.Info("shutting down...")
		shutCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			log.Error("server shutdown error", "error", err)
		}
	case err := <-serverErr:
		log.Error("http server error", "error", err)
		os.Exit(1)
	case err := <-a2aErr:
		log.Error("A2A server error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
