// sqlchat server: the browser chat UI in front of the SQL agent.
//
// It serves the chat page, forwards each question to the agent under the
// browser's session and renders the agent's reasoning (the SQL it ran and
// the rows it got back) next to the answer.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/agentoven/sqlchat/internal/config"
	"github.com/agentoven/sqlchat/internal/telemetry"
	"github.com/agentoven/sqlchat/pkg/server"
)

func main() {
	cfg := config.Load()
	telemetry.SetupLogging(cfg.LogLevel, cfg.LogFormat != "json")

	log.Info().Msg("⚾ sqlchat starting...")

	ctx := context.Background()
	srv, err := server.NewWithConfig(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize server")
	}
	defer srv.ShutdownFunc(ctx)

	// The write timeout leaves room for a full agent turn.
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", srv.Port),
		Handler:      srv.Handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Agent.Timeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("🛑 Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info().
		Int("port", srv.Port).
		Str("chat_path", cfg.UI.ChatPath).
		Msg("🚀 sqlchat is ready")

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("Server failed")
	}
}
