package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/sunabot/sunabot/backend/internal/config"
	"github.com/sunabot/sunabot/backend/internal/handler"
	"github.com/sunabot/sunabot/backend/internal/knowledge"
	"github.com/sunabot/sunabot/backend/internal/logging"
	"github.com/sunabot/sunabot/backend/internal/service/assistant"
	"github.com/sunabot/sunabot/backend/internal/service/speech"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Setup(cfg.Log)
	if envErr != nil {
		log.Debug().Err(envErr).Msg("no .env file, using process environment only")
	}

	kb, err := knowledge.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load knowledge base")
	}

	var completer assistant.Completer
	if cfg.AI.Enabled() {
		chainCompleter, err := assistant.NewChainCompleter(ctx, cfg.AI)
		if err != nil {
			log.Warn().Err(err).Msg("language model unavailable, continuing in demo mode")
		} else {
			completer = chainCompleter
			log.Info().Msg("language model initialized")
		}
	} else {
		log.Info().Msg("ARK credentials not configured, answering in demo mode")
	}
	assistantSvc := assistant.NewService(completer, kb, cfg.AI)

	deps := handler.Deps{Assistant: assistantSvc, Knowledge: kb}
	if cfg.Speech.Enabled {
		deps.Speech = speech.NewService(cfg.Speech.Model(), cfg.Speech.Catalog())
		deps.Conns = speech.NewConnectionManager()
		log.Info().Int("voices", len(cfg.Speech.Catalog())).Msg("speech service initialized")
	} else {
		log.Info().Msg("speech credentials not configured, read-aloud disabled")
	}

	router := handler.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info().Str("addr", srv.Addr).Msg("SUNABOT backend listening")
	if err := runServer(ctx, srv, deps.Conns); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

// runServer serves until ctx ends, then shuts down. Hijacked websocket
// connections are not tracked by http.Server, so they are closed through
// conns.
func runServer(ctx context.Context, srv *http.Server, conns *speech.ConnectionManager) error {
	if conns != nil {
		srv.RegisterOnShutdown(conns.CloseAll)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
