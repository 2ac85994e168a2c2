package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/audionoise/jam/internal/adapters/http"
	"github.com/audionoise/jam/internal/app"
	"github.com/audionoise/jam/internal/config"
	"github.com/audionoise/jam/internal/rbac"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	var auth rbac.Authorizer
	if cfg.RBACBaseURL != "" {
		auth = rbac.NewClient(cfg.RBACBaseURL)
	} else {
		log.Warn().Msg("no rbac_base_url configured, running with an empty static role table")
		auth = rbac.NewStatic()
	}

	store := app.NewSessionStore()
	coord := app.NewCoordinator(store, auth, cfg.SessionCapacity)
	reaper := app.NewReaper(store, cfg.SessionTTL, cfg.ReapInterval)
	go reaper.Run(ctx)

	r := router.SetupRouter(ctx, cfg, coord)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("jam signaling server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	coord.TerminateAll()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
