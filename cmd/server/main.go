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

	router "github.com/ShonaLabs/ShonClub/internal/adapters/http"
	wssignal "github.com/ShonaLabs/ShonClub/internal/adapters/signal"
	"github.com/ShonaLabs/ShonClub/internal/app"
	"github.com/ShonaLabs/ShonClub/internal/config"
	"github.com/ShonaLabs/ShonClub/internal/core"
	"github.com/ShonaLabs/ShonClub/internal/media"
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
		log.Error().Err(err).Msg("failed to load config")
	}

	registry := app.NewRegistry()
	hub := wssignal.NewHub()

	// The server still signals without media; those events answer with
	// "Media router not initialized" until the engine is up.
	var engine core.MediaTransport
	if e, err := media.NewEngine(cfg.StunServers); err != nil {
		log.Error().Err(err).Msg("media engine init failed, signaling only")
	} else {
		engine = e
		defer e.Close()
	}

	ctl := wssignal.NewSignalWSController(hub, registry, engine, cfg)

	// Closed rooms stay retrievable by id for the retention window, then the
	// janitor drops them.
	go func() {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				registry.Sweep(cfg.RoomRetention)
			}
		}
	}()

	r := router.SetupRouter(ctx, cfg, ctl, registry)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("ShonClub server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
