package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	adminhttp "github.com/averel/salon/internal/adapters/http"
	"github.com/averel/salon/internal/config"
	"github.com/averel/salon/internal/core"
	"github.com/averel/salon/internal/transport/tcp"
	"github.com/averel/salon/internal/transport/ws"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	reg := core.NewRegistry()
	listener := tcp.NewListener(cfg.ListenAddr, reg, cfg.ReadLimit, cfg.RateLimit.PerSecond, cfg.RateLimit.Burst)

	var wsHandler *ws.Handler
	if cfg.EnableWS {
		wsHandler = ws.NewHandler(reg, cfg.ReadLimit, cfg.RateLimit.PerSecond, cfg.RateLimit.Burst)
	}
	router := adminhttp.SetupRouter(ctx, cfg, reg, wsHandler)

	srv := &http.Server{
		Addr:    cfg.AdminAddr,
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return listener.Serve(gctx)
	})
	g.Go(func() error {
		log.Info().Str("module", "main").Str("addr", cfg.AdminAddr).Msg("admin server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Str("module", "main").Msg("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Str("module", "main").Msg("admin server forced to shutdown")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
	log.Info().Str("module", "main").Msg("server exited gracefully")
}
