package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/keepwaifu/backend/internal/config"
	"github.com/keepwaifu/backend/internal/handlers"
	"github.com/keepwaifu/backend/internal/logging"
	"github.com/keepwaifu/backend/internal/services"
	"github.com/keepwaifu/backend/internal/storage"
)

func main() {
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.LogPretty)

	ds := storage.Open(context.Background(), cfg)
	core := services.NewCore(ds, cfg)

	router := handlers.NewRouter(core, handlers.RouterOptions{
		JWTSecret: cfg.JWTSecret,
		AdminRole: cfg.AdminTokenRole,
		AccessLog: true,
	})

	// Streams hold their requests open; cancelling the base context on
	// shutdown lets them return.
	baseCtx, stopStreams := context.WithCancel(context.Background())
	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	srv.RegisterOnShutdown(stopStreams)

	go func() {
		log.Info().Str("addr", cfg.ServerAddress).Msg("charms api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	core.Sync.Wait()
	ds.Close(ctx)
}
