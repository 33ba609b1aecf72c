package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"countdown.share/config"
	"countdown.share/internal/api"
	"countdown.share/internal/log"
	"countdown.share/internal/share"
	"countdown.share/internal/store"
	"countdown.share/web"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger := log.Base()
		logger.Fatal().Err(err).Msg("config error")
	}

	log.Configure(log.Config{Level: cfg.Log.Level, Service: "countdown-server"})
	logger := log.WithComponent("server")
	logger.Debug().Strs("files", web.Files()).Msg("embedded assets")

	sharer, closeStore := initSharer(cfg)
	defer closeStore()

	router := api.SetupRouter(sharer, cfg)

	logger.Info().
		Str("addr", cfg.Addr()).
		Str("base_url", cfg.Server.BaseURL).
		Str("store", cfg.Store.Type).
		Msg("server starting")

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown failed")
		}
	}
}

// initSharer builds the share service for the configured store. A store that
// is missing credentials or cannot be reached disables sharing instead of
// stopping the server.
func initSharer(cfg *config.Config) (share.Sharer, func()) {
	logger := log.WithComponent("server")
	noop := func() {}

	if missing := cfg.RemoteMissing(); missing != "" {
		logger.Warn().Str("reason", missing).Msg("sharing disabled")
		return share.Unconfigured{Reason: missing}, noop
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	st, err := store.Open(ctx, cfg)
	if err != nil {
		logger.Warn().Err(err).Str("store", cfg.Store.Type).Msg("sharing disabled: store unavailable")
		return share.Unconfigured{Reason: cfg.Store.Type + " store unavailable"}, noop
	}

	svc := share.NewService(st, share.Config{
		TTL:     cfg.Share.TTL,
		Timeout: cfg.Share.Timeout,
	})
	return svc, func() {
		if err := st.Close(); err != nil {
			logger.Error().Err(err).Msg("closing store")
		}
	}
}
