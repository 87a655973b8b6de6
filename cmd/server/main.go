package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/pageshift/internal/api"
	"github.com/dgallion1/pageshift/internal/config"
	"github.com/dgallion1/pageshift/internal/engine"
	"github.com/dgallion1/pageshift/internal/pipeline"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Initialize the transform pipeline.
	eng := engine.New(log, engine.Options{
		StripDanglingRefs: cfg.StripDanglingRefs,
		MaxPages:          cfg.MaxPages,
	})
	stats := pipeline.NewTransformStats(cfg.StatsWindow)
	transformer := pipeline.NewTransformer(eng, int64(cfg.MaxConcurrentTransforms), stats, log)

	// Initialize HTTP server.
	srv := api.NewServer(transformer, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("starting pageshift", "port", cfg.Port, "max_concurrent", cfg.MaxConcurrentTransforms)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
