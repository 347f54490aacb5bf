package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookingengine/internal/bootstrap"
	"bookingengine/internal/infra/config"
	ginserver "bookingengine/internal/infra/http/gin"
	"bookingengine/internal/infra/obs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		obs.NewLogger("dev").Error("config load failed", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)

	app, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(context.Background()); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	server := ginserver.NewServer(cfg.HTTPAddr, cfg.Env, obs.Middleware{Logger: logger}, obs.HealthHandlers{Checks: app.Checks}, app.HTTPHandlers())

	background := make(chan error, 1)
	go func() {
		background <- app.Run(ctx, cfg.RunWorkers)
	}()
	if cfg.RunWorkers {
		logger.Info("workers hosted in-process", "decision_mode", cfg.DecisionMode, "pipeline", cfg.PipelineDriver)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "env", cfg.Env, "store", cfg.StoreDriver)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		stop()
	}
	if err := <-background; err != nil {
		logger.Error("background loops stopped", "error", err)
	}
	logger.Info("HTTP server stopped")
}
