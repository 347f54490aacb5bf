package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"bookingengine/internal/bootstrap"
	"bookingengine/internal/infra/config"
	grpcserver "bookingengine/internal/infra/grpc"
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
	if cfg.PipelineDriver == config.PipelineMemory {
		logger.Warn("worker process with the memory pipeline only sees its own events", "pipeline", cfg.PipelineDriver)
	}

	app, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}

	health := grpcserver.NewHealthServer(cfg.WorkerGRPCAddr, app.Runner.Healthy, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.Run(gctx, true) })
	g.Go(func() error { return health.Run(gctx) })

	logger.Info("worker starting", "grpc_addr", cfg.WorkerGRPCAddr, "pipeline", cfg.PipelineDriver, "decision_mode", cfg.DecisionMode)
	runErr := g.Wait()
	if err := app.Close(context.Background()); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
	if runErr != nil {
		logger.Error("worker stopped", "error", runErr)
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
