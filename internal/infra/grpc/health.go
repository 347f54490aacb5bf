// Package grpcserver exposes worker liveness over the standard gRPC health protocol.
package grpcserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name probes ask about. The empty name
// reports the same status.
const ServiceName = "bookingengine.worker"

// Probe reports whether the process is serving.
type Probe func() bool

type HealthServer struct {
	Addr     string
	Probe    Probe
	Interval time.Duration
	Logger   *slog.Logger

	health *health.Server
}

func NewHealthServer(addr string, probe Probe, logger *slog.Logger) *HealthServer {
	return &HealthServer{Addr: addr, Probe: probe, Interval: time.Second, Logger: logger, health: health.NewServer()}
}

// Refresh copies the probe result into the health service.
func (s *HealthServer) Refresh() healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if s.Probe != nil && s.Probe() {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	return status
}

// Run serves until ctx is done, then stops gracefully.
func (s *HealthServer) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}

func (s *HealthServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, s.health)
	s.Refresh()

	interval := s.Interval
	if interval <= 0 {
		interval = time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.health.Shutdown()
				srv.GracefulStop()
				return
			case <-ticker.C:
				s.Refresh()
			}
		}
	}()

	s.log().Info("grpc health server starting", "addr", lis.Addr().String())
	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

func (s *HealthServer) log() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
