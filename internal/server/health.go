package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// Pinger is what the health server checks before reporting SERVING.
type Pinger interface {
	HealthCheck(ctx context.Context, timeout time.Duration, logger *slog.Logger) error
}

// Health is a gRPC server carrying only the standard health service.
type Health struct {
	grpc   *grpc.Server
	health *health.Server
	logger *slog.Logger
}

func NewHealth(logger *slog.Logger) *Health {
	if logger == nil {
		logger = slog.Default()
	}
	gs := grpc.NewServer()
	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	return &Health{grpc: gs, health: hs, logger: logger}
}

// MarkServing pings db and flips the overall status to SERVING on success.
func (h *Health) MarkServing(ctx context.Context, db Pinger) error {
	if err := db.HealthCheck(ctx, 5*time.Second, h.logger); err != nil {
		h.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
		return err
	}
	h.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	return nil
}

// Serve blocks until Stop is called.
func (h *Health) Serve(lis net.Listener) error {
	h.logger.Info("grpc health listening", "addr", lis.Addr().String())
	if err := h.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

func (h *Health) Stop() {
	h.health.Shutdown()
	h.grpc.GracefulStop()
}
