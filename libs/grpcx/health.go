package grpcx

import (
	"context"
	"log/slog"
	"net"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Probe reports whether the service's dependencies are usable.
type Probe func(ctx context.Context) error

// HealthServer exposes grpc.health.v1 for mesh and orchestrator probes. The serving
// status of service (and of "") follows probe, polled every interval.
type HealthServer struct {
	srv      *grpc.Server
	health   *health.Server
	service  string
	probe    Probe
	interval time.Duration
	logger   *slog.Logger
}

func NewHealthServer(logger *slog.Logger, service string, probe Probe, interval time.Duration) *HealthServer {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(UnaryServerRequestIDInterceptor()),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return &HealthServer{
		srv:      srv,
		health:   hs,
		service:  service,
		probe:    probe,
		interval: interval,
		logger:   logger,
	}
}

// Refresh runs the probe once and publishes the resulting status.
func (h *HealthServer) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if h.probe != nil {
		if err := h.probe(ctx); err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			h.logger.Warn("grpc health probe failed", "err", err)
		}
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(h.service, status)
	return status
}

// Serve blocks until ctx is cancelled, then stops gracefully.
func (h *HealthServer) Serve(ctx context.Context, lis net.Listener) error {
	h.Refresh(ctx)
	go func() {
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				h.health.Shutdown()
				h.srv.GracefulStop()
				return
			case <-ticker.C:
				h.Refresh(ctx)
			}
		}
	}()
	h.logger.Info("grpc server starting", "addr", lis.Addr().String())
	return h.srv.Serve(lis)
}
