package grpcx

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestHealthFollowsProbe(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var probeErr error
	hs := NewHealthServer(logger, "vetcare.clinic", func(context.Context) error { return probeErr }, 0)

	if got := hs.Refresh(context.Background()); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %s", got)
	}
	resp, err := hs.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "vetcare.clinic"})
	if err != nil || resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("unexpected check result %v %v", resp, err)
	}

	probeErr = errors.New("db down")
	if got := hs.Refresh(context.Background()); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING, got %s", got)
	}

	_, err = hs.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "unknown"})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound for unknown service, got %v", err)
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "abc")
	if RequestIDFromContext(ctx) != "abc" {
		t.Fatal("request id not stored")
	}
	if WithRequestID(ctx, "") != ctx {
		t.Fatal("empty id should not wrap context")
	}
	if len(NewRequestID()) != 32 {
		t.Fatal("expected 32 hex chars")
	}
}
