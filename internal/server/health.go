package server

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/kmrl/dochub/internal/jobs"
)

// NewHealthServer returns a gRPC server exposing grpc.health.v1 plus the health
// server whose status WatchStore keeps current.
func NewHealthServer() (*grpc.Server, *health.Server) {
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return gs, hs
}

// WatchStore pings the store every interval and flips the overall status between
// SERVING and NOT_SERVING. It returns when ctx is done.
func WatchStore(ctx context.Context, store jobs.Store, hs *health.Server, interval time.Duration, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	last := healthpb.HealthCheckResponse_UNKNOWN
	check := func() {
		status := healthpb.HealthCheckResponse_SERVING
		if err := store.Ping(ctx); err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			if last != status {
				logger.Warn("server.health.not_serving", "error", err)
			}
		}
		if status != last {
			hs.SetServingStatus("", status)
			last = status
		}
	}

	check()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-t.C:
			check()
		}
	}
}
