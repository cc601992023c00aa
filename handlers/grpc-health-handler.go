package handlers

import (
	"context"
	"log/slog"
	"time"

	"storefront/pkg/logkey"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type pinger interface {
	PingContext(ctx context.Context) error
}

// HealthService serves grpc.health.v1 with a status that follows database reachability.
type HealthService struct {
	srv      *health.Server
	db       pinger
	service  string
	interval time.Duration
}

func NewHealthService(db pinger, service string) *HealthService {
	return &HealthService{
		srv:      health.NewServer(),
		db:       db,
		service:  service,
		interval: 10 * time.Second,
	}
}

func (hs *HealthService) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, hs.srv)
}

func (hs *HealthService) check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := hs.db.PingContext(ctx); err != nil {
		slog.Error("database ping failed", slog.String(logkey.ERROR, err.Error()))
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	hs.srv.SetServingStatus("", status)
	hs.srv.SetServingStatus(hs.service, status)
	return status
}

// Run refreshes the status until ctx is done, then marks everything not serving.
func (hs *HealthService) Run(ctx context.Context) {
	hs.check(ctx)
	ticker := time.NewTicker(hs.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			hs.srv.Shutdown()
			return
		case <-ticker.C:
			hs.check(ctx)
		}
	}
}
