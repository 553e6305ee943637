// Package health serves grpc.health.v1 so clients can probe backend
// reachability without touching the REST API.
package health

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dmitrijs2005/parcelsync/internal/logging"
)

// ServiceName is the service reported alongside the overall server status.
const ServiceName = "parcelsync"

// RefreshInterval is how often the checker runs while serving.
var RefreshInterval = 10 * time.Second

// Checker reports whether dependencies are usable.
type Checker func(ctx context.Context) error

type Server struct {
	address string
	check   Checker
	logger  logging.Logger
	health  *health.Server
}

func NewServer(address string, check Checker, l logging.Logger) *Server {
	return &Server{
		address: address,
		check:   check,
		logger:  l.With("module", "grpc_health"),
		health:  health.NewServer(),
	}
}

// Refresh updates the serving status from the checker.
func (s *Server) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if s.check != nil {
		if err := s.check(ctx); err != nil {
			s.logger.Warn(ctx, "dependency check failed", "error", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	return status
}

// Serve runs on lis until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, s.health)
	s.Refresh(ctx)

	go func() {
		ticker := time.NewTicker(RefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Refresh(ctx)
			case <-ctx.Done():
				s.logger.Info(ctx, "Stopping gRPC health server...")
				s.health.Shutdown()
				srv.GracefulStop()
				return
			}
		}
	}()

	s.logger.Info(ctx, "Starting gRPC health server", "address", lis.Addr().String())
	return srv.Serve(lis)
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}
