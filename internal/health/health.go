// Package health exposes the scheduler's run state over grpc.health.v1 and
// provides the matching client check.
package health

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	apperrors "github.com/GriffinCanCode/polyglot/internal/errors"
	"github.com/GriffinCanCode/polyglot/internal/trace"
)

// Service is the health service name reporting the monitor loop.
const Service = "polyglot.monitor"

// Server is a gRPC server carrying only the health service.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
}

// NewServer creates a server reporting NOT_SERVING until SetServing(true).
func NewServer(opts ...grpc.ServerOption) *Server {
	opts = append([]grpc.ServerOption{
		grpc.UnaryInterceptor(trace.UnaryServerInterceptor()),
		grpc.StreamInterceptor(trace.StreamServerInterceptor()),
	}, opts...)
	s := &Server{grpc: grpc.NewServer(opts...), health: health.NewServer()}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus(Service, healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// SetServing flips the monitor status.
func (s *Server) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(Service, st)
}

// Serve blocks serving on lis.
func (s *Server) Serve(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// Stop marks everything NOT_SERVING and stops gracefully.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

// Check dials addr and reports whether the monitor is serving. Transport and
// status errors come back as AppErrors.
func Check(ctx context.Context, addr string, opts ...grpc.DialOption) (bool, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(trace.UnaryClientInterceptor()),
	}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.Unavailable, "dial health server").WithMetadata("addr", addr)
	}
	defer func() { _ = conn.Close() }()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: Service})
	if err != nil {
		return false, apperrors.FromGRPCError(err)
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING, nil
}
