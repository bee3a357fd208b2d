// Package grpcapi exposes the standard gRPC health service so load
// balancers and orchestrators can probe the server on a separate port.
package grpcapi

import (
	"net"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name probes can ask about in addition to "".
const ServiceName = "lockbox.v1.Access"

type Server struct {
	grpc   *grpc.Server
	health *health.Server
	logger logrus.FieldLogger
}

// NewServer starts out SERVING for both the overall server and ServiceName.
func NewServer(logger logrus.FieldLogger, opts ...grpc.ServerOption) *Server {
	s := &Server{
		grpc:   grpc.NewServer(opts...),
		health: health.NewServer(),
		logger: logger,
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.SetServing(true)
	return s
}

// SetServing flips the reported status. It matches the HealthMonitor
// onChange signature.
func (s *Server) SetServing(ok bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	s.logger.WithField("status", status.String()).Info("grpc health status set")
}

func (s *Server) Serve(lis net.Listener) error {
	s.logger.WithField("addr", lis.Addr().String()).Info("grpc listening")
	return s.grpc.Serve(lis)
}

// Stop marks every service NOT_SERVING so watchers see the drain, then
// waits for in-flight RPCs.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
