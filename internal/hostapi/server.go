package hostapi

import (
	"fmt"
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	"p2pstreamd/internal/logger"
	"p2pstreamd/internal/mailbox"
)

// Option configures a Server at construction time.
type Option func(*Server)

// WithLogger attaches a structured logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// Server hosts the hand-written HostAPI service over a mailbox-wrapped
// Runner, the way the teacher's internal/server.Server hosted its DHT
// and client services over a *node.Node.
type Server struct {
	grpcServer *grpc.Server
	listener   net.Listener
	logger     logger.Logger
}

// New binds a Server to lis, registering mbox behind ServiceDesc.
// otelgrpc's stats handler is attached ahead of any caller-supplied
// grpcOpts, so every RPC is traced without each call site needing to
// remember to wire it in.
func New(lis net.Listener, mbox *mailbox.Mailbox, grpcOpts []grpc.ServerOption, opts ...Option) *Server {
	allOpts := append([]grpc.ServerOption{grpc.StatsHandler(otelgrpc.NewServerHandler())}, grpcOpts...)
	s := &Server{
		grpcServer: grpc.NewServer(allOpts...),
		listener:   lis,
		logger:     &logger.NopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.grpcServer.RegisterService(&ServiceDesc, NewService(mbox))
	return s
}

// Start runs the gRPC server and blocks until it stops.
func (s *Server) Start() error {
	if err := s.grpcServer.Serve(s.listener); err != nil {
		return fmt.Errorf("hostapi: gRPC server stopped: %w", err)
	}
	return nil
}

// Stop immediately stops the server and closes all active connections.
func (s *Server) Stop() { s.grpcServer.Stop() }

// GracefulStop waits for in-flight RPCs to complete before shutting down.
func (s *Server) GracefulStop() { s.grpcServer.GracefulStop() }
