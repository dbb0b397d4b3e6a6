package grpc

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/nemanja-m/parmr/internal/shared/config"
	"github.com/nemanja-m/parmr/internal/shared/logging"
)

// Server exposes the standard gRPC health service, and reflection when
// enabled, next to the REST API.
type Server struct {
	addr       string
	grpcServer *grpc.Server
	health     *health.Server
	logger     logging.Logger
}

func NewServer(cfg config.GRPCConfig, logger logging.Logger) *Server {
	grpcServer := grpc.NewServer(
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             cfg.KeepaliveMinTime,
			PermitWithoutStream: true,
		}),
		grpc.ChainUnaryInterceptor(loggingInterceptor(logger)),
	)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	if cfg.EnableReflection {
		reflection.Register(grpcServer)
	}

	return &Server{
		addr:       cfg.Addr,
		grpcServer: grpcServer,
		health:     healthServer,
		logger:     logger,
	}
}

func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(lis)
}

// Serve accepts connections on lis and reports SERVING until Stop.
func (s *Server) Serve(lis net.Listener) error {
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.logger.Info("gRPC server listening", "addr", lis.Addr().String())
	return s.grpcServer.Serve(lis)
}

func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}

func loggingInterceptor(logger logging.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Debug("gRPC request",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}
