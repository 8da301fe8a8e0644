package server

import (
	"context"
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/diogomassis/rinha-dispatch/internal/models"
)

type HealthReader interface {
	Snapshot(p models.ProcessorType) models.ProcessorHealth
}

// RinhaServer answers grpc.health.v1 checks. The empty service name is the
// process itself; "default" and "fallback" report the processor records.
type RinhaServer struct {
	grpc_health_v1.UnimplementedHealthServer
	state HealthReader
}

func NewRinhaServer(state HealthReader) *RinhaServer {
	return &RinhaServer{
		state: state,
	}
}

func (s *RinhaServer) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	service := req.GetService()
	if service == "" {
		return &grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_SERVING}, nil
	}

	p := models.ProcessorType(service)
	if !p.Valid() {
		return nil, status.Errorf(codes.NotFound, "unknown service %q", service)
	}
	if s.state.Snapshot(p).Failing {
		return &grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_NOT_SERVING}, nil
	}
	return &grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_SERVING}, nil
}

func NewGRPCServer(state HealthReader) *grpc.Server {
	g := grpc.NewServer()
	grpc_health_v1.RegisterHealthServer(g, NewRinhaServer(state))
	return g
}

// Serve blocks until the listener fails or ctx is cancelled, then stops the
// server gracefully.
func Serve(ctx context.Context, g *grpc.Server, lis net.Listener, log zerolog.Logger) error {
	go func() {
		<-ctx.Done()
		g.GracefulStop()
	}()

	log.Info().Str("addr", lis.Addr().String()).Msg("grpc health server listening")
	if err := g.Serve(lis); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
