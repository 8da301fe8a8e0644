package server

import (
	"context"
	"net"
	"testing"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/diogomassis/rinha-dispatch/internal/models"
)

type staticState map[models.ProcessorType]models.ProcessorHealth

func (s staticState) Snapshot(p models.ProcessorType) models.ProcessorHealth {
	if h, ok := s[p]; ok {
		return h
	}
	return models.AssumeFailing()
}

func TestCheck(t *testing.T) {
	s := NewRinhaServer(staticState{models.ProcessorDefault: {MinResponseTime: 10}})
	tests := []struct {
		service string
		want    grpc_health_v1.HealthCheckResponse_ServingStatus
	}{
		{"", grpc_health_v1.HealthCheckResponse_SERVING},
		{"default", grpc_health_v1.HealthCheckResponse_SERVING},
		{"fallback", grpc_health_v1.HealthCheckResponse_NOT_SERVING},
	}
	for _, tt := range tests {
		resp, err := s.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: tt.service})
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", tt.service, err)
		}
		if resp.GetStatus() != tt.want {
			t.Errorf("%q: expected %s, got %s", tt.service, tt.want, resp.GetStatus())
		}
	}

	_, err := s.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: "other"})
	if status.Code(err) != codes.NotFound {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestServeOverBufconn(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	g := NewGRPCServer(staticState{models.ProcessorFallback: {MinResponseTime: 5}})

	served := make(chan error, 1)
	go func() { served <- Serve(ctx, g, lis, zerolog.Nop()) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: "fallback"})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Errorf("expected SERVING, got %s", resp.GetStatus())
	}

	cancel()
	if err := <-served; err != nil {
		t.Errorf("unexpected serve error: %v", err)
	}
}
