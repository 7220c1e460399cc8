package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health check service name reported for the engine.
const ServiceName = "softreason.v1.Engine"

// HealthProbe reports whether the engine can serve requests.
type HealthProbe func(ctx context.Context) error

// HealthServer reports one status for both the overall server ("") and
// ServiceName.
type HealthServer struct {
	server *health.Server
}

func NewHealthServer() *HealthServer {
	return &HealthServer{server: health.NewServer()}
}

func (h *HealthServer) register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.server)
}

// Set records status for the server and the engine service.
func (h *HealthServer) Set(status healthpb.HealthCheckResponse_ServingStatus) {
	h.server.SetServingStatus("", status)
	h.server.SetServingStatus(ServiceName, status)
}

// Probe runs probe once, records the outcome and returns it.
func (h *HealthServer) Probe(ctx context.Context, probe HealthProbe) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if err := probe(ctx); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.Set(status)
	return status
}

// Watch probes every interval until ctx is done. Each probe gets at most
// one interval. onChange, if set, sees every transition.
func (h *HealthServer) Watch(ctx context.Context, probe HealthProbe, interval time.Duration, onChange func(healthpb.HealthCheckResponse_ServingStatus)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := healthpb.HealthCheckResponse_SERVING
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		probeCtx, cancel := context.WithTimeout(ctx, interval)
		status := h.Probe(probeCtx, probe)
		cancel()
		if status == last {
			continue
		}
		last = status
		if onChange != nil {
			onChange(status)
		}
	}
}

// Shutdown marks everything NOT_SERVING and ignores later updates.
func (h *HealthServer) Shutdown() {
	h.server.Shutdown()
}
