package grpc

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	ggrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/softreason/softreason/pkg/grpc/handlers"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "default", mutate: func(*Config) {}},
		{name: "empty address", mutate: func(c *Config) { c.Address = "" }, wantErr: true},
		{name: "negative message size", mutate: func(c *Config) { c.MaxRecvMsgSize = -1 }, wantErr: true},
		{name: "negative health interval", mutate: func(c *Config) { c.HealthInterval = -time.Second }, wantErr: true},
		{name: "zero rate", mutate: func(c *Config) { c.RateLimit = &RateLimitConfig{Burst: 1} }, wantErr: true},
		{name: "rate limit", mutate: func(c *Config) { c.RateLimit = &RateLimitConfig{RequestsPerSecond: 5, Burst: 10} }},
		{name: "tls without cert", mutate: func(c *Config) { c.TLS = TLSConfig{Enabled: true, KeyFile: "k"} }, wantErr: true},
		{name: "disabled tls ignores files", mutate: func(c *Config) { c.TLS = TLSConfig{KeyFile: "k"} }},
		{name: "mtls without ca", mutate: func(c *Config) {
			c.TLS = TLSConfig{Enabled: true, CertFile: "c", KeyFile: "k", ClientAuth: true}
		}, wantErr: true},
		{name: "negative keepalive", mutate: func(c *Config) { c.Keepalive.MaxIdle = -time.Second }, wantErr: true},
		{name: "ping timeout over interval", mutate: func(c *Config) {
			c.Keepalive.Ping = 10 * time.Second
			c.Keepalive.PingTimeout = 10 * time.Second
		}, wantErr: true},
		{name: "zero keepalive keeps defaults", mutate: func(c *Config) { c.Keepalive = KeepaliveConfig{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Validate() error %v does not wrap ErrInvalidConfig", err)
			}
		})
	}
}

func TestConfig_ValidateReportsEveryProblem(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Address = ""
	cfg.HealthInterval = -time.Second

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected an error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "address") || !strings.Contains(msg, "health interval") {
		t.Fatalf("Validate() = %q, want both problems", msg)
	}
}

func TestNew_NilConfig(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("New(nil) error = %v, want ErrInvalidConfig", err)
	}
}

func TestServer_StartStop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Address = "127.0.0.1:0"

	srv, err := New(cfg, WithMetricsRegisterer(prometheus.NewRegistry()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !srv.IsRunning() {
		t.Fatal("server should be running")
	}
	if err := srv.Start(); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Start() error = %v, want ErrAlreadyRunning", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if srv.IsRunning() {
		t.Fatal("server should be stopped")
	}
	if err := srv.Stop(ctx); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}
}

func TestServer_HealthProbe(t *testing.T) {
	var failing atomic.Bool
	probe := func(ctx context.Context) error {
		if failing.Load() {
			return errors.New("store unavailable")
		}
		return nil
	}

	cfg := DefaultConfig()
	cfg.Address = "127.0.0.1:0"
	cfg.HealthInterval = 20 * time.Millisecond

	srv, err := New(cfg, WithHealthProbe(probe))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Stop(stopCtx)
	}()

	conn, err := ggrpc.NewClient(srv.Address(), ggrpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	defer conn.Close()
	client := grpc_health_v1.NewHealthClient(conn)

	check := func() grpc_health_v1.HealthCheckResponse_ServingStatus {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: ServiceName})
		if err != nil {
			t.Fatalf("Check() error = %v", err)
		}
		return resp.GetStatus()
	}

	if got := check(); got != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Fatalf("initial status = %v, want SERVING", got)
	}

	failing.Store(true)
	waitForStatus(t, check, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	failing.Store(false)
	waitForStatus(t, check, grpc_health_v1.HealthCheckResponse_SERVING)
}

func TestHealthServer_Probe(t *testing.T) {
	h := NewHealthServer()
	got := h.Probe(context.Background(), func(context.Context) error { return errors.New("down") })
	if got != grpc_health_v1.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("Probe() = %v, want NOT_SERVING", got)
	}
	got = h.Probe(context.Background(), func(context.Context) error { return nil })
	if got != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Fatalf("Probe() = %v, want SERVING", got)
	}
}

func waitForStatus(t *testing.T, check func() grpc_health_v1.HealthCheckResponse_ServingStatus, want grpc_health_v1.HealthCheckResponse_ServingStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if got := check(); got == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("status did not become %v", want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServer_RateLimitsMemoryCalls(t *testing.T) {
	client := startMemoryServer(t, func(c *Config) {
		c.RateLimit = &RateLimitConfig{RequestsPerSecond: 0.5, Burst: 1}
	})
	ctx := callContext(t)

	if _, err := client.Health(ctx); err != nil {
		t.Fatalf("first Health() error = %v", err)
	}
	var header, trailer metadata.MD
	_, err := client.Health(ctx, ggrpc.Header(&header), ggrpc.Trailer(&trailer))
	if status.Code(err) != codes.ResourceExhausted {
		t.Fatalf("expected ResourceExhausted, got %v", err)
	}
	if got := metadata.Join(header, trailer).Get("retry-after"); len(got) != 1 || got[0] != "2" {
		t.Fatalf("retry-after header = %v", got)
	}
}

func TestServer_MemoryRoundTrip(t *testing.T) {
	client := startMemoryServer(t, func(c *Config) {})
	ctx := callContext(t)

	resp, err := client.Ingest(ctx, &handlers.IngestRequest{
		Text:     "deploys freeze on fridays",
		Metadata: map[string]any{"team": "infra"},
	})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if !resp.Accepted || resp.ID == "" {
		t.Fatalf("Ingest() = %+v, want accepted with id", resp)
	}

	got, err := client.Query(ctx, &handlers.QueryRequest{Text: "deploys freeze on fridays", TopK: 1})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got.Results) != 1 || got.Results[0].ID != resp.ID {
		t.Fatalf("Query() = %+v, want the ingested memory", got.Results)
	}

	if err := client.Delete(ctx, &handlers.DeleteRequest{IDs: []string{resp.ID}}); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	health, err := client.Health(ctx)
	if err != nil {
		t.Fatalf("Health() error = %v", err)
	}
	if health.StoreCount != 0 {
		t.Fatalf("StoreCount = %d after delete, want 0", health.StoreCount)
	}
}

func TestServer_StartFailsOnMissingKeyPair(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Address = "127.0.0.1:0"
	cfg.TLS = TLSConfig{Enabled: true, CertFile: "missing.pem", KeyFile: "missing.key"}

	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := srv.Start(); err == nil || !strings.Contains(err.Error(), "key pair") {
		t.Fatalf("Start() error = %v, want key pair failure", err)
	}
	if srv.IsRunning() {
		t.Fatal("server should not run after a failed start")
	}
}
