// Package grpc serves the memory service and the standard health service
// over gRPC.
package grpc

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"github.com/softreason/softreason/pkg/grpc/interceptors"
	"github.com/softreason/softreason/pkg/logger"
	"github.com/softreason/softreason/pkg/ratelimit"
)

var (
	ErrAlreadyRunning = errors.New("grpc server already running")
	ErrForcedStop     = errors.New("grpc graceful stop timed out, connections were closed")
)

// Server owns a grpc.Server and its listener. Services registered before
// Start are queued and installed when the server is built.
type Server struct {
	cfg        *Config
	log        logger.Logger
	registerer prometheus.Registerer
	probe      HealthProbe

	mu          sync.RWMutex
	srv         *grpc.Server
	lis         net.Listener
	health      *HealthServer
	services    []registration
	stopProbing context.CancelFunc
}

type registration struct {
	desc *grpc.ServiceDesc
	impl any
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(l logger.Logger) Option {
	return func(s *Server) { s.log = logger.OrNop(l) }
}

// WithMetricsRegisterer enables the metrics interceptor, registering its
// collectors with r.
func WithMetricsRegisterer(r prometheus.Registerer) Option {
	return func(s *Server) { s.registerer = r }
}

// WithHealthProbe drives the health status from p every HealthInterval.
func WithHealthProbe(p HealthProbe) Option {
	return func(s *Server) { s.probe = p }
}

// New validates cfg and returns a stopped server.
func New(cfg *Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Server{cfg: cfg, log: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv != nil {
		return ErrAlreadyRunning
	}

	opts, err := s.serverOptions()
	if err != nil {
		return err
	}
	lis, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Address, err)
	}

	srv := grpc.NewServer(opts...)
	for _, r := range s.services {
		srv.RegisterService(r.desc, r.impl)
	}
	if s.cfg.EnableReflection {
		reflection.Register(srv)
	}
	if s.cfg.EnableHealthCheck {
		s.startHealth(srv)
	}

	s.srv, s.lis = srv, lis
	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			s.log.Error("grpc serve failed", "address", lis.Addr().String(), "error", err)
		}
	}()

	s.log.Info("grpc server started", "address", lis.Addr().String(), "services", len(s.services))
	return nil
}

func (s *Server) startHealth(srv *grpc.Server) {
	s.health = NewHealthServer()
	s.health.register(srv)
	s.health.Set(healthpb.HealthCheckResponse_SERVING)

	if s.probe == nil || s.cfg.HealthInterval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.stopProbing = cancel
	go s.health.Watch(ctx, s.probe, s.cfg.HealthInterval, func(st healthpb.HealthCheckResponse_ServingStatus) {
		s.log.Warn("grpc serving status changed", "status", st.String())
	})
}

// Stop drains in-flight calls until ctx ends, then closes whatever is
// left and returns ErrForcedStop. Stopping a stopped server is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv == nil {
		return nil
	}
	srv := s.srv
	s.srv, s.lis = nil, nil

	if s.stopProbing != nil {
		s.stopProbing()
		s.stopProbing = nil
	}
	if s.health != nil {
		s.health.Shutdown()
		s.health = nil
	}

	drained := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(drained)
	}()
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		srv.Stop()
		return ErrForcedStop
	}
}

// RegisterService installs a service, now if the server runs and on the
// next Start otherwise.
func (s *Server) RegisterService(desc *grpc.ServiceDesc, impl any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.services = append(s.services, registration{desc: desc, impl: impl})
	if s.srv != nil {
		s.srv.RegisterService(desc, impl)
	}
}

// Health returns the health server while running with health checks on.
func (s *Server) Health() *HealthServer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.health
}

// Address is the bound address while running, the configured one otherwise.
func (s *Server) Address() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lis != nil {
		return s.lis.Addr().String()
	}
	return s.cfg.Address
}

func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.srv != nil
}

func (s *Server) serverOptions() ([]grpc.ServerOption, error) {
	var opts []grpc.ServerOption

	if s.cfg.TLS.Enabled {
		creds, err := transportCredentials(s.cfg.TLS)
		if err != nil {
			return nil, err
		}
		opts = append(opts, grpc.Creds(creds))
	}
	if n := s.cfg.MaxConcurrentStreams; n > 0 {
		opts = append(opts, grpc.MaxConcurrentStreams(n))
	}
	if n := s.cfg.MaxRecvMsgSize; n > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(n))
	}
	if n := s.cfg.MaxSendMsgSize; n > 0 {
		opts = append(opts, grpc.MaxSendMsgSize(n))
	}

	ka := s.cfg.Keepalive
	opts = append(opts,
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     ka.MaxIdle,
			MaxConnectionAge:      ka.MaxAge,
			MaxConnectionAgeGrace: ka.MaxAgeGrace,
			Time:                  ka.Ping,
			Timeout:               ka.PingTimeout,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             ka.MinClientPing,
			PermitWithoutStream: ka.PermitWithoutStream,
		}),
	)

	// Order matters: recovery sees every panic and request IDs reach the
	// limiter's and logger's context.
	chain := interceptors.NewChain().Recovery(s.log).RequestID()
	if rl := s.cfg.RateLimit; rl != nil {
		chain.RateLimit(ratelimit.New(rl.RequestsPerSecond, rl.Burst))
	}
	chain.Logging(s.log)
	if s.registerer != nil {
		chain.Metrics(s.registerer)
	}
	if s.cfg.EnableTracing {
		chain.Tracing()
	}
	return append(opts, chain.ServerOptions()...), nil
}

// transportCredentials loads the server key pair and, with ClientAuth,
// requires client certificates signed by CAFile.
func transportCredentials(cfg TLSConfig) (credentials.TransportCredentials, error) {
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load grpc key pair: %w", err)
	}
	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	if !cfg.ClientAuth {
		return credentials.NewTLS(tlsCfg), nil
	}

	pem, err := os.ReadFile(cfg.CAFile)
	if err != nil {
		return nil, fmt.Errorf("read grpc client CA: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %s", cfg.CAFile)
	}
	tlsCfg.ClientCAs = pool
	tlsCfg.ClientAuth = tls.RequireAndVerifyClientCert
	return credentials.NewTLS(tlsCfg), nil
}
