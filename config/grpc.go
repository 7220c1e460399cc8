package config

import (
	"net"
	"strconv"

	grpcpkg "github.com/softreason/softreason/pkg/grpc"
)

// ToGRPCConfig builds the gRPC server settings. The server shares the
// HTTP host, the rate limit section and the tracing switch.
func (s *ServerConfig) ToGRPCConfig(tracing TracingConfig) *grpcpkg.Config {
	g := s.GRPC
	out := &grpcpkg.Config{
		Address:              net.JoinHostPort(s.Host, strconv.Itoa(g.Port)),
		MaxConcurrentStreams: g.MaxConcurrentStreams,
		MaxRecvMsgSize:       g.MaxRecvMsgSize,
		MaxSendMsgSize:       g.MaxSendMsgSize,
		EnableReflection:     g.EnableReflection,
		EnableHealthCheck:    g.EnableHealthCheck,
		HealthInterval:       g.HealthInterval,
		EnableTracing:        tracing.Enabled,
		TLS:                  grpcpkg.TLSConfig(g.TLS),
		Keepalive: grpcpkg.KeepaliveConfig{
			MaxIdle:             g.Keepalive.MaxIdle,
			MaxAge:              g.Keepalive.MaxAge,
			MaxAgeGrace:         g.Keepalive.MaxAgeGrace,
			Ping:                g.Keepalive.Ping,
			PingTimeout:         g.Keepalive.PingTimeout,
			MinClientPing:       g.Keepalive.MinClientPing,
			PermitWithoutStream: g.Keepalive.PermitWithoutStream,
		},
	}
	if rl := s.RateLimit; rl.Enabled {
		out.RateLimit = &grpcpkg.RateLimitConfig{RequestsPerSecond: rl.RequestsPerSecond, Burst: rl.Burst}
	}
	return out
}
