package grpc

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig wraps every Config validation failure.
var ErrInvalidConfig = errors.New("invalid grpc config")

// Config describes how the memory service is exposed over gRPC.
type Config struct {
	// Address is the listen address, host:port. Port 0 picks a free port.
	Address string

	// MaxConcurrentStreams caps streams per connection. 0 keeps the grpc-go default.
	MaxConcurrentStreams uint32

	// MaxRecvMsgSize and MaxSendMsgSize bound message sizes in bytes.
	// 0 keeps the grpc-go default.
	MaxRecvMsgSize int
	MaxSendMsgSize int

	EnableReflection  bool
	EnableHealthCheck bool

	// HealthInterval is how often the health probe runs. 0 disables probing.
	HealthInterval time.Duration

	// EnableTracing adds the OpenTelemetry interceptors.
	EnableTracing bool

	TLS       TLSConfig
	Keepalive KeepaliveConfig

	// RateLimit throttles each peer when set.
	RateLimit *RateLimitConfig
}

// RateLimitConfig is a per-peer token bucket.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// TLSConfig enables TLS, and mutual TLS when ClientAuth is set.
type TLSConfig struct {
	Enabled    bool
	CertFile   string
	KeyFile    string
	CAFile     string
	ClientAuth bool
}

// KeepaliveConfig maps onto keepalive.ServerParameters and
// keepalive.EnforcementPolicy. Zero durations keep the grpc-go defaults.
type KeepaliveConfig struct {
	MaxIdle     time.Duration
	MaxAge      time.Duration
	MaxAgeGrace time.Duration

	// Ping is the server ping interval and PingTimeout how long it waits
	// for the ack.
	Ping        time.Duration
	PingTimeout time.Duration

	// MinClientPing rejects clients that ping more often.
	MinClientPing       time.Duration
	PermitWithoutStream bool
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() *Config {
	return &Config{
		Address:              ":9090",
		MaxConcurrentStreams: 1000,
		MaxRecvMsgSize:       4 << 20,
		MaxSendMsgSize:       4 << 20,
		EnableHealthCheck:    true,
		HealthInterval:       10 * time.Second,
		Keepalive: KeepaliveConfig{
			MaxIdle:       5 * time.Minute,
			MaxAge:        time.Hour,
			MaxAgeGrace:   time.Minute,
			Ping:          time.Minute,
			PingTimeout:   20 * time.Second,
			MinClientPing: 30 * time.Second,
		},
	}
}

// Validate reports every problem found, each wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.Address == "" {
		fail("address is required")
	}
	if c.MaxRecvMsgSize < 0 || c.MaxSendMsgSize < 0 {
		fail("message size limits cannot be negative")
	}
	if c.HealthInterval < 0 {
		fail("health interval cannot be negative")
	}
	if rl := c.RateLimit; rl != nil && (rl.RequestsPerSecond <= 0 || rl.Burst <= 0) {
		fail("rate limit needs a positive rate and burst, got %v/%d", rl.RequestsPerSecond, rl.Burst)
	}

	if t := c.TLS; t.Enabled {
		if t.CertFile == "" || t.KeyFile == "" {
			fail("tls needs cert_file and key_file")
		}
		if t.ClientAuth && t.CAFile == "" {
			fail("client auth needs ca_file")
		}
	}

	k := c.Keepalive
	for name, d := range map[string]time.Duration{
		"max_idle":        k.MaxIdle,
		"max_age":         k.MaxAge,
		"max_age_grace":   k.MaxAgeGrace,
		"ping":            k.Ping,
		"ping_timeout":    k.PingTimeout,
		"min_client_ping": k.MinClientPing,
	} {
		if d < 0 {
			fail("keepalive %s cannot be negative", name)
		}
	}
	if k.Ping > 0 && k.PingTimeout >= k.Ping {
		fail("keepalive ping_timeout %v must be shorter than ping %v", k.PingTimeout, k.Ping)
	}

	return errors.Join(errs...)
}
