// Package interceptors holds the server interceptors installed on the gRPC
// listener.
package interceptors

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"

	"github.com/softreason/softreason/pkg/logger"
	"github.com/softreason/softreason/pkg/ratelimit"
)

// Chain collects unary and stream interceptors in call order. The first
// added runs outermost.
type Chain struct {
	unary  []grpc.UnaryServerInterceptor
	stream []grpc.StreamServerInterceptor
}

// NewChain returns an empty chain.
func NewChain() *Chain {
	return &Chain{}
}

func (c *Chain) add(u grpc.UnaryServerInterceptor, s grpc.StreamServerInterceptor) *Chain {
	c.unary = append(c.unary, u)
	c.stream = append(c.stream, s)
	return c
}

// Recovery turns handler panics into codes.Internal. Add it first.
func (c *Chain) Recovery(log logger.Logger) *Chain {
	return c.add(RecoveryUnaryInterceptor(log), RecoveryStreamInterceptor(log))
}

// RequestID propagates or assigns x-request-id.
func (c *Chain) RequestID() *Chain {
	return c.add(RequestIDUnaryInterceptor(), RequestIDStreamInterceptor())
}

// RateLimit throttles each peer address.
func (c *Chain) RateLimit(l *ratelimit.Keyed) *Chain {
	return c.add(RateLimitUnaryInterceptor(l), RateLimitStreamInterceptor(l))
}

// Logging logs every finished call.
func (c *Chain) Logging(log logger.Logger) *Chain {
	return c.add(LoggingUnaryInterceptor(log), LoggingStreamInterceptor(log))
}

// Metrics records RPC counters and latencies in r.
func (c *Chain) Metrics(r prometheus.Registerer) *Chain {
	m := NewMetrics(r)
	return c.add(MetricsUnaryInterceptor(m), MetricsStreamInterceptor(m))
}

// Tracing starts a server span per call.
func (c *Chain) Tracing() *Chain {
	return c.add(TracingUnaryInterceptor(), TracingStreamInterceptor())
}

// Len returns the number of interceptor pairs.
func (c *Chain) Len() int {
	return len(c.unary)
}

// ServerOptions returns the chain as grpc.Server options.
func (c *Chain) ServerOptions() []grpc.ServerOption {
	if len(c.unary) == 0 {
		return nil
	}
	return []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(c.unary...),
		grpc.ChainStreamInterceptor(c.stream...),
	}
}

// contextStream overrides the context of a server stream.
type contextStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *contextStream) Context() context.Context {
	return s.ctx
}
