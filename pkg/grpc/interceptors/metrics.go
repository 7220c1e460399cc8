package interceptors

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

const (
	rpcUnary  = "unary"
	rpcStream = "stream"
)

// Metrics holds the Prometheus collectors for the gRPC surface.
type Metrics struct {
	handled  *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	inflight *prometheus.GaugeVec
	messages *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with r. Collectors
// already present in r are reused. A nil r uses the default registerer.
func NewMetrics(r prometheus.Registerer) *Metrics {
	if r == nil {
		r = prometheus.DefaultRegisterer
	}
	return &Metrics{
		handled: register(r, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sr_grpc_handled_total",
			Help: "RPCs completed, by method, type and status code.",
		}, []string{"method", "type", "code"})),
		latency: register(r, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sr_grpc_handling_seconds",
			Help:    "RPC handling time until the handler returned.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5, 30},
		}, []string{"method", "type"})),
		inflight: register(r, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sr_grpc_in_flight",
			Help: "RPCs currently being handled.",
		}, []string{"method"})),
		messages: register(r, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sr_grpc_stream_messages_total",
			Help: "Messages exchanged on streaming RPCs.",
		}, []string{"method", "direction"})),
	}
}

func register[C prometheus.Collector](r prometheus.Registerer, c C) C {
	if err := r.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func (m *Metrics) begin(method string) func(kind string, err error) {
	start := time.Now()
	m.inflight.WithLabelValues(method).Inc()
	return func(kind string, err error) {
		m.inflight.WithLabelValues(method).Dec()
		m.handled.WithLabelValues(method, kind, status.Code(err).String()).Inc()
		m.latency.WithLabelValues(method, kind).Observe(time.Since(start).Seconds())
	}
}

// MetricsUnaryInterceptor records unary RPCs.
func MetricsUnaryInterceptor(m *Metrics) grpc.UnaryServerInterceptor {
	if m == nil {
		m = NewMetrics(nil)
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		done := m.begin(info.FullMethod)
		resp, err := handler(ctx, req)
		done(rpcUnary, err)
		return resp, err
	}
}

// MetricsStreamInterceptor records streaming RPCs and their message counts.
func MetricsStreamInterceptor(m *Metrics) grpc.StreamServerInterceptor {
	if m == nil {
		m = NewMetrics(nil)
	}
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		done := m.begin(info.FullMethod)
		counted := &countingStream{ServerStream: ss}
		err := handler(srv, counted)
		done(rpcStream, err)
		m.messages.WithLabelValues(info.FullMethod, "recv").Add(float64(counted.recv))
		m.messages.WithLabelValues(info.FullMethod, "sent").Add(float64(counted.sent))
		return err
	}
}

// countingStream counts successful RecvMsg and SendMsg calls. Each counter
// is only touched by the goroutine driving that direction.
type countingStream struct {
	grpc.ServerStream
	recv, sent int
}

func (s *countingStream) RecvMsg(msg any) error {
	err := s.ServerStream.RecvMsg(msg)
	if err == nil {
		s.recv++
	}
	return err
}

func (s *countingStream) SendMsg(msg any) error {
	err := s.ServerStream.SendMsg(msg)
	if err == nil {
		s.sent++
	}
	return err
}
