// Package tracing configures the process-wide OpenTelemetry tracer provider
// that the engine, the HTTP API and the gRPC server report spans to.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc/credentials"

	"github.com/softreason/softreason/config"
	"github.com/softreason/softreason/pkg/logger"
)

// Service identifies the process in exported spans.
type Service struct {
	Name        string
	Version     string
	Environment string
}

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(ctx context.Context) error

func noShutdown(context.Context) error { return nil }

// newExporter builds the span exporter. Tests replace it.
var newExporter = func(ctx context.Context, cfg config.TracingConfig) (sdktrace.SpanExporter, error) {
	return otlptracegrpc.New(ctx, otlpOptions(cfg)...)
}

func otlpOptions(cfg config.TracingConfig) []otlptracegrpc.Option {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(collectorAddr(cfg.Endpoint)),
		otlptracegrpc.WithTimeout(cfg.Timeout),
	}
	if useTLS(cfg.Endpoint) {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
	} else {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}
	return opts
}

// tolerantExporter logs failed exports and reports success to the batcher,
// so a collector outage never backs up into request handling.
type tolerantExporter struct {
	sdktrace.SpanExporter
	log      logger.Logger
	endpoint string
}

func (e tolerantExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if err := e.SpanExporter.ExportSpans(ctx, spans); err != nil {
		e.log.Warn("tracing export failed",
			"endpoint", e.endpoint,
			"spans", len(spans),
			"error", err,
		)
	}
	return nil
}

// Init installs the global tracer provider and propagator. A disabled
// config installs a no-op provider so instrumented code keeps working.
// The returned ShutdownFunc is never nil.
func Init(ctx context.Context, cfg config.TracingConfig, svc Service, log logger.Logger) (ShutdownFunc, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return noShutdown, nil
	}
	if err := validate(cfg); err != nil {
		return noShutdown, err
	}

	exp, err := newExporter(ctx, cfg)
	if err != nil {
		return noShutdown, fmt.Errorf("create tracing exporter: %w", err)
	}
	res, err := serviceResource(ctx, svc)
	if err != nil {
		_ = exp.Shutdown(ctx)
		return noShutdown, fmt.Errorf("create tracing resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(tolerantExporter{
			SpanExporter: exp,
			log:          logger.OrNop(log),
			endpoint:     collectorAddr(cfg.Endpoint),
		}),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(selectSampler(cfg)),
	)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		flushErr := tp.ForceFlush(ctx)
		if err := tp.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown tracing provider: %w", errors.Join(flushErr, err))
		}
		if flushErr != nil {
			return fmt.Errorf("flush tracing provider: %w", flushErr)
		}
		return nil
	}, nil
}

func validate(cfg config.TracingConfig) error {
	switch {
	case !strings.EqualFold(strings.TrimSpace(cfg.Exporter), "otlp"):
		return fmt.Errorf("unsupported tracing exporter %q", cfg.Exporter)
	case collectorAddr(cfg.Endpoint) == "":
		return errors.New("tracing endpoint cannot be empty")
	case cfg.Timeout <= 0:
		return errors.New("tracing timeout must be > 0")
	}
	return nil
}

func serviceResource(ctx context.Context, svc Service) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(svc.Name),
		semconv.ServiceVersion(svc.Version),
	}
	if svc.Environment != "" {
		attrs = append(attrs, attribute.String("deployment.environment.name", svc.Environment))
	}
	return resource.New(ctx,
		resource.WithAttributes(attrs...),
		resource.WithHost(),
		resource.WithProcessRuntimeName(),
	)
}

// selectSampler maps the configured sampler name. Anything but always_on
// and always_off samples SampleRate of new traces and follows the parent
// decision otherwise.
func selectSampler(cfg config.TracingConfig) sdktrace.Sampler {
	switch strings.ToLower(strings.TrimSpace(cfg.Sampler)) {
	case "always_on":
		return sdktrace.AlwaysSample()
	case "always_off":
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))
	}
}

func useTLS(endpoint string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(endpoint)), "https://")
}

// collectorAddr reduces a collector URL to the host:port the gRPC exporter
// dials. Bare host:port values pass through.
func collectorAddr(endpoint string) string {
	raw := strings.TrimSpace(endpoint)
	if !strings.Contains(raw, "://") {
		return raw
	}
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		return u.Host
	}
	return raw
}
