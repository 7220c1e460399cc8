package grpc

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	ggrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/softreason/softreason/pkg/embedding"
	"github.com/softreason/softreason/pkg/grpc/handlers"
	"github.com/softreason/softreason/pkg/logger"
	"github.com/softreason/softreason/pkg/reasoning"
	"github.com/softreason/softreason/pkg/vectorstore/memstore"
)

func TestServer_TracingEnabledSpansMemoryCalls(t *testing.T) {
	recorder := setTestTracerProvider(t)
	client := startMemoryServer(t, func(c *Config) { c.EnableTracing = true })
	ctx := callContext(t)

	if _, err := client.Ingest(ctx, &handlers.IngestRequest{Text: "the kettle is on the stove"}); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	_, err := client.Ingest(ctx, &handlers.IngestRequest{Text: "   "})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for blank text, got %v", err)
	}

	spans := waitForEndedSpans(recorder, 2, 2*time.Second)
	var ok, failed sdktrace.ReadOnlySpan
	for _, span := range spans {
		if span.Name() != "/"+handlers.MemoryServiceName+"/Ingest" {
			continue
		}
		if span.Status().Code == otelcodes.Error {
			failed = span
		} else {
			ok = span
		}
	}
	if ok == nil || failed == nil {
		t.Fatalf("expected a successful and a failed ingest span, got %d spans", len(spans))
	}
	if got := intAttr(failed, "rpc.grpc.status_code"); got != int64(codes.InvalidArgument) {
		t.Fatalf("failed span status code = %d", got)
	}
	if got := intAttr(ok, "rpc.grpc.status_code"); got != int64(codes.OK) {
		t.Fatalf("ok span status code = %d", got)
	}
}

func TestServer_TracingDisabledNoSpan(t *testing.T) {
	recorder := setTestTracerProvider(t)
	client := startMemoryServer(t, func(c *Config) { c.EnableTracing = false })

	if _, err := client.Health(callContext(t)); err != nil {
		t.Fatalf("Health() error = %v", err)
	}

	spans := waitForEndedSpans(recorder, 1, 200*time.Millisecond)
	if len(spans) != 0 {
		t.Fatalf("expected no spans when tracing is disabled, got %d", len(spans))
	}
}

func startMemoryServer(t *testing.T, configure func(*Config)) *handlers.MemoryClient {
	t.Helper()

	eng, err := reasoning.New(
		memstore.New(0),
		embedding.Single(embedding.NewHash(64)),
		reasoning.DefaultRecallConfig(),
		reasoning.DefaultWritebackConfig(),
		reasoning.WithLogger(logger.Nop()),
		reasoning.WithAsyncWorkers(2, 8),
	)
	if err != nil {
		t.Fatalf("reasoning.New() error = %v", err)
	}
	t.Cleanup(func() { _ = eng.Close() })

	cfg := DefaultConfig()
	cfg.Address = "127.0.0.1:0"
	configure(cfg)

	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	srv.RegisterService(&handlers.MemoryServiceDesc, handlers.NewMemoryService(eng, nil, logger.Nop()))
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	})

	conn, err := ggrpc.NewClient(srv.Address(), ggrpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return handlers.NewMemoryClient(conn)
}

func callContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func setTestTracerProvider(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	prevProvider := otel.GetTracerProvider()
	prevPropagator := otel.GetTextMapPropagator()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prevProvider)
		otel.SetTextMapPropagator(prevPropagator)
	})
	return recorder
}

func intAttr(span sdktrace.ReadOnlySpan, key attribute.Key) int64 {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value.AsInt64()
		}
	}
	return -1
}

func waitForEndedSpans(recorder *tracetest.SpanRecorder, minCount int, timeout time.Duration) []sdktrace.ReadOnlySpan {
	deadline := time.Now().Add(timeout)
	for {
		spans := recorder.Ended()
		if len(spans) >= minCount || time.Now().After(deadline) {
			return spans
		}
		time.Sleep(10 * time.Millisecond)
	}
}
