package interceptors

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const tracerName = "softreason.grpc"

// TracingUnaryInterceptor starts a server span continuing the caller's trace.
func TracingUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, span := startServerSpan(ctx, info.FullMethod)
		defer span.End()

		resp, err := handler(ctx, req)
		endServerSpan(span, err)
		return resp, err
	}
}

// TracingStreamInterceptor is the streaming form of TracingUnaryInterceptor.
func TracingStreamInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, span := startServerSpan(ss.Context(), info.FullMethod)
		defer span.End()

		err := handler(srv, &contextStream{ServerStream: ss, ctx: ctx})
		endServerSpan(span, err)
		return err
	}
}

// startServerSpan extracts the incoming trace context, starts the span and
// injects it into outgoing metadata for downstream calls.
func startServerSpan(ctx context.Context, fullMethod string) (context.Context, trace.Span) {
	md, _ := metadata.FromIncomingContext(ctx)
	ctx = otel.GetTextMapPropagator().Extract(ctx, metadataCarrier(md))

	service, method := splitMethod(fullMethod)
	attrs := []attribute.KeyValue{
		attribute.String("rpc.system", "grpc"),
		attribute.String("rpc.service", service),
		attribute.String("rpc.method", method),
	}
	if id, ok := RequestIDFromContext(ctx); ok {
		attrs = append(attrs, attribute.String("rpc.request_id", id))
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, fullMethod,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attrs...),
	)

	out := metadata.New(nil)
	otel.GetTextMapPropagator().Inject(ctx, metadataCarrier(out))
	return metadata.NewOutgoingContext(ctx, out), span
}

// endServerSpan records the status code. Successful calls keep the Unset
// span status.
func endServerSpan(span trace.Span, err error) {
	code := status.Code(err)
	span.SetAttributes(attribute.Int("rpc.grpc.status_code", int(code)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, code.String())
	}
}

func splitMethod(fullMethod string) (service, method string) {
	trimmed := strings.TrimPrefix(fullMethod, "/")
	if service, method, ok := strings.Cut(trimmed, "/"); ok {
		return service, method
	}
	if trimmed == "" {
		return "unknown", "unknown"
	}
	return trimmed, "unknown"
}

// metadataCarrier adapts gRPC metadata to the OpenTelemetry propagator.
type metadataCarrier metadata.MD

var _ propagation.TextMapCarrier = metadataCarrier{}

func (c metadataCarrier) Get(key string) string {
	if v := metadata.MD(c).Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}

func (c metadataCarrier) Set(key, value string) {
	metadata.MD(c).Set(key, value)
}

func (c metadataCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
