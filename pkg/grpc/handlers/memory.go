// Package handlers implements the gRPC memory service on top of the
// reasoning engine.
package handlers

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/softreason/softreason/pkg/api/events"
	"github.com/softreason/softreason/pkg/logger"
	"github.com/softreason/softreason/pkg/reasoning"
)

const (
	maxBatchItems   = 1000
	maxTopK         = 100
	watchBufferSize = 64
)

// MemoryEngine is the part of *reasoning.Engine the service uses.
type MemoryEngine interface {
	Ingest(ctx context.Context, text string, metadata map[string]any, opts ...reasoning.IngestOption) (string, error)
	BatchIngest(ctx context.Context, items []reasoning.Item, opts ...reasoning.IngestOption) ([]string, error)
	AQuery(ctx context.Context, text string, opts ...reasoning.QueryOption) ([]reasoning.Result, error)
	Delete(ctx context.Context, ids []string)
	Prune(ctx context.Context) int
	Health(ctx context.Context) reasoning.Health
}

var _ MemoryEngine = (*reasoning.Engine)(nil)

// MemoryServer is the server API of softreason.v1.Memory.
type MemoryServer interface {
	Ingest(context.Context, *IngestRequest) (*IngestResponse, error)
	BatchIngest(context.Context, *BatchIngestRequest) (*BatchIngestResponse, error)
	Query(context.Context, *QueryRequest) (*QueryResponse, error)
	Delete(context.Context, *DeleteRequest) (*DeleteResponse, error)
	Prune(context.Context, *PruneRequest) (*PruneResponse, error)
	Health(context.Context, *HealthRequest) (*reasoning.Health, error)
	Watch(*WatchRequest, grpc.ServerStream) error
}

// MemoryService implements MemoryServer.
type MemoryService struct {
	engine MemoryEngine
	events *events.Broadcaster
	logger logger.Logger
}

var _ MemoryServer = (*MemoryService)(nil)

// NewMemoryService creates the service. A nil broadcaster makes Watch
// return Unimplemented.
func NewMemoryService(eng MemoryEngine, b *events.Broadcaster, log logger.Logger) *MemoryService {
	return &MemoryService{
		engine: eng,
		events: b,
		logger: logger.OrNop(log),
	}
}

// Ingest writes one snippet.
func (s *MemoryService) Ingest(ctx context.Context, req *IngestRequest) (*IngestResponse, error) {
	if req == nil || strings.TrimSpace(req.Text) == "" {
		return nil, status.Error(codes.InvalidArgument, "text is required")
	}
	if req.TTLSeconds < 0 {
		return nil, status.Error(codes.InvalidArgument, "ttl_seconds must be positive")
	}

	id, err := s.engine.Ingest(ctx, req.Text, req.Metadata, ingestOptions(req.TTLSeconds, req.LongTTL, req.Force)...)
	if err != nil {
		return nil, s.engineError(ctx, "ingest", err)
	}
	return &IngestResponse{ID: id, Accepted: id != ""}, nil
}

// BatchIngest writes several snippets.
func (s *MemoryService) BatchIngest(ctx context.Context, req *BatchIngestRequest) (*BatchIngestResponse, error) {
	if req == nil || len(req.Items) == 0 {
		return nil, status.Error(codes.InvalidArgument, "at least one item is required")
	}
	if len(req.Items) > maxBatchItems {
		return nil, status.Errorf(codes.InvalidArgument, "at most %d items per batch", maxBatchItems)
	}
	if req.TTLSeconds < 0 {
		return nil, status.Error(codes.InvalidArgument, "ttl_seconds must be positive")
	}

	ids, err := s.engine.BatchIngest(ctx, req.Items, ingestOptions(req.TTLSeconds, req.LongTTL, req.Force)...)
	if err != nil {
		return nil, s.engineError(ctx, "batch_ingest", err)
	}
	accepted := 0
	for _, id := range ids {
		if id != "" {
			accepted++
		}
	}
	return &BatchIngestResponse{IDs: ids, Accepted: accepted}, nil
}

// Query ranks stored snippets on the engine's async pool.
func (s *MemoryService) Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error) {
	if req == nil || strings.TrimSpace(req.Text) == "" {
		return nil, status.Error(codes.InvalidArgument, "text is required")
	}
	if req.TopK < 0 || req.TopK > maxTopK {
		return nil, status.Errorf(codes.InvalidArgument, "top_k must be between 0 and %d", maxTopK)
	}

	var opts []reasoning.QueryOption
	if req.TopK > 0 {
		opts = append(opts, reasoning.WithTopK(req.TopK))
	}
	if len(req.Filter) > 0 {
		opts = append(opts, reasoning.WithFilter(req.Filter))
	}

	results, err := s.engine.AQuery(ctx, req.Text, opts...)
	if err != nil {
		return nil, s.engineError(ctx, "query", err)
	}
	if results == nil {
		results = []reasoning.Result{}
	}
	return &QueryResponse{Results: results}, nil
}

// Delete removes records by ID.
func (s *MemoryService) Delete(ctx context.Context, req *DeleteRequest) (*DeleteResponse, error) {
	if req == nil || len(req.IDs) == 0 {
		return nil, status.Error(codes.InvalidArgument, "ids are required")
	}
	s.engine.Delete(ctx, req.IDs)
	return &DeleteResponse{}, nil
}

// Prune removes expired records.
func (s *MemoryService) Prune(ctx context.Context, _ *PruneRequest) (*PruneResponse, error) {
	return &PruneResponse{Removed: s.engine.Prune(ctx)}, nil
}

// Health reports the engine snapshot.
func (s *MemoryService) Health(ctx context.Context, _ *HealthRequest) (*reasoning.Health, error) {
	h := s.engine.Health(ctx)
	return &h, nil
}

// Watch streams engine events until the client goes away or the
// broadcaster closes.
func (s *MemoryService) Watch(req *WatchRequest, stream grpc.ServerStream) error {
	if s.events == nil {
		return status.Error(codes.Unimplemented, "event streaming is not configured")
	}

	var types []string
	if req != nil {
		types = req.Types
	}
	sub := s.events.Subscribe(watchBufferSize, types...)
	defer s.events.Unsubscribe(sub)

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return status.FromContextError(ctx.Err()).Err()
		case ev, ok := <-sub.Events():
			if !ok {
				return status.Error(codes.Unavailable, "event stream closed")
			}
			if err := stream.SendMsg(&ev); err != nil {
				return err
			}
		}
	}
}

func (s *MemoryService) engineError(ctx context.Context, op string, err error) error {
	st := status.New(engineErrorCode(err), err.Error())
	if st.Code() == codes.Internal {
		s.logger.ErrorContext(ctx, "memory rpc failed", "op", op, "error", err)
		st = status.New(codes.Internal, "internal error")
	}
	return st.Err()
}

func engineErrorCode(err error) codes.Code {
	switch {
	case errors.Is(err, reasoning.ErrNoveltyCheck), errors.Is(err, reasoning.ErrPoolClosed):
		return codes.Unavailable
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	default:
		return codes.Internal
	}
}
