package reasoning

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/softreason/softreason/pkg/embedding"
	"github.com/softreason/softreason/pkg/vectorstore"
	"github.com/softreason/softreason/pkg/vectorstore/memstore"
)

var errBackend = errors.New("backend unavailable")

// spyStore wraps a memstore and counts calls. Failure switches make
// individual operations fail.
type spyStore struct {
	*memstore.Store

	calls atomic.Int64

	searchErr   error
	upsertErr   error
	deleteErr   error
	countErr    error
	recordsErr  error
	countPanic  bool
	searchPanic bool

	// rawID overrides the id returned by Upsert when set.
	rawID any

	// batchLimit truncates the ids returned by BatchUpsert when > 0.
	batchLimit int
	batchCalls atomic.Int64
}

func newSpyStore() *spyStore {
	return &spyStore{Store: memstore.New(0)}
}

func (s *spyStore) Upsert(ctx context.Context, vector []float32, payload vectorstore.Payload) (any, error) {
	s.calls.Add(1)
	if s.upsertErr != nil {
		return nil, s.upsertErr
	}
	id, err := s.Store.Upsert(ctx, vector, payload)
	if s.rawID != nil {
		return s.rawID, err
	}
	return id, err
}

func (s *spyStore) BatchUpsert(ctx context.Context, vectors [][]float32, payloads []vectorstore.Payload) ([]any, error) {
	s.calls.Add(1)
	s.batchCalls.Add(1)
	if s.upsertErr != nil {
		return nil, s.upsertErr
	}
	ids, err := s.Store.BatchUpsert(ctx, vectors, payloads)
	if s.batchLimit > 0 && len(ids) > s.batchLimit {
		return ids[:s.batchLimit], errBackend
	}
	return ids, err
}

func (s *spyStore) Search(ctx context.Context, vector []float32, topK int, filter map[string]any) ([]vectorstore.Hit, error) {
	s.calls.Add(1)
	if s.searchPanic {
		panic("search exploded")
	}
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.Store.Search(ctx, vector, topK, filter)
}

func (s *spyStore) Delete(ctx context.Context, ids []string) error {
	s.calls.Add(1)
	if s.deleteErr != nil {
		return s.deleteErr
	}
	return s.Store.Delete(ctx, ids)
}

func (s *spyStore) Count(ctx context.Context) (int, error) {
	s.calls.Add(1)
	if s.countPanic {
		panic("count exploded")
	}
	if s.countErr != nil {
		return 0, s.countErr
	}
	return s.Store.Count(ctx)
}

func (s *spyStore) Records(ctx context.Context) ([]vectorstore.Record, error) {
	s.calls.Add(1)
	if s.recordsErr != nil {
		return nil, s.recordsErr
	}
	return s.Store.Records(ctx)
}

// opaqueStore hides the Scanner and Rescorer methods of a memstore.
type opaqueStore struct {
	inner *memstore.Store
}

func (o opaqueStore) Upsert(ctx context.Context, v []float32, p vectorstore.Payload) (any, error) {
	return o.inner.Upsert(ctx, v, p)
}

func (o opaqueStore) BatchUpsert(ctx context.Context, v [][]float32, p []vectorstore.Payload) ([]any, error) {
	return o.inner.BatchUpsert(ctx, v, p)
}

func (o opaqueStore) Search(ctx context.Context, v []float32, k int, f map[string]any) ([]vectorstore.Hit, error) {
	return o.inner.Search(ctx, v, k, f)
}

func (o opaqueStore) Delete(ctx context.Context, ids []string) error {
	return o.inner.Delete(ctx, ids)
}

func (o opaqueStore) Count(ctx context.Context) (int, error) {
	return o.inner.Count(ctx)
}

// stubProvider returns fixed errors or delegates to a hash embedder.
type stubProvider struct {
	embedding.Provider
	fastErr    error
	preciseErr error
	fastCalls  atomic.Int64
}

func (p *stubProvider) EmbedFast(ctx context.Context, text string) ([]float32, error) {
	p.fastCalls.Add(1)
	if p.fastErr != nil {
		return nil, p.fastErr
	}
	return p.Provider.EmbedFast(ctx, text)
}

func (p *stubProvider) EmbedPrecise(ctx context.Context, text string) ([]float32, error) {
	if p.preciseErr != nil {
		return nil, p.preciseErr
	}
	return p.Provider.EmbedPrecise(ctx, text)
}

func newStubProvider() *stubProvider {
	return &stubProvider{Provider: embedding.Single(embedding.NewHash(64))}
}

type metricCall struct {
	name   string
	value  float64
	labels map[string]string
}

type recordingMetrics struct {
	mu       sync.Mutex
	incs     []metricCall
	observes []metricCall
}

func (m *recordingMetrics) Inc(name string, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incs = append(m.incs, metricCall{name: name, labels: labels})
}

func (m *recordingMetrics) Observe(name string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observes = append(m.observes, metricCall{name: name, value: value, labels: labels})
}

func (m *recordingMetrics) incCount(name, reason string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.incs {
		if c.name == name && (reason == "" || c.labels[LabelReason] == reason) {
			n++
		}
	}
	return n
}

func (m *recordingMetrics) observed(name, op string) []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []float64
	for _, c := range m.observes {
		if c.name == name && (op == "" || c.labels[LabelOp] == op) {
			out = append(out, c.value)
		}
	}
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Unix() float64 {
	return float64(c.Now().UnixNano()) / 1e9
}

// scenarioRecall mirrors the settings used in the end-to-end scenarios.
func scenarioRecall() RecallConfig {
	cfg := DefaultRecallConfig()
	cfg.FastTopK = 24
	cfg.FinalTopK = 5
	cfg.RecencyAlpha = 0.65
	cfg.MinScore = 0
	return cfg
}

func scenarioWriteback() WritebackConfig {
	cfg := DefaultWritebackConfig()
	cfg.NoveltyGate = 0.18
	cfg.DefaultTTLSeconds = 3600
	cfg.MaxLenChars = 5000
	return cfg
}

func newTestEngine(t *testing.T, store vectorstore.Store, provider embedding.Provider, opts ...Option) *Engine {
	t.Helper()
	return newTestEngineWithConfig(t, store, provider, scenarioRecall(), scenarioWriteback(), opts...)
}

func newTestEngineWithConfig(t *testing.T, store vectorstore.Store, provider embedding.Provider, recall RecallConfig, writeback WritebackConfig, opts ...Option) *Engine {
	t.Helper()
	e, err := New(store, provider, recall, writeback, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}
