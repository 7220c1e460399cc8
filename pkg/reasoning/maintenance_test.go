package reasoning

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/softreason/softreason/pkg/vectorstore"
	"github.com/softreason/softreason/pkg/vectorstore/memstore"
)

func ttl(v float64) *float64 { return &v }

func TestPrune_RemovesExpired(t *testing.T) {
	clock := newFakeClock()
	now := clock.Unix()
	store := newSpyStore()
	metrics := &recordingMetrics{}
	var events []Event
	e := newTestEngine(t, store, newStubProvider(),
		WithClock(clock.Now),
		WithMetrics(metrics),
		WithObserver(ObserverFunc(func(ev Event) { events = append(events, ev) })),
	)

	require.NoError(t, store.Put(vectorstore.Record{
		ID: "stale", Vector: []float32{1, 0},
		Payload: vectorstore.Payload{Text: "stale", Timestamp: now - 7200},
	}))
	require.NoError(t, store.Put(vectorstore.Record{
		ID: "fresh", Vector: []float32{0, 1},
		Payload: vectorstore.Payload{Text: "fresh", Timestamp: now - 60},
	}))

	removed := e.Prune(context.Background())
	assert.Equal(t, 1, removed)

	n, _ := store.Store.Count(context.Background())
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, metrics.incCount(MetricPruned, ""))
	require.Len(t, events, 1)
	assert.Equal(t, EventPruned, events[0].Type)
	assert.Equal(t, 1, events[0].Count)

	assert.Zero(t, e.Prune(context.Background()))
}

func TestPrune_HonorsTTLOverride(t *testing.T) {
	clock := newFakeClock()
	now := clock.Unix()
	store := newSpyStore()
	e := newTestEngine(t, store, newStubProvider(), WithClock(clock.Now))

	records := []vectorstore.Record{
		{ID: "long", Vector: []float32{1, 0}, Payload: vectorstore.Payload{Timestamp: now - 7200, TTLOverride: ttl(86400)}},
		{ID: "short", Vector: []float32{1, 0}, Payload: vectorstore.Payload{Timestamp: now - 120, TTLOverride: ttl(60)}},
		{ID: "edge", Vector: []float32{1, 0}, Payload: vectorstore.Payload{Timestamp: now - 3600}},
	}
	for _, rec := range records {
		require.NoError(t, store.Put(rec))
	}

	assert.Equal(t, 1, e.Prune(context.Background()))

	remaining, err := store.Records(context.Background())
	require.NoError(t, err)
	ids := make([]string, 0, len(remaining))
	for _, rec := range remaining {
		ids = append(ids, rec.ID)
	}
	assert.ElementsMatch(t, []string{"long", "edge"}, ids)
}

func TestPrune_NonPositiveOverrideUsesDefault(t *testing.T) {
	clock := newFakeClock()
	now := clock.Unix()
	store := newSpyStore()
	e := newTestEngine(t, store, newStubProvider(), WithClock(clock.Now))
	ctx := context.Background()

	id, err := e.Ingest(ctx, "zero ttl note", nil, WithTTL(0))
	require.NoError(t, err)
	require.NotEmpty(t, id)
	records, err := store.Records(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Nil(t, records[0].Payload.TTLOverride)

	vec := make([]float32, 64)
	vec[1] = 1
	require.NoError(t, store.Put(vectorstore.Record{
		ID: "negative", Vector: vec,
		Payload: vectorstore.Payload{Timestamp: now - 10, TTLOverride: ttl(-5)},
	}))

	clock.Advance(10 * time.Second)
	assert.Zero(t, e.Prune(ctx))

	clock.Advance(2 * time.Hour)
	assert.Equal(t, 2, e.Prune(ctx))
}

func TestPrune_AfterIngestAndClockAdvance(t *testing.T) {
	clock := newFakeClock()
	store := newSpyStore()
	e := newTestEngine(t, store, newStubProvider(), WithClock(clock.Now))
	ctx := context.Background()

	_, err := e.Ingest(ctx, "short lived note", nil)
	require.NoError(t, err)
	_, err = e.Ingest(ctx, "keep this fact around", nil, WithLongTTL())
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	assert.Equal(t, 1, e.Prune(ctx))

	results, err := e.Query(ctx, "keep this fact around")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "keep this fact around", results[0].Payload.Text)
}

func TestPrune_OpaqueStore(t *testing.T) {
	inner := memstore.New(2)
	require.NoError(t, inner.Put(vectorstore.Record{
		ID: "old", Vector: []float32{1, 0}, Payload: vectorstore.Payload{Timestamp: 1},
	}))
	e := newTestEngine(t, opaqueStore{inner: inner}, newStubProvider())

	assert.Zero(t, e.Prune(context.Background()))
	n, _ := inner.Count(context.Background())
	assert.Equal(t, 1, n)
}

func TestPrune_SwallowsFailures(t *testing.T) {
	expired := vectorstore.Record{ID: "old", Vector: []float32{1, 0}, Payload: vectorstore.Payload{Timestamp: 1}}

	t.Run("scan error", func(t *testing.T) {
		store := newSpyStore()
		require.NoError(t, store.Put(expired))
		store.recordsErr = errBackend
		e := newTestEngine(t, store, newStubProvider())

		assert.Zero(t, e.Prune(context.Background()))
	})

	t.Run("delete error", func(t *testing.T) {
		store := newSpyStore()
		require.NoError(t, store.Put(expired))
		store.deleteErr = errBackend
		metrics := &recordingMetrics{}
		e := newTestEngine(t, store, newStubProvider(), WithMetrics(metrics))

		assert.Zero(t, e.Prune(context.Background()))
		assert.Zero(t, metrics.incCount(MetricPruned, ""))
	})

	t.Run("panic", func(t *testing.T) {
		e := newTestEngine(t, panicScanner{newSpyStore()}, newStubProvider())
		assert.NotPanics(t, func() {
			assert.Zero(t, e.Prune(context.Background()))
		})
	})
}

type panicScanner struct {
	*spyStore
}

func (panicScanner) Records(context.Context) ([]vectorstore.Record, error) {
	panic("scan exploded")
}

func TestDelete(t *testing.T) {
	store := newSpyStore()
	e := newTestEngine(t, store, newStubProvider())
	ctx := context.Background()

	id, err := e.Ingest(ctx, "to be removed", nil)
	require.NoError(t, err)

	e.Delete(ctx, nil)
	e.Delete(ctx, []string{id, "missing"})
	n, _ := store.Store.Count(ctx)
	assert.Zero(t, n)

	store.deleteErr = errBackend
	assert.NotPanics(t, func() { e.Delete(ctx, []string{"x"}) })
}

func TestHealth(t *testing.T) {
	clock := newFakeClock()
	store := newSpyStore()
	metrics := &recordingMetrics{}
	e := newTestEngine(t, store, newStubProvider(), WithClock(clock.Now), WithMetrics(metrics))
	ctx := context.Background()

	h := e.Health(ctx)
	assert.Equal(t, 0, h.StoreCount)
	assert.Zero(t, h.LastIngestTime)
	assert.Zero(t, h.LastQueryMs)
	assert.Equal(t, scenarioRecall(), h.Recall)
	assert.Equal(t, scenarioWriteback(), h.Writeback)

	_, err := e.Ingest(ctx, "health check text", nil)
	require.NoError(t, err)
	_, err = e.Query(ctx, "health")
	require.NoError(t, err)

	h = e.Health(ctx)
	assert.Equal(t, 1, h.StoreCount)
	assert.Equal(t, clock.Unix(), h.LastIngestTime)
	assert.GreaterOrEqual(t, h.LastQueryMs, 0.0)
	assert.Equal(t, []float64{0, 1}, metrics.observed(MetricStoreCount, ""))
}

func TestHealth_CountFailures(t *testing.T) {
	store := newSpyStore()
	e := newTestEngine(t, store, newStubProvider())

	store.countErr = errBackend
	assert.Equal(t, -1, e.Health(context.Background()).StoreCount)

	store.countErr = nil
	store.countPanic = true
	assert.NotPanics(t, func() {
		assert.Equal(t, -1, e.Health(context.Background()).StoreCount)
	})
}
