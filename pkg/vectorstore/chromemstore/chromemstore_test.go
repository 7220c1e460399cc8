package chromemstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/softreason/softreason/pkg/vectorstore"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{Collection: t.Name()})
	require.NoError(t, err)
	return s
}

func TestStore_EmptySearch(t *testing.T) {
	s := newTestStore(t)
	hits, err := s.Search(context.Background(), []float32{1, 0, 0}, 3, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestStore_UpsertSearchClampsTopK(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.Upsert(ctx, []float32{1, 0, 0}, vectorstore.Payload{Text: "north", Timestamp: 1700000000.5})
	require.NoError(t, err)
	_, err = s.Upsert(ctx, []float32{0, 1, 0}, vectorstore.Payload{Text: "east"})
	require.NoError(t, err)

	hits, err := s.Search(ctx, []float32{1, 0, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, id, hits[0].ID)
	assert.Equal(t, "north", hits[0].Payload.Text)
	assert.Equal(t, 1700000000.5, hits[0].Payload.Timestamp)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-5)
	assert.InDelta(t, 0.0, hits[1].Score, 1e-5)
}

func TestStore_FilterUsesStringForm(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	ttl := 30.0
	_, err := s.BatchUpsert(ctx,
		[][]float32{{1, 0}, {1, 0.1}},
		[]vectorstore.Payload{
			{Text: "a", Metadata: map[string]any{"rank": 1}, TTLOverride: &ttl},
			{Text: "b", Metadata: map[string]any{"rank": 2}},
		},
	)
	require.NoError(t, err)

	hits, err := s.Search(ctx, []float32{1, 0}, 2, map[string]any{"rank": 1})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].Payload.Text)
	assert.Equal(t, "1", hits[0].Payload.Metadata["rank"])
	require.NotNil(t, hits[0].Payload.TTLOverride)
	assert.Equal(t, 30.0, *hits[0].Payload.TTLOverride)
}

func TestStore_DeleteAndCount(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	ids, err := s.BatchUpsert(ctx,
		[][]float32{{1, 0}, {0, 1}},
		[]vectorstore.Payload{{Text: "a"}, {Text: "b"}},
	)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, []string{ids[0].(string)}))
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	scores, err := s.Rescore(ctx, []float32{0, 1}, []string{ids[0].(string), ids[1].(string)})
	require.NoError(t, err)
	assert.NotContains(t, scores, ids[0].(string))
	assert.InDelta(t, 1.0, scores[ids[1].(string)], 1e-5)
}

func TestStore_IsOpaque(t *testing.T) {
	var s vectorstore.Store = newTestStore(t)
	_, ok := s.(vectorstore.Scanner)
	assert.False(t, ok)
}
