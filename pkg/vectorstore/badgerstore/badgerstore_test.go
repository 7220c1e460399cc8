package badgerstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/softreason/softreason/pkg/vectorstore"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(Config{InMemory: true, Dimension: 3})
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Close() //nolint:errcheck
	})
	return s
}

func TestStore_UpsertSearchCount(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	id, err := s.Upsert(ctx, []float32{1, 0, 0}, vectorstore.Payload{Text: "alpha", Timestamp: 10})
	require.NoError(t, err)
	require.NotEmpty(t, vectorstore.NormalizeID(id))

	_, err = s.Upsert(ctx, []float32{0, 1, 0}, vectorstore.Payload{Text: "beta"})
	require.NoError(t, err)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	hits, err := s.Search(ctx, []float32{1, 0.1, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, id, hits[0].ID)
	assert.Equal(t, "alpha", hits[0].Payload.Text)
	assert.Equal(t, 10.0, hits[0].Payload.Timestamp)
}

func TestStore_DimensionCheck(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.Upsert(context.Background(), []float32{1, 0}, vectorstore.Payload{})
	assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)
}

func TestStore_BatchUpsertAndDelete(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	ids, err := s.BatchUpsert(ctx,
		[][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
		[]vectorstore.Payload{{Text: "a"}, {Text: "b"}, {Text: "c"}},
	)
	require.NoError(t, err)
	require.Len(t, ids, 3)

	require.NoError(t, s.Delete(ctx, []string{ids[0].(string), ids[2].(string)}))

	recs, err := s.Records(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "b", recs[0].Payload.Text)
}

func TestStore_FilterAndMetadata(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	ttl := 120.0
	_, err := s.Upsert(ctx, []float32{1, 0, 0}, vectorstore.Payload{
		Text:        "tagged",
		TTLOverride: &ttl,
		Metadata:    map[string]any{"source": "chat"},
	})
	require.NoError(t, err)
	s.Upsert(ctx, []float32{1, 0, 0}, vectorstore.Payload{Text: "untagged"})

	hits, err := s.Search(ctx, []float32{1, 0, 0}, 10, map[string]any{"source": "chat"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "tagged", hits[0].Payload.Text)
	require.NotNil(t, hits[0].Payload.TTLOverride)
	assert.Equal(t, 120.0, *hits[0].Payload.TTLOverride)
}

func TestStore_Rescore(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	id, _ := s.Upsert(ctx, []float32{0, 1, 0}, vectorstore.Payload{Text: "x"})
	scores, err := s.Rescore(ctx, []float32{0, 1, 0}, []string{id.(string), "nope"})
	require.NoError(t, err)
	assert.Len(t, scores, 1)
	assert.InDelta(t, 1.0, scores[id.(string)], 1e-6)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}
