package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/softreason/softreason/config"
	"github.com/softreason/softreason/pkg/embedding/cache"
	"github.com/softreason/softreason/pkg/logger"
	"github.com/softreason/softreason/pkg/vectorstore"
)

func testAppConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Metrics.Enabled = false
	cfg.Embedding.Dimension = 64
	cfg.Embedding.Cache.Enabled = false
	cfg.Engine.PruneInterval = 0
	return cfg
}

func TestBuildOverrides(t *testing.T) {
	oldName, oldPort, oldLevel, oldDebug := *appName, *serverPort, *logLevel, *debugMode
	t.Cleanup(func() {
		*appName, *serverPort, *logLevel, *debugMode = oldName, oldPort, oldLevel, oldDebug
	})

	assert.Empty(t, buildOverrides())

	*appName = "recall"
	*serverPort = 9999
	*logLevel = "debug"
	*debugMode = true

	overrides := buildOverrides()
	assert.Equal(t, "recall", overrides["app.name"])
	assert.Equal(t, 9999, overrides["server.port"])
	assert.Equal(t, "debug", overrides["log.level"])
	assert.Equal(t, true, overrides["app.debug"])

	cfg, err := config.NewLoader().Load("", overrides)
	require.NoError(t, err)
	assert.Equal(t, "recall", cfg.App.Name)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoggerConfig_DebugForcesLevel(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.Equal(t, logger.InfoLevel, loggerConfig(cfg, false).Level)
	assert.Equal(t, logger.DebugLevel, loggerConfig(cfg, true).Level)

	cfg.App.Debug = true
	assert.Equal(t, logger.DebugLevel, loggerConfig(cfg, false).Level)
}

func TestBuildStore_MemorySnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	cfg := config.StoreConfig{
		Type:   "memory",
		Memory: config.MemoryStoreConfig{SnapshotPath: filepath.Join(t.TempDir(), "memories.snap")},
	}

	store, closeStore, err := buildStore(ctx, cfg, logger.Nop())
	require.NoError(t, err)

	_, err = store.Upsert(ctx, []float32{1, 0, 0}, vectorstore.Payload{Text: "kept across restarts", Timestamp: 1})
	require.NoError(t, err)
	require.NoError(t, closeStore())

	reopened, closeReopened, err := buildStore(ctx, cfg, logger.Nop())
	require.NoError(t, err)
	defer closeReopened()

	n, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	hits, err := reopened.Search(ctx, []float32{1, 0, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "kept across restarts", hits[0].Payload.Text)
}

func TestBuildStore_Backends(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		cfg  config.StoreConfig
	}{
		{name: "memory", cfg: config.StoreConfig{Type: "memory"}},
		{name: "badger in memory", cfg: config.StoreConfig{
			Type:   "badger",
			Badger: config.BadgerConfig{InMemory: true},
		}},
		{name: "chromem", cfg: config.StoreConfig{
			Type:    "chromem",
			Chromem: config.ChromemConfig{Collection: "wiring-test"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, closeStore, err := buildStore(ctx, tt.cfg, logger.Nop())
			require.NoError(t, err)
			defer func() { assert.NoError(t, closeStore()) }()

			_, err = store.Upsert(ctx, []float32{0, 1, 0}, vectorstore.Payload{Text: "wired", Timestamp: 1})
			require.NoError(t, err)

			n, err := store.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		})
	}
}

func TestBuildStore_UnknownType(t *testing.T) {
	_, _, err := buildStore(context.Background(), config.StoreConfig{Type: "cassandra"}, logger.Nop())
	assert.Error(t, err)
}

func TestBuildEmbedder_HashWithCache(t *testing.T) {
	cfg := config.EmbeddingConfig{
		Type:      "hash",
		Dimension: 32,
		Bigrams:   true,
		Cache: config.EmbeddingCacheConfig{
			Enabled:    true,
			MaxEntries: 100,
			TTL:        time.Minute,
		},
	}

	dual, closeEmbedder, err := buildEmbedder(cfg, logger.Nop())
	require.NoError(t, err)
	defer func() { assert.NoError(t, closeEmbedder()) }()

	_, ok := dual.Fast.(*cache.Embedder)
	assert.True(t, ok, "fast embedder should be cached")
	assert.Same(t, dual.Fast, dual.Precise)

	fast, err := dual.EmbedFast(context.Background(), "the quick brown fox")
	require.NoError(t, err)
	precise, err := dual.EmbedPrecise(context.Background(), "the quick brown fox")
	require.NoError(t, err)
	assert.Len(t, fast, 32)
	assert.Equal(t, fast, precise)
}

func TestBuildEmbedder_Errors(t *testing.T) {
	_, _, err := buildEmbedder(config.EmbeddingConfig{Type: "word2vec", Dimension: 8}, logger.Nop())
	assert.Error(t, err)

	_, _, err = buildEmbedder(config.EmbeddingConfig{Type: "openai", Dimension: 8}, logger.Nop())
	assert.Error(t, err, "openai without a model must fail")
}

func TestApp_ServesMemoryAPI(t *testing.T) {
	a, err := newApp(context.Background(), testAppConfig(t), logger.Nop())
	require.NoError(t, err)

	server := httptest.NewServer(a.http.Handler())
	defer server.Close()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.shutdown(ctx)
	}()

	post := func(path string, body any) *http.Response {
		t.Helper()
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		resp, err := http.Post(server.URL+path, "application/json", bytes.NewReader(raw))
		require.NoError(t, err)
		return resp
	}

	resp := post("/api/v1/memories", map[string]any{"text": "gophers love channels"})
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = post("/api/v1/memories/query", map[string]any{"text": "channels"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Count   int `json:"count"`
		Results []struct {
			Payload struct {
				Text string `json:"text"`
			} `json:"payload"`
		} `json:"results"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, 1, out.Count)
	assert.Equal(t, "gophers love channels", out.Results[0].Payload.Text)

	assert.NoError(t, a.storeProbe(context.Background()))
}

func TestApp_StartAndShutdown(t *testing.T) {
	cfg := testAppConfig(t)
	cfg.Engine.PruneInterval = time.Hour

	a, err := newApp(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)

	errCh := a.start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.shutdown(ctx)

	select {
	case err := <-errCh:
		t.Fatalf("unexpected server error: %v", err)
	default:
	}
}

func TestNewApp_InvalidStore(t *testing.T) {
	cfg := testAppConfig(t)
	cfg.Store.Type = "unknown"

	_, err := newApp(context.Background(), cfg, logger.Nop())
	assert.Error(t, err)
}
