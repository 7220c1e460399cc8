package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/redis/go-redis/v9"

	"github.com/softreason/softreason/config"
	"github.com/softreason/softreason/pkg/embedding"
	"github.com/softreason/softreason/pkg/embedding/cache"
	"github.com/softreason/softreason/pkg/embedding/openai"
	"github.com/softreason/softreason/pkg/logger"
	"github.com/softreason/softreason/pkg/metrics"
	"github.com/softreason/softreason/pkg/vectorstore"
	"github.com/softreason/softreason/pkg/vectorstore/badgerstore"
	"github.com/softreason/softreason/pkg/vectorstore/chromemstore"
	"github.com/softreason/softreason/pkg/vectorstore/memstore"
	"github.com/softreason/softreason/pkg/vectorstore/pgstore"
)

// closeFunc releases a component built at startup.
type closeFunc func() error

func noClose() error { return nil }

// buildStore opens the configured vector store backend.
func buildStore(ctx context.Context, cfg config.StoreConfig, log logger.Logger) (vectorstore.Store, closeFunc, error) {
	switch cfg.Type {
	case "memory", "":
		store := memstore.New(cfg.Dimension)
		path := cfg.Memory.SnapshotPath
		if path == "" {
			return store, noClose, nil
		}
		if err := store.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("load snapshot %s: %w", path, err)
		}
		log.Info("Initialized memory store", "snapshot", path)
		return store, func() error { return store.Save(path) }, nil

	case "badger":
		store, err := badgerstore.Open(badgerstore.Config{
			Path:             cfg.Badger.Path,
			InMemory:         cfg.Badger.InMemory,
			SyncWrites:       cfg.Badger.SyncWrites,
			ValueLogFileSize: cfg.Badger.ValueLogFileSize,
			Dimension:        cfg.Dimension,
		})
		if err != nil {
			return nil, nil, err
		}
		log.Info("Initialized Badger store", "path", cfg.Badger.Path, "in_memory", cfg.Badger.InMemory)
		return store, store.Close, nil

	case "chromem":
		store, err := chromemstore.New(chromemstore.Config{
			Collection:  cfg.Chromem.Collection,
			PersistPath: cfg.Chromem.PersistPath,
			Compress:    cfg.Chromem.Compress,
			Concurrency: cfg.Chromem.Concurrency,
		})
		if err != nil {
			return nil, nil, err
		}
		log.Info("Initialized chromem store", "collection", cfg.Chromem.Collection, "persist_path", cfg.Chromem.PersistPath)
		return store, noClose, nil

	case "pgvector":
		store, err := pgstore.Open(ctx, pgstore.Config{
			DSN:         cfg.PGVector.DSN,
			Table:       cfg.PGVector.Table,
			Dimension:   cfg.Dimension,
			AutoMigrate: cfg.PGVector.AutoMigrate,
		})
		if err != nil {
			return nil, nil, err
		}
		log.Info("Initialized pgvector store", "table", cfg.PGVector.Table)
		return store, store.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store type %q", cfg.Type)
	}
}

// buildEmbedder creates the fast and precise embedders, wrapping each in the
// two-tier cache when enabled.
func buildEmbedder(cfg config.EmbeddingConfig, log logger.Logger) (*embedding.Dual, closeFunc, error) {
	var (
		fast, precise         embedding.Embedder
		fastName, preciseName string
	)

	switch cfg.Type {
	case "hash", "":
		var opts []embedding.HashOption
		if cfg.Bigrams {
			opts = append(opts, embedding.WithBigrams())
		}
		h := embedding.NewHash(cfg.Dimension, opts...)
		fast, precise = h, h
		fastName, preciseName = "hash", "hash"

	case "openai":
		f, err := openai.New(openai.Config{
			APIKey:     cfg.OpenAI.APIKey,
			BaseURL:    cfg.OpenAI.BaseURL,
			Model:      cfg.OpenAI.FastModel,
			Dimensions: cfg.Dimension,
		})
		if err != nil {
			return nil, nil, err
		}
		fast, fastName = f, cfg.OpenAI.FastModel
		precise, preciseName = f, cfg.OpenAI.FastModel

		if m := cfg.OpenAI.PreciseModel; m != "" && m != cfg.OpenAI.FastModel {
			p, err := openai.New(openai.Config{
				APIKey:     cfg.OpenAI.APIKey,
				BaseURL:    cfg.OpenAI.BaseURL,
				Model:      m,
				Dimensions: cfg.Dimension,
			})
			if err != nil {
				return nil, nil, err
			}
			precise, preciseName = p, m
		}

	default:
		return nil, nil, fmt.Errorf("unknown embedding type %q", cfg.Type)
	}

	if !cfg.Cache.Enabled {
		return embedding.NewDual(fast, precise), noClose, nil
	}

	var (
		opts    = []cache.Option{cache.WithLogger(log)}
		closers []func()
		rdb     *redis.Client
	)
	if addr := cfg.Cache.Redis.Address; addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		opts = append(opts, cache.WithL2(cache.NewRedisL2(rdb, cfg.Cache.Redis.Prefix)))
		log.Info("Embedding cache L2 enabled", "redis", addr)
	}

	wrap := func(next embedding.Embedder, name string) (embedding.Embedder, error) {
		c, err := cache.New(next, cache.Config{
			Namespace:  fmt.Sprintf("%s:%d", name, cfg.Dimension),
			MaxEntries: cfg.Cache.MaxEntries,
			TTL:        cfg.Cache.TTL,
		}, opts...)
		if err != nil {
			return nil, err
		}
		closers = append(closers, c.Close)
		return c, nil
	}

	closeAll := func() error {
		for _, c := range closers {
			c()
		}
		if rdb != nil {
			return rdb.Close()
		}
		return nil
	}

	cachedFast, err := wrap(fast, fastName)
	if err != nil {
		_ = closeAll()
		return nil, nil, err
	}
	cachedPrecise := cachedFast
	if precise != fast {
		if cachedPrecise, err = wrap(precise, preciseName); err != nil {
			_ = closeAll()
			return nil, nil, err
		}
	}

	return embedding.NewDual(cachedFast, cachedPrecise), closeAll, nil
}

// buildMetrics maps the metrics section onto the Prometheus manager.
func buildMetrics(cfg config.MetricsConfig) *metrics.Manager {
	mc := metrics.DefaultConfig()
	mc.Enabled = cfg.Enabled
	mc.Addr = fmt.Sprintf(":%d", cfg.Port)
	mc.Path = cfg.Path
	return metrics.NewManager(mc)
}
