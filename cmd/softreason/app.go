package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/softreason/softreason/config"
	"github.com/softreason/softreason/pkg/api"
	"github.com/softreason/softreason/pkg/api/events"
	"github.com/softreason/softreason/pkg/api/handlers"
	grpcpkg "github.com/softreason/softreason/pkg/grpc"
	grpchandlers "github.com/softreason/softreason/pkg/grpc/handlers"
	"github.com/softreason/softreason/pkg/logger"
	"github.com/softreason/softreason/pkg/metrics"
	"github.com/softreason/softreason/pkg/reasoning"
	"github.com/softreason/softreason/pkg/telemetry/tracing"
	"github.com/softreason/softreason/pkg/version"
	"github.com/softreason/softreason/pkg/workerpool"
)

// app owns every long-lived component of a running server.
type app struct {
	cfg *config.Config
	log logger.Logger

	metrics     *metrics.Manager
	pool        *workerpool.Pool
	broadcaster *events.Broadcaster
	engine      *reasoning.Engine
	janitor     *reasoning.Janitor
	ws          *handlers.WebSocketHandler
	http        *api.HTTPServer
	grpc        *grpcpkg.Server

	closeStore    closeFunc
	closeEmbedder closeFunc
	shutdownTrace tracing.ShutdownFunc

	cancel context.CancelFunc
}

// newApp builds the component graph described by cfg. Nothing listens until
// run is called.
func newApp(ctx context.Context, cfg *config.Config, log logger.Logger) (a *app, err error) {
	a = &app{
		cfg:           cfg,
		log:           log,
		closeStore:    noClose,
		closeEmbedder: noClose,
		shutdownTrace: func(context.Context) error { return nil },
	}
	defer func() {
		if err != nil {
			a.release(context.Background())
		}
	}()

	a.shutdownTrace, err = tracing.Init(ctx, cfg.Tracing, tracing.Service{
		Name:        cfg.App.Name,
		Version:     version.Version,
		Environment: cfg.App.Environment,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	store, closeStore, err := buildStore(ctx, cfg.Store, log)
	if err != nil {
		return nil, fmt.Errorf("build store: %w", err)
	}
	a.closeStore = closeStore

	embedder, closeEmbedder, err := buildEmbedder(cfg.Embedding, log)
	if err != nil {
		return nil, fmt.Errorf("build embedder: %w", err)
	}
	a.closeEmbedder = closeEmbedder

	a.metrics = buildMetrics(cfg.Metrics)
	a.pool = workerpool.New(cfg.Engine.AsyncWorkers, cfg.Engine.AsyncQueueSize, workerpool.WithLogger(log))
	if err := a.metrics.TrackQueueDepth(a.pool.QueueLen); err != nil {
		return nil, fmt.Errorf("register queue depth: %w", err)
	}
	a.broadcaster = events.NewBroadcaster()

	a.engine, err = reasoning.New(store, embedder,
		cfg.Recall.ToRecallConfig(),
		cfg.Writeback.ToWritebackConfig(),
		reasoning.WithMetrics(a.metrics),
		reasoning.WithLogger(log),
		reasoning.WithObserver(a.broadcaster),
		reasoning.WithNoveltyPolicy(cfg.Engine.Policy()),
		reasoning.WithAsyncPool(a.pool),
	)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	a.janitor = reasoning.NewJanitor(a.engine, cfg.Engine.PruneInterval, log)

	a.ws = handlers.NewWebSocketHandler(log, a.broadcaster, handlers.WebSocketConfig{
		AllowedOrigins: cfg.Server.CORS.AllowedOrigins,
	})
	a.http = api.NewHTTPServer(cfg, log, &api.Handlers{
		Memory:    handlers.NewMemoryHandler(a.engine, log, handlers.DefaultMaxBodyBytes),
		Health:    handlers.NewHealthHandler(a.engine),
		WebSocket: a.ws,
		Metrics:   a.metrics,
	})

	if cfg.Server.GRPC.Enabled {
		a.grpc, err = grpcpkg.New(cfg.Server.ToGRPCConfig(cfg.Tracing),
			grpcpkg.WithLogger(log),
			grpcpkg.WithMetricsRegisterer(a.metrics.Registerer()),
			grpcpkg.WithHealthProbe(a.storeProbe),
		)
		if err != nil {
			return nil, fmt.Errorf("create gRPC server: %w", err)
		}
		a.grpc.RegisterService(&grpchandlers.MemoryServiceDesc,
			grpchandlers.NewMemoryService(a.engine, a.broadcaster, log))
	}

	return a, nil
}

func (a *app) storeProbe(ctx context.Context) error {
	if a.engine.Health(ctx).StoreCount < 0 {
		return errors.New("vector store unavailable")
	}
	return nil
}

// start launches background workers and listeners. Listener failures are
// reported on the returned channel.
func (a *app) start(ctx context.Context) <-chan error {
	ctx, a.cancel = context.WithCancel(ctx)
	errCh := make(chan error, 2)

	a.janitor.Start(ctx)

	if a.metrics.Enabled() {
		go func() {
			a.log.Info("Starting metrics server", "port", a.cfg.Metrics.Port, "path", a.cfg.Metrics.Path)
			if err := a.metrics.Serve(ctx); err != nil {
				a.log.Error("Metrics server error", "error", err)
			}
		}()
	}

	go func() {
		if err := a.http.Start(); err != nil {
			errCh <- err
		}
	}()

	if a.grpc != nil {
		if err := a.grpc.Start(); err != nil {
			errCh <- fmt.Errorf("start gRPC server: %w", err)
		} else {
			a.log.Info("gRPC server listening", "address", a.grpc.Address())
		}
	}

	return errCh
}

// shutdown stops listeners first, then drains the engine and releases
// storage.
func (a *app) shutdown(ctx context.Context) {
	if err := a.http.Shutdown(ctx); err != nil {
		a.log.Error("Error shutting down HTTP server", "error", err)
	}
	if a.grpc != nil {
		if err := a.grpc.Stop(ctx); err != nil {
			a.log.Error("Error shutting down gRPC server", "error", err)
		}
	}
	if a.cancel != nil {
		a.cancel()
	}
	a.release(ctx)
}

func (a *app) release(ctx context.Context) {
	if a.janitor != nil {
		a.janitor.Stop()
	}
	if a.engine != nil {
		if err := a.engine.Close(); err != nil {
			a.log.Error("Error closing engine", "error", err)
		}
	}
	if a.pool != nil {
		a.pool.Stop()
	}
	if a.broadcaster != nil {
		a.broadcaster.Close()
	}
	if a.ws != nil {
		a.ws.Close()
	}
	if err := a.closeStore(); err != nil {
		a.log.Error("Error closing vector store", "error", err)
	}
	if err := a.closeEmbedder(); err != nil {
		a.log.Error("Error closing embedder", "error", err)
	}
	if err := a.shutdownTrace(ctx); err != nil {
		a.log.Error("Error flushing traces", "error", err)
	}
}
