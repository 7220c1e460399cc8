package main

// @title Soft Reasoning API
// @version 1.0
// @description Retrieval-augmented memory cache: novelty-gated ingest and recency-weighted recall.

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /
// @schemes http https

//go:generate swag init -d ../../ -g cmd/softreason/main.go -o ../../docs/swagger

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/softreason/softreason/config"
	"github.com/softreason/softreason/pkg/logger"
	"github.com/softreason/softreason/pkg/version"
)

var (
	configPath  = flag.String("config", "", "Path to configuration file")
	versionFlag = flag.Bool("version", false, "Print version information")
	helpFlag    = flag.Bool("help", false, "Print help information")

	// CLI overrides
	appName    = flag.String("app-name", "", "Override app name")
	serverPort = flag.Int("port", 0, "Override server port")
	logLevel   = flag.String("log-level", "", "Override log level")
	debugMode  = flag.Bool("debug", false, "Enable debug mode")
)

func main() {
	flag.Parse()

	if *helpFlag {
		printHelp()
		os.Exit(0)
	}

	if *versionFlag {
		printVersion()
		os.Exit(0)
	}

	overrides := buildOverrides()

	loader := config.NewLoader()
	cfg, err := loader.Load(*configPath, overrides)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration:\n%s\n", err)
		os.Exit(1)
	}

	log := logger.New(loggerConfig(cfg, *debugMode))
	logger.SetGlobal(log)

	log.Info("Starting softreason",
		"version", version.Version,
		"buildTime", version.BuildTime,
		"gitCommit", version.GitCommit,
		"app", cfg.App.Name,
		"environment", cfg.App.Environment,
		"store", cfg.Store.Type,
		"embedding", cfg.Embedding.Type,
	)
	log.Debug("Configuration loaded", "config", cfg.String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}

	if src := loader.Source(); src != "" {
		watchConfig(ctx, src, loader, overrides, cfg, log)
	}

	errCh := a.start(ctx)

	log.Info("softreason is running",
		"http_port", cfg.Server.Port,
		"grpc_enabled", cfg.Server.GRPC.Enabled,
		"metrics_port", cfg.Metrics.Port,
	)
	log.Info("Press Ctrl+C to stop")

	select {
	case sig := <-sigChan:
		log.Info("Received shutdown signal", "signal", sig)
	case err := <-errCh:
		log.Error("Server error", "error", err)
	case <-ctx.Done():
		log.Info("Context cancelled")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	a.shutdown(shutdownCtx)
	log.Info("softreason stopped gracefully")
}

func loggerConfig(cfg *config.Config, debug bool) *logger.Config {
	logCfg := &logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}
	if cfg.App.Debug || debug {
		logCfg.Level = logger.DebugLevel
	}
	return logCfg
}

// watchConfig applies hot-reloadable settings when the config file changes
// and warns about the ones that need a restart.
func watchConfig(ctx context.Context, path string, loader *config.Loader, overrides map[string]any, current *config.Config, log logger.Logger) {
	w, err := config.NewWatcher(path, loader,
		config.WithWatcherLogger(log),
		config.WithOverrides(overrides),
	)
	if err != nil {
		log.Warn("Config hot reload disabled", "error", err)
		return
	}

	var mu sync.Mutex
	active := config.ExtractHotReloadable(current)
	w.OnChange(func(updated *config.Config) {
		mu.Lock()
		defer mu.Unlock()

		next := config.ExtractHotReloadable(updated)
		if active.Changed(next) {
			log.SetLevel(logger.ParseLevel(updated.Log.Level))
			log.Info("Log level reloaded", "level", updated.Log.Level)
			active = next
		}
		if fields := config.RestartRequired(current, updated); len(fields) > 0 {
			log.Warn("Config changes require a restart", "fields", fields)
		}
	})

	go func() {
		if err := w.Watch(ctx); err != nil {
			log.Warn("Config watcher stopped", "error", err)
		}
	}()
}

func buildOverrides() map[string]any {
	overrides := make(map[string]any)

	if *appName != "" {
		overrides["app.name"] = *appName
	}
	if *serverPort != 0 {
		overrides["server.port"] = *serverPort
	}
	if *logLevel != "" {
		overrides["log.level"] = *logLevel
	}
	if *debugMode {
		overrides["app.debug"] = true
	}

	return overrides
}

func printVersion() {
	fmt.Printf("softreason - Soft Reasoning Engine\n")
	fmt.Println(version.String())
}

func printHelp() {
	fmt.Printf("softreason - novelty-gated vector memory with dual-stage recall\n\n")
	fmt.Printf("Usage: softreason [options]\n\n")
	fmt.Printf("Options:\n")
	flag.PrintDefaults()
	fmt.Printf("\nExamples:\n")
	fmt.Printf("  softreason                                # Run with default config\n")
	fmt.Printf("  softreason -config config.yaml            # Use specific config file\n")
	fmt.Printf("  softreason -port 9090 -log-level debug    # Override specific options\n")
	fmt.Printf("  softreason -version                       # Print version info\n")
}
