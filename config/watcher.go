package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/softreason/softreason/pkg/logger"
)

// ErrWatcherRunning is returned by Watch when another Watch is active.
var ErrWatcherRunning = errors.New("config watcher already running")

// Watcher reloads the config file when it changes and hands every valid
// result to the registered callbacks. Invalid files are logged and skipped.
//
// The parent directory is watched rather than the file, so editors that
// save by renaming a temp file over the original are still seen.
type Watcher struct {
	path      string
	loader    *Loader
	overrides map[string]any
	debounce  time.Duration
	log       logger.Logger

	fs       *fsnotify.Watcher
	stop     chan struct{}
	stopOnce sync.Once

	mu        sync.Mutex
	running   bool
	callbacks []func(*Config)
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce coalesces bursts of file events; the reload runs once the
// file has been quiet for d.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

func WithWatcherLogger(l logger.Logger) WatcherOption {
	return func(w *Watcher) { w.log = logger.OrNop(l) }
}

// WithOverrides re-applies command line overrides on every reload.
func WithOverrides(overrides map[string]any) WatcherOption {
	return func(w *Watcher) { w.overrides = overrides }
}

func NewWatcher(path string, loader *Loader, opts ...WatcherOption) (*Watcher, error) {
	if path == "" {
		return nil, errors.New("config watcher needs a file path")
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		path:     filepath.Clean(path),
		loader:   loader,
		debounce: 300 * time.Millisecond,
		log:      logger.Global(),
		fs:       fs,
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// OnChange registers cb. Callbacks run in registration order on the
// watcher goroutine; a panicking callback is logged and the rest still run.
func (w *Watcher) OnChange(cb func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Watch blocks until ctx is done or Stop is called. It returns ctx.Err()
// on cancellation and nil after Stop.
func (w *Watcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return ErrWatcherRunning
	}
	w.running = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	if err := w.fs.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", w.path, err)
	}

	quiet := time.NewTimer(w.debounce)
	quiet.Stop()
	defer quiet.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			quiet.Reset(w.debounce)
		case <-quiet.C:
			w.reload()
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("config watcher error", "path", w.path, "error", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := w.loader.Load(w.path, w.overrides)
	if err != nil {
		w.log.Error("config reload rejected", "path", w.path, "error", err)
		return
	}

	w.mu.Lock()
	callbacks := slices.Clone(w.callbacks)
	w.mu.Unlock()

	for _, cb := range callbacks {
		w.notify(cb, cfg)
	}
}

func (w *Watcher) notify(cb func(*Config), cfg *Config) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("config change callback panicked", "panic", r)
		}
	}()
	cb(cfg)
}

// Stop ends Watch and releases the fsnotify watcher. It is idempotent.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stop)
		err = w.fs.Close()
	})
	return err
}

func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Path is the watched file.
func (w *Watcher) Path() string {
	return w.path
}

// HotReloadableConfig holds the settings applied without a restart.
type HotReloadableConfig struct {
	LogLevel string
}

func ExtractHotReloadable(cfg *Config) HotReloadableConfig {
	return HotReloadableConfig{LogLevel: cfg.Log.Level}
}

// Changed reports whether applying other would change anything.
func (h HotReloadableConfig) Changed(other HotReloadableConfig) bool {
	return h != other
}

// RestartRequired names the top-level sections that differ between old and
// updated and only take effect after a restart, in Config field order.
func RestartRequired(old, updated *Config) []string {
	sections := []struct {
		name string
		a, b any
	}{
		{"server", old.Server, updated.Server},
		{"store", old.Store, updated.Store},
		{"embedding", old.Embedding, updated.Embedding},
		{"recall", old.Recall, updated.Recall},
		{"writeback", old.Writeback, updated.Writeback},
		{"engine", old.Engine, updated.Engine},
		{"metrics", old.Metrics, updated.Metrics},
		{"tracing", old.Tracing, updated.Tracing},
	}
	var changed []string
	for _, s := range sections {
		if !reflect.DeepEqual(s.a, s.b) {
			changed = append(changed, s.name)
		}
	}
	return changed
}
