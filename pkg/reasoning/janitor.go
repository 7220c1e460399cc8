package reasoning

import (
	"context"
	"sync"
	"time"

	"github.com/softreason/softreason/pkg/logger"
)

// Pruner is implemented by Engine.
type Pruner interface {
	Prune(ctx context.Context) int
}

// Janitor calls Prune on a fixed interval.
type Janitor struct {
	pruner   Pruner
	interval time.Duration
	logger   logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewJanitor creates a janitor. It does nothing until Start is called.
func NewJanitor(p Pruner, interval time.Duration, l logger.Logger) *Janitor {
	return &Janitor{
		pruner:   p,
		interval: interval,
		logger:   logger.OrNop(l),
	}
}

// Start launches the prune loop. It is a no-op when already running or when
// the interval is not positive.
func (j *Janitor) Start(parentCtx context.Context) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.running || j.interval <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(parentCtx)
	j.cancel = cancel
	j.done = make(chan struct{})
	j.running = true

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if removed := j.pruner.Prune(ctx); removed > 0 {
					j.logger.Info("janitor pruned expired records", "removed", removed)
				}
			case <-ctx.Done():
				return
			}
		}
	}(j.done)

	j.logger.Info("janitor started", "interval", j.interval)
}

// Stop ends the loop and waits for an in-flight prune to return.
func (j *Janitor) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	j.running = false
	cancel, done := j.cancel, j.done
	j.mu.Unlock()

	cancel()
	<-done
	j.logger.Info("janitor stopped")
}
