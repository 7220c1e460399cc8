// Package workerpool provides a fixed-size goroutine pool with a bounded
// task queue.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/softreason/softreason/pkg/logger"
)

// ErrStopped is returned when submitting to a pool that is not running.
var ErrStopped = errors.New("workerpool: pool stopped")

// Task is a unit of work.
type Task func()

// Pool manages a pool of goroutines for executing tasks.
type Pool struct {
	workers int
	taskCh  chan Task
	logger  logger.Logger

	// State
	mu       sync.RWMutex
	started  bool
	stopped  bool
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Metrics
	tasksProcessed atomic.Int64
	tasksPanicked  atomic.Int64
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the logger used to report recovered panics.
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) {
		p.logger = logger.OrNop(l)
	}
}

// New creates a pool with the given number of workers and queue capacity.
// Non-positive values fall back to one worker and an unbuffered queue.
func New(workers, queueSize int, opts ...Option) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	p := &Pool{
		workers: workers,
		taskCh:  make(chan Task, queueSize),
		stopCh:  make(chan struct{}),
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start starts the workers. Calling Start twice, or after Stop, is a no-op.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop rejects new tasks, runs the tasks already queued and waits for all
// workers to exit.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		p.mu.Unlock()

		close(p.stopCh)
		p.wg.Wait()
	})
}

// Submit queues a task, blocking while the queue is full. It returns
// ErrStopped if the pool is not running and ctx.Err() if ctx ends first.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.started || p.stopped {
		return ErrStopped
	}

	select {
	case p.taskCh <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stopCh:
		return ErrStopped
	}
}

// TrySubmit queues a task without blocking. It returns false if the queue
// is full or the pool is not running.
func (p *Pool) TrySubmit(task Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.started || p.stopped {
		return false
	}

	select {
	case p.taskCh <- task:
		return true
	default:
		return false
	}
}

// worker is the main loop for each worker goroutine.
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case task := <-p.taskCh:
			p.processTask(id, task)
		case <-p.stopCh:
			// No task can be queued once stopCh is closed.
			for {
				select {
				case task := <-p.taskCh:
					p.processTask(id, task)
				default:
					return
				}
			}
		}
	}
}

// processTask runs a single task. Panics are recovered so the worker
// survives a failing task.
func (p *Pool) processTask(id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.tasksPanicked.Add(1)
			p.logger.Error("worker task panicked", "worker", id, "panic", fmt.Sprint(r))
		}
	}()

	task()
	p.tasksProcessed.Add(1)
}

// TasksProcessed returns the number of tasks that completed without panic.
func (p *Pool) TasksProcessed() int64 {
	return p.tasksProcessed.Load()
}

// TasksPanicked returns the number of tasks that panicked.
func (p *Pool) TasksPanicked() int64 {
	return p.tasksPanicked.Load()
}

// QueueLen returns the number of queued tasks.
func (p *Pool) QueueLen() int {
	return len(p.taskCh)
}

// IsRunning returns true if the pool accepts tasks.
func (p *Pool) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.started && !p.stopped
}
