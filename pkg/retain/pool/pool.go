// Package pool provides a fixed-size worker pool that can be shared by
// many runs. Work is grouped into batches; a batch collects the result of
// every task it submitted and Wait returns once all of them finished.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jamesainslie/retain/pkg/retain/logging"
)

// DefaultSize is the number of workers used when New is given size < 1.
const DefaultSize = 10

// DefaultQueueSize is the number of tasks that may wait for a worker
// before Submit blocks.
const DefaultQueueSize = 1024

// ErrClosed is returned when submitting to a closed pool.
var ErrClosed = errors.New("pool closed")

var logger = logging.Get("pool")

// Pool runs submitted tasks on a fixed number of goroutines.
type Pool struct {
	size  int
	tasks chan func()

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	active atomic.Int64
	peak   atomic.Int64
}

// New starts a pool with size workers and a queue of queueSize tasks.
// Non-positive values select DefaultSize and DefaultQueueSize.
func New(size, queueSize int) *Pool {
	if size < 1 {
		size = DefaultSize
	}
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}

	p := &Pool{
		size:  size,
		tasks: make(chan func(), queueSize),
	}

	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker(i)
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Active returns the number of tasks currently executing.
func (p *Pool) Active() int64 {
	return p.active.Load()
}

// Peak returns the highest number of tasks that executed at once.
func (p *Pool) Peak() int64 {
	return p.peak.Load()
}

// Close stops accepting tasks, lets queued tasks finish and waits for
// the workers to exit. It is safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
}

// submit queues a task. It blocks while the queue is full, and gives up
// when ctx is cancelled first.
func (p *Pool) submit(ctx context.Context, task func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}

	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for task := range p.tasks {
		p.run(id, task)
	}
}

// run executes one task, tracking concurrency and containing panics so a
// single task cannot take the pool down.
func (p *Pool) run(id int, task func()) {
	n := p.active.Add(1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	defer func() {
		p.active.Add(-1)
		if r := recover(); r != nil {
			logger.Error("task panicked", "worker", id, "panic", fmt.Sprint(r))
		}
	}()

	task()
}

// Batch groups tasks whose results are collected together.
// A Batch must not be reused after Wait returns.
type Batch[T any] struct {
	pool *Pool
	wg   sync.WaitGroup

	mu      sync.Mutex
	results []T
}

// NewBatch opens a batch on p.
func NewBatch[T any](p *Pool) *Batch[T] {
	return &Batch[T]{pool: p}
}

// Submit queues task without waiting for it to run. The task's return
// value is recorded once it completes. A task that panics records the
// zero value of T, so every accepted task yields exactly one result.
func (b *Batch[T]) Submit(ctx context.Context, task func() T) error {
	b.wg.Add(1)
	err := b.pool.submit(ctx, func() {
		defer b.wg.Done()

		var result T
		defer func() {
			b.mu.Lock()
			b.results = append(b.results, result)
			b.mu.Unlock()
		}()

		result = task()
	})
	if err != nil {
		b.wg.Done()
		return err
	}
	return nil
}

// Wait blocks until every submitted task finished and returns their
// results in completion order.
func (b *Batch[T]) Wait() []T {
	b.wg.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]T, len(b.results))
	copy(out, b.results)
	return out
}
