// Package parallel provides the worker pool and tile executor used by the
// CPU backend.
//
// Work is split into rectangular tiles that are processed independently.
// There is no ordering between tiles, so kernels must only write inside
// the tile they were given. Source pixels may be read from anywhere.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// WorkerPool is a fixed set of goroutines that run submitted work.
//
// Each worker owns a queue and steals from the other queues when its own is
// empty, which keeps workers busy when tiles take uneven time.
//
// Thread safety: WorkerPool is safe for concurrent use.
type WorkerPool struct {
	workers    int
	workQueues []chan func()
	done       chan struct{}
	wg         sync.WaitGroup
	running    atomic.Bool

	// next spreads Submit calls round-robin.
	next atomic.Uint32

	completed atomic.Uint64
	panicked  atomic.Uint64
}

// NewWorkerPool creates a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	queueSize := max(workers*4, 8)

	p := &WorkerPool{
		workers:    workers,
		workQueues: make([]chan func(), workers),
		done:       make(chan struct{}),
	}
	for i := range workers {
		p.workQueues[i] = make(chan func(), queueSize)
	}

	p.running.Store(true)
	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}

	slogger().Debug("worker pool started", "workers", workers, "queue", queueSize)
	return p
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	own := p.workQueues[id]
	for {
		select {
		case <-p.done:
			p.drainQueue(own)
			return
		case work := <-own:
			p.run(work)
		default:
			if stolen := p.steal(id); stolen != nil {
				p.run(stolen)
				continue
			}
			select {
			case <-p.done:
				p.drainQueue(own)
				return
			case work := <-own:
				p.run(work)
			}
		}
	}
}

func (p *WorkerPool) run(work func()) {
	if work == nil {
		return
	}
	work()
	p.completed.Add(1)
}

func (p *WorkerPool) drainQueue(queue chan func()) {
	for {
		select {
		case work := <-queue:
			p.run(work)
		default:
			return
		}
	}
}

func (p *WorkerPool) steal(own int) func() {
	for i := range p.workers {
		if i == own {
			continue
		}
		select {
		case work := <-p.workQueues[i]:
			return work
		default:
		}
	}
	return nil
}

// Submit queues one task on the next worker. When the pool is closed the
// task runs on the calling goroutine so that batches still complete.
func (p *WorkerPool) Submit(fn func()) {
	if fn == nil {
		return
	}
	if !p.running.Load() {
		fn()
		return
	}
	idx := int(p.next.Add(1)-1) % p.workers
	select {
	case p.workQueues[idx] <- fn:
	case <-p.done:
		fn()
	}
}

// ExecuteAll runs every item and waits for all of them.
// A panicking item is reported in the returned error instead of crashing
// the worker.
func (p *WorkerPool) ExecuteAll(work []func()) error {
	b := p.NewBatch()
	for _, fn := range work {
		b.Go(fn)
	}
	return b.Wait()
}

// Close stops accepting work, lets queued work finish and stops the workers.
// Close is safe to call multiple times.
func (p *WorkerPool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
	slogger().Debug("worker pool stopped", "completed", p.completed.Load(), "panicked", p.panicked.Load())
}

// Workers returns the number of workers in the pool.
func (p *WorkerPool) Workers() int {
	return p.workers
}

// IsRunning returns true if the pool is still accepting work.
func (p *WorkerPool) IsRunning() bool {
	return p.running.Load()
}

// QueuedWork returns the approximate number of queued tasks.
func (p *WorkerPool) QueuedWork() int {
	total := 0
	for _, q := range p.workQueues {
		total += len(q)
	}
	return total
}

// Completed returns the number of tasks run since the pool started.
func (p *WorkerPool) Completed() uint64 {
	return p.completed.Load()
}

// Batch tracks a group of tasks submitted together.
type Batch struct {
	pool *WorkerPool
	wg   sync.WaitGroup

	mu   sync.Mutex
	errs []error
}

// NewBatch starts an empty batch on p.
func (p *WorkerPool) NewBatch() *Batch {
	return &Batch{pool: p}
}

// Go submits fn as part of the batch.
func (b *Batch) Go(fn func()) {
	b.wg.Add(1)
	b.pool.Submit(func() {
		defer b.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				b.pool.panicked.Add(1)
				err := errors.Newf("parallel: task panicked: %v", r)
				slogger().Warn("tile task panicked", "error", err)
				b.mu.Lock()
				b.errs = append(b.errs, err)
				b.mu.Unlock()
			}
		}()
		fn()
	})
}

// Wait blocks until every task of the batch finished and returns the first
// task failure, if any.
func (b *Batch) Wait() error {
	b.wg.Wait()
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.errs) == 0 {
		return nil
	}
	return b.errs[0]
}

// Failures returns the number of tasks that panicked so far.
func (b *Batch) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.errs)
}
