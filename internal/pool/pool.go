// Package pool implements the generic resource pool shared by the backend
// devices.
//
// A pool owns a sequence of resources. Resources are never handed out twice:
// acquisition goes through the resource's own atomic claim, so the pool lock
// only guards the container itself. CleanUp is the periodic sweep that
// destroys everything nobody currently holds.
package pool

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
)

// Resource is an object that can be pooled.
type Resource interface {
	Acquired() bool
	TryAcquire() bool
	Acquire()
	Release()
	ForceRelease()

	// CPUMemory returns the host bytes held by the resource.
	CPUMemory() uint64

	// GPUMemory returns the device bytes held by the resource.
	GPUMemory() uint64
}

// ErrNotFound is returned when a resource is not part of the pool.
var ErrNotFound = errors.New("pool: resource not found")

// Pool is an owning collection of resources.
type Pool[T Resource] struct {
	mu      sync.Mutex
	items   []T
	destroy func(T)
	name    string
}

// New creates an empty pool. destroy is called for every resource the pool
// removes; it may be nil.
func New[T Resource](name string, destroy func(T)) *Pool[T] {
	return &Pool[T]{name: name, destroy: destroy}
}

// Name returns the pool name used in statistics.
func (p *Pool[T]) Name() string { return p.name }

// Add takes ownership of r.
func (p *Pool[T]) Add(r T) {
	p.mu.Lock()
	p.items = append(p.items, r)
	p.mu.Unlock()
}

// Remove destroys r and drops it from the pool.
func (p *Pool[T]) Remove(r T) error {
	p.mu.Lock()
	idx := -1
	for i, it := range p.items {
		if any(it) == any(r) {
			idx = i
			break
		}
	}
	if idx < 0 {
		p.mu.Unlock()
		return ErrNotFound
	}
	p.items = append(p.items[:idx], p.items[idx+1:]...)
	p.mu.Unlock()

	p.destroyOne(r)
	return nil
}

// RemoveAt destroys the resource at index i.
func (p *Pool[T]) RemoveAt(i int) error {
	p.mu.Lock()
	if i < 0 || i >= len(p.items) {
		p.mu.Unlock()
		return errors.Wrapf(ErrNotFound, "index %d of %d", i, len(p.items))
	}
	r := p.items[i]
	p.items = append(p.items[:i], p.items[i+1:]...)
	p.mu.Unlock()

	p.destroyOne(r)
	return nil
}

// Clear destroys every resource, acquired or not.
func (p *Pool[T]) Clear() {
	p.mu.Lock()
	items := p.items
	p.items = nil
	p.mu.Unlock()

	for _, r := range items {
		p.destroyOne(r)
	}
}

// CleanUp destroys every resource that is not acquired and returns how many
// were removed.
func (p *Pool[T]) CleanUp() int {
	p.mu.Lock()
	kept := p.items[:0]
	var removed []T
	for _, r := range p.items {
		if r.Acquired() {
			kept = append(kept, r)
			continue
		}
		removed = append(removed, r)
	}
	var zero T
	for i := len(kept); i < len(p.items); i++ {
		p.items[i] = zero
	}
	p.items = kept
	p.mu.Unlock()

	for _, r := range removed {
		p.destroyOne(r)
	}
	return len(removed)
}

func (p *Pool[T]) destroyOne(r T) {
	if p.destroy != nil {
		p.destroy(r)
	}
}

// Len returns the number of resources in the pool.
func (p *Pool[T]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

// At returns the resource at index i.
func (p *Pool[T]) At(i int) (T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.items) {
		var zero T
		return zero, false
	}
	return p.items[i], true
}

// snapshot copies the item slice so predicates run without the pool lock.
func (p *Pool[T]) snapshot() []T {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]T, len(p.items))
	copy(out, p.items)
	return out
}

// Find returns the first resource matching pred.
func (p *Pool[T]) Find(pred func(T) bool) (T, bool) {
	return p.FindRange(pred, 0, -1)
}

// FindRange searches indices [begin, end). A negative end means the pool length.
func (p *Pool[T]) FindRange(pred func(T) bool, begin, end int) (T, bool) {
	items := p.snapshot()
	begin, end = clampRange(begin, end, len(items))
	for _, r := range items[begin:end] {
		if pred == nil || pred(r) {
			return r, true
		}
	}
	var zero T
	return zero, false
}

// AcquireResource claims the first free resource.
func (p *Pool[T]) AcquireResource() (T, bool) {
	return p.AcquireRange(nil, 0, -1)
}

// AcquireMatching claims the first free resource matching pred.
func (p *Pool[T]) AcquireMatching(pred func(T) bool) (T, bool) {
	return p.AcquireRange(pred, 0, -1)
}

// AcquireRange claims the first free resource matching pred in [begin, end).
// Searching from the tail lets callers prefer recently created resources.
func (p *Pool[T]) AcquireRange(pred func(T) bool, begin, end int) (T, bool) {
	items := p.snapshot()
	begin, end = clampRange(begin, end, len(items))
	for _, r := range items[begin:end] {
		if r.Acquired() {
			continue
		}
		if pred != nil && !pred(r) {
			continue
		}
		if r.TryAcquire() {
			return r, true
		}
	}
	var zero T
	return zero, false
}

// AcquireOrCreate claims a free resource matching pred, or creates, adds and
// claims a new one.
func (p *Pool[T]) AcquireOrCreate(pred func(T) bool, create func() (T, error)) (T, bool, error) {
	if r, ok := p.AcquireMatching(pred); ok {
		return r, false, nil
	}
	r, err := create()
	if err != nil {
		var zero T
		return zero, false, errors.Wrapf(err, "pool %s: create", p.name)
	}
	r.Acquire()
	p.Add(r)
	return r, true, nil
}

// AcquireWait blocks until a resource matching pred can be claimed or ctx ends.
// The first match found is waited on with its own claim.
func (p *Pool[T]) AcquireWait(ctx context.Context, pred func(T) bool) (T, error) {
	if r, ok := p.AcquireMatching(pred); ok {
		return r, nil
	}
	r, ok := p.Find(pred)
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	type ctxAcquirer interface {
		AcquireContext(context.Context) error
	}
	if ca, ok := any(r).(ctxAcquirer); ok {
		if err := ca.AcquireContext(ctx); err != nil {
			var zero T
			return zero, err
		}
		return r, nil
	}
	r.Acquire()
	return r, nil
}

// Count returns the number of resources matching pred.
func (p *Pool[T]) Count(pred func(T) bool) int {
	n := 0
	for _, r := range p.snapshot() {
		if pred == nil || pred(r) {
			n++
		}
	}
	return n
}

// CountAvailable returns the number of unacquired resources matching pred.
func (p *Pool[T]) CountAvailable(pred func(T) bool) int {
	return p.Count(func(r T) bool {
		return !r.Acquired() && (pred == nil || pred(r))
	})
}

// CountAcquired returns the number of acquired resources matching pred.
func (p *Pool[T]) CountAcquired(pred func(T) bool) int {
	return p.Count(func(r T) bool {
		return r.Acquired() && (pred == nil || pred(r))
	})
}

// Each calls fn for every resource in order.
func (p *Pool[T]) Each(fn func(T)) {
	for _, r := range p.snapshot() {
		fn(r)
	}
}

// CPUMemory sums the host memory held by every resource.
func (p *Pool[T]) CPUMemory() uint64 {
	var n uint64
	for _, r := range p.snapshot() {
		n += r.CPUMemory()
	}
	return n
}

// GPUMemory sums the device memory held by every resource.
func (p *Pool[T]) GPUMemory() uint64 {
	var n uint64
	for _, r := range p.snapshot() {
		n += r.GPUMemory()
	}
	return n
}

func clampRange(begin, end, n int) (int, int) {
	if end < 0 || end > n {
		end = n
	}
	if begin < 0 {
		begin = 0
	}
	if begin > end {
		begin = end
	}
	return begin, end
}
