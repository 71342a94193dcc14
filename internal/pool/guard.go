package pool

import "github.com/gogpu/tilefx/internal/atomicx"

// Guard releases an acquired resource exactly once.
//
//	g := pool.NewGuard(tex)
//	defer g.Release()
type Guard[T Resource] struct {
	r    T
	done bool
}

// NewGuard wraps an already acquired resource.
func NewGuard[T Resource](r T) *Guard[T] {
	return &Guard[T]{r: r}
}

// Get returns the guarded resource.
func (g *Guard[T]) Get() T { return g.r }

// Release gives the resource back. Later calls do nothing.
func (g *Guard[T]) Release() {
	if g.done {
		return
	}
	g.done = true
	g.r.Release()
}

// Detach stops the guard from releasing the resource and returns it.
func (g *Guard[T]) Detach() T {
	g.done = true
	return g.r
}

// SharedGuard is a guard with several holders. The resource is released
// when the last holder drops it.
type SharedGuard[T Resource] struct {
	r     T
	count atomicx.Int32
}

// NewSharedGuard wraps an acquired resource with one holder.
func NewSharedGuard[T Resource](r T) *SharedGuard[T] {
	g := &SharedGuard[T]{r: r}
	g.count.Store(1)
	return g
}

// Get returns the guarded resource.
func (g *SharedGuard[T]) Get() T { return g.r }

// Hold adds a holder.
func (g *SharedGuard[T]) Hold() *SharedGuard[T] {
	g.count.Inc()
	return g
}

// Holders returns the number of remaining holders.
func (g *SharedGuard[T]) Holders() int32 { return g.count.Load() }

// Release drops one holder and releases the resource on the last one.
func (g *SharedGuard[T]) Release() {
	if g.count.Dec() == 0 {
		g.r.Release()
	}
}
