// Package handle provides ownership handles for backend resources.
//
// Owned is a single-owner handle with deterministic destruction. Shared is a
// reference counted handle with a custom deleter; Weak observes a Shared
// value without keeping it alive and can be upgraded while at least one
// strong reference remains.
package handle

import (
	"sync"

	"github.com/gogpu/tilefx/internal/atomicx"
)

// Owned holds a value with exactly one owner.
// The deleter runs once, on the first Release.
type Owned[T any] struct {
	value   T
	deleter func(T)
	valid   bool
}

// NewOwned wraps v. deleter may be nil.
func NewOwned[T any](v T, deleter func(T)) *Owned[T] {
	return &Owned[T]{value: v, deleter: deleter, valid: true}
}

// Get returns the held value and whether the handle still owns one.
func (o *Owned[T]) Get() (T, bool) {
	if o == nil || !o.valid {
		var zero T
		return zero, false
	}
	return o.value, true
}

// Valid reports whether the handle still owns a value.
func (o *Owned[T]) Valid() bool {
	return o != nil && o.valid
}

// Take transfers ownership to the caller without running the deleter.
func (o *Owned[T]) Take() (T, bool) {
	v, ok := o.Get()
	if ok {
		var zero T
		o.value = zero
		o.valid = false
	}
	return v, ok
}

// Release destroys the held value. Subsequent calls do nothing.
func (o *Owned[T]) Release() {
	v, ok := o.Take()
	if ok && o.deleter != nil {
		o.deleter(v)
	}
}

// control is the block shared by every Shared and Weak handle of one value.
type control[T any] struct {
	strong  atomicx.Int64
	weak    atomicx.Int64
	value   T
	deleter func(T)
	once    sync.Once
}

// Shared is one strong reference to a reference counted value.
// Copying a Shared struct does not add a reference; use Clone.
type Shared[T any] struct {
	ctl      *control[T]
	released bool
}

// NewShared returns the first strong reference to v.
// deleter runs once when the last strong reference is released.
func NewShared[T any](v T, deleter func(T)) *Shared[T] {
	c := &control[T]{value: v, deleter: deleter}
	c.strong.Store(1)
	return &Shared[T]{ctl: c}
}

// Get returns the referenced value.
func (s *Shared[T]) Get() T {
	return s.ctl.value
}

// Clone adds a strong reference.
func (s *Shared[T]) Clone() *Shared[T] {
	s.ctl.strong.Inc()
	return &Shared[T]{ctl: s.ctl}
}

// UseCount returns the number of live strong references.
func (s *Shared[T]) UseCount() int64 {
	return s.ctl.strong.Load()
}

// Weak returns a weak observer of the value.
func (s *Shared[T]) Weak() *Weak[T] {
	s.ctl.weak.Inc()
	return &Weak[T]{ctl: s.ctl}
}

// Release drops this strong reference. The deleter runs when the count
// reaches zero. Releasing the same handle twice is a no-op.
func (s *Shared[T]) Release() {
	if s == nil || s.released {
		return
	}
	s.released = true
	if s.ctl.strong.Dec() == 0 {
		s.ctl.once.Do(func() {
			if s.ctl.deleter != nil {
				s.ctl.deleter(s.ctl.value)
			}
			var zero T
			s.ctl.value = zero
		})
	}
}

// Weak observes a Shared value without owning it.
type Weak[T any] struct {
	ctl *control[T]
}

// Upgrade returns a new strong reference if the value is still alive.
func (w *Weak[T]) Upgrade() (*Shared[T], bool) {
	if w == nil || w.ctl == nil {
		return nil, false
	}
	for {
		n := w.ctl.strong.Load()
		if n <= 0 {
			return nil, false
		}
		if w.ctl.strong.CompareExchange(n, n+1) == n {
			return &Shared[T]{ctl: w.ctl}, true
		}
	}
}

// Expired reports whether every strong reference has been released.
func (w *Weak[T]) Expired() bool {
	return w == nil || w.ctl == nil || w.ctl.strong.Load() <= 0
}

// WeakCount returns the number of weak observers that have not been reset.
func (w *Weak[T]) WeakCount() int64 {
	if w == nil || w.ctl == nil {
		return 0
	}
	return w.ctl.weak.Load()
}

// Reset detaches the observer.
func (w *Weak[T]) Reset() {
	if w == nil || w.ctl == nil {
		return
	}
	w.ctl.weak.Dec()
	w.ctl = nil
}
