// Package atomicx provides the small set of atomic integer operations used
// for reference counts and claim flags throughout tilefx.
//
// The types wrap sync/atomic and add the fetch-style names (Inc, Dec,
// CompareExchange returning the previous value) the pool and handle code is
// written against.
package atomicx

import "sync/atomic"

// Int32 is an atomically accessed int32.
type Int32 struct {
	v atomic.Int32
}

// Load returns the current value.
func (a *Int32) Load() int32 { return a.v.Load() }

// Store sets the value.
func (a *Int32) Store(n int32) { a.v.Store(n) }

// Add adds n and returns the new value.
func (a *Int32) Add(n int32) int32 { return a.v.Add(n) }

// Sub subtracts n and returns the new value.
func (a *Int32) Sub(n int32) int32 { return a.v.Add(-n) }

// Inc increments by one and returns the new value.
func (a *Int32) Inc() int32 { return a.v.Add(1) }

// Dec decrements by one and returns the new value.
func (a *Int32) Dec() int32 { return a.v.Add(-1) }

// Swap stores n and returns the previous value.
func (a *Int32) Swap(n int32) int32 { return a.v.Swap(n) }

// CompareExchange stores n if the current value equals old.
// It returns the value observed before the operation.
func (a *Int32) CompareExchange(old, n int32) int32 {
	for {
		if a.v.CompareAndSwap(old, n) {
			return old
		}
		if cur := a.v.Load(); cur != old {
			return cur
		}
	}
}

// Int64 is an atomically accessed int64.
type Int64 struct {
	v atomic.Int64
}

// Load returns the current value.
func (a *Int64) Load() int64 { return a.v.Load() }

// Store sets the value.
func (a *Int64) Store(n int64) { a.v.Store(n) }

// Add adds n and returns the new value.
func (a *Int64) Add(n int64) int64 { return a.v.Add(n) }

// Sub subtracts n and returns the new value.
func (a *Int64) Sub(n int64) int64 { return a.v.Add(-n) }

// Inc increments by one and returns the new value.
func (a *Int64) Inc() int64 { return a.v.Add(1) }

// Dec decrements by one and returns the new value.
func (a *Int64) Dec() int64 { return a.v.Add(-1) }

// Swap stores n and returns the previous value.
func (a *Int64) Swap(n int64) int64 { return a.v.Swap(n) }

// CompareExchange stores n if the current value equals old.
// It returns the value observed before the operation.
func (a *Int64) CompareExchange(old, n int64) int64 {
	for {
		if a.v.CompareAndSwap(old, n) {
			return old
		}
		if cur := a.v.Load(); cur != old {
			return cur
		}
	}
}

// Uint64 is an atomically accessed uint64, used for byte counters.
type Uint64 struct {
	v atomic.Uint64
}

// Load returns the current value.
func (a *Uint64) Load() uint64 { return a.v.Load() }

// Store sets the value.
func (a *Uint64) Store(n uint64) { a.v.Store(n) }

// Add adds n and returns the new value.
func (a *Uint64) Add(n uint64) uint64 { return a.v.Add(n) }

// Sub subtracts n and returns the new value.
func (a *Uint64) Sub(n uint64) uint64 { return a.v.Add(^(n - 1)) }

// Inc adds one and returns the new value.
func (a *Uint64) Inc() uint64 { return a.v.Add(1) }

// Dec subtracts one and returns the new value.
func (a *Uint64) Dec() uint64 { return a.v.Add(^uint64(0)) }

// Swap sets n and returns the previous value.
func (a *Uint64) Swap(n uint64) uint64 { return a.v.Swap(n) }

// CompareExchange sets n if the value is old and returns the value seen.
func (a *Uint64) CompareExchange(old, n uint64) uint64 {
	for {
		if a.v.CompareAndSwap(old, n) {
			return old
		}
		if cur := a.v.Load(); cur != old {
			return cur
		}
	}
}
