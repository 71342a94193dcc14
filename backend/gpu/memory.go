// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"fmt"
	"math"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/golang-lru/simplelru"
)

// Memory management errors.
var (
	// ErrMemoryBudgetExceeded is returned when a tile does not fit the budget
	// even after eviction.
	ErrMemoryBudgetExceeded = errors.New("gpu: memory budget exceeded")

	// ErrMemoryManagerClosed is returned when operating on a closed manager.
	ErrMemoryManagerClosed = errors.New("gpu: memory manager closed")
)

const (
	// DefaultMaxMemoryMB is the default streamlined tile budget.
	DefaultMaxMemoryMB = 512

	// MinMemoryMB is the smallest budget SetBudget accepts.
	MinMemoryMB = 16

	megabyte = 1 << 20
)

// MemoryStats reports the tile residency of a streamlined device.
type MemoryStats struct {
	BudgetBytes   uint64
	UsedBytes     uint64
	TileCount     int
	EvictionCount uint64
}

func (s MemoryStats) String() string {
	return fmt.Sprintf("tiles: %d resident, %d/%d MB, %d evicted",
		s.TileCount, s.UsedBytes/megabyte, s.BudgetBytes/megabyte, s.EvictionCount)
}

// MemoryManager keeps the resident tiles of streamlined images under a byte
// budget. Reserving a tile that does not fit evicts the least recently used
// unpinned tiles to host memory.
//
// MemoryManager is safe for concurrent use.
type MemoryManager struct {
	mu sync.Mutex

	budget    uint64
	used      uint64
	evictions uint64

	// resident maps *tile to its size in bytes, oldest use first.
	resident *simplelru.LRU

	// evict moves a tile's pixels to host memory and frees its texture.
	evict  func(*tile) error
	closed bool
}

// NewMemoryManager returns a manager with a budget of budgetMB megabytes
// that calls evict for every tile it pushes out. Budgets below MinMemoryMB
// select DefaultMaxMemoryMB.
func NewMemoryManager(budgetMB int, evict func(*tile) error) *MemoryManager {
	if budgetMB < MinMemoryMB {
		budgetMB = DefaultMaxMemoryMB
	}
	// The entry count is unbounded; the byte budget is enforced here.
	resident, err := simplelru.NewLRU(math.MaxInt32, nil)
	if err != nil {
		panic(err)
	}
	return &MemoryManager{
		budget:   uint64(budgetMB) * megabyte,
		resident: resident,
		evict:    evict,
	}
}

// Reserve registers t as resident with the given size, evicting other tiles
// first when the budget requires it. Reserving a resident tile only marks
// it used.
func (m *MemoryManager) Reserve(t *tile, size uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrMemoryManagerClosed
	}
	if _, ok := m.resident.Get(t); ok {
		return nil
	}
	if size > m.budget {
		return errors.Wrapf(ErrMemoryBudgetExceeded, "tile of %d bytes, budget %d bytes", size, m.budget)
	}
	if err := m.makeRoomLocked(size); err != nil {
		return err
	}
	m.resident.Add(t, size)
	m.used += size
	return nil
}

// Touch marks t as most recently used.
func (m *MemoryManager) Touch(t *tile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resident.Get(t)
}

// Forget stops tracking t without evicting it. Images call it when they
// release a tile texture themselves.
func (m *MemoryManager) Forget(t *tile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropLocked(t)
}

// Contains reports whether t is tracked as resident.
func (m *MemoryManager) Contains(t *tile) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resident.Contains(t)
}

func (m *MemoryManager) Stats() MemoryStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MemoryStats{
		BudgetBytes:   m.budget,
		UsedBytes:     m.used,
		TileCount:     m.resident.Len(),
		EvictionCount: m.evictions,
	}
}

// SetBudget changes the budget, evicting tiles when usage is now above it.
func (m *MemoryManager) SetBudget(megabytes int) error {
	return m.setBudgetBytes(uint64(max(megabytes, MinMemoryMB)) * megabyte)
}

// setBudgetBytes is SetBudget without the MinMemoryMB floor.
func (m *MemoryManager) setBudgetBytes(n uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrMemoryManagerClosed
	}
	m.budget = n
	return m.makeRoomLocked(0)
}

// Close stops tracking every tile. Tile textures belong to their images and
// are left alone.
func (m *MemoryManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resident.Purge()
	m.used = 0
	m.closed = true
}

func (m *MemoryManager) dropLocked(t *tile) {
	if size, ok := m.resident.Peek(t); ok {
		m.resident.Remove(t)
		m.used -= size.(uint64)
	}
}

// makeRoomLocked evicts the least recently used unpinned tiles until size
// more bytes fit the budget.
func (m *MemoryManager) makeRoomLocked(size uint64) error {
	if m.used+size <= m.budget {
		return nil
	}
	for _, key := range m.resident.Keys() {
		t := key.(*tile)
		if t.pinned.Load() > 0 {
			continue
		}
		m.dropLocked(t)
		if err := m.evict(t); err != nil {
			slogger().Warn("tile eviction failed", "tile", t.logical, "error", err)
			return errors.Wrap(err, "gpu: evict tile")
		}
		m.evictions++
		if m.used+size <= m.budget {
			return nil
		}
	}
	return errors.Wrapf(ErrMemoryBudgetExceeded, "need %d bytes, %d of %d held by pinned tiles",
		size, m.used, m.budget)
}
