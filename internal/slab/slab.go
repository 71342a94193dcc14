// Package slab implements the region allocator backing CPU pixel arrays and
// scratch buffers.
//
// Memory is handed out as regions. Each region carries a claim word holding
// the id of the claimant that currently owns it; a claimant may write through
// the region only after winning the 0 -> id swap and gives it back with the
// matching id -> 0 swap when its Blob is released. Regions are reused
// best-fit and are only returned to the Go heap by Trim.
package slab

import (
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"

	"github.com/gogpu/tilefx/internal/atomicx"
	"github.com/gogpu/tilefx/internal/handle"
)

// DefaultRegionSize is the allocation granularity.
const DefaultRegionSize = 64 << 10

// ErrInvalidSize is returned for non-positive allocation requests.
var ErrInvalidSize = errors.New("slab: invalid allocation size")

// Region is one reusable block of memory.
type Region struct {
	offset int
	data   []byte
	used   atomicx.Flag
}

// Offset returns the region's position in the allocator address space.
func (r *Region) Offset() int { return r.offset }

// Len returns the region capacity in bytes.
func (r *Region) Len() int { return len(r.data) }

// Owner returns the claimant id holding the region, or zero.
func (r *Region) Owner() uint64 { return r.used.Owner() }

// Blob is a claimed view of a region.
type Blob struct {
	region   *Region
	claimant uint64
	n        int
}

// Bytes returns the usable bytes of the blob.
func (b Blob) Bytes() []byte { return b.region.data[:b.n] }

// Len returns the requested length.
func (b Blob) Len() int { return b.n }

// Offset returns the offset of the underlying region.
func (b Blob) Offset() int { return b.region.offset }

// Allocator hands out claimed regions.
type Allocator struct {
	mu         sync.Mutex
	regionSize int
	regions    []*Region
	index      *swiss.Map[int, *Region]
	next       int
}

// New creates an allocator with the given region granularity.
func New(regionSize int) *Allocator {
	if regionSize <= 0 {
		regionSize = DefaultRegionSize
	}
	return &Allocator{
		regionSize: regionSize,
		index:      swiss.NewMap[int, *Region](64),
	}
}

// RegionSize returns the allocation granularity.
func (a *Allocator) RegionSize() int { return a.regionSize }

func (a *Allocator) roundUp(n int) int {
	return (n + a.regionSize - 1) / a.regionSize * a.regionSize
}

// Alloc claims a region of at least n bytes for claimant and returns a shared
// handle. The region is given back when the last reference is released.
func (a *Allocator) Alloc(claimant uint64, n int) (*handle.Shared[Blob], error) {
	if n <= 0 {
		return nil, errors.Wrapf(ErrInvalidSize, "alloc %d bytes", n)
	}
	if claimant == 0 {
		claimant = atomicx.NewClaimant()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	r := a.claimFit(claimant, n)
	if r == nil {
		r = &Region{offset: a.next, data: make([]byte, a.roundUp(n))}
		a.next += len(r.data)
		r.used.TryClaim(claimant)
		a.regions = append(a.regions, r)
		sort.Slice(a.regions, func(i, j int) bool { return len(a.regions[i].data) < len(a.regions[j].data) })
		a.index.Put(r.offset, r)
	}

	clear(r.data[:n])
	b := Blob{region: r, claimant: claimant, n: n}
	return handle.NewShared(b, a.free), nil
}

// claimFit claims the smallest free region that holds n bytes.
func (a *Allocator) claimFit(claimant uint64, n int) *Region {
	i := sort.Search(len(a.regions), func(i int) bool { return len(a.regions[i].data) >= n })
	for ; i < len(a.regions); i++ {
		if a.regions[i].used.TryClaim(claimant) {
			return a.regions[i]
		}
	}
	return nil
}

func (a *Allocator) free(b Blob) {
	b.region.used.Release(b.claimant)
}

// Lookup returns the region starting at offset.
func (a *Allocator) Lookup(offset int) (*Region, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.index.Get(offset)
}

// Capacity returns the total bytes held by the allocator.
func (a *Allocator) Capacity() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	var n uint64
	for _, r := range a.regions {
		n += uint64(len(r.data))
	}
	return n
}

// InUse returns the bytes held by claimed regions.
func (a *Allocator) InUse() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	var n uint64
	for _, r := range a.regions {
		if r.used.Claimed() {
			n += uint64(len(r.data))
		}
	}
	return n
}

// Regions returns the number of regions.
func (a *Allocator) Regions() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.index.Count()
}

// Trim drops every unclaimed region and returns how many were removed.
func (a *Allocator) Trim() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	kept := a.regions[:0]
	removed := 0
	for _, r := range a.regions {
		// Claim before dropping so a concurrent Alloc cannot win it.
		if r.used.TryClaim(atomicx.NewClaimant()) {
			a.index.Delete(r.offset)
			removed++
			continue
		}
		kept = append(kept, r)
	}
	for i := len(kept); i < len(a.regions); i++ {
		a.regions[i] = nil
	}
	a.regions = kept
	return removed
}
